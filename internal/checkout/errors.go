package checkout

import (
	"errors"

	"github.com/magabrotheeeer/hotspot-portal/internal/validate"
)

var (
	// ErrUnknownPackage пакета с таким ключом нет в каталоге.
	ErrUnknownPackage = errors.New("unknown package")
	// ErrCancelled оплата отменена или заменена новой до ответа шлюза.
	ErrCancelled = errors.New("checkout cancelled")
)

// ValidationError ошибка ввода, обнаруженная до обращения к шлюзу.
type ValidationError = validate.FieldError
