// Package validate содержит чистые функции проверки и нормализации
// пользовательского ввода портала: MAC-адрес, телефон, e-mail, пароль, код ваучера.
//
// Проверка и нормализация — независимые контракты: NormalizeMac умеет исправить
// "AABBCCDDEEFF", но ValidateMac такой ввод отклоняет.
package validate

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator"
)

// Result результат проверки. Message заполнен только при IsValid == false.
type Result struct {
	IsValid bool   `json:"isValid"`
	Message string `json:"message,omitempty"`
}

// Сообщения об ошибках проверки.
const (
	MsgMacRequired      = "MAC address is required"
	MsgMacInvalid       = "Invalid MAC address format. Use XX:XX:XX:XX:XX:XX"
	MsgPhoneRequired    = "Phone number is required"
	MsgPhoneInvalid     = "Phone number must contain at least 9 digits"
	MsgEmailRequired    = "Email is required"
	MsgEmailInvalid     = "Please enter a valid email address"
	MsgPasswordRequired = "Password is required"
	MsgPasswordShort    = "Password must be at least 8 characters"
	MsgPasswordWeak     = "Password must contain at least one letter and one number"
	MsgVoucherRequired  = "Voucher code is required"
	MsgVoucherInvalid   = "Voucher code must be 4-32 letters, digits or hyphens"
)

const minPhoneDigits = 9

var (
	macPattern     = regexp.MustCompile(`^([0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}$`)
	macStrip       = regexp.MustCompile(`[^0-9A-Fa-f:-]`)
	bareMacPattern = regexp.MustCompile(`^[0-9A-F]{12}$`)
	voucherPattern = regexp.MustCompile(`^[A-Za-z0-9-]{4,32}$`)

	emailValidator = validator.New()
)

func ok() Result { return Result{IsValid: true} }

func fail(msg string) Result { return Result{Message: msg} }

// NormalizeMac приводит MAC к виду XX:XX:XX:XX:XX:XX, если это возможно.
// Ввод другой формы возвращается в верхнем регистре без прочих изменений.
// Функция идемпотентна.
func NormalizeMac(raw string) string {
	cleaned := strings.ToUpper(macStrip.ReplaceAllString(raw, ""))
	cleaned = strings.ReplaceAll(cleaned, "-", ":")
	if !bareMacPattern.MatchString(cleaned) {
		return cleaned
	}
	var b strings.Builder
	for i := 0; i < len(cleaned); i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(cleaned[i : i+2])
	}
	return b.String()
}

// ValidateMac проверяет, что ввод — шесть пар hex-цифр через ':' или '-'.
func ValidateMac(input string) Result {
	input = strings.TrimSpace(input)
	if input == "" {
		return fail(MsgMacRequired)
	}
	if !macPattern.MatchString(input) {
		return fail(MsgMacInvalid)
	}
	return ok()
}

// NormalizePhone оставляет в номере только цифры.
func NormalizePhone(input string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, input)
}

// ValidatePhone требует не менее 9 цифр после удаления прочих символов.
func ValidatePhone(input string) Result {
	if strings.TrimSpace(input) == "" {
		return fail(MsgPhoneRequired)
	}
	if len(NormalizePhone(input)) < minPhoneDigits {
		return fail(MsgPhoneInvalid)
	}
	return ok()
}

// ValidateEmail проверяет адрес электронной почты.
func ValidateEmail(input string) Result {
	input = strings.TrimSpace(input)
	if input == "" {
		return fail(MsgEmailRequired)
	}
	if err := emailValidator.Var(input, "email"); err != nil {
		return fail(MsgEmailInvalid)
	}
	return ok()
}

// ValidatePassword требует минимум 8 символов, хотя бы одну букву и одну цифру.
func ValidatePassword(input string) Result {
	if input == "" {
		return fail(MsgPasswordRequired)
	}
	if len([]rune(input)) < 8 {
		return fail(MsgPasswordShort)
	}
	var letter, digit bool
	for _, r := range input {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return fail(MsgPasswordWeak)
	}
	return ok()
}

// NormalizeVoucherCode обрезает пробелы и приводит код к верхнему регистру.
func NormalizeVoucherCode(input string) string {
	return strings.ToUpper(strings.TrimSpace(input))
}

// ValidateVoucherCode проверяет формат кода ваучера.
func ValidateVoucherCode(input string) Result {
	input = strings.TrimSpace(input)
	if input == "" {
		return fail(MsgVoucherRequired)
	}
	if !voucherPattern.MatchString(input) {
		return fail(MsgVoucherInvalid)
	}
	return ok()
}

// FieldError ошибка проверки одного поля ввода. Message показывается пользователю как есть.
type FieldError struct {
	Field   string
	Message string
	Err     error
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Check возвращает *FieldError для неуспешного результата и nil для успешного.
func (r Result) Check(field string) error {
	if r.IsValid {
		return nil
	}
	return &FieldError{Field: field, Message: r.Message}
}
