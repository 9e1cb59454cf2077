// Package catalog отдаёт тарифные пакеты шлюза, кэшируя список на время сессии портала.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/hotspot-portal/internal/lib/sl"
	"github.com/magabrotheeeer/hotspot-portal/internal/models"
)

const keyPrefix = "portal:packages:"

// Lister эндпоинт каталога шлюза.
type Lister interface {
	ListPackages(ctx context.Context) ([]models.PackageOffer, error)
}

// Store сессионный кэш.
type Store interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Catalog источник пакетов для всех сессий.
type Catalog struct {
	lister Lister
	store  Store
	ttl    time.Duration
	log    *slog.Logger
}

// New создаёт Catalog. ttl — время жизни сессии.
func New(lister Lister, store Store, ttl time.Duration, log *slog.Logger) *Catalog {
	return &Catalog{lister: lister, store: store, ttl: ttl, log: log}
}

// View каталог, привязанный к одной сессии.
type View struct {
	c   *Catalog
	key string
}

// ForSession возвращает каталог сессии sessionID.
func (c *Catalog) ForSession(sessionID string) *View {
	return &View{c: c, key: keyPrefix + sessionID}
}

// List возвращает пакеты из кэша сессии или запрашивает их у шлюза.
// Сбой кэша не мешает отдать список.
func (v *View) List(ctx context.Context) ([]models.PackageOffer, error) {
	const op = "catalog.List"
	log := v.c.log.With(slog.String("op", op))

	var offers []models.PackageOffer
	found, err := v.c.store.Get(ctx, v.key, &offers)
	if err != nil {
		log.Warn("package cache read failed", sl.Err(err))
	}
	if found {
		return offers, nil
	}

	offers, err = v.c.lister.ListPackages(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := v.c.store.Set(ctx, v.key, offers, v.c.ttl); err != nil {
		log.Warn("package cache write failed", sl.Err(err))
	}
	return offers, nil
}

// Offer ищет пакет по ключу.
func (v *View) Offer(ctx context.Context, key string) (models.PackageOffer, bool, error) {
	offers, err := v.List(ctx)
	if err != nil {
		return models.PackageOffer{}, false, err
	}
	for _, o := range offers {
		if o.Key == key {
			return o, true, nil
		}
	}
	return models.PackageOffer{}, false, nil
}

// Refresh сбрасывает кэш сессии.
func (v *View) Refresh(ctx context.Context) error {
	const op = "catalog.Refresh"
	if err := v.c.store.Invalidate(ctx, v.key); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
