// Package middlewarectx содержит HTTP middleware портала: идентификацию
// браузера по cookie и ограничение частоты запросов.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/hotspot-portal/internal/services/portal"
)

// Имена cookie.
const (
	SessionCookie = "portal_sid"
	ClientCookie  = "portal_cid"
)

const clientCookieMaxAge = 365 * 24 * time.Hour

type ctxKey string

const sessionKey ctxKey = "portal_session"

// SessionConfig параметры cookie.
type SessionConfig struct {
	Secure bool
}

// SessionMiddleware выдаёт браузеру cookie сессии (до закрытия браузера) и
// долговременную cookie клиента, а затем кладёт обе в контекст запроса.
// Некорректные значения заменяются новыми.
func SessionMiddleware(log *slog.Logger, cfg SessionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.SessionMiddleware"

			sid, fresh := cookieID(r, SessionCookie)
			if fresh {
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    sid,
					Path:     "/",
					HttpOnly: true,
					Secure:   cfg.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			cid, freshClient := cookieID(r, ClientCookie)
			if freshClient {
				http.SetCookie(w, &http.Cookie{
					Name:     ClientCookie,
					Value:    cid,
					Path:     "/",
					MaxAge:   int(clientCookieMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   cfg.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			if fresh || freshClient {
				log.Debug("issued portal cookies",
					slog.String("op", op),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.Bool("new_session", fresh),
					slog.Bool("new_client", freshClient),
				)
			}

			ctx := context.WithValue(r.Context(), sessionKey, portal.Key{SessionID: sid, ClientID: cid})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionKey ключ сессии из контекста запроса.
func SessionKey(ctx context.Context) (portal.Key, bool) {
	key, ok := ctx.Value(sessionKey).(portal.Key)
	return key, ok
}

// WithSessionKey кладёт ключ сессии в контекст. Используется в тестах хендлеров.
func WithSessionKey(ctx context.Context, key portal.Key) context.Context {
	return context.WithValue(ctx, sessionKey, key)
}

func cookieID(r *http.Request, name string) (string, bool) {
	c, err := r.Cookie(name)
	if err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String(), false
		}
	}
	return uuid.NewString(), true
}
