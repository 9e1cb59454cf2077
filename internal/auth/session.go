// Package auth хранит состояние входа пользователя в рамках одной сессии портала
// и уведомляет подписчиков о его изменениях.
package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/magabrotheeeer/hotspot-portal/internal/lib/jwt"
)

// ErrInvalidToken токен не прошёл проверку подписи или срока действия.
var ErrInvalidToken = errors.New("invalid token")

// TokenParser проверяет bearer-токен аккаунта.
type TokenParser interface {
	ParseToken(tokenStr string) (*jwt.CustomClaims, error)
}

// User данные аккаунта из токена.
type User struct {
	UID      string `json:"uid"`
	Username string `json:"username"`
}

// Listener вызывается при смене состояния входа.
type Listener = func(authenticated bool)

// Session состояние входа одной сессии портала.
type Session struct {
	parser TokenParser
	now    func() time.Time

	mu        sync.Mutex
	token     string
	user      User
	expiresAt time.Time
	nextID    int
	listeners map[int]Listener
}

// NewSession создаёт неавторизованную сессию.
func NewSession(parser TokenParser) *Session {
	return &Session{
		parser:    parser,
		now:       time.Now,
		listeners: make(map[int]Listener),
	}
}

// Authenticate проверяет токен и запоминает его. Подписчики уведомляются
// после снятия блокировки.
func (s *Session) Authenticate(token string) (User, error) {
	const op = "auth.Authenticate"

	claims, err := s.parser.ParseToken(token)
	if err != nil {
		return User{}, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}

	user := User{UID: claims.UserUID, Username: claims.Username}
	s.mu.Lock()
	s.token = token
	s.user = user
	s.expiresAt = time.Time{}
	if claims.ExpiresAt != nil {
		s.expiresAt = claims.ExpiresAt.Time
	}
	listeners := s.snapshotListenersLocked()
	s.mu.Unlock()

	notify(listeners, true)
	return user, nil
}

// Logout забывает токен.
func (s *Session) Logout() {
	s.mu.Lock()
	wasIn := s.token != ""
	s.token = ""
	s.user = User{}
	s.expiresAt = time.Time{}
	listeners := s.snapshotListenersLocked()
	s.mu.Unlock()

	if wasIn {
		notify(listeners, false)
	}
}

// Token возвращает текущий токен. Просроченный токен считается отсутствующим.
func (s *Session) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == "" {
		return "", false
	}
	if !s.expiresAt.IsZero() && !s.now().Before(s.expiresAt) {
		return "", false
	}
	return s.token, true
}

// User возвращает пользователя, если сессия авторизована.
func (s *Session) User() (User, bool) {
	if _, ok := s.Token(); !ok {
		return User{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user, true
}

// Subscribe добавляет подписчика. Возвращённая функция отписывает его,
// повторный вызов ничего не делает.
func (s *Session) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Session) snapshotListenersLocked() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		out = append(out, l)
	}
	return out
}

func notify(listeners []Listener, authenticated bool) {
	for _, l := range listeners {
		l(authenticated)
	}
}
