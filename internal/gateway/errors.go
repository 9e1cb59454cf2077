package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const snippetLimit = 200

// Error ошибка шлюза: не-2xx статус, отказ ok:false или неразборчивое тело.
// Message можно показывать пользователю как есть.
// Rejected отмечает отказ ok:false в успешном ответе: шлюз работает, но
// отклонил действие.
type Error struct {
	StatusCode int
	Message    string
	Snippet    string
	Rejected   bool
}

func (e *Error) Error() string {
	return e.Message
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// newError разбирает тело ответа с ошибкой. Если тело не JSON (например, HTML
// страница прокси на 401/502), в сообщение попадает код и начало тела.
func newError(status int, raw []byte) *Error {
	snippet := truncate(strings.TrimSpace(string(raw)), snippetLimit)
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		if snippet == "" {
			return &Error{StatusCode: status, Message: fmt.Sprintf("Request failed (HTTP %d)", status)}
		}
		return &Error{
			StatusCode: status,
			Message:    fmt.Sprintf("Request failed (HTTP %d): %s", status, snippet),
			Snippet:    snippet,
		}
	}
	msg := body.Message
	if msg == "" {
		msg = body.Error
	}
	if msg == "" {
		msg = fmt.Sprintf("Request failed (HTTP %d)", status)
	}
	return &Error{StatusCode: status, Message: msg, Snippet: snippet}
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit]) + "..."
}

// Message возвращает текст ошибки шлюза для показа пользователю,
// для сетевых и прочих ошибок — fallback.
func Message(err error, fallback string) string {
	var gwErr *Error
	if errors.As(err, &gwErr) && gwErr.Message != "" {
		return gwErr.Message
	}
	return fallback
}
