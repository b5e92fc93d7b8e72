// Package apperr описывает классы прикладных ошибок и их отображение на HTTP-статусы.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind — класс ошибки.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindAuthorization     Kind = "authorization"
	KindNotFound          Kind = "not_found"
	KindInsufficientStock Kind = "insufficient_stock"
	KindInvalidState      Kind = "invalid_state"
	KindConflict          Kind = "conflict"
	KindInternal          Kind = "internal"
)

var statusByKind = map[Kind]int{
	KindValidation:        http.StatusBadRequest,
	KindAuthorization:     http.StatusForbidden,
	KindNotFound:          http.StatusNotFound,
	KindInsufficientStock: http.StatusConflict,
	KindInvalidState:      http.StatusBadRequest,
	KindConflict:          http.StatusConflict,
	KindInternal:          http.StatusInternalServerError,
}

// Error — ошибка с классом и сообщением для клиента.
type Error struct {
	Kind    Kind
	Message string
	Field   string
	Err     error
}

// Сравнение через errors.Is по классу: errors.Is(err, apperr.ErrNotFound).
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrAuthorization     = &Error{Kind: KindAuthorization}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrInvalidState      = &Error{Kind: KindInvalidState}
	ErrConflict          = &Error{Kind: KindConflict}
)

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is совпадает с любым sentinel-значением того же класса.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// New создаёт ошибку заданного класса.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap создаёт ошибку заданного класса с причиной.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation создаёт ошибку валидации, привязанную к полю запроса.
func Validation(field, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return New(KindAuthorization, format, args...)
}

func InvalidState(format string, args ...any) *Error {
	return New(KindInvalidState, format, args...)
}

// KindOf возвращает класс ошибки; неизвестные ошибки считаются внутренними.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus возвращает HTTP-статус для ошибки.
func HTTPStatus(err error) int {
	if status, ok := statusByKind[KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// PublicMessage возвращает текст, который можно показать клиенту.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		if e.Message != "" {
			return e.Message
		}
		return string(e.Kind)
	}
	return http.StatusText(http.StatusInternalServerError)
}
