package domain

import (
	"errors"
	"fmt"
)

// Kind классифицирует ошибки на границе клиента хранилища.
type Kind string

const (
	KindUnknown  Kind = "unknown"
	KindNetwork  Kind = "network"
	KindDecode   Kind = "decode"
	KindNotFound Kind = "not_found"
	KindAuth     Kind = "auth"
)

// Error - типизированная ошибка операции с удаленным хранилищем или провайдером идентификации.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	msg += ": " + string(e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is позволяет сравнивать с сентинелами ErrNotFound, ErrNetwork и т.д.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Path == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrNetwork  = &Error{Kind: KindNetwork}
	ErrDecode   = &Error{Kind: KindDecode}
	ErrNotFound = &Error{Kind: KindNotFound}
	ErrAuth     = &Error{Kind: KindAuth}
)

// NewError оборачивает err в ошибку вида kind.
func NewError(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// Errorf - сокращение для NewError с форматированным сообщением.
func Errorf(kind Kind, op, path, format string, args ...any) *Error {
	return NewError(kind, op, path, fmt.Errorf(format, args...))
}

// KindOf возвращает вид ошибки или KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
