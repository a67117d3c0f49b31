package errs

import (
	"errors"
	"fmt"
)

// CodeError is the error shape returned on the REST surface: a stable code,
// a short message, and an optional detail for diagnostics.
type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

func (e *CodeError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("[%d] %s", e.Code, e.Msg)
	}
	return fmt.Sprintf("[%d] %s: %s", e.Code, e.Msg, e.Detail)
}

// WithDetail returns a copy carrying extra detail; the receiver is not
// mutated so package-level sentinels stay clean.
func (e *CodeError) WithDetail(detail string) *CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: d}
}

func (e *CodeError) Is(target error) bool {
	var ce *CodeError
	if errors.As(target, &ce) {
		return ce.Code == e.Code
	}
	return false
}

var (
	ErrArgs            = NewCodeError(1001, "invalid argument")
	ErrTokenExpired    = NewCodeError(1501, "token expired or invalid")
	ErrRecordNotFound  = NewCodeError(1404, "record not found")
	ErrInternal        = NewCodeError(1500, "internal error")
	ErrNotAuthorized   = NewCodeError(1403, "not authorized")
	ErrDuplicateRecord = NewCodeError(1409, "record already exists")
)

func New(msg string) error { return errors.New(msg) }
