package dsstub

import (
	"errors"
	"fmt"
)

// Code classifies engine failures. Each RPC that fails reports exactly one.
type Code int

const (
	CodeOK Code = iota
	CodeInternalError
	CodeBadRequest
	CodeNeedIndex
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeInternalError:
		return "INTERNAL_ERROR"
	case CodeBadRequest:
		return "BAD_REQUEST"
	case CodeNeedIndex:
		return "NEED_INDEX"
	default:
		return fmt.Sprintf("Code(%d)", int(c))
	}
}

// Error is returned by every engine operation that fails.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func badRequestf(format string, args ...any) error {
	return &Error{Code: CodeBadRequest, Msg: fmt.Sprintf(format, args...)}
}

func needIndexf(format string, args ...any) error {
	return &Error{Code: CodeNeedIndex, Msg: fmt.Sprintf(format, args...)}
}

func internalErrorf(err error, format string, args ...any) error {
	return &Error{Code: CodeInternalError, Msg: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%v: %s", e.Code, e.Msg)
}

// ErrorCode returns the Code carried by err, CodeOK for nil and
// CodeInternalError for errors that did not originate in the engine.
func ErrorCode(err error) Code {
	if err == nil {
		return CodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternalError
}

// DataError reports undecodable binary data.
type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s at %d: %v: (%d) %x", e.Msg, e.Off, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s at %d: (%d) %x", e.Msg, e.Off, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s at %d: %v: (%d) %x...%x", e.Msg, e.Off, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s at %d: (%d) %x...%x", e.Msg, e.Off, n, p, s)
		}
	}
}
