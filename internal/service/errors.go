package service

import (
	"errors"
	"fmt"
)

// ErrorKind 错误分类，决定对外的错误码
type ErrorKind string

const (
	KindAuthorization ErrorKind = "AUTHORIZATION"
	KindNotFound      ErrorKind = "NOT_FOUND"
	KindValidation    ErrorKind = "VALIDATION"
	KindInvariant     ErrorKind = "INVARIANT"
)

// AppError 业务错误；任何 AppError 都会让当前工作单元整体回滚
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func Unauthorized(format string, args ...interface{}) *AppError {
	return &AppError{Kind: KindAuthorization, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) *AppError {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) *AppError {
	return &AppError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Invariant(format string, args ...interface{}) *AppError {
	return &AppError{Kind: KindInvariant, Message: fmt.Sprintf(format, args...)}
}

// KindOf 非 AppError 返回空字符串
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
