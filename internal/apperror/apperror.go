package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"
)

// Kind 错误类别,对调用方稳定
type Kind string

const (
	KindValidation        Kind = "validation"
	KindAuthorization     Kind = "authorization"
	KindStateConflict     Kind = "state_conflict"
	KindNotFound          Kind = "not_found"
	KindDependencyTimeout Kind = "dependency_timeout"
	KindInternal          Kind = "internal"
)

// Error 领域错误
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind == KindInternal {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable 仅超时类错误允许调用方重试
func (e *Error) Retryable() bool {
	return e.Kind == KindDependencyTimeout
}

// HTTPStatus 错误类别对应的 HTTP 状态码
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindStateConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindDependencyTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Validation 输入不合法
func Validation(code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Forbidden 无权限,消息保持笼统,不泄露组织结构
func Forbidden(code string) *Error {
	return &Error{Kind: KindAuthorization, Code: code, Message: "not permitted"}
}

// Conflict 当前状态不允许该操作
func Conflict(code, format string, args ...interface{}) *Error {
	return &Error{Kind: KindStateConflict, Code: code, Message: fmt.Sprintf(format, args...)}
}

// NotFound 引用对象不存在
func NotFound(resource, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s %q not found", resource, id),
	}
}

// Timeout 存储超时或不可用
func Timeout(err error) *Error {
	return &Error{
		Kind:    KindDependencyTimeout,
		Code:    "STORE_TIMEOUT",
		Message: "store did not respond in time, retry later",
		Err:     err,
	}
}

// Internal 未分类的内部错误
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Code: "INTERNAL", Message: message, Err: err}
}

// KindOf 返回错误类别,非领域错误视为内部错误
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is 判断错误是否属于给定类别
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsTimeout 是否为上下文超时
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// FromStore 将存储层错误翻译为领域错误
// 已是领域错误的原样返回;记录不存在转换为 NotFound(resource, id)
func FromStore(err error, resource, id string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if IsTimeout(err) {
		return Timeout(err)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound(resource, id)
	}
	return Internal("store operation failed", err)
}
