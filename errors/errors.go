// Package errors 提供带错误代码的应用错误类型
//
// 调度器依赖错误代码区分错误类别：带代码的错误属于应用级错误
// （响应 error 状态并确认消息），不带代码的错误视为意外错误（进入重试）。
package errors

import (
	stdErrors "errors"
	"fmt"
)

// ErrorCode 错误代码类型
type ErrorCode string

// 预定义错误代码
const (
	// 通用错误代码
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeTimeout      ErrorCode = "TIMEOUT"

	// 业务错误代码
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	ErrCodeDuplicate  ErrorCode = "DUPLICATE_ERROR"

	// 消息管线错误代码
	ErrCodeSerialization ErrorCode = "SERIALIZATION_ERROR"
	ErrCodeUnknownAction ErrorCode = "UNKNOWN_ACTION"
	ErrCodeQueue         ErrorCode = "QUEUE_ERROR"
)

// AppError 应用错误实现
//
// 携带错误代码、可读消息、原始错误和附加详情。
type AppError struct {
	code    ErrorCode
	message string
	cause   error
	details map[string]any
}

// New 创建新错误
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		code:    code,
		message: message,
	}
}

// Newf 创建带格式化消息的新错误
func Newf(code ErrorCode, format string, args ...any) *AppError {
	return &AppError{
		code:    code,
		message: fmt.Sprintf(format, args...),
	}
}

// Wrap 包装错误，保留原始错误链
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		code:    code,
		message: message,
		cause:   err,
	}
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.code, e.message)
}

// Code 获取错误代码
func (e *AppError) Code() ErrorCode {
	return e.code
}

// Message 获取错误消息（不含代码前缀，用于响应信封的 error 字段）
func (e *AppError) Message() string {
	return e.message
}

// Cause 获取原始错误
func (e *AppError) Cause() error {
	return e.cause
}

// Unwrap 解包错误（支持 errors.Unwrap）
func (e *AppError) Unwrap() error {
	return e.cause
}

// Is 检查是否为指定类型的错误（按代码比较）
func (e *AppError) Is(target error) bool {
	if target == nil {
		return false
	}
	if appErr, ok := target.(*AppError); ok {
		return e.code == appErr.code
	}
	if e.cause != nil {
		return stdErrors.Is(e.cause, target)
	}
	return false
}

// WithDetail 添加单项详情，返回新错误
func (e *AppError) WithDetail(key string, value any) *AppError {
	details := make(map[string]any, len(e.details)+1)
	for k, v := range e.details {
		details[k] = v
	}
	details[key] = value
	return &AppError{
		code:    e.code,
		message: e.message,
		cause:   e.cause,
		details: details,
	}
}

// Details 获取错误详情
func (e *AppError) Details() map[string]any {
	return e.details
}

// IsNotFound 检查是否为未找到错误
func IsNotFound(err error) bool {
	return IsCode(err, ErrCodeNotFound)
}

// IsValidation 检查是否为验证错误
func IsValidation(err error) bool {
	return IsCode(err, ErrCodeValidation)
}

// IsUnauthorized 检查是否为未授权错误
func IsUnauthorized(err error) bool {
	return IsCode(err, ErrCodeUnauthorized)
}

// IsCode 检查是否为指定错误代码
func IsCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	var appErr *AppError
	if stdErrors.As(err, &appErr) {
		return appErr.code == code
	}
	return false
}

// CodeOf 获取错误代码；非 AppError 返回空代码
//
// 空代码意味着错误未被分类，调度器将其视为意外错误。
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if stdErrors.As(err, &appErr) {
		return appErr.code
	}
	return ""
}

// IsApplication 判断错误是否为应用级错误（带有错误代码）
//
// 应用级错误在消息管线中是终态：发送 error 响应并确认消息，不重试。
func IsApplication(err error) bool {
	return CodeOf(err) != ""
}

// MessageOf 提取面向调用方的错误描述
//
// 应用级错误返回其 message（不含代码前缀和内部 cause），其余错误
// 原样返回 Error() 文本。
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if stdErrors.As(err, &appErr) {
		return appErr.message
	}
	return err.Error()
}
