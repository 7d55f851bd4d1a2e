package errors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestAppError_Error 测试错误字符串格式
func TestAppError_Error(t *testing.T) {
	err := New(ErrCodeNotFound, "job not found")
	assert.Equal(t, "[NOT_FOUND] job not found", err.Error())

	wrapped := Wrap(stdErrors.New("sql: no rows"), ErrCodeNotFound, "job not found")
	assert.Equal(t, "[NOT_FOUND] job not found: sql: no rows", wrapped.Error())
}

// TestAppError_Unwrap 测试错误链
func TestAppError_Unwrap(t *testing.T) {
	cause := stdErrors.New("connection reset")
	err := Wrap(cause, ErrCodeQueue, "publish failed")

	assert.True(t, stdErrors.Is(err, cause))
	assert.Equal(t, cause, stdErrors.Unwrap(err))
}

// TestAppError_IsByCode 测试按代码匹配
func TestAppError_IsByCode(t *testing.T) {
	err := Newf(ErrCodeUnknownAction, "unknown action: %s", "fly_job")
	target := New(ErrCodeUnknownAction, "")

	assert.True(t, stdErrors.Is(err, target))
	assert.False(t, stdErrors.Is(err, New(ErrCodeNotFound, "")))
}

// TestCodeOf 测试代码提取
func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrCodeValidation, CodeOf(New(ErrCodeValidation, "bad payload")))
	assert.Equal(t, ErrorCode(""), CodeOf(stdErrors.New("plain")))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))

	// 错误链中间有包装也能取到代码
	inner := New(ErrCodeNotFound, "missing")
	outer := fmt.Errorf("route: %w", inner)
	assert.Equal(t, ErrCodeNotFound, CodeOf(outer))
}

// TestIsApplication 测试应用级错误判定
func TestIsApplication(t *testing.T) {
	assert.True(t, IsApplication(New(ErrCodeValidation, "bad")))
	assert.False(t, IsApplication(stdErrors.New("unexpected")))
	assert.False(t, IsApplication(nil))
}

// TestWithDetail 测试详情不可变追加
func TestWithDetail(t *testing.T) {
	base := New(ErrCodeValidation, "missing field")
	detailed := base.WithDetail("field", "project_id")

	assert.Nil(t, base.Details())
	assert.Equal(t, "project_id", detailed.Details()["field"])
	assert.Equal(t, base.Code(), detailed.Code())
}

// TestWrapNil 包装 nil 错误返回 nil
func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "ignored"))
}
