// Package envelope 定义消息管线的通用请求/响应信封及其编解码
//
// 请求信封的 id 同时充当幂等键和关联键：对每个逻辑请求全局唯一，
// 永不复用。响应信封通过 correlation_id 指回原始请求。
package envelope

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"taskmq/errors"
)

// Version 当前请求信封的版本标签
const Version = "v1"

// 响应状态
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Request 通用请求信封
//
// 线上 JSON 形态：
//
//	{"id": uuid, "version": "v1", "action": string,
//	 "data": object|null, "auth": string|null, "timestamp": ISO-8601}
type Request struct {
	ID        string          `json:"id"`
	Version   string          `json:"version"`
	Action    string          `json:"action"`
	Data      json.RawMessage `json:"data,omitempty"`
	Auth      string          `json:"auth,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Response 通用响应信封
//
// data 仅在 status=ok 时出现，error 仅在 status=error 时出现。
type Response struct {
	CorrelationID string          `json:"correlation_id"`
	Status        string          `json:"status"`
	Data          json.RawMessage `json:"data,omitempty"`
	Error         string          `json:"error,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

// NewRequest 创建请求信封，自动生成全局唯一 id
//
// data 为任意可 JSON 序列化的负载，nil 表示无负载。
func NewRequest(action string, data any, auth string) (*Request, error) {
	raw, err := marshalData(data)
	if err != nil {
		return nil, err
	}
	return &Request{
		ID:        uuid.NewString(),
		Version:   Version,
		Action:    action,
		Data:      raw,
		Auth:      auth,
		Timestamp: time.Now().UTC(),
	}, nil
}

// OkResponse 创建成功响应
func OkResponse(correlationID string, data any) (*Response, error) {
	raw, err := marshalData(data)
	if err != nil {
		return nil, err
	}
	return &Response{
		CorrelationID: correlationID,
		Status:        StatusOK,
		Data:          raw,
		Timestamp:     time.Now().UTC(),
	}, nil
}

// ErrorResponse 创建错误响应
func ErrorResponse(correlationID string, message string) *Response {
	return &Response{
		CorrelationID: correlationID,
		Status:        StatusError,
		Error:         message,
		Timestamp:     time.Now().UTC(),
	}
}

// IsOK 响应是否成功
func (r *Response) IsOK() bool {
	return r.Status == StatusOK
}

// DecodeData 将响应负载解码到目标结构
func (r *Response) DecodeData(v any) error {
	if len(r.Data) == 0 {
		return errors.New(errors.ErrCodeSerialization, "response has no data")
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "decode response data")
	}
	return nil
}

func marshalData(data any) (json.RawMessage, error) {
	if data == nil {
		return nil, nil
	}
	if raw, ok := data.(json.RawMessage); ok {
		return raw, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "marshal payload")
	}
	return raw, nil
}
