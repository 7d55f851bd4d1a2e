package envelope

import (
	"encoding/json"

	"taskmq/errors"
)

// EncodeRequest 序列化请求信封
func EncodeRequest(req *Request) ([]byte, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "encode request envelope")
	}
	return raw, nil
}

// DecodeRequest 反序列化请求信封
//
// 格式非法或缺少 id 的信封返回序列化错误：这类消息无法做幂等
// 检查，由调度器按永久失败处理（死信，不重试）。
func DecodeRequest(raw []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode request envelope")
	}
	if req.ID == "" {
		return nil, errors.New(errors.ErrCodeSerialization, "request envelope has no id")
	}
	return &req, nil
}

// EncodeResponse 序列化响应信封
func EncodeResponse(resp *Response) ([]byte, error) {
	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "encode response envelope")
	}
	return raw, nil
}

// DecodeResponse 反序列化响应信封
func DecodeResponse(raw []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode response envelope")
	}
	return &resp, nil
}

// SalvageCorrelationID 从无法完整解码的消息体中尽力提取请求 id
//
// 反序列化失败的消息仍可能携带合法的 id 字段；能取到 id 就能给
// 调用方回一个错误响应而不是让它等到超时。取不到返回空串。
func SalvageCorrelationID(raw []byte) string {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil && probe.ID != "" {
		return probe.ID
	}

	// 整体解码失败时逐字段探测，容忍其余字段类型非法
	var loose map[string]json.RawMessage
	if err := json.Unmarshal(raw, &loose); err != nil {
		return ""
	}
	var id string
	if err := json.Unmarshal(loose["id"], &id); err != nil {
		return ""
	}
	return id
}
