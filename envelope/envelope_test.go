package envelope

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmq/errors"
)

// TestNewRequest 测试请求信封构造
func TestNewRequest(t *testing.T) {
	req, err := NewRequest("create_job", map[string]any{"title": "deploy"}, "Bearer tok")
	require.NoError(t, err)

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, Version, req.Version)
	assert.Equal(t, "create_job", req.Action)
	assert.Equal(t, "Bearer tok", req.Auth)
	assert.False(t, req.Timestamp.IsZero())

	// 两次构造的 id 不应重复
	req2, err := NewRequest("create_job", nil, "")
	require.NoError(t, err)
	assert.NotEqual(t, req.ID, req2.ID)
}

// TestRequest_RoundTrip 测试请求编解码往返
func TestRequest_RoundTrip(t *testing.T) {
	req, err := NewRequest("get_all_jobs", map[string]int{"page_number": 2, "page_size": 5}, "")
	require.NoError(t, err)

	raw, err := EncodeRequest(req)
	require.NoError(t, err)

	decoded, err := DecodeRequest(raw)
	require.NoError(t, err)
	assert.Equal(t, req.ID, decoded.ID)
	assert.Equal(t, req.Action, decoded.Action)
	assert.JSONEq(t, string(req.Data), string(decoded.Data))
}

// TestRequest_WireFormat 测试线上 JSON 字段名
func TestRequest_WireFormat(t *testing.T) {
	req, err := NewRequest("get_job", map[string]string{"job_id": "j-1"}, "Bearer x")
	require.NoError(t, err)

	raw, err := EncodeRequest(req)
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &fields))
	for _, key := range []string{"id", "version", "action", "data", "auth", "timestamp"} {
		assert.Contains(t, fields, key)
	}
}

// TestDecodeRequest_Malformed 非法 JSON 返回序列化错误
func TestDecodeRequest_Malformed(t *testing.T) {
	_, err := DecodeRequest([]byte(`{"id": "x", "action":`))
	assert.True(t, errors.IsCode(err, errors.ErrCodeSerialization))
}

// TestDecodeRequest_MissingID 缺少 id 视为非法信封
func TestDecodeRequest_MissingID(t *testing.T) {
	_, err := DecodeRequest([]byte(`{"action": "get_job", "version": "v1"}`))
	assert.True(t, errors.IsCode(err, errors.ErrCodeSerialization))
}

// TestResponse_RoundTrip 测试响应编解码往返
func TestResponse_RoundTrip(t *testing.T) {
	resp, err := OkResponse("corr-1", map[string]string{"job_id": "j-9"})
	require.NoError(t, err)
	assert.True(t, resp.IsOK())

	raw, err := EncodeResponse(resp)
	require.NoError(t, err)

	decoded, err := DecodeResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "corr-1", decoded.CorrelationID)
	assert.Equal(t, StatusOK, decoded.Status)

	var data map[string]string
	require.NoError(t, decoded.DecodeData(&data))
	assert.Equal(t, "j-9", data["job_id"])
}

// TestErrorResponse 错误响应仅携带 error 字段
func TestErrorResponse(t *testing.T) {
	resp := ErrorResponse("corr-2", "project not found")
	assert.False(t, resp.IsOK())

	raw, err := EncodeResponse(resp)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"data"`)
	assert.Contains(t, string(raw), "project not found")
}

// TestSalvageCorrelationID 测试从残缺消息中提取 id
func TestSalvageCorrelationID(t *testing.T) {
	// 完整合法
	assert.Equal(t, "abc", SalvageCorrelationID([]byte(`{"id":"abc","action":"x"}`)))

	// 其余字段类型非法，id 仍可提取
	assert.Equal(t, "abc", SalvageCorrelationID([]byte(`{"id":"abc","timestamp":12}`)))

	// 整体非 JSON
	assert.Equal(t, "", SalvageCorrelationID([]byte(`not json at all`)))

	// 没有 id 字段
	assert.Equal(t, "", SalvageCorrelationID([]byte(`{"action":"x"}`)))
}
