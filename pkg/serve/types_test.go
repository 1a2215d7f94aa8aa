package serve

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_ScanUnmarshal(t *testing.T) {
	input := `{"type":"scan","payload":{"content":"password=abc123","source":"test"}}`

	var req Request
	err := json.Unmarshal([]byte(input), &req)
	require.NoError(t, err)

	assert.Equal(t, "scan", req.Type)

	var payload ScanPayload
	err = json.Unmarshal(req.Payload, &payload)
	require.NoError(t, err)

	assert.Equal(t, "password=abc123", payload.Content)
	assert.Equal(t, "test", payload.Source)
}

func TestResponse_Marshal(t *testing.T) {
	resp := Response{
		Success: true,
		Type:    "ready",
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"success":true`)
	assert.Contains(t, string(data), `"type":"ready"`)
}

func TestStreamData_FlattensOutput(t *testing.T) {
	d := StreamData{Stream: "abc"}
	d.Output = []string{"x"}
	d.Offset = 4

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"stream":"abc","output":["x"],"offset":4}`, string(data))
}
