package types

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeBlobID(t *testing.T) {
	tests := []struct {
		name     string
		content  []byte
		expected string
	}{
		{
			name:     "empty content",
			content:  []byte(""),
			expected: "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391",
		},
		{
			name:     "hello world",
			content:  []byte("hello world"),
			expected: "95d09f2b10159347eece71399a7e2e907ea3df4f",
		},
		{
			name:     "trailing newline",
			content:  []byte("test content\n"),
			expected: "d670460b4b4aece5915caf5c68d12f560a9fe3e4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := ComputeBlobID(tt.content)
			assert.Equal(t, tt.expected, id.Hex())
			assert.Equal(t, tt.expected[:8], id.Short())
			assert.False(t, id.IsZero())
		})
	}
}

func TestParseBlobID(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expectErr bool
	}{
		{name: "valid hex", input: "123456789abcdef0123456789abcdef012345678"},
		{name: "uppercase", input: "ABCDEF0123456789ABCDEF0123456789ABCDEF01"},
		{name: "too short", input: "123456789abcdef0123456789abcdef01234567", expectErr: true},
		{name: "too long", input: "123456789abcdef0123456789abcdef0123456789", expectErr: true},
		{name: "invalid hex", input: "zzz456789abcdef0123456789abcdef012345678", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseBlobID(tt.input)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, strings.ToLower(tt.input), id.Hex())
		})
	}
}

func TestBlobID_JSON(t *testing.T) {
	id := ComputeBlobID([]byte("hello world"))

	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `"95d09f2b10159347eece71399a7e2e907ea3df4f"`, string(data))

	var back BlobID
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, id, back)

	assert.Error(t, json.Unmarshal([]byte(`123`), &back))
	assert.Error(t, json.Unmarshal([]byte(`"nothex"`), &back))
}

func TestBlobID_SQL(t *testing.T) {
	id := ComputeBlobID([]byte("hello world"))

	v, err := id.Value()
	require.NoError(t, err)
	assert.Equal(t, id.Hex(), v)

	var fromString, fromBytes BlobID
	require.NoError(t, fromString.Scan(id.Hex()))
	require.NoError(t, fromBytes.Scan([]byte(id.Hex())))
	assert.Equal(t, id, fromString)
	assert.Equal(t, id, fromBytes)

	assert.Error(t, fromString.Scan(nil))
	assert.Error(t, fromString.Scan(42))
	assert.True(t, BlobID{}.IsZero())
}
