package matcher

import (
	"bytes"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkContent_SmallFile(t *testing.T) {
	content := []byte("line1\nline2\nline3\n")
	chunks := ChunkContent(content, ChunkConfig{MaxChunkSize: 5 * 1024 * 1024})

	require.Len(t, chunks, 1)
	assert.Equal(t, content, chunks[0].Content)
	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, len(content), chunks[0].EndOffset())
	assert.Equal(t, 0, chunks[0].Index)
}

func TestChunkContent_LargeFile(t *testing.T) {
	content := bytes.Repeat([]byte("0123456789"), 25)
	chunks := ChunkContent(content, ChunkConfig{MaxChunkSize: 100})

	require.Len(t, chunks, 3)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, i*100, c.StartOffset)
	}
	assert.Equal(t, 250, chunks[2].EndOffset())
	assert.Len(t, chunks[2].Content, 50)
}

func TestChunkContent_CoversContentWithoutOverlap(t *testing.T) {
	content := bytes.Repeat([]byte("abc\n"), 1000)
	chunks := ChunkContent(content, ChunkConfig{MaxChunkSize: 333})

	var joined []byte
	prevEnd := 0
	for _, c := range chunks {
		assert.Equal(t, prevEnd, c.StartOffset)
		assert.Equal(t, content[c.StartOffset:c.EndOffset()], c.Content)
		joined = append(joined, c.Content...)
		prevEnd = c.EndOffset()
	}
	assert.Equal(t, content, joined)
}

func TestChunkContent_EmptyContent(t *testing.T) {
	chunks := ChunkContent(nil, DefaultChunkConfig())
	require.Len(t, chunks, 1)
	assert.Empty(t, chunks[0].Content)
}

func TestChunkContent_NonPositiveSize(t *testing.T) {
	content := []byte("whatever")
	chunks := ChunkContent(content, ChunkConfig{})
	require.Len(t, chunks, 1)
	assert.Equal(t, content, chunks[0].Content)
}

func TestChunks(t *testing.T) {
	got := slices.Collect(Chunks([]byte("abcdefg"), 3))
	assert.Equal(t, [][]byte{[]byte("abc"), []byte("def"), []byte("g")}, got)
}

func TestSplitAt(t *testing.T) {
	got := slices.Collect(SplitAt([]byte("abcdefg"), 2, 2, 5, 99))
	assert.Equal(t, []string{"ab", "", "cde", "fg", ""}, toStrings(got))
}

func TestDefaultChunkConfig(t *testing.T) {
	assert.Equal(t, 4*1024*1024, DefaultChunkConfig().MaxChunkSize)
}

func toStrings(chunks [][]byte) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = string(c)
	}
	return out
}
