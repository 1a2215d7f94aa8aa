package matcher

import "iter"

// ChunkConfig configures how large content is fed to a stream.
type ChunkConfig struct {
	MaxChunkSize int // Maximum size of a chunk in bytes (default: 4MB)
}

// DefaultChunkConfig returns production defaults
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChunkSize: 4 * 1024 * 1024,
	}
}

// Chunk is a contiguous slice of content with its position.
type Chunk struct {
	Content     []byte // sub-slice of the original content
	StartOffset int    // Byte offset in original content where this chunk starts
	Index       int    // Chunk number (0-indexed)
}

// EndOffset is the offset just past the chunk.
func (c Chunk) EndOffset() int {
	return c.StartOffset + len(c.Content)
}

// ChunkContent splits content into consecutive chunks of at most
// MaxChunkSize bytes. Chunks do not overlap: streams carry automaton state
// across boundaries, so no keyword is lost at a split.
func ChunkContent(content []byte, config ChunkConfig) []Chunk {
	size := config.MaxChunkSize
	if size <= 0 || len(content) <= size {
		return []Chunk{{Content: content}}
	}
	chunks := make([]Chunk, 0, (len(content)+size-1)/size)
	for start := 0; start < len(content); start += size {
		end := min(start+size, len(content))
		chunks = append(chunks, Chunk{
			Content:     content[start:end],
			StartOffset: start,
			Index:       len(chunks),
		})
	}
	return chunks
}

// Chunks yields content in slices of at most size bytes.
func Chunks(content []byte, size int) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for _, c := range ChunkContent(content, ChunkConfig{MaxChunkSize: size}) {
			if !yield(c.Content) {
				return
			}
		}
	}
}

// SplitAt yields content cut at the given ascending offsets. Used to
// reproduce specific chunk boundaries.
func SplitAt(content []byte, offsets ...int) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		prev := 0
		for _, off := range offsets {
			off = max(prev, min(off, len(content)))
			if !yield(content[prev:off]) {
				return
			}
			prev = off
		}
		yield(content[prev:])
	}
}
