package types

import "slices"

// OffsetSpan is byte range [Start, End) - half-open interval.
type OffsetSpan struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// SourcePoint is line:column position (1-based).
type SourcePoint struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// SourceSpan is start-end line:column range.
type SourceSpan struct {
	Start SourcePoint `json:"start"`
	End   SourcePoint `json:"end"`
}

// Location combines byte offsets and source positions.
type Location struct {
	Offset OffsetSpan `json:"offset"`
	Source SourceSpan `json:"source"`
}

// LocationOf builds the Location of content[begin:end]. The end point is
// exclusive, like the byte span.
func LocationOf(content []byte, begin, end int) Location {
	line, col := ComputeLineColumn(content, begin)
	endLine, endCol := advance(content, begin, end, line, col)
	return Location{
		Offset: OffsetSpan{Start: int64(begin), End: int64(end)},
		Source: SourceSpan{
			Start: SourcePoint{Line: line, Column: col},
			End:   SourcePoint{Line: endLine, Column: endCol},
		},
	}
}

// ComputeLineColumn computes the 1-based line and column of byteOffset.
func ComputeLineColumn(content []byte, byteOffset int) (line, column int) {
	return advance(content, 0, byteOffset, 1, 1)
}

func advance(content []byte, from, to, line, column int) (int, int) {
	for i := from; i < to && i < len(content); i++ {
		if content[i] == '\n' {
			line++
			column = 1
		} else {
			column++
		}
	}
	return line, column
}

// LineIndex answers line:column queries for many offsets into the same
// content without rescanning it.
type LineIndex struct {
	newlines []int
	size     int
}

// NewLineIndex records the newline positions of content.
func NewLineIndex(content []byte) *LineIndex {
	x := &LineIndex{size: len(content)}
	for i, c := range content {
		if c == '\n' {
			x.newlines = append(x.newlines, i)
		}
	}
	return x
}

// Point returns the 1-based position of offset, clamped to the content.
func (x *LineIndex) Point(offset int) SourcePoint {
	offset = max(0, min(offset, x.size))
	line, _ := slices.BinarySearch(x.newlines, offset)
	start := 0
	if line > 0 {
		start = x.newlines[line-1] + 1
	}
	return SourcePoint{Line: line + 1, Column: offset - start + 1}
}

// Location builds the Location of [begin, end).
func (x *LineIndex) Location(begin, end int) Location {
	return Location{
		Offset: OffsetSpan{Start: int64(begin), End: int64(end)},
		Source: SourceSpan{Start: x.Point(begin), End: x.Point(end)},
	}
}
