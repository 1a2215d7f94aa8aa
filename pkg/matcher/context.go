package matcher

import "bytes"

// ExtractContext returns up to lines lines of text before content[start:end]
// and after it. The match line itself counts as the first line on each
// side. Results are copies so a stored snippet does not pin content.
func ExtractContext(content []byte, start, end int, lines int) (before, after []byte) {
	if lines <= 0 || start < 0 || end > len(content) || start > end {
		return nil, nil
	}
	if b := contextBefore(content, start, lines); len(b) > 0 {
		before = bytes.Clone(b)
	}
	if a := contextAfter(content, end, lines); len(a) > 0 {
		after = bytes.Clone(a)
	}
	return before, after
}

// contextBefore walks back over lines newlines from start and returns the
// text from the beginning of the line holding the last one.
func contextBefore(content []byte, start, lines int) []byte {
	from := start
	for n := 0; ; n++ {
		i := bytes.LastIndexByte(content[:from], '\n')
		if i < 0 {
			return content[:start]
		}
		if n == lines {
			return content[i+1 : start]
		}
		from = i
	}
}

// contextAfter returns the text after end through the lines-th newline.
// A newline right at end belongs to the match line and is skipped.
func contextAfter(content []byte, end, lines int) []byte {
	if end >= len(content) {
		return nil
	}
	from := end
	if content[from] == '\n' {
		from++
	}
	to := from
	for n := 0; n < lines && to < len(content); n++ {
		i := bytes.IndexByte(content[to:], '\n')
		if i < 0 {
			return content[from:]
		}
		to += i + 1
	}
	return content[from:to]
}
