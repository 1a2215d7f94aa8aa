package matcher

import (
	"slices"
	"strings"
	"testing"

	"github.com/praetorian-inc/kwmatch/pkg/automaton"
	"github.com/stretchr/testify/assert"
)

func wrap(keyword string) string { return "[" + keyword + "]" }

func bytesChunks(parts ...string) [][]byte {
	out := make([][]byte, len(parts))
	for i, p := range parts {
		out[i] = []byte(p)
	}
	return out
}

func TestReplace(t *testing.T) {
	tests := []struct {
		name     string
		keywords []string
		chunks   []string
		fn       ReplaceFunc
		want     string
	}{
		{"single keyword", []string{"abc"}, []string{"hello abc world"}, Constant("XXX"), "hello XXX world"},
		{"multiple keywords", []string{"abc", "world"}, []string{"hello abc world"}, wrap, "hello [abc] [world]"},
		{"across boundary", []string{"abc"}, []string{"hello a", "bc world"}, Constant("XXX"), "hello XXX world"},
		{"multiple across boundaries", []string{"abc", "def"}, []string{"ab", "cd", "ef"}, wrap, "[abc][def]"},
		{"longest at same begin", []string{"a", "ab", "abc"}, []string{"abc"}, wrap, "[abc]"},
		{"non-overlapping", []string{"ab", "ba", "aba"}, []string{"ababa"}, wrap, "[aba][ba]"},
		{"non-overlapping bytewise", []string{"ab", "ba", "aba"}, []string{"a", "b", "a", "b", "a"}, wrap, "[aba][ba]"},
		{"no matches", []string{"xyz"}, []string{"hello world"}, Constant("XXX"), "hello world"},
		{"empty input", []string{"test"}, []string{""}, Constant("XXX"), ""},
		{"multibyte", []string{"シロナ", "ガス", "クジラ"}, []string{"シロナガスクジラ"}, wrap, "[シロナ][ガス][クジラ]"},
		{"multibyte gap", []string{"シロナ", "クジラ"}, []string{"シロナガスクジラ"}, wrap, "[シロナ]ガス[クジラ]"},
		{"multibyte across boundaries", []string{"シロナガス"}, []string{"シロ", "ナガ", "ス"}, Constant("XXX"), "XXX"},
		{"adjacent", []string{"aaa", "bbb"}, []string{"aaabbb"}, wrap, "[aaa][bbb]"},
		{"prefer longest", []string{"test", "testing", "tes"}, []string{"testing"}, wrap, "[testing]"},
		{"partial chunks", []string{"abcd"}, []string{"ab", "c", "d"}, Constant("XXXX"), "XXXX"},
		{"boundary at start", []string{"xyz"}, []string{"abc", "xyz", "def"}, wrap, "abc[xyz]def"},
		{"boundary at end", []string{"abc"}, []string{"xyz", "abc", "def"}, wrap, "xyz[abc]def"},
		{"failure link", []string{"abc", "bde"}, []string{"ab", "de"}, wrap, "a[bde]"},
		{"classic", []string{"he", "she", "his", "hers"}, []string{"sh", "eh", "is"}, wrap, "[she][his]"},
		{"repeated", []string{"aa", "aaa", "aaaa"}, []string{"aaaaaa"}, wrap, "[aaaa][aa]"},
		{"emoji", []string{"👍", "🎉"}, []string{"Hello👍World🎉"}, wrap, "Hello[👍]World[🎉]"},
		{"emoji across boundaries", []string{"\U0001F468\u200D\U0001F469\u200D\U0001F467"}, []string{"\U0001F468\u200D", "\U0001F469\u200D", "\U0001F467"}, Constant("[FAMILY]"), "[FAMILY]"},
		{"emoji split inside code point", []string{"👍"}, []string{"a\xf0\x9f", "\x91\x8db"}, wrap, "a[👍]b"},
		{"whitespace", []string{"hello world", " "}, []string{"hello world"}, wrap, "[hello world]"},
		{"fallback", []string{"abcdefgh", "bcd", "ef"}, []string{"abc", "defg", "x"}, wrap, "a[bcd][ef]gx"},
		{"partial at end", []string{"abcd"}, []string{"xyz", "ab"}, Constant("REPLACED"), "xyzab"},
		{"confirmed advance", []string{"dcbacbax", "ba", "cba", "dc", "cb", "a"}, []string{"dcb", "acb", "a"}, wrap, "[dc][ba][cba]"},
		{"uppercase words", []string{"the", "quick", "brown", "fox", "jumps", "over", "lazy", "dog"},
			[]string{"the", " quick", " brown", " fox", " jumps", " over", " the", " lazy", " dog"},
			strings.ToUpper, "THE QUICK BROWN FOX JUMPS OVER THE LAZY DOG"},
		{"interleaved", []string{"ab", "cd", "ef", "gh", "ij"}, []string{"a", "b", "x", "c", "d", "y", "e", "f", "z", "g", "h", "i", "j"}, wrap, "[ab]x[cd]y[ef]z[gh][ij]"},
		{"varying chunks", []string{"testing", "test", "ing", "best", "rest"},
			[]string{"te", "stin", "g is", " the ", "be", "st for", " res", "ting"}, wrap, "[testing] is the [best] for [rest][ing]"},
		{"deep failure links", []string{"ababc", "abc", "bab", "bc", "c"}, []string{"a", "ba", "ba", "cb", "c"}, wrap, "a[bab]a[c][bc]"},
		{"japanese", []string{"こんにちは", "世界", "プログラミング", "楽しい"},
			[]string{"こん", "にち", "は、", "世", "界！", "プロ", "グラ", "ミン", "グは", "楽", "しい"}, wrap, "[こんにちは]、[世界]！[プログラミング]は[楽しい]"},
		{"redaction", []string{"user123", "password", "email@example.com", "2024"},
			[]string{"user", "12", "3:", "pas", "swor", "d:", "ema", "il@", "exa", "mple", ".com", ",20", "24"}, Constant("[REDACTED]"), "[REDACTED]:[REDACTED]:[REDACTED],[REDACTED]"},
		{"nested accumulation", []string{"a", "aa", "aaa", "aaaa", "aaaaa", "aaaaaa"},
			[]string{"a", "a", "a", "a", "a", "a", "b", "a", "a", "a", "a"}, wrap, "[aaaaaa]b[aaaa]"},
		{"html", []string{"<script>", "</script>", "<style>", "</style>", "onclick"},
			[]string{"<di", "v o", "ncl", "ick", "=\"a", "lert", "()\">", "<sc", "rip", "t>a", "lert", "()</", "scr", "ipt", ">"},
			Constant("[REMOVED]"), "<div [REMOVED]=\"alert()\">[REMOVED]alert()[REMOVED]"},
		{"pathological", []string{"abcdefgh", "bcdefgh", "cdefgh", "defgh", "efgh", "fgh", "gh", "h"},
			[]string{"a", "b", "c", "d", "e", "f", "g", "h", "i"}, wrap, "[abcdefgh]i"},
		{"incomplete at chunk ends", []string{"match1", "match2", "match3"},
			[]string{"no", "mat", "ch h", "ere", " mat", "ch1 ", "and ", "mat", "ch2", " plu", "s ma", "tch3"}, wrap, "nomatch here [match1] and [match2] plus [match3]"},
		{"delete keyword", []string{"secret"}, []string{"my secret key"}, Constant(""), "my  key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := automaton.New(tt.keywords...)
			var sb strings.Builder
			for s := range Replace(a, slices.Values(bytesChunks(tt.chunks...)), tt.fn) {
				sb.WriteString(s)
			}
			assert.Equal(t, tt.want, sb.String())
			assert.Equal(t, tt.want, ReplaceAll(a, []byte(strings.Join(tt.chunks, "")), tt.fn))
		})
	}
}

func TestReplace_LongKeywordAcrossManyChunks(t *testing.T) {
	long := strings.Repeat("a", 1000)
	a := automaton.New(long)

	var sb strings.Builder
	for s := range Replace(a, Chunks([]byte(long), 10), Constant("LONG")) {
		sb.WriteString(s)
	}
	assert.Equal(t, "LONG", sb.String())
}

func TestReplace_FunctionSeesKeywordsInOrder(t *testing.T) {
	a := automaton.New("abc", "def")
	var seen []string
	ReplaceAll(a, []byte("abcdef"), func(kw string) string {
		seen = append(seen, kw)
		return wrap(kw)
	})
	assert.Equal(t, []string{"abc", "def"}, seen)
}

func TestReplace_IdentityRoundTrip(t *testing.T) {
	a := automaton.New("he", "she", "his", "hers")
	text := "ushers and his sheep, she said"
	for size := 1; size <= len(text); size++ {
		var sb strings.Builder
		for s := range Replace(a, Chunks([]byte(text), size), Identity) {
			sb.WriteString(s)
		}
		assert.Equal(t, text, sb.String(), "chunk size %d", size)
	}
}

func TestReplacer_BufferIsBounded(t *testing.T) {
	a := automaton.New("needle", "needles")
	r := NewReplacer(a, Mask('*'))

	var sb strings.Builder
	chunk := []byte("hay hay hay needle hay ")
	for range 1000 {
		for _, s := range r.Push(chunk) {
			sb.WriteString(s)
		}
		assert.LessOrEqual(t, r.Buffered(), len("needles")+len(chunk))
	}
	for _, s := range r.Close() {
		sb.WriteString(s)
	}
	assert.Equal(t, strings.Repeat("hay hay hay ****** hay ", 1000), sb.String())
	assert.Nil(t, r.Push([]byte("needle")))
}

func TestMask(t *testing.T) {
	assert.Equal(t, "****", Mask('*')("abcd"))
	assert.Equal(t, "x", Constant("x")("anything"))
	assert.Equal(t, "same", Identity("same"))
}
