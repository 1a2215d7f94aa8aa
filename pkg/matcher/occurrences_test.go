package matcher

import (
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/cloudflare/ahocorasick"
	"github.com/praetorian-inc/kwmatch/pkg/automaton"
	"github.com/praetorian-inc/kwmatch/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bruteForce lists every occurrence by direct comparison.
func bruteForce(keywords []string, text string) []types.Hit {
	var hits []types.Hit
	for _, kw := range slices.Compact(slices.Sorted(slices.Values(keywords))) {
		if kw == "" {
			continue
		}
		for i := 0; i+len(kw) <= len(text); i++ {
			if text[i:i+len(kw)] == kw {
				hits = append(hits, hit(i, i+len(kw), kw))
			}
		}
	}
	return hits
}

func TestFindAll(t *testing.T) {
	tests := []struct {
		name     string
		keywords []string
		text     string
		want     []types.Hit
	}{
		{"prefix", []string{"abc", "bde"}, "abce", []types.Hit{hit(0, 3, "abc")}},
		{"failure link", []string{"abc", "bde"}, "abde", []types.Hit{hit(1, 4, "bde")}},
		{"runs", []string{"aaa", "bbb"}, "aabbbbbaaaaaa", []types.Hit{
			hit(2, 5, "bbb"), hit(3, 6, "bbb"), hit(4, 7, "bbb"),
			hit(7, 10, "aaa"), hit(8, 11, "aaa"), hit(9, 12, "aaa"), hit(10, 13, "aaa"),
		}},
		{"nested", []string{"aaa", "aa", "a"}, "aabbbbbaa", []types.Hit{
			hit(0, 1, "a"), hit(0, 2, "aa"), hit(1, 2, "a"),
			hit(7, 8, "a"), hit(7, 9, "aa"), hit(8, 9, "a"),
		}},
		{"emoji", []string{"👍", "🎉", "\u2764\uFE0F"}, "Hello👍World🎉Test\u2764\uFE0F", []types.Hit{
			hit(5, 9, "👍"), hit(14, 18, "🎉"), hit(22, 28, "\u2764\uFE0F"),
		}},
		{"emoji zwj", []string{"\U0001F468", "\U0001F468\u200D\U0001F469\u200D\U0001F467", "\U0001F469"}, "\U0001F468\u200D\U0001F469\u200D\U0001F467", []types.Hit{
			hit(0, 4, "\U0001F468"), hit(7, 11, "\U0001F469"), hit(0, 18, "\U0001F468\u200D\U0001F469\u200D\U0001F467"),
		}},
		{"emoji repeated", []string{"😀", "😀😀", "😀😀😀"}, "😀😀😀", []types.Hit{
			hit(0, 4, "😀"), hit(0, 8, "😀😀"), hit(4, 8, "😀"),
			hit(0, 12, "😀😀😀"), hit(4, 12, "😀😀"), hit(8, 12, "😀"),
		}},
		{"japanese", []string{"🍣", "寿司", "🍜"}, "今日は🍣寿司を食べました🍜", []types.Hit{
			hit(9, 13, "🍣"), hit(13, 19, "寿司"), hit(37, 41, "🍜"),
		}},
		{"no keywords", nil, "anything", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := automaton.New(tt.keywords...)
			got := FindAll(a, []byte(tt.text))
			assert.ElementsMatch(t, tt.want, got)
			assert.ElementsMatch(t, bruteForce(tt.keywords, tt.text), got)
		})
	}
}

func TestFindAll_OrderedByEndLongestFirst(t *testing.T) {
	a := automaton.New("a", "aa", "aaa")
	assert.Equal(t, []types.Hit{
		hit(0, 1, "a"),
		hit(0, 2, "aa"), hit(1, 2, "a"),
		hit(0, 3, "aaa"), hit(1, 3, "aa"), hit(2, 3, "a"),
	}, FindAll(a, []byte("aaa")))
}

func TestEachOccurrence_StopsEarly(t *testing.T) {
	a := automaton.New("a")
	n := 0
	EachOccurrence(a, []byte("aaaa"), func(types.Hit) bool {
		n++
		return n < 2
	})
	assert.Equal(t, 2, n)
}

func TestFindAll_AfterEdits(t *testing.T) {
	t.Run("basic", func(t *testing.T) {
		a := automaton.New("abc", "bcd")
		assert.ElementsMatch(t, []types.Hit{hit(0, 3, "abc"), hit(1, 4, "bcd")}, FindAll(a, []byte("abcde")))

		a.Add("cde")
		assert.ElementsMatch(t, []types.Hit{hit(0, 3, "abc"), hit(1, 4, "bcd"), hit(2, 5, "cde")}, FindAll(a, []byte("abcde")))

		a.Delete("bcd")
		assert.ElementsMatch(t, []types.Hit{hit(0, 3, "abc"), hit(2, 5, "cde")}, FindAll(a, []byte("abcde")))
	})

	t.Run("overlapping", func(t *testing.T) {
		a := automaton.New("a", "aa")
		text := []byte("aaa")
		assert.ElementsMatch(t, []types.Hit{hit(0, 1, "a"), hit(0, 2, "aa"), hit(1, 2, "a"), hit(1, 3, "aa"), hit(2, 3, "a")}, FindAll(a, text))

		a.Add("aaa")
		assert.ElementsMatch(t, []types.Hit{hit(0, 1, "a"), hit(0, 2, "aa"), hit(1, 2, "a"), hit(0, 3, "aaa"), hit(1, 3, "aa"), hit(2, 3, "a")}, FindAll(a, text))

		a.Delete("aa")
		assert.ElementsMatch(t, []types.Hit{hit(0, 1, "a"), hit(1, 2, "a"), hit(0, 3, "aaa"), hit(2, 3, "a")}, FindAll(a, text))

		a.Delete("a")
		a.Delete("aaa")
		assert.Empty(t, FindAll(a, text))

		a.Add("aa")
		assert.ElementsMatch(t, []types.Hit{hit(0, 2, "aa"), hit(1, 3, "aa")}, FindAll(a, text))
	})

	t.Run("failure link reconstruction", func(t *testing.T) {
		a := automaton.New("he", "she", "his", "hers")
		text := []byte("shershis")
		assert.ElementsMatch(t, []types.Hit{hit(0, 3, "she"), hit(1, 3, "he"), hit(1, 5, "hers"), hit(5, 8, "his")}, FindAll(a, text))

		a.Add("her")
		assert.ElementsMatch(t, []types.Hit{hit(0, 3, "she"), hit(1, 3, "he"), hit(1, 4, "her"), hit(1, 5, "hers"), hit(5, 8, "his")}, FindAll(a, text))

		a.Delete("she")
		assert.ElementsMatch(t, []types.Hit{hit(1, 3, "he"), hit(1, 4, "her"), hit(1, 5, "hers"), hit(5, 8, "his")}, FindAll(a, text))

		a.Add("sh")
		a.Delete("he")
		assert.ElementsMatch(t, []types.Hit{hit(0, 2, "sh"), hit(1, 4, "her"), hit(1, 5, "hers"), hit(4, 6, "sh"), hit(5, 8, "his")}, FindAll(a, text))
	})
}

func TestHasMatch(t *testing.T) {
	tests := []struct {
		keywords []string
		text     string
		want     bool
	}{
		{[]string{"abc", "bde"}, "abce", true},
		{[]string{"aac", "bde"}, "abde", true},
		{[]string{"aac", "bde"}, "abdec", true},
		{[]string{"aaa", "bbb"}, "aabbbbbaaaaaa", true},
		{[]string{"aaa", "aa", "a"}, "aabbbbbaa", true},
		{[]string{"abc", "bde"}, "abdf", false},
		{[]string{"test"}, "", false},
		{nil, "abc", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			a := automaton.New(tt.keywords...)
			assert.Equal(t, tt.want, HasMatch(a, []byte(tt.text)))
		})
	}
}

// Cross-checks against an independent Aho-Corasick implementation.
func TestFindAll_AgreesWithReferenceMatcher(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	word := func(n int) string {
		var sb strings.Builder
		for range n {
			sb.WriteByte("abc"[rng.IntN(3)])
		}
		return sb.String()
	}

	for range 200 {
		keywords := make([]string, 1+rng.IntN(6))
		for i := range keywords {
			keywords[i] = word(1 + rng.IntN(4))
		}
		keywords = slices.Compact(slices.Sorted(slices.Values(keywords)))
		text := word(rng.IntN(40))

		a := automaton.New(keywords...)
		ref := ahocorasick.NewStringMatcher(keywords)

		var want []string
		for _, i := range ref.Match([]byte(text)) {
			want = append(want, keywords[i])
		}
		want = slices.Compact(slices.Sorted(slices.Values(want)))
		var got []string
		for _, h := range FindAll(a, []byte(text)) {
			got = append(got, h.Keyword)
		}
		got = slices.Compact(slices.Sorted(slices.Values(got)))

		require.ElementsMatch(t, want, got, "keywords %q text %q", keywords, text)
		require.Equal(t, ref.Contains([]byte(text)), HasMatch(a, []byte(text)))
		require.ElementsMatch(t, bruteForce(keywords, text), FindAll(a, []byte(text)))
	}
}

func TestStream_AllModeMatchesFindAll(t *testing.T) {
	a := automaton.New("he", "she", "his", "hers")
	text := []byte("ushershisheshe")
	want := FindAll(a, text)

	for size := 1; size <= len(text); size++ {
		s := NewStream(a, ModeAll)
		var got []types.Hit
		for chunk := range Chunks(text, size) {
			got = append(got, s.Push(chunk)...)
		}
		got = append(got, s.Close()...)
		assert.Equal(t, want, got, "chunk size %d", size)
		assert.Equal(t, len(text), s.Offset())
	}
}
