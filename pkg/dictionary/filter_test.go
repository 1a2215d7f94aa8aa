package dictionary

import (
	"testing"

	"github.com/praetorian-inc/kwmatch/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePatterns(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"empty string returns empty slice", "", []string{}},
		{"single pattern", "kw.cred.*", []string{"kw.cred.*"}},
		{"multiple patterns comma-separated", "kw.a,kw.b,markers", []string{"kw.a", "kw.b", "markers"}},
		{"patterns with spaces are trimmed", " kw.a , kw.b ,, ", []string{"kw.a", "kw.b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParsePatterns(tt.input))
		})
	}
}

func TestFilter(t *testing.T) {
	dicts := []*types.Dictionary{
		{ID: "kw.credentials"},
		{ID: "kw.key-markers"},
		{ID: "kw.debug-markers"},
		{ID: "kw.placeholders"},
	}

	tests := []struct {
		name     string
		include  []string
		exclude  []string
		expected []string
	}{
		{
			name:     "no patterns keeps everything",
			expected: []string{"kw.credentials", "kw.key-markers", "kw.debug-markers", "kw.placeholders"},
		},
		{
			name:     "include markers only",
			include:  []string{"markers$"},
			expected: []string{"kw.key-markers", "kw.debug-markers"},
		},
		{
			name:     "exclude placeholders",
			exclude:  []string{"placeholders"},
			expected: []string{"kw.credentials", "kw.key-markers", "kw.debug-markers"},
		},
		{
			name:     "include markers then exclude debug",
			include:  []string{"markers"},
			exclude:  []string{"debug"},
			expected: []string{"kw.key-markers"},
		},
		{
			name:     "include pattern matches none",
			include:  []string{"kw.nomatch"},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filtered, err := Filter(dicts, FilterConfig{Include: tt.include, Exclude: tt.exclude})
			require.NoError(t, err)

			resultIDs := make([]string, 0)
			for _, d := range filtered {
				resultIDs = append(resultIDs, d.ID)
			}
			assert.Equal(t, tt.expected, resultIDs)
		})
	}
}

func TestFilter_InvalidPattern(t *testing.T) {
	_, err := Filter(nil, FilterConfig{Include: []string{"("}})
	assert.ErrorContains(t, err, "invalid regex pattern")

	_, err = Filter(nil, FilterConfig{Exclude: []string{"["}})
	assert.Error(t, err)
}
