package enum

import (
	"context"
	"testing"

	"github.com/praetorian-inc/kwmatch/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticEnumerator yields fixed contents.
type staticEnumerator []string

func (s staticEnumerator) Enumerate(ctx context.Context, fn Callback) error {
	for _, c := range s {
		if err := canceled(ctx); err != nil {
			return err
		}
		if err := fn(NewBlob([]byte(c), types.StreamProvenance{Name: c})); err != nil {
			return err
		}
	}
	return nil
}

func TestCombinedEnumerator(t *testing.T) {
	tests := []struct {
		name  string
		enums []Enumerator
		want  []string
	}{
		{"empty", nil, nil},
		{"single", []Enumerator{staticEnumerator{"a", "b"}}, []string{"a", "b"}},
		{"dedupes across enumerators", []Enumerator{staticEnumerator{"a", "b"}, staticEnumerator{"b", "c", "a"}}, []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := enumerate(t, NewCombinedEnumerator(tt.enums...))
			assert.Equal(t, tt.want, c.paths())
		})
	}
}

func TestCombinedEnumerator_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewCombinedEnumerator(staticEnumerator{"a"}).Enumerate(ctx, func(Blob) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}
