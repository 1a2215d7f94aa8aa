package enum

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/praetorian-inc/kwmatch/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemEnumerator(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "password one")
	writeFile(t, filepath.Join(dir, "sub", "b.txt"), "token two")

	c := enumerate(t, NewFilesystemEnumerator(Config{Root: dir}))
	assert.Equal(t, []string{filepath.Join(dir, "a.txt"), filepath.Join(dir, "sub", "b.txt")}, c.paths())

	for _, b := range c.blobs {
		assert.Equal(t, types.ComputeBlobID(b.Content), b.ID)
		assert.Equal(t, "file", b.Provenance.Kind())
	}
}

func TestFilesystemEnumerator_SingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.txt")
	writeFile(t, path, "just me")

	c := enumerate(t, NewFilesystemEnumerator(Config{Root: path}))
	assert.Equal(t, map[string]string{path: "just me"}, c.contents())
}

func TestFilesystemEnumerator_Filters(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "visible.txt"), "v")
	writeFile(t, filepath.Join(dir, ".hidden"), "h")
	writeFile(t, filepath.Join(dir, ".secret", "inner.txt"), "i")
	writeFile(t, filepath.Join(dir, ".git", "config"), "c")
	writeFile(t, filepath.Join(dir, "big.txt"), string(bytes.Repeat([]byte("x"), 100)))
	writeFile(t, filepath.Join(dir, "bin.dat"), "a\x00b")
	writeFile(t, filepath.Join(dir, ".gitignore"), "ignored/\n*.log\n")
	writeFile(t, filepath.Join(dir, "ignored", "x.txt"), "x")
	writeFile(t, filepath.Join(dir, "app.log"), "l")

	tests := []struct {
		name   string
		config Config
		want   []string
	}{
		{
			name:   "defaults",
			config: Config{Root: dir},
			want:   []string{"big.txt", "visible.txt"},
		},
		{
			name:   "include hidden",
			config: Config{Root: dir, IncludeHidden: true},
			want:   []string{".gitignore", ".hidden", ".secret/inner.txt", "big.txt", "visible.txt"},
		},
		{
			name:   "max size",
			config: Config{Root: dir, MaxFileSize: 10},
			want:   []string{"visible.txt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := enumerate(t, NewFilesystemEnumerator(tt.config))
			var want []string
			for _, w := range tt.want {
				want = append(want, filepath.Join(dir, filepath.FromSlash(w)))
			}
			assert.Equal(t, want, c.paths())
		})
	}
}

func TestFilesystemEnumerator_Decompress(t *testing.T) {
	dir := t.TempDir()

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write([]byte("gzip password"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	writeFile(t, filepath.Join(dir, "a.txt.gz"), gz.String())

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	writeFile(t, filepath.Join(dir, "b.txt.zst"), string(enc.EncodeAll([]byte("zstd token"), nil)))
	enc.Close()

	c := enumerate(t, NewFilesystemEnumerator(Config{Root: dir, Decompress: true}))
	assert.Equal(t, map[string]string{
		filepath.Join(dir, "a.txt.gz"):  "gzip password",
		filepath.Join(dir, "b.txt.zst"): "zstd token",
	}, c.contents())

	// Without decompression both are binary and skipped.
	c = enumerate(t, NewFilesystemEnumerator(Config{Root: dir}))
	assert.Empty(t, c.blobs)
}

func TestFilesystemEnumerator_ExtractZip(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("conf/app.env")
	require.NoError(t, err)
	_, err = w.Write([]byte("API_TOKEN=abc"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	archive := filepath.Join(dir, "bundle.zip")
	writeFile(t, archive, buf.String())

	c := enumerate(t, NewFilesystemEnumerator(Config{Root: dir, ExtractArchives: "zip"}))
	require.Len(t, c.blobs, 1)
	assert.Equal(t, types.ArchiveProvenance{ArchivePath: archive, MemberPath: "conf/app.env"}, c.blobs[0].Provenance)
	assert.Equal(t, "API_TOKEN=abc", string(c.blobs[0].Content))

	// Unselected archives are binary and skipped.
	c = enumerate(t, NewFilesystemEnumerator(Config{Root: dir, ExtractArchives: "pdf"}))
	assert.Empty(t, c.blobs)
}

func TestFilesystemEnumerator_CallbackError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "a")
	stop := errors.New("stop")

	err := NewFilesystemEnumerator(Config{Root: dir}).Enumerate(context.Background(), func(Blob) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestFilesystemEnumerator_ContextCancellation(t *testing.T) {
	dir := t.TempDir()
	for i := range 20 {
		writeFile(t, filepath.Join(dir, string(rune('a'+i))+".txt"), "x")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewFilesystemEnumerator(Config{Root: dir}).Enumerate(ctx, func(Blob) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFilesystemEnumerator_MissingRoot(t *testing.T) {
	err := NewFilesystemEnumerator(Config{Root: filepath.Join(t.TempDir(), "nope")}).
		Enumerate(context.Background(), func(Blob) error { return nil })
	assert.Error(t, err)
}

func TestIsHidden(t *testing.T) {
	assert.True(t, isHidden(".env"))
	assert.False(t, isHidden("env"))
	assert.False(t, isHidden("."))
	assert.False(t, isHidden(".."))
}

func TestShouldExtract(t *testing.T) {
	assert.False(t, shouldExtract(Config{}, ".zip"))
	assert.True(t, shouldExtract(Config{ExtractArchives: "all"}, ".7z"))
	assert.False(t, shouldExtract(Config{ExtractArchives: "all"}, ".txt"))
	assert.True(t, shouldExtract(Config{ExtractArchives: "docx, PDF"}, ".pdf"))
	assert.False(t, shouldExtract(Config{ExtractArchives: "docx"}, ".xlsx"))
}
