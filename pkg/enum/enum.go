// Package enum discovers content to scan: files, git history, hosted
// repositories and object storage.
package enum

import (
	"bytes"
	"context"

	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// Blob is one unit of content found by an enumerator.
type Blob struct {
	ID         types.BlobID
	Content    []byte
	Provenance types.Provenance
}

// NewBlob computes the blob ID of content.
func NewBlob(content []byte, prov types.Provenance) Blob {
	return Blob{ID: types.ComputeBlobID(content), Content: content, Provenance: prov}
}

// Callback receives each blob. Returning an error stops the enumeration.
type Callback func(Blob) error

// Enumerator discovers content to scan from a source.
type Enumerator interface {
	// Enumerate yields blobs from the source. Enumerators may call fn from
	// several goroutines.
	Enumerate(ctx context.Context, fn Callback) error
}

// Config for enumeration.
type Config struct {
	// Root is the starting path for enumeration.
	Root string

	// IncludeHidden includes hidden files/directories (starting with .).
	IncludeHidden bool

	// MaxFileSize is the maximum file size to process (0 = no limit).
	MaxFileSize int64

	// FollowSymlinks follows symbolic links.
	FollowSymlinks bool

	// ExtractArchives enables text extraction from binary files
	// (comma-separated: xlsx,docx,pdf,zip,7z or 'all').
	ExtractArchives string

	// ExtractLimits bounds archive extraction.
	ExtractLimits ExtractLimits

	// Decompress transparently inflates .gz and .zst files.
	Decompress bool
}

// isBinary detects if content is binary by checking first 8KB for null bytes.
func isBinary(content []byte) bool {
	return bytes.IndexByte(content[:min(len(content), 8192)], 0) != -1
}

func canceled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

// emit applies decompression and extraction to content read from name,
// then yields the resulting blobs. Binary content that cannot be extracted
// is dropped.
func emit(cfg Config, name string, content []byte, prov types.Provenance, fn Callback) error {
	if cfg.Decompress && IsCompressed(name) {
		out, err := Decompress(name, content, cfg.MaxFileSize)
		if err != nil {
			// Corrupt or oversized streams are skipped like binaries.
			return nil
		}
		content, name = out, StripCompressionExt(name)
	}

	if shouldExtract(cfg, getExtension(name)) {
		extracted, err := ExtractText(name, content, cfg.ExtractLimits)
		if err == nil && len(extracted) > 0 {
			for _, ec := range extracted {
				member := types.ArchiveProvenance{ArchivePath: prov.Path(), MemberPath: ec.Name}
				if err := fn(NewBlob(ec.Content, member)); err != nil {
					return err
				}
			}
			return nil
		}
	}

	if isBinary(content) {
		return nil
	}
	return fn(NewBlob(content, prov))
}
