package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// BlobStore keeps scanned content addressed by blob ID, zstd-compressed.
type BlobStore struct {
	Root string

	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewBlobStore creates the blob directory under root.
func NewBlobStore(root string) (*BlobStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating blobs directory: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	return &BlobStore{Root: root, enc: enc, dec: dec}, nil
}

// Store writes content to blob storage and returns the blob ID.
// Blob ID is SHA-1 hash of content (same as git blob hashing).
func (b *BlobStore) Store(content []byte) (types.BlobID, error) {
	id := types.ComputeBlobID(content)

	// Content-addressable, so an existing blob is already correct.
	path := b.blobPath(id)
	if _, err := os.Stat(path); err == nil {
		return id, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return types.BlobID{}, fmt.Errorf("creating blob directory: %w", err)
	}

	// Write atomically using temp file + rename
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, b.enc.EncodeAll(content, nil), 0644); err != nil {
		return types.BlobID{}, fmt.Errorf("writing blob: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return types.BlobID{}, fmt.Errorf("renaming blob: %w", err)
	}

	return id, nil
}

// Get retrieves content by blob ID.
func (b *BlobStore) Get(id types.BlobID) ([]byte, error) {
	data, err := os.ReadFile(b.blobPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob not found: %s", id.Hex())
		}
		return nil, fmt.Errorf("reading blob: %w", err)
	}
	content, err := b.dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing blob %s: %w", id.Hex(), err)
	}
	return content, nil
}

// Exists checks if a blob exists in storage.
func (b *BlobStore) Exists(id types.BlobID) bool {
	_, err := os.Stat(b.blobPath(id))
	return err == nil
}

// Close releases the codec resources.
func (b *BlobStore) Close() {
	b.enc.Close()
	b.dec.Close()
}

// blobPath uses a git-style 2-char prefix: blobs/ab/cdef1234....zst
func (b *BlobStore) blobPath(id types.BlobID) string {
	hexID := id.Hex()
	return filepath.Join(b.Root, hexID[:2], hexID[2:]+".zst")
}
