package types

import (
	"fmt"
	"time"
)

// Provenance tracks where a blob was discovered.
type Provenance interface {
	Kind() string
	// Path returns displayable path (if applicable)
	Path() string
}

// FileProvenance for filesystem files.
type FileProvenance struct {
	FilePath string `json:"path"`
}

func (f FileProvenance) Kind() string { return "file" }
func (f FileProvenance) Path() string { return f.FilePath }

// StreamProvenance for content read from a pipe or a request body.
type StreamProvenance struct {
	Name string `json:"name"` // "stdin", a request source label, ...
}

func (s StreamProvenance) Kind() string { return "stream" }
func (s StreamProvenance) Path() string { return s.Name }

// GitProvenance for git repository blobs.
type GitProvenance struct {
	RepoPath string          `json:"repo_path"`
	Commit   *CommitMetadata `json:"commit,omitempty"` // nil when scanning a tree without history
	BlobPath string          `json:"blob_path"`
}

func (g GitProvenance) Kind() string { return "git" }
func (g GitProvenance) Path() string { return g.BlobPath }

// CommitMetadata holds git commit information.
type CommitMetadata struct {
	CommitID        string    `json:"commit_id"`
	AuthorName      string    `json:"author_name"`
	AuthorEmail     string    `json:"author_email"`
	AuthorTimestamp time.Time `json:"author_timestamp"`
	Message         string    `json:"message"`
}

// ArchiveProvenance tracks content extracted from archives and documents.
type ArchiveProvenance struct {
	ArchivePath string `json:"archive_path"`
	MemberPath  string `json:"member_path"` // e.g., "word/document.xml"
}

func (a ArchiveProvenance) Kind() string { return "archive" }
func (a ArchiveProvenance) Path() string { return a.ArchivePath + ":" + a.MemberPath }

// ObjectProvenance for objects read from cloud object storage.
type ObjectProvenance struct {
	Service   string `json:"service"` // "s3" or "azblob"
	Container string `json:"container"`
	Key       string `json:"key"`
}

func (o ObjectProvenance) Kind() string { return "object" }

func (o ObjectProvenance) Path() string {
	return fmt.Sprintf("%s://%s/%s", o.Service, o.Container, o.Key)
}

// ExtendedProvenance for sources with no dedicated type.
type ExtendedProvenance struct {
	Payload map[string]any `json:"payload"`
}

func (e ExtendedProvenance) Kind() string { return "extended" }
func (e ExtendedProvenance) Path() string { return "" }
