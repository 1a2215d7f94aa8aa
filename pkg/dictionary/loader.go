// Package dictionary loads, validates, filters and watches keyword
// dictionaries.
package dictionary

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/praetorian-inc/kwmatch/pkg/types"
	"gopkg.in/yaml.v3"
)

var (
	// ErrEmptyKeyword is returned for a dictionary that lists "".
	ErrEmptyKeyword = errors.New("empty keyword")

	// ErrNoDictionaries is returned when a source yields no dictionaries.
	ErrNoDictionaries = errors.New("no dictionaries found")
)

// Loader handles loading dictionaries from YAML and keyword list files.
type Loader struct {
	fs fs.FS // embedded filesystem for built-in dictionaries
}

// NewLoader creates a loader with built-in dictionaries from the embedded
// filesystem.
func NewLoader() *Loader {
	return &Loader{fs: builtinFS}
}

// NewLoaderWithFS creates a loader with a custom filesystem.
func NewLoaderWithFS(fsys fs.FS) *Loader {
	return &Loader{fs: fsys}
}

// Load parses a YAML document holding one or more dictionaries.
func (l *Loader) Load(data []byte) ([]*types.Dictionary, error) {
	var file yamlFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(file.Dictionaries) == 0 {
		return nil, ErrNoDictionaries
	}
	out := make([]*types.Dictionary, 0, len(file.Dictionaries))
	for _, yd := range file.Dictionaries {
		out = append(out, yd.convert())
	}
	return out, nil
}

// LoadFile loads a YAML file (.yml, .yaml) or a keyword list (any other
// extension, one keyword per line, '#' starts a comment line). A keyword
// list becomes a dictionary whose ID is derived from the file name.
func (l *Loader) LoadFile(path string) ([]*types.Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		dicts, err := l.Load(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return dicts, nil
	default:
		return []*types.Dictionary{ParseKeywordList(IDFromPath(path), data)}, nil
	}
}

// LoadPath loads a single file, or every dictionary file under a directory.
func (l *Loader) LoadPath(path string) ([]*types.Dictionary, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return l.LoadFile(path)
	}

	var out []*types.Dictionary
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !IsDictionaryFile(p) {
			return nil
		}
		dicts, err := l.LoadFile(p)
		if err != nil {
			return err
		}
		out = append(out, dicts...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoDictionaries)
	}
	return out, nil
}

// LoadBuiltin loads all built-in dictionaries from the embedded filesystem.
func (l *Loader) LoadBuiltin() ([]*types.Dictionary, error) {
	var out []*types.Dictionary
	err := fs.WalkDir(l.fs, "dictionaries", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".yml" {
			return nil
		}
		data, err := fs.ReadFile(l.fs, path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		dicts, err := l.Load(data)
		if err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		out = append(out, dicts...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ParseKeywordList builds a dictionary from newline separated keywords.
// Blank lines and lines starting with '#' are skipped; a trailing '\r' is
// dropped.
func ParseKeywordList(id string, data []byte) *types.Dictionary {
	d := &types.Dictionary{ID: id, Name: id}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		d.Keywords = append(d.Keywords, line)
	}
	d.StructuralID = d.ComputeStructuralID()
	return d
}

// IDFromPath derives a dictionary ID from a keyword list file name.
func IDFromPath(path string) string {
	base := filepath.Base(path)
	return "kw." + strings.TrimSuffix(base, filepath.Ext(base))
}

// IsDictionaryFile reports whether LoadPath picks up path.
func IsDictionaryFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml", ".txt", ".lst":
		return true
	}
	return false
}
