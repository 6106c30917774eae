// Package schema locates and reads validator documents (JSON Schema, OpenAPI,
// CUE) from files or fs.FS entries.
package schema

import (
	"errors"
	"path/filepath"
	"strings"
)

// Source identifies where a schema document originated so loaders can operate
// on files or fs.FS entries without leaking implementation details.
type Source interface {
	Kind() SourceKind
	Location() string
}

// SourceKind enumerates the loader modalities.
type SourceKind string

const (
	SourceKindFile SourceKind = "file"
	SourceKindFS   SourceKind = "fs"
)

type fileSource struct {
	path string
}

func (s fileSource) Location() string {
	return s.path
}

func (s fileSource) Kind() SourceKind {
	return SourceKindFile
}

// SourceFromFile returns a Source pointing to a file path.
func SourceFromFile(path string) Source {
	return fileSource{path: filepath.Clean(path)}
}

type fsSource struct {
	name string
}

func (s fsSource) Location() string {
	return s.name
}

func (s fsSource) Kind() SourceKind {
	return SourceKindFS
}

// SourceFromFS returns a Source identifying a resource inside an fs.FS.
func SourceFromFS(name string) Source {
	return fsSource{name: name}
}

// ParseSource maps a config value onto a file Source, resolved against
// baseDir when relative. URLs are rejected: documents are read locally.
func ParseSource(raw, baseDir string) (Source, error) {
	location := strings.TrimSpace(raw)
	if location == "" {
		return nil, errors.New("schema: source location is required")
	}
	if strings.Contains(location, "://") {
		return nil, errors.New("schema: remote sources are not supported: " + location)
	}
	if !filepath.IsAbs(location) && baseDir != "" {
		location = filepath.Join(baseDir, location)
	}
	return SourceFromFile(location), nil
}
