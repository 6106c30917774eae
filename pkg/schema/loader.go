package schema

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// LoaderOptions configures how a Loader resolves sources.
type LoaderOptions struct {
	// FileSystem backs SourceKindFS sources.
	FileSystem fs.FS
}

// LoaderOption mutates LoaderOptions prior to construction.
type LoaderOption func(*LoaderOptions)

// WithFileSystem injects an fs.FS implementation for fs sources.
func WithFileSystem(files fs.FS) LoaderOption {
	return func(opts *LoaderOptions) {
		opts.FileSystem = files
	}
}

// Loader reads raw schema documents.
type Loader struct {
	fs fs.FS
}

// NewLoader builds a Loader.
func NewLoader(options ...LoaderOption) *Loader {
	cfg := LoaderOptions{}
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Loader{fs: cfg.FileSystem}
}

// Load returns the raw bytes behind src.
func (l *Loader) Load(ctx context.Context, src Source) ([]byte, error) {
	if src == nil {
		return nil, errors.New("schema loader: source is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		data []byte
		err  error
	)
	switch src.Kind() {
	case SourceKindFile:
		if src.Location() == "" {
			return nil, errors.New("schema loader: file path is required")
		}
		data, err = os.ReadFile(src.Location())
	case SourceKindFS:
		if l.fs == nil {
			return nil, errors.New("schema loader: filesystem is not configured")
		}
		data, err = fs.ReadFile(l.fs, src.Location())
	default:
		err = fmt.Errorf("unsupported source kind %q", src.Kind())
	}
	if err != nil {
		return nil, fmt.Errorf("schema loader: %s %s: %w", src.Kind(), src.Location(), err)
	}
	return data, nil
}
