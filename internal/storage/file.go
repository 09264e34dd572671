package storage

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"guild-economy/internal/dberr"
	"guild-economy/internal/docpath"
)

// FileEngine keeps the document in a single pretty-printed JSON file.
//
// Writes go straight to the target path; a crash mid-write can leave a
// truncated file. Only one process may write the file.
type FileEngine struct {
	path string
}

// NewFileEngine creates an engine backed by the file at path.
func NewFileEngine(path string) *FileEngine {
	return &FileEngine{path: path}
}

// Name implements Engine.
func (e *FileEngine) Name() string { return "json" }

// Path returns the target file path.
func (e *FileEngine) Path() string { return e.path }

// Connect creates the file (and its directory) with an empty document if it
// does not exist yet.
func (e *FileEngine) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.path == "" {
		return &dberr.Error{Kind: dberr.ErrMisconfigured, Op: "connect", Err: errors.New("storage path is empty")}
	}

	_, err := os.Stat(e.path)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, fs.ErrNotExist):
		return dberr.Unavailable("connect", err)
	}

	if dir := filepath.Dir(e.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return dberr.Unavailable("connect", err)
		}
	}
	if err := e.write(docpath.Document{}); err != nil {
		return dberr.Unavailable("connect", err)
	}

	log.Info().Str("path", e.path).Msg("Created storage file")
	return nil
}

// ReadAll implements Engine.
func (e *FileEngine) ReadAll(ctx context.Context) (docpath.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(e.path)
	if err != nil {
		return nil, dberr.Unavailable("read", err)
	}
	return decode("read", raw)
}

// WriteAll implements Engine.
func (e *FileEngine) WriteAll(ctx context.Context, doc docpath.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.write(doc); err != nil {
		return dberr.Unavailable("write", err)
	}
	return nil
}

func (e *FileEngine) write(doc docpath.Document) error {
	raw, err := encode(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(e.path, raw, 0o644)
}

// Check recreates a missing file and reports malformed content.
func (e *FileEngine) Check(ctx context.Context) (bool, error) {
	_, err := e.ReadAll(ctx)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, fs.ErrNotExist):
		log.Warn().Str("path", e.path).Msg("Storage file is missing, recreating it")
		if err := e.Connect(ctx); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, err
	}
}

// Close implements Engine.
func (e *FileEngine) Close() error { return nil }
