package sinks

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/infracollect/s3zip/internal/engine"
	"github.com/spf13/afero"
)

// FilesystemSink writes files below the root of an afero filesystem.
type FilesystemSink struct {
	fs afero.Fs
}

func NewFilesystemSink(fs afero.Fs) engine.Sink {
	return &FilesystemSink{fs: fs}
}

// NewFilesystemSinkFromPath creates a sink rooted at path, creating the directory if needed.
func NewFilesystemSinkFromPath(path string) (engine.Sink, error) {
	cleanPath := filepath.Clean(path)

	if err := os.MkdirAll(cleanPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", cleanPath, err)
	}

	return NewFilesystemSink(afero.NewBasePathFs(afero.NewOsFs(), cleanPath)), nil
}

func (s *FilesystemSink) Name() string {
	return fmt.Sprintf("filesystem(%s)", s.fs.Name())
}

func (s *FilesystemSink) Kind() string {
	return "filesystem"
}

// Write copies data to path through a temporary sibling file, so a partially
// written archive never appears under its final name.
func (s *FilesystemSink) Write(ctx context.Context, path string, data io.Reader) (err error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := s.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	f, err := afero.TempFile(s.fs, dir, "."+filepath.Base(path)+"-*.partial")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	tmpName := f.Name()
	defer func() {
		if err != nil {
			_ = s.fs.Remove(tmpName)
		}
	}()

	if _, err = io.Copy(f, data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write to file: %w", err)
	}

	if err = f.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err = s.fs.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}

	if err = s.fs.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}

	return nil
}

func (s *FilesystemSink) Close(ctx context.Context) error {
	return nil
}
