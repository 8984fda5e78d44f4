package sources

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/infracollect/s3zip/internal/engine"
	"github.com/spf13/afero"
)

// FilesystemSource provides the regular files below a root directory.
type FilesystemSource struct {
	fs       afero.Fs
	root     string
	excludes []string
}

func NewFilesystemSource(fs afero.Fs, root string) *FilesystemSource {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FilesystemSource{fs: fs, root: filepath.Clean(root)}
}

// Exclude skips the given directories and everything below them when listing.
func (s *FilesystemSource) Exclude(dirs ...string) {
	for _, dir := range dirs {
		s.excludes = append(s.excludes, absPath(dir))
	}
}

func (s *FilesystemSource) excluded(path string) bool {
	abs := absPath(path)
	for _, dir := range s.excludes {
		if abs == dir || strings.HasPrefix(abs, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func (s *FilesystemSource) Name() string {
	return fmt.Sprintf("filesystem(%s)", s.root)
}

func (s *FilesystemSource) Kind() string {
	return "filesystem"
}

// List walks the root in lexical order. Entry names are slash separated paths relative to the root.
func (s *FilesystemSource) List(ctx context.Context) ([]engine.Object, error) {
	var objects []engine.Object

	err := afero.Walk(s.fs, s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.excluded(path) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", path, err)
		}

		objects = append(objects, engine.Object{
			Key:          path,
			Name:         filepath.ToSlash(rel),
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", s.root, err)
	}

	return objects, nil
}

func (s *FilesystemSource) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	f, err := s.fs.Open(key)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}
	return f, nil
}
