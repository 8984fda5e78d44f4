package archive

import (
	"fmt"
	"path/filepath"
	"sync"
)

// registry tracks archive paths that have a live Writer. Writers for the same
// path would each hold their own lock and corrupt the archive.
type registry struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

var defaultRegistry = &registry{paths: make(map[string]struct{})}

// claim reserves path and returns the key to release it with.
func (r *registry) claim(path string) (string, error) {
	key, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: failed to resolve archive path %s: %w", ErrInvalidConfiguration, path, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.paths[key]; ok {
		return "", fmt.Errorf("%w: %s", ErrPathInUse, key)
	}
	r.paths[key] = struct{}{}
	return key, nil
}

func (r *registry) release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.paths, key)
}
