package engine

import (
	"context"
	"io"
	"time"
)

// Object is an item a Source can provide.
type Object struct {
	// Key identifies the object within its source and is what Open expects.
	Key string
	// Name is the entry name the object gets inside the archive, slash separated.
	Name         string
	Size         int64
	LastModified time.Time
}

// Source lists and opens objects to be collected into an archive.
type Source interface {
	Named
	List(ctx context.Context) ([]Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}
