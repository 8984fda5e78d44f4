package engine

import (
	"context"
	"io"
)

// Sink is an output destination for the finished archive.
type Sink interface {
	Named
	Closer
	// Write stores data under path. Implementations decide what path means
	// (a file name, an object key, or nothing for streams).
	Write(ctx context.Context, path string, data io.Reader) error
}
