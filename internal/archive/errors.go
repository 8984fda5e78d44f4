package archive

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration is returned when a writer is constructed with unusable settings.
	ErrInvalidConfiguration = errors.New("archive: invalid configuration")

	// ErrPathInUse is returned when another live writer already owns the archive path.
	ErrPathInUse = fmt.Errorf("%w: archive path already has a writer", ErrInvalidConfiguration)

	// ErrArchiveIO is returned when the archive cannot be opened, appended to, or saved.
	ErrArchiveIO = errors.New("archive: io failure")

	// ErrInvalidState is returned when an operation is not allowed in the writer's current state.
	ErrInvalidState = errors.New("archive: invalid state")

	// ErrInvalidEntry is returned for entries without a name.
	ErrInvalidEntry = errors.New("archive: invalid entry")

	// ErrTimeout is returned when the archive lock could not be acquired in time.
	ErrTimeout = errors.New("archive: lock acquisition timed out")
)
