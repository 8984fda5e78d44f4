// Package archive coordinates concurrent writes into a single on-disk archive.
//
// A Writer owns one archive file and the directory that contains it. Every
// AddEntry is a full read-modify-write cycle performed under an exclusive lock,
// so the archive on disk is always complete and valid between calls.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/infracollect/s3zip/internal/engine"
	"github.com/infracollect/s3zip/internal/engine/archivers"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// lockWeight is the weight a writer acquires. Readers acquire 1.
const lockWeight int64 = 1 << 30

type state int32

const (
	stateUninitialized state = iota
	stateReady
	stateDisposed
)

func (s state) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateReady:
		return "ready"
	case stateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Writer serializes additions to one archive file. It is safe for concurrent use,
// except that Initialize must complete before any other call, and no call may be
// in flight or started once Dispose has been called.
//
// The writer owns the archive's parent directory: Dispose removes it with
// everything inside, so the directory must be dedicated to the archive.
// Only one Writer may exist per archive path at a time.
type Writer struct {
	path        string
	level       engine.CompressionLevel
	fs          afero.Fs
	codec       engine.Codec
	logger      *zap.Logger
	lockTimeout time.Duration

	lock  *semaphore.Weighted
	state atomic.Int32
	claim string
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Writer) {
		w.logger = logger
	}
}

// WithFs sets the filesystem the archive directory lives on. Defaults to the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(w *Writer) {
		w.fs = fs
	}
}

// WithCodec replaces the archive codec. Defaults to a ZIP codec on the writer's filesystem.
func WithCodec(codec engine.Codec) Option {
	return func(w *Writer) {
		w.codec = codec
	}
}

// WithLockTimeout bounds how long an operation waits for the archive lock.
// Zero means wait until the caller's context is done.
func WithLockTimeout(timeout time.Duration) Option {
	return func(w *Writer) {
		w.lockTimeout = timeout
	}
}

// NewWriter creates a writer for the archive at path. It does not touch the filesystem.
func NewWriter(path string, level engine.CompressionLevel, opts ...Option) (*Writer, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: archive path is empty", ErrInvalidConfiguration)
	}

	path = filepath.Clean(path)
	if dir := filepath.Dir(path); dir == filepath.Dir(dir) {
		return nil, fmt.Errorf("%w: archive directory %q cannot be a root or the working directory", ErrInvalidConfiguration, dir)
	}

	if level == "" {
		level = engine.CompressionDefault
	}

	w := &Writer{
		path:  path,
		level: level,
		lock:  semaphore.NewWeighted(lockWeight),
	}
	for _, opt := range opts {
		opt(w)
	}

	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	w.logger = w.logger.With(zap.String("archive_path", w.path))
	if w.fs == nil {
		w.fs = afero.NewOsFs()
	}
	if w.codec == nil {
		w.codec = archivers.NewZipCodec(w.fs)
	}
	if w.lockTimeout < 0 {
		return nil, fmt.Errorf("%w: negative lock timeout %s", ErrInvalidConfiguration, w.lockTimeout)
	}

	claim, err := defaultRegistry.claim(w.path)
	if err != nil {
		return nil, err
	}
	w.claim = claim

	return w, nil
}

// Path returns the archive file path.
func (w *Writer) Path() string {
	return w.path
}

// Level returns the compression level applied to new entries.
func (w *Writer) Level() engine.CompressionLevel {
	return w.level
}

func (w *Writer) currentState() state {
	return state(w.state.Load())
}

// Initialize creates the archive directory and an empty archive, replacing any
// existing archive at the path. It must run before any concurrent use of the writer.
func (w *Writer) Initialize() error {
	if s := w.currentState(); s == stateDisposed {
		return fmt.Errorf("%w: cannot initialize a %s writer", ErrInvalidState, s)
	}

	dir := filepath.Dir(w.path)
	if err := w.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: failed to create archive directory %s: %w", ErrArchiveIO, dir, err)
	}

	if err := w.codec.CreateEmpty(w.path); err != nil {
		return fmt.Errorf("%w: failed to create empty archive: %w", ErrArchiveIO, err)
	}

	w.state.Store(int32(stateReady))
	w.logger.Debug("initialized archive")
	return nil
}

// AddEntry appends an entry read from data. The whole archive is re-read and
// rewritten while the exclusive lock is held, and data is consumed before AddEntry returns.
func (w *Writer) AddEntry(ctx context.Context, name string, data io.Reader) error {
	if name == "" {
		return fmt.Errorf("%w: entry name is empty", ErrInvalidEntry)
	}
	if data == nil {
		return fmt.Errorf("%w: entry %s has no data", ErrInvalidEntry, name)
	}

	w.logger.Debug("adding entry", zap.String("entry", name))

	release, err := w.acquire(ctx, lockWeight)
	if err != nil {
		return err
	}
	defer release()

	if err := w.requireReady("add entry"); err != nil {
		return err
	}

	handle, err := w.codec.Open(w.path)
	if err != nil {
		return fmt.Errorf("%w: failed to open archive: %w", ErrArchiveIO, err)
	}
	defer handle.Close()

	handle.SetCompressionLevel(w.level)

	if err := handle.AppendEntry(name, data); err != nil {
		return fmt.Errorf("%w: failed to append entry %s: %w", ErrArchiveIO, name, err)
	}

	if err := handle.Save(); err != nil {
		return fmt.Errorf("%w: failed to save archive: %w", ErrArchiveIO, err)
	}

	return nil
}

// Validate reports whether the archive is structurally valid. A missing, empty,
// or corrupt archive is reported as false with a nil error.
func (w *Writer) Validate(ctx context.Context) (bool, error) {
	release, err := w.acquire(ctx, 1)
	if err != nil {
		return false, err
	}
	defer release()

	if s := w.currentState(); s == stateDisposed {
		return false, fmt.Errorf("%w: cannot validate a %s writer", ErrInvalidState, s)
	}

	valid := w.codec.CheckIntegrity(w.path)
	if !valid {
		w.logger.Debug("archive failed integrity check")
	}
	return valid, nil
}

// Entries lists the names of the archive's entries in the order they were added.
func (w *Writer) Entries(ctx context.Context) ([]string, error) {
	release, err := w.acquire(ctx, 1)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := w.requireReady("list entries"); err != nil {
		return nil, err
	}

	names, err := w.codec.Entries(w.path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list entries: %w", ErrArchiveIO, err)
	}
	return names, nil
}

// Open returns a reader over the archive file and its size. The shared lock is
// held until the reader is closed, so AddEntry and Dispose wait for it.
func (w *Writer) Open(ctx context.Context) (io.ReadCloser, int64, error) {
	release, err := w.acquire(ctx, 1)
	if err != nil {
		return nil, 0, err
	}

	if err := w.requireReady("open"); err != nil {
		release()
		return nil, 0, err
	}

	f, err := w.fs.Open(w.path)
	if err != nil {
		release()
		return nil, 0, fmt.Errorf("%w: failed to open archive: %w", ErrArchiveIO, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		release()
		return nil, 0, fmt.Errorf("%w: failed to stat archive: %w", ErrArchiveIO, err)
	}

	return &lockedReader{File: f, release: release}, info.Size(), nil
}

// Dispose removes the archive's directory and everything in it. It waits for
// in-flight operations holding the lock. Disposing twice is a no-op.
func (w *Writer) Dispose(ctx context.Context) error {
	release, err := w.acquire(ctx, lockWeight)
	if err != nil {
		return err
	}
	defer release()

	if w.currentState() == stateDisposed {
		return nil
	}
	w.state.Store(int32(stateDisposed))
	defaultRegistry.release(w.claim)

	dir := filepath.Dir(w.path)
	if err := w.fs.RemoveAll(dir); err != nil {
		return fmt.Errorf("%w: failed to remove archive directory %s: %w", ErrArchiveIO, dir, err)
	}

	w.logger.Debug("disposed archive", zap.String("dir", dir))
	return nil
}

func (w *Writer) requireReady(op string) error {
	if s := w.currentState(); s != stateReady {
		return fmt.Errorf("%w: cannot %s on a %s writer", ErrInvalidState, op, s)
	}
	return nil
}

// acquire takes n units of the lock and returns the matching release func.
func (w *Writer) acquire(ctx context.Context, n int64) (func(), error) {
	if w.lockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.lockTimeout)
		defer cancel()
	}

	if err := w.lock.Acquire(ctx, n); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return nil, fmt.Errorf("failed to acquire archive lock: %w", err)
	}

	var once sync.Once
	return func() {
		once.Do(func() { w.lock.Release(n) })
	}, nil
}

// lockedReader releases the shared lock when closed.
type lockedReader struct {
	afero.File
	release func()
}

func (r *lockedReader) Close() error {
	defer r.release()
	return r.File.Close()
}
