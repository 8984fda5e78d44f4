package archivers

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/infracollect/s3zip/internal/engine"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
)

const archiveFileMode = 0644

// ZipCodec implements engine.Codec for ZIP archives stored on an afero filesystem.
type ZipCodec struct {
	fs afero.Fs
}

// NewZipCodec creates a ZIP codec backed by fs. A nil fs uses the OS filesystem.
func NewZipCodec(fs afero.Fs) *ZipCodec {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &ZipCodec{fs: fs}
}

// CreateEmpty writes an archive containing only an end of central directory record.
func (c *ZipCodec) CreateEmpty(path string) (err error) {
	f, err := c.fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create zip file: %w", err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	if err := zip.NewWriter(f).Close(); err != nil {
		return fmt.Errorf("failed to write empty zip: %w", err)
	}

	return nil
}

// Open loads the central directory of the archive at path. The handle keeps the
// file open until it is saved or closed.
func (c *ZipCodec) Open(path string) (engine.ArchiveHandle, error) {
	src, reader, err := c.openReader(path)
	if err != nil {
		return nil, err
	}

	return &zipHandle{
		fs:     c.fs,
		path:   path,
		src:    src,
		reader: reader,
		level:  engine.CompressionDefault,
	}, nil
}

// CheckIntegrity reads every entry to EOF so the reader verifies its CRC-32.
func (c *ZipCodec) CheckIntegrity(path string) bool {
	src, reader, err := c.openReader(path)
	if err != nil {
		return false
	}
	defer src.Close()

	for _, f := range reader.File {
		if err := drainEntry(f); err != nil {
			return false
		}
	}

	return true
}

// Entries returns entry names in central directory order.
func (c *ZipCodec) Entries(path string) ([]string, error) {
	src, reader, err := c.openReader(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	names := make([]string, 0, len(reader.File))
	for _, f := range reader.File {
		names = append(names, f.Name)
	}
	return names, nil
}

func (c *ZipCodec) openReader(path string) (afero.File, *zip.Reader, error) {
	f, err := c.fs.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open zip file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to stat zip file: %w", err)
	}

	reader, err := zip.NewReader(f, info.Size())
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to read zip file %s: %w", path, err)
	}
	reader.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())

	return f, reader, nil
}

func drainEntry(f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	_, err = io.Copy(io.Discard, rc)
	return errors.Join(err, rc.Close())
}

// pendingEntry is an appended entry spooled to a temporary file until Save.
type pendingEntry struct {
	name  string
	spool string
}

type zipHandle struct {
	fs      afero.Fs
	path    string
	src     afero.File
	reader  *zip.Reader
	level   engine.CompressionLevel
	pending []pendingEntry
	closed  bool
}

func (h *zipHandle) SetCompressionLevel(level engine.CompressionLevel) {
	h.level = level
}

// AppendEntry spools data next to the archive so large streams are not held in memory.
func (h *zipHandle) AppendEntry(name string, data io.Reader) (err error) {
	if h.closed {
		return fmt.Errorf("archive handle is closed")
	}

	spool, err := afero.TempFile(h.fs, filepath.Dir(h.path), "."+filepath.Base(h.path)+"-entry-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create spool file: %w", err)
	}
	spoolName := spool.Name()

	_, copyErr := io.Copy(spool, data)
	closeErr := spool.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = h.fs.Remove(spoolName)
		return fmt.Errorf("failed to read entry %s: %w", name, err)
	}

	h.pending = append(h.pending, pendingEntry{name: name, spool: spoolName})
	return nil
}

// Save rewrites the whole archive into a temporary file and renames it over the
// original, so readers never observe a partially written central directory.
func (h *zipHandle) Save() (err error) {
	if h.closed {
		return fmt.Errorf("archive handle is closed")
	}
	defer func() {
		err = errors.Join(err, h.Close())
	}()

	out, err := afero.TempFile(h.fs, filepath.Dir(h.path), "."+filepath.Base(h.path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary zip file: %w", err)
	}
	tmpName := out.Name()

	if err := h.writeTo(out); err != nil {
		_ = out.Close()
		_ = h.fs.Remove(tmpName)
		return err
	}

	if err := out.Close(); err != nil {
		_ = h.fs.Remove(tmpName)
		return fmt.Errorf("failed to close temporary zip file: %w", err)
	}

	// Temp files are created 0600.
	if err := h.fs.Chmod(tmpName, archiveFileMode); err != nil {
		_ = h.fs.Remove(tmpName)
		return fmt.Errorf("failed to set zip file mode: %w", err)
	}

	if err := h.src.Close(); err != nil {
		_ = h.fs.Remove(tmpName)
		return fmt.Errorf("failed to close zip file: %w", err)
	}
	h.src = nil

	if err := h.fs.Rename(tmpName, h.path); err != nil {
		_ = h.fs.Remove(tmpName)
		return fmt.Errorf("failed to replace zip file: %w", err)
	}

	return nil
}

func (h *zipHandle) writeTo(w io.Writer) error {
	zw := zip.NewWriter(w)
	method := registerCompressor(zw, h.level)

	for _, f := range h.reader.File {
		if err := zw.Copy(f); err != nil {
			return fmt.Errorf("failed to copy zip entry %s: %w", f.Name, err)
		}
	}

	for _, entry := range h.pending {
		if err := writeSpooled(h.fs, zw, entry, method); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to write zip central directory: %w", err)
	}

	return nil
}

func writeSpooled(fs afero.Fs, zw *zip.Writer, entry pendingEntry, method uint16) (err error) {
	f, err := fs.Open(entry.spool)
	if err != nil {
		return fmt.Errorf("failed to open spool file for %s: %w", entry.name, err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     entry.name,
		Method:   method,
		Modified: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to create zip entry %s: %w", entry.name, err)
	}

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to write zip entry %s: %w", entry.name, err)
	}

	return nil
}

// Close releases the source file and removes spool files. It is safe to call more than once.
func (h *zipHandle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true

	var errs error
	if h.src != nil {
		errs = errors.Join(errs, h.src.Close())
		h.src = nil
	}
	for _, entry := range h.pending {
		if err := h.fs.Remove(entry.spool); err != nil && !errors.Is(err, afero.ErrFileNotFound) {
			errs = errors.Join(errs, err)
		}
	}
	h.pending = nil

	return errs
}

// registerCompressor configures zw for level and returns the method new entries should use.
func registerCompressor(zw *zip.Writer, level engine.CompressionLevel) uint16 {
	switch level {
	case engine.CompressionNone:
		return zip.Store
	case engine.CompressionZstd:
		zw.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor())
		return zstd.ZipMethodWinZip
	}

	flateLevel := flate.DefaultCompression
	switch level {
	case engine.CompressionFastest:
		flateLevel = flate.BestSpeed
	case engine.CompressionBest:
		flateLevel = flate.BestCompression
	}

	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flateLevel)
	})
	return zip.Deflate
}
