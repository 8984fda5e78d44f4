package sinks

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/infracollect/s3zip/internal/archive"
	"github.com/infracollect/s3zip/internal/engine"
	"go.uber.org/zap"
)

// ArchiveSink collects every write into an on-disk archive. On Close it checks
// the archive, hands it to the inner sink under archiveName, and disposes the
// archive's working directory.
//
// Write is safe for concurrent use.
type ArchiveSink struct {
	inner       engine.Sink
	writer      *archive.Writer
	archiveName string
	logger      *zap.Logger
}

// NewArchiveSink wraps inner. The writer must already be initialized.
func NewArchiveSink(logger *zap.Logger, inner engine.Sink, writer *archive.Writer, archiveName string) *ArchiveSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveSink{
		inner:       inner,
		writer:      writer,
		archiveName: archiveName,
		logger:      logger,
	}
}

// Name returns the name of this sink.
func (s *ArchiveSink) Name() string {
	return fmt.Sprintf("archive(%s)->%s", s.archiveName, s.inner.Name())
}

// Kind returns the kind of this sink.
func (s *ArchiveSink) Kind() string {
	return "archive"
}

// Write adds data to the archive as an entry named path.
func (s *ArchiveSink) Write(ctx context.Context, path string, data io.Reader) error {
	if err := s.writer.AddEntry(ctx, path, data); err != nil {
		return fmt.Errorf("failed to add %s to archive: %w", path, err)
	}
	return nil
}

// Close ships the archive to the inner sink. The working directory is disposed
// whether or not shipping succeeds.
func (s *ArchiveSink) Close(ctx context.Context) (err error) {
	defer func() {
		// Dispose must run even when ctx is already cancelled.
		if disposeErr := s.writer.Dispose(context.WithoutCancel(ctx)); disposeErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to dispose archive: %w", disposeErr))
		}
	}()

	valid, err := s.writer.Validate(ctx)
	if err != nil {
		return fmt.Errorf("failed to validate archive: %w", err)
	}
	if !valid {
		return fmt.Errorf("archive %s failed integrity check", s.writer.Path())
	}

	reader, size, err := s.writer.Open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}

	s.logger.Info("shipping archive",
		zap.String("archive_name", s.archiveName),
		zap.String("sink", s.inner.Name()),
		zap.Int64("size_bytes", size),
	)

	writeErr := s.inner.Write(ctx, s.archiveName, reader)
	if err := errors.Join(writeErr, reader.Close()); err != nil {
		return fmt.Errorf("failed to write archive to sink: %w", err)
	}

	if err := s.inner.Close(ctx); err != nil {
		return fmt.Errorf("failed to close inner sink: %w", err)
	}

	return nil
}

// Abort disposes the archive without shipping it.
func (s *ArchiveSink) Abort(ctx context.Context) error {
	if err := s.writer.Dispose(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("failed to dispose archive: %w", err)
	}
	return nil
}
