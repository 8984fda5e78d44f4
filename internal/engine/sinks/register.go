package sinks

import (
	"context"
	"fmt"
	"io"
	"os"

	v1 "github.com/infracollect/s3zip/apis/v1"
	"github.com/infracollect/s3zip/internal/engine"
	"github.com/infracollect/s3zip/internal/integrations/awss3"
	"go.uber.org/zap"
)

const (
	StdoutSinkKind     = "stdout"
	FilesystemSinkKind = "filesystem"
	S3SinkKind         = "s3"
)

// Register adds the built-in sinks. The stdout sink writes to stdout.
func Register(registry *engine.Registry, stdout io.Writer) {
	registry.RegisterSink(StdoutSinkKind, engine.NewSinkFactory(StdoutSinkKind,
		func(context.Context, *zap.Logger, *v1.StdoutSinkSpec) (engine.Sink, error) {
			return NewStreamSink(stdout), nil
		},
	))
	registry.RegisterSink(FilesystemSinkKind, engine.NewSinkFactory(FilesystemSinkKind, newFilesystemSink))
	registry.RegisterSink(S3SinkKind, engine.NewSinkFactory(S3SinkKind, newS3Sink))
}

// newFilesystemSink writes below spec.Path, or the working directory when it is unset.
func newFilesystemSink(_ context.Context, _ *zap.Logger, spec *v1.FilesystemSinkSpec) (engine.Sink, error) {
	var path string
	if spec.Path != nil {
		path = *spec.Path
	}

	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		path = wd
	}

	return NewFilesystemSinkFromPath(path)
}

func newS3Sink(ctx context.Context, _ *zap.Logger, spec *v1.S3SinkSpec) (engine.Sink, error) {
	cfg := S3Config{
		Config:   awss3.ConfigFromConnection(spec.S3Connection),
		Bucket:   spec.Bucket,
		PartSize: int64(spec.PartSizeMB) * 1024 * 1024,
	}
	if spec.Prefix != nil {
		cfg.Prefix = *spec.Prefix
	}
	return NewS3Sink(ctx, cfg)
}
