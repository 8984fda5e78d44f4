package sources

import (
	"context"

	v1 "github.com/infracollect/s3zip/apis/v1"
	"github.com/infracollect/s3zip/internal/engine"
	"github.com/infracollect/s3zip/internal/integrations/awss3"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	S3SourceKind         = "s3"
	FilesystemSourceKind = "filesystem"
)

func Register(registry *engine.Registry) {
	registry.RegisterSource(S3SourceKind, engine.NewSourceFactory(S3SourceKind, newS3Source))
	registry.RegisterSource(FilesystemSourceKind, engine.NewSourceFactory(FilesystemSourceKind, newFilesystemSource))
}

func newS3Source(ctx context.Context, _ *zap.Logger, spec *v1.S3SourceSpec) (engine.Source, error) {
	cfg := S3Config{
		Config: awss3.ConfigFromConnection(spec.S3Connection),
		Bucket: spec.Bucket,
	}
	if spec.Prefix != nil {
		cfg.Prefix = *spec.Prefix
	}
	source, err := NewS3Source(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return source, nil
}

func newFilesystemSource(_ context.Context, _ *zap.Logger, spec *v1.FilesystemSourceSpec) (engine.Source, error) {
	return NewFilesystemSource(afero.NewOsFs(), spec.Path), nil
}
