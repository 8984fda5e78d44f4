package runner

import (
	"bytes"
	"os"
	"testing"
	"time"

	v1 "github.com/infracollect/s3zip/apis/v1"
	"github.com/infracollect/s3zip/internal/engine"
	"github.com/infracollect/s3zip/internal/engine/sinks"
	"github.com/infracollect/s3zip/internal/engine/sources"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRegistry(stdout *bytes.Buffer) *engine.Registry {
	registry := engine.NewRegistry(zap.NewNop())
	sources.Register(registry)
	sinks.Register(registry, stdout)
	return registry
}

func TestBuildSink(t *testing.T) {
	outputDir := t.TempDir()

	tests := []struct {
		name     string
		output   *v1.OutputSpec
		wantKind string
		wantErr  bool
	}{
		{name: "no output", output: nil, wantKind: "stream"},
		{name: "no sink", output: &v1.OutputSpec{}, wantKind: "stream"},
		{name: "explicit stdout", output: &v1.OutputSpec{Sink: &v1.SinkSpec{Stdout: &v1.StdoutSinkSpec{}}}, wantKind: "stream"},
		{
			name:     "filesystem",
			output:   &v1.OutputSpec{Sink: &v1.SinkSpec{Filesystem: &v1.FilesystemSinkSpec{Path: lo.ToPtr(outputDir)}}},
			wantKind: "filesystem",
		},
		{name: "empty sink spec", output: &v1.OutputSpec{Sink: &v1.SinkSpec{}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := v1.ZipJob{Spec: v1.ZipJobSpec{Output: tt.output}}

			sink, err := buildSink(t.Context(), newTestRegistry(&bytes.Buffer{}), job)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, sink.Kind())
		})
	}
}

func TestBuildSource(t *testing.T) {
	registry := newTestRegistry(&bytes.Buffer{})

	t.Run("filesystem", func(t *testing.T) {
		job := v1.ZipJob{Spec: v1.ZipJobSpec{Source: v1.SourceSpec{
			Filesystem: &v1.FilesystemSourceSpec{Path: t.TempDir()},
		}}}

		source, err := buildSource(t.Context(), registry, job)
		require.NoError(t, err)
		assert.Equal(t, "filesystem", source.Kind())
	})

	t.Run("s3", func(t *testing.T) {
		job := v1.ZipJob{Spec: v1.ZipJobSpec{Source: v1.SourceSpec{
			S3: &v1.S3SourceSpec{
				Bucket: "exports",
				S3Connection: v1.S3Connection{
					Region: lo.ToPtr("eu-west-1"),
					Credentials: &v1.S3Credentials{
						AccessKeyID:     "key",
						SecretAccessKey: "secret",
					},
				},
			},
		}}}

		source, err := buildSource(t.Context(), registry, job)
		require.NoError(t, err)
		assert.Equal(t, "s3", source.Kind())
	})

	t.Run("no source", func(t *testing.T) {
		_, err := buildSource(t.Context(), registry, v1.ZipJob{})
		require.Error(t, err)
	})
}

func TestResolveArchive(t *testing.T) {
	tests := []struct {
		name    string
		archive *v1.ArchiveSpec
		want    archiveSettings
		wantErr string
	}{
		{
			name:    "defaults",
			archive: nil,
			want: archiveSettings{
				name:    "nightly.zip",
				level:   engine.CompressionDefault,
				workdir: os.TempDir(),
			},
		},
		{
			name: "all fields",
			archive: &v1.ArchiveSpec{
				Name:        "export.zip",
				Compression: "zstd",
				Workdir:     "/scratch",
				LockTimeout: lo.ToPtr(30),
			},
			want: archiveSettings{
				name:        "export.zip",
				level:       engine.CompressionZstd,
				workdir:     "/scratch",
				lockTimeout: 30 * time.Second,
			},
		},
		{
			name:    "path as name",
			archive: &v1.ArchiveSpec{Name: "../export.zip"},
			wantErr: "must be a file name",
		},
		{
			name:    "unknown compression",
			archive: &v1.ArchiveSpec{Compression: "lzma"},
			wantErr: "lzma",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := v1.ZipJob{
				Metadata: v1.Metadata{Name: "nightly"},
				Spec:     v1.ZipJobSpec{Archive: tt.archive},
			}

			got, err := resolveArchive(job)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
