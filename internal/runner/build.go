package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	v1 "github.com/infracollect/s3zip/apis/v1"
	"github.com/infracollect/s3zip/internal/engine"
	"github.com/infracollect/s3zip/internal/engine/sinks"
	"github.com/infracollect/s3zip/internal/engine/sources"
)

// DefaultConcurrency is the number of objects fetched in parallel when the job does not say.
const DefaultConcurrency = 4

// BuildVariables creates the variables map for expansion.
// It includes built-in variables and reads allowed environment variables.
// If an allowed variable is not set, an error is returned.
func BuildVariables(job v1.ZipJob, allowedEnv []string) (map[string]string, error) {
	date := time.Now().UTC()
	variables := map[string]string{
		"JOB_NAME":         job.Metadata.Name,
		"JOB_DATE_ISO8601": date.Format(engine.ISO8601Basic),
		"JOB_DATE_RFC3339": date.Format(time.RFC3339),
	}

	var errs error
	for _, envName := range allowedEnv {
		val, ok := os.LookupEnv(envName)
		if !ok {
			errs = errors.Join(errs, fmt.Errorf("environment variable %q is not set", envName))
			continue
		}
		variables[envName] = val
	}

	if errs != nil {
		return nil, errs
	}

	return variables, nil
}

// buildSource creates the object source from the job spec.
func buildSource(ctx context.Context, registry *engine.Registry, job v1.ZipJob) (engine.Source, error) {
	spec := job.Spec.Source

	switch {
	case spec.S3 != nil:
		return registry.CreateSource(ctx, sources.S3SourceKind, spec.S3)
	case spec.Filesystem != nil:
		return registry.CreateSource(ctx, sources.FilesystemSourceKind, spec.Filesystem)
	default:
		return nil, fmt.Errorf("invalid source configuration: no source type specified")
	}
}

// buildSink creates the destination for the finished archive.
//
// Default behavior:
//   - No output spec: stdout sink
//   - No sink specified: stdout sink
//   - Explicit stdout sink: stdout sink
//   - Explicit filesystem sink: filesystem sink
//   - Explicit s3 sink: s3 sink
func buildSink(ctx context.Context, registry *engine.Registry, job v1.ZipJob) (engine.Sink, error) {
	output := job.Spec.Output
	if output == nil || output.Sink == nil {
		return registry.CreateSink(ctx, sinks.StdoutSinkKind, &v1.StdoutSinkSpec{})
	}

	switch sink := output.Sink; {
	case sink.Stdout != nil:
		return registry.CreateSink(ctx, sinks.StdoutSinkKind, sink.Stdout)
	case sink.Filesystem != nil:
		return registry.CreateSink(ctx, sinks.FilesystemSinkKind, sink.Filesystem)
	case sink.S3 != nil:
		return registry.CreateSink(ctx, sinks.S3SinkKind, sink.S3)
	default:
		return nil, fmt.Errorf("invalid sink configuration: no sink type specified")
	}
}

// archiveSettings resolves the archive spec with its defaults.
type archiveSettings struct {
	name        string
	level       engine.CompressionLevel
	workdir     string
	lockTimeout time.Duration
}

func resolveArchive(job v1.ZipJob) (archiveSettings, error) {
	settings := archiveSettings{
		name:    job.Metadata.Name + ".zip",
		level:   engine.CompressionDefault,
		workdir: os.TempDir(),
	}

	spec := job.Spec.Archive
	if spec == nil {
		return settings, nil
	}

	if spec.Name != "" {
		settings.name = spec.Name
	}
	if filepath.Base(settings.name) != settings.name {
		return archiveSettings{}, fmt.Errorf("archive name %q must be a file name, not a path", settings.name)
	}

	level, err := engine.ParseCompressionLevel(spec.Compression)
	if err != nil {
		return archiveSettings{}, err
	}
	settings.level = level

	if spec.Workdir != "" {
		settings.workdir = spec.Workdir
	}
	if spec.LockTimeout != nil {
		settings.lockTimeout = time.Duration(*spec.LockTimeout) * time.Second
	}

	return settings, nil
}
