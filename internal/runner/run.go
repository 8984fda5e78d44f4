package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	v1 "github.com/infracollect/s3zip/apis/v1"
	"github.com/infracollect/s3zip/internal/archive"
	"github.com/infracollect/s3zip/internal/engine"
	"github.com/infracollect/s3zip/internal/engine/sinks"
	"github.com/infracollect/s3zip/internal/engine/sources"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Runner struct {
	logger      *zap.Logger
	source      engine.Source
	filter      *sources.Filter
	sink        engine.Sink
	writer      *archive.Writer
	archive     *sinks.ArchiveSink
	archiveName string
	concurrency int
}

// pathExcluder is implemented by sources that walk local directories.
type pathExcluder interface {
	Exclude(dirs ...string)
}

// Summary describes a completed run.
type Summary struct {
	ArchiveName string
	Sink        string
	Listed      int
	Archived    int
	Bytes       int64
}

var (
	defaultValidator = validator.New(validator.WithRequiredStructEnabled())
)

// ParseZipJob parses a YAML or JSON job file and validates it. It returns a
// validated ZipJob or an error if parsing or validation fails.
func ParseZipJob(data []byte) (v1.ZipJob, error) {
	var job v1.ZipJob
	if err := yaml.Unmarshal(data, &job); err != nil {
		return v1.ZipJob{}, fmt.Errorf("failed to unmarshal job data: %w", err)
	}

	if err := defaultValidator.Struct(job); err != nil {
		return v1.ZipJob{}, fmt.Errorf("failed to validate job: %w", err)
	}

	if _, err := sources.NewFilter(job.Spec.Filter); err != nil {
		return v1.ZipJob{}, fmt.Errorf("failed to validate job: %w", err)
	}

	return job, nil
}

type options struct {
	stdout io.Writer
	source engine.Source
	sink   engine.Sink
}

// Option customizes how New builds a runner.
type Option func(*options)

// WithStdout sets the writer used by the stdout sink. Defaults to os.Stdout.
func WithStdout(w io.Writer) Option {
	return func(o *options) {
		o.stdout = w
	}
}

// WithSource overrides the source described by the job.
func WithSource(source engine.Source) Option {
	return func(o *options) {
		o.source = source
	}
}

// WithSink overrides the destination sink described by the job.
func WithSink(sink engine.Sink) Option {
	return func(o *options) {
		o.sink = sink
	}
}

func New(ctx context.Context, logger *zap.Logger, job v1.ZipJob, opts ...Option) (*Runner, error) {
	logger.Info("creating runner", zap.String("job_name", job.Metadata.Name))

	o := options{stdout: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	settings, err := resolveArchive(job)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve archive settings: %w", err)
	}

	filter, err := sources.NewFilter(job.Spec.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to build filter: %w", err)
	}

	registry := engine.NewRegistry(logger)
	sources.Register(registry)
	sinks.Register(registry, o.stdout)

	source := o.source
	if source == nil {
		if source, err = buildSource(ctx, registry, job); err != nil {
			return nil, fmt.Errorf("failed to build source: %w", err)
		}
	}

	sink := o.sink
	if sink == nil {
		if sink, err = buildSink(ctx, registry, job); err != nil {
			return nil, fmt.Errorf("failed to build sink: %w", err)
		}
	}

	if err := os.MkdirAll(settings.workdir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workdir %s: %w", settings.workdir, err)
	}
	dir, err := os.MkdirTemp(settings.workdir, "s3zip-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	// The working directory may sit below a filesystem source root.
	if excluder, ok := source.(pathExcluder); ok {
		excluder.Exclude(dir)
	}

	writer, err := archive.NewWriter(
		filepath.Join(dir, "archive.zip"),
		settings.level,
		archive.WithLogger(logger.Named("archive")),
		archive.WithLockTimeout(settings.lockTimeout),
	)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to create archive writer: %w", err)
	}

	concurrency := job.Spec.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	return &Runner{
		logger:      logger,
		source:      source,
		filter:      filter,
		sink:        sink,
		writer:      writer,
		archive:     sinks.NewArchiveSink(logger.Named("sink"), sink, writer, settings.name),
		archiveName: settings.name,
		concurrency: concurrency,
	}, nil
}

// Run lists the source, archives every matching object, and ships the archive.
// The archive's working directory is removed whether or not the run succeeds.
func (r *Runner) Run(ctx context.Context) (summary Summary, err error) {
	summary = Summary{ArchiveName: r.archiveName, Sink: r.sink.Name()}

	shipped := false
	defer func() {
		if shipped {
			return
		}
		if abortErr := r.archive.Abort(ctx); abortErr != nil {
			r.logger.Error("failed to clean up archive", zap.Error(abortErr))
		}
	}()

	if err := r.writer.Initialize(); err != nil {
		return summary, fmt.Errorf("failed to initialize archive: %w", err)
	}

	objects, err := r.source.List(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to list source %s: %w", r.source.Name(), err)
	}
	summary.Listed = len(objects)

	objects, err = r.filter.Apply(objects)
	if err != nil {
		return summary, fmt.Errorf("failed to filter objects: %w", err)
	}

	r.logger.Info("archiving objects",
		zap.String("source", r.source.Name()),
		zap.Int("listed", summary.Listed),
		zap.Int("matched", len(objects)),
		zap.Int("concurrency", r.concurrency),
	)
	if len(objects) == 0 {
		r.logger.Warn("no objects matched, archive will be empty")
	}

	var archived atomic.Int64
	var archivedBytes atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, obj := range objects {
		g.Go(func() error {
			n, err := r.addObject(gctx, obj)
			if err != nil {
				return err
			}
			archived.Add(1)
			archivedBytes.Add(n)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return summary, fmt.Errorf("failed to archive objects: %w", err)
	}
	summary.Archived = int(archived.Load())
	summary.Bytes = archivedBytes.Load()

	// Close disposes the archive on every path.
	shipped = true
	if err := r.archive.Close(ctx); err != nil {
		return summary, fmt.Errorf("failed to ship archive: %w", err)
	}

	r.logger.Info("archive shipped",
		zap.String("archive_name", r.archiveName),
		zap.String("sink", r.sink.Name()),
		zap.Int("entries", summary.Archived),
	)

	return summary, nil
}

func (r *Runner) addObject(ctx context.Context, obj engine.Object) (n int64, err error) {
	rc, err := r.source.Open(ctx, obj.Key)
	if err != nil {
		return 0, err
	}
	defer func() {
		err = errors.Join(err, rc.Close())
	}()

	counter := &countingReader{r: rc}
	if err := r.archive.Write(ctx, obj.Name, counter); err != nil {
		return 0, err
	}

	r.logger.Debug("archived object", zap.String("key", obj.Key), zap.Int64("bytes", counter.n))
	return counter.n, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
