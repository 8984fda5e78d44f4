package v1

const ZipJobKind = "ZipJob"

type ZipJob struct {
	Kind     string     `yaml:"kind" json:"kind" validate:"required,eq=ZipJob"`
	Metadata Metadata   `yaml:"metadata" json:"metadata"`
	Spec     ZipJobSpec `yaml:"spec" json:"spec"`
}

type Metadata struct {
	Name string `yaml:"name" json:"name" validate:"required"`
}

type ZipJobSpec struct {
	Source SourceSpec `yaml:"source" json:"source"`

	// Filter is a CEL expression over key, name, size and modified selecting the objects to archive.
	Filter string `yaml:"filter,omitempty" json:"filter,omitempty"`

	Archive *ArchiveSpec `yaml:"archive,omitempty" json:"archive,omitempty"`

	// Concurrency is the number of objects fetched in parallel (default: 4).
	Concurrency int `yaml:"concurrency,omitempty" json:"concurrency,omitempty" validate:"gte=0,lte=256"`

	Output *OutputSpec `yaml:"output,omitempty" json:"output,omitempty"`
}

// SourceSpec configures where objects are read from (exactly one field must be set).
type SourceSpec struct {
	S3         *S3SourceSpec         `yaml:"s3,omitempty" json:"s3,omitempty" validate:"required_without=Filesystem,excluded_with=Filesystem"`
	Filesystem *FilesystemSourceSpec `yaml:"filesystem,omitempty" json:"filesystem,omitempty" validate:"required_without=S3,excluded_with=S3"`
}

type S3SourceSpec struct {
	S3Connection `yaml:",inline" json:",inline"`
	Bucket       string  `yaml:"bucket" json:"bucket" validate:"required"`
	Prefix       *string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
}

type FilesystemSourceSpec struct {
	Path string `yaml:"path" json:"path" validate:"required"`
}

// S3Connection holds settings shared by the S3 source and sink.
type S3Connection struct {
	Region         *string        `yaml:"region,omitempty" json:"region,omitempty"`
	Endpoint       *string        `yaml:"endpoint,omitempty" json:"endpoint,omitempty" validate:"omitempty,url"`
	ForcePathStyle bool           `yaml:"force_path_style,omitempty" json:"force_path_style,omitempty"`
	Insecure       bool           `yaml:"insecure,omitempty" json:"insecure,omitempty"`
	Credentials    *S3Credentials `yaml:"credentials,omitempty" json:"credentials,omitempty"`
}

type S3Credentials struct {
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id" validate:"required"`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key" validate:"required"`
}

// ArchiveSpec configures the archive being built.
type ArchiveSpec struct {
	// Name is the file name the archive is delivered under (default: <job name>.zip).
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Compression is one of none, fastest, best, default, zstd (default: default).
	Compression string `yaml:"compression,omitempty" json:"compression,omitempty" validate:"omitempty,oneof=none fastest best default zstd"`

	// Workdir is the parent directory of the archive's working directory (default: the OS temp dir).
	Workdir string `yaml:"workdir,omitempty" json:"workdir,omitempty"`

	// LockTimeout bounds each wait for the archive lock, in seconds (default: no bound).
	LockTimeout *int `yaml:"lock_timeout,omitempty" json:"lock_timeout,omitempty" validate:"omitempty,gt=0"`
}

// OutputSpec configures where the finished archive is written.
type OutputSpec struct {
	Sink *SinkSpec `yaml:"sink,omitempty" json:"sink,omitempty"`
}

// SinkSpec configures the output destination (one of the fields should be set; default: stdout).
type SinkSpec struct {
	Stdout     *StdoutSinkSpec     `yaml:"stdout,omitempty" json:"stdout,omitempty"`
	Filesystem *FilesystemSinkSpec `yaml:"filesystem,omitempty" json:"filesystem,omitempty"`
	S3         *S3SinkSpec         `yaml:"s3,omitempty" json:"s3,omitempty"`
}

type StdoutSinkSpec struct{}

type FilesystemSinkSpec struct {
	// Path is the output directory (default: current directory).
	Path *string `yaml:"path,omitempty" json:"path,omitempty"`
}

type S3SinkSpec struct {
	S3Connection `yaml:",inline" json:",inline"`
	Bucket       string  `yaml:"bucket" json:"bucket" validate:"required"`
	Prefix       *string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	// PartSizeMB overrides the multipart upload part size.
	PartSizeMB int `yaml:"part_size_mb,omitempty" json:"part_size_mb,omitempty" validate:"omitempty,gte=5"`
}
