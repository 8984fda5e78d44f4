package runner

import (
	"errors"
	"fmt"
	"os"

	v1 "github.com/infracollect/s3zip/apis/v1"
)

// ExpandJob replaces ${VAR} references in the job's names, paths, buckets,
// prefixes, endpoints and credentials. All errors are reported together.
func ExpandJob(job *v1.ZipJob, variables map[string]string) error {
	var errs error
	expand := func(field string, s *string) {
		if s == nil {
			return
		}
		expanded, err := Expand(*s, variables)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("%s: %w", field, err))
			return
		}
		*s = expanded
	}

	spec := &job.Spec
	if src := spec.Source.S3; src != nil {
		expand("spec.source.s3.bucket", &src.Bucket)
		expand("spec.source.s3.prefix", src.Prefix)
		expandConnection("spec.source.s3", &src.S3Connection, expand)
	}
	if src := spec.Source.Filesystem; src != nil {
		expand("spec.source.filesystem.path", &src.Path)
	}

	if spec.Archive != nil {
		expand("spec.archive.name", &spec.Archive.Name)
		expand("spec.archive.workdir", &spec.Archive.Workdir)
	}

	if spec.Output != nil && spec.Output.Sink != nil {
		sink := spec.Output.Sink
		if sink.Filesystem != nil {
			expand("spec.output.sink.filesystem.path", sink.Filesystem.Path)
		}
		if sink.S3 != nil {
			expand("spec.output.sink.s3.bucket", &sink.S3.Bucket)
			expand("spec.output.sink.s3.prefix", sink.S3.Prefix)
			expandConnection("spec.output.sink.s3", &sink.S3.S3Connection, expand)
		}
	}

	return errs
}

func expandConnection(field string, conn *v1.S3Connection, expand func(string, *string)) {
	expand(field+".region", conn.Region)
	expand(field+".endpoint", conn.Endpoint)
	if conn.Credentials != nil {
		expand(field+".credentials.access_key_id", &conn.Credentials.AccessKeyID)
		expand(field+".credentials.secret_access_key", &conn.Credentials.SecretAccessKey)
	}
}

// Expand replaces ${VAR} references in value using variables.
// Returns an error if any referenced variable is not in the variables map.
func Expand(value string, variables map[string]string) (string, error) {
	var errs error

	result := os.Expand(value, func(key string) string {
		if val, ok := variables[key]; ok {
			return val
		}
		errs = errors.Join(errs, fmt.Errorf("variable %q is not defined or not in the allowed list", key))
		return ""
	})

	if errs != nil {
		return "", errs
	}

	return result, nil
}
