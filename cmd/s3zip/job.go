package main

import (
	"fmt"
	"io"
	"os"

	v1 "github.com/infracollect/s3zip/apis/v1"
	"github.com/infracollect/s3zip/internal/runner"
)

// readJobFile reads the job from filename, or from stdin when filename is "-".
func readJobFile(filename string) ([]byte, error) {
	if filename == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(filename)
}

// loadJob parses, validates and expands the job file.
func loadJob(filename string, allowedEnv []string) (v1.ZipJob, error) {
	data, err := readJobFile(filename)
	if err != nil {
		return v1.ZipJob{}, fmt.Errorf("failed to read job file '%s': %w", filename, err)
	}

	job, err := runner.ParseZipJob(data)
	if err != nil {
		return v1.ZipJob{}, formatValidationError(err)
	}

	variables, err := runner.BuildVariables(job, allowedEnv)
	if err != nil {
		return v1.ZipJob{}, fmt.Errorf("failed to build variables: %w", err)
	}

	if err := runner.ExpandJob(&job, variables); err != nil {
		return v1.ZipJob{}, fmt.Errorf("failed to expand variables: %w", err)
	}

	return job, nil
}

// writesToStdout reports whether the job streams the archive to stdout.
func writesToStdout(job v1.ZipJob) bool {
	output := job.Spec.Output
	return output == nil || output.Sink == nil || output.Sink.Stdout != nil
}
