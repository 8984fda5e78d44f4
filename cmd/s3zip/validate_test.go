package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/infracollect/s3zip/internal/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatValidationError(t *testing.T) {
	t.Run("validation errors are listed", func(t *testing.T) {
		_, err := runner.ParseZipJob([]byte("kind: ZipJob\nspec:\n  source:\n    filesystem: {}\n"))
		require.Error(t, err)

		formatted := formatValidationError(err)
		assert.Contains(t, formatted.Error(), "validation error(s)")
		assert.Contains(t, formatted.Error(), "ZipJob.Metadata.Name: failed 'required' validation")
		assert.Contains(t, formatted.Error(), "ZipJob.Spec.Source.Filesystem.Path: failed 'required' validation")
	})

	t.Run("other errors pass through", func(t *testing.T) {
		err := errors.New("boom")
		assert.Equal(t, err, formatValidationError(err))
	})
}

func TestLoadJob(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
kind: ZipJob
metadata:
  name: nightly
spec:
  source:
    filesystem:
      path: ${DATA_DIR}
  archive:
    name: ${JOB_NAME}.zip
  output:
    sink:
      filesystem:
        path: /tmp/out
`), 0644))

	t.Run("expands allowed env", func(t *testing.T) {
		t.Setenv("DATA_DIR", "/var/data")

		job, err := loadJob(path, []string{"DATA_DIR"})
		require.NoError(t, err)
		assert.Equal(t, "/var/data", job.Spec.Source.Filesystem.Path)
		assert.Equal(t, "nightly.zip", job.Spec.Archive.Name)
		assert.False(t, writesToStdout(job))
	})

	t.Run("env not allowed", func(t *testing.T) {
		t.Setenv("DATA_DIR", "/var/data")

		_, err := loadJob(path, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DATA_DIR")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadJob(filepath.Join(dir, "missing.yaml"), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read job file")
	})
}
