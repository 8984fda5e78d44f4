package runner

import (
	"testing"
	"time"

	v1 "github.com/infracollect/s3zip/apis/v1"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildVariables(t *testing.T) {
	job := v1.ZipJob{Metadata: v1.Metadata{Name: "test-job"}}

	t.Run("built-in variables are set", func(t *testing.T) {
		variables, err := BuildVariables(job, nil)
		require.NoError(t, err)

		assert.Equal(t, "test-job", variables["JOB_NAME"])

		_, err = time.Parse("20060102T150405Z", variables["JOB_DATE_ISO8601"])
		require.NoError(t, err)

		_, err = time.Parse(time.RFC3339, variables["JOB_DATE_RFC3339"])
		require.NoError(t, err)
	})

	t.Run("allowed env variables are included", func(t *testing.T) {
		t.Setenv("BACKUP_BUCKET", "my-bucket")

		variables, err := BuildVariables(job, []string{"BACKUP_BUCKET"})
		require.NoError(t, err)
		assert.Equal(t, "my-bucket", variables["BACKUP_BUCKET"])
	})

	t.Run("error when allowed env variable is not set", func(t *testing.T) {
		_, err := BuildVariables(job, []string{"S3ZIP_UNSET_VAR"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "S3ZIP_UNSET_VAR")
		assert.Contains(t, err.Error(), "is not set")
	})
}

func TestExpand(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		variables map[string]string
		want      string
		wantErr   bool
	}{
		{name: "no variables", value: "plain", want: "plain"},
		{name: "braced", value: "${JOB_NAME}.zip", variables: map[string]string{"JOB_NAME": "nightly"}, want: "nightly.zip"},
		{name: "bare", value: "$JOB_NAME/x", variables: map[string]string{"JOB_NAME": "nightly"}, want: "nightly/x"},
		{name: "unknown", value: "${HOME}/x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Expand(tt.value, tt.variables)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandJob(t *testing.T) {
	job := v1.ZipJob{
		Metadata: v1.Metadata{Name: "nightly"},
		Spec: v1.ZipJobSpec{
			Source: v1.SourceSpec{
				S3: &v1.S3SourceSpec{
					Bucket: "${SOURCE_BUCKET}",
					Prefix: lo.ToPtr("exports/${JOB_NAME}/"),
					S3Connection: v1.S3Connection{
						Credentials: &v1.S3Credentials{
							AccessKeyID:     "${AWS_KEY}",
							SecretAccessKey: "${AWS_SECRET}",
						},
					},
				},
			},
			Filter: `key.startsWith("${NOT_EXPANDED}")`,
			Archive: &v1.ArchiveSpec{
				Name:    "${JOB_NAME}-${JOB_DATE_ISO8601}.zip",
				Workdir: "/scratch",
			},
			Output: &v1.OutputSpec{
				Sink: &v1.SinkSpec{
					S3: &v1.S3SinkSpec{
						Bucket: "archives",
						Prefix: lo.ToPtr("${JOB_NAME}"),
						S3Connection: v1.S3Connection{
							Region: lo.ToPtr("${REGION}"),
						},
					},
				},
			},
		},
	}

	variables := map[string]string{
		"JOB_NAME":         "nightly",
		"JOB_DATE_ISO8601": "20240102T030405Z",
		"SOURCE_BUCKET":    "exports",
		"AWS_KEY":          "key",
		"AWS_SECRET":       "secret",
		"REGION":           "eu-west-3",
	}

	require.NoError(t, ExpandJob(&job, variables))

	assert.Equal(t, "exports", job.Spec.Source.S3.Bucket)
	assert.Equal(t, "exports/nightly/", *job.Spec.Source.S3.Prefix)
	assert.Equal(t, "key", job.Spec.Source.S3.Credentials.AccessKeyID)
	assert.Equal(t, "secret", job.Spec.Source.S3.Credentials.SecretAccessKey)
	assert.Equal(t, "nightly-20240102T030405Z.zip", job.Spec.Archive.Name)
	assert.Equal(t, "/scratch", job.Spec.Archive.Workdir)
	assert.Equal(t, "nightly", *job.Spec.Output.Sink.S3.Prefix)
	assert.Equal(t, "eu-west-3", *job.Spec.Output.Sink.S3.Region)
	assert.Equal(t, `key.startsWith("${NOT_EXPANDED}")`, job.Spec.Filter, "filters are not expanded")
}

func TestExpandJob_ReportsAllErrors(t *testing.T) {
	job := v1.ZipJob{
		Spec: v1.ZipJobSpec{
			Source: v1.SourceSpec{
				Filesystem: &v1.FilesystemSourceSpec{Path: "${MISSING_ONE}"},
			},
			Archive: &v1.ArchiveSpec{Name: "${MISSING_TWO}.zip"},
		},
	}

	err := ExpandJob(&job, map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spec.source.filesystem.path")
	assert.Contains(t, err.Error(), "MISSING_ONE")
	assert.Contains(t, err.Error(), "spec.archive.name")
	assert.Contains(t, err.Error(), "MISSING_TWO")
}
