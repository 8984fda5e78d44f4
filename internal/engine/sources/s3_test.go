package sources

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockS3 serves a fixed object set, two keys per page.
type mockS3 struct {
	objects map[string]string
	keys    []string
	listErr error
}

func newMockS3(keys []string, objects map[string]string) *mockS3 {
	return &mockS3{keys: keys, objects: objects}
}

func (m *mockS3) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}

	var matching []string
	for _, key := range m.keys {
		if strings.HasPrefix(key, aws.ToString(params.Prefix)) {
			matching = append(matching, key)
		}
	}

	start := 0
	if params.ContinuationToken != nil {
		for i, key := range matching {
			if key == *params.ContinuationToken {
				start = i
			}
		}
	}
	end := min(start+2, len(matching))

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(matching))}
	for _, key := range matching[start:end] {
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(key),
			Size:         aws.Int64(int64(len(m.objects[key]))),
			LastModified: aws.Time(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)),
		})
	}
	if end < len(matching) {
		out.NextContinuationToken = aws.String(matching[end])
	}
	return out, nil
}

func (m *mockS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	content, ok := m.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(content))}, nil
}

func TestS3Source_List(t *testing.T) {
	objects := map[string]string{
		"exports/a.txt":        "hello",
		"exports/nested/b.txt": "world",
		"exports/c.json":       "{}",
		"other/d.txt":          "skip",
	}
	client := newMockS3(
		[]string{"exports/", "exports/a.txt", "exports/c.json", "exports/nested/", "exports/nested/b.txt", "other/d.txt"},
		objects,
	)

	tests := []struct {
		name      string
		prefix    string
		wantNames []string
		wantKeys  []string
	}{
		{
			name:      "prefix with trailing slash",
			prefix:    "exports/",
			wantNames: []string{"a.txt", "c.json", "nested/b.txt"},
			wantKeys:  []string{"exports/a.txt", "exports/c.json", "exports/nested/b.txt"},
		},
		{
			name:      "prefix without trailing slash",
			prefix:    "exports",
			wantNames: []string{"a.txt", "c.json", "nested/b.txt"},
			wantKeys:  []string{"exports/a.txt", "exports/c.json", "exports/nested/b.txt"},
		},
		{
			name:      "whole bucket",
			wantNames: []string{"exports/a.txt", "exports/c.json", "exports/nested/b.txt", "other/d.txt"},
			wantKeys:  []string{"exports/a.txt", "exports/c.json", "exports/nested/b.txt", "other/d.txt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := NewS3SourceWithClient("bucket", tt.prefix, client)

			listed, err := source.List(t.Context())
			require.NoError(t, err)

			var names, keys []string
			for _, obj := range listed {
				names = append(names, obj.Name)
				keys = append(keys, obj.Key)
				assert.Equal(t, int64(len(objects[obj.Key])), obj.Size)
				assert.False(t, obj.LastModified.IsZero())
			}
			assert.Equal(t, tt.wantNames, names)
			assert.Equal(t, tt.wantKeys, keys)
		})
	}
}

func TestS3Source_ListSiblingPrefix(t *testing.T) {
	objects := map[string]string{
		"exports/a.txt":     "new",
		"exports-old/a.txt": "old",
		"exports.csv":       "csv",
	}
	client := newMockS3([]string{"exports-old/a.txt", "exports.csv", "exports/a.txt"}, objects)

	listed, err := NewS3SourceWithClient("bucket", "exports", client).List(t.Context())
	require.NoError(t, err)

	names := make(map[string]string)
	for _, obj := range listed {
		names[obj.Key] = obj.Name
	}
	assert.Equal(t, map[string]string{
		"exports-old/a.txt": "exports-old/a.txt",
		"exports.csv":       "exports.csv",
		"exports/a.txt":     "a.txt",
	}, names)
}

func TestS3Source_ListError(t *testing.T) {
	client := newMockS3(nil, nil)
	client.listErr = errors.New("access denied")
	source := NewS3SourceWithClient("bucket", "exports/", client)

	_, err := source.List(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3://bucket/exports/")
}

func TestS3Source_Open(t *testing.T) {
	client := newMockS3([]string{"a.txt"}, map[string]string{"a.txt": "hello"})
	source := NewS3SourceWithClient("bucket", "", client)

	body, err := source.Open(t.Context(), "a.txt")
	require.NoError(t, err)
	content, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, "hello", string(content))

	_, err = source.Open(t.Context(), "missing.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3://bucket/missing.txt")
}

func TestS3Source_NameAndKind(t *testing.T) {
	assert.Equal(t, "s3(bucket)", NewS3SourceWithClient("bucket", "", nil).Name())
	assert.Equal(t, "s3(bucket/exports)", NewS3SourceWithClient("bucket", "exports", nil).Name())
	assert.Equal(t, "s3", NewS3SourceWithClient("bucket", "", nil).Kind())
}

func TestNewS3Source_RequiresBucket(t *testing.T) {
	_, err := NewS3Source(t.Context(), S3Config{})
	require.Error(t, err)
}
