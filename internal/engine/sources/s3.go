package sources

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/infracollect/s3zip/internal/engine"
	"github.com/infracollect/s3zip/internal/integrations/awss3"
)

// S3API is the subset of the S3 client used by S3Source.
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Config contains configuration for the S3 source.
type S3Config struct {
	awss3.Config
	Bucket string
	Prefix string
}

// S3Source lists and downloads objects below a bucket prefix.
type S3Source struct {
	bucket string
	prefix string
	client S3API
}

// NewS3Source creates an S3 source with a client built from cfg.
func NewS3Source(ctx context.Context, cfg S3Config) (*S3Source, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 source bucket is required")
	}

	client, err := awss3.NewClient(ctx, cfg.Config)
	if err != nil {
		return nil, err
	}

	return NewS3SourceWithClient(cfg.Bucket, cfg.Prefix, client), nil
}

// NewS3SourceWithClient creates an S3 source with a custom client.
// This is useful for testing.
func NewS3SourceWithClient(bucket, prefix string, client S3API) *S3Source {
	return &S3Source{
		bucket: bucket,
		prefix: prefix,
		client: client,
	}
}

func (s *S3Source) Name() string {
	if s.prefix != "" {
		return fmt.Sprintf("s3(%s/%s)", s.bucket, s.prefix)
	}
	return fmt.Sprintf("s3(%s)", s.bucket)
}

func (s *S3Source) Kind() string {
	return "s3"
}

// List returns every object below the prefix. Folder placeholder keys ending in "/" are skipped.
func (s *S3Source) List(ctx context.Context) ([]engine.Object, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix)
	}

	var objects []engine.Object
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list s3://%s/%s: %w", s.bucket, s.prefix, err)
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == "" || strings.HasSuffix(key, "/") {
				continue
			}

			objects = append(objects, engine.Object{
				Key:          key,
				Name:         s.entryName(key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}

	return objects, nil
}

// entryName trims the prefix from key when the prefix ends on a path segment
// boundary. Keys of sibling prefixes (exports-old/ for prefix exports) keep their full key.
func (s *S3Source) entryName(key string) string {
	rest, ok := strings.CutPrefix(key, s.prefix)
	if !ok || s.prefix == "" {
		return strings.TrimLeft(key, "/")
	}
	if !strings.HasSuffix(s.prefix, "/") && !strings.HasPrefix(rest, "/") {
		return key
	}
	if name := strings.TrimLeft(rest, "/"); name != "" {
		return name
	}
	return key
}

// Open downloads the object body. The caller must close it.
func (s *S3Source) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", s.bucket, key, err)
	}
	return out.Body, nil
}
