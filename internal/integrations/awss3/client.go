// Package awss3 builds S3 clients shared by the S3 source and sink.
package awss3

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hashicorp/go-cleanhttp"
	v1 "github.com/infracollect/s3zip/apis/v1"
)

// Config contains connection settings for S3-compatible object storage.
type Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
	Insecure        bool
}

// NewClient creates an S3 client. Credentials fall back to the default AWS chain
// when no static keys are configured.
func NewClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	transport := cleanhttp.DefaultPooledTransport()
	if cfg.Insecure {
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{}
		}
		transport.TLSClientConfig.InsecureSkipVerify = true
	}

	opts := []func(*config.LoadOptions) error{
		config.WithHTTPClient(&http.Client{Transport: transport}),
	}

	// Set region if provided
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	// Set explicit credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)

	// Custom endpoint for S3-compatible services (R2, MinIO, etc.)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return s3.NewFromConfig(awsCfg, s3Opts...), nil
}

// ConfigFromConnection maps the job's connection settings to a client Config.
func ConfigFromConnection(conn v1.S3Connection) Config {
	cfg := Config{
		ForcePathStyle: conn.ForcePathStyle,
		Insecure:       conn.Insecure,
	}
	if conn.Region != nil {
		cfg.Region = *conn.Region
	}
	if conn.Endpoint != nil {
		cfg.Endpoint = *conn.Endpoint
	}
	if conn.Credentials != nil {
		cfg.AccessKeyID = conn.Credentials.AccessKeyID
		cfg.SecretAccessKey = conn.Credentials.SecretAccessKey
	}
	return cfg
}
