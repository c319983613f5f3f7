package avatar

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Storage keeps avatar objects and maps them to public URLs.
type Storage interface {
	Put(ctx context.Context, key string, data []byte, contentType string, meta map[string]string) (string, error)
	Delete(ctx context.Context, key string) error
	KeyFromURL(rawURL string) string
}

// S3Storage writes avatars to an S3-compatible bucket.
type S3Storage struct {
	client     *s3.Client
	bucket     string
	region     string
	endpoint   string
	publicBase string
}

var _ Storage = (*S3Storage)(nil)

// NewS3Storage loads the default AWS credential chain. If endpoint is
// non-empty, path-style addressing is enabled (for MinIO and similar).
func NewS3Storage(ctx context.Context, bucket, region, endpoint, publicBase string) (*S3Storage, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewS3StorageFromConfig(cfg, bucket, endpoint, publicBase), nil
}

func NewS3StorageFromConfig(cfg aws.Config, bucket, endpoint, publicBase string) *S3Storage {
	var s3opts []func(*s3.Options)
	if endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}
	return &S3Storage{
		client:     s3.NewFromConfig(cfg, s3opts...),
		bucket:     bucket,
		region:     cfg.Region,
		endpoint:   strings.TrimRight(endpoint, "/"),
		publicBase: strings.TrimRight(publicBase, "/"),
	}
}

// URL is the public address of key. S3_PUBLIC_BASE_URL wins, then the
// custom endpoint, then the virtual-hosted AWS address.
func (s *S3Storage) URL(key string) string {
	switch {
	case s.publicBase != "":
		return s.publicBase + "/" + key
	case s.endpoint != "":
		return s.endpoint + "/" + s.bucket + "/" + key
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
	}
}

// Put uploads data under key and returns its public URL.
func (s *S3Storage) Put(ctx context.Context, key string, data []byte, contentType string, meta map[string]string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata:    meta,
	})
	if err != nil {
		return "", fmt.Errorf("s3 put object: %w", err)
	}
	return s.URL(key), nil
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete object: %w", err)
	}
	return nil
}

// KeyFromURL maps a URL produced by URL back to its object key. It returns
// "" for URLs that do not point into the bucket.
func (s *S3Storage) KeyFromURL(rawURL string) string {
	if s.publicBase != "" && strings.HasPrefix(rawURL, s.publicBase+"/") {
		return strings.TrimPrefix(rawURL, s.publicBase+"/")
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return ""
	}
	p := strings.TrimPrefix(u.Path, "/")
	if strings.HasPrefix(u.Host, s.bucket+".") {
		return p
	}
	if rest, ok := strings.CutPrefix(p, s.bucket+"/"); ok {
		return rest
	}
	return ""
}
