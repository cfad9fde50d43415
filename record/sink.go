package record

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// FileSink writes a recording to local disk via a temp file renamed on
// close, so a crashed session never leaves a plausible-looking but
// truncated recording at the final path.
type FileSink struct {
	f     *os.File
	final string
}

// NewFileSink creates a file sink that will publish to path on Close.
func NewFileSink(path string) (*FileSink, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create recording directory: %w", err)
	}
	f, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("create recording file: %w", err)
	}
	return &FileSink{f: f, final: path}, nil
}

// Write implements Sink.
func (s *FileSink) Write(p []byte) (int, error) {
	return s.f.Write(p)
}

// Close implements Sink, publishing the recording at its final path.
func (s *FileSink) Close() error {
	if err := s.f.Sync(); err != nil {
		s.f.Close()
		return err
	}
	if err := s.f.Close(); err != nil {
		return err
	}
	return os.Rename(s.f.Name(), s.final)
}

// S3Config holds configuration for the S3 recording backend.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not
	// subdomain). Required by most S3-compatible providers.
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// ParseS3Path parses a path in format "bucket/prefix", "bucket", or
// "s3://bucket/prefix".
func ParseS3Path(path string) (bucket, prefix string) {
	path = strings.TrimPrefix(path, "s3://")
	parts := strings.SplitN(path, "/", 2)
	bucket = parts[0]
	if len(parts) > 1 {
		prefix = parts[1]
	}
	return bucket, prefix
}

// s3API is the slice of the S3 client the sink uses.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink buffers a recording in memory and uploads it as a single
// object on Close. Recordings are bounded by session length, so the
// buffer stays small in practice.
type S3Sink struct {
	api    s3API
	bucket string
	key    string

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewS3Sink creates an S3 sink for one session recording.
// Uses the AWS SDK default credential chain (env vars, shared config,
// IAM role).
func NewS3Sink(ctx context.Context, s3cfg S3Config, sessionID string) (*S3Sink, error) {
	if err := s3cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if s3cfg.Region != "" {
		opts = append(opts, config.WithRegion(s3cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if s3cfg.Endpoint != "" {
		endpoint := s3cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if s3cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &S3Sink{
		api:    s3.NewFromConfig(awsConfig, s3Opts...),
		bucket: s3cfg.Bucket,
		key:    sessionKey(s3cfg.Prefix, sessionID, time.Now()),
	}, nil
}

// sessionKey builds the object key: {prefix/}day=YYYY-MM-DD/{session}.rec
func sessionKey(prefix, sessionID string, now time.Time) string {
	key := fmt.Sprintf("day=%s/%s.rec", now.UTC().Format("2006-01-02"), sessionID)
	if prefix != "" {
		key = strings.TrimSuffix(prefix, "/") + "/" + key
	}
	return key
}

// Write implements Sink.
func (s *S3Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

// Close implements Sink, uploading the buffered recording.
func (s *S3Sink) Close() error {
	s.mu.Lock()
	body := bytes.NewReader(s.buf.Bytes())
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &s.key,
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("upload recording to s3://%s/%s: %w", s.bucket, s.key, err)
	}
	return nil
}
