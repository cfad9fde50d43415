package record

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

func TestFileSinkPublishesOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions", "sess-1.rec")

	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	if _, err := sink.Write([]byte("recording bytes")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	// Not visible until Close renames it into place.
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("recording visible before Close: %v", err)
	}

	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "recording bytes" {
		t.Errorf("recording = %q", data)
	}
}

func TestParseS3Path(t *testing.T) {
	tests := []struct {
		in, bucket, prefix string
	}{
		{"recordings", "recordings", ""},
		{"recordings/tether", "recordings", "tether"},
		{"recordings/tether/prod", "recordings", "tether/prod"},
		{"s3://recordings", "recordings", ""},
		{"s3://recordings/tether", "recordings", "tether"},
	}
	for _, tc := range tests {
		bucket, prefix := ParseS3Path(tc.in)
		if bucket != tc.bucket || prefix != tc.prefix {
			t.Errorf("ParseS3Path(%q) = (%q, %q), want (%q, %q)", tc.in, bucket, prefix, tc.bucket, tc.prefix)
		}
	}
}

func TestS3ConfigValidate(t *testing.T) {
	cfg := S3Config{}
	if err := cfg.Validate(); err == nil {
		t.Error("empty bucket validated")
	}
	cfg.Bucket = "recordings"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

type fakeS3 struct {
	bucket string
	key    string
	body   []byte
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.bucket = *in.Bucket
	f.key = *in.Key
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestS3SinkUploadsOnClose(t *testing.T) {
	api := &fakeS3{}
	sink := &S3Sink{
		api:    api,
		bucket: "recordings",
		key:    sessionKey("tether", "sess-7", time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)),
	}

	sink.Write([]byte("part one "))
	sink.Write([]byte("part two"))
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if api.bucket != "recordings" {
		t.Errorf("bucket = %q", api.bucket)
	}
	if want := "tether/day=2026-03-01/sess-7.rec"; api.key != want {
		t.Errorf("key = %q, want %q", api.key, want)
	}
	if !bytes.Equal(api.body, []byte("part one part two")) {
		t.Errorf("body = %q", api.body)
	}
}

func TestSessionKeyWithoutPrefix(t *testing.T) {
	key := sessionKey("", "sess-1", time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC))
	if key != "day=2026-07-04/sess-1.rec" {
		t.Errorf("key = %q", key)
	}
	if strings.HasPrefix(key, "/") {
		t.Errorf("key has leading slash: %q", key)
	}
}
