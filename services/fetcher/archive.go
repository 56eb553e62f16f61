package fetcher

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	gos3 "threatwatch/pkg/s3"
)

// Archiver stores raw feed payloads for later audit or replay.
type Archiver interface {
	Archive(ctx context.Context, feed string, startedAt time.Time, pages [][]byte) (string, error)
}

// S3Archiver compresses raw pages with zstd and uploads them as a single
// JSON-lines object.
type S3Archiver struct {
	client *gos3.Client
	bucket string
}

// NewS3Archiver builds an archiver writing into the given bucket.
func NewS3Archiver(client *gos3.Client, bucket string) (*S3Archiver, error) {
	if client == nil {
		return nil, errors.New("s3 client is required")
	}
	if bucket == "" {
		return nil, errors.New("archive bucket is required")
	}
	return &S3Archiver{client: client, bucket: bucket}, nil
}

// Archive uploads the payload and returns its object URL. Archive failures
// are reported to the caller but never abort a cycle.
func (a *S3Archiver) Archive(ctx context.Context, feed string, startedAt time.Time, pages [][]byte) (string, error) {
	if len(pages) == 0 {
		return "", nil
	}

	var raw bytes.Buffer
	for _, page := range pages {
		raw.Write(bytes.TrimRight(page, "\n"))
		raw.WriteByte('\n')
	}

	var compressed bytes.Buffer
	encoder, err := zstd.NewWriter(&compressed)
	if err != nil {
		return "", fmt.Errorf("zstd writer: %w", err)
	}
	if _, err := encoder.Write(raw.Bytes()); err != nil {
		encoder.Close()
		return "", fmt.Errorf("compress payload: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return "", fmt.Errorf("close zstd writer: %w", err)
	}

	digest := sha256.Sum256(compressed.Bytes())
	key := fmt.Sprintf("feeds/%s/%s.jsonl.zst", feed, startedAt.UTC().Format("2006/01/02/150405"))

	err = a.client.PutObject(ctx, a.bucket, key,
		bytes.NewReader(compressed.Bytes()), int64(compressed.Len()), hex.EncodeToString(digest[:]))
	if err != nil {
		return "", fmt.Errorf("upload archive: %w", err)
	}

	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}
