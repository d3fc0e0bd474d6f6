package s3blob

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alanyoungcy/bidhub/internal/domain"
)

// multipartThreshold is the payload size above which Put switches to the
// multipart upload manager. Also the per-part size (the S3 minimum, 5 MiB).
const multipartThreshold int64 = 5 * 1024 * 1024

// Writer implements domain.BlobWriter using an S3-compatible backend.
type Writer struct {
	client *s3.Client
	bucket string
}

// NewWriter creates a new Writer that uploads objects to the given client's
// configured bucket.
func NewWriter(c *Client) *Writer {
	return &Writer{
		client: c.S3(),
		bucket: c.Bucket(),
	}
}

// Put uploads data to the given path. Small payloads go up as a single
// PutObject; larger ones are handed to the multipart upload manager, which
// splits the payload into parts and uploads them concurrently.
func (w *Writer) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	buf, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("s3blob: read payload for %s: %w", path, err)
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(path),
		Body:        bytes.NewReader(buf),
		ContentType: aws.String(contentType),
	}

	if int64(len(buf)) < multipartThreshold {
		if _, err := w.client.PutObject(ctx, input); err != nil {
			return fmt.Errorf("s3blob: put object %s: %w", path, err)
		}
		return nil
	}

	uploader := manager.NewUploader(w.client, func(u *manager.Uploader) {
		u.PartSize = multipartThreshold
	})
	if _, err := uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("s3blob: multipart upload %s: %w", path, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.BlobWriter = (*Writer)(nil)
