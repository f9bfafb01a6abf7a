package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSPublisher uploads the artifact to a Cloud Storage bucket.
type GCSPublisher struct {
	bucket    string
	object    string
	newWriter func(ctx context.Context, bucket, object string) objectWriter
	closeFn   func() error
}

type objectWriter interface {
	io.WriteCloser
	SetContentType(string)
}

type gcsWriter struct{ *storage.Writer }

func (w gcsWriter) SetContentType(ct string) {
	w.ContentType = ct
	w.CacheControl = "no-cache"
}

// NewGCSPublisher creates a storage client. Empty credentialsJSON uses
// Application Default Credentials.
func NewGCSPublisher(ctx context.Context, bucket, object string, credentialsJSON []byte) (*GCSPublisher, error) {
	if bucket == "" {
		return nil, errors.New("missing GCS bucket")
	}
	var opts []option.ClientOption
	if len(credentialsJSON) > 0 {
		opts = append(opts, option.WithCredentialsJSON(credentialsJSON))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSPublisher{
		bucket: bucket,
		object: object,
		newWriter: func(ctx context.Context, bucket, object string) objectWriter {
			return gcsWriter{client.Bucket(bucket).Object(object).NewWriter(ctx)}
		},
		closeFn: client.Close,
	}, nil
}

func (p *GCSPublisher) Name() string { return TargetGCS }

// Publish streams the artifact body into the object.
func (p *GCSPublisher) Publish(ctx context.Context, a Artifact) error {
	object := p.object
	if object == "" {
		object = a.Name
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := p.newWriter(ctx, p.bucket, object)
	w.SetContentType(a.ContentType)
	if _, err := io.Copy(w, bytes.NewReader(a.Body)); err != nil {
		// Cancelling before Close aborts the upload.
		cancel()
		_ = w.Close()
		return fmt.Errorf("copy to gs://%s/%s: %w", p.bucket, object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize gs://%s/%s: %w", p.bucket, object, err)
	}
	return nil
}

// Close releases the storage client.
func (p *GCSPublisher) Close() error {
	if p.closeFn == nil {
		return nil
	}
	return p.closeFn()
}
