package publish

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paytrack/internal/core"
)

type fakeUploader struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakeUploader) Upload(ctx context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	return &manager.UploadOutput{}, f.err
}

func TestS3Publisher(t *testing.T) {
	up := &fakeUploader{}
	p := &S3Publisher{bucket: "site", uploader: up}

	err := p.Publish(context.Background(), Artifact{Name: "index.html", ContentType: "text/html; charset=utf-8", Body: []byte("<html>")})
	require.NoError(t, err)
	assert.Equal(t, "site", *up.in.Bucket)
	assert.Equal(t, "index.html", *up.in.Key)
	assert.Equal(t, "text/html; charset=utf-8", *up.in.ContentType)
	assert.Equal(t, "<html>", string(up.body))

	p.key = "ledger/summary.html"
	up.err = errors.New("denied")
	err = p.Publish(context.Background(), Artifact{Name: "index.html"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3://site/ledger/summary.html")
}

type fakeObject struct {
	bytes.Buffer
	contentType string
	closed      bool
	closeErr    error
}

func (f *fakeObject) SetContentType(ct string) { f.contentType = ct }
func (f *fakeObject) Close() error             { f.closed = true; return f.closeErr }

func TestGCSPublisher(t *testing.T) {
	obj := &fakeObject{}
	var gotBucket, gotObject string
	p := &GCSPublisher{
		bucket: "ledger-site",
		newWriter: func(_ context.Context, bucket, object string) objectWriter {
			gotBucket, gotObject = bucket, object
			return obj
		},
	}

	require.NoError(t, p.Publish(context.Background(), Artifact{Name: "index.html", ContentType: "text/html", Body: []byte("ok")}))
	assert.Equal(t, "ledger-site", gotBucket)
	assert.Equal(t, "index.html", gotObject)
	assert.Equal(t, "ok", obj.String())
	assert.Equal(t, "text/html", obj.contentType)
	assert.True(t, obj.closed)
	assert.NoError(t, p.Close())

	obj.closeErr = errors.New("precondition failed")
	err := p.Publish(context.Background(), Artifact{Name: "index.html"})
	assert.ErrorContains(t, err, "finalize gs://ledger-site/index.html")
}

type fakeValues struct {
	cleared string
	rng     string
	rows    [][]any
	err     error
}

func (f *fakeValues) Clear(_ context.Context, rng string) error { f.cleared = rng; return f.err }
func (f *fakeValues) Update(_ context.Context, rng string, rows [][]any) error {
	f.rng, f.rows = rng, rows
	return nil
}

func TestSheetsPublisherMirrorsLedger(t *testing.T) {
	vals := &fakeValues{}
	p := &SheetsPublisher{values: vals, sheetName: "2024 Payments"}
	date, _ := core.ParseDate("2024-03-01")

	err := p.Publish(context.Background(), Artifact{Ledger: []core.Transaction{{
		ID: 7, Date: date, Person: "Acme", Amount: decimal.RequireFromString("1500.25"),
		Direction: core.Incoming, Status: core.Completed, Method: core.Cash,
	}}})
	require.NoError(t, err)
	assert.Equal(t, "2024 Payments!A:J", vals.cleared)
	assert.Equal(t, "2024 Payments!A1:J2", vals.rng)
	require.Len(t, vals.rows, 2)
	assert.Equal(t, "Date", vals.rows[0][0])
	assert.Equal(t, []any{"2024-03-01", "Acme", "incoming", 1500.25, "completed", "cash", "", "", "", "7"}, vals.rows[1])

	vals.err = errors.New("quota")
	assert.ErrorContains(t, p.Publish(context.Background(), Artifact{}), "clear 2024 Payments!A:J")
}

func TestYearPrefixedName(t *testing.T) {
	assert.Equal(t, "2025 Payments", yearPrefixedName("Payments", 2025))
	assert.Equal(t, "2023 Payments", yearPrefixedName("2023 Payments", 2025))
	assert.Equal(t, "", yearPrefixedName("  ", 2025))
}
