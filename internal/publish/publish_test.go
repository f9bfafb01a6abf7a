package publish

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	name  string
	err   error
	delay time.Duration
	calls atomic.Int32
	got   Artifact
}

func (f *fakePublisher) Name() string { return f.name }

func (f *fakePublisher) Publish(ctx context.Context, a Artifact) error {
	f.calls.Add(1)
	f.got = a
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func TestMultiPublishesToEveryTarget(t *testing.T) {
	a := &fakePublisher{name: "a"}
	b := &fakePublisher{name: "b", err: errors.New("bucket gone")}
	c := &fakePublisher{name: "c"}
	m := NewMulti(0, a, b, c)

	results, err := m.Publish(context.Background(), Artifact{Name: "index.html", Body: []byte("<html>")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b: bucket gone")

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
	for _, p := range []*fakePublisher{a, b, c} {
		assert.Equal(t, int32(1), p.calls.Load(), p.name)
		assert.Equal(t, "index.html", p.got.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, m.Targets())
}

func TestMultiTimeout(t *testing.T) {
	slow := &fakePublisher{name: "slow", delay: time.Second}
	results, err := NewMulti(20*time.Millisecond, slow).Publish(context.Background(), Artifact{})
	require.Error(t, err)
	assert.ErrorIs(t, results[0].Err, context.DeadlineExceeded)
}

func TestMultiNoTargets(t *testing.T) {
	results, err := NewMulti(time.Second).Publish(context.Background(), Artifact{})
	assert.NoError(t, err)
	assert.Empty(t, results)
}

func TestFilePublisher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs", "index.html")
	p := &FilePublisher{Path: path}

	require.NoError(t, p.Publish(context.Background(), Artifact{Body: []byte("first")}))
	require.NoError(t, p.Publish(context.Background(), Artifact{Body: []byte("second")}))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFilePublisherCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := (&FilePublisher{Path: filepath.Join(t.TempDir(), "index.html")}).Publish(ctx, Artifact{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildRejectsUnknownTarget(t *testing.T) {
	_, cleanup, err := Build(context.Background(), Options{Targets: []string{"file", "ftp"}, SummaryFile: "x.html"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown publish target "ftp"`)
	assert.NoError(t, cleanup())
}

func TestBuildFileOnly(t *testing.T) {
	m, cleanup, err := Build(context.Background(), Options{Targets: []string{" FILE ", ""}, SummaryFile: "x.html"})
	require.NoError(t, err)
	defer cleanup()
	assert.Equal(t, []string{TargetFile}, m.Targets())
}
