// Package publish pushes the rendered summary to the places it is served from.
//
// A publish failure never undoes the ledger mutation that triggered it; callers
// report the returned error as a warning and move on. Nothing here retries.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"paytrack/internal/core"
)

// Target names accepted in PUBLISH_TARGETS.
const (
	TargetFile   = "file"
	TargetS3     = "s3"
	TargetGCS    = "gcs"
	TargetSheets = "sheets"
)

// Artifact is one rendered summary plus the ledger it was rendered from.
type Artifact struct {
	// Name is the object name on static hosts, e.g. "index.html".
	Name        string
	ContentType string
	Body        []byte
	// Ledger is mirrored by targets that hold rows rather than a page.
	Ledger []core.Transaction
}

// Publisher makes an artifact visible on one target.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, a Artifact) error
}

// Result is the outcome of publishing to one target.
type Result struct {
	Target     string
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Multi publishes to several targets concurrently.
type Multi struct {
	publishers []Publisher
	timeout    time.Duration
}

// NewMulti fans out to ps. A zero timeout leaves the caller's deadline in charge.
func NewMulti(timeout time.Duration, ps ...Publisher) *Multi {
	return &Multi{publishers: ps, timeout: timeout}
}

// Targets lists the configured target names in order.
func (m *Multi) Targets() []string {
	names := make([]string, len(m.publishers))
	for i, p := range m.publishers {
		names[i] = p.Name()
	}
	return names
}

// Publish runs every publisher to completion. One target failing does not stop
// the others; the returned error joins every failure.
func (m *Multi) Publish(ctx context.Context, a Artifact) ([]Result, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	results := make([]Result, len(m.publishers))
	var g errgroup.Group
	for i, p := range m.publishers {
		i, p := i, p // per-iteration copies; go.mod targets Go 1.21 loop semantics
		g.Go(func() error {
			started := time.Now()
			err := p.Publish(ctx, a)
			results[i] = Result{Target: p.Name(), Err: err, StartedAt: started, FinishedAt: time.Now()}
			if err != nil {
				slog.WarnContext(ctx, "Summary publish failed",
					"target", p.Name(), "artifact", a.Name, "error", err)
				return nil
			}
			slog.InfoContext(ctx, "Summary published",
				"target", p.Name(), "artifact", a.Name, "bytes", len(a.Body),
				"duration_ms", time.Since(started).Milliseconds())
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Target, r.Err))
		}
	}
	return results, errors.Join(errs...)
}
