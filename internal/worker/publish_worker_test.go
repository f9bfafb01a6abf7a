package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paytrack/internal/amqp"
	"paytrack/internal/services"
)

type recordingPublisher struct {
	mu      sync.Mutex
	reasons []string
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reasons = append(p.reasons, reason)
	return p.err
}

func (p *recordingPublisher) calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.reasons...)
}

type fakeSource struct {
	msgs []*amqp.LedgerChangedMessage
	errs []error
}

func (s *fakeSource) ConsumeLedgerChanged(ctx context.Context, handler amqp.Handler) error {
	for _, m := range s.msgs {
		s.errs = append(s.errs, handler(ctx, m))
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestHandleLedgerChanged_SkipsCoveredEvents(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	w := NewPublishWorker(pub, nil, "", nil)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return base }

	require.NoError(t, w.HandleLedgerChanged(ctx, &amqp.LedgerChangedMessage{Reason: "transaction_added", Timestamp: base.Add(-time.Second)}))
	assert.Equal(t, []string{"transaction_added"}, pub.calls())

	// Emitted before the publish above started: already included.
	require.NoError(t, w.HandleLedgerChanged(ctx, &amqp.LedgerChangedMessage{Reason: "person_added", Timestamp: base.Add(-500 * time.Millisecond)}))
	assert.Len(t, pub.calls(), 1)

	require.NoError(t, w.HandleLedgerChanged(ctx, &amqp.LedgerChangedMessage{Reason: "transaction_deleted", Timestamp: base.Add(time.Second)}))
	assert.Equal(t, []string{"transaction_added", "transaction_deleted"}, pub.calls())
}

func TestHandleLedgerChanged_FailureIsReturned(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("bucket unreachable")}
	w := NewPublishWorker(pub, nil, "", nil)

	msg := amqp.NewLedgerChangedMessage("transaction_added")
	err := w.HandleLedgerChanged(context.Background(), msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket unreachable")

	// A failed publish does not mark later events as covered.
	pub.err = nil
	require.NoError(t, w.HandleLedgerChanged(context.Background(), msg))
	assert.Len(t, pub.calls(), 2)
}

func TestRun_ConsumesUntilCancelled(t *testing.T) {
	pub := &recordingPublisher{}
	src := &fakeSource{msgs: []*amqp.LedgerChangedMessage{
		{Reason: "transaction_added", Timestamp: time.Now().Add(time.Hour)},
	}}
	w := NewPublishWorker(pub, src, "@every 1h", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return len(pub.calls()) == 2 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, []string{services.ReasonScheduled, "transaction_added"}, pub.calls())
	assert.Equal(t, []error{nil}, src.errs)
}

func TestRun_RejectsBadSchedule(t *testing.T) {
	w := NewPublishWorker(&recordingPublisher{}, nil, "not a schedule", nil)
	err := w.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schedule republish")
}
