// Package worker republishes the summary in response to ledger change events
// and on a schedule.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"paytrack/internal/amqp"
	"paytrack/internal/log"
	"paytrack/internal/services"
)

// SummaryPublisher regenerates and publishes the summary.
type SummaryPublisher interface {
	Publish(ctx context.Context, reason string) error
}

// EventSource delivers ledger change events until ctx is done.
type EventSource interface {
	ConsumeLedgerChanged(ctx context.Context, handler amqp.Handler) error
}

type PublishWorker struct {
	publisher SummaryPublisher
	events    EventSource
	schedule  string
	logger    *log.Logger

	// mu serializes publishes from events and the scheduler.
	mu            sync.Mutex
	lastPublished time.Time
	now           func() time.Time
}

// NewPublishWorker builds a worker. events may be nil when only the schedule
// drives publishing; an empty schedule disables it.
func NewPublishWorker(publisher SummaryPublisher, events EventSource, schedule string, logger *log.Logger) *PublishWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &PublishWorker{
		publisher: publisher,
		events:    events,
		schedule:  schedule,
		logger:    logger.WithComponent(log.ComponentWorker),
		now:       time.Now,
	}
}

// HandleLedgerChanged republishes for one event. Events emitted before the
// start of the last successful publish are already covered and are skipped.
func (w *PublishWorker) HandleLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.lastPublished.IsZero() && msg.Timestamp.Before(w.lastPublished) {
		w.logger.DebugContext(ctx, "Skipping ledger change already published",
			"event_id", msg.ID, log.FieldReason, msg.Reason)
		return nil
	}
	return w.publishLocked(ctx, msg.Reason)
}

// Republish publishes unconditionally.
func (w *PublishWorker) Republish(ctx context.Context, reason string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.publishLocked(ctx, reason)
}

func (w *PublishWorker) publishLocked(ctx context.Context, reason string) error {
	started := w.now()
	if err := w.publisher.Publish(ctx, reason); err != nil {
		w.logger.ErrorContext(ctx, "Summary publish failed",
			log.FieldReason, reason, log.FieldError, err)
		return fmt.Errorf("publish summary: %w", err)
	}
	w.lastPublished = started
	return nil
}

// Run publishes once at startup, then serves events and the schedule until
// ctx is cancelled.
func (w *PublishWorker) Run(ctx context.Context) error {
	if err := w.Republish(ctx, services.ReasonScheduled); err != nil {
		w.logger.WarnContext(ctx, "Startup publish failed", log.FieldError, err)
	}

	if w.schedule != "" {
		c := cron.New()
		if _, err := c.AddFunc(w.schedule, func() {
			if err := w.Republish(ctx, services.ReasonScheduled); err != nil {
				w.logger.WarnContext(ctx, "Scheduled publish failed", log.FieldError, err)
			}
		}); err != nil {
			return fmt.Errorf("schedule republish %q: %w", w.schedule, err)
		}
		c.Start()
		w.logger.InfoContext(ctx, "Scheduled republish enabled", "schedule", w.schedule)
		defer func() { <-c.Stop().Done() }()
	}

	if w.events == nil {
		<-ctx.Done()
		return nil
	}
	err := w.events.ConsumeLedgerChanged(ctx, w.HandleLedgerChanged)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
