// Package flush moves completed exchanges to the persistence collaborator
// without ever blocking scanning. Capture publishes to an in-process topic;
// an independent consumer drains it and saves in small ordered batches.
package flush

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"github.com/draftwing/convoscribe/internal/config"
	"github.com/draftwing/convoscribe/internal/domain"
)

const topicCaptured = "conversation.captured"

type Options struct {
	Interval  time.Duration
	BatchSize int
}

// Flusher owns the capture→persistence queue. Scanning and persistence run
// as independent flows coordinated only through the topic; a slow or
// failing store never stalls a scan.
type Flusher struct {
	pubSub *gochannel.GoChannel
	store  domain.ConversationStore
	auth   domain.Authenticator

	interval time.Duration
	batch    int

	mu      sync.Mutex
	pending []*domain.ConversationRecord
}

func New(store domain.ConversationStore, auth domain.Authenticator, opts Options) *Flusher {
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = config.DefaultFlushBatch
	}
	return &Flusher{
		// Persistent delivery keeps records published before the consumer
		// subscribes.
		pubSub:   gochannel.NewGoChannel(gochannel.Config{Persistent: true}, watermill.NopLogger{}),
		store:    store,
		auth:     auth,
		interval: opts.Interval,
		batch:    opts.BatchSize,
	}
}

// Enqueue publishes the exchanges in acceptance order.
func (f *Flusher) Enqueue(groups []*domain.MessageGroup) error {
	for _, g := range groups {
		payload, err := json.Marshal(g.Record())
		if err != nil {
			return fmt.Errorf("marshal record %s: %w", g.ID, err)
		}
		msg := message.NewMessage(uuid.NewString(), payload)
		if err := f.pubSub.Publish(topicCaptured, msg); err != nil {
			return fmt.Errorf("publish record %s: %w", g.ID, err)
		}
	}
	return nil
}

// Run consumes the topic and periodically flushes pending records. It
// returns when the context ends. Records buffered while unauthenticated
// are kept, not dropped; flushing resumes once authentication returns.
func (f *Flusher) Run(ctx context.Context) error {
	messages, err := f.pubSub.Subscribe(ctx, topicCaptured)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	go func() {
		for msg := range messages {
			f.buffer(msg)
		}
	}()

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			f.pubSub.Close()
			return ctx.Err()
		case <-ticker.C:
			f.flushBatch(ctx)
		}
	}
}

func (f *Flusher) buffer(msg *message.Message) {
	var rec domain.ConversationRecord
	if err := json.Unmarshal(msg.Payload, &rec); err != nil {
		slog.Error("discard malformed capture payload", "error", err)
		msg.Ack()
		return
	}
	f.mu.Lock()
	f.pending = append(f.pending, &rec)
	f.mu.Unlock()
	msg.Ack()
}

// flushBatch saves up to one batch from the head of the queue. A failed
// save is logged and dropped — retry policy belongs to the store contract —
// and must not block or reorder the records behind it. Skipped results are
// duplicates the store already holds and count as success.
func (f *Flusher) flushBatch(ctx context.Context) {
	if !f.auth.IsAuthenticated(ctx) {
		return
	}

	f.mu.Lock()
	n := len(f.pending)
	if n > f.batch {
		n = f.batch
	}
	batch := f.pending[:n]
	f.pending = f.pending[n:]
	f.mu.Unlock()

	for _, rec := range batch {
		result, err := f.store.Save(ctx, rec)
		if err != nil {
			slog.Error("save conversation failed",
				"record_id", rec.ID,
				"project_id", rec.ProjectID,
				"error", err,
			)
			continue
		}
		if result.Skipped {
			slog.Debug("conversation already stored", "record_id", rec.ID)
			continue
		}
		slog.Info("conversation saved", "record_id", rec.ID, "project_id", rec.ProjectID)
	}
}

// PendingCount reports queued records awaiting flush.
func (f *Flusher) PendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}
