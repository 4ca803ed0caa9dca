package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ClareAI/astra-voice-tools/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Kind names the notification an entry carries
type Kind string

const (
	KindPaymentLink Kind = "payment_link"
	KindActivation  Kind = "activation"
)

// Entry is an undelivered notification waiting for redelivery
type Entry struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	ClientID   string    `json:"clientId"`
	To         string    `json:"to"`
	Body       string    `json:"body"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"lastError,omitempty"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// Store persists pending and dead-lettered entries
type Store interface {
	Push(ctx context.Context, entry Entry) error
	// Pop returns the oldest pending entry, or nil when the queue is empty
	Pop(ctx context.Context) (*Entry, error)
	Len(ctx context.Context) (int64, error)
	DeadLetter(ctx context.Context, entry Entry) error
	DeadLetters(ctx context.Context) ([]Entry, error)
}

// Sender delivers one notification and returns the provider message id
type Sender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// DeliveredHook is called after an entry has been redelivered
type DeliveredHook func(ctx context.Context, entry Entry, messageID string)

// DrainReport summarizes one pass over the queue
type DrainReport struct {
	Delivered    int `json:"delivered"`
	Retried      int `json:"retried"`
	DeadLettered int `json:"deadLettered"`
	// Deferred entries were requeued without a delivery attempt
	Deferred int `json:"deferred"`
}

// Outbox queues failed notifications and redelivers them
type Outbox struct {
	store       Store
	sender      Sender
	maxAttempts int
	timeout     time.Duration

	hookMu sync.RWMutex
	hooks  []DeliveredHook

	drainMu sync.Mutex
}

// New creates an outbox; entries are dead-lettered after maxAttempts failed deliveries
func New(store Store, sender Sender, maxAttempts int, timeout time.Duration) *Outbox {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Outbox{
		store:       store,
		sender:      sender,
		maxAttempts: maxAttempts,
		timeout:     timeout,
	}
}

// OnDelivered registers a hook run after each successful redelivery
func (o *Outbox) OnDelivered(hook DeliveredHook) {
	o.hookMu.Lock()
	defer o.hookMu.Unlock()
	o.hooks = append(o.hooks, hook)
}

// Enqueue stores an entry for later delivery. The first failed attempt counts toward maxAttempts.
func (o *Outbox) Enqueue(ctx context.Context, entry Entry) (Entry, error) {
	if entry.ID == "" {
		entry.ID = "outbox_" + uuid.New().String()
	}
	if entry.EnqueuedAt.IsZero() {
		entry.EnqueuedAt = time.Now().UTC()
	}
	if err := o.store.Push(ctx, entry); err != nil {
		return entry, fmt.Errorf("failed to enqueue %s notification for %s: %w", entry.Kind, entry.ClientID, err)
	}
	logger.Info(ctx, "Notification queued for redelivery",
		zap.String("outbox_id", entry.ID),
		zap.String("kind", string(entry.Kind)),
		zap.String("client_id", entry.ClientID))
	return entry, nil
}

// Pending returns the number of entries waiting for delivery
func (o *Outbox) Pending(ctx context.Context) (int64, error) {
	return o.store.Len(ctx)
}

// DeadLetters returns entries that exhausted their attempts
func (o *Outbox) DeadLetters(ctx context.Context) ([]Entry, error) {
	return o.store.DeadLetters(ctx)
}

// Drain makes one delivery attempt for every entry queued when the call starts.
// Concurrent drains are serialized.
func (o *Outbox) Drain(ctx context.Context) (DrainReport, error) {
	o.drainMu.Lock()
	defer o.drainMu.Unlock()

	var report DrainReport
	pending, err := o.store.Len(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to read outbox length: %w", err)
	}

	for i := int64(0); i < pending; i++ {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		entry, err := o.store.Pop(ctx)
		if err != nil {
			return report, fmt.Errorf("failed to pop outbox entry: %w", err)
		}
		if entry == nil {
			break
		}

		if err := o.deliver(ctx, *entry, &report); err != nil {
			return report, err
		}
	}

	if report != (DrainReport{}) {
		logger.Info(ctx, "Outbox drained",
			zap.Int("delivered", report.Delivered),
			zap.Int("retried", report.Retried),
			zap.Int("dead_lettered", report.DeadLettered),
			zap.Int("deferred", report.Deferred))
	}
	return report, nil
}

func (o *Outbox) deliver(ctx context.Context, entry Entry, report *DrainReport) error {
	sendCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	messageID, sendErr := o.sender.Send(sendCtx, entry.To, entry.Body)
	if sendErr == nil {
		report.Delivered++
		logger.Info(ctx, "Queued notification delivered",
			zap.String("outbox_id", entry.ID),
			zap.String("client_id", entry.ClientID),
			zap.String("sid", messageID))
		o.runHooks(ctx, entry, messageID)
		return nil
	}

	if notSent(sendErr) || ctx.Err() != nil {
		report.Deferred++
		logger.Warn(ctx, "Notification not attempted, requeued",
			zap.String("outbox_id", entry.ID),
			zap.String("client_id", entry.ClientID),
			zap.Error(sendErr))
		if err := o.store.Push(context.WithoutCancel(ctx), entry); err != nil {
			return fmt.Errorf("failed to requeue %s: %w", entry.ID, err)
		}
		return nil
	}

	entry.Attempts++
	entry.LastError = sendErr.Error()
	fields := []zap.Field{
		zap.String("outbox_id", entry.ID),
		zap.String("client_id", entry.ClientID),
		zap.Int("attempts", entry.Attempts),
		zap.Error(sendErr),
	}

	if entry.Attempts >= o.maxAttempts {
		report.DeadLettered++
		logger.Error(ctx, "Notification moved to dead letter list", fields...)
		if err := o.store.DeadLetter(ctx, entry); err != nil {
			return fmt.Errorf("failed to dead-letter %s: %w", entry.ID, err)
		}
		return nil
	}

	report.Retried++
	logger.Warn(ctx, "Notification redelivery failed, requeued", fields...)
	if err := o.store.Push(ctx, entry); err != nil {
		return fmt.Errorf("failed to requeue %s: %w", entry.ID, err)
	}
	return nil
}

// notSent reports whether the sender says the message never left the process, e.g. a local rate limit wait
func notSent(err error) bool {
	var ns interface{ NotSent() bool }
	return errors.As(err, &ns) && ns.NotSent()
}

func (o *Outbox) runHooks(ctx context.Context, entry Entry, messageID string) {
	o.hookMu.RLock()
	hooks := append([]DeliveredHook(nil), o.hooks...)
	o.hookMu.RUnlock()

	for _, hook := range hooks {
		hook(ctx, entry, messageID)
	}
}
