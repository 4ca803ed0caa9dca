package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/ClareAI/astra-voice-tools/pkg/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Redeliverer drains the outbox on a cron schedule
type Redeliverer struct {
	cron    *cron.Cron
	outbox  *Outbox
	timeout time.Duration
}

// NewRedeliverer schedules Drain; schedule accepts standard 5-field specs and descriptors like "@every 5m"
func NewRedeliverer(outbox *Outbox, schedule string, timeout time.Duration) (*Redeliverer, error) {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	r := &Redeliverer{
		cron:    cron.New(),
		outbox:  outbox,
		timeout: timeout,
	}
	if _, err := r.cron.AddFunc(schedule, r.run); err != nil {
		return nil, fmt.Errorf("invalid outbox drain schedule %q: %w", schedule, err)
	}
	return r, nil
}

func (r *Redeliverer) run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	ctx = logger.WithFields(ctx, zap.String("job", "outbox_redelivery"))

	if _, err := r.outbox.Drain(ctx); err != nil {
		logger.Error(ctx, "Outbox redelivery failed", zap.Error(err))
	}
}

// Start starts the scheduler in its own goroutine
func (r *Redeliverer) Start() {
	r.cron.Start()
	logger.Base().Info("Outbox redelivery scheduled", zap.Int("entries", len(r.cron.Entries())))
}

// Stop stops the scheduler and waits for a running drain to finish
func (r *Redeliverer) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}
