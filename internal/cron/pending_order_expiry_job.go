package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	defaultExpiryBatch = 100
	maxExpiryBatches   = 20
)

type pendingOrderExpirer interface {
	ExpirePending(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// PendingOrderExpiryJobParams configure the stale order sweep.
type PendingOrderExpiryJobParams struct {
	Logger *logger.Logger
	Orders pendingOrderExpirer
	// MaxAge is how long an order may stay PENDING. Zero disables the job.
	MaxAge    time.Duration
	BatchSize int
}

// NewPendingOrderExpiryJob returns a nil Job when MaxAge is zero, which the
// registry ignores.
func NewPendingOrderExpiryJob(params PendingOrderExpiryJobParams) (Job, error) {
	if params.MaxAge <= 0 {
		return nil, nil
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	return &pendingOrderExpiryJob{
		logg:   params.Logger,
		orders: params.Orders,
		maxAge: params.MaxAge,
		batch:  batch,
		now:    time.Now,
	}, nil
}

type pendingOrderExpiryJob struct {
	logg   *logger.Logger
	orders pendingOrderExpirer
	maxAge time.Duration
	batch  int
	now    func() time.Time
}

func (j *pendingOrderExpiryJob) Name() string { return "pending-order-expiry" }

// Run cancels stale PENDING orders batch by batch, restoring their stock. A
// short batch means the backlog is drained.
func (j *pendingOrderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.maxAge)
	total := 0
	for i := 0; i < maxExpiryBatches; i++ {
		n, err := j.orders.ExpirePending(ctx, cutoff, j.batch)
		total += n
		if err != nil {
			return fmt.Errorf("expire pending orders: %w", err)
		}
		if n < j.batch {
			break
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"orders_expired": total,
	}), "pending order expiry complete")
	return nil
}
