package jobs

import (
	"context"
	"fmt"
	"time"

	"go-warehouse-fulfillment/internal/model"
	"go-warehouse-fulfillment/internal/service"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CapacityRepair re-derives every location's capacity from the ledger.
type CapacityRepair struct {
	capacity service.CapacityService
	logger   *zap.Logger
	timeout  time.Duration
}

func NewCapacityRepair(capacity service.CapacityService, logger *zap.Logger) *CapacityRepair {
	return &CapacityRepair{capacity: capacity, logger: logger, timeout: 5 * time.Minute}
}

// Run executes one drift scan.
func (j *CapacityRepair) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	repaired, err := j.capacity.RecomputeAll(ctx, model.SystemPrincipal)
	if err != nil {
		j.logger.Error("capacity repair failed", zap.Error(err))
		return
	}
	if repaired > 0 {
		j.logger.Warn("capacity repair corrected drift", zap.Int("locations", repaired))
	}
}

// StartScheduler registers the repair job on schedule and starts the scheduler.
// Overlapping runs are skipped.
func StartScheduler(schedule string, job *CapacityRepair, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(schedule, job.Run); err != nil {
		return nil, fmt.Errorf("register capacity repair job %q: %w", schedule, err)
	}
	c.Start()
	logger.Info("cron scheduler started", zap.String("capacity_repair", schedule))
	return c, nil
}
