package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/eventdesk-backend/pkg/logger"
)

const (
	defaultOutboxKeep      = 30 * 24 * time.Hour
	defaultDeadAttempts    = 10
	defaultPurgeBatch      = 500
	maxPurgeBatchesPerRun  = 200
	outboxRetentionJobName = "outbox-retention"
)

type outboxPurger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time, deadAttempts, batch int) (int64, error)
}

// OutboxRetentionJobParams: DeadAttempts must match the publisher's attempt
// ceiling so rows still being retried are kept.
type OutboxRetentionJobParams struct {
	Logger       *logger.Logger
	Repository   outboxPurger
	Keep         time.Duration
	DeadAttempts int
	BatchSize    int
}

type outboxRetentionJob struct {
	logg         *logger.Logger
	repo         outboxPurger
	keep         time.Duration
	deadAttempts int
	batch        int
	now          func() time.Time
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:         params.Logger,
		repo:         params.Repository,
		keep:         params.Keep,
		deadAttempts: params.DeadAttempts,
		batch:        params.BatchSize,
		now:          time.Now,
	}
	if job.keep <= 0 {
		job.keep = defaultOutboxKeep
	}
	if job.deadAttempts <= 0 {
		job.deadAttempts = defaultDeadAttempts
	}
	if job.batch <= 0 {
		job.batch = defaultPurgeBatch
	}
	return job, nil
}

func (j *outboxRetentionJob) Name() string { return outboxRetentionJobName }

// Run purges in batches until a short batch signals the backlog is gone.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.keep)
	var total int64
	for range maxPurgeBatchesPerRun {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := j.repo.PurgeBefore(ctx, cutoff, j.deadAttempts, j.batch)
		total += n
		if err != nil {
			return fmt.Errorf("purge outbox before %s (%d removed so far): %w", cutoff.Format(time.RFC3339), total, err)
		}
		if n < int64(j.batch) {
			break
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": total,
	}), "outbox retention cleanup complete")
	return nil
}
