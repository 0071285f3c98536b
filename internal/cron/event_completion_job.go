package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/eventdesk-backend/pkg/logger"
)

type eventCompleter interface {
	CompletePastEvents(ctx context.Context, now time.Time) (int, error)
}

type EventCompletionJobParams struct {
	Logger *logger.Logger
	Events eventCompleter
}

// NewEventCompletionJob moves published events whose last occurrence has
// ended to completed.
func NewEventCompletionJob(params EventCompletionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Events == nil {
		return nil, fmt.Errorf("events service required")
	}
	return &eventCompletionJob{
		logg:   params.Logger,
		events: params.Events,
		now:    time.Now,
	}, nil
}

type eventCompletionJob struct {
	logg   *logger.Logger
	events eventCompleter
	now    func() time.Time
}

func (j *eventCompletionJob) Name() string { return "event-completion" }

func (j *eventCompletionJob) Run(ctx context.Context) error {
	completed, err := j.events.CompletePastEvents(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("complete past events: %w", err)
	}
	if completed > 0 {
		j.logg.Info(j.logg.WithField(ctx, "completed", completed), "past events completed")
	}
	return nil
}
