package cron

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeCompleter struct {
	at  time.Time
	n   int
	err error
}

func (f *fakeCompleter) CompletePastEvents(ctx context.Context, now time.Time) (int, error) {
	f.at = now
	return f.n, f.err
}

func TestEventCompletionJobPassesClock(t *testing.T) {
	now := time.Date(2026, 5, 1, 23, 0, 0, 0, time.FixedZone("EDT", -4*3600))
	completer := &fakeCompleter{n: 3}
	jobIface, err := NewEventCompletionJob(EventCompletionJobParams{Logger: testLogger(), Events: completer})
	if err != nil {
		t.Fatalf("NewEventCompletionJob: %v", err)
	}
	job := jobIface.(*eventCompletionJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !completer.at.Equal(now) || completer.at.Location() != time.UTC {
		t.Fatalf("expected UTC %s, got %s", now.UTC(), completer.at)
	}
}

func TestEventCompletionJobWrapsError(t *testing.T) {
	cause := errors.New("db down")
	jobIface, _ := NewEventCompletionJob(EventCompletionJobParams{Logger: testLogger(), Events: &fakeCompleter{err: cause}})
	if err := jobIface.Run(context.Background()); !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}
