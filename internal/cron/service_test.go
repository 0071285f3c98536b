package cron

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/angelmondragon/eventdesk-backend/pkg/logger"
	"github.com/angelmondragon/eventdesk-backend/pkg/metrics"
)

type fakeLock struct {
	held     bool
	released int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.released++
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func TestRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	ok := &testJob{name: "event-completion"}
	failing := &testJob{name: "outbox-retention", err: errors.New("boom")}
	lock := &fakeLock{}
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(failing, ok),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	err = service.runCycle(context.Background())
	if err == nil || !strings.Contains(err.Error(), "outbox-retention: boom") {
		t.Fatalf("expected combined job error, got %v", err)
	}
	if ok.runs != 1 || failing.runs != 1 {
		t.Fatalf("expected both jobs to run once, got %d and %d", ok.runs, failing.runs)
	}
	if lock.released != 1 {
		t.Fatalf("expected lock released once, got %d", lock.released)
	}

	expected := `
# HELP cron_job_runs_total Cron job runs by result.
# TYPE cron_job_runs_total counter
cron_job_runs_total{job="event-completion",result="succeeded"} 1
cron_job_runs_total{job="outbox-retention",result="failed"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "cron_job_runs_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}

func TestRunCycleSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "event-completion"}
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job),
		Lock:     &fakeLock{held: true},
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected job skipped, ran %d", job.runs)
	}
}

func TestRunNamedRunsOnlyThatJob(t *testing.T) {
	completion := &testJob{name: "event-completion"}
	retention := &testJob{name: "outbox-retention"}
	lock := &fakeLock{}
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(completion, retention),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	if err := service.RunNamed(context.Background(), "outbox-retention"); err != nil {
		t.Fatalf("run named: %v", err)
	}
	if completion.runs != 0 || retention.runs != 1 {
		t.Fatalf("expected only retention to run, got %d and %d", completion.runs, retention.runs)
	}
	if lock.released != 1 {
		t.Fatalf("expected lock released, got %d", lock.released)
	}
	if err := service.RunNamed(context.Background(), "nope"); err == nil {
		t.Fatal("expected unknown job error")
	}
}

func TestNextRunAlignsToIntervalBoundary(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 7, 30, 0, time.UTC)
	if got := nextRun(now, 15*time.Minute); !got.Equal(time.Date(2026, 3, 14, 10, 15, 0, 0, time.UTC)) {
		t.Fatalf("unexpected next run %s", got)
	}
	onBoundary := time.Date(2026, 3, 14, 10, 15, 0, 0, time.UTC)
	if got := nextRun(onBoundary, 15*time.Minute); !got.Equal(onBoundary.Add(15 * time.Minute)) {
		t.Fatalf("expected strictly later boundary, got %s", got)
	}
}
