package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCronJobMetricsSplitsResults(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	job := "event-completion"
	m.ObserveRun(job, 250*time.Millisecond, nil)
	m.ObserveRun(job, time.Second, errors.New("db down"))

	if got := testutil.ToFloat64(m.runs.WithLabelValues(job, CronResultSucceeded)); got != 1 {
		t.Fatalf("expected one success, got %f", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues(job, CronResultFailed)); got != 1 {
		t.Fatalf("expected one failure, got %f", got)
	}
	if got := testutil.ToFloat64(m.lastSuccess.WithLabelValues(job)); got <= 0 {
		t.Fatalf("expected last success timestamp, got %f", got)
	}
	if count := testutil.CollectAndCount(m.duration, "cron_job_duration_seconds"); count != 1 {
		t.Fatalf("expected one duration series, got %d", count)
	}
}

func TestInventoryMetricsIgnoreNonPositive(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewInventoryMetrics(reg)
	m.AddUnits(DirectionReleased, 3)
	m.AddUnits(DirectionReleased, 0)
	m.AddUnits(DirectionConsumed, -1)
	m.AddSold(DirectionReleased, 2)

	if got := testutil.ToFloat64(m.units.WithLabelValues(DirectionReleased)); got != 3 {
		t.Fatalf("expected 3 released units, got %f", got)
	}
	if got := testutil.ToFloat64(m.sold.WithLabelValues(DirectionReleased)); got != 2 {
		t.Fatalf("expected 2 sold adjustments, got %f", got)
	}
}

func TestRefundMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRefundMetrics(reg)
	m.Observe(RefundKindOrder, RefundOutcomeSucceeded)
	m.AddAmount("cad", 4500)
	m.ObserveProcessorLatency(RefundKindOrder, 40*time.Millisecond)

	if got := testutil.ToFloat64(m.refunds.WithLabelValues(RefundKindOrder, RefundOutcomeSucceeded)); got != 1 {
		t.Fatalf("expected one refund, got %f", got)
	}
	if got := testutil.ToFloat64(m.amount.WithLabelValues("cad")); got != 4500 {
		t.Fatalf("expected 4500 minor units, got %f", got)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var refunds *RefundMetrics
	refunds.Observe(RefundKindTicket, RefundOutcomeFailed)
	var inventory *InventoryMetrics
	inventory.AddUnits(DirectionConsumed, 1)
	NewCronJobMetrics(nil).ObserveRun("noop", time.Second, nil)
}

func TestCronJobMetricsLabelsUnnamedJob(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.ObserveRun("", time.Millisecond, nil)

	if got := testutil.ToFloat64(m.runs.WithLabelValues("unknown", CronResultSucceeded)); got != 1 {
		t.Fatalf("expected unnamed job under unknown, got %f", got)
	}
	if got := normalizeLabel("outbox-retention"); got != "outbox-retention" {
		t.Fatalf("expected label kept, got %q", got)
	}
}
