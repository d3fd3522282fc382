package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/codr1/venuecal/internal/db"
	"github.com/codr1/venuecal/internal/metrics"
)

type fakeSweeper struct {
	result db.SweepResult
	err    error
	calls  int
}

func (f *fakeSweeper) SweepStatuses(context.Context) (db.SweepResult, error) {
	f.calls++
	return f.result, f.err
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func newService(t *testing.T) *Service {
	t.Helper()
	svc, err := New(Options{})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	t.Cleanup(func() { _ = svc.Stop() })
	return svc
}

func TestAddJob_Validation(t *testing.T) {
	svc := newService(t)
	noop := func(context.Context) {}

	if _, err := svc.AddJob("", "* * * * *", noop); !errors.Is(err, ErrEmptyJobName) {
		t.Fatalf("expected ErrEmptyJobName, got %v", err)
	}
	if _, err := svc.AddJob("job", " ", noop); !errors.Is(err, ErrEmptyCronExpr) {
		t.Fatalf("expected ErrEmptyCronExpr, got %v", err)
	}
	if _, err := svc.AddJob("job", "not a cron", noop); err == nil {
		t.Fatalf("expected invalid cron error")
	}
	if _, err := svc.AddJob("job", "*/5 * * * *", noop); err != nil {
		t.Fatalf("add job: %v", err)
	}
}

func TestNilService(t *testing.T) {
	var svc *Service
	if _, err := svc.AddJob("job", "* * * * *", func(context.Context) {}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if err := svc.Stop(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestRegisterStatusSweep(t *testing.T) {
	svc := newService(t)
	job, err := RegisterStatusSweep(svc, &fakeSweeper{}, "*/5 * * * *", nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if job.Name() != StatusSweepJobName {
		t.Fatalf("job name = %q", job.Name())
	}
	if _, err := RegisterStatusSweep(svc, nil, "*/5 * * * *", nil); err == nil {
		t.Fatalf("expected error without sweeper")
	}
}

func TestRunStatusSweep_RecordsMetrics(t *testing.T) {
	m := metrics.NewStore(nil)
	sweeper := &fakeSweeper{result: db.SweepResult{Expired: 2, Finished: 3}}

	result, err := RunStatusSweep(context.Background(), sweeper, m)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if result.Expired != 2 || result.Finished != 3 {
		t.Fatalf("unexpected result %+v", result)
	}
	if got := counterValue(t, m.StatusSweeps.WithLabelValues("expired")); got != 2 {
		t.Fatalf("expired counter = %v", got)
	}
	if got := counterValue(t, m.StatusSweeps.WithLabelValues("finished")); got != 3 {
		t.Fatalf("finished counter = %v", got)
	}
}

func TestRunStatusSweep_Error(t *testing.T) {
	boom := errors.New("database locked")
	_, err := RunStatusSweep(context.Background(), &fakeSweeper{err: boom}, metrics.NewStore(nil))
	if !errors.Is(err, boom) {
		t.Fatalf("expected sweeper error, got %v", err)
	}
}
