package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/angelmondragon/buildmart-backend/pkg/logger"
)

type fakeLock struct {
	acquired bool
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error { f.acquired = false; return nil }

type testJob struct {
	name     string
	err      error
	affected int
	runs     int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) (int, error) {
	t.runs++
	return t.affected, t.err
}

type recordedRuns struct {
	success  []string
	failure  []string
	affected map[string]int
}

func (r *recordedRuns) ObserveDuration(string, time.Duration) {}
func (r *recordedRuns) IncSuccess(job string)                 { r.success = append(r.success, job) }
func (r *recordedRuns) IncFailure(job string)                 { r.failure = append(r.failure, job) }

func (r *recordedRuns) AddAffected(job string, n int) {
	if r.affected == nil {
		r.affected = map[string]int{}
	}
	r.affected[job] += n
}

func TestServiceRunCycleRunsAllJobsEvenOnFailure(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "maintenance-test", Output: io.Discard})
	registry := NewRegistry(&testJob{name: "success", affected: 3}, &testJob{name: "fail", err: errors.New("boom"), affected: 1})
	recorder := &recordedRuns{}
	service, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     &fakeLock{},
		Metrics:  recorder,
		Interval: 0,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	ctx := context.Background()
	if err := service.runCycle(ctx); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if success, ok := jobs[0].(*testJob); ok {
		if success.runs != 1 {
			t.Fatalf("expected success job to run once, ran %d", success.runs)
		}
	} else {
		t.Fatalf("first job type mismatch")
	}
	if failure, ok := jobs[1].(*testJob); ok {
		if failure.runs != 1 {
			t.Fatalf("expected failure job to run once, ran %d", failure.runs)
		}
	} else {
		t.Fatalf("second job type mismatch")
	}
	if len(recorder.success) != 1 || recorder.success[0] != "success" {
		t.Fatalf("unexpected successes %v", recorder.success)
	}
	if len(recorder.failure) != 1 || recorder.failure[0] != "fail" {
		t.Fatalf("unexpected failures %v", recorder.failure)
	}
	if recorder.affected["success"] != 3 || recorder.affected["fail"] != 1 {
		t.Fatalf("unexpected affected counts %v", recorder.affected)
	}
}

func TestServiceSkipsCycleWhenLockHeld(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "maintenance-test", Output: io.Discard})
	job := &testJob{name: "held"}
	service, err := NewService(ServiceParams{
		Logger:   logg,
		Registry: NewRegistry(job),
		Lock:     &fakeLock{acquired: true},
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected no runs while another worker holds the lock, got %d", job.runs)
	}
}

func TestNewServiceRequiresLock(t *testing.T) {
	if _, err := NewService(ServiceParams{Logger: logger.New(logger.Options{Output: io.Discard})}); err == nil {
		t.Fatal("expected lock requirement")
	}
}
