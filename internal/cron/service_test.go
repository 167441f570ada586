package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/marketprep-backend/pkg/logger"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeLock struct {
	acquired bool
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquired {
		return false, nil
	}
	f.acquired = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.acquired = false
	f.releases++
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

func TestServiceRunOnceRunsAllJobsEvenOnFailure(t *testing.T) {
	success := &testJob{name: "success"}
	failure := &testJob{name: "fail", err: errors.New("boom")}
	lock := &fakeLock{}
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: NewRegistry(failure, success),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	err = service.RunOnce(context.Background())
	if err == nil || !errors.Is(err, failure.err) {
		t.Fatalf("expected combined job error, got %v", err)
	}
	if success.runs != 1 || failure.runs != 1 {
		t.Fatalf("expected each job to run once, got success=%d failure=%d", success.runs, failure.runs)
	}
	if lock.releases != 1 || lock.acquired {
		t.Fatalf("expected lock released once, got %d (held=%v)", lock.releases, lock.acquired)
	}
}

func TestServiceRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "only"}
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: NewRegistry(job),
		Lock:     &fakeLock{acquired: true},
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected job skipped, ran %d", job.runs)
	}
}

type signalJob struct {
	ran chan struct{}
}

func (s *signalJob) Name() string { return "signal" }

func (s *signalJob) Run(context.Context) error {
	select {
	case s.ran <- struct{}{}:
	default:
	}
	return nil
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	job := &signalJob{ran: make(chan struct{}, 1)}
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: NewRegistry(job),
		Lock:     &LocalLock{},
		Interval: time.Hour,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.Run(ctx) }()

	select {
	case <-job.ran:
	case <-time.After(5 * time.Second):
		t.Fatal("first tick never ran")
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
