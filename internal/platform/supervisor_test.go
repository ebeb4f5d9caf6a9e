package platform

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func fastPolicy(maxRestarts int) SupervisorPolicy {
	return SupervisorPolicy{
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		BackoffFactor:  1,
		MaxRestarts:    maxRestarts,
	}
}

func TestSupervisorRestartsFailingTask(t *testing.T) {
	supervisor := NewSupervisor(fastPolicy(0), SupervisorHooks{})
	var calls atomic.Int32
	run := func(ctx context.Context) error {
		if calls.Add(1) <= 2 {
			return errors.New("listener closed")
		}
		<-ctx.Done()
		return ctx.Err()
	}
	if err := supervisor.Start(context.Background(), TaskSpec{Name: "http"}, run); err != nil {
		t.Fatalf("start task: %v", err)
	}
	deadline := time.Now().Add(250 * time.Millisecond)
	for time.Now().Before(deadline) && calls.Load() < 3 {
		time.Sleep(2 * time.Millisecond)
	}
	if calls.Load() < 3 {
		t.Fatalf("expected at least 3 calls, got=%d", calls.Load())
	}
	supervisor.StopAll()
	if len(supervisor.Tasks()) != 0 {
		t.Fatalf("expected no tasks after stop all, got=%v", supervisor.Tasks())
	}
}

func TestSupervisorStopsTaskByName(t *testing.T) {
	supervisor := NewSupervisor(fastPolicy(0), SupervisorHooks{})
	stopped := make(chan struct{})
	if err := supervisor.Start(context.Background(), TaskSpec{Name: "driver"}, func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return ctx.Err()
	}); err != nil {
		t.Fatalf("start task: %v", err)
	}
	supervisor.Stop("driver")
	select {
	case <-stopped:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected task to stop after named stop")
	}
	if len(supervisor.Tasks()) != 0 {
		t.Fatalf("expected no tasks after named stop, got=%v", supervisor.Tasks())
	}
}

func TestSupervisorRejectsDuplicateTaskName(t *testing.T) {
	supervisor := NewSupervisor(SupervisorPolicy{}, SupervisorHooks{})
	if err := supervisor.Start(context.Background(), TaskSpec{Name: "dup"}, func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	}); err != nil {
		t.Fatalf("start task: %v", err)
	}
	if err := supervisor.Start(context.Background(), TaskSpec{Name: "dup"}, func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected duplicate task name to fail")
	}
	supervisor.StopAll()
}

func TestSupervisorTransientTaskFinishesCleanly(t *testing.T) {
	supervisor := NewSupervisor(fastPolicy(0), SupervisorHooks{})
	var calls atomic.Int32
	if err := supervisor.Start(context.Background(), TaskSpec{Name: "driver", Restart: RestartTransient}, func(context.Context) error {
		calls.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("start task: %v", err)
	}
	supervisor.Wait("driver")
	if calls.Load() != 1 {
		t.Fatalf("expected a clean exit not to restart, calls=%d", calls.Load())
	}
	children := supervisor.Children()
	if len(children) != 1 || children[0].Running || children[0].RestartCount != 0 {
		t.Fatalf("unexpected children: %+v", children)
	}
}

func TestSupervisorPermanentFailureHook(t *testing.T) {
	type failure struct {
		name     string
		restarts int
		err      string
	}
	failures := make(chan failure, 1)
	supervisor := NewSupervisor(fastPolicy(1), SupervisorHooks{
		OnTaskPermanentFailure: func(name string, err error, restartCount int) {
			failures <- failure{name: name, restarts: restartCount, err: err.Error()}
		},
	})
	if err := supervisor.Start(context.Background(), TaskSpec{Name: "http"}, func(context.Context) error {
		return errors.New("boom")
	}); err != nil {
		t.Fatalf("start task: %v", err)
	}
	select {
	case got := <-failures:
		if got.name != "http" || got.restarts != 1 || got.err != "boom" {
			t.Fatalf("unexpected failure: %+v", got)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected permanent failure hook callback")
	}
	supervisor.Wait("http")
	children := supervisor.Children()
	if len(children) != 1 || !children[0].PermanentFailed || children[0].LastError != "boom" {
		t.Fatalf("unexpected children: %+v", children)
	}
}

func TestSupervisorStopsWithParentContext(t *testing.T) {
	supervisor := NewSupervisor(fastPolicy(0), SupervisorHooks{})
	ctx, cancel := context.WithCancel(context.Background())
	if err := supervisor.Start(ctx, TaskSpec{Name: "driver"}, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}); err != nil {
		t.Fatalf("start task: %v", err)
	}
	cancel()
	supervisor.Wait("driver")
	if len(supervisor.Tasks()) != 0 {
		t.Fatalf("expected no tasks after parent cancel, got=%v", supervisor.Tasks())
	}
}
