package scheduler

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
)

func TestRegisterJobDuplicate(t *testing.T) {
	service := NewService(arbor.NewLogger())

	if err := service.RegisterJob("digest", "0 0 21 * * *", "daily digest", func() error { return nil }); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := service.RegisterJob("digest", "0 0 22 * * *", "again", func() error { return nil }); err == nil {
		t.Fatal("Expected an error for a duplicate job name")
	}
}

func TestRegisterJobInvalidSchedule(t *testing.T) {
	service := NewService(arbor.NewLogger())

	if err := service.RegisterJob("bad", "not a schedule", "", func() error { return nil }); err == nil {
		t.Fatal("Expected an error for an invalid schedule")
	}
}

func TestStartTwice(t *testing.T) {
	service := NewService(arbor.NewLogger())

	if err := service.Start(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	defer service.Stop()

	if err := service.Start(); err == nil {
		t.Fatal("Expected an error starting twice")
	}
	if !service.IsRunning() {
		t.Error("Expected the scheduler to report running")
	}
}

func TestStopIdempotent(t *testing.T) {
	service := NewService(arbor.NewLogger())
	service.Stop()

	if err := service.Start(); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	service.Stop()
	service.Stop()

	if service.IsRunning() {
		t.Error("Expected the scheduler to report stopped")
	}
}

func TestTriggerJobNotRegistered(t *testing.T) {
	service := NewService(arbor.NewLogger())

	if err := service.TriggerJob("missing"); err == nil {
		t.Fatal("Expected an error for an unregistered job")
	}
}

func TestTriggerJobRuns(t *testing.T) {
	service := NewService(arbor.NewLogger())

	done := make(chan struct{})
	err := service.RegisterJob("compaction", "0 30 3 * * *", "seen-set compaction", func() error {
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if err := service.TriggerJob("compaction"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected the job to run")
	}
}

func TestTriggerJobRecordsError(t *testing.T) {
	service := NewService(arbor.NewLogger())

	done := make(chan struct{})
	err := service.RegisterJob("digest", "0 0 21 * * *", "", func() error {
		defer close(done)
		return fmt.Errorf("smtp down")
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if err := service.TriggerJob("digest"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	<-done

	deadline := time.Now().Add(2 * time.Second)
	for {
		statuses := service.Statuses()
		if len(statuses) == 1 && statuses[0].LastError == "smtp down" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Expected the job error to be recorded")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestTriggerSkipsWhileRunning(t *testing.T) {
	service := NewService(arbor.NewLogger())

	var runs atomic.Int64
	release := make(chan struct{})
	started := make(chan struct{})

	err := service.RegisterJob("digest", "0 0 21 * * *", "", func() error {
		runs.Add(1)
		close(started)
		<-release
		return nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if err := service.TriggerJob("digest"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	<-started

	if err := service.TriggerJob("digest"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	time.Sleep(50 * time.Millisecond)

	if runs.Load() != 1 {
		t.Errorf("Expected 1 run while the job was busy, got %d", runs.Load())
	}
}

func TestStatusesSorted(t *testing.T) {
	service := NewService(arbor.NewLogger())

	_ = service.RegisterJob("digest", "0 0 21 * * *", "daily digest", func() error { return nil })
	_ = service.RegisterJob("compaction", "0 30 3 * * *", "seen-set compaction", func() error { return nil })

	statuses := service.Statuses()
	if len(statuses) != 2 {
		t.Fatalf("Expected 2 statuses, got %d", len(statuses))
	}
	if statuses[0].Name != "compaction" || statuses[1].Name != "digest" {
		t.Errorf("Expected statuses sorted by name, got %s, %s", statuses[0].Name, statuses[1].Name)
	}
	if statuses[1].Schedule != "0 0 21 * * *" {
		t.Errorf("Expected the registered schedule, got %s", statuses[1].Schedule)
	}
}
