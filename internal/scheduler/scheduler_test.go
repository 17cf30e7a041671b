package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/akhbar-mr/akhbar-harvester/internal/domain"
)

func TestNewRejectsBadSpec(t *testing.T) {
	job := func(context.Context) domain.RunSummary { return domain.RunSummary{} }
	if _, err := New("every now and then", job, 0, nil); err == nil {
		t.Fatal("expected error for invalid spec")
	}
	if _, err := New("*/30 * * * *", nil, 0, nil); err == nil {
		t.Fatal("expected error for nil job")
	}
}

func TestRunOnceSkipsOverlap(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	job := func(ctx context.Context) domain.RunSummary {
		close(started)
		<-release
		return domain.RunSummary{Scraped: 4, Saved: 3}
	}
	s, err := New("*/30 * * * *", job, time.Minute, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan domain.RunSummary)
	go func() {
		sum, _ := s.RunOnce(context.Background())
		done <- sum
	}()
	<-started

	if _, ok := s.RunOnce(context.Background()); ok {
		t.Fatal("overlapping run was not skipped")
	}

	close(release)
	if sum := <-done; sum.Scraped != 4 || sum.Saved != 3 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestRunOnceAppliesTimeout(t *testing.T) {
	job := func(ctx context.Context) domain.RunSummary {
		<-ctx.Done()
		return domain.RunSummary{}
	}
	s, err := New("@hourly", job, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	start := time.Now()
	if _, ok := s.RunOnce(context.Background()); !ok {
		t.Fatal("run skipped")
	}
	if time.Since(start) > time.Second {
		t.Fatal("timeout not applied")
	}
}

func TestStartStop(t *testing.T) {
	s, err := New("@every 1h", func(context.Context) domain.RunSummary { return domain.RunSummary{} }, 0, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Start()
	if n := len(s.Cron().Entries()); n != 1 {
		t.Fatalf("entries = %d", n)
	}
	<-s.Stop().Done()
}
