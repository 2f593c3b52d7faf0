package jobs

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakePruner struct {
	before time.Time
	err    error
	calls  int
}

func (p *fakePruner) PruneViews(ctx context.Context, before time.Time) (int64, error) {
	p.calls++
	p.before = before
	return 3, p.err
}

func TestAddViewRetentionDisabled(t *testing.T) {
	s := New()
	if err := s.AddViewRetention("@every 1h", 0, &fakePruner{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.cron.Entries()) != 0 {
		t.Fatalf("expected no jobs, got %d", len(s.cron.Entries()))
	}
}

func TestAddViewRetentionSchedules(t *testing.T) {
	s := New()
	if err := s.AddViewRetention("@every 1h", 24*time.Hour, &fakePruner{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.cron.Entries()) != 1 {
		t.Fatalf("expected 1 job, got %d", len(s.cron.Entries()))
	}
	if err := s.AddViewRetention("not a schedule", time.Hour, &fakePruner{}); err == nil {
		t.Fatal("expected invalid schedule to be rejected")
	}
	s.Start()
	s.Stop()
}

func TestPruneViewsUsesCutoff(t *testing.T) {
	s := New()
	fixed := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	p := &fakePruner{}
	s.pruneViews(48*time.Hour, p)
	if p.calls != 1 || !p.before.Equal(fixed.Add(-48*time.Hour)) {
		t.Fatalf("unexpected prune call: calls=%d before=%v", p.calls, p.before)
	}

	// errors are logged, not propagated
	p.err = errors.New("locked")
	s.pruneViews(time.Hour, p)
	if p.calls != 2 {
		t.Fatalf("expected second call, got %d", p.calls)
	}
}
