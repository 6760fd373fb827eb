package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC)

	cycles := []Cycle{
		{ID: "a", StartedAt: base, FinishedAt: base.Add(30 * time.Second), Targets: 2, Downloaded: 3, Delivered: 5},
		{ID: "b", StartedAt: base.Add(12 * time.Hour), FinishedAt: base.Add(12*time.Hour + time.Minute), Targets: 2, Error: "remote authentication failed: bad password"},
		{ID: "c", StartedAt: base.Add(24 * time.Hour), FinishedAt: base.Add(24*time.Hour + 10*time.Second), Targets: 2, DownloadFailed: 1, DeliveryFailed: 1},
	}
	for _, c := range cycles {
		if err := s.Record(ctx, c); err != nil {
			t.Fatalf("record %s failed: %v", c.ID, err)
		}
	}

	recent, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}

	if len(recent) != 2 {
		t.Fatalf("expected 2 cycles, got %d", len(recent))
	}
	if recent[0].ID != "c" || recent[1].ID != "b" {
		t.Errorf("expected newest first, got %s, %s", recent[0].ID, recent[1].ID)
	}
	if recent[1].Error == "" {
		t.Error("error message should round-trip")
	}
	if !recent[0].StartedAt.Equal(cycles[2].StartedAt) || recent[0].Duration() != 10*time.Second {
		t.Errorf("timestamps should round-trip, got %v (%v)", recent[0].StartedAt, recent[0].Duration())
	}
	if recent[0].DownloadFailed != 1 || recent[0].DeliveryFailed != 1 {
		t.Errorf("counters should round-trip, got %+v", recent[0])
	}
}

func TestStore_RecentEmpty(t *testing.T) {
	recent, err := openTestStore(t).Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if recent == nil || len(recent) != 0 {
		t.Errorf("expected empty, non-nil slice, got %v", recent)
	}
}

func TestStore_RejectsDuplicateID(t *testing.T) {
	s := openTestStore(t)
	c := Cycle{ID: "dup", StartedAt: time.Now(), FinishedAt: time.Now()}

	if err := s.Record(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	if err := s.Record(context.Background(), c); err == nil {
		t.Error("recording the same cycle twice should fail")
	}
}

func TestStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Record(context.Background(), Cycle{ID: "x", StartedAt: time.Now(), FinishedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	recent, err := s.Recent(context.Background(), 10)
	if err != nil || len(recent) != 1 {
		t.Errorf("expected 1 cycle after reopen, got %d (%v)", len(recent), err)
	}
}
