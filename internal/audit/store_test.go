package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ldi/taskpool/pkg/pool"
)

func TestOpenEnablesWALMode(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")

	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	var mode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("Failed to query journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("Expected journal_mode wal, got %s", mode)
	}
}

func TestRecordThenCount(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	r := Record{
		TaskID:      "11111111-1111-1111-1111-111111111111",
		State:       "completed",
		SubmittedAt: 1000,
		FinishedAt:  1500,
		DurationMs:  500,
	}
	if err := s.Record(ctx, r); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("got %d rows, want 1", n)
	}
}

func TestRecordUpsertsOnRepeatedID(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	id := "22222222-2222-2222-2222-222222222222"
	if err := s.Record(ctx, Record{TaskID: id, State: "pending"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Record(ctx, Record{TaskID: id, State: "completed", DurationMs: 42}); err != nil {
		t.Fatal(err)
	}

	n, err := s.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("got %d rows, want 1 (upsert, not insert)", n)
	}
}

func TestSubscribeRecordsPoolOutcomes(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	p := pool.New(2, 16, time.Second, 0)
	defer p.Close()

	done := make(chan struct{}, 1)
	Subscribe(p, s, func(err error) { t.Errorf("unexpected record error: %v", err) })
	p.Subscribe(func(pool.Outcome) { done <- struct{}{} })

	p.Submit(func() error { return nil }, nil)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("outcome never observed")
	}
	time.Sleep(20 * time.Millisecond)

	n, err := s.Count(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("got %d audit rows, want 1", n)
	}
}
