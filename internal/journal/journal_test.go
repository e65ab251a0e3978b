package journal

import (
	"fmt"
	"testing"
	"time"
)

func TestMemoryStoreNewestFirst(t *testing.T) {
	store := NewMemory(10)

	for i := 0; i < 3; i++ {
		err := store.Append(Record{
			EndedAt: time.Now(),
			Reason:  fmt.Sprintf("reason-%d", i),
		})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	recs, err := store.Recent(0)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(recs))
	}
	if recs[0].Reason != "reason-2" {
		t.Errorf("Expected newest record first, got %q", recs[0].Reason)
	}
	if recs[2].Reason != "reason-0" {
		t.Errorf("Expected oldest record last, got %q", recs[2].Reason)
	}
}

func TestMemoryStoreKeepsLast(t *testing.T) {
	store := NewMemory(5)

	for i := 0; i < 12; i++ {
		_ = store.Append(Record{Reason: fmt.Sprintf("reason-%d", i)})
	}

	recs, err := store.Recent(0)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recs) != 5 {
		t.Fatalf("Expected 5 records after overflow, got %d", len(recs))
	}
	if recs[0].Reason != "reason-11" {
		t.Errorf("Expected reason-11 first, got %q", recs[0].Reason)
	}
	if recs[4].Reason != "reason-7" {
		t.Errorf("Expected reason-7 last, got %q", recs[4].Reason)
	}
}

func TestMemoryStoreRecentLimit(t *testing.T) {
	store := NewMemory(10)

	for i := 0; i < 6; i++ {
		_ = store.Append(Record{Reason: fmt.Sprintf("reason-%d", i)})
	}

	recs, err := store.Recent(2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(recs))
	}
	if recs[0].Reason != "reason-5" || recs[1].Reason != "reason-4" {
		t.Errorf("Expected the two newest records, got %q and %q", recs[0].Reason, recs[1].Reason)
	}
}

func TestOpenDefaultsToMemory(t *testing.T) {
	store, err := Open(Options{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	if _, ok := store.(*memoryStore); !ok {
		t.Errorf("Expected in-memory backend without a redis address, got %T", store)
	}
}
