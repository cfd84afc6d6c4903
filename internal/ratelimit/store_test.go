package ratelimit

import (
	"testing"
	"time"
)

func TestMemoryStoreBlocksAfterMaxAttempts(t *testing.T) {
	s := NewMemoryStore(5, 15*time.Minute)
	now := time.Now()

	for i := 0; i < 5; i++ {
		if !s.Allowed("1.2.3.4", now) {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
		s.RecordFailure("1.2.3.4", now)
	}

	if s.Allowed("1.2.3.4", now) {
		t.Error("sixth attempt should be blocked")
	}

	// Other keys are unaffected.
	if !s.Allowed("5.6.7.8", now) {
		t.Error("different key should be allowed")
	}
}

func TestMemoryStoreWindowSlides(t *testing.T) {
	s := NewMemoryStore(5, 15*time.Minute)
	now := time.Now()

	for i := 0; i < 5; i++ {
		s.RecordFailure("1.2.3.4", now)
	}
	if s.Allowed("1.2.3.4", now) {
		t.Fatal("should be blocked inside the window")
	}

	later := now.Add(16 * time.Minute)
	if !s.Allowed("1.2.3.4", later) {
		t.Error("should be allowed after the window passes")
	}
}

func TestMemoryStoreReset(t *testing.T) {
	s := NewMemoryStore(5, 15*time.Minute)
	now := time.Now()

	for i := 0; i < 5; i++ {
		s.RecordFailure("1.2.3.4", now)
	}
	s.Reset("1.2.3.4")

	if !s.Allowed("1.2.3.4", now) {
		t.Error("reset should clear recorded failures")
	}
}
