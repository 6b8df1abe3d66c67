package db

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestEphemeralPutGetConsume(t *testing.T) {
	s := newTestStore(t)

	if err := s.PutEphemeral("k1", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("PutEphemeral: %v", err)
	}

	// Get does not consume.
	v, err := s.GetEphemeral("k1")
	if err != nil {
		t.Fatalf("GetEphemeral: %v", err)
	}
	if string(v) != "v1" {
		t.Fatalf("GetEphemeral = %q", v)
	}
	v, err = s.GetEphemeral("k1")
	if err != nil || string(v) != "v1" {
		t.Fatalf("second GetEphemeral = %q, %v", v, err)
	}

	// Consume returns the value once.
	v, err = s.ConsumeEphemeral("k1")
	if err != nil {
		t.Fatalf("ConsumeEphemeral: %v", err)
	}
	if string(v) != "v1" {
		t.Fatalf("ConsumeEphemeral = %q", v)
	}

	// Second consumption finds nothing.
	v, err = s.ConsumeEphemeral("k1")
	if err != nil {
		t.Fatalf("ConsumeEphemeral replay: %v", err)
	}
	if v != nil {
		t.Fatalf("replayed consume returned %q", v)
	}
}

func TestEphemeralAbsentAndExpiredLookAlike(t *testing.T) {
	s := newTestStore(t)

	// Never written.
	v, err := s.GetEphemeral("never")
	if err != nil || v != nil {
		t.Fatalf("never-written: %q, %v", v, err)
	}

	// Already expired.
	if err := s.PutEphemeral("gone", []byte("x"), -time.Second); err != nil {
		t.Fatalf("PutEphemeral: %v", err)
	}
	v, err = s.GetEphemeral("gone")
	if err != nil || v != nil {
		t.Fatalf("expired get: %q, %v", v, err)
	}
	v, err = s.ConsumeEphemeral("gone")
	if err != nil || v != nil {
		t.Fatalf("expired consume: %q, %v", v, err)
	}
}

func TestEphemeralPurgeOnWrite(t *testing.T) {
	s := newTestStore(t)

	if err := s.PutEphemeral("old", []byte("x"), -time.Second); err != nil {
		t.Fatalf("PutEphemeral old: %v", err)
	}
	if err := s.PutEphemeral("new", []byte("y"), time.Minute); err != nil {
		t.Fatalf("PutEphemeral new: %v", err)
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM ephemeral`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected expired row purged, table has %d rows", n)
	}
}

func TestEphemeralDelete(t *testing.T) {
	s := newTestStore(t)

	if err := s.PutEphemeral("k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("PutEphemeral: %v", err)
	}
	if err := s.DeleteEphemeral("k"); err != nil {
		t.Fatalf("DeleteEphemeral: %v", err)
	}
	v, err := s.GetEphemeral("k")
	if err != nil || v != nil {
		t.Fatalf("after delete: %q, %v", v, err)
	}
	// Deleting a missing key is not an error.
	if err := s.DeleteEphemeral("k"); err != nil {
		t.Fatalf("DeleteEphemeral missing: %v", err)
	}
}

func TestEphemeralConcurrentConsumeSingleWinner(t *testing.T) {
	s := newTestStore(t)

	const workers = 16
	for round := 0; round < 5; round++ {
		key := fmt.Sprintf("code-%d", round)
		if err := s.PutEphemeral(key, []byte("payload"), time.Minute); err != nil {
			t.Fatalf("PutEphemeral: %v", err)
		}

		var wg sync.WaitGroup
		wins := make(chan struct{}, workers)
		start := make(chan struct{})
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				v, err := s.ConsumeEphemeral(key)
				if err != nil {
					t.Errorf("ConsumeEphemeral: %v", err)
					return
				}
				if v != nil {
					wins <- struct{}{}
				}
			}()
		}
		close(start)
		wg.Wait()
		close(wins)

		var n int
		for range wins {
			n++
		}
		if n != 1 {
			t.Fatalf("round %d: %d consumers won, want exactly 1", round, n)
		}
	}
}
