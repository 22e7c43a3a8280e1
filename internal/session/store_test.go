package session

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestStoreGetOrCreateIsIdempotent(t *testing.T) {
	st := NewStore()
	a, created := st.GetOrCreate("conn-1")
	if !created {
		t.Fatalf("first GetOrCreate should create")
	}
	b, created := st.GetOrCreate("conn-1")
	if created {
		t.Fatalf("second GetOrCreate should not create")
	}
	if a != b {
		t.Fatalf("GetOrCreate returned distinct sessions for one id")
	}
}

func TestStoreGetOrCreateRaceYieldsOneSession(t *testing.T) {
	st := NewStore()
	const n = 32
	out := make([]*Session, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out[i], _ = st.GetOrCreate("conn-racy")
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if out[i] != out[0] {
			t.Fatalf("racing GetOrCreate produced more than one session object")
		}
	}
	if st.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", st.Len())
	}
}

func TestStoreRemoveThenGetFails(t *testing.T) {
	st := NewStore()
	st.GetOrCreate("conn-1")
	st.Remove("conn-1")

	if _, err := st.Get("conn-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() after Remove error = %v, want ErrNotFound", err)
	}
	if st.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", st.Len())
	}
}

func TestSessionHistoryAppendOrder(t *testing.T) {
	s := newSession("conn-1")
	s.AppendExchange("first question", "first answer")
	s.AppendExchange("second question", "second answer")

	h := s.History()
	if len(h) != 2 {
		t.Fatalf("history length = %d, want 2", len(h))
	}
	if h[0].User != "first question" || h[1].User != "second question" {
		t.Fatalf("history out of order: %+v", h)
	}
}

func TestSessionObserveUpdatesBooking(t *testing.T) {
	s := newSession("conn-1")
	s.ObserveUtterance("brake inspection on 2026-09-02 please")
	b := s.Booking()
	if b.Service == "" || b.Date != "2026-09-02" {
		t.Fatalf("booking state not updated: %+v", b)
	}
}

func TestSessionSingleFlight(t *testing.T) {
	s := newSession("conn-1")
	s.BeginTurn()

	acquired := make(chan struct{})
	go func() {
		s.BeginTurn()
		close(acquired)
		s.EndTurn()
	}()

	select {
	case <-acquired:
		t.Fatalf("second turn began while first still in flight")
	case <-time.After(30 * time.Millisecond):
	}

	s.EndTurn()
	<-acquired
}
