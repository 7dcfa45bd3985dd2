package session

import (
	"testing"
	"time"
)

func TestRegistryGetPutRemove(t *testing.T) {
	r := NewRegistry()

	if r.Get("PP101", 7) != nil {
		t.Fatal("empty registry returned a session")
	}

	s := newTestSession(&fakeStore{}, fixedClock(testStart), Config{})
	r.Put("PP101", 7, s)

	if r.Get("PP101", 7) != s {
		t.Error("Get did not return the registered session")
	}
	if r.Get("PP101", 8) != nil {
		t.Error("Get leaked a session across candidates")
	}
	if r.Get("PP102", 7) != nil {
		t.Error("Get leaked a session across papers")
	}

	r.Remove("PP101", 7)
	if r.Get("PP101", 7) != nil {
		t.Error("Remove left the session registered")
	}
}

func TestRegistryPutReplacesAndClosesOld(t *testing.T) {
	r := NewRegistry()

	store := &fakeStore{}
	now := testStart.Add(60*time.Minute - 30*time.Millisecond)
	old := Resume(testPaper(), testProfile, store, fixedClock(now), Config{}, testStart, nil)
	r.Put("PP101", 7, old)

	// Reconnect: the replacement takes over; the old countdown must be dead.
	replacement := newTestSession(&fakeStore{}, fixedClock(testStart), Config{})
	r.Put("PP101", 7, replacement)

	time.Sleep(100 * time.Millisecond)
	if _, submits, _ := store.stats(); submits != 0 {
		t.Errorf("replaced session still fired its countdown: %d submits", submits)
	}
	if r.Get("PP101", 7) != replacement {
		t.Error("replacement not registered")
	}
}

func TestRegistryCloseAll(t *testing.T) {
	r := NewRegistry()
	store := &fakeStore{}
	now := testStart.Add(60*time.Minute - 30*time.Millisecond)

	for id := 1; id <= 3; id++ {
		p := testProfile
		p.ID = id
		r.Put("PP101", id, Resume(testPaper(), p, store, fixedClock(now), Config{}, testStart, nil))
	}

	r.CloseAll()

	time.Sleep(100 * time.Millisecond)
	if _, submits, _ := store.stats(); submits != 0 {
		t.Errorf("countdowns fired after CloseAll: %d submits", submits)
	}
	if r.Get("PP101", 1) != nil {
		t.Error("CloseAll left sessions registered")
	}
}
