package search

import (
	"context"
	"testing"
	"time"

	"github.com/Clark-Hu/reelview/internal/logging"
)

func TestRegistryReusesCoordinatorPerSession(t *testing.T) {
	src := newFakeSource(true)
	r := NewRegistry(src, Options{PerPage: 21, Logger: logging.Nop()}, 4, time.Minute)
	defer r.Close()

	a := r.Get(context.Background(), "alice")
	if a != r.Get(context.Background(), "alice") {
		t.Fatalf("same session returned a different coordinator")
	}
	if a == r.Get(context.Background(), "bob") {
		t.Fatalf("sessions share a coordinator")
	}
	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}
	waitFor(t, a, 1)
}

func TestRegistryRemoveClosesCoordinator(t *testing.T) {
	src := newFakeSource(true)
	r := NewRegistry(src, Options{Logger: logging.Nop()}, 4, time.Minute)
	defer r.Close()

	c := r.Get(context.Background(), "alice")
	waitFor(t, c, 1)
	r.Remove("alice")

	if r.Len() != 0 {
		t.Fatalf("Len = %d after Remove", r.Len())
	}
	before := len(src.movieQueries())
	gen := c.Update(Change{Filters: tuple("heat")})
	if _, err := c.Wait(context.Background(), gen); err != nil {
		t.Fatalf("Wait on closed coordinator: %v", err)
	}
	if len(src.movieQueries()) != before {
		t.Fatalf("closed coordinator issued a request")
	}
}

func TestRegistryEvictsLeastRecentlyUsed(t *testing.T) {
	src := newFakeSource(true)
	r := NewRegistry(src, Options{Logger: logging.Nop()}, 2, time.Minute)
	defer r.Close()

	first := r.Get(context.Background(), "a")
	r.Get(context.Background(), "b")
	r.Get(context.Background(), "c")

	if r.Len() != 2 {
		t.Fatalf("Len = %d, want 2", r.Len())
	}
	if r.Get(context.Background(), "a") == first {
		t.Fatalf("evicted session kept its coordinator")
	}
}

func TestRegistryExpiresIdleSessions(t *testing.T) {
	src := newFakeSource(true)
	r := NewRegistry(src, Options{Logger: logging.Nop()}, 4, 30*time.Millisecond)
	defer r.Close()

	first := r.Get(context.Background(), "alice")
	time.Sleep(80 * time.Millisecond)
	if r.Get(context.Background(), "alice") == first {
		t.Fatalf("idle coordinator survived its TTL")
	}
}
