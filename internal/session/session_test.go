package session

import (
	"sync"
	"testing"
)

func TestBindResolveClear(t *testing.T) {
	s := NewStore()

	if _, ok := s.Resolve("s1"); ok {
		t.Fatal("unexpected binding on fresh store")
	}

	s.Bind("s1", "p1")
	if id, ok := s.Resolve("s1"); !ok || id != "p1" {
		t.Fatalf("resolve after bind: id=%q ok=%v", id, ok)
	}

	// Re-binding replaces.
	s.Bind("s1", "p2")
	if id, _ := s.Resolve("s1"); id != "p2" {
		t.Fatalf("rebind did not replace: %q", id)
	}

	s.Clear("s1")
	if _, ok := s.Resolve("s1"); ok {
		t.Fatal("binding survived clear")
	}

	// Clearing an unknown session is a no-op.
	s.Clear("never-bound")
}

func TestConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Bind("shared", "p")
			s.Resolve("shared")
			s.Clear("shared")
		}()
	}
	wg.Wait()
}
