package domain

import (
	"errors"
	"testing"
)

func TestCycleErrorMessage(t *testing.T) {
	t.Parallel()

	err := &CycleError{Step: "publish", Err: errors.New("git push failed")}
	want := "cycle step publish: git push failed"
	if got := err.Error(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestCycleErrorUnwrap(t *testing.T) {
	t.Parallel()

	err := &CycleError{Step: "rotate", Err: ErrAlreadyRunning}
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatal("expected errors.Is to match ErrAlreadyRunning")
	}
}

func TestStateCurrent(t *testing.T) {
	t.Parallel()

	s := NewState()
	if got := s.Current("a-6hp.html"); got != "a-6hp.html" {
		t.Fatalf("unrotated page should resolve to canonical name, got %q", got)
	}

	s.CurrentURLs["a-6hp.html"] = "a-6hp-x7k2m9.html"
	if got := s.Current("a-6hp.html"); got != "a-6hp-x7k2m9.html" {
		t.Fatalf("rotated page should resolve to current name, got %q", got)
	}
}
