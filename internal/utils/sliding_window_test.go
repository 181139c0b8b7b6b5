package utils

import (
	"testing"
	"time"
)

func TestSlidingWindowAdd(t *testing.T) {
	window := NewSlidingWindow(2 * time.Second)
	now := time.Now()
	if count := window.Add(now); count != 1 {
		t.Fatalf("expected 1, got %d", count)
	}
	if count := window.Add(now.Add(500 * time.Millisecond)); count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}
	if count := window.Add(now.Add(3 * time.Second)); count != 1 {
		t.Fatalf("expected expired hits to drop, got %d", count)
	}
}

func TestSlidingWindowBurst(t *testing.T) {
	window := NewSlidingWindow(5 * time.Second)
	now := time.Now()
	window.Add(now)
	window.Add(now.Add(1 * time.Second))
	window.Add(now.Add(2 * time.Second))
	if count := window.Add(now.Add(3 * time.Second)); count != 4 {
		t.Fatalf("expected 4, got %d", count)
	}
	if count := window.Add(now.Add(7 * time.Second)); count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}
}
