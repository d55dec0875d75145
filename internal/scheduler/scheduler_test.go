package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingTicker struct{ n atomic.Int32 }

func (c *countingTicker) Tick(context.Context) bool {
	c.n.Add(1)
	return true
}

func TestStartRunsFirstTickImmediately(t *testing.T) {
	ticker := &countingTicker{}
	s := New(ticker, time.Hour)
	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for ticker.n.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := ticker.n.Load(); got != 1 {
		t.Errorf("expected exactly one immediate tick, got %d", got)
	}
}
