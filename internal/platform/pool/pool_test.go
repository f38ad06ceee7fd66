package pool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGoRunsOnPool(t *testing.T) {
	p, err := New("test", Config{Capacity: 2, ExpiryDuration: time.Second}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Release(time.Second)

	var wg sync.WaitGroup
	var n atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		if err := p.Go(func() {
			defer wg.Done()
			n.Add(1)
		}); err != nil {
			t.Fatalf("Go: %v", err)
		}
	}
	wg.Wait()
	if n.Load() != 10 {
		t.Fatalf("ran=%d", n.Load())
	}
}

func TestGoRunsInlineWhenSaturated(t *testing.T) {
	p, err := New("saturated", Config{Capacity: 1, Nonblocking: true, ExpiryDuration: time.Second}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Release(time.Second)

	block := make(chan struct{})
	started := make(chan struct{})
	if err := p.Submit(func() {
		close(started)
		<-block
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-started

	ran := false
	if err := p.Go(func() { ran = true }); err != nil {
		t.Fatalf("Go: %v", err)
	}
	// Inline execution completes before Go returns.
	if !ran {
		t.Fatalf("task did not run on the caller")
	}
	if p.Stats().Inline != 1 {
		t.Fatalf("inline=%d", p.Stats().Inline)
	}
	close(block)
}

func TestSubmitAfterRelease(t *testing.T) {
	p, err := New("closed", Config{Capacity: 1}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Release(0); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := p.Go(func() {}); err != ErrPoolClosed {
		t.Fatalf("err=%v", err)
	}
}

func TestNewRejectsZeroCapacity(t *testing.T) {
	if _, err := New("bad", Config{}, nil); err == nil {
		t.Fatalf("expected error")
	}
}
