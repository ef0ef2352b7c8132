package memhost

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestSchedulerRunsReenqueuedWork(t *testing.T) {
	s := &Scheduler{}
	var order []int
	s.NextTick(func() {
		order = append(order, 1)
		s.NextTick(func() { order = append(order, 2) })
	})
	s.Run()
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("run order = %v, want [1 2]", order)
	}
	if s.Pending() != 0 {
		t.Fatalf("pending = %d after drain", s.Pending())
	}
}

func TestSchedulerDropsAfterClose(t *testing.T) {
	s := &Scheduler{}
	s.Close()
	s.NextTick(func() { t.Fatalf("closed scheduler ran work") })
	s.Run()
}

// The server enqueues from HTTP handler goroutines while the tick goroutine
// drains, so enqueue and drain must be safe to interleave.
func TestSchedulerConcurrentEnqueueAndRun(t *testing.T) {
	s := &Scheduler{}
	const producers = 8
	const perProducer = 200

	var ran atomic.Int64
	var wg sync.WaitGroup
	done := make(chan struct{})

	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				s.NextTick(func() { ran.Add(1) })
			}
		}()
	}
	go func() {
		for {
			select {
			case <-done:
				return
			default:
				s.Run()
			}
		}
	}()

	wg.Wait()
	close(done)
	s.Run()

	if got := ran.Load(); got != producers*perProducer {
		t.Fatalf("ran %d actions, want %d", got, producers*perProducer)
	}
}
