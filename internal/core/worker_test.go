package core

import (
	"testing"
	"time"
)

// TestCrossWorkerWakeupDeliversThroughMailbox spawns two real workers on
// real goroutines via a Pool and routes a producer/consumer pair onto
// different workers, forcing deliverWakeup's cross-worker branch (mailbox
// post, not a local ready-queue append) to carry every item across.
func TestCrossWorkerWakeupDeliversThroughMailbox(t *testing.T) {
	w0 := NewWorker(0, 0, false, false, nil)
	w1 := NewWorker(1, 0, false, false, nil)
	pool := NewPool([]*Worker{w0, w1})
	pool.Spawn()

	s, err := NewStream(1, 1) // capacity 1 forces producer/consumer to hand off on every item
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}

	const n = 20
	done := make(chan []int, 1)

	consumer := NewTask(1, w1, func(self *Task, _ any) {
		sd := StreamOpen(s, self, 'r')
		got := make([]int, 0, n)
		for i := 0; i < n; i++ {
			v, ok := s.Read(sd)
			if !ok {
				break
			}
			got = append(got, v.(int))
		}
		done <- got
	}, nil, 0)

	producer := NewTask(2, w0, func(self *Task, _ any) {
		sd := StreamOpen(s, self, 'w')
		for i := 0; i < n; i++ {
			time.Sleep(time.Millisecond)
			s.Write(sd, i)
		}
	}, nil, 0)

	pool.Assign(consumer, 1)
	pool.Assign(producer, 0)

	select {
	case got := <-done:
		if len(got) != n {
			t.Fatalf("consumer observed %d items, want %d: %v", len(got), n, got)
		}
		for i, v := range got {
			if v != i {
				t.Fatalf("got[%d] = %d, want %d (order: %v)", i, v, i, got)
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cross-worker hand-off never completed")
	}

	pool.Terminate()
	if err := pool.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
}

// TestPoolTerminateStopsIdleWorkers verifies a worker with no live tasks
// exits promptly once told to terminate, without needing any task activity
// to observe the termination message.
func TestPoolTerminateStopsIdleWorkers(t *testing.T) {
	w := NewWorker(0, 0, false, false, nil)
	pool := NewPool([]*Worker{w})
	pool.Spawn()

	pool.Terminate()

	done := make(chan error, 1)
	go func() { done <- pool.Cleanup() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Cleanup: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("idle worker never exited after Terminate")
	}
}
