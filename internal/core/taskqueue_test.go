package core

import "testing"

func newTestTask(uid uint64) *Task {
	return NewTask(uid, nil, func(*Task, any) {}, nil, 0)
}

func TestTaskqueueAppendRemoveIsFIFO(t *testing.T) {
	var q Taskqueue
	a, b, c := newTestTask(1), newTestTask(2), newTestTask(3)

	q.Append(a)
	q.Append(b)
	q.Append(c)

	if got := q.Remove(); got != a {
		t.Fatalf("Remove() = task %d, want task %d", got.UID, a.UID)
	}
	if got := q.Remove(); got != b {
		t.Fatalf("Remove() = task %d, want task %d", got.UID, b.UID)
	}
	if got := q.Remove(); got != c {
		t.Fatalf("Remove() = task %d, want task %d", got.UID, c.UID)
	}
	if got := q.Remove(); got != nil {
		t.Fatalf("Remove() on empty queue = %v, want nil", got)
	}
}

func TestTaskqueueRemoveOnEmptyReturnsNil(t *testing.T) {
	var q Taskqueue
	if got := q.Remove(); got != nil {
		t.Fatalf("Remove() on empty queue = %v, want nil", got)
	}
}

func TestTaskqueueIterateRemoveFalsePredicateIsNoop(t *testing.T) {
	var q Taskqueue
	q.Append(newTestTask(1))
	q.Append(newTestTask(2))

	var touched int
	q.IterateRemove(func(*Task) bool { return false }, func(*Task) { touched++ })

	if touched != 0 {
		t.Fatalf("action invoked %d times, want 0", touched)
	}
	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}
}

func TestTaskqueueIterateRemoveTruePredicateEmptiesQueue(t *testing.T) {
	var q Taskqueue
	q.Append(newTestTask(1))
	q.Append(newTestTask(2))
	q.Append(newTestTask(3))

	var drained []uint64
	q.IterateRemove(func(*Task) bool { return true }, func(t *Task) {
		drained = append(drained, t.UID)
	})

	if q.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", q.Len())
	}
	if len(drained) != 3 {
		t.Fatalf("drained %d tasks, want 3", len(drained))
	}
}

func TestTaskqueueIterateRemoveSelectivePreservesOrder(t *testing.T) {
	var q Taskqueue
	for uid := uint64(1); uid <= 5; uid++ {
		q.Append(newTestTask(uid))
	}

	// Remove even UIDs, leave odd ones in their original relative order.
	q.IterateRemove(func(t *Task) bool { return t.UID%2 == 0 }, func(*Task) {})

	var remaining []uint64
	for tq := q.Remove(); tq != nil; tq = q.Remove() {
		remaining = append(remaining, tq.UID)
	}
	want := []uint64{1, 3, 5}
	if len(remaining) != len(want) {
		t.Fatalf("remaining = %v, want %v", remaining, want)
	}
	for i, uid := range want {
		if remaining[i] != uid {
			t.Fatalf("remaining = %v, want %v", remaining, want)
		}
	}
}
