package monitor

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestContext(t *testing.T) (*Context, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "trace-w0.log")
	ctx, err := NewContext(filepath.Join(dir, "trace-"), "w0", ".log", 0)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx, path
}

func readLines(t *testing.T, ctx *Context, path string) []string {
	t.Helper()
	if err := ctx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open trace file: %v", err)
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}

func TestTaskRecordStopWritesOneLinePerDispatch(t *testing.T) {
	ctx, path := newTestContext(t)
	rec := NewTaskRecord(ctx, 42, "worker-task", FlagTimes)

	rec.Start()
	rec.Stop(StateReady)
	rec.Start()
	rec.Stop(StateZombie)

	lines := readLines(t, ctx, path)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "disp 1 ") {
		t.Errorf("first line missing disp 1: %q", lines[0])
	}
	if !strings.Contains(lines[1], "disp 2 ") {
		t.Errorf("second line missing disp 2: %q", lines[1])
	}
	if !strings.Contains(lines[1], "st Z ") {
		t.Errorf("zombie line missing state: %q", lines[1])
	}
	if !strings.Contains(lines[1], "creat ") {
		t.Errorf("zombie line missing creat field: %q", lines[1])
	}
}

func TestTaskRecordStopBlockedUsesSubReason(t *testing.T) {
	ctx, path := newTestContext(t)
	rec := NewTaskRecord(ctx, 1, "", 0)
	ev := NewStreamEvent(rec, 7, 'r')

	rec.Start()
	ev.BlockOn() // simulates the task blocking partway through this dispatch
	rec.Stop(StateBlocked)

	lines := readLines(t, ctx, path)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if !strings.Contains(lines[0], "st Bi ") {
		t.Errorf("line missing blocked-on-input sub-reason: %q", lines[0])
	}
}

func TestDirtyListEntryRecordedAtMostOncePerDispatch(t *testing.T) {
	ctx, path := newTestContext(t)
	rec := NewTaskRecord(ctx, 1, "t", FlagStreams)

	ev := NewStreamEvent(rec, 5, 'w')
	rec.Start()
	ev.Moved()
	ev.Moved() // marking dirty twice in one dispatch must not double-link
	rec.Stop(StateReady)

	lines := readLines(t, ctx, path)
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if strings.Count(lines[0], "5,w,") != 1 {
		t.Errorf("descriptor 5 recorded more than once: %q", lines[0])
	}
	if !strings.Contains(lines[0], "5,w,O,2,--*;") {
		t.Errorf("unexpected dirty entry: %q", lines[0])
	}
}

func TestReplacedDescriptorShowsNewSidThenSettlesToInUse(t *testing.T) {
	ctx, path := newTestContext(t)
	rec := NewTaskRecord(ctx, 1, "t", FlagStreams)

	ev := NewStreamEvent(rec, 5, 'r')
	rec.Start()
	rec.Stop(StateReady) // settle the Opened state before testing Replace

	rec.Start()
	ev.Replaced(11)
	rec.Stop(StateReady)

	rec.Start()
	ev.Moved() // any later dirtying activity must report InUse, not Replaced
	rec.Stop(StateReady)

	lines := readLines(t, ctx, path)
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3: %v", len(lines), lines)
	}
	if !strings.Contains(lines[1], "11,r,R,0,---;") {
		t.Errorf("dispatch after replace missing new-sid R entry: %q", lines[1])
	}
	if !strings.Contains(lines[2], "11,r,I,1,--*;") {
		t.Errorf("following dispatch missing settled InUse entry: %q", lines[2])
	}
}

func TestClosedDescriptorIsFreedAfterPrinting(t *testing.T) {
	ctx, path := newTestContext(t)
	rec := NewTaskRecord(ctx, 1, "t", FlagStreams)

	ev := NewStreamEvent(rec, 9, 'r')
	rec.Start()
	ev.Closed()
	rec.Stop(StateReady)

	lines := readLines(t, ctx, path)
	if !strings.Contains(lines[0], "9,r,C,0,---;") {
		t.Errorf("unexpected closed entry: %q", lines[0])
	}
	if ev.owner != nil {
		t.Errorf("closed descriptor not freed: owner still set")
	}
}
