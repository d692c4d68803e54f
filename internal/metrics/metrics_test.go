package metrics

import (
	"errors"
	"testing"
	"time"
)

func TestObserveAndSnapshot(t *testing.T) {
	t.Parallel()

	c := New()
	c.Observe("get_thread", 10*time.Millisecond, nil)
	c.Observe("get_thread", 30*time.Millisecond, nil)
	c.Observe("delete_thread", 5*time.Millisecond, errors.New("boom"))

	snaps := c.Snapshot()
	if len(snaps) != 2 {
		t.Fatalf("len=%d, want 2", len(snaps))
	}
	// Sorted by op name.
	if snaps[0].Op != "delete_thread" || snaps[1].Op != "get_thread" {
		t.Fatalf("order: %q, %q", snaps[0].Op, snaps[1].Op)
	}

	del := snaps[0]
	if del.Calls != 1 || del.Failures != 1 {
		t.Fatalf("delete_thread: %+v", del)
	}

	get := snaps[1]
	if get.Calls != 2 || get.Failures != 0 {
		t.Fatalf("get_thread: %+v", get)
	}
	if get.AvgMs != 20 {
		t.Fatalf("AvgMs=%v, want 20", get.AvgMs)
	}
	if get.Max != 30*time.Millisecond {
		t.Fatalf("Max=%v, want 30ms", get.Max)
	}
}

func TestObserveIgnoresEmptyOp(t *testing.T) {
	t.Parallel()

	c := New()
	c.Observe("", time.Millisecond, nil)
	if len(c.Snapshot()) != 0 {
		t.Fatalf("empty op recorded")
	}
}
