package shutdown

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestBroadcaster_TriggerCancelsContext(t *testing.T) {
	b := New(context.Background())

	select {
	case <-b.Context().Done():
		t.Fatal("context should not be done before Trigger")
	default:
	}

	b.Trigger()

	select {
	case <-b.Context().Done():
	default:
		t.Fatal("context should be done after Trigger")
	}
}

func TestBroadcaster_TriggerIsIdempotent(t *testing.T) {
	b := New(context.Background())
	b.Trigger()
	b.Trigger() // must not panic on double-close of the underlying cancel
	b.Trigger()
}

func TestBroadcaster_WaitBlocksUntilAllTracked(t *testing.T) {
	b := New(context.Background())

	var finished int32
	done1 := b.Track()
	done2 := b.Track()

	go func() {
		time.Sleep(20 * time.Millisecond)
		atomic.StoreInt32(&finished, 1)
		done1()
	}()
	go func() {
		time.Sleep(40 * time.Millisecond)
		atomic.StoreInt32(&finished, 2)
		done2()
	}()

	if ok := b.Wait(2 * time.Second); !ok {
		t.Fatal("expected Wait to return true once all components finished")
	}
	if atomic.LoadInt32(&finished) != 2 {
		t.Fatalf("expected both components to finish, got marker %d", finished)
	}
}

func TestBroadcaster_WaitTimesOut(t *testing.T) {
	b := New(context.Background())
	b.Track() // never calls its Done handle

	if ok := b.Wait(50 * time.Millisecond); ok {
		t.Fatal("expected Wait to time out when a component never finishes")
	}
}

func TestBroadcaster_TrackDoneIsIdempotent(t *testing.T) {
	b := New(context.Background())
	done := b.Track()
	done()
	done() // must not panic (sync.WaitGroup would if Done outpaced Add)

	if ok := b.Wait(time.Second); !ok {
		t.Fatal("expected Wait to return true")
	}
}
