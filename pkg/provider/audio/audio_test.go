package audio

import (
	"testing"

	"github.com/acuvox/acuvox/pkg/types"
)

func TestFrameQueuePushAndReceive(t *testing.T) {
	t.Parallel()

	q := NewFrameQueue(4)
	for i := range 3 {
		if ok := q.Push(types.AudioFrame{Data: []byte{byte(i), 0}}); !ok {
			t.Fatalf("Push %d dropped with free capacity", i)
		}
	}
	q.Close()

	var got []byte
	for f := range q.Frames() {
		got = append(got, f.Data[0])
	}
	if len(got) != 3 || got[0] != 0 || got[2] != 2 {
		t.Errorf("frames = %v, want [0 1 2]", got)
	}
	if q.Dropped() != 0 {
		t.Errorf("Dropped = %d, want 0", q.Dropped())
	}
}

func TestFrameQueueDropsWhenFull(t *testing.T) {
	t.Parallel()

	q := NewFrameQueue(2)
	q.Push(types.AudioFrame{})
	q.Push(types.AudioFrame{})

	if ok := q.Push(types.AudioFrame{}); ok {
		t.Error("Push succeeded on a full queue")
	}
	if q.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", q.Dropped())
	}

	// Consuming one frame frees a slot again.
	<-q.Frames()
	if ok := q.Push(types.AudioFrame{}); !ok {
		t.Error("Push dropped after a slot was freed")
	}
}

func TestFrameQueueCloseIdempotent(t *testing.T) {
	t.Parallel()

	q := NewFrameQueue(1)
	if err := q.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, open := <-q.Frames(); open {
		t.Error("Frames channel still open after Close")
	}
}

func TestFrameQueuePushAfterClose(t *testing.T) {
	t.Parallel()

	q := NewFrameQueue(4)
	q.Push(types.AudioFrame{Data: []byte{1, 0}})
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// A capture callback may still fire after the consumer closed the
	// queue; the frame is dropped, never a panic.
	if ok := q.Push(types.AudioFrame{Data: []byte{2, 0}}); ok {
		t.Error("Push succeeded on a closed queue")
	}
	if q.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", q.Dropped())
	}

	// The frame pushed before Close is still readable.
	f, open := <-q.Frames()
	if !open || f.Data[0] != 1 {
		t.Errorf("pending frame = %v open=%v, want data[0]=1", f, open)
	}
	if _, open := <-q.Frames(); open {
		t.Error("Frames channel still open after draining")
	}
}

func TestDrainConsumesUntilClose(t *testing.T) {
	t.Parallel()

	ch := make(chan types.AudioFrame, 8)
	for range 8 {
		ch <- types.AudioFrame{}
	}
	close(ch)

	Drain(ch)
	if _, open := <-ch; open {
		t.Error("channel not fully drained")
	}
}
