package lazyarray

import (
	"testing"

	"github.com/google/uuid"
)

type recordingSubscriber struct {
	NoopSubscriber
	events *[]string
}

func (r recordingSubscriber) OnCacheMiss(index int) {
	*r.events = append(*r.events, "miss")
}

func (r recordingSubscriber) OnFileCreated() {
	*r.events = append(*r.events, "created")
}

func TestBusFansOutToEverySubscriber(t *testing.T) {
	var order []string
	b := newBus(nil)
	b.subscribe(recordingSubscriber{events: &order, NoopSubscriber: NoopSubscriber{}})
	b.subscribe(recordingSubscriber{events: &order, NoopSubscriber: NoopSubscriber{}})

	b.fileCreated()
	if len(order) != 2 || order[0] != "created" || order[1] != "created" {
		t.Fatalf("fileCreated() fan-out = %v, want two \"created\" events", order)
	}
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	var events []string
	b := newBus(nil)
	id := b.subscribe(recordingSubscriber{events: &events})
	b.cacheMiss(1)
	b.unsubscribe(id)
	b.cacheMiss(2)
	if len(events) != 1 {
		t.Fatalf("events = %v, want exactly one event before unsubscribe took effect", events)
	}
}

func TestBusUnsubscribeUnknownIsNoop(t *testing.T) {
	b := newBus(nil)
	var events []string
	b.subscribe(recordingSubscriber{events: &events})
	b.unsubscribe(uuid.UUID{})
	b.cacheMiss(0)
	if len(events) != 1 {
		t.Fatalf("unsubscribing an unknown id affected delivery: %v", events)
	}
}

func TestChunkKindString(t *testing.T) {
	cases := map[ChunkKind]string{ChunkRead: "read", ChunkWrite: "write", ChunkMemory: "memory", ChunkKind(99): "unknown"}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Fatalf("ChunkKind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
