package lazyarray

import "github.com/google/uuid"

// ChunkKind identifies which of the three resizable dimensions
// (spec §6 ChunkResized) a resize event refers to.
type ChunkKind int

const (
	ChunkRead ChunkKind = iota
	ChunkWrite
	ChunkMemory
)

func (k ChunkKind) String() string {
	switch k {
	case ChunkRead:
		return "read"
	case ChunkWrite:
		return "write"
	case ChunkMemory:
		return "memory"
	default:
		return "unknown"
	}
}

// Subscriber receives synchronous notifications of cache and I/O events
// (spec §4.7, §6). Subscribers are invoked in registration order and must
// not mutate the array or otherwise re-enter it; an operation is not
// reentrant. A panicking or error-returning subscriber (by whatever
// mechanism it chooses to signal failure) aborts the surrounding
// operation, but the array's own state remains consistent because events
// fire only after the corresponding state change has already happened.
type Subscriber interface {
	OnFileCreated()
	OnCacheMiss(index int)
	OnRecordSerialized(index int)
	OnRecordDeserialized(index int)
	OnChunkSerialized()
	OnChunkDeserialized()
	OnWriteCollision(prior, incoming int)
	OnChunkResized(kind ChunkKind, prior, next int)
}

// NoopSubscriber implements Subscriber with every method a no-op, so a
// concrete subscriber can embed it and override only the events it cares
// about. This is the Go analogue of the reference implementation's
// interface with default methods.
type NoopSubscriber struct{}

func (NoopSubscriber) OnFileCreated()                                {}
func (NoopSubscriber) OnCacheMiss(int)                                {}
func (NoopSubscriber) OnRecordSerialized(int)                         {}
func (NoopSubscriber) OnRecordDeserialized(int)                       {}
func (NoopSubscriber) OnChunkSerialized()                             {}
func (NoopSubscriber) OnChunkDeserialized()                           {}
func (NoopSubscriber) OnWriteCollision(prior, incoming int)           {}
func (NoopSubscriber) OnChunkResized(kind ChunkKind, prior, next int) {}

// bus is a synchronous fan-out over an ordered list of subscribers. Each
// PersistentArray owns exactly one.
type bus struct {
	subscribers []Subscriber
	ids         []uuid.UUID
}

func newBus(initial []Subscriber) *bus {
	b := &bus{}
	for _, s := range initial {
		b.subscribe(s)
	}
	return b
}

// subscribe appends s and returns a handle that Unsubscribe can later use
// to remove it. Subscribers already registered for an in-flight operation
// still see it through to completion; the bus mutates its own slice, which
// is walked by index, not snapshotted.
func (b *bus) subscribe(s Subscriber) uuid.UUID {
	id := uuid.New()
	b.subscribers = append(b.subscribers, s)
	b.ids = append(b.ids, id)
	return id
}

func (b *bus) unsubscribe(id uuid.UUID) {
	for i, existing := range b.ids {
		if existing == id {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			b.ids = append(b.ids[:i], b.ids[i+1:]...)
			return
		}
	}
}

func (b *bus) fileCreated() {
	for _, s := range b.subscribers {
		s.OnFileCreated()
	}
}

func (b *bus) cacheMiss(index int) {
	for _, s := range b.subscribers {
		s.OnCacheMiss(index)
	}
}

func (b *bus) recordSerialized(index int) {
	for _, s := range b.subscribers {
		s.OnRecordSerialized(index)
	}
}

func (b *bus) recordDeserialized(index int) {
	for _, s := range b.subscribers {
		s.OnRecordDeserialized(index)
	}
}

func (b *bus) chunkSerialized() {
	for _, s := range b.subscribers {
		s.OnChunkSerialized()
	}
}

func (b *bus) chunkDeserialized() {
	for _, s := range b.subscribers {
		s.OnChunkDeserialized()
	}
}

func (b *bus) writeCollision(prior, incoming int) {
	for _, s := range b.subscribers {
		s.OnWriteCollision(prior, incoming)
	}
}

func (b *bus) chunkResized(kind ChunkKind, prior, next int) {
	for _, s := range b.subscribers {
		s.OnChunkResized(kind, prior, next)
	}
}
