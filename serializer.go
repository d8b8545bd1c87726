package lazyarray

import (
	"encoding/binary"
	"fmt"
)

// TypeDescriptor pairs a tag with the fixed byte size of the records it
// describes. The size includes the leading null-marker byte, so it must be
// at least 2 (spec §3).
type TypeDescriptor struct {
	Tag  string
	Size int
}

// Value is a decoded record: either present with Data, or the null marker.
// The array is generic over Value[T] rather than *T so that value types
// with no natural nil (e.g. int32) still have a way to represent "absent".
type Value[T any] struct {
	Present bool
	Data    T
}

// Some wraps a present value.
func Some[T any](v T) Value[T] { return Value[T]{Present: true, Data: v} }

// Null returns the absent marker for T.
func Null[T any]() Value[T] { return Value[T]{} }

// Codec is the injected serializer capability (spec §6): encode a value (or
// the null marker) into exactly Descriptor().Size bytes, and decode those
// bytes back. Making PersistentArray generic over Codec[T], instead of
// dispatching on a runtime type tag as the original does, is the systems
// -language adaptation spec §9 recommends.
type Codec[T any] interface {
	Descriptor() TypeDescriptor
	Encode(v Value[T]) ([]byte, error)
	Decode(data []byte) (Value[T], error)
}

// Registry is a process-wide, type-erased directory of descriptors. It
// exists for open-time discovery and to enforce spec §3's rule that two
// descriptors sharing a tag must agree on size; it does not store codecs,
// since Go's type parameters are erased at runtime and a caller must pass
// its Codec[T] directly into Create/Open regardless (see SPEC_FULL.md §3).
type Registry struct {
	descriptors map[string]TypeDescriptor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{descriptors: make(map[string]TypeDescriptor)}
}

// Register records d, failing if an existing entry with the same tag
// disagrees on size.
func (r *Registry) Register(d TypeDescriptor) error {
	if d.Size < 2 {
		return fmt.Errorf("lazyarray: descriptor %q: fixed_byte_size must be >= 2, got %d", d.Tag, d.Size)
	}
	if existing, ok := r.descriptors[d.Tag]; ok && existing.Size != d.Size {
		return fmt.Errorf("lazyarray: descriptor %q already registered with size %d, got %d", d.Tag, existing.Size, d.Size)
	}
	r.descriptors[d.Tag] = d
	return nil
}

// Lookup returns the descriptor registered for tag, if any.
func (r *Registry) Lookup(tag string) (TypeDescriptor, bool) {
	d, ok := r.descriptors[tag]
	return d, ok
}

// DefaultRegistry is the process-wide registry, preloaded with the
// descriptor for the built-in int32 codec.
var DefaultRegistry = NewRegistry()

// Int32Descriptor is the preregistered descriptor: one marker byte plus a
// four-byte big-endian int32.
var Int32Descriptor = TypeDescriptor{Tag: "int32", Size: 5}

const (
	int32NullMarker  byte = 0x0F
	int32ValueMarker byte = 0x01
)

type int32Codec struct{}

// Int32Codec returns the preregistered 32-bit signed integer codec: one
// marker byte (0x0F null, 0x01 present) followed by a big-endian int32.
// Decoding any other marker byte fails with ErrBadRecord.
func Int32Codec() Codec[int32] { return int32Codec{} }

func (int32Codec) Descriptor() TypeDescriptor { return Int32Descriptor }

func (int32Codec) Encode(v Value[int32]) ([]byte, error) {
	buf := make([]byte, Int32Descriptor.Size)
	if !v.Present {
		buf[0] = int32NullMarker
		return buf, nil
	}
	buf[0] = int32ValueMarker
	binary.BigEndian.PutUint32(buf[1:], uint32(v.Data))
	return buf, nil
}

func (int32Codec) Decode(data []byte) (Value[int32], error) {
	if len(data) != Int32Descriptor.Size {
		return Value[int32]{}, fmt.Errorf("lazyarray: int32 record must be %d bytes, got %d", Int32Descriptor.Size, len(data))
	}
	switch data[0] {
	case int32NullMarker:
		return Value[int32]{}, nil
	case int32ValueMarker:
		return Value[int32]{Present: true, Data: int32(binary.BigEndian.Uint32(data[1:]))}, nil
	default:
		return Value[int32]{}, ErrBadRecord
	}
}

func init() {
	if err := DefaultRegistry.Register(Int32Descriptor); err != nil {
		panic(err)
	}
}
