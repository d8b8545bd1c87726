package lazyarray

import "bytes"

// magic is the canonical six-byte signature. The reference implementation
// spells this constant two different, inconsistent ways across variants;
// this is the self-consistent "DECADAFACADA" reading (spec §9), the other
// is treated as a historical bug and not reproduced.
var magic = [6]byte{0xDE, 0xCA, 0xDA, 0xFA, 0xCA, 0xDA}

const (
	versionCritical byte = 1
	versionMajor    byte = 1
	versionMinor    byte = 0
)

// layoutFlags is the fourth version byte, a bitfield AA BB CC DD (2 bits
// each): DD = record layout, CC = chunking mode, BB = ordering mode, AA
// reserved. Only DD is interpreted by this implementation; the others are
// preserved on read but not acted on.
type layoutFlags byte

const (
	recordLayoutVariable byte = 0
	recordLayoutFixed    byte = 1
)

func newLayoutFlags(fixed bool) layoutFlags {
	if fixed {
		return layoutFlags(recordLayoutFixed)
	}
	return layoutFlags(recordLayoutVariable)
}

func (f layoutFlags) recordLayout() byte { return byte(f) & 0b11 }
func (f layoutFlags) chunkingMode() byte { return (byte(f) >> 2) & 0b11 }
func (f layoutFlags) orderingMode() byte { return (byte(f) >> 4) & 0b11 }

// header is the persisted array header (spec §3, §6): a six-byte magic, a
// four-byte version word, then length and record_size as two int32 codec
// records of five bytes each.
type header struct {
	Critical   byte
	Major      byte
	Minor      byte
	Flags      layoutFlags
	Length     int32
	RecordSize int32
}

// headerSize is magic_len + 4 (version word) + 2 * size_of_int_marker_record.
func headerSize() int {
	return len(magic) + 4 + 2*Int32Descriptor.Size
}

func encodeHeader(h header) []byte {
	buf := make([]byte, headerSize())
	copy(buf[0:6], magic[:])
	buf[6] = h.Critical
	buf[7] = h.Major
	buf[8] = h.Minor
	buf[9] = byte(h.Flags)

	intSize := Int32Descriptor.Size
	lengthBytes, _ := int32Codec{}.Encode(Value[int32]{Present: true, Data: h.Length})
	copy(buf[10:10+intSize], lengthBytes)
	sizeBytes, _ := int32Codec{}.Encode(Value[int32]{Present: true, Data: h.RecordSize})
	copy(buf[10+intSize:10+2*intSize], sizeBytes)
	return buf
}

func decodeHeader(buf []byte) (header, error) {
	if len(buf) < headerSize() {
		return header{}, ErrBadHeader
	}
	if !bytes.Equal(buf[0:6], magic[:]) {
		return header{}, ErrBadHeader
	}
	h := header{
		Critical: buf[6],
		Major:    buf[7],
		Minor:    buf[8],
		Flags:    layoutFlags(buf[9]),
	}
	intSize := Int32Descriptor.Size
	lengthVal, err := int32Codec{}.Decode(buf[10 : 10+intSize])
	if err != nil || !lengthVal.Present {
		return header{}, ErrBadHeader
	}
	h.Length = lengthVal.Data
	sizeVal, err := int32Codec{}.Decode(buf[10+intSize : 10+2*intSize])
	if err != nil || !sizeVal.Present {
		return header{}, ErrBadHeader
	}
	h.RecordSize = sizeVal.Data
	return h, nil
}

// checkVersion enforces spec §6: critical must equal exactly, and the
// reader's major must be greater than or equal to the file's stored major.
// Minor is informational only.
func checkVersion(h header) error {
	if h.Critical != versionCritical {
		return ErrIncompatibleVersion
	}
	if versionMajor < h.Major {
		return ErrIncompatibleVersion
	}
	return nil
}
