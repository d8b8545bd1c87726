package lazyarray

import (
	"os"

	"golang.org/x/sys/unix"
)

// FileMode mirrors the four RandomAccessFile modes spec §6 names: R
// (read-only), RW (read/write, buffered by the OS), RWS (read/write, sync
// data and metadata on every write), RWD (read/write, sync data only).
type FileMode int

const (
	ModeR FileMode = iota
	ModeRW
	ModeRWS
	ModeRWD
)

func (m FileMode) openFlags() int {
	switch m {
	case ModeR:
		return os.O_RDONLY
	case ModeRWS:
		return os.O_RDWR | os.O_CREATE | os.O_SYNC
	case ModeRWD:
		return os.O_RDWR | os.O_CREATE | unix.O_DSYNC
	default:
		return os.O_RDWR | os.O_CREATE
	}
}

// FileConfig describes the backing file (spec §6 file.*).
type FileConfig struct {
	Path string
	Mode FileMode
	// Buffer is the buffered-I/O size in bytes; 0 means the 8192 default.
	Buffer int
	// Cached keeps the file handle open across operations. When false a
	// fresh handle is opened and closed for every operation (spec §4.2).
	Cached bool
	// Mmap enables an optional memory-mapped random-access view of the
	// whole file, in addition to the buffered file view. Only takes
	// effect when Cached is true, since an unmapped-on-every-call handle
	// would defeat the point.
	Mmap bool
}

// ChunkConfig is shared shape for spec §6's read.* and write.* option
// groups; not every field is meaningful on both sides (ForceReload and
// BreakOnLoaded are read-only, ForceFlush is write-only).
type ChunkConfig struct {
	Chunked       bool
	Size          int
	ForceReload   bool
	BreakOnLoaded bool
	ForceFlush    bool
}

// Config is the full configuration object (spec §6).
type Config struct {
	File        FileConfig
	Read        ChunkConfig
	Write       ChunkConfig
	Memory      int
	Subscribers []Subscriber
}

// DefaultConfig returns a Config with the same shape of defaults the
// reference implementation's builder assumes: a cached, buffered RW file,
// linear (unchunked) reads and writes, and a small window. Follows the
// teacher's CacheOptions/DefaultOptions idiom rather than the original's
// fluent builder, which spec.md puts out of scope as a "CLI-ish
// configuration builder surface".
func DefaultConfig(path string) Config {
	return Config{
		File: FileConfig{
			Path:   path,
			Mode:   ModeRW,
			Buffer: 8192,
			Cached: true,
		},
		Read:   ChunkConfig{Chunked: false, Size: 1},
		Write:  ChunkConfig{Chunked: false, Size: 1},
		Memory: 64,
	}
}

func bufferSize(f FileConfig) int {
	if f.Buffer <= 0 {
		return 8192
	}
	return f.Buffer
}

func effectiveChunkSize(c ChunkConfig) int {
	if !c.Chunked || c.Size <= 0 {
		return 1
	}
	return c.Size
}

func validateChunks(cfg Config) error {
	if cfg.Memory < effectiveChunkSize(cfg.Read) {
		return ErrReadChunkLimitExceeded
	}
	if cfg.Memory < effectiveChunkSize(cfg.Write) {
		return ErrWriteChunkLimitExceeded
	}
	return nil
}

func checkChunkInvariant(read, write, memory int) error {
	if memory < read {
		return ErrReadChunkLimitExceeded
	}
	if memory < write {
		return ErrWriteChunkLimitExceeded
	}
	return nil
}

func chunkCapacity(c ChunkConfig, length int) int {
	if c.Size > 0 {
		return c.Size
	}
	return length + 1
}
