package lazyarray

import (
	"bufio"
	"io"
	"os"
	"sort"

	"github.com/google/uuid"
)

// PersistentArray is an indexable sequence of length fixed-size records
// whose authoritative copy lives in a single file and whose working set
// lives in a bounded in-memory window (spec §4.6). It is not safe for
// concurrent use.
type PersistentArray[T any] struct {
	length int
	codec  Codec[T]
	layout dataLayout

	storage *fileHandleCache
	window  *window[T]
	queue   *chunkQueue
	bus     *bus

	file  FileConfig
	read  ChunkConfig
	write ChunkConfig

	closed bool
}

// Create allocates a new backing file of length records, all initially
// null, and returns the array open for use (spec §4.6 "Construction —
// create").
func Create[T any](length int, codec Codec[T], cfg Config) (*PersistentArray[T], error) {
	if err := validateChunks(cfg); err != nil {
		return nil, err
	}

	a := newArray(length, codec, cfg)
	if err := a.serializeAll(); err != nil {
		return nil, err
	}
	a.bus.fileCreated()
	// Drop the handle used to write the initial file so the next
	// operation reacquires (and, if configured, remaps) against the
	// file's final size.
	if err := a.storage.shutdown(); err != nil {
		return nil, err
	}
	return a, nil
}

// Open reads an existing file's header, validates its version, and
// returns an array over it, preloading up to memory.size of the given
// indices (spec §4.6 "Construction — open").
func Open[T any](codec Codec[T], cfg Config, preload []int) (*PersistentArray[T], error) {
	if err := validateChunks(cfg); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(cfg.File.Path, os.O_RDONLY, 0o644)
	if err != nil {
		return nil, wrapIO("open "+cfg.File.Path, err)
	}
	defer f.Close()

	buf := make([]byte, headerSize())
	if _, err := io.ReadFull(f, buf); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return nil, ErrBadHeader
		}
		return nil, wrapIO("read header", err)
	}
	h, err := decodeHeader(buf)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(h); err != nil {
		return nil, err
	}
	if int(h.RecordSize) != codec.Descriptor().Size {
		return nil, ErrBadHeader
	}

	layout, err := layoutFor(h.Flags, headerSize(), int(h.RecordSize))
	if err != nil {
		return nil, err
	}

	a := newArray(int(h.Length), codec, cfg)
	a.layout = layout

	sorted := append([]int(nil), preload...)
	sort.Ints(sorted)
	limit := a.window.cap
	if len(sorted) < limit {
		limit = len(sorted)
	}
	for i := 0; i < limit; i++ {
		if _, err := a.Get(sorted[i]); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func newArray[T any](length int, codec Codec[T], cfg Config) *PersistentArray[T] {
	memSize := cfg.Memory
	if length > 0 && length < memSize {
		memSize = length
	}
	if memSize <= 0 {
		memSize = 1
	}

	return &PersistentArray[T]{
		length:  length,
		codec:   codec,
		layout:  fixedLayout{headerSize: headerSize(), recordSize: codec.Descriptor().Size},
		storage: newFileHandleCache(cfg.File),
		window:  newWindow[T](memSize),
		queue:   newChunkQueue(length, chunkCapacity(cfg.Write, length)),
		bus:     newBus(cfg.Subscribers),
		file:    cfg.File,
		read:    cfg.Read,
		write:   cfg.Write,
	}
}

// Length returns the fixed record count.
func (a *PersistentArray[T]) Length() int { return a.length }

// Subscribe registers s and returns a handle Unsubscribe can later use.
func (a *PersistentArray[T]) Subscribe(s Subscriber) uuid.UUID { return a.bus.subscribe(s) }

// Unsubscribe removes a previously registered subscriber. A no-op if id is
// unknown (already removed, or never registered).
func (a *PersistentArray[T]) Unsubscribe(id uuid.UUID) { a.bus.unsubscribe(id) }

// Get returns the current value for index, loading it from disk on demand
// (spec §4.6 "get(i)").
func (a *PersistentArray[T]) Get(index int) (Value[T], error) {
	if index < 0 || index >= a.length {
		return Value[T]{}, ErrIndexOutOfRange
	}

	if a.read.ForceReload {
		if err := a.load(index); err != nil {
			return Value[T]{}, err
		}
	} else if !a.window.contains(index) {
		a.bus.cacheMiss(index)
		if err := a.load(index); err != nil {
			return Value[T]{}, err
		}
	}
	return a.window.get(index), nil
}

// Set stores value at index, visible to a subsequent Get(index) (spec
// §4.6 "set(i, v)").
func (a *PersistentArray[T]) Set(index int, value T) error {
	return a.set(index, Value[T]{Present: true, Data: value})
}

// SetNull stores the null marker at index.
func (a *PersistentArray[T]) SetNull(index int) error {
	return a.set(index, Value[T]{})
}

func (a *PersistentArray[T]) set(index int, value Value[T]) error {
	if index < 0 || index >= a.length {
		return ErrIndexOutOfRange
	}

	prior := a.window.owner(index)
	if prior >= 0 && prior != index && a.queue.contains(prior) {
		if a.write.ForceFlush {
			if err := a.Flush(); err != nil {
				return err
			}
		} else {
			if err := a.serializeOne(prior); err != nil {
				return err
			}
			a.queue.remove(prior)
		}
		a.bus.writeCollision(prior, index)
	}

	a.window.associate(index, value)

	if a.write.Chunked {
		if a.queue.add(index) {
			if err := a.Flush(); err != nil {
				return err
			}
		}
	} else if err := a.serializeOne(index); err != nil {
		return err
	}
	return nil
}

// Fill sets every index to value, temporarily raising the write-chunk
// capacity to its configured maximum so the bulk operation runs with
// maximal coalescing (spec §4.6 "fill(v)").
func (a *PersistentArray[T]) Fill(value T) error {
	prior := a.queue.capacity
	a.queue.capacity = a.write.Size
	if a.queue.capacity <= 0 {
		a.queue.capacity = 1
	}
	defer func() { a.queue.capacity = prior }()

	for i := 0; i < a.length; i++ {
		if err := a.Set(i, value); err != nil {
			return err
		}
	}
	return nil
}

func (a *PersistentArray[T]) readWindow() int {
	if !a.read.Chunked || a.read.Size <= 0 {
		return 1
	}
	return a.read.Size
}

func (a *PersistentArray[T]) load(index int) error {
	return a.deserialize(index, a.readWindow())
}

func (a *PersistentArray[T]) needsReload(index int) bool {
	return a.read.ForceReload || !a.window.contains(index)
}

// deserialize is the loader (spec §4.6 "Loader deserialize(i, size)"): it
// acquires the file handle, seeks to record i, wraps a buffered reader, and
// walks offsets i..min(i+size,length)-1, seeking only across gaps of
// already-resident records.
func (a *PersistentArray[T]) deserialize(index, size int) error {
	f, release, err := a.storage.acquire()
	if err != nil {
		return err
	}
	defer release()

	if a.storage.mmap != nil {
		return a.deserializeMapped(index, size)
	}

	off, err := a.layout.Offset(index)
	if err != nil {
		return err
	}
	if _, err := f.Seek(off, io.SeekStart); err != nil {
		return wrapIO("seek", err)
	}
	reader := bufio.NewReaderSize(f, bufferSize(a.file))

	recSize := a.codec.Descriptor().Size
	datum := make([]byte, recSize)
	end := index + size
	if end > a.length {
		end = a.length
	}

	shouldSeek := false
	for o := index; o < end; o++ {
		if !a.needsReload(o) {
			shouldSeek = true
			if a.read.BreakOnLoaded {
				break
			}
			continue
		}
		if shouldSeek {
			recOff, err := a.layout.Offset(o)
			if err != nil {
				return err
			}
			if _, err := f.Seek(recOff, io.SeekStart); err != nil {
				return wrapIO("seek", err)
			}
			reader = bufio.NewReaderSize(f, bufferSize(a.file))
			shouldSeek = false
		}
		if _, err := io.ReadFull(reader, datum); err != nil {
			return wrapIO("read record", err)
		}
		val, err := a.codec.Decode(datum)
		if err != nil {
			return err
		}
		a.window.associate(o, val)
		a.bus.recordDeserialized(o)
	}
	a.bus.chunkDeserialized()
	return nil
}

func (a *PersistentArray[T]) deserializeMapped(index, size int) error {
	recSize := a.codec.Descriptor().Size
	datum := make([]byte, recSize)
	end := index + size
	if end > a.length {
		end = a.length
	}

	for o := index; o < end; o++ {
		if !a.needsReload(o) {
			if a.read.BreakOnLoaded {
				break
			}
			continue
		}
		recOff, err := a.layout.Offset(o)
		if err != nil {
			return err
		}
		if !a.storage.readMapped(recOff, datum) {
			return wrapIO("mmap read", io.ErrUnexpectedEOF)
		}
		val, err := a.codec.Decode(datum)
		if err != nil {
			return err
		}
		a.window.associate(o, val)
		a.bus.recordDeserialized(o)
	}
	a.bus.chunkDeserialized()
	return nil
}

// serializeOne writes a single record in place, if it is still resident.
func (a *PersistentArray[T]) serializeOne(index int) error {
	if !a.window.contains(index) {
		return nil
	}
	f, release, err := a.storage.acquire()
	if err != nil {
		return err
	}
	defer release()

	off, err := a.layout.Offset(index)
	if err != nil {
		return err
	}
	data, err := a.codec.Encode(a.window.get(index))
	if err != nil {
		return err
	}

	if a.storage.mmap != nil {
		if !a.storage.writeMapped(off, data) {
			return wrapIO("mmap write", io.ErrShortWrite)
		}
	} else {
		if _, err := f.Seek(off, io.SeekStart); err != nil {
			return wrapIO("seek", err)
		}
		if _, err := f.Write(data); err != nil {
			return wrapIO("write record", err)
		}
	}
	a.bus.recordSerialized(index)
	return nil
}

// Flush is a no-op unless writes are chunked, in which case it performs
// the ordered chunk serializer (spec §4.4, §4.6 "flush()"): it walks the
// queue's set bits ascending, writing a contiguous run in one buffered
// pass and seeking only across gaps.
func (a *PersistentArray[T]) Flush() error {
	if !a.write.Chunked || a.queue.count == 0 {
		return nil
	}

	f, release, err := a.storage.acquire()
	if err != nil {
		return err
	}
	defer release()

	indices := a.queue.indices()

	if a.storage.mmap != nil {
		for _, idx := range indices {
			if err := a.serializeMapped(idx); err != nil {
				return err
			}
		}
		a.queue.clear()
		a.bus.chunkSerialized()
		return a.storage.syncMapped()
	}

	off, err := a.layout.Offset(indices[0])
	if err != nil {
		return err
	}
	if _, err := f.Seek(off, io.SeekStart); err != nil {
		return wrapIO("seek", err)
	}
	writer := bufio.NewWriterSize(f, bufferSize(a.file))

	prev := indices[0]
	if err := a.writeRecord(writer, prev); err != nil {
		return err
	}
	for _, cur := range indices[1:] {
		if cur != prev+1 {
			if err := writer.Flush(); err != nil {
				return wrapIO("flush", err)
			}
			recOff, err := a.layout.Offset(cur)
			if err != nil {
				return err
			}
			if _, err := f.Seek(recOff, io.SeekStart); err != nil {
				return wrapIO("seek", err)
			}
		}
		if err := a.writeRecord(writer, cur); err != nil {
			return err
		}
		prev = cur
	}
	if err := writer.Flush(); err != nil {
		return wrapIO("flush", err)
	}

	a.queue.clear()
	a.bus.chunkSerialized()
	return nil
}

func (a *PersistentArray[T]) writeRecord(w *bufio.Writer, index int) error {
	if !a.window.contains(index) {
		return nil
	}
	data, err := a.codec.Encode(a.window.get(index))
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return wrapIO("write record", err)
	}
	a.bus.recordSerialized(index)
	return nil
}

func (a *PersistentArray[T]) serializeMapped(index int) error {
	if !a.window.contains(index) {
		return nil
	}
	off, err := a.layout.Offset(index)
	if err != nil {
		return err
	}
	data, err := a.codec.Encode(a.window.get(index))
	if err != nil {
		return err
	}
	if !a.storage.writeMapped(off, data) {
		return wrapIO("mmap write", io.ErrShortWrite)
	}
	a.bus.recordSerialized(index)
	return nil
}

// ResizeReadChunk changes the read prefetch size, subject to the window
// invariant W >= max(read.size, write.size).
func (a *PersistentArray[T]) ResizeReadChunk(n int) error {
	if err := checkChunkInvariant(n, a.queue.capacity, a.window.cap); err != nil {
		return err
	}
	prior := a.read.Size
	a.read.Size = n
	a.bus.chunkResized(ChunkRead, prior, n)
	return nil
}

// ResizeWriteChunk changes the write coalescing capacity, flushing first.
func (a *PersistentArray[T]) ResizeWriteChunk(n int) error {
	if err := checkChunkInvariant(a.read.Size, n, a.window.cap); err != nil {
		return err
	}
	if err := a.Flush(); err != nil {
		return err
	}
	prior := a.queue.capacity
	a.queue.capacity = n
	a.write.Size = n
	a.bus.chunkResized(ChunkWrite, prior, n)
	return nil
}

// ResizeMemoryChunk reallocates the in-memory window, flushing first.
func (a *PersistentArray[T]) ResizeMemoryChunk(n int) error {
	if err := checkChunkInvariant(a.read.Size, a.queue.capacity, n); err != nil {
		return err
	}
	if err := a.Flush(); err != nil {
		return err
	}
	prior := a.window.cap
	a.window.resize(n)
	a.bus.chunkResized(ChunkMemory, prior, n)
	return nil
}

// Close is idempotent: it flushes and releases the file handle cache,
// surfacing the first error encountered.
func (a *PersistentArray[T]) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	flushErr := a.Flush()
	shutErr := a.storage.shutdown()
	if flushErr != nil {
		return flushErr
	}
	return shutErr
}

// Clear closes the array, deletes the backing file, and fills the window
// with the null marker (spec §4.6 "clear()").
func (a *PersistentArray[T]) Clear() error {
	if err := a.Close(); err != nil {
		return err
	}
	if err := os.Remove(a.file.Path); err != nil && !os.IsNotExist(err) {
		return wrapIO("remove "+a.file.Path, err)
	}
	a.window.fillNull()
	a.queue.clear()
	return nil
}

func (a *PersistentArray[T]) serializeAll() error {
	f, release, err := a.storage.acquire()
	if err != nil {
		return err
	}
	defer release()

	if err := f.Truncate(0); err != nil {
		return wrapIO("truncate", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return wrapIO("seek", err)
	}

	writer := bufio.NewWriterSize(f, bufferSize(a.file))
	h := header{
		Critical:   versionCritical,
		Major:      versionMajor,
		Minor:      versionMinor,
		Flags:      newLayoutFlags(true),
		Length:     int32(a.length),
		RecordSize: int32(a.codec.Descriptor().Size),
	}
	if _, err := writer.Write(encodeHeader(h)); err != nil {
		return wrapIO("write header", err)
	}

	null, err := a.codec.Encode(Value[T]{})
	if err != nil {
		return err
	}
	for i := 0; i < a.length; i++ {
		if _, err := writer.Write(null); err != nil {
			return wrapIO("write record", err)
		}
	}
	if err := writer.Flush(); err != nil {
		return wrapIO("flush", err)
	}
	return nil
}

// ArrayCopy copies n records from src[srcPos:] to dst[dstPos:] as n paired
// Get/Set calls; no file-level optimization is attempted (spec §4.6
// "arraycopy").
func ArrayCopy[T any](dst *PersistentArray[T], dstPos int, src *PersistentArray[T], srcPos int, n int) error {
	for i := 0; i < n; i++ {
		v, err := src.Get(srcPos + i)
		if err != nil {
			return err
		}
		if err := dst.set(dstPos+i, v); err != nil {
			return err
		}
	}
	return nil
}
