// Package lazyarray implements a persistent fixed-record array: an
// indexable sequence of records of one declared type, backed by a single
// append-addressable file and served through a bounded in-memory window.
// Records are loaded on demand and writes are coalesced into chunks, so an
// array much larger than memory behaves like an ordinary slice at the cost
// of extra I/O.
//
// The library is organised into several files for clarity:
//
//	header.go             – on-disk file header, magic, version
//	layout.go             – index-to-offset translation
//	serializer.go         – codec registry and the preregistered int32 codec
//	config.go             – configuration struct & defaults
//	filehandle.go         – file handle cache, optional mmap fast path
//	chunkqueue.go         – bounded ordered set of dirty indices
//	window.go             – fixed-capacity index -> record ring
//	subscriber.go         – synchronous event bus
//	logging_subscriber.go – logrus-backed subscriber
//	metrics_subscriber.go – Prometheus-backed subscriber
//	errors.go             – domain error kinds
//	array.go              – PersistentArray itself
//
// The array is not safe for concurrent use: it assumes a single-threaded
// caller and provides no internal locking.
package lazyarray
