package lazyarray_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yokalona/lazyarray"
)

func cfgAt(t *testing.T, name string) lazyarray.Config {
	t.Helper()
	return lazyarray.DefaultConfig(filepath.Join(t.TempDir(), name))
}

func TestCreateFillReopenRoundTrips(t *testing.T) {
	cfg := cfgAt(t, "roundtrip.bin")

	arr, err := lazyarray.Create[int32](10, lazyarray.Int32Codec(), cfg)
	require.NoError(t, err)
	require.NoError(t, arr.Fill(7))
	require.NoError(t, arr.Close())

	reopened, err := lazyarray.Open[int32](lazyarray.Int32Codec(), cfg, nil)
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, 10, reopened.Length())
	for i := 0; i < 10; i++ {
		v, err := reopened.Get(i)
		require.NoError(t, err)
		require.True(t, v.Present)
		require.EqualValues(t, 7, v.Data)
	}
}

func TestGetSetOutOfRange(t *testing.T) {
	cfg := cfgAt(t, "bounds.bin")
	arr, err := lazyarray.Create[int32](5, lazyarray.Int32Codec(), cfg)
	require.NoError(t, err)
	defer arr.Close()

	_, err = arr.Get(-1)
	require.ErrorIs(t, err, lazyarray.ErrIndexOutOfRange)
	_, err = arr.Get(5)
	require.ErrorIs(t, err, lazyarray.ErrIndexOutOfRange)
	require.ErrorIs(t, arr.Set(5, 1), lazyarray.ErrIndexOutOfRange)
}

func TestNullValuesRoundTrip(t *testing.T) {
	cfg := cfgAt(t, "nulls.bin")
	arr, err := lazyarray.Create[int32](3, lazyarray.Int32Codec(), cfg)
	require.NoError(t, err)
	defer arr.Close()

	v, err := arr.Get(1)
	require.NoError(t, err)
	require.False(t, v.Present)

	require.NoError(t, arr.Set(1, 99))
	require.NoError(t, arr.SetNull(1))
	v, err = arr.Get(1)
	require.NoError(t, err)
	require.False(t, v.Present)
}

// chunkedFlushOrderSubscriber counts ChunkSerialized events and captures the
// order records were reported serialized in.
type chunkedFlushOrderSubscriber struct {
	lazyarray.NoopSubscriber
	chunkFlushes int
	serialized   []int
}

func (s *chunkedFlushOrderSubscriber) OnChunkSerialized()        { s.chunkFlushes++ }
func (s *chunkedFlushOrderSubscriber) OnRecordSerialized(i int) { s.serialized = append(s.serialized, i) }

func TestChunkedFlushPreservesOrderWithSingleEvent(t *testing.T) {
	cfg := cfgAt(t, "chunked_flush.bin")
	cfg.Write = lazyarray.ChunkConfig{Chunked: true, Size: 3}
	cfg.Memory = 4

	sub := &chunkedFlushOrderSubscriber{}
	cfg.Subscribers = []lazyarray.Subscriber{sub}

	arr, err := lazyarray.Create[int32](5, lazyarray.Int32Codec(), cfg)
	require.NoError(t, err)
	defer arr.Close()

	require.NoError(t, arr.Set(2, 20))
	require.NoError(t, arr.Set(0, 0))
	require.NoError(t, arr.Set(1, 10)) // reaching capacity 3 triggers the flush

	require.Equal(t, 1, sub.chunkFlushes)
	require.Equal(t, []int{0, 1, 2}, sub.serialized)

	reopened, err := lazyarray.Open[int32](lazyarray.Int32Codec(), lazyarray.DefaultConfig(cfg.File.Path), nil)
	require.NoError(t, err)
	defer reopened.Close()
	for i, want := range []int32{0, 10, 20} {
		v, err := reopened.Get(i)
		require.NoError(t, err)
		require.True(t, v.Present)
		require.EqualValues(t, want, v.Data)
	}
}

type collisionSubscriber struct {
	lazyarray.NoopSubscriber
	collisions [][2]int
}

func (s *collisionSubscriber) OnWriteCollision(prior, incoming int) {
	s.collisions = append(s.collisions, [2]int{prior, incoming})
}

func TestSlotCollisionFlushesPredecessorAndReportsIt(t *testing.T) {
	cfg := cfgAt(t, "collision.bin")
	cfg.Memory = 2
	cfg.Write = lazyarray.ChunkConfig{Chunked: true, Size: 2}

	sub := &collisionSubscriber{}
	cfg.Subscribers = []lazyarray.Subscriber{sub}

	arr, err := lazyarray.Create[int32](8, lazyarray.Int32Codec(), cfg)
	require.NoError(t, err)
	defer arr.Close()

	require.NoError(t, arr.Set(0, 111)) // slot 0
	require.NoError(t, arr.Set(2, 222)) // shares slot 0, collides with queued index 0

	require.Equal(t, [][2]int{{0, 2}}, sub.collisions)

	reopened, err := lazyarray.Open[int32](lazyarray.Int32Codec(), lazyarray.DefaultConfig(cfg.File.Path), nil)
	require.NoError(t, err)
	defer reopened.Close()
	v, err := reopened.Get(0)
	require.NoError(t, err)
	require.True(t, v.Present)
	require.EqualValues(t, 111, v.Data)
}

type missCounter struct {
	lazyarray.NoopSubscriber
	misses []int
}

func (m *missCounter) OnCacheMiss(index int) { m.misses = append(m.misses, index) }

func TestForceReloadNeverReportsCacheMiss(t *testing.T) {
	cfg := cfgAt(t, "force_reload.bin")
	cfg.Read = lazyarray.ChunkConfig{ForceReload: true}

	sub := &missCounter{}
	cfg.Subscribers = []lazyarray.Subscriber{sub}

	arr, err := lazyarray.Create[int32](4, lazyarray.Int32Codec(), cfg)
	require.NoError(t, err)
	defer arr.Close()

	require.NoError(t, arr.Set(1, 5))
	_, err = arr.Get(1)
	require.NoError(t, err)
	_, err = arr.Get(1)
	require.NoError(t, err)

	require.Empty(t, sub.misses, "force_reload should never report a cache miss")
}

func TestPreloadOnOpenAvoidsSubsequentCacheMiss(t *testing.T) {
	cfg := cfgAt(t, "preload.bin")
	cfg.Memory = 8 // large enough that indices 3 and 7 land in distinct slots

	arr, err := lazyarray.Create[int32](10, lazyarray.Int32Codec(), cfg)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, arr.Set(i, int32(i*10)))
	}
	require.NoError(t, arr.Close())

	sub := &missCounter{}
	cfg.Subscribers = []lazyarray.Subscriber{sub}
	reopened, err := lazyarray.Open[int32](lazyarray.Int32Codec(), cfg, []int{3, 7})
	require.NoError(t, err)
	defer reopened.Close()

	before := len(sub.misses)
	v, err := reopened.Get(3)
	require.NoError(t, err)
	require.EqualValues(t, 30, v.Data)
	require.Equal(t, before, len(sub.misses), "get(3) after preload should not report a cache miss")
}

func TestGapAwareChunkFlushSeeksOnceAcrossGap(t *testing.T) {
	cfg := cfgAt(t, "gap_flush.bin")
	cfg.Write = lazyarray.ChunkConfig{Chunked: true, Size: 3}
	cfg.Memory = 8

	sub := &chunkedFlushOrderSubscriber{}
	cfg.Subscribers = []lazyarray.Subscriber{sub}

	arr, err := lazyarray.Create[int32](8, lazyarray.Int32Codec(), cfg)
	require.NoError(t, err)
	defer arr.Close()

	require.NoError(t, arr.Set(0, 1))
	require.NoError(t, arr.Set(1, 2))
	require.NoError(t, arr.Set(5, 3)) // reaching capacity 3 triggers the flush, with a gap before index 5

	require.Equal(t, 1, sub.chunkFlushes)
	require.Equal(t, []int{0, 1, 5}, sub.serialized)

	reopened, err := lazyarray.Open[int32](lazyarray.Int32Codec(), lazyarray.DefaultConfig(cfg.File.Path), nil)
	require.NoError(t, err)
	defer reopened.Close()
	for i, want := range map[int]int32{0: 1, 1: 2, 5: 3} {
		v, err := reopened.Get(i)
		require.NoError(t, err)
		require.True(t, v.Present)
		require.EqualValues(t, want, v.Data)
	}
}

func TestResizeInvariantsRejected(t *testing.T) {
	cfg := cfgAt(t, "resize.bin")
	cfg.Memory = 4
	arr, err := lazyarray.Create[int32](10, lazyarray.Int32Codec(), cfg)
	require.NoError(t, err)
	defer arr.Close()

	require.ErrorIs(t, arr.ResizeReadChunk(10), lazyarray.ErrReadChunkLimitExceeded)
	require.NoError(t, arr.ResizeMemoryChunk(10))
	require.NoError(t, arr.ResizeReadChunk(10))
}

func TestArrayCopy(t *testing.T) {
	srcCfg := cfgAt(t, "copy_src.bin")
	dstCfg := cfgAt(t, "copy_dst.bin")

	src, err := lazyarray.Create[int32](5, lazyarray.Int32Codec(), srcCfg)
	require.NoError(t, err)
	defer src.Close()
	dst, err := lazyarray.Create[int32](5, lazyarray.Int32Codec(), dstCfg)
	require.NoError(t, err)
	defer dst.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, src.Set(i, int32(i+100)))
	}
	require.NoError(t, lazyarray.ArrayCopy(dst, 1, src, 0, 3))

	for i, want := range map[int]int32{1: 100, 2: 101, 3: 102} {
		v, err := dst.Get(i)
		require.NoError(t, err)
		require.True(t, v.Present)
		require.EqualValues(t, want, v.Data)
	}
	v, err := dst.Get(0)
	require.NoError(t, err)
	require.False(t, v.Present)
}

func TestOpenRejectsUnknownFile(t *testing.T) {
	cfg := cfgAt(t, "missing.bin")
	_, err := lazyarray.Open[int32](lazyarray.Int32Codec(), cfg, nil)
	require.Error(t, err)
}

func TestSubscribeUnsubscribe(t *testing.T) {
	cfg := cfgAt(t, "subscribe.bin")
	arr, err := lazyarray.Create[int32](2, lazyarray.Int32Codec(), cfg)
	require.NoError(t, err)
	defer arr.Close()

	sub := &missCounter{}
	id := arr.Subscribe(sub)
	_, err = arr.Get(0)
	require.NoError(t, err)

	arr.Unsubscribe(id)
	require.NoError(t, arr.ResizeMemoryChunk(2))
	_, err = arr.Get(1)
	require.NoError(t, err)
}
