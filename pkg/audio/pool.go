package audio

import "sync"

// slicePool recycles sample buffers between frames.
type slicePool[T any] struct {
	p sync.Pool
}

func (sp *slicePool[T]) acquire(size int) []T {
	if size <= 0 {
		return nil
	}
	if v := sp.p.Get(); v != nil {
		buf := v.([]T)
		if cap(buf) >= size {
			return buf[:size]
		}
	}
	return make([]T, size)
}

func (sp *slicePool[T]) release(buf []T) {
	if buf == nil {
		return
	}
	sp.p.Put(buf[:0])
}

var (
	int16Pool   slicePool[int16]
	float32Pool slicePool[float32]
)

// AcquireInt16 returns an int16 slice with length size.
func AcquireInt16(size int) []int16 { return int16Pool.acquire(size) }

// ReleaseInt16 puts an int16 slice back to the pool.
func ReleaseInt16(buf []int16) { int16Pool.release(buf) }

// AcquireFloat32 returns a float32 slice with length size.
func AcquireFloat32(size int) []float32 { return float32Pool.acquire(size) }

// ReleaseFloat32 puts a float32 slice back to the pool.
func ReleaseFloat32(buf []float32) { float32Pool.release(buf) }

// keyedPools holds one sync.Pool per key, created on first use.
type keyedPools[K comparable] struct {
	m sync.Map
}

func (k *keyedPools[K]) get(key K) *sync.Pool {
	if pool, ok := k.m.Load(key); ok {
		return pool.(*sync.Pool)
	}
	actual, _ := k.m.LoadOrStore(key, &sync.Pool{})
	return actual.(*sync.Pool)
}
