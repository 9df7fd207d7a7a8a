// Package pools holds the tiered buffer pool used for request frames.
package pools

import (
	"sync"
	"sync/atomic"
)

// BytePool is a multi-tiered byte slice pool for different size classes
type BytePool struct {
	pools []*sync.Pool
	sizes []int

	gets      atomic.Uint64
	puts      atomic.Uint64
	oversized atomic.Uint64
}

// BytePoolStats reports pool usage
type BytePoolStats struct {
	Gets      uint64
	Puts      uint64
	Oversized uint64
}

// Size tiers for request frames: header-only, small bodies, JSON payloads
var defaultSizes = []int{
	1024,
	4096,
	16384,
	65536,
}

// NewBytePool creates a byte pool with the default tiers
func NewBytePool() *BytePool {
	return NewBytePoolWithSizes(defaultSizes)
}

// NewBytePoolWithSizes creates a byte pool with custom ascending size tiers
func NewBytePoolWithSizes(sizes []int) *BytePool {
	bp := &BytePool{
		pools: make([]*sync.Pool, len(sizes)),
		sizes: sizes,
	}

	for i, size := range sizes {
		size := size
		bp.pools[i] = &sync.Pool{
			New: func() any {
				buf := make([]byte, size)
				return &buf
			},
		}
	}

	return bp
}

// Get returns a slice of length size backed by the smallest fitting tier.
// Sizes above the largest tier are allocated directly.
func (bp *BytePool) Get(size int) *[]byte {
	bp.gets.Add(1)
	for i, poolSize := range bp.sizes {
		if size <= poolSize {
			buf := bp.pools[i].Get().(*[]byte)
			*buf = (*buf)[:size]
			return buf
		}
	}

	bp.oversized.Add(1)
	buf := make([]byte, size)
	return &buf
}

// Put returns a buffer obtained from Get. Buffers that match no tier are dropped.
func (bp *BytePool) Put(buf *[]byte) {
	if buf == nil {
		return
	}

	capacity := cap(*buf)
	for i, poolSize := range bp.sizes {
		if capacity == poolSize {
			*buf = (*buf)[:capacity]
			bp.pools[i].Put(buf)
			bp.puts.Add(1)
			return
		}
	}
}

// MaxPooled returns the largest pooled size
func (bp *BytePool) MaxPooled() int {
	if len(bp.sizes) == 0 {
		return 0
	}
	return bp.sizes[len(bp.sizes)-1]
}

// Stats returns pool statistics
func (bp *BytePool) Stats() BytePoolStats {
	return BytePoolStats{
		Gets:      bp.gets.Load(),
		Puts:      bp.puts.Load(),
		Oversized: bp.oversized.Load(),
	}
}
