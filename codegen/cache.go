/*
Copyright (C) 2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package codegen

import (
	"sync"
	"unsafe"

	"github.com/google/btree"
)

// CodeCache is one mapped region all emitted code lives in, allocated at
// init and reused across compilations. Free blocks are indexed by offset
// in a btree so frees can coalesce with both neighbours.
type CodeCache struct {
	mu    sync.Mutex
	mem   []byte
	free  *btree.BTreeG[freeBlock]
	sizes map[int]int // allocation offset -> rounded size
}

type freeBlock struct {
	off  int
	size int
}

const allocAlign = 16

func newCodeCache(size int) (*CodeCache, error) {
	mem, err := mapMemory(size)
	if err != nil {
		return nil, err
	}
	c := &CodeCache{
		mem:   mem,
		free:  btree.NewG(8, func(a, b freeBlock) bool { return a.off < b.off }),
		sizes: make(map[int]int),
	}
	c.free.ReplaceOrInsert(freeBlock{off: 0, size: len(mem)})
	return c, nil
}

func roundUp(n int) int {
	return (n + allocAlign - 1) &^ (allocAlign - 1)
}

// Alloc returns a block of at least size bytes, or nil when the cache is
// exhausted. First fit in address order.
func (c *CodeCache) Alloc(size int) []byte {
	size = roundUp(size)
	c.mu.Lock()
	defer c.mu.Unlock()
	var found freeBlock
	ok := false
	c.free.Ascend(func(b freeBlock) bool {
		if b.size >= size {
			found = b
			ok = true
			return false
		}
		return true
	})
	if !ok {
		return nil
	}
	c.free.Delete(found)
	if found.size > size {
		c.free.ReplaceOrInsert(freeBlock{off: found.off + size, size: found.size - size})
	}
	c.sizes[found.off] = size
	return c.mem[found.off : found.off+size : found.off+size]
}

// Free returns a block obtained from Alloc, coalescing with adjacent
// free blocks.
func (c *CodeCache) Free(b []byte) {
	if len(b) == 0 {
		return
	}
	off := int(uintptr(unsafe.Pointer(&b[0])) - uintptr(unsafe.Pointer(&c.mem[0])))
	c.mu.Lock()
	defer c.mu.Unlock()
	size, ok := c.sizes[off]
	if !ok {
		panic("Free of a block not handed out by this cache")
	}
	delete(c.sizes, off)
	blk := freeBlock{off: off, size: size}
	// merge with successor
	c.free.AscendGreaterOrEqual(freeBlock{off: off}, func(n freeBlock) bool {
		if n.off == blk.off+blk.size {
			c.free.Delete(n)
			blk.size += n.size
		}
		return false
	})
	// merge with predecessor
	c.free.DescendLessOrEqual(freeBlock{off: off}, func(n freeBlock) bool {
		if n.off+n.size == blk.off {
			c.free.Delete(n)
			blk.off = n.off
			blk.size += n.size
		}
		return false
	})
	c.free.ReplaceOrInsert(blk)
}

// Base returns the start address of the cache, for symbol maps.
func (c *CodeCache) Base() uintptr {
	return uintptr(unsafe.Pointer(&c.mem[0]))
}

// BytesFree sums the free list.
func (c *CodeCache) BytesFree() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	c.free.Ascend(func(b freeBlock) bool {
		total += b.size
		return true
	})
	return total
}

// Release unmaps the region. All blocks become invalid.
func (c *CodeCache) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mem != nil {
		unmapMemory(c.mem)
		c.mem = nil
	}
	c.free.Clear(false)
	c.sizes = make(map[int]int)
}
