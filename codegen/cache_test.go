package codegen

import "testing"

func TestCacheAllocFree(t *testing.T) {
	c, err := newCodeCache(1024)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Release()
	if c.BytesFree() != 1024 {
		t.Fatalf("fresh cache free = %d, want 1024", c.BytesFree())
	}
	a := c.Alloc(100)
	if a == nil || len(a) < 100 {
		t.Fatalf("Alloc(100) = %v", a)
	}
	b := c.Alloc(200)
	if b == nil {
		t.Fatal("second Alloc failed")
	}
	if c.BytesFree() >= 1024 {
		t.Error("allocations must consume the free list")
	}
	c.Free(a)
	c.Free(b)
	if c.BytesFree() != 1024 {
		t.Errorf("after freeing everything free = %d, want 1024 (coalesced)", c.BytesFree())
	}
}

func TestCacheExhaustion(t *testing.T) {
	c, err := newCodeCache(256)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Release()
	a := c.Alloc(256)
	if a == nil {
		t.Fatal("full-size Alloc must succeed")
	}
	if c.Alloc(16) != nil {
		t.Error("an exhausted cache must return nil")
	}
	c.Free(a)
	if c.Alloc(16) == nil {
		t.Error("freed space must be reusable")
	}
}

func TestCacheCoalescing(t *testing.T) {
	c, err := newCodeCache(512)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Release()
	a := c.Alloc(128)
	b := c.Alloc(128)
	d := c.Alloc(128)
	// free in an order that needs both-neighbour merging
	c.Free(a)
	c.Free(d)
	c.Free(b)
	if got := c.Alloc(512); got == nil {
		t.Error("freed neighbours must coalesce back into one block")
	}
}

func TestCacheAlignment(t *testing.T) {
	c, err := newCodeCache(256)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Release()
	a := c.Alloc(1)
	if len(a)%allocAlign != 0 {
		t.Errorf("allocation size %d not aligned", len(a))
	}
}
