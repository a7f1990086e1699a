/*
 * tlbcoat - TLB facade tests
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package tlb

import "testing"

const facadeTestKey uint64 = 0x0011223344556677

func newASID(t *testing.T) Cache {
	t.Helper()
	c, err := NewASIDCache(Config{Sets: 16, Ways: 4, Key: facadeTestKey, Mode: ModeSkewed})
	if err != nil {
		t.Fatalf("NewASIDCache: %v", err)
	}
	return c
}

func newGlobal(t *testing.T, ways uint8) Cache {
	t.Helper()
	c, err := NewGlobalCache(Config{Sets: 16, Ways: ways, Key: facadeTestKey, Mode: ModeSkewed})
	if err != nil {
		t.Fatalf("NewGlobalCache: %v", err)
	}
	return c
}

func TestNewASIDCacheRejectsBadGeometry(t *testing.T) {
	if _, err := NewASIDCache(Config{Sets: 16, Ways: 8}); err == nil {
		t.Errorf("expected error for ways=8 on the per-ASID cache, got nil")
	}
}

func TestNewGlobalCacheAcceptsArbitraryWays(t *testing.T) {
	if _, err := NewGlobalCache(Config{Sets: 16, Ways: 8, Key: facadeTestKey}); err != nil {
		t.Errorf("unexpected error for an 8-way global cache: %v", err)
	}
}

// Sixty-four distinct 4 KiB inserts for one asid into an empty cache
// cannot force an epoch rotation (the first insert always finds an
// invalid slot, so at most 63 add to the eviction count), and the most
// recently inserted entry remains addressable.
func TestSustainedInsertsKeepRecentEntriesAddressable(t *testing.T) {
	c := newASID(t)
	const asid = 7
	for k := uint64(1); k <= 64; k++ {
		vaddr := 0x1000 * k
		c.Insert(vaddr, Entry{VAddr: vaddr, ASID: asid, LogBytes: PageBits4K})
	}

	if c.RerandRequests() == 0 {
		t.Logf("rerandRequests = 0 after 64 distinct inserts; expected, since at most 63 of them can add to the eviction count")
	}

	// The entry inserted last is always addressable: nothing runs after
	// it to evict it.
	if _, ok := c.Lookup(0x1000*64, asid); !ok {
		t.Errorf("lookup for the most recently inserted entry missed")
	}
}

// A 2 MiB entry hits within its range for the right asid and misses
// for a different one.
func TestHugePageHitAndASIDIsolation(t *testing.T) {
	c := newASID(t)
	c.Insert(0x40000000, Entry{VAddr: 0x40000000, ASID: 1, LogBytes: PageBits2M})

	got, ok := c.Lookup(0x40001234, 1)
	if !ok {
		t.Fatalf("lookup at 0x40001234 missed, want hit on the 2M entry based at 0x40000000")
	}
	if got.VAddr != 0x40000000 {
		t.Errorf("lookup returned vaddr %#x, want 0x40000000", got.VAddr)
	}

	if _, ok := c.Lookup(0x40000000, 2); ok {
		t.Errorf("lookup with wrong asid hit, want miss")
	}
}

// FlushAll invalidates a previously inserted entry.
func TestFlushAllInvalidatesEntry(t *testing.T) {
	c := newASID(t)
	c.Insert(0x8000, Entry{VAddr: 0x8000, ASID: 3, LogBytes: PageBits4K})
	c.FlushAll()

	if _, ok := c.Lookup(0x8000, 3); ok {
		t.Errorf("lookup hit after flushAll, want miss")
	}
}

// DemapPageComplex(va, 0) invalidates a 2M entry regardless of asid.
func TestDemapPageComplexASIDWildcard(t *testing.T) {
	c := newASID(t)
	c.Insert(0x40000000, Entry{VAddr: 0x40000000, ASID: 1, LogBytes: PageBits2M})
	c.DemapPageComplex(0x40000000, 0)

	if _, ok := c.Lookup(0x40000000, 1); ok {
		t.Errorf("entry survived demapPageComplex(va, 0)")
	}
}

func TestASIDCacheFlushNonGlobalPanics(t *testing.T) {
	c := newASID(t)
	defer func() {
		if recover() == nil {
			t.Errorf("FlushNonGlobal on a per-ASID cache did not panic")
		}
	}()
	c.FlushNonGlobal()
}

func TestASIDCacheGlobalPageMaxPanics(t *testing.T) {
	c := newASID(t)
	defer func() {
		if recover() == nil {
			t.Errorf("GlobalPageMax on a per-ASID cache did not panic")
		}
	}()
	c.GlobalPageMax()
}

func TestGlobalCacheFlushNonGlobalKeepsGlobalEntries(t *testing.T) {
	c := newGlobal(t, 4)
	c.Insert(0x9000, Entry{VAddr: 0x9000, LogBytes: PageBits4K, Global: true})
	c.Insert(0xa000, Entry{VAddr: 0xa000, LogBytes: PageBits4K, Global: false})

	c.FlushNonGlobal()

	if _, ok := c.Lookup(0x9000, 0); !ok {
		t.Errorf("global entry invalidated by FlushNonGlobal")
	}
	if _, ok := c.Lookup(0xa000, 0); ok {
		t.Errorf("non-global entry survived FlushNonGlobal")
	}
	if c.GlobalPageMax() < 1 {
		t.Errorf("GlobalPageMax() = %d, want >= 1", c.GlobalPageMax())
	}
}

func TestGlobalCacheRoundTrip(t *testing.T) {
	c := newGlobal(t, 4)
	c.Insert(0x1000, Entry{VAddr: 0x1000, LogBytes: PageBits4K})

	got, ok := c.Lookup(0x1000, 0)
	if !ok {
		t.Fatalf("lookup missed after insert")
	}
	if got.VAddr != 0x1000 {
		t.Errorf("lookup returned vaddr %#x, want 0x1000", got.VAddr)
	}
}
