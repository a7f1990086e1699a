/*
 * tlbcoat - Skewed TLB cache data model tests
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

package tlbcache

import "testing"

func TestNewTableSeedsLRUPermutation(t *testing.T) {
	tbl := NewTable(16, 4)
	for s := uint8(0); s < 16; s++ {
		seen := map[uint32]bool{}
		for w := uint8(0); w < 4; w++ {
			seq := tbl.at(s, w).entry.LRUSeq
			if seq < 1 || seq > 4 {
				t.Fatalf("set %d way %d: lruSeq %d out of range", s, w, seq)
			}
			if seen[seq] {
				t.Fatalf("set %d: lruSeq %d duplicated", s, seq)
			}
			seen[seq] = true
		}
	}
}

func TestNewTableAllInvalid(t *testing.T) {
	tbl := NewTable(16, 4)
	for i := range tbl.slots {
		if tbl.slots[i].valid {
			t.Fatalf("slot %d valid at construction, want invalid", i)
		}
	}
}

func TestTableInvalidateAllPreservesLRU(t *testing.T) {
	tbl := NewTable(16, 4)
	tbl.at(3, 2).valid = true
	tbl.at(3, 2).entry.LRUSeq = 9
	tbl.InvalidateAll()
	if tbl.at(3, 2).valid {
		t.Errorf("slot still valid after InvalidateAll")
	}
	if tbl.at(3, 2).entry.LRUSeq != 9 {
		t.Errorf("InvalidateAll touched lruSeq: got %d want 9", tbl.at(3, 2).entry.LRUSeq)
	}
}

func TestTableCoordsResolvesPerWaySet(t *testing.T) {
	tbl := NewTable(16, 4)
	vec := []uint8{1, 5, 9, 13}
	coords := tbl.coords(vec)
	for w, set := range vec {
		if coords[w] != tbl.at(set, uint8(w)) {
			t.Errorf("coords[%d] does not point at (set=%d, way=%d)", w, set, w)
		}
	}
}

func TestFirstInvalidWay(t *testing.T) {
	tbl := NewTable(16, 4)
	coords := tbl.coords([]uint8{0, 0, 0, 0})
	for i := range coords {
		coords[i].valid = true
	}
	if w := firstInvalidWay(coords); w != -1 {
		t.Errorf("firstInvalidWay = %d, want -1 with all slots valid", w)
	}
	coords[2].valid = false
	if w := firstInvalidWay(coords); w != 2 {
		t.Errorf("firstInvalidWay = %d, want 2", w)
	}
}

func TestEntrySize(t *testing.T) {
	e := Entry{LogBytes: PageBits4K}
	if e.size() != 4096 {
		t.Errorf("4K entry size = %d, want 4096", e.size())
	}
	e = Entry{LogBytes: PageBits2M}
	if e.size() != 2*1024*1024 {
		t.Errorf("2M entry size = %d, want %d", e.size(), 2*1024*1024)
	}
}
