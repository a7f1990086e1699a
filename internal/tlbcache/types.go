/*
 * tlbcoat - Skewed TLB cache data model
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

// Package tlbcache implements the skewed, re-randomized set-associative
// cache table that backs the security-hardened TLB: the metadata slots,
// the two replacement-policy variants, and the per-ASID or global epoch
// bookkeeping. It knows nothing about page-size semantics or ASID
// propagation; that binding lives one layer up, in package tlb.
package tlbcache

// Page-size exponents a translation entry may carry.
const (
	PageBits4K uint8 = 12
	PageBits2M uint8 = 21
)

// Entry is a translation the host page-table walker produced. Callers own
// the value; the cache stores a copy.
type Entry struct {
	VAddr    uint64 // Page-aligned virtual page number.
	ASID     uint16 // Address-space identifier (global profile ignores this).
	LogBytes uint8  // PageBits4K or PageBits2M.
	Global   bool   // Survives FlushNonGlobal (global profile only).
	LRUSeq   uint32 // Replacement-policy field; meaning depends on profile.
}

func (e Entry) size() uint64 {
	return uint64(1) << e.LogBytes
}

// slot is one physical cache cell. lruSeq-bearing state lives inside the
// entry so it survives invalidation (Entry.LRUSeq is preserved across
// invalid/valid transitions by the cache, never reset by invalidation).
type slot struct {
	valid bool
	entry Entry
}

// Table is the flat S*W array of slots, addressed arithmetically. A
// single contiguous slice keeps the cache the sole owner of every slot;
// there are no nested per-set allocations to manage.
type Table struct {
	sets, ways uint8
	slots      []slot
}

// NewTable allocates a sets*ways table with every slot invalid and lruSeq
// seeded 1..ways per way, so every set holds a well-formed tree-pLRU
// permutation from construction, before any insert.
func NewTable(sets, ways uint8) *Table {
	t := &Table{
		sets: sets,
		ways: ways,
		slots: make([]slot, int(sets)*int(ways)),
	}
	for s := uint8(0); s < sets; s++ {
		for w := uint8(0); w < ways; w++ {
			t.at(s, w).entry.LRUSeq = uint32(w) + 1
		}
	}
	return t
}

func (t *Table) at(set, way uint8) *slot {
	return &t.slots[int(set)*int(t.ways)+int(way)]
}

// Sets and Ways report the table geometry.
func (t *Table) Sets() uint8 { return t.sets }
func (t *Table) Ways() uint8 { return t.ways }

// InvalidateAll marks every slot invalid without touching lruSeq.
func (t *Table) InvalidateAll() {
	for i := range t.slots {
		t.slots[i].valid = false
	}
}

// row returns the slots of one physical set across every way. Tree-pLRU
// promotion operates on a row: the {1,2,3,4} permutation is a property of
// the physical set, not of the skewed vector a lookup happened to touch.
func (t *Table) row(set uint8) []*slot {
	out := make([]*slot, t.ways)
	for w := uint8(0); w < t.ways; w++ {
		out[w] = t.at(set, w)
	}
	return out
}

// coords resolves a per-way set vector (one set index per way, produced by
// the index PRF) into pointers at the slots it names. Index w of the
// returned slice is way w's slot, at set vec[w]: the "skewed set" a single
// lookup or insert actually touches.
func (t *Table) coords(vec []uint8) []*slot {
	out := make([]*slot, len(vec))
	for w, set := range vec {
		out[w] = t.at(set, uint8(w))
	}
	return out
}

// firstInvalidWay returns the lowest way index whose slot is invalid, or -1
// if every slot in coords is occupied.
func firstInvalidWay(coords []*slot) int {
	for i, s := range coords {
		if !s.valid {
			return i
		}
	}
	return -1
}
