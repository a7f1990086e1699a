/*
 * tlbcoat - Replacement policies (tree-pLRU and plain LRU)
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

// The two policies deliberately disagree about which slots they range
// over. Promotion operates on a physical set row (the W slots sharing the
// hit way's set number): the {1,2,3,4} tree-pLRU permutation is a property
// of the physical set, and promoting across a skewed vector would corrupt
// the permutations of every set the vector touches. Eviction instead
// ranges over the skewed vector (the W slots a lookup actually reaches,
// one per way, at the per-way set indices the index PRF produced), since
// those are the only slots the incoming entry can land in.

// tPLRUPromote marks way as most-recently-used within row (the four slots
// of one physical set), maintaining the invariant that {1,2,3,4} is always
// a permutation across the four entries' LRUSeq fields.
//
// Four-way only: tree-pLRU's {1,2,3,4} encoding has no well-defined
// generalization to other way counts, so callers must only use this with
// a 4-way table (enforced at Cache construction).
func tPLRUPromote(row []*slot, way int) {
	if row[way].entry.LRUSeq == 1 {
		return
	}

	row[way].entry.LRUSeq = 1

	seen := uint8(1 << uint(way))

	rank2 := -1
	for i, c := range row {
		if seen&(1<<uint(i)) != 0 {
			continue
		}
		if c.entry.LRUSeq == 1 {
			c.entry.LRUSeq = 2
			seen |= 1 << uint(i)
			rank2 = i
			break
		}
	}
	if rank2 == -1 {
		panic("tlbcache: tPLRU promotion could not find rank-1 slot")
	}

	rank3 := -1
	for i, c := range row {
		if seen&(1<<uint(i)) != 0 {
			continue
		}
		if c.entry.LRUSeq == 2 {
			c.entry.LRUSeq = 3
			seen |= 1 << uint(i)
			rank3 = i
			break
		}
	}
	if rank3 == -1 {
		// Fewer than four distinct ranks were present (some slots were
		// freshly invalidated); nothing further to promote.
		return
	}

	for i, c := range row {
		if seen&(1<<uint(i)) != 0 {
			continue
		}
		if c.entry.LRUSeq == 3 {
			c.entry.LRUSeq = 4
			return
		}
	}
}

// tPLRUVictim returns the index of the way with the maximum LRUSeq
// (farthest from MRU), ties broken toward the lowest way index.
func tPLRUVictim(coords []*slot) int {
	victim := 0
	for i := 1; i < len(coords); i++ {
		if coords[i].valid && coords[i].entry.LRUSeq > coords[victim].entry.LRUSeq {
			victim = i
		}
	}
	return victim
}

// lruVictim returns the index of the way with the minimum LRUSeq (the
// oldest host-supplied access counter), ties broken toward the lowest way
// index. Used by the global/plain-LRU profile, whose LRUSeq is a
// monotonically increasing counter the host maintains; the cache never
// writes it: Insert stores the caller's value, and invalidation leaves it
// in place.
func lruVictim(coords []*slot) int {
	victim := 0
	for i := 1; i < len(coords); i++ {
		if coords[i].valid && coords[i].entry.LRUSeq < coords[victim].entry.LRUSeq {
			victim = i
		}
	}
	return victim
}
