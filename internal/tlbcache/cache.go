/*
 * tlbcoat - Skewed cache placement, lookup, insert, demap and flush
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

import (
	"fmt"

	"github.com/archsec/tlbcoat/internal/prince"
	"github.com/archsec/tlbcoat/util/debug"
)

// PlacementMode selects how a virtual page is mapped to physical sets.
type PlacementMode int

const (
	// PlacementSkewed derives every way's set index from the index PRF,
	// one per way, so a page maps to up to Ways distinct physical sets.
	PlacementSkewed PlacementMode = iota
	// PlacementDirect bypasses the PRF: every way uses the same plain
	// (vpn>>logBytes)%16 index, degenerating the table into an ordinary
	// 16-set associative cache. Kept as a build-time baseline for
	// comparison against the skewed placement.
	PlacementDirect
)

// MaxEvict is the number of forced-eviction inserts (per ASID, or globally
// for the global profile), counted since the last rotation or flush, that
// triggers epoch rotation. Inserts that find an invalid slot do not reset
// the count.
const MaxEvict = 64

// directSets is the fixed set count PlacementDirect indexes into,
// independent of the table's configured Sets.
const directSets = 16

// Config describes the geometry and keying of a skewed cache. The same
// Config shape is shared by NewASIDCache and NewGlobalCache; each applies
// its own geometry constraints.
type Config struct {
	Sets      uint8
	Ways      uint8
	Key       uint64
	Placement PlacementMode
}

func (c Config) validateCommon() error {
	if c.Ways == 0 {
		return fmt.Errorf("tlbcache: ways must be positive, got %d", c.Ways)
	}
	if c.Ways > 64 {
		return fmt.Errorf("tlbcache: ways must be <= 64, got %d", c.Ways)
	}
	if c.Sets == 0 {
		return fmt.Errorf("tlbcache: sets must be positive, got %d", c.Sets)
	}
	return nil
}

func directVector(vpn uint64, logBytes uint8, ways uint8) []uint8 {
	idx := uint8((vpn >> uint(logBytes)) % directSets)
	vec := make([]uint8, ways)
	for i := range vec {
		vec[i] = idx
	}
	return vec
}

func checkInvariant(set, way uint8, logBytes uint8) {
	if logBytes != PageBits4K && logBytes != PageBits2M {
		panic(fmt.Sprintf("tlbcache: invariant violation: valid slot (set=%d, way=%d) has logBytes=%d", set, way, logBytes))
	}
}

// ---------------------------------------------------------------------
// ASIDCache: per-address-space profile. Tree-pLRU replacement; per-ASID
// epoch state; demapPage/insert never invalidate more than the rotating
// ASID's own addressing.
// ---------------------------------------------------------------------

// ASIDCache implements the per-ASID, tree-pLRU skewed cache profile.
// Per-way set indices are nibbles of a single PRF call, which requires
// exactly 16 sets; tree-pLRU's {1,2,3,4} encoding requires exactly four
// ways.
type ASIDCache struct {
	table     *Table
	placement PlacementMode
	key       uint64

	// epochBase advances on every FlushAll and applies to all ASIDs
	// uniformly, standing in for incrementing every ASID's random ID at
	// once without materializing 2^16 counters.
	epochBase uint64
	// randomIDBump holds the additional, ASID-specific epoch rotations
	// triggered by sustained eviction pressure on that one ASID.
	// Absent entries behave as zero.
	randomIDBump map[uint16]uint64
	evictCount   map[uint16]uint32

	rerandRequests uint64
}

// NewASIDCache constructs the per-ASID skewed cache. Sets must be exactly
// 16 (the nibble-extraction PRF rule caps set count at 16) and Ways must
// be exactly 4 (tree-pLRU's permutation encoding is defined for four ways).
func NewASIDCache(cfg Config) (*ASIDCache, error) {
	if err := cfg.validateCommon(); err != nil {
		return nil, err
	}
	if cfg.Sets != 16 {
		return nil, fmt.Errorf("tlbcache: per-ASID cache requires exactly 16 sets, got %d", cfg.Sets)
	}
	if cfg.Ways != 4 {
		return nil, fmt.Errorf("tlbcache: per-ASID cache requires exactly 4 ways (tree-pLRU is a four-way encoding), got %d", cfg.Ways)
	}
	return &ASIDCache{
		table:        NewTable(cfg.Sets, cfg.Ways),
		placement:    cfg.Placement,
		key:          cfg.Key,
		randomIDBump: make(map[uint16]uint64),
		evictCount:   make(map[uint16]uint32),
	}, nil
}

func (c *ASIDCache) effectiveRandomID(asid uint16) uint64 {
	return c.epochBase + c.randomIDBump[asid]
}

func (c *ASIDCache) setVector(vpn uint64, asid uint16, logBytes uint8) []uint8 {
	if c.placement == PlacementDirect {
		return directVector(vpn, logBytes, c.table.Ways())
	}
	effectiveKey := c.key ^ uint64(asid) ^ c.effectiveRandomID(asid)
	result := prince.Encrypt(vpn, effectiveKey)
	vec := make([]uint8, c.table.Ways())
	for i := range vec {
		vec[i] = uint8((result >> uint(4*i)) & 0xF)
	}
	return vec
}

func (c *ASIDCache) lookupPass(base uint64, asid uint16, logBytes uint8) (Entry, bool) {
	vec := c.setVector(base, asid, logBytes)
	coords := c.table.coords(vec)
	for way, s := range coords {
		if !s.valid {
			continue
		}
		checkInvariant(vec[way], uint8(way), s.entry.LogBytes)
		if s.entry.LogBytes != logBytes {
			continue
		}
		if s.entry.VAddr == base && s.entry.ASID == asid {
			tPLRUPromote(c.table.row(vec[way]), way)
			debug.Tracef("tlbcache", "asid lookup hit va=%#x asid=%d set=%d way=%d", base, asid, vec[way], way)
			return s.entry, true
		}
	}
	return Entry{}, false
}

// Lookup searches the 4 KiB page containing va, then the 2 MiB page
// containing it, returning the first match and promoting it in the
// tree-pLRU ordering of the physical set it occupies.
func (c *ASIDCache) Lookup(va uint64, asid uint16) (Entry, bool) {
	base4k := va &^ ((uint64(1) << PageBits4K) - 1)
	if e, ok := c.lookupPass(base4k, asid, PageBits4K); ok {
		return e, true
	}
	baseHuge := va &^ ((uint64(1) << PageBits2M) - 1)
	return c.lookupPass(baseHuge, asid, PageBits2M)
}

// Insert places entry (normalized to its own page-size base) into the
// cache, rotating the ASID's epoch under sustained eviction pressure and
// falling back to a tree-pLRU victim when no invalid slot remains.
//
// If epoch rotation finds no invalid slot on its single retry, Insert
// falls straight through to forced eviction using the post-rotation set
// vector. It never re-checks for an invalid slot a second time and never
// re-rotates within the same call (see DESIGN.md).
func (c *ASIDCache) Insert(vpn uint64, entry Entry) Entry {
	base := vpn &^ ((uint64(1) << entry.LogBytes) - 1)
	entry.VAddr = base
	asid := entry.ASID

	vec := c.setVector(base, asid, entry.LogBytes)
	coords := c.table.coords(vec)

	way := firstInvalidWay(coords)
	if way == -1 {
		c.evictCount[asid]++
		if c.evictCount[asid] == MaxEvict {
			c.evictCount[asid] = 0
			c.rerandRequests++
			c.randomIDBump[asid]++
			vec = c.setVector(base, asid, entry.LogBytes)
			coords = c.table.coords(vec)
			way = firstInvalidWay(coords)
		}
	}
	if way == -1 {
		way = tPLRUVictim(coords)
	}

	slot := coords[way]
	priorLRU := slot.entry.LRUSeq
	entry.LRUSeq = priorLRU
	slot.entry = entry
	slot.valid = true
	tPLRUPromote(c.table.row(vec[way]), way)

	debug.Tracef("tlbcache", "asid insert va=%#x asid=%d set=%d way=%d", base, asid, vec[way], way)
	return slot.entry
}

// DemapPage performs the PRF-directed two-pass targeted invalidate: the
// same search lookup performs, but on the first match it invalidates the
// slot instead of returning it. Replacement state is left untouched.
func (c *ASIDCache) DemapPage(va uint64, asid uint16) {
	for _, logBytes := range [2]uint8{PageBits4K, PageBits2M} {
		base := va &^ ((uint64(1) << logBytes) - 1)
		vec := c.setVector(base, asid, logBytes)
		coords := c.table.coords(vec)
		for way, s := range coords {
			if !s.valid {
				continue
			}
			checkInvariant(vec[way], uint8(way), s.entry.LogBytes)
			if s.entry.LogBytes != logBytes {
				continue
			}
			if s.entry.VAddr == base && s.entry.ASID == asid {
				s.valid = false
				return
			}
		}
	}
}

// DemapPageComplex unconditionally sweeps every slot, invalidating slot
// (i, j) when (va==0 or its page contains va) and (asid==0 or its asid
// matches). Used for architectural global shootdowns where the caller
// may not know which sets a translation landed in. asid is masked to 16
// bits before comparison.
func (c *ASIDCache) DemapPageComplex(va uint64, asid uint16) {
	for s := uint8(0); s < c.table.Sets(); s++ {
		for w := uint8(0); w < c.table.Ways(); w++ {
			slot := c.table.at(s, w)
			if !slot.valid {
				continue
			}
			size := slot.entry.size()
			matchesVA := va == 0 || (va&^(size-1)) == slot.entry.VAddr
			matchesASID := asid == 0 || slot.entry.ASID == asid
			if matchesVA && matchesASID {
				slot.valid = false
			}
		}
	}
}

// FlushAll invalidates every slot and rotates the epoch for every ASID
// uniformly (modeled by epochBase, see the ASIDCache doc comment), then
// increments rerandRequests.
func (c *ASIDCache) FlushAll() {
	c.table.InvalidateAll()
	c.epochBase++
	for asid := range c.evictCount {
		c.evictCount[asid] = 0
	}
	c.rerandRequests++
}

// RerandRequests reports the monotonic count of epoch rotations (both
// per-ASID and whole-table) observed so far.
func (c *ASIDCache) RerandRequests() uint64 {
	return c.rerandRequests
}

// ---------------------------------------------------------------------
// GlobalCache: single address-space profile. Plain, host-maintained LRU
// replacement; one global epoch; insert's rotation is a full flushAll
// rather than the ASID profile's surgical re-addressing (see DESIGN.md).
// ---------------------------------------------------------------------

// GlobalCache implements the non-ASID, plain-LRU skewed cache profile.
// Under PlacementSkewed the set count is arbitrary; the way index is mixed
// directly into the PRF key to diversify placement across ways.
type GlobalCache struct {
	table     *Table
	placement PlacementMode
	key       uint64

	randomID       uint64
	evictCount     uint32
	rerandRequests uint64
	globalPageMax  uint64
}

// NewGlobalCache constructs the global skewed cache. Unlike the per-ASID
// profile, set count is not constrained to 16: each way calls the PRF
// separately and reduces its result modulo Sets. PlacementDirect always
// indexes sets 0..15, so it needs at least 16 sets.
func NewGlobalCache(cfg Config) (*GlobalCache, error) {
	if err := cfg.validateCommon(); err != nil {
		return nil, err
	}
	if cfg.Placement == PlacementDirect && cfg.Sets < directSets {
		return nil, fmt.Errorf("tlbcache: direct placement needs at least %d sets, got %d", directSets, cfg.Sets)
	}
	return &GlobalCache{
		table:     NewTable(cfg.Sets, cfg.Ways),
		placement: cfg.Placement,
		key:       cfg.Key,
	}, nil
}

func (c *GlobalCache) setVector(vpn uint64, logBytes uint8) []uint8 {
	if c.placement == PlacementDirect {
		return directVector(vpn, logBytes, c.table.Ways())
	}
	sets := uint64(c.table.Sets())
	vec := make([]uint8, c.table.Ways())
	for i := range vec {
		wayKey := c.key ^ c.randomID ^ uint64(i)
		vec[i] = uint8(prince.Encrypt(vpn, wayKey) % sets)
	}
	return vec
}

func (c *GlobalCache) lookupPass(base uint64, logBytes uint8) (Entry, bool) {
	vec := c.setVector(base, logBytes)
	coords := c.table.coords(vec)
	for way, s := range coords {
		if !s.valid {
			continue
		}
		checkInvariant(vec[way], uint8(way), s.entry.LogBytes)
		if s.entry.LogBytes != logBytes {
			continue
		}
		if s.entry.VAddr == base {
			// Plain LRU does not promote on hit: lruSeq is an
			// externally maintained access counter, not cache state.
			debug.Tracef("tlbcache", "global lookup hit va=%#x set=%d way=%d", base, vec[way], way)
			return s.entry, true
		}
	}
	return Entry{}, false
}

// Lookup searches the 4 KiB page containing va, then the 2 MiB page
// containing it. asid is accepted for interface symmetry with ASIDCache
// but plays no role in placement or comparison; the global profile has
// no concept of address-space isolation.
func (c *GlobalCache) Lookup(va uint64, _ uint16) (Entry, bool) {
	base4k := va &^ ((uint64(1) << PageBits4K) - 1)
	if e, ok := c.lookupPass(base4k, PageBits4K); ok {
		return e, true
	}
	baseHuge := va &^ ((uint64(1) << PageBits2M) - 1)
	return c.lookupPass(baseHuge, PageBits2M)
}

// Insert places entry (normalized to its own page-size base) into the
// cache. Unlike ASIDCache, the new entry's LRUSeq is taken as-is from the
// caller: the host simulator is responsible for stamping it with its own
// monotonically increasing access counter before calling Insert.
//
// Epoch rotation here is a full FlushAll, not a surgical per-ASID
// re-addressing: the whole table is invalidated on the rotation (see
// DESIGN.md).
func (c *GlobalCache) Insert(vpn uint64, entry Entry) Entry {
	base := vpn &^ ((uint64(1) << entry.LogBytes) - 1)
	entry.VAddr = base

	vec := c.setVector(base, entry.LogBytes)
	coords := c.table.coords(vec)

	way := firstInvalidWay(coords)
	if way == -1 {
		c.evictCount++
		if c.evictCount == MaxEvict {
			c.rerandRequests++
			c.FlushAll()
			vec = c.setVector(base, entry.LogBytes)
			coords = c.table.coords(vec)
			way = firstInvalidWay(coords)
		}
	}
	if way == -1 {
		way = lruVictim(coords)
	}

	slot := coords[way]
	slot.entry = entry
	slot.valid = true

	debug.Tracef("tlbcache", "global insert va=%#x set=%d way=%d", base, vec[way], way)
	return slot.entry
}

// DemapPage performs the PRF-directed two-pass targeted invalidate. asid
// is accepted for interface symmetry but ignored; the global profile
// never compares address spaces.
func (c *GlobalCache) DemapPage(va uint64, _ uint16) {
	for _, logBytes := range [2]uint8{PageBits4K, PageBits2M} {
		base := va &^ ((uint64(1) << logBytes) - 1)
		vec := c.setVector(base, logBytes)
		coords := c.table.coords(vec)
		for way, s := range coords {
			if !s.valid {
				continue
			}
			checkInvariant(vec[way], uint8(way), s.entry.LogBytes)
			if s.entry.LogBytes != logBytes {
				continue
			}
			if s.entry.VAddr == base {
				s.valid = false
				return
			}
		}
	}
}

// DemapPageComplex unconditionally sweeps every slot under the same
// wildcard rules as ASIDCache.DemapPageComplex, so the facade has one
// uniform shootdown primitive across both profiles.
func (c *GlobalCache) DemapPageComplex(va uint64, asid uint16) {
	for s := uint8(0); s < c.table.Sets(); s++ {
		for w := uint8(0); w < c.table.Ways(); w++ {
			slot := c.table.at(s, w)
			if !slot.valid {
				continue
			}
			size := slot.entry.size()
			matchesVA := va == 0 || (va&^(size-1)) == slot.entry.VAddr
			matchesASID := asid == 0 || slot.entry.ASID == asid
			if matchesVA && matchesASID {
				slot.valid = false
			}
		}
	}
}

// FlushAll invalidates every slot, zeros the eviction counter, increments
// the single global epoch, and increments rerandRequests.
func (c *GlobalCache) FlushAll() {
	c.table.InvalidateAll()
	c.evictCount = 0
	c.randomID++
	c.rerandRequests++
}

// FlushNonGlobal updates globalPageMax from the current count of valid,
// global-flagged slots, then invalidates every non-global valid slot and
// rotates the epoch. Slots holding entries with Entry.Global set stay
// valid, but under PlacementSkewed the rotated epoch changes every way's
// set index, so Lookup and DemapPage generally no longer reach them;
// DemapPageComplex and FlushAll, which sweep the whole table, still do.
func (c *GlobalCache) FlushNonGlobal() {
	c.countGlobalPages()
	c.evictCount = 0
	for i := range c.table.slots {
		if c.table.slots[i].valid && !c.table.slots[i].entry.Global {
			c.table.slots[i].valid = false
		}
	}
	c.randomID++
}

func (c *GlobalCache) countGlobalPages() {
	var count uint64
	for _, s := range c.table.slots {
		if s.valid && s.entry.Global {
			count++
		}
	}
	if count > c.globalPageMax {
		c.globalPageMax = count
	}
}

// RerandRequests reports the monotonic count of rerandomization requests:
// one per FlushAll call, plus one for each eviction-pressure rotation in
// Insert (which then calls FlushAll, so such a rotation adds two).
// FlushNonGlobal's epoch change is not counted.
func (c *GlobalCache) RerandRequests() uint64 {
	return c.rerandRequests
}

// GlobalPageMax reports the running high-water mark of simultaneously
// valid, global-flagged slots, as last updated by FlushNonGlobal.
func (c *GlobalCache) GlobalPageMax() uint64 {
	return c.globalPageMax
}
