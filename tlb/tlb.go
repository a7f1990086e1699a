/*
 * tlbcoat - TLB facade: binds page-size and ASID semantics to the cache
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

// Package tlb is the host-facing facade over the skewed, re-randomized TLB
// model: it exposes one Cache interface regardless of which replacement
// and epoch-bookkeeping profile backs it, and binds the two-pass 4 KiB /
// 2 MiB page-size lookup and ASID propagation that internal/tlbcache
// itself is deliberately ignorant of.
package tlb

import (
	"github.com/archsec/tlbcoat/internal/tlbcache"
)

// Entry is the translation record the host page-table walker produces and
// the cache stores. It is a plain value: callers own it, and the cache
// hands back copies rather than pointers into its own table (see Cache's
// doc comment for the lifetime rule this replaces).
type Entry = tlbcache.Entry

// Page-size exponents an Entry.LogBytes may carry.
const (
	PageBits4K = tlbcache.PageBits4K
	PageBits2M = tlbcache.PageBits2M
)

// MaxEvict is the number of forced-eviction inserts, counted since the
// last rotation or flush, that triggers epoch rotation, per ASID for the
// skewed profile or globally for the plain profile.
const MaxEvict = tlbcache.MaxEvict

// Mode selects how a virtual page is mapped to physical sets.
type Mode int

const (
	// ModeSkewed derives every way's set index independently from the
	// PRINCE-style index PRF (the hardened placement this model exists
	// to evaluate).
	ModeSkewed Mode = iota
	// ModeDirect bypasses the PRF: every way indexes with the same
	// plain (vpn>>logBytes)%16, degenerating the cache into an ordinary
	// associative table. Useful as a side-channel-vulnerable baseline
	// to compare the skewed placement against.
	ModeDirect
)

// Config describes cache geometry, keying, and placement mode. The same
// Config shape is accepted by NewASIDCache and NewGlobalCache; each
// applies its own geometry constraints (see their doc comments).
type Config struct {
	Sets uint8
	Ways uint8
	Key  uint64
	Mode Mode
}

func (c Config) toInternal() tlbcache.Config {
	placement := tlbcache.PlacementSkewed
	if c.Mode == ModeDirect {
		placement = tlbcache.PlacementDirect
	}
	return tlbcache.Config{
		Sets:      c.Sets,
		Ways:      c.Ways,
		Key:       c.Key,
		Placement: placement,
	}
}

// Cache is the operational surface exposed to the host simulator,
// identical across both configuration profiles. Entries returned by
// Lookup and Insert are non-owning views valid only until the next
// mutating call (Insert, DemapPage, DemapPageComplex, FlushAll, or
// FlushNonGlobal) on the same Cache; retaining one across such a call is
// a caller bug, not a Cache bug.
//
// FlushNonGlobal and GlobalPageMax are defined only for the global
// (plain-LRU) profile; calling them on a per-ASID cache panics, since the
// per-ASID profile has no notion of a "global" entry surviving a partial
// flush.
type Cache interface {
	Lookup(va uint64, asid uint16) (Entry, bool)
	Insert(vpn uint64, entry Entry) Entry
	DemapPage(va uint64, asid uint16)
	DemapPageComplex(va uint64, asid uint16)
	FlushAll()
	FlushNonGlobal()
	RerandRequests() uint64
	GlobalPageMax() uint64
}

// asidCache adapts *tlbcache.ASIDCache to the Cache interface, the
// per-address-space, tree-pLRU profile.
type asidCache struct {
	*tlbcache.ASIDCache
}

// FlushNonGlobal has no meaning for the per-ASID profile: there is no
// "global" entry concept without a single shared address space. Calling
// it is a configuration mismatch in the host, not a recoverable error.
func (a *asidCache) FlushNonGlobal() {
	panic("tlb: FlushNonGlobal is only defined for the global cache profile")
}

// GlobalPageMax has no meaning for the per-ASID profile.
func (a *asidCache) GlobalPageMax() uint64 {
	panic("tlb: GlobalPageMax is only defined for the global cache profile")
}

// globalCache adapts *tlbcache.GlobalCache to the Cache interface, the
// single-address-space, plain-LRU profile.
type globalCache struct {
	*tlbcache.GlobalCache
}

// NewASIDCache constructs the per-ASID, tree-pLRU skewed TLB: sets must
// be exactly 16 and ways exactly 4 (see tlbcache.NewASIDCache).
func NewASIDCache(cfg Config) (Cache, error) {
	c, err := tlbcache.NewASIDCache(cfg.toInternal())
	if err != nil {
		return nil, err
	}
	return &asidCache{c}, nil
}

// NewGlobalCache constructs the non-ASID, plain-LRU skewed TLB: lruSeq is
// maintained by the caller as a monotonically increasing access counter
// (see tlbcache.NewGlobalCache and GlobalCache.Insert).
func NewGlobalCache(cfg Config) (Cache, error) {
	c, err := tlbcache.NewGlobalCache(cfg.toInternal())
	if err != nil {
		return nil, err
	}
	return &globalCache{c}, nil
}
