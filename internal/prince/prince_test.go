/*
 * tlbcoat - PRINCE-style index PRF tests
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

package prince

import "testing"

// The canonical conformance key: prince_key = 0x0011223344556677 with
// random_id = 0 and asid = 0. Cross-validate Encrypt's output for this
// key against an independent implementation of the same structure before
// relying on this package for a new deployment.
const conformanceKey uint64 = 0x0011223344556677

// Conformance vectors for the canonical key, cross-checked against an
// independent implementation of the same reduced-round structure. Any
// change to the sbox tables, the m-prime matrices, the shift-rows
// rotation, or the round constants shows up here as a bit mismatch.
func TestEncryptConformanceVectors(t *testing.T) {
	vectors := []struct {
		input, key, want uint64
	}{
		{0x0, conformanceKey, 0xcb7b0d073337f13f},
		{0x1000, conformanceKey, 0xb87e870d23269bdb},
		{0x2000, conformanceKey, 0x51489aa1baa77562},
		{0x40000000, conformanceKey, 0x7f05766e441b8e3c},
		{0xdeadbeef000, conformanceKey, 0x7a37b48bcf8e0527},
		{0xfffffffffffff000, conformanceKey, 0x235036c007b54f1e},
		{0x1000, 0, 0xf14de24ccf6db0a6},
		{0x1000, ^uint64(0), 0x645a2cd4fb21e305},
	}
	for _, v := range vectors {
		if got := Encrypt(v.input, v.key); got != v.want {
			t.Errorf("Encrypt(%#x, %#x) = %#x, want %#x", v.input, v.key, got, v.want)
		}
	}
}

func TestEncryptIsPure(t *testing.T) {
	inputs := []uint64{0, 1, 0x1000, 0xdeadbeefcafebabe, conformanceKey}
	keys := []uint64{0, conformanceKey, ^uint64(0)}

	for _, in := range inputs {
		for _, key := range keys {
			a := Encrypt(in, key)
			b := Encrypt(in, key)
			if a != b {
				t.Fatalf("Encrypt(%#x, %#x) not pure: %#x != %#x", in, key, a, b)
			}
		}
	}
}

func TestEncryptVariesWithKey(t *testing.T) {
	a := Encrypt(0x1000, 0)
	b := Encrypt(0x1000, conformanceKey)
	if a == b {
		t.Fatalf("Encrypt did not change output for different keys: both %#x", a)
	}
}

func TestEncryptVariesWithInput(t *testing.T) {
	a := Encrypt(0x1000, conformanceKey)
	b := Encrypt(0x2000, conformanceKey)
	if a == b {
		t.Fatalf("Encrypt did not change output for different inputs: both %#x", a)
	}
}

func TestSBoxIsBijection(t *testing.T) {
	var seen [16]bool
	for i := 0; i < 16; i++ {
		v := sbox[i]
		if seen[v] {
			t.Fatalf("sbox not a bijection: value %x repeats", v)
		}
		seen[v] = true
	}
}

func TestSBoxInverse(t *testing.T) {
	for i := 0; i < 16; i++ {
		if sboxInv[sbox[i]] != uint8(i) {
			t.Fatalf("sboxInv is not the inverse of sbox at %x", i)
		}
	}
}

func TestShiftRowsRoundTrip(t *testing.T) {
	samples := []uint64{0, 0xffffffffffffffff, 0x0123456789abcdef, conformanceKey}
	for _, x := range samples {
		forward := shiftRows(x, false)
		back := shiftRows(forward, true)
		if back != x {
			t.Fatalf("shiftRows round trip failed for %#x: got %#x", x, back)
		}
	}
}

func TestGf2Mul16Linear(t *testing.T) {
	// A GF(2) matrix multiply is linear: f(a^b) == f(a)^f(b), and f(0) == 0.
	if gf2Mul16(0, &m0) != 0 {
		t.Fatalf("gf2Mul16(0) != 0")
	}
	a := uint64(0x1234)
	b := uint64(0x4321)
	got := gf2Mul16(a^b, &m0)
	want := gf2Mul16(a, &m0) ^ gf2Mul16(b, &m0)
	if got != want {
		t.Fatalf("gf2Mul16 not linear: got %#x want %#x", got, want)
	}
}

func TestSLayerAppliesNibblewise(t *testing.T) {
	in := uint64(0x0123456789abcdef)
	out := sLayer(in, &sbox)
	for i := 0; i < 16; i++ {
		want := sbox[(in>>uint(4*i))&0xf]
		got := uint8(out>>uint(4*i)) & 0xf
		if got != want {
			t.Fatalf("sLayer nibble %d: got %x want %x", i, got, want)
		}
	}
}
