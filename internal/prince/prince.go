/*
 * tlbcoat - PRINCE-style index PRF
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

// Package prince implements the reduced-round, non-standard PRINCE-style
// block function used as the TLB's index PRF. It is not the published
// PRINCE cipher and carries no confidentiality claim; it exists purely to
// scramble a page-aligned address into a pseudo-random 64-bit word so that
// each cache way derives its set index independently.
package prince

import "math/bits"

// Round constants.
const (
	rc1 uint64 = 0x13198a2e03707344
	rc2 uint64 = 0xa4093822299f31d0
)

var sbox = [16]uint8{0xB, 0xF, 0x3, 0x2, 0xA, 0xC, 0x9, 0x1, 0x6, 0x7, 0x8, 0x0, 0xE, 0x5, 0xD, 0x4}

var sboxInv = [16]uint8{0xB, 0x7, 0x3, 0x2, 0xF, 0xD, 0x8, 0x9, 0xA, 0x6, 0x4, 0x0, 0x5, 0xE, 0xC, 0x1}

// GF(2) matrices for the M'-layer. Rows index by input bit; multiplying
// a 16-bit word by the matrix XORs in the rows of every set input bit.
var m0 = [16]uint32{
	0x0111, 0x2220, 0x4404, 0x8088,
	0x1011, 0x0222, 0x4440, 0x8808,
	0x1101, 0x2022, 0x0444, 0x8880,
	0x1110, 0x2202, 0x4044, 0x0888,
}

var m1 = [16]uint32{
	0x1110, 0x2202, 0x4044, 0x0888,
	0x0111, 0x2220, 0x4404, 0x8088,
	0x1011, 0x0222, 0x4440, 0x8808,
	0x1101, 0x2022, 0x0444, 0x8880,
}

const rowMask uint64 = 0xF000F000F000F000

// gf2Mul16 multiplies a 16-bit input by a 16x16 GF(2) matrix given as its
// rows: for every set bit i of in, the output is XORed with mat[i].
func gf2Mul16(in uint64, mat *[16]uint32) uint64 {
	var out uint64
	for i := 0; i < 16; i++ {
		if (in>>uint(i))&1 != 0 {
			out ^= uint64(mat[i])
		}
	}
	return out
}

// mPrimeLayer applies M0 to the outer two 16-bit words and M1 to the inner
// two, independent of shift-rows.
func mPrimeLayer(block uint64) uint64 {
	out0 := gf2Mul16(block, &m0)
	out1 := gf2Mul16(block>>16, &m1)
	out2 := gf2Mul16(block>>32, &m1)
	out3 := gf2Mul16(block>>48, &m0)
	return (out3 << 48) | (out2 << 32) | (out1 << 16) | out0
}

// shiftRows rotates each of the four 16-bit rows of the block. Forward
// rotates row i right by 64-16i (mod 64), which is left by 16i; inverse
// rotates it right by 16i.
func shiftRows(block uint64, inverse bool) uint64 {
	var out uint64
	for i := 0; i < 4; i++ {
		row := block & (rowMask >> uint(4*i))
		var shift int
		if inverse {
			shift = i * 16
		} else {
			shift = 64 - i*16
		}
		out |= bits.RotateLeft64(row, -shift)
	}
	return out
}

func sLayer(block uint64, box *[16]uint8) uint64 {
	var out uint64
	for i := 0; i < 16; i++ {
		nibble := uint8(block>>uint(4*i)) & 0xF
		out |= uint64(box[nibble]) << uint(4*i)
	}
	return out
}

func mLayer(block uint64) uint64 {
	return shiftRows(mPrimeLayer(block), false)
}

// Encrypt is the index PRF: a pure function of (input, key). input is
// normally a page-aligned address and key is the per-way, per-epoch mixed
// key (see Cache.effectiveKey in the tlb package). It is cheap to call on
// every lookup and insert.
func Encrypt(input, key uint64) uint64 {
	x := input ^ key ^ rc1
	x = mLayer(x)
	x = sLayer(x, &sboxInv)

	x ^= key ^ rc2
	x = mLayer(x)
	x = sLayer(x, &sbox)

	x ^= key
	x = sLayer(x, &sbox)
	x = mPrimeLayer(x)

	return x
}
