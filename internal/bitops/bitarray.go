// bitarray.go packs an arbitrary number of bits into 64-bit words.  Bit i
// lives at word i/64, bit i%64.  All positions are checked; out-of-range
// access is absent, never a panic.
//
// © 2025 seraph authors. MIT License.

package bitops

import (
	"math/bits"

	"github.com/seraphos/substrate/internal/absent"
)

// BitArray is a fixed-size packed bit set.
type BitArray struct {
	words []uint64
	nbits uint64
}

// NewBitArray allocates a zeroed array of nbits bits.
func NewBitArray(nbits uint64) *BitArray {
	return &BitArray{
		words: make([]uint64, (nbits+63)/64),
		nbits: nbits,
	}
}

// Len returns the number of addressable bits.
func (a *BitArray) Len() uint64 { return a.nbits }

// Test reports bit i; absent beyond the array.
func (a *BitArray) Test(i uint64) absent.VBit {
	if i >= a.nbits {
		return absent.VAbsent
	}
	return absent.VBitFromBool(a.words[i/64]>>(i%64)&1 == 1)
}

// Set sets bit i; the return reports whether the position was in range.
func (a *BitArray) Set(i uint64) absent.VBit {
	if i >= a.nbits {
		return absent.VAbsent
	}
	a.words[i/64] |= 1 << (i % 64)
	return absent.VTrue
}

// Clear clears bit i.
func (a *BitArray) Clear(i uint64) absent.VBit {
	if i >= a.nbits {
		return absent.VAbsent
	}
	a.words[i/64] &^= 1 << (i % 64)
	return absent.VTrue
}

// Toggle flips bit i.
func (a *BitArray) Toggle(i uint64) absent.VBit {
	if i >= a.nbits {
		return absent.VAbsent
	}
	a.words[i/64] ^= 1 << (i % 64)
	return absent.VTrue
}

// Popcount sums per-word set-bit counts over the whole array.
func (a *BitArray) Popcount() uint64 {
	var total uint64
	for _, w := range a.words {
		total += uint64(bits.OnesCount64(w))
	}
	return total
}

// FirstSet returns the index of the lowest set bit, or the u64 sentinel
// when the array is empty of set bits.
func (a *BitArray) FirstSet() uint64 {
	for wi, w := range a.words {
		if w != 0 {
			idx := uint64(wi)*64 + uint64(bits.TrailingZeros64(w))
			if idx >= a.nbits {
				return absent.U64
			}
			return idx
		}
	}
	return absent.U64
}

// Reset zeroes every word.
func (a *BitArray) Reset() {
	for i := range a.words {
		a.words[i] = 0
	}
}
