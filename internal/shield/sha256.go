// Package shield implements the DSM security layer: an in-tree SHA-256
// and HMAC, per-source replay windows and token buckets, per-node keys
// and permission masks, the security event ring, and the packet
// validation pipeline the aether engine runs on every received frame.
//
// The digest is implemented from scratch on the standard constants
// rather than borrowed from the runtime: the packet pipeline fixes the
// streaming context layout (a 112-byte structure with no heap use) and
// MAC verification must be constant-time.  Digest implements hash.Hash,
// so key-derivation code (x/crypto/hkdf) composes with it unchanged.
//
// © 2025 seraph authors. MIT License.

package shield

import (
	"encoding/binary"
	"math/bits"
)

// Size is the SHA-256 digest length in bytes.
const Size = 32

// BlockSize is the SHA-256 block length in bytes.
const BlockSize = 64

var sha256K = [64]uint32{
	0x428a2f98, 0x71374491, 0xb5c0fbcf, 0xe9b5dba5,
	0x3956c25b, 0x59f111f1, 0x923f82a4, 0xab1c5ed5,
	0xd807aa98, 0x12835b01, 0x243185be, 0x550c7dc3,
	0x72be5d74, 0x80deb1fe, 0x9bdc06a7, 0xc19bf174,
	0xe49b69c1, 0xefbe4786, 0x0fc19dc6, 0x240ca1cc,
	0x2de92c6f, 0x4a7484aa, 0x5cb0a9dc, 0x76f988da,
	0x983e5152, 0xa831c66d, 0xb00327c8, 0xbf597fc7,
	0xc6e00bf3, 0xd5a79147, 0x06ca6351, 0x14292967,
	0x27b70a85, 0x2e1b2138, 0x4d2c6dfc, 0x53380d13,
	0x650a7354, 0x766a0abb, 0x81c2c92e, 0x92722c85,
	0xa2bfe8a1, 0xa81a664b, 0xc24b8b70, 0xc76c51a3,
	0xd192e819, 0xd6990624, 0xf40e3585, 0x106aa070,
	0x19a4c116, 0x1e376c08, 0x2748774c, 0x34b0bcb5,
	0x391c0cb3, 0x4ed8aa4a, 0x5b9cca4f, 0x682e6ff3,
	0x748f82ee, 0x78a5636f, 0x84c87814, 0x8cc70208,
	0x90befffa, 0xa4506ceb, 0xbef9a3f7, 0xc67178f2,
}

// Digest is the fixed-size streaming context: hash state, one pending
// block, its fill level and the running message length.
type Digest struct {
	h   [8]uint32
	x   [BlockSize]byte
	nx  int
	len uint64
}

// NewDigest returns a freshly initialised context.
func NewDigest() *Digest {
	d := &Digest{}
	d.Reset()
	return d
}

// Reset restores the initial hash values.
func (d *Digest) Reset() {
	d.h = [8]uint32{
		0x6a09e667, 0xbb67ae85, 0x3c6ef372, 0xa54ff53a,
		0x510e527f, 0x9b05688c, 0x1f83d9ab, 0x5be0cd19,
	}
	d.nx = 0
	d.len = 0
}

// Size implements hash.Hash.
func (d *Digest) Size() int { return Size }

// BlockSize implements hash.Hash.
func (d *Digest) BlockSize() int { return BlockSize }

// Write absorbs p into the context; it never fails.
func (d *Digest) Write(p []byte) (int, error) {
	n := len(p)
	d.len += uint64(n)
	if d.nx > 0 {
		c := copy(d.x[d.nx:], p)
		d.nx += c
		if d.nx == BlockSize {
			d.block(d.x[:])
			d.nx = 0
		}
		p = p[c:]
	}
	for len(p) >= BlockSize {
		d.block(p[:BlockSize])
		p = p[BlockSize:]
	}
	if len(p) > 0 {
		d.nx = copy(d.x[:], p)
	}
	return n, nil
}

// Sum appends the digest of the absorbed stream to in without
// disturbing the running context.
func (d *Digest) Sum(in []byte) []byte {
	cp := *d
	var out [Size]byte
	cp.checkSum(&out)
	return append(in, out[:]...)
}

// checkSum applies the padding rule (0x80, zeros, 64-bit big-endian bit
// length) and serialises the state.
func (d *Digest) checkSum(out *[Size]byte) {
	bitLen := d.len << 3
	var pad [BlockSize + 8]byte
	pad[0] = 0x80
	padLen := BlockSize - (d.len+9)%BlockSize + 1
	if padLen == BlockSize+1 {
		padLen = 1
	}
	d.Write(pad[:padLen])
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], bitLen)
	d.Write(lenBuf[:])

	for i, v := range d.h {
		binary.BigEndian.PutUint32(out[i*4:], v)
	}
}

// block runs the compression function over full 512-bit blocks.
func (d *Digest) block(p []byte) {
	var w [64]uint32
	h0, h1, h2, h3, h4, h5, h6, h7 := d.h[0], d.h[1], d.h[2], d.h[3], d.h[4], d.h[5], d.h[6], d.h[7]
	for len(p) >= BlockSize {
		for i := 0; i < 16; i++ {
			w[i] = binary.BigEndian.Uint32(p[i*4:])
		}
		for i := 16; i < 64; i++ {
			s0 := bits.RotateLeft32(w[i-15], -7) ^ bits.RotateLeft32(w[i-15], -18) ^ (w[i-15] >> 3)
			s1 := bits.RotateLeft32(w[i-2], -17) ^ bits.RotateLeft32(w[i-2], -19) ^ (w[i-2] >> 10)
			w[i] = w[i-16] + s0 + w[i-7] + s1
		}

		a, b, c, dd, e, f, g, h := h0, h1, h2, h3, h4, h5, h6, h7
		for i := 0; i < 64; i++ {
			S1 := bits.RotateLeft32(e, -6) ^ bits.RotateLeft32(e, -11) ^ bits.RotateLeft32(e, -25)
			ch := (e & f) ^ (^e & g)
			t1 := h + S1 + ch + sha256K[i] + w[i]
			S0 := bits.RotateLeft32(a, -2) ^ bits.RotateLeft32(a, -13) ^ bits.RotateLeft32(a, -22)
			maj := (a & b) ^ (a & c) ^ (b & c)
			t2 := S0 + maj
			h, g, f, e, dd, c, b, a = g, f, e, dd+t1, c, b, a, t1+t2
		}

		h0 += a
		h1 += b
		h2 += c
		h3 += dd
		h4 += e
		h5 += f
		h6 += g
		h7 += h
		p = p[BlockSize:]
	}
	d.h = [8]uint32{h0, h1, h2, h3, h4, h5, h6, h7}
}

// Sum256 is the one-shot convenience over NewDigest/Write/Sum.
func Sum256(p []byte) [Size]byte {
	d := NewDigest()
	d.Write(p)
	var out [Size]byte
	cp := *d
	cp.checkSum(&out)
	return out
}
