// Package bitmap provides densely-packed bit vectors, used for sifted keys and
// the parity arithmetic of key distillation.
//
// Bits are stored least significant first within each byte. Bits past a
// Dense's length are always zero, which lets whole-byte operations such as
// Parity ignore the length.
package bitmap

import (
	"math/rand"
)

const byteSize = 8

// A Dense is a bitmap where every bit is explicitly represented. The zero
// value is an empty bitmap ready to use.
type Dense struct {
	bits []byte
	len  int
}

// NewDense returns a new dense bitmap whose contents are a view of data, and
// whose length is bitLen. If bitLen is longer than data, then trailing zeros
// are added. If bitLen is negative, then it is inferred from data. Bits of
// data past bitLen are cleared.
func NewDense(data []byte, bitLen int) Dense {
	if bitLen < 0 {
		bitLen = len(data) * byteSize
	}
	for len(data) < BytesFor(bitLen) {
		data = append(data, 0)
	}
	d := Dense{bits: data[:BytesFor(bitLen)], len: bitLen}
	d.clearTail()
	return d
}

// Empty returns an empty bitmap.
func Empty() Dense {
	return Dense{}
}

// BytesFor returns the number of bytes necessary to hold the provided number of
// bits.
func BytesFor(bits int) int {
	return (bits + byteSize - 1) / byteSize
}

// Get returns the i-th bit. Bits past the end read as false.
func (d Dense) Get(i int) bool {
	if i < 0 || i >= d.len {
		return false
	}
	return d.bits[i/byteSize]&(1<<(i%byteSize)) != 0
}

// Size returns the number of bits in d.
func (d Dense) Size() int {
	return d.len
}

// SizeBytes returns the number of bytes backing d.
func (d Dense) SizeBytes() int {
	return BytesFor(d.len)
}

// Data returns a view of the bytes underlying this bitmap. Modifying the
// returned slice modifies this bitmap.
func (d Dense) Data() []byte {
	return d.bits
}

// Clone returns a deep copy of d.
func (d Dense) Clone() Dense {
	bits := make([]byte, len(d.bits))
	copy(bits, d.bits)
	return Dense{bits: bits, len: d.len}
}

// AppendBit adds a single bit to the end of d.
func (d *Dense) AppendBit(bit bool) {
	if d.len%byteSize == 0 {
		d.bits = append(d.bits, 0)
	}
	if bit {
		d.bits[d.len/byteSize] |= 1 << (d.len % byteSize)
	}
	d.len++
}

// Flip inverts the i-th bit in place. It panics if i is out of range.
func (d *Dense) Flip(i int) {
	if i < 0 || i >= d.len {
		panic("bitmap: flip out of range")
	}
	d.bits[i/byteSize] ^= 1 << (i % byteSize)
}

// Shuffle randomly permutes the bits of d in place, using r as a source of
// randomness. Equal-length bitmaps shuffled with identically seeded sources
// are permuted identically.
func (d *Dense) Shuffle(r *rand.Rand) {
	r.Shuffle(d.len, func(i, j int) {
		if d.Get(i) != d.Get(j) {
			d.Flip(i)
			d.Flip(j)
		}
	})
}

func (d *Dense) clearTail() {
	if off := d.len % byteSize; off != 0 {
		d.bits[d.len/byteSize] &= 0xFF >> (byteSize - off)
	}
}
