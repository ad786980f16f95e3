package bitmap

import (
	"fmt"
	"math/bits"
)

// And returns the bitwise AND of two bitmaps, as long as the shorter one.
func And(a, b Dense) Dense {
	if b.len < a.len {
		a, b = b, a
	}
	r := Dense{bits: make([]byte, a.SizeBytes()), len: a.len}
	for i := range r.bits {
		r.bits[i] = a.bits[i] & b.bits[i]
	}
	return r
}

// XOr returns the bitwise XOR of two bitmaps, as long as the longer one. The
// shorter one is treated as zero-padded.
func XOr(a, b Dense) Dense {
	if b.len > a.len {
		a, b = b, a
	}
	r := a.Clone()
	for i := 0; i < b.SizeBytes(); i++ {
		r.bits[i] ^= b.bits[i]
	}
	return r
}

// Parity returns the overall parity of d, with true corresponding to 1.
func Parity(d Dense) bool {
	var sum byte
	for _, b := range d.bits[:d.SizeBytes()] {
		sum ^= b
	}
	return bits.OnesCount8(sum)%2 == 1
}

// CountOnes returns the number of bits set in d.
func CountOnes(d Dense) int {
	var n int
	for _, b := range d.bits[:d.SizeBytes()] {
		n += bits.OnesCount8(b)
	}
	return n
}

// Equal reports whether a and b hold the same bits. Bitmaps of different
// lengths are never equal.
func Equal(a, b Dense) bool {
	return a.len == b.len && CountOnes(XOr(a, b)) == 0
}

// Select returns the bits of data whose position is set in mask, in order.
func Select(data, mask Dense) Dense {
	var d Dense
	for i := 0; i < data.len; i++ {
		if mask.Get(i) {
			d.AppendBit(data.Get(i))
		}
	}
	return d
}

// Slice returns a copy of bits [start, end) of d.
func Slice(d Dense, start, end int) (Dense, error) {
	if start < 0 {
		return Dense{}, fmt.Errorf("slicing bitmap with negative start: %d", start)
	}
	if end < start {
		return Dense{}, fmt.Errorf("slicing bitmap to negative length: %d", end-start)
	}
	if end > d.len {
		return Dense{}, fmt.Errorf("slicing bitmap of len %d up to %d", d.len, end)
	}

	n := end - start
	r := Dense{bits: make([]byte, BytesFor(n)), len: n}
	j, off := start/byteSize, start%byteSize
	for k := range r.bits {
		b := d.bits[j+k] >> off
		if off != 0 && j+k+1 < len(d.bits) {
			b |= d.bits[j+k+1] << (byteSize - off)
		}
		r.bits[k] = b
	}
	r.clearTail()
	return r, nil
}
