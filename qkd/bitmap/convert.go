package bitmap

import (
	"encoding/hex"
	"fmt"
)

// FromBits packs a slice of 0/1 values. Any non-zero value is treated as a 1.
func FromBits(vals []uint8) Dense {
	d := Dense{bits: make([]byte, 0, BytesFor(len(vals)))}
	for _, v := range vals {
		d.AppendBit(v != 0)
	}
	return d
}

// Bits unpacks d into one 0/1 value per bit.
func Bits(d Dense) []uint8 {
	r := make([]uint8, d.len)
	for i := range r {
		if d.Get(i) {
			r[i] = 1
		}
	}
	return r
}

// FromString parses a string of '1's and '0's, ignoring spaces.
func FromString(s string) (Dense, error) {
	var d Dense
	for _, c := range s {
		switch c {
		case '1':
			d.AppendBit(true)
		case '0':
			d.AppendBit(false)
		case ' ':
		default:
			return Dense{}, fmt.Errorf("invalid bitmap string rep: %s", s)
		}
	}
	return d, nil
}

// String renders d as '1's and '0's, first bit first.
func (d Dense) String() string {
	b := make([]byte, d.len)
	for i := range b {
		b[i] = '0'
		if d.Get(i) {
			b[i] = '1'
		}
	}
	return string(b)
}

// Hex renders d as lowercase hex, one byte per two digits, with the first bit
// in the least significant position of the first byte.
func Hex(d Dense) string {
	return hex.EncodeToString(d.bits[:d.SizeBytes()])
}
