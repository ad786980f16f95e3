package distill

import (
	"fmt"
	"math/rand"

	"github.com/alan-christopher/qkdsim/qkd/bitmap"
)

// A toeplitz is an m×n matrix over F_2 whose diagonals are constant. It is
// stored as its m+n−1 diagonal constants: entry (i, j) is diags[m−1−i+j].
type toeplitz struct {
	diags bitmap.Dense
	m, n  int
}

// newToeplitz draws a uniformly random m×n toeplitz matrix from r. Such
// matrices form a universal hash family, which is what privacy amplification
// needs.
func newToeplitz(m, n int, r *rand.Rand) toeplitz {
	seed := make([]byte, bitmap.BytesFor(m+n-1))
	r.Read(seed)
	return toeplitz{diags: bitmap.NewDense(seed, m+n-1), m: m, n: n}
}

// Mul returns the matrix-vector product t·key.
//
// Column j of t, read top to bottom, is diags[j+m−1], ..., diags[j]. Mul
// reverses the diagonals once so that every column is a contiguous slice, and
// sums the columns selected by the set bits of key.
func (t toeplitz) Mul(key bitmap.Dense) (bitmap.Dense, error) {
	need := t.m + t.n - 1
	if t.diags.Size() < need {
		return bitmap.Empty(), fmt.Errorf("toeplitz %dx%d needs %d diagonals, has %d", t.m, t.n, need, t.diags.Size())
	}
	if key.Size() != t.n {
		return bitmap.Empty(), fmt.Errorf("hashing %d-bit key with a %dx%d toeplitz matrix", key.Size(), t.m, t.n)
	}

	rev := bitmap.Empty()
	for k := need - 1; k >= 0; k-- {
		rev.AppendBit(t.diags.Get(k))
	}
	sum := bitmap.NewDense(nil, t.m)
	for j := 0; j < t.n; j++ {
		if !key.Get(j) {
			continue
		}
		col, err := bitmap.Slice(rev, t.n-1-j, t.n-1-j+t.m)
		if err != nil {
			return bitmap.Empty(), err
		}
		sum = bitmap.XOr(sum, col)
	}
	return sum, nil
}
