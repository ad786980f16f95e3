package distill

import (
	"fmt"
	"math/bits"
	"math/rand"

	"github.com/alan-christopher/qkdsim/qkd/bitmap"
)

// A winnower reconciles Bob's sifted key to Alice's via the Winnow algorithm,
// as described in https://arxiv.org/abs/quant-ph/0203096. Both parties live
// in the same process, so the parity and syndrome announcements that would
// cross the classical channel are exchanged directly.
type winnower struct {
	iters []int
}

type reconcileResult struct {
	alice, bob bitmap.Dense
	// announced is the number of parity bits published during reconciliation.
	announced int
}

func (w winnower) reconcile(alice, bob bitmap.Dense, r *rand.Rand) (reconcileResult, error) {
	if alice.Size() != bob.Size() {
		return reconcileResult{}, fmt.Errorf(
			"reconciling keys of different lengths: %d != %d", alice.Size(), bob.Size())
	}
	res := reconcileResult{alice: alice.Clone(), bob: bob.Clone()}
	for _, hBits := range w.iters {
		if res.alice.Size() == 0 {
			break
		}
		announced, err := w.winnow(&res, hBits, r.Int63())
		if err != nil {
			return reconcileResult{}, err
		}
		res.announced += announced
	}
	return res, nil
}

// winnow runs a single pass with blocks of 2^hBits bits. Both keys are shuffled
// by identically seeded permutations so that blocks line up.
func (w winnower) winnow(res *reconcileResult, hBits int, seed int64) (int, error) {
	res.alice.Shuffle(rand.New(rand.NewSource(seed)))
	res.bob.Shuffle(rand.New(rand.NewSource(seed)))

	aliceSyn, err := w.getSyndromes(res.alice, hBits)
	if err != nil {
		return 0, err
	}
	bobSyn, err := w.getSyndromes(res.bob, hBits)
	if err != nil {
		return 0, err
	}
	todo, err := w.totalParityDiff(aliceSyn, bobSyn, hBits)
	if err != nil {
		return 0, err
	}
	synSums := w.fullSyndromeSums(aliceSyn, bobSyn, todo)
	if err := w.applySyndromes(&res.bob, synSums, todo, hBits); err != nil {
		return 0, err
	}
	res.alice = w.maintainPrivacy(res.alice, todo, hBits)
	res.bob = w.maintainPrivacy(res.bob, todo, hBits)

	return len(aliceSyn) + hBits*bitmap.CountOnes(todo), nil
}

// totalParityDiff returns a bitmap with a bit set for every block whose total
// parity differs between the two parties.
func (w winnower) totalParityDiff(aliceSyn, bobSyn []bitmap.Dense, hBits int) (bitmap.Dense, error) {
	if len(aliceSyn) != len(bobSyn) {
		return bitmap.Empty(), fmt.Errorf(
			"reconciling bitstrings of different block counts: %d != %d", len(aliceSyn), len(bobSyn))
	}
	todo := bitmap.Empty()
	for i := range aliceSyn {
		todo.AppendBit(aliceSyn[i].Get(hBits) != bobSyn[i].Get(hBits))
	}
	return todo, nil
}

// fullSyndromeSums returns, for every block marked in todo, the XOR of Alice's
// and Bob's syndromes. Alice announces, Bob fixes.
func (w winnower) fullSyndromeSums(aliceSyn, bobSyn []bitmap.Dense, todo bitmap.Dense) []bitmap.Dense {
	var r []bitmap.Dense
	for i := range aliceSyn {
		if todo.Get(i) {
			r = append(r, bitmap.XOr(aliceSyn[i], bobSyn[i]))
		}
	}
	return r
}

func (w winnower) applySyndromes(x *bitmap.Dense, synSums []bitmap.Dense, todo bitmap.Dense, hBits int) error {
	n := 1 << hBits
	for i, k := 0, -1; i < todo.Size(); i++ {
		if !todo.Get(i) {
			continue
		}
		k++
		if k >= len(synSums) {
			return fmt.Errorf("have %d syndromes for %d blocks", len(synSums), bitmap.CountOnes(todo))
		}
		syn := synSums[k]
		pos := 0
		for j := 0; j < hBits; j++ {
			if syn.Get(j) {
				pos |= 1 << j
			}
		}
		pos-- // cardinal/ordinal correction
		if pos < 0 {
			pos = n - 1 // total parity flip
		}
		// Errors diagnosed in the zero padding of a short final block cannot
		// be corrected.
		if idx := i*n + pos; idx < x.Size() {
			x.Flip(idx)
		}
	}
	return nil
}

// maintainPrivacy drops one bit of x for every parity bit announced about
// it. An uncorrected block only published its total parity and loses its
// last bit. A corrected block also published its syndrome and loses every
// position j with j+1 a power of two, i.e. hBits+1 bits.
func (w winnower) maintainPrivacy(x bitmap.Dense, todo bitmap.Dense, hBits int) bitmap.Dense {
	size := 1 << hBits
	var keep bitmap.Dense
	for b := 0; b < todo.Size(); b++ {
		corrected := todo.Get(b)
		for j := 0; j < size; j++ {
			drop := j == size-1
			if corrected {
				drop = bits.OnesCount(uint(j+1)) == 1
			}
			keep.AppendBit(!drop)
		}
	}
	return bitmap.Select(x, keep)
}

// getSyndromes splits x into blocks of 2^hBits bits, zero-padding the last
// one, and returns the SECDED syndrome of each.
func (w winnower) getSyndromes(x bitmap.Dense, hBits int) ([]bitmap.Dense, error) {
	size := 1 << hBits
	syns := make([]bitmap.Dense, 0, (x.Size()+size-1)/size)
	for start := 0; start < x.Size(); start += size {
		block, err := bitmap.Slice(x, start, min(start+size, x.Size()))
		if err != nil {
			return nil, err
		}
		syn, err := w.secded(bitmap.NewDense(block.Data(), size), hBits)
		if err != nil {
			return nil, err
		}
		syns = append(syns, syn)
	}
	return syns, nil
}

// secded returns the extended Hamming syndrome of block: hBits bits locating a
// single error, followed by the block's total parity. Syndrome bit p is the
// parity of the positions j for which bit p of j+1 is set, so the syndrome is
// the XOR of j+1 over the set positions.
func (w winnower) secded(block bitmap.Dense, hBits int) (bitmap.Dense, error) {
	if block.Size() != 1<<hBits {
		return bitmap.Empty(), fmt.Errorf(
			"SECDED with %d check bits needs a %d-bit block, got %d", hBits, 1<<hBits, block.Size())
	}
	var pos uint
	for j := 0; j < block.Size(); j++ {
		if block.Get(j) {
			pos ^= uint(j + 1)
		}
	}
	var syn bitmap.Dense
	for p := 0; p < hBits; p++ {
		syn.AppendBit(pos>>p&1 == 1)
	}
	syn.AppendBit(bitmap.Parity(block))
	return syn, nil
}
