package curve

import "github.com/cronokirby/saferith"

// Table holds the doublings P, 2P, 4P, ... that ScalarMultTable sums one
// set scalar bit at a time; no windowing is applied.
type Table struct {
	doublings []*Point
}

// PrecompTable builds the doubling table for p, one entry per bit of the
// scalar field.
func PrecompTable(p *Point) *Table {
	t := &Table{doublings: make([]*Point, NBits)}
	cur := p.cloneP()
	for i := 0; i < NBits; i++ {
		t.doublings[i] = cur
		cur = cur.Dbl()
	}
	return t
}

// ScalarMultTable computes k*P using the precomputed doubling table. NOT
// constant-time: it leaks the non-zero bit positions of k, so it is for
// public-input uses only (verification, proof checks whose scalars are
// never secret). Callers must never pass secret scalars here.
func ScalarMultTable(t *Table, k *Scalar) *Point {
	acc := InfinityPoint()
	for i := 0; i < NBits; i++ {
		if k.Bit(i) {
			acc = Op(acc, t.doublings[i])
		}
	}
	return acc
}

var genTable = PrecompTable(Generator())

// GeneratorTable returns the (public) precomputed table for the base point.
func GeneratorTable() *Table {
	return genTable
}

// GadgetTable holds the fixed lookup 2^0, 2^1, ..., 2^255 mod n used to
// decode a bit-encoded scalar in the MtA gadget.
var GadgetTable = buildGadgetTable()

func buildGadgetTable() [NBits]*Scalar {
	var table [NBits]*Scalar
	pow := new(saferith.Nat).SetUint64(1)
	two := new(saferith.Nat).SetUint64(2)
	for i := 0; i < NBits; i++ {
		table[i] = NewScalar().SetNat(pow)
		pow = new(saferith.Nat).Mul(pow, two, NBits+8)
	}
	return table
}
