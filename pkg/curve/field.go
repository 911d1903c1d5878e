package curve

import (
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Field is an element of F_p, the secp256k1 base field. Internal
// representation is not unique; call Normalize before comparing or
// serializing.
type Field struct {
	v secp256k1.FieldVal
}

func NewField() *Field {
	return &Field{}
}

func FieldFromBytes(b []byte) *Field {
	f := &Field{}
	f.v.SetByteSlice(b)
	return f
}

func (f *Field) Clone() *Field {
	out := &Field{}
	out.v.Set(&f.v)
	return out
}

// Normalize performs a full normalization, required before equality checks
// or serialization (the "weak" vs "full" normalize distinction lives inside
// decred's FieldVal; we always request the full form here).
func (f *Field) Normalize() *Field {
	f.v.Normalize()
	return f
}

func (f *Field) Bytes() []byte {
	f.Normalize()
	b := f.v.Bytes()
	return b[:]
}

func (f *Field) Add(o *Field) *Field {
	out := &Field{}
	out.v.Set(&f.v)
	out.v.Add(&o.v)
	return out
}

func (f *Field) Sub(o *Field) *Field {
	neg := o.Neg()
	return f.Add(neg)
}

func (f *Field) Mul(o *Field) *Field {
	out := &Field{}
	out.v.Set(&f.v)
	out.v.Mul(&o.v)
	return out
}

func (f *Field) Sqr() *Field {
	out := &Field{}
	out.v.Set(&f.v)
	out.v.Square()
	return out
}

func (f *Field) Neg() *Field {
	out := &Field{}
	out.v.Set(&f.v)
	out.v.Normalize()
	out.v.Negate(1)
	return out
}

func (f *Field) Inv() *Field {
	out := &Field{}
	out.v.Set(&f.v)
	out.v.Inverse()
	return out
}

// Sqrt attempts to compute a square root of f, reporting false if f is not
// a quadratic residue.
func (f *Field) Sqrt() (*Field, bool) {
	out := &Field{}
	wasSquare := out.v.SquareRootVal(&f.v)
	return out, wasSquare
}

func (f *Field) IsZero() bool {
	return f.Clone().Normalize().v.IsZero()
}

// IsZeroBit reports whether f == 0 as a 0/1 value, computed without a
// data-dependent branch so callers can feed it straight into a mux.
func (f *Field) IsZeroBit() int {
	return int(f.Clone().Normalize().v.IsZeroBit())
}

func (f *Field) Equal(o *Field) bool {
	a := f.Clone().Normalize()
	b := o.Clone().Normalize()
	return a.v.Equals(&b.v)
}

// FieldMux selects a if sel == 1 else b, in constant time: both branches'
// byte encodings are read unconditionally and combined with a bitmask, the
// same technique used by Mux for scalars. The operands are cloned before
// normalization so shared points (precomputed tables) are never mutated.
func FieldMux(sel int, a, b *Field) *Field {
	mask := -uint32(sel & 1)
	ab := a.Clone().Bytes()
	bb := b.Clone().Bytes()
	out := make([]byte, NBytes)
	for i := range ab {
		out[i] = byte((uint32(ab[i]) & mask) | (uint32(bb[i]) & ^mask))
	}
	return FieldFromBytes(out)
}

// FieldConditionalSwap swaps a and b in place iff sel == 1, in constant
// time.
func FieldConditionalSwap(a, b *Field, sel int) {
	mask := -uint32(sel & 1)
	ab := a.Bytes()
	bb := b.Bytes()
	for i := range ab {
		t := mask & (uint32(ab[i]) ^ uint32(bb[i]))
		ab[i] ^= byte(t)
		bb[i] ^= byte(t)
	}
	a.v.SetByteSlice(ab)
	b.v.SetByteSlice(bb)
}
