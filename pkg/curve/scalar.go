// Package curve implements the secp256k1 group law and scalar-field
// contract consumed by the rest of the protocol. Field- and scalar-element
// arithmetic is delegated to decred's constant-time secp256k1 package; the
// group law (point addition, doubling, Montgomery-ladder scalar
// multiplication, precomputed-table multiplication) is built on top of it.
package curve

import (
	"crypto/rand"
	"io"

	"github.com/cronokirby/saferith"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// NBytes is the byte length of a scalar or field element in big-endian form.
const NBytes = 32

// NBits is the bit length of the scalar field order n.
const NBits = 256

// Scalar is an element of Z_n, the secp256k1 scalar field. Every exposed
// Scalar is reduced mod n.
type Scalar struct {
	v secp256k1.ModNScalar
}

// NewScalar returns the zero scalar.
func NewScalar() *Scalar {
	return &Scalar{}
}

// ScalarFromUint64 lifts a native integer into the scalar field.
func ScalarFromUint64(x uint64) *Scalar {
	s := &Scalar{}
	var nat saferith.Nat
	nat.SetUint64(x)
	return s.SetNat(&nat)
}

// SetNat reduces the low 256 bits of a saferith.Nat mod n and stores the
// result; any higher bits are dropped. This is the
// "native-integer lift" operation required of the scalar contract.
func (s *Scalar) SetNat(n *saferith.Nat) *Scalar {
	buf := n.Bytes()
	var padded [NBytes]byte
	if len(buf) > NBytes {
		buf = buf[len(buf)-NBytes:]
	}
	copy(padded[NBytes-len(buf):], buf)
	s.v.SetByteSlice(padded[:])
	return s
}

// SetBytes reduces a big-endian 32-byte encoding mod n.
func (s *Scalar) SetBytes(b []byte) *Scalar {
	s.v.SetByteSlice(b)
	return s
}

// Bytes renders the scalar as 32 big-endian bytes.
func (s *Scalar) Bytes() []byte {
	out := s.v.Bytes()
	return out[:]
}

// Random samples a uniform scalar using a cryptographic RNG.
func Random(rnd io.Reader) *Scalar {
	if rnd == nil {
		rnd = rand.Reader
	}
	var buf [NBytes]byte
	for {
		if _, err := io.ReadFull(rnd, buf[:]); err != nil {
			panic(err)
		}
		s := &Scalar{}
		overflow := s.v.SetByteSlice(buf[:])
		if !overflow && !s.v.IsZero() {
			return s
		}
	}
}

func (s *Scalar) Clone() *Scalar {
	out := &Scalar{}
	out.v.Set(&s.v)
	return out
}

// Add returns s+o mod n.
func (s *Scalar) Add(o *Scalar) *Scalar {
	out := &Scalar{}
	out.v.Add2(&s.v, &o.v)
	return out
}

// Sub returns s-o mod n.
func (s *Scalar) Sub(o *Scalar) *Scalar {
	neg := o.Neg()
	return s.Add(neg)
}

// Mul returns s*o mod n.
func (s *Scalar) Mul(o *Scalar) *Scalar {
	out := &Scalar{}
	out.v.Mul2(&s.v, &o.v)
	return out
}

// Sqr returns s*s mod n.
func (s *Scalar) Sqr() *Scalar {
	return s.Mul(s)
}

// Neg returns -s mod n.
func (s *Scalar) Neg() *Scalar {
	out := &Scalar{}
	out.v.Set(&s.v)
	out.v.Negate()
	return out
}

// Inv returns the modular inverse of s, computed with decred's variable-time
// inversion. Zero has no inverse; for the zero scalar Inv returns zero.
func (s *Scalar) Inv() *Scalar {
	out := &Scalar{}
	out.v.Set(&s.v)
	out.v.InverseNonConst()
	return out
}

// IsZero reports whether s == 0.
func (s *Scalar) IsZero() bool {
	return s.v.IsZero()
}

// Equal reports whether s == o.
func (s *Scalar) Equal(o *Scalar) bool {
	return s.v.Equals(&o.v)
}

// Bit returns bit i (0 = least significant) of s, read from its canonical
// big-endian encoding (bit 0 lives in the last byte).
func (s *Scalar) Bit(i int) bool {
	b := s.Bytes()
	byteIdx := NBytes - 1 - i/8
	return (b[byteIdx]>>uint(i%8))&1 == 1
}

// ConditionalSwap swaps a and b in place iff sel == 1, in constant time.
func ConditionalSwap(a, b *Scalar, sel int) {
	mask := -uint32(sel & 1)
	ab := a.Bytes()
	bb := b.Bytes()
	for i := range ab {
		t := mask & (uint32(ab[i]) ^ uint32(bb[i]))
		ab[i] ^= byte(t)
		bb[i] ^= byte(t)
	}
	a.SetBytes(ab)
	b.SetBytes(bb)
}

// Mux selects a if sel == 1 else b, in constant time.
func Mux(sel int, a, b *Scalar) *Scalar {
	mask := -uint32(sel & 1)
	ab := a.Bytes()
	bb := b.Bytes()
	out := make([]byte, NBytes)
	for i := range ab {
		out[i] = byte((uint32(ab[i]) & mask) | (uint32(bb[i]) & ^mask))
	}
	return NewScalar().SetBytes(out)
}

var zero = NewScalar()
var one = ScalarFromUint64(1)

// Zero returns the additive identity.
func Zero() *Scalar { return zero.Clone() }

// One returns the multiplicative identity.
func One() *Scalar { return one.Clone() }
