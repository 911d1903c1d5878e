package curve

// Point is a secp256k1 group element in Jacobian coordinates (X, Y, Z),
// representing the affine point (X/Z^2, Y/Z^3). Infinity is tracked with an
// explicit flag rather than a sentinel encoding.
type Point struct {
	X, Y, Z  *Field
	Infinity bool
}

var (
	genX = FieldFromBytes(hexBytes("79BE667EF9DCBBAC55A06295CE870B07029BFCDB2DCE28D959F2815B16F81798"))
	genY = FieldFromBytes(hexBytes("483ADA7726A3C4655DA4FBFC0E1108A8FD17B448A68554199C47D08FFB10D4B8"))
)

func hexBytes(s string) []byte {
	out := make([]byte, len(s)/2)
	for i := 0; i < len(out); i++ {
		out[i] = hexNibble(s[2*i])<<4 | hexNibble(s[2*i+1])
	}
	return out
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	}
	return 0
}

// Generator returns the standard secp256k1 base point G.
func Generator() *Point {
	return &Point{X: genX.Clone(), Y: genY.Clone(), Z: FieldFromBytes([]byte{1}), Infinity: false}
}

// InfinityPoint returns the point at infinity.
func InfinityPoint() *Point {
	return &Point{X: NewField(), Y: NewField(), Z: NewField(), Infinity: true}
}

// Dbl returns 2*p using the standard a=0 Jacobian doubling formulas. The
// body runs unconditionally and the infinity flag is carried over, so
// doubling never branches on whether p is the identity.
func (p *Point) Dbl() *Point {
	out := p.dblBody()
	out.Infinity = p.Infinity
	return out
}

func (p *Point) dblBody() *Point {
	// a = X^2, b = Y^2, c = b^2
	a := p.X.Sqr()
	b := p.Y.Sqr()
	c := b.Sqr()
	// d = 2*((X+b)^2 - a - c), normalized to keep the magnitude low enough
	// for the multiplications below
	xb := p.X.Add(b)
	d := xb.Sqr().Sub(a).Sub(c)
	d = d.Add(d).Normalize()
	// e = 3*a, f = e^2
	e := a.Add(a).Add(a)
	f := e.Sqr()
	// X3 = f - 2*d
	x3 := f.Sub(d).Sub(d)
	// Y3 = e*(d-X3) - 8*c
	eightC := c.Add(c)
	eightC = eightC.Add(eightC)
	eightC = eightC.Add(eightC)
	y3 := e.Mul(d.Sub(x3)).Sub(eightC)
	// Z3 = 2*Y*Z
	z3 := p.Y.Mul(p.Z)
	z3 = z3.Add(z3)
	return &Point{X: x3, Y: y3, Z: z3}
}

// Neg returns -p.
func (p *Point) Neg() *Point {
	if p.Infinity {
		return InfinityPoint()
	}
	return &Point{X: p.X.Clone(), Y: p.Y.Neg(), Z: p.Z.Clone()}
}

// Op is the unified group addition. The Montgomery ladder calls it on
// secret-dependent accumulators, so the degenerate cases of the general
// formula (coinciding operands, mirror operands, either operand at
// infinity) are folded in with constant-time selection rather than
// data-dependent branches: the doubling candidate is always computed and a
// mux picks the right result at the end.
func Op(a, b *Point) *Point {
	z1z1 := a.Z.Sqr()
	z2z2 := b.Z.Sqr()
	u1 := a.X.Mul(z2z2)
	u2 := b.X.Mul(z1z1)
	s1 := a.Y.Mul(b.Z).Mul(z2z2)
	s2 := b.Y.Mul(a.Z).Mul(z1z1)

	h := u2.Sub(u1)
	i := h.Add(h).Sqr()
	j := h.Mul(i)
	r := s2.Sub(s1)
	r = r.Add(r)
	v := u1.Mul(i)

	x3 := r.Sqr().Sub(j).Sub(v).Sub(v)
	y3 := r.Mul(v.Sub(x3)).Sub(s1.Mul(j).Add(s1.Mul(j)))
	z3 := a.Z.Add(b.Z).Sqr().Sub(z1z1).Sub(z2z2).Mul(h)
	out := &Point{X: x3, Y: y3, Z: z3}

	// h == 0 means the affine x coordinates coincide: same point if the y
	// coordinates agree too (r == 0), mirror points otherwise.
	xEq := h.IsZeroBit()
	yEq := r.IsZeroBit()
	out = pointMux(xEq&yEq, a.dblBody(), out)
	cancel := xEq & (1 - yEq)
	out.Infinity = (b2i(out.Infinity)|cancel) == 1

	out = pointMux(b2i(b.Infinity), a, out)
	out = pointMux(b2i(a.Infinity), b, out)
	return out
}

func b2i(b bool) int {
	var v int
	if b {
		v = 1
	}
	return v
}

// pointMux selects a if sel == 1 and b otherwise, choosing each coordinate
// and the infinity flag in constant time.
func pointMux(sel int, a, b *Point) *Point {
	s := sel & 1
	out := &Point{
		X: FieldMux(s, a.X, b.X),
		Y: FieldMux(s, a.Y, b.Y),
		Z: FieldMux(s, a.Z, b.Z),
	}
	out.Infinity = (s&b2i(a.Infinity))|((1-s)&b2i(b.Infinity)) == 1
	return out
}

func (p *Point) cloneP() *Point {
	return &Point{X: p.X.Clone(), Y: p.Y.Clone(), Z: p.Z.Clone(), Infinity: p.Infinity}
}

// Affine normalizes p into the canonical (x, y, 1) representation required
// before serialization or equality checks.
func (p *Point) Affine() *Point {
	if p.Infinity {
		return InfinityPoint()
	}
	zInv := p.Z.Inv()
	zInv2 := zInv.Sqr()
	zInv3 := zInv2.Mul(zInv)
	x := p.X.Mul(zInv2).Normalize()
	y := p.Y.Mul(zInv3).Normalize()
	return &Point{X: x, Y: y, Z: FieldFromBytes([]byte{1}), Infinity: false}
}

// Bytes serializes an affine point as the 64-byte concatenation of its
// normalized (x, y) coordinates.
func (p *Point) Bytes() [64]byte {
	a := p.Affine()
	var out [64]byte
	xb := a.X.Bytes()
	yb := a.Y.Bytes()
	copy(out[0:32], xb)
	copy(out[32:64], yb)
	return out
}

// PointFromBytes parses the 64-byte affine encoding produced by Bytes.
func PointFromBytes(b []byte) *Point {
	return &Point{
		X:        FieldFromBytes(b[0:32]),
		Y:        FieldFromBytes(b[32:64]),
		Z:        FieldFromBytes([]byte{1}),
		Infinity: false,
	}
}

// Equal compares two points after normalizing both to affine form.
func (p *Point) Equal(o *Point) bool {
	if p.Infinity != o.Infinity {
		return false
	}
	if p.Infinity {
		return true
	}
	a := p.Affine()
	b := o.Affine()
	return a.X.Equal(b.X) && a.Y.Equal(b.Y)
}

// ScalarMult computes k*p in constant time via a Montgomery ladder using
// field-level conditional swaps; every field operation on the secret path
// routes through the swap and mux primitives rather than a data-dependent
// branch, and the key bits are extracted arithmetically.
func ScalarMult(p *Point, k *Scalar) *Point {
	kb := k.Bytes()
	r0 := InfinityPoint()
	r1 := p.cloneP()
	var prevBit int
	for i := NBits - 1; i >= 0; i-- {
		bit := int(kb[NBytes-1-i/8]>>(uint(i)%8)) & 1
		pointConditionalSwap(r0, r1, bit^prevBit)
		sum := Op(r0, r1)
		dbl := r0.Dbl()
		r0, r1 = dbl, sum
		prevBit = bit
	}
	pointConditionalSwap(r0, r1, prevBit)
	return r0
}

// pointConditionalSwap swaps a and b in place iff sel == 1, in constant
// time, by swapping their field-element contents and recombining the
// infinity flags with masks.
func pointConditionalSwap(a, b *Point, sel int) {
	FieldConditionalSwap(a.X, b.X, sel)
	FieldConditionalSwap(a.Y, b.Y, sel)
	FieldConditionalSwap(a.Z, b.Z, sel)
	s := sel & 1
	ai, bi := b2i(a.Infinity), b2i(b.Infinity)
	a.Infinity = (s&bi)|((1-s)&ai) == 1
	b.Infinity = (s&ai)|((1-s)&bi) == 1
}

// ScalarBaseMult computes k*G.
func ScalarBaseMult(k *Scalar) *Point {
	return ScalarMult(Generator(), k)
}
