// Package ecdsa implements plain (non-threshold) ECDSA sign and verify over
// secp256k1 on top of pkg/curve, used both as the final verification check
// after a distributed signing protocol completes and by the CLI's sanity
// self-test path.
package ecdsa

import (
	"crypto/sha256"
	"io"

	"github.com/KimlikDAO/mpecdsa-sub000/pkg/curve"
)

// HashToScalar reduces a SHA-256 digest of msg into a scalar. Exported so
// the signing protocols (pkg/twop, pkg/threshold) can derive the same
// z = H(m) the final local verification checks against.
func HashToScalar(msg []byte) *curve.Scalar {
	h := sha256.Sum256(msg)
	return curve.NewScalar().SetBytes(h[:])
}

func hashToScalar(msg []byte) *curve.Scalar { return HashToScalar(msg) }

// Keygen samples a fresh secret scalar and its public point, for use outside
// the threshold setting (tests, benchmarks).
func Keygen(rnd io.Reader) (sk *curve.Scalar, pk *curve.Point) {
	sk = curve.Random(rnd)
	pk = curve.ScalarBaseMult(sk)
	return sk, pk
}

// Sign produces a textbook ECDSA signature (r, s) over msg under sk. Not used
// on the threshold signing path (the protocol reconstructs r/s jointly); this
// exists to self-check the keygen/verify plumbing and for single-party tests.
func Sign(rnd io.Reader, sk *curve.Scalar, msg []byte) (r, s *curve.Scalar) {
	z := hashToScalar(msg)
	for {
		k := curve.Random(rnd)
		R := curve.ScalarBaseMult(k).Affine()
		r = curve.NewScalar().SetBytes(R.X.Bytes())
		if r.IsZero() {
			continue
		}
		kInv := k.Inv()
		s = kInv.Mul(z.Add(r.Mul(sk)))
		if s.IsZero() {
			continue
		}
		return r, s
	}
}

// Verify checks a signature against the public key pk by building a fresh
// precomputed table for pk and calling VerifyWithTables; callers verifying
// repeatedly under one key can build the table once and call
// VerifyWithTables directly.
func Verify(pk *curve.Point, msg []byte, r, s *curve.Scalar) bool {
	return VerifyWithTables(curve.PrecompTable(pk), msg, r, s)
}

// VerifyWithTables checks a signature using a precomputed table for the
// public key: reject r == 0 or s == 0, compute w = s^-1, u1 = z*w,
// u2 = r*w, and check that (u1*G + u2*pk).x == r.
func VerifyWithTables(pkTable *curve.Table, msg []byte, r, s *curve.Scalar) bool {
	if r.IsZero() || s.IsZero() {
		return false
	}
	z := hashToScalar(msg)
	w := s.Inv()
	u1 := z.Mul(w)
	u2 := r.Mul(w)
	p := curve.Op(
		curve.ScalarMultTable(curve.GeneratorTable(), u1),
		curve.ScalarMultTable(pkTable, u2),
	).Affine()
	if p.Infinity {
		return false
	}
	x := curve.NewScalar().SetBytes(p.X.Bytes())
	return x.Equal(r)
}
