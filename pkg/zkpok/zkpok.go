// Package zkpok implements the Fiat-Shamir Schnorr proof of knowledge of a
// discrete logarithm used throughout setup: every party proves it knows the
// secret scalar behind a public point before that point is trusted.
package zkpok

import (
	"io"

	"github.com/KimlikDAO/mpecdsa-sub000/pkg/curve"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/digest"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/mperr"
)

// ProofSize is the wire length of a DL proof: a point followed by a scalar.
const ProofSize = curve.NBytes + 64

// Proof is a Fiat-Shamir Schnorr proof of knowledge of x such that gx = x*G.
type Proof struct {
	RandCommitment *curve.Point  // r*G
	Z              *curve.Scalar // r + challenge*x
}

func challengeFor(gx, randCommitment *curve.Point) *curve.Scalar {
	var buf [128]byte
	gxBytes := gx.Bytes()
	rcBytes := randCommitment.Bytes()
	copy(buf[0:64], gxBytes[:])
	copy(buf[64:128], rcBytes[:])
	h := digest.Sum(buf[:])
	return curve.NewScalar().SetBytes(h[:])
}

// Prove builds a proof that the caller knows x where gx = x*G.
func Prove(rnd io.Reader, x *curve.Scalar, gx *curve.Point) *Proof {
	randCommitted := curve.Random(rnd)
	randCommitment := curve.ScalarBaseMult(randCommitted).Affine()
	challenge := challengeFor(gx, randCommitment)
	z := randCommitted.Add(x.Mul(challenge))
	return &Proof{RandCommitment: randCommitment, Z: z}
}

// Bytes serializes the proof as randCommitment (64 bytes) || z (32 bytes):
// the commitment goes out before the response scalar.
func (p *Proof) Bytes() []byte {
	out := make([]byte, ProofSize)
	rc := p.RandCommitment.Bytes()
	copy(out[0:64], rc[:])
	copy(out[64:96], p.Z.Bytes())
	return out
}

// ProofFromBytes parses the wire encoding produced by Bytes.
func ProofFromBytes(b []byte) *Proof {
	return &Proof{
		RandCommitment: curve.PointFromBytes(b[0:64]),
		Z:              curve.NewScalar().SetBytes(b[64:96]),
	}
}

// Send writes the proof to w.
func (p *Proof) Send(w io.Writer) error {
	_, err := w.Write(p.Bytes())
	return mperr.WrapIO("zkpok.Proof.Send", err)
}

// Recv reads a proof from r.
func Recv(r io.Reader) (*Proof, error) {
	buf := make([]byte, ProofSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, mperr.WrapIO("zkpok.Recv", err)
	}
	return ProofFromBytes(buf), nil
}

// Verify checks that the proof demonstrates knowledge of the discrete log of
// gx, using the public (non-constant-time) table multiplication since gx,
// the proof, and the challenge are all public values.
func (p *Proof) Verify(gx *curve.Point) bool {
	challenge := challengeFor(gx, p.RandCommitment)
	lhs := curve.ScalarMultTable(curve.GeneratorTable(), p.Z).Affine()
	rhs := curve.Op(curve.ScalarMultTable(curve.PrecompTable(gx), challenge), p.RandCommitment).Affine()
	return lhs.Equal(rhs)
}

// ProveBase builds a proof that the caller knows x where gx = x*base, for an
// arbitrary base point instead of the generator. Used by the 2P and
// threshold signing protocols' nonce-agreement step, where the base is the
// counterparty's published nonce commitment rather than G. The commitment
// r*base is computed with the constant-time scalar multiplication; the
// response is plain scalar arithmetic.
func ProveBase(rnd io.Reader, x *curve.Scalar, base, gx *curve.Point) *Proof {
	randCommitted := curve.Random(rnd)
	randCommitment := curve.ScalarMult(base, randCommitted).Affine()
	challenge := challengeFor(gx, randCommitment)
	z := randCommitted.Add(x.Mul(challenge))
	return &Proof{RandCommitment: randCommitment, Z: z}
}

// VerifyBase checks a proof built by ProveBase against the same base point.
func (p *Proof) VerifyBase(base, gx *curve.Point) bool {
	challenge := challengeFor(gx, p.RandCommitment)
	lhs := curve.ScalarMult(base, p.Z).Affine()
	rhs := curve.Op(curve.ScalarMult(gx, challenge), p.RandCommitment).Affine()
	return lhs.Equal(rhs)
}

// ProveToCommitment builds a proof but returns only its hash commitment,
// deferring the proof itself until the returned reveal function is called — used by the
// commit-then-reveal setup handshake so neither side can bias its share
// after seeing the other's.
func ProveToCommitment(rnd io.Reader, x *curve.Scalar, gx *curve.Point) (commitment [32]byte, reveal func() *Proof) {
	p := Prove(rnd, x, gx)
	commitment = digest.Sum(p.Bytes())
	return commitment, func() *Proof { return p }
}

// VerifyWithCommitment checks a revealed proof both verifies as a DL proof
// of gx and matches the previously-received commitment.
func VerifyWithCommitment(gx *curve.Point, commitment [32]byte, p *Proof) bool {
	if !p.Verify(gx) {
		return false
	}
	return digest.Sum(p.Bytes()) == commitment
}

// SendCommitment writes a 32-byte commitment to w.
func SendCommitment(w io.Writer, commitment [32]byte) error {
	_, err := w.Write(commitment[:])
	return mperr.WrapIO("zkpok.SendCommitment", err)
}

// RecvCommitment reads a 32-byte commitment from r.
func RecvCommitment(r io.Reader) ([32]byte, error) {
	var commitment [32]byte
	if _, err := io.ReadFull(r, commitment[:]); err != nil {
		return commitment, mperr.WrapIO("zkpok.RecvCommitment", err)
	}
	return commitment, nil
}
