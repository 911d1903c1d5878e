// Package twop implements the dedicated 2-of-2 ECDSA signing protocol:
// two fixed roles, Alice and Bob, each hold a secret scalar share
// of an ECDSA key and jointly sign messages under the product public key
// pk = (skA*skB)*G without either ever learning the other's share.
//
// Setup runs a commit-then-reveal Schnorr handshake (Alice commits first,
// Bob replies in the clear, Alice opens against her earlier commitment) and
// establishes a single OT-extension instance with Alice as mta.Alice and Bob
// as mta.Bob. Sign runs two rounds: Bob publishes a nonce commitment and
// supplies his multiplicative shares to two MtAs; Alice derives her nonce
// non-malleably from Bob's commitment (so she cannot bias it after seeing
// the MtA outputs), supplies her own shares, and reveals a masked aggregate
// that only Bob's complementary share can unmask. Bob reconstructs s and
// verifies locally before returning; Alice returns without ever seeing s.
package twop

import (
	"io"

	"github.com/KimlikDAO/mpecdsa-sub000/pkg/curve"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/digest"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/ecdsa"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/mperr"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/mta"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/party"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/ro"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/zkpok"
)

// Per-signature tag indices drawn from one AllocateDyadicRange call, so
// Alice's and Bob's local dyadic counters stay in lockstep across repeated
// signatures; both sides use every index in the range.
const (
	kaTagIdx = iota
	mta1TagIdx
	mta1CheckTagIdx
	mta2TagIdx
	mta2CheckTagIdx
	gamma1TagIdx
	gamma2TagIdx
	signTagCount
)

// Alice is the setup-complete state for the Alice role.
type Alice struct {
	sk           *curve.Scalar
	pk           *curve.Point
	peerPk       *curve.Point
	jointPk      *curve.Point
	jointPkTable *curve.Table
	mta          *mta.Alice
	tagger       *ro.DyadicTagger
	sigCounter   uint64
}

// Bob is the setup-complete state for the Bob role.
type Bob struct {
	sk           *curve.Scalar
	pk           *curve.Point
	peerPk       *curve.Point
	jointPk      *curve.Point
	jointPkTable *curve.Table
	mta          *mta.Bob
	tagger       *ro.DyadicTagger
	sigCounter   uint64
}

// JointPublicKey returns the product public key signatures verify under.
func (a *Alice) JointPublicKey() *curve.Point { return a.jointPk }

// JointPublicKey returns the product public key signatures verify under.
func (b *Bob) JointPublicKey() *curve.Point { return b.jointPk }

// PrivateShare returns this party's own secret factor skA/skB, for the CLI's
// optional keyshare-at-rest persistence. Never sent on the wire.
func (a *Alice) PrivateShare() *curve.Scalar { return a.sk }

// PrivateShare returns this party's own secret factor skA/skB, for the CLI's
// optional keyshare-at-rest persistence. Never sent on the wire.
func (b *Bob) PrivateShare() *curve.Scalar { return b.sk }

// SetupAlice runs the Alice side of the setup handshake: commit to a
// Schnorr PoK of a fresh secret share, verify Bob's share, open the
// commitment, derive the joint public key, and establish the MtA multiplier.
func SetupAlice(rnd io.Reader, recv io.Reader, send io.Writer) (*Alice, error) {
	sk := curve.Random(rnd)
	pk := curve.ScalarBaseMult(sk).Affine()
	proof := zkpok.Prove(rnd, sk, pk)
	commitment := digest.Sum(proof.Bytes())
	if err := zkpok.SendCommitment(send, commitment); err != nil {
		return nil, err
	}
	if err := flush(send); err != nil {
		return nil, err
	}

	peerPk, err := recvPoint(recv)
	if err != nil {
		return nil, err
	}
	peerProof, err := zkpok.Recv(recv)
	if err != nil {
		return nil, err
	}
	if !peerProof.Verify(peerPk) {
		return nil, mperr.Prooff("twop.SetupAlice", "Bob's setup proof of knowledge failed to verify")
	}

	if err := sendPoint(send, pk); err != nil {
		return nil, err
	}
	if err := proof.Send(send); err != nil {
		return nil, err
	}
	if err := flush(send); err != nil {
		return nil, err
	}

	jointPk := curve.ScalarMult(peerPk, sk).Affine()

	tagger, err := dyadicTagger(party.ID(0), rnd, recv, send)
	if err != nil {
		return nil, err
	}
	m, err := mta.NewAlice(rnd, recv, send)
	if err != nil {
		return nil, err
	}

	return &Alice{
		sk: sk, pk: pk, peerPk: peerPk,
		jointPk: jointPk, jointPkTable: curve.PrecompTable(jointPk),
		mta: m, tagger: tagger,
	}, nil
}

// SetupBob runs the Bob side of the setup handshake, mirroring SetupAlice.
func SetupBob(rnd io.Reader, recv io.Reader, send io.Writer) (*Bob, error) {
	sk := curve.Random(rnd)
	pk := curve.ScalarBaseMult(sk).Affine()

	commitment, err := zkpok.RecvCommitment(recv)
	if err != nil {
		return nil, err
	}

	proof := zkpok.Prove(rnd, sk, pk)
	if err := sendPoint(send, pk); err != nil {
		return nil, err
	}
	if err := proof.Send(send); err != nil {
		return nil, err
	}
	if err := flush(send); err != nil {
		return nil, err
	}

	peerPk, err := recvPoint(recv)
	if err != nil {
		return nil, err
	}
	peerProof, err := zkpok.Recv(recv)
	if err != nil {
		return nil, err
	}
	if !zkpok.VerifyWithCommitment(peerPk, commitment, peerProof) {
		return nil, mperr.Prooff("twop.SetupBob", "Alice's opened setup proof failed to verify or match her commitment")
	}

	jointPk := curve.ScalarMult(peerPk, sk).Affine()

	tagger, err := dyadicTagger(party.ID(1), rnd, recv, send)
	if err != nil {
		return nil, err
	}
	m, err := mta.NewBob(rnd, recv, send)
	if err != nil {
		return nil, err
	}

	return &Bob{
		sk: sk, pk: pk, peerPk: peerPk,
		jointPk: jointPk, jointPkTable: curve.PrecompTable(jointPk),
		mta: m, tagger: tagger,
	}, nil
}

// dyadicTagger builds a two-party GroupTagger over the given streams and
// returns self's view scoped to the sole counterparty.
func dyadicTagger(self party.ID, rnd io.Reader, recv io.Reader, send io.Writer) (*ro.DyadicTagger, error) {
	other := party.ID(1) - self
	recvs := make([]io.Reader, 2)
	sends := make([]io.Writer, 2)
	recvs[other] = recv
	sends[other] = send
	g, err := ro.FromNetworkUnverified(self, rnd, recvs, sends)
	if err != nil {
		return nil, err
	}
	return g.DyadicView(other)
}

// Sign runs Bob's side of the signing protocol for msg against recv/send
// wired to the Alice this instance was set up with, returning the completed
// signature after a successful local verification.
func (b *Bob) Sign(msg []byte, rnd io.Reader, recv io.Reader, send io.Writer) (r, s *curve.Scalar, err error) {
	tags, err := nextTags(b.tagger.AllocateDyadicRange(signTagCount))
	if err != nil {
		return nil, nil, err
	}
	extBase := b.sigCounter * 2
	b.sigCounter++

	kB := curve.Random(rnd)
	DB := curve.ScalarBaseMult(kB).Affine()
	if err := sendPoint(send, DB); err != nil {
		return nil, nil, err
	}
	if err := flush(send); err != nil {
		return nil, nil, err
	}

	kBInv := kB.Inv()
	beta1 := kBInv
	beta2 := b.sk.Mul(kBInv)

	t1B, err := b.mta.Mul(beta1, extBase, tags[mta1TagIdx], tags[mta1CheckTagIdx], rnd, recv, send)
	if err != nil {
		return nil, nil, err
	}
	t2B, err := b.mta.Mul(beta2, extBase+1, tags[mta2TagIdx], tags[mta2CheckTagIdx], rnd, recv, send)
	if err != nil {
		return nil, nil, err
	}

	DprimeA, err := recvPoint(recv)
	if err != nil {
		return nil, nil, err
	}
	proof, err := zkpok.Recv(recv)
	if err != nil {
		return nil, nil, err
	}

	h := taggedHashScalar(tags[kaTagIdx], pointBytes(DprimeA))
	R := curve.Op(DprimeA, curve.ScalarMult(DB, h)).Affine()
	if !proof.VerifyBase(DB, R) {
		return nil, nil, mperr.Prooff("twop.Bob.Sign", "Alice's nonce proof of knowledge failed to verify")
	}
	r = curve.NewScalar().SetBytes(R.X.Bytes())

	var maskedPi [curve.NBytes]byte
	if _, err := io.ReadFull(recv, maskedPi[:]); err != nil {
		return nil, nil, mperr.WrapIO("twop.Bob.Sign", err)
	}
	gamma1 := curve.ScalarMult(R, t1B).Affine()
	mask1 := taggedHash(tags[gamma1TagIdx], pointBytes(gamma1))
	var piBytes [curve.NBytes]byte
	for i := range piBytes {
		piBytes[i] = maskedPi[i] ^ mask1[i]
	}
	pi := curve.NewScalar().SetBytes(piBytes[:])
	t1BAdj := t1B.Sub(pi.Mul(kBInv))

	var maskedMa [curve.NBytes]byte
	if _, err := io.ReadFull(recv, maskedMa[:]); err != nil {
		return nil, nil, mperr.WrapIO("twop.Bob.Sign", err)
	}
	gamma2 := curve.Op(curve.ScalarBaseMult(t2B), curve.ScalarMult(b.jointPk, t1BAdj.Neg())).Affine()
	mask2 := taggedHash(tags[gamma2TagIdx], pointBytes(gamma2))
	var maBytes [curve.NBytes]byte
	for i := range maBytes {
		maBytes[i] = maskedMa[i] ^ mask2[i]
	}
	ma := curve.NewScalar().SetBytes(maBytes[:])

	z := ecdsa.HashToScalar(msg)
	mb := t1BAdj.Mul(z).Add(t2B.Mul(r))
	s = ma.Add(mb)

	if !ecdsa.VerifyWithTables(b.jointPkTable, msg, r, s) {
		return nil, nil, mperr.Prooff("twop.Bob.Sign", "reconstructed signature failed local ECDSA verification")
	}
	return r, s, nil
}

// Sign runs Alice's side of the signing protocol. She returns without error
// (and without a signature) once her part of the protocol completes; the
// completed signature is only ever assembled on Bob's side.
func (a *Alice) Sign(msg []byte, rnd io.Reader, recv io.Reader, send io.Writer) error {
	tags, err := nextTags(a.tagger.AllocateDyadicRange(signTagCount))
	if err != nil {
		return err
	}
	extBase := a.sigCounter * 2
	a.sigCounter++

	DB, err := recvPoint(recv)
	if err != nil {
		return err
	}

	kPrimeA := curve.Random(rnd)
	pi := curve.Random(rnd)

	DprimeA := curve.ScalarMult(DB, kPrimeA).Affine()
	h := taggedHashScalar(tags[kaTagIdx], pointBytes(DprimeA))
	kA := kPrimeA.Add(h)
	R := curve.ScalarMult(DB, kA).Affine()
	r := curve.NewScalar().SetBytes(R.X.Bytes())

	alpha1 := kA.Inv().Add(pi)
	alpha2 := a.sk.Mul(kA.Inv())

	t1A, err := a.mta.Mul(alpha1, extBase, tags[mta1TagIdx], tags[mta1CheckTagIdx], rnd, recv, send)
	if err != nil {
		return err
	}
	t2A, err := a.mta.Mul(alpha2, extBase+1, tags[mta2TagIdx], tags[mta2CheckTagIdx], rnd, recv, send)
	if err != nil {
		return err
	}

	proof := zkpok.ProveBase(rnd, kA, DB, R)

	if err := sendPoint(send, DprimeA); err != nil {
		return err
	}
	if err := proof.Send(send); err != nil {
		return err
	}
	if err := flush(send); err != nil {
		return err
	}

	gamma1 := curve.Op(
		curve.Op(curve.ScalarMult(R, t1A.Neg()), curve.ScalarMult(curve.Generator(), pi.Mul(kA))),
		curve.Generator(),
	).Affine()
	mask1 := taggedHash(tags[gamma1TagIdx], pointBytes(gamma1))
	piBytes := pi.Bytes()
	var maskedPi [curve.NBytes]byte
	for i := range maskedPi {
		maskedPi[i] = piBytes[i] ^ mask1[i]
	}
	if _, err := send.Write(maskedPi[:]); err != nil {
		return mperr.WrapIO("twop.Alice.Sign", err)
	}
	if err := flush(send); err != nil {
		return err
	}

	z := ecdsa.HashToScalar(msg)
	ma := t1A.Mul(z).Add(t2A.Mul(r))
	gamma2 := curve.Op(curve.ScalarMult(a.jointPk, t1A), curve.ScalarMult(curve.Generator(), t2A.Neg())).Affine()
	mask2 := taggedHash(tags[gamma2TagIdx], pointBytes(gamma2))
	maBytes := ma.Bytes()
	var maskedMa [curve.NBytes]byte
	for i := range maskedMa {
		maskedMa[i] = maBytes[i] ^ mask2[i]
	}
	if _, err := send.Write(maskedMa[:]); err != nil {
		return mperr.WrapIO("twop.Alice.Sign", err)
	}
	return flush(send)
}

func pointBytes(p *curve.Point) []byte {
	b := p.Bytes()
	return b[:]
}

func taggedHash(tag ro.Tag, parts ...[]byte) [digest.Size]byte {
	n := ro.TagSize
	for _, p := range parts {
		n += len(p)
	}
	buf := make([]byte, 0, n)
	buf = append(buf, tag[:]...)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return digest.Sum(buf)
}

func taggedHashScalar(tag ro.Tag, parts ...[]byte) *curve.Scalar {
	h := taggedHash(tag, parts...)
	return curve.NewScalar().SetBytes(h[:])
}

func sendPoint(w io.Writer, p *curve.Point) error {
	b := p.Bytes()
	_, err := w.Write(b[:])
	return mperr.WrapIO("twop.sendPoint", err)
}

func recvPoint(r io.Reader) (*curve.Point, error) {
	var buf [64]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, mperr.WrapIO("twop.recvPoint", err)
	}
	return curve.PointFromBytes(buf[:]), nil
}

func nextTags(r *ro.TagRange) ([]ro.Tag, error) {
	out := make([]ro.Tag, signTagCount)
	for i := range out {
		t, err := r.Next()
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

type flusher interface{ Flush() error }

func flush(w io.Writer) error {
	if f, ok := w.(flusher); ok {
		return mperr.WrapIO("twop.flush", f.Flush())
	}
	return nil
}
