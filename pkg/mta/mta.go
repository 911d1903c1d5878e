// Package mta implements the Multiplicative-to-Additive conversion
// protocol: Alice holds a secret scalar α, Bob holds a secret scalar β, and
// the protocol leaves Alice with tA and Bob with tB such that
// tA + tB = α·β, without either side learning the other's secret. It is
// built directly on pkg/ote, gadget-decoding Bob's bit-encoded β through
// curve.GadgetTable.
//
// The bit encoding is blinded: Bob's choice bits carry β minus a random
// combination of public masking coefficients rather than β itself, and the
// trailing bit positions select which coefficients were folded in. The
// masking coefficients are derived by iterated hashing from a nonce Bob
// chooses at setup, so both sides compute identical decode weights without
// trusting each other's randomness for anything but uniqueness.
package mta

import (
	"io"

	"github.com/KimlikDAO/mpecdsa-sub000/pkg/curve"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/digest"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/mperr"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/ote"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/ro"
)

// decodeCoeffs builds the ote.EncodeLen per-row decode weights for a pair:
// curve.NBits gadget weights (2^0, 2^1, ...) followed by
// ote.EncodingSecParam masking coefficients hashed out of the pair's nonce.
func decodeCoeffs(nonce [curve.NBytes]byte) []*curve.Scalar {
	coeffs := make([]*curve.Scalar, ote.EncodeLen)
	for i := 0; i < curve.NBits; i++ {
		coeffs[i] = curve.GadgetTable[i]
	}
	cur := nonce
	for i := curve.NBits; i < ote.EncodeLen; i++ {
		cur = digest.Sum(cur[:])
		coeffs[i] = curve.NewScalar().SetBytes(cur[:])
	}
	return coeffs
}

// randCoeffs builds the shortened ote.REncodeLen decode vector the
// random-MtA variant uses: every position carries a public random
// coefficient from the same nonce, domain-separated from the masking
// vector by a label byte, because the receiver's multiplicand is defined
// by its random choice bits rather than gadget-encoded.
func randCoeffs(nonce [curve.NBytes]byte) []*curve.Scalar {
	buf := make([]byte, curve.NBytes+1)
	copy(buf, nonce[:])
	buf[curve.NBytes] = 'r'
	cur := digest.Sum(buf)
	coeffs := make([]*curve.Scalar, ote.REncodeLen)
	for i := range coeffs {
		coeffs[i] = curve.NewScalar().SetBytes(cur[:])
		cur = digest.Sum(cur[:])
	}
	return coeffs
}

// Alice is the MtA party supplying α.
type Alice struct {
	ote     *ote.Sender
	coeffs  []*curve.Scalar
	rcoeffs []*curve.Scalar
}

// NewAlice reads Bob's masking nonce and runs the base OT setup for Alice's
// side of the multiplier.
func NewAlice(rnd io.Reader, recv io.Reader, send io.Writer) (*Alice, error) {
	var nonce [curve.NBytes]byte
	if _, err := io.ReadFull(recv, nonce[:]); err != nil {
		return nil, mperr.WrapIO("mta.NewAlice", err)
	}
	s, err := ote.NewSender(rnd, recv, send)
	if err != nil {
		return nil, err
	}
	return &Alice{ote: s, coeffs: decodeCoeffs(nonce), rcoeffs: randCoeffs(nonce)}, nil
}

// Refresh rotates Alice's OT-extension seeds. The masking coefficients stay
// fixed for the pair's lifetime; only the PRG inputs rotate.
func (a *Alice) Refresh(fresh [curve.NBytes]byte) { a.ote.Refresh(fresh) }

// Mul runs one MtA instance with Alice supplying alpha, returning tA such
// that tA + tB = alpha*beta for whatever beta Bob supplied to the matching
// Bob.Mul call using the same extIndex/tag/checkTag.
func (a *Alice) Mul(alpha *curve.Scalar, extIndex uint64, tag, checkTag ro.Tag, rnd io.Reader, recv io.Reader, send io.Writer) (*curve.Scalar, error) {
	ext, err := a.ote.Extend(ote.EncodeLen, extIndex, recv)
	if err != nil {
		return nil, err
	}
	return a.ote.Transfer(ext, alpha, a.coeffs, tag, checkTag, rnd, send)
}

// RMul runs the random-MtA variant on the sender side: alpha is sampled
// internally and returned alongside Alice's share, over the shortened
// random encoding rather than the full gadget batch. Pairs with Bob.RMul.
func (a *Alice) RMul(extIndex uint64, tag, checkTag ro.Tag, rnd io.Reader, recv io.Reader, send io.Writer) (alpha, tA *curve.Scalar, err error) {
	alpha = curve.Random(rnd)
	ext, err := a.ote.Extend(ote.REncodeLen, extIndex, recv)
	if err != nil {
		return nil, nil, err
	}
	tA, err = a.ote.Transfer(ext, alpha, a.rcoeffs, tag, checkTag, rnd, send)
	return alpha, tA, err
}

// Bob is the MtA party supplying beta.
type Bob struct {
	ote     *ote.Recver
	coeffs  []*curve.Scalar
	rcoeffs []*curve.Scalar
}

// NewBob picks and sends the pair's masking nonce, then runs the base OT
// setup for Bob's side of the multiplier.
func NewBob(rnd io.Reader, recv io.Reader, send io.Writer) (*Bob, error) {
	var nonce [curve.NBytes]byte
	if _, err := io.ReadFull(rnd, nonce[:]); err != nil {
		return nil, mperr.WrapIO("mta.NewBob", err)
	}
	if _, err := send.Write(nonce[:]); err != nil {
		return nil, mperr.WrapIO("mta.NewBob", err)
	}
	if f, ok := send.(interface{ Flush() error }); ok {
		if err := f.Flush(); err != nil {
			return nil, mperr.WrapIO("mta.NewBob", err)
		}
	}
	r, err := ote.NewRecver(rnd, recv, send)
	if err != nil {
		return nil, err
	}
	return &Bob{ote: r, coeffs: decodeCoeffs(nonce), rcoeffs: randCoeffs(nonce)}, nil
}

// Refresh rotates Bob's OT-extension seeds.
func (b *Bob) Refresh(fresh [curve.NBytes]byte) { b.ote.Refresh(fresh) }

// encode blinds beta into choice bits: random selector bits pick masking
// coefficients, and the low positions carry the bits of beta minus the
// selected coefficients, so the wire-visible bit pattern is statistically
// independent of beta while the gadget decode still recovers it.
func (b *Bob) encode(beta *curve.Scalar, rnd io.Reader) ([]bool, error) {
	bits := make([]bool, ote.EncodeLen)
	var pad [ote.EncodingSecParam / 8]byte
	if _, err := io.ReadFull(rnd, pad[:]); err != nil {
		return nil, mperr.WrapIO("mta.Bob.encode", err)
	}
	masked := beta.Clone()
	for i := 0; i < ote.EncodingSecParam; i++ {
		set := (pad[i/8]>>uint(i%8))&1 == 1
		bits[curve.NBits+i] = set
		if set {
			masked = masked.Sub(b.coeffs[curve.NBits+i])
		}
	}
	for i := 0; i < curve.NBits; i++ {
		bits[i] = masked.Bit(i)
	}
	return bits, nil
}

// Mul runs one MtA instance with Bob supplying beta, returning tB.
func (b *Bob) Mul(beta *curve.Scalar, extIndex uint64, tag, checkTag ro.Tag, rnd io.Reader, recv io.Reader, send io.Writer) (*curve.Scalar, error) {
	bits, err := b.encode(beta, rnd)
	if err != nil {
		return nil, err
	}
	ext, err := b.ote.Extend(bits, extIndex, rnd, send)
	if err != nil {
		return nil, err
	}
	return b.ote.Transfer(ext, bits, b.coeffs, tag, checkTag, recv)
}

// RMul runs the random-MtA variant on the receiver side: beta is not
// chosen but defined as the random-bit combination of the shortened public
// coefficient vector, so no gadget encoding is needed and the batch drops
// to ote.REncodeLen rows. Pairs with Alice.RMul.
func (b *Bob) RMul(extIndex uint64, tag, checkTag ro.Tag, rnd io.Reader, recv io.Reader, send io.Writer) (beta, tB *curve.Scalar, err error) {
	bits := make([]bool, ote.REncodeLen)
	var buf [ote.REncodeLen / 8]byte
	if _, err := io.ReadFull(rnd, buf[:]); err != nil {
		return nil, nil, mperr.WrapIO("mta.Bob.RMul", err)
	}
	beta = curve.Zero()
	for i := range bits {
		bits[i] = (buf[i/8]>>uint(i%8))&1 == 1
		if bits[i] {
			beta = beta.Add(b.rcoeffs[i])
		}
	}
	ext, err := b.ote.Extend(bits, extIndex, rnd, send)
	if err != nil {
		return nil, nil, err
	}
	tB, err = b.ote.Transfer(ext, bits, b.rcoeffs, tag, checkTag, recv)
	return beta, tB, err
}
