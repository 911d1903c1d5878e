// Package ote implements correlated OT-extension (KOS-style): 256 base OTs
// are stretched into an arbitrarily long batch of extended OTs using a PRG
// and a single linear consistency check, then a per-bit masked transfer
// turns an extended batch into additive shares of a product. pkg/mta builds
// the MtA multiplier on top of this.
package ote

import (
	"encoding/binary"
	"io"

	"github.com/KimlikDAO/mpecdsa-sub000/pkg/curve"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/digest"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/mperr"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/ot"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/ro"
)

// baseOTCount is the number of base OTs the extension is built on, one per
// bit of the scalar field.
const baseOTCount = curve.NBits

// EncodingSecParam is the number of extra masking bit-positions appended to
// the NBits value bits of every encoded scalar, statistically hiding the
// bit pattern an encoded value takes on the wire.
const EncodingSecParam = 80

// StatSecParam is the number of extra rows consumed solely by the KOS
// linear consistency check; they never become part of an Extension's
// output rows.
const StatSecParam = 128

// EncodeLen is the length, in rows, of one MtA-sized extended-OT batch: the
// NBits value bits plus the EncodingSecParam masking bits.
const EncodeLen = curve.NBits + EncodingSecParam

// RandEncodeParam is the number of value positions in a random-MtA batch.
// The receiver's multiplicand is defined as the random-bit combination of
// public coefficients rather than a chosen value, so the encoding needs
// only statistical length instead of a full gadget row per scalar bit.
const RandEncodeParam = 160

// REncodeLen is the shortened batch length used by the random-MtA variant.
const REncodeLen = RandEncodeParam + EncodingSecParam

// ExtendLen is EncodeLen plus the statistical check overhead consumed
// during a full-encoding Extend; the random-MtA variant uses
// REncodeLen + StatSecParam instead.
const ExtendLen = EncodeLen + StatSecParam

func validEncodeLen(l int) bool {
	return l == EncodeLen || l == REncodeLen
}

// Sender is the OT-extension sender: internally the base-OT *receiver*,
// holding a single 256-bit correlation Δ and the 256 seeds it chose with
// it.
type Sender struct {
	delta     [curve.NBytes]byte
	deltaBits []bool
	seeds     [][ot.MsgSize]byte
}

// NewSender samples Δ and runs the base OT protocol as its receiver, using
// Δ's bits as the choice bits.
func NewSender(rnd io.Reader, recv io.Reader, send io.Writer) (*Sender, error) {
	deltaBits := make([]bool, baseOTCount)
	var deltaBuf [curve.NBytes]byte
	if _, err := io.ReadFull(rnd, deltaBuf[:]); err != nil {
		return nil, mperr.WrapIO("ote.NewSender", err)
	}
	for i := range deltaBits {
		deltaBits[i] = (deltaBuf[i/8]>>uint(i%8))&1 == 1
	}
	seeds, err := ot.RecvBatch(deltaBits, rnd, recv, send)
	if err != nil {
		return nil, err
	}
	return &Sender{delta: deltaBuf, deltaBits: deltaBits, seeds: seeds}, nil
}

// Refresh XORs fresh key material into every base seed, rotating the
// extension's PRG inputs without re-running the base OTs.
func (s *Sender) Refresh(fresh [curve.NBytes]byte) {
	for i := range s.seeds {
		for k := range s.seeds[i] {
			s.seeds[i][k] ^= fresh[k%len(fresh)]
		}
	}
}

// Recver is the OT-extension receiver: internally the base-OT *sender*,
// holding a (seed0, seed1) pair per base OT.
type Recver struct {
	seeds [][2][ot.MsgSize]byte
}

// NewRecver runs the base OT protocol as its sender.
func NewRecver(rnd io.Reader, recv io.Reader, send io.Writer) (*Recver, error) {
	seeds, err := ot.SendBatch(baseOTCount, rnd, recv, send)
	if err != nil {
		return nil, err
	}
	return &Recver{seeds: seeds}, nil
}

// Refresh XORs fresh key material into every base seed pair.
func (r *Recver) Refresh(fresh [curve.NBytes]byte) {
	for i := range r.seeds {
		for b := 0; b < 2; b++ {
			for k := range r.seeds[i][b] {
				r.seeds[i][b][k] ^= fresh[k%len(fresh)]
			}
		}
	}
}

// Extension is the output of a single extended batch: one row per choice
// bit (EncodeLen or REncodeLen rows), one 256-bit (digest.Size-byte) value per row, shared in structure by both
// sides (the sender's row j and the receiver's row j are bit-identical
// unless the receiver's chosen bit for position j was set, per the
// correlation property of the extension).
type Extension struct {
	Rows [][digest.Size]byte
}

func prgExpand(seed [ot.MsgSize]byte, extIndex uint64, nbytes int) []byte {
	out := make([]byte, 0, nbytes)
	var counter uint64
	for len(out) < nbytes {
		var block [ot.MsgSize + 16]byte
		copy(block[:], seed[:])
		binary.LittleEndian.PutUint64(block[ot.MsgSize:], extIndex)
		binary.LittleEndian.PutUint64(block[ot.MsgSize+8:], counter)
		h := digest.Sum(block[:])
		out = append(out, h[:]...)
		counter++
	}
	return out[:nbytes]
}

func packBits(bits []bool) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}

// transposeBits reorganizes an nrows x ncols bit matrix (rows given as
// byte slices, ncols/8 bytes each) into ncols rows of nrows bits.
func transposeBits(src [][]byte, nrows, ncols int) [][]byte {
	out := make([][]byte, ncols)
	for j := range out {
		out[j] = make([]byte, (nrows+7)/8)
	}
	for i := 0; i < nrows; i++ {
		row := src[i]
		for j := 0; j < ncols; j++ {
			if (row[j/8]>>uint(j%8))&1 == 1 {
				out[j][i/8] |= 1 << uint(i%8)
			}
		}
	}
	return out
}

func deriveRho(transcript []byte, n int) [][digest.Size]byte {
	seed := digest.Sum(transcript)
	out := make([][digest.Size]byte, n)
	for j := 0; j < n; j++ {
		var block [digest.Size + 8]byte
		copy(block[:], seed[:])
		binary.LittleEndian.PutUint64(block[digest.Size:], uint64(j))
		out[j] = digest.Sum(block[:])
	}
	return out
}

func xorInto(dst *[digest.Size]byte, a, b [digest.Size]byte) {
	for k := range dst {
		dst[k] = a[k] ^ b[k]
	}
}

func andInto(dst *[digest.Size]byte, a, b [digest.Size]byte) {
	for k := range dst {
		dst[k] = a[k] & b[k]
	}
}

// Extend runs the receiver side of one extended-OT batch. choiceBits must
// have length EncodeLen (full gadget encoding) or REncodeLen (random-MtA
// encoding); the trailing StatSecParam positions are filled with fresh
// randomness purely to drive the consistency check.
func (r *Recver) Extend(choiceBits []bool, extIndex uint64, rnd io.Reader, send io.Writer) (*Extension, error) {
	encodeLen := len(choiceBits)
	if !validEncodeLen(encodeLen) {
		return nil, mperr.Generalf("ote.Recver.Extend", "choiceBits must have length %d or %d, got %d", EncodeLen, REncodeLen, encodeLen)
	}
	extendLen := encodeLen + StatSecParam
	rowBytes := extendLen / 8
	full := make([]bool, extendLen)
	copy(full, choiceBits)
	var padBuf [StatSecParam / 8]byte
	if _, err := io.ReadFull(rnd, padBuf[:]); err != nil {
		return nil, mperr.WrapIO("ote.Recver.Extend", err)
	}
	for i := 0; i < StatSecParam; i++ {
		full[encodeLen+i] = (padBuf[i/8]>>uint(i%8))&1 == 1
	}
	choiceBytes := packBits(full)

	v0 := make([][]byte, baseOTCount)
	v1 := make([][]byte, baseOTCount)
	w := make([]byte, baseOTCount*rowBytes)
	for i := 0; i < baseOTCount; i++ {
		v0[i] = prgExpand(r.seeds[i][0], extIndex, rowBytes)
		v1[i] = prgExpand(r.seeds[i][1], extIndex, rowBytes)
		for k := 0; k < rowBytes; k++ {
			w[i*rowBytes+k] = v0[i][k] ^ v1[i][k] ^ choiceBytes[k]
		}
	}
	if _, err := send.Write(w); err != nil {
		return nil, mperr.WrapIO("ote.Recver.Extend", err)
	}

	transposed := transposeBits(v0, baseOTCount, extendLen)
	rho := deriveRho(w, extendLen)

	var sampledBits, sampledSeeds [digest.Size]byte
	for j := 0; j < extendLen; j++ {
		if full[j] {
			xorInto(&sampledBits, sampledBits, rho[j])
		}
		var masked [digest.Size]byte
		andInto(&masked, extend32(transposed[j]), rho[j])
		xorInto(&sampledSeeds, sampledSeeds, masked)
	}
	if _, err := send.Write(sampledBits[:]); err != nil {
		return nil, mperr.WrapIO("ote.Recver.Extend", err)
	}
	if _, err := send.Write(sampledSeeds[:]); err != nil {
		return nil, mperr.WrapIO("ote.Recver.Extend", err)
	}
	if err := flush(send); err != nil {
		return nil, err
	}

	rows := make([][digest.Size]byte, encodeLen)
	for j := 0; j < encodeLen; j++ {
		rows[j] = extend32(transposed[j])
	}
	return &Extension{Rows: rows}, nil
}

func extend32(b []byte) [digest.Size]byte {
	var out [digest.Size]byte
	copy(out[:], b)
	return out
}

// Extend runs the sender side of one extended-OT batch. encodeLen must
// match the receiver's choice-bit length: EncodeLen for a full gadget
// encoding, REncodeLen for the random-MtA variant.
func (s *Sender) Extend(encodeLen int, extIndex uint64, recv io.Reader) (*Extension, error) {
	if !validEncodeLen(encodeLen) {
		return nil, mperr.Generalf("ote.Sender.Extend", "encodeLen must be %d or %d, got %d", EncodeLen, REncodeLen, encodeLen)
	}
	extendLen := encodeLen + StatSecParam
	rowBytes := extendLen / 8
	u := make([][]byte, baseOTCount)
	for i := 0; i < baseOTCount; i++ {
		u[i] = prgExpand(s.seeds[i], extIndex, rowBytes)
	}

	w := make([]byte, baseOTCount*rowBytes)
	if _, err := io.ReadFull(recv, w); err != nil {
		return nil, mperr.WrapIO("ote.Sender.Extend", err)
	}

	t := make([][]byte, baseOTCount)
	for i := 0; i < baseOTCount; i++ {
		t[i] = make([]byte, rowBytes)
		copy(t[i], u[i])
		if s.deltaBits[i] {
			for k := 0; k < rowBytes; k++ {
				t[i][k] ^= w[i*rowBytes+k]
			}
		}
	}

	transposed := transposeBits(t, baseOTCount, extendLen)
	rho := deriveRho(w, extendLen)

	var sampledBits, sampledSeeds [digest.Size]byte
	if _, err := io.ReadFull(recv, sampledBits[:]); err != nil {
		return nil, mperr.WrapIO("ote.Sender.Extend", err)
	}
	if _, err := io.ReadFull(recv, sampledSeeds[:]); err != nil {
		return nil, mperr.WrapIO("ote.Sender.Extend", err)
	}

	var sampledCheck [digest.Size]byte
	for j := 0; j < extendLen; j++ {
		var masked [digest.Size]byte
		andInto(&masked, extend32(transposed[j]), rho[j])
		xorInto(&sampledCheck, sampledCheck, masked)
	}
	var deltaMaskedBits [digest.Size]byte
	andInto(&deltaMaskedBits, s.delta, sampledBits)
	var rhs [digest.Size]byte
	xorInto(&rhs, sampledSeeds, deltaMaskedBits)
	if sampledCheck != rhs {
		return nil, mperr.Prooff("ote.Sender.Extend", "OT-extension consistency check failed (receiver cheated)")
	}

	rows := make([][digest.Size]byte, encodeLen)
	for j := 0; j < encodeLen; j++ {
		rows[j] = extend32(transposed[j])
	}
	return &Extension{Rows: rows}, nil
}

func hashRowScalar(tag ro.Tag, j int, row []byte) *curve.Scalar {
	buf := make([]byte, ro.TagSize+8+digest.Size)
	copy(buf, tag[:])
	binary.LittleEndian.PutUint64(buf[ro.TagSize:], uint64(j))
	copy(buf[ro.TagSize+8:], row)
	h := digest.Sum(buf)
	return curve.NewScalar().SetBytes(h[:])
}

func coeffFromHash(data []byte) *curve.Scalar {
	h := digest.Sum(data)
	return curve.NewScalar().SetBytes(h[:])
}

func xorRow(a [digest.Size]byte, b [curve.NBytes]byte) [digest.Size]byte {
	var out [digest.Size]byte
	for k := range out {
		out[k] = a[k] ^ b[k]
	}
	return out
}

// Transfer runs the sender side of a consistency-preserving transfer: for
// every row it derives two hash outputs (h0 from the row, h1 from the row
// XORed with Δ), sends a correction that lets the receiver recover α−h0
// wherever its choice bit was set (−h0 elsewhere), and returns its own additive share of
// α times the value the receiver's choice bits gadget-decode to (using
// coeffs as the per-row weights). A second, independently-keyed transfer
// of a random checkAlpha runs alongside it purely to let the receiver
// detect a sender that used inconsistent corrections across rows.
func (s *Sender) Transfer(ext *Extension, alpha *curve.Scalar, coeffs []*curve.Scalar, tag, checkTag ro.Tag, rnd io.Reader, send io.Writer) (*curve.Scalar, error) {
	l := len(ext.Rows)
	if len(coeffs) != l {
		return nil, mperr.Generalf("ote.Sender.Transfer", "coeffs must have length %d, got %d", l, len(coeffs))
	}
	checkAlpha := curve.Random(rnd)

	corr := make([]byte, l*curve.NBytes)
	corrCheck := make([]byte, l*curve.NBytes)
	h0s := make([]*curve.Scalar, l)
	h0Checks := make([]*curve.Scalar, l)
	for j := 0; j < l; j++ {
		row := ext.Rows[j]
		rowXorDelta := xorRow(row, s.delta)

		h0 := hashRowScalar(tag, j, row[:])
		h1 := hashRowScalar(tag, j, rowXorDelta[:])
		c := h1.Sub(h0).Add(alpha)
		copy(corr[j*curve.NBytes:], c.Bytes())
		h0s[j] = h0

		h0c := hashRowScalar(checkTag, j, row[:])
		h1c := hashRowScalar(checkTag, j, rowXorDelta[:])
		cc := h1c.Sub(h0c).Add(checkAlpha)
		copy(corrCheck[j*curve.NBytes:], cc.Bytes())
		h0Checks[j] = h0c
	}
	if _, err := send.Write(corr); err != nil {
		return nil, mperr.WrapIO("ote.Sender.Transfer", err)
	}
	if _, err := send.Write(corrCheck); err != nil {
		return nil, mperr.WrapIO("ote.Sender.Transfer", err)
	}

	coef := coeffFromHash(corr)
	checkCoef := coeffFromHash(corrCheck)

	vec := make([]byte, l*curve.NBytes)
	for j := 0; j < l; j++ {
		vj := h0s[j].Mul(coef).Add(h0Checks[j].Mul(checkCoef)).Neg()
		copy(vec[j*curve.NBytes:], vj.Bytes())
	}
	reference := alpha.Mul(coef).Add(checkAlpha.Mul(checkCoef))
	if _, err := send.Write(vec); err != nil {
		return nil, mperr.WrapIO("ote.Sender.Transfer", err)
	}
	if _, err := send.Write(reference.Bytes()); err != nil {
		return nil, mperr.WrapIO("ote.Sender.Transfer", err)
	}
	if err := flush(send); err != nil {
		return nil, err
	}

	tA := curve.Zero()
	for j := 0; j < l; j++ {
		tA = tA.Add(h0s[j].Mul(coeffs[j]))
	}
	return tA, nil
}

// Transfer runs the receiver side of a consistency-preserving transfer.
// bits must be the same choice bits Extend was called with.
func (r *Recver) Transfer(ext *Extension, bits []bool, coeffs []*curve.Scalar, tag, checkTag ro.Tag, recv io.Reader) (*curve.Scalar, error) {
	l := len(ext.Rows)
	if len(coeffs) != l || len(bits) != l {
		return nil, mperr.Generalf("ote.Recver.Transfer", "bits and coeffs must have length %d", l)
	}

	corr := make([]byte, l*curve.NBytes)
	corrCheck := make([]byte, l*curve.NBytes)
	if _, err := io.ReadFull(recv, corr); err != nil {
		return nil, mperr.WrapIO("ote.Recver.Transfer", err)
	}
	if _, err := io.ReadFull(recv, corrCheck); err != nil {
		return nil, mperr.WrapIO("ote.Recver.Transfer", err)
	}
	coef := coeffFromHash(corr)
	checkCoef := coeffFromHash(corrCheck)

	vec := make([]byte, l*curve.NBytes)
	if _, err := io.ReadFull(recv, vec); err != nil {
		return nil, mperr.WrapIO("ote.Recver.Transfer", err)
	}
	var refBytes [curve.NBytes]byte
	if _, err := io.ReadFull(recv, refBytes[:]); err != nil {
		return nil, mperr.WrapIO("ote.Recver.Transfer", err)
	}
	reference := curve.NewScalar().SetBytes(refBytes[:])

	chosen := make([]*curve.Scalar, l)
	checkChosen := make([]*curve.Scalar, l)
	for j := 0; j < l; j++ {
		row := ext.Rows[j]
		h := hashRowScalar(tag, j, row[:]).Neg()
		hc := hashRowScalar(checkTag, j, row[:]).Neg()
		if bits[j] {
			cj := curve.NewScalar().SetBytes(corr[j*curve.NBytes : (j+1)*curve.NBytes])
			ccj := curve.NewScalar().SetBytes(corrCheck[j*curve.NBytes : (j+1)*curve.NBytes])
			h = h.Add(cj)
			hc = hc.Add(ccj)
		}
		chosen[j] = h
		checkChosen[j] = hc

		lhs := h.Mul(coef).Add(hc.Mul(checkCoef))
		rhs := curve.NewScalar().SetBytes(vec[j*curve.NBytes : (j+1)*curve.NBytes])
		if bits[j] {
			rhs = rhs.Add(reference)
		}
		if !lhs.Equal(rhs) {
			return nil, mperr.Prooff("ote.Recver.Transfer", "OT-mul verification failed (sender cheated)")
		}
	}

	tB := curve.Zero()
	for j := 0; j < l; j++ {
		tB = tB.Add(chosen[j].Mul(coeffs[j]))
	}
	return tB, nil
}

type flusher interface {
	Flush() error
}

func flush(w io.Writer) error {
	if f, ok := w.(flusher); ok {
		return mperr.WrapIO("ote.flush", f.Flush())
	}
	return nil
}
