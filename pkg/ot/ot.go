// Package ot implements the base 1-of-2 oblivious transfer protocol used to
// bootstrap the OT-extension layer. A sender holds two messages; a receiver
// holds a choice bit and learns exactly one of the two, while the sender
// learns nothing about the choice. A commit-then-reveal consistency layer
// (SendVerifier/RecvVerifier) lets the two sides catch each other cheating
// after the fact, without either side being able to bias its own behavior
// based on the other's.
package ot

import (
	"io"

	"github.com/KimlikDAO/mpecdsa-sub000/pkg/curve"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/digest"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/mperr"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/zkpok"
)

// MsgSize is the length in bytes of a decoded OT message (a digest.Size hash
// output).
const MsgSize = digest.Size

// Sender holds the sender-side base OT key material: a secret scalar sk, its
// public point pk = sk*G, and pk_negsquared = -(sk^2)*G used to derive the
// unchosen branch's message.
type Sender struct {
	sk           *curve.Scalar
	pk           *curve.Point
	pkNegSquared *curve.Point
}

// NewSender samples a fresh sender keypair, publishes pk and a proof of
// knowledge of sk over send, and returns the sender state.
func NewSender(rnd io.Reader, send io.Writer) (*Sender, error) {
	sk := curve.Random(rnd)
	pk := curve.ScalarBaseMult(sk).Affine()

	pkBytes := pk.Bytes()
	if _, err := send.Write(pkBytes[:]); err != nil {
		return nil, mperr.WrapIO("ot.NewSender", err)
	}
	if err := zkpok.Prove(rnd, sk, pk).Send(send); err != nil {
		return nil, err
	}

	pkNegSquared := curve.ScalarBaseMult(sk.Sqr()).Neg().Affine()
	return &Sender{sk: sk, pk: pk, pkNegSquared: pkNegSquared}, nil
}

// Decode reads the receiver's choice-encoding point and returns the two hash
// outputs (msg0, msg1), exactly one of which the receiver can reproduce.
func (s *Sender) Decode(recv io.Reader) (msg0, msg1 [MsgSize]byte, err error) {
	var buf [64]byte
	if _, err := io.ReadFull(recv, buf[:]); err != nil {
		return msg0, msg1, mperr.WrapIO("ot.Sender.Decode", err)
	}
	gaSelect := curve.PointFromBytes(buf[:])

	m0 := curve.ScalarMult(gaSelect, s.sk).Affine()
	m1 := curve.Op(m0, s.pkNegSquared).Affine()

	m0Bytes := m0.Bytes()
	m1Bytes := m1.Bytes()
	msg0 = digest.Sum(m0Bytes[:])
	msg1 = digest.Sum(m1Bytes[:])
	return msg0, msg1, nil
}

// Recver holds the receiver-side base OT state: the sender's verified
// public key and its precomputed table.
type Recver struct {
	pk      *curve.Point
	pkTable *curve.Table
}

// NewRecver reads the sender's pk and proof of knowledge, rejecting with a
// Proof error if the proof fails to verify.
func NewRecver(recv io.Reader) (*Recver, error) {
	var buf [64]byte
	if _, err := io.ReadFull(recv, buf[:]); err != nil {
		return nil, mperr.WrapIO("ot.NewRecver", err)
	}
	pk := curve.PointFromBytes(buf[:])

	proof, err := zkpok.Recv(recv)
	if err != nil {
		return nil, err
	}
	if !proof.Verify(pk) {
		return nil, mperr.Prooff("ot.NewRecver", "proof of knowledge failed for base OT key (sender cheated)")
	}
	return &Recver{pk: pk, pkTable: curve.PrecompTable(pk)}, nil
}

// Choose picks one of the sender's two messages according to choiceBit and
// returns the resulting shared hash output. Both branches are computed
// unconditionally to avoid a timing channel on the choice bit.
func (r *Recver) Choose(rnd io.Reader, choiceBit bool, send io.Writer) ([MsgSize]byte, error) {
	a := curve.Random(rnd)
	gaChoice0 := curve.ScalarMultTable(curve.GeneratorTable(), a).Affine()
	gaChoice1 := curve.Op(gaChoice0, r.pk).Affine()
	pka := curve.ScalarMultTable(r.pkTable, a).Affine()

	chosen := gaChoice0
	if choiceBit {
		chosen = gaChoice1
	}
	chosenBytes := chosen.Bytes()
	if _, err := send.Write(chosenBytes[:]); err != nil {
		return [MsgSize]byte{}, mperr.WrapIO("ot.Recver.Choose", err)
	}

	pkaBytes := pka.Bytes()
	return digest.Sum(pkaBytes[:]), nil
}

// SendVerifier is built by the sender from both decoded messages and
// commits to them without revealing which was actually chosen; Open later
// proves honesty once the receiver has committed to its own view.
type SendVerifier struct {
	msg0Com [digest.Size]byte
	msg1Com [digest.Size]byte
	expChal [digest.Size]byte
}

// NewSendVerifier commits to msg0 and msg1 and writes a blinded challenge to
// send.
func NewSendVerifier(msg0, msg1 [MsgSize]byte, send io.Writer) (*SendVerifier, error) {
	s := &SendVerifier{
		msg0Com: digest.Sum(msg0[:]),
		msg1Com: digest.Sum(msg1[:]),
	}
	s.expChal = digest.Sum(s.msg0Com[:])
	comMsg := digest.Sum(s.msg1Com[:])
	for i := range comMsg {
		comMsg[i] ^= s.expChal[i]
	}
	if _, err := send.Write(comMsg[:]); err != nil {
		return nil, mperr.WrapIO("ot.NewSendVerifier", err)
	}
	return s, nil
}

// Open reads the receiver's challenge response and, if it matches the
// expected challenge, reveals both message commitments; otherwise it
// reports the receiver as cheating.
func (s *SendVerifier) Open(recv io.Reader, send io.Writer) error {
	var chalMsg [digest.Size]byte
	if _, err := io.ReadFull(recv, chalMsg[:]); err != nil {
		return mperr.WrapIO("ot.SendVerifier.Open", err)
	}
	if chalMsg != s.expChal {
		return mperr.Prooff("ot.SendVerifier.Open", "verification failed for base OT (receiver cheated)")
	}
	if _, err := send.Write(s.msg0Com[:]); err != nil {
		return mperr.WrapIO("ot.SendVerifier.Open", err)
	}
	if _, err := send.Write(s.msg1Com[:]); err != nil {
		return mperr.WrapIO("ot.SendVerifier.Open", err)
	}
	return nil
}

// RecvVerifier is built by the receiver from its chosen message and choice
// bit; it answers the sender's blinded challenge and later checks that the
// sender's revealed commitments are consistent with what it actually
// received.
type RecvVerifier struct {
	choiceBit       bool
	hashedChosenMsg [digest.Size]byte
	comMsg          [digest.Size]byte
}

// NewRecvVerifier answers the sender's challenge over send, deriving the
// reply from msg and choiceBit so the sender cannot distinguish honest
// replies from each other based on timing or content.
func NewRecvVerifier(msg [MsgSize]byte, choiceBit bool, recv io.Reader, send io.Writer) (*RecvVerifier, error) {
	s := &RecvVerifier{choiceBit: choiceBit, hashedChosenMsg: digest.Sum(msg[:])}
	chalMsg := digest.Sum(s.hashedChosenMsg[:])
	if _, err := io.ReadFull(recv, s.comMsg[:]); err != nil {
		return nil, mperr.WrapIO("ot.NewRecvVerifier", err)
	}
	if choiceBit {
		for i := range chalMsg {
			chalMsg[i] ^= s.comMsg[i]
		}
	}
	if _, err := send.Write(chalMsg[:]); err != nil {
		return nil, mperr.WrapIO("ot.NewRecvVerifier", err)
	}
	return s, nil
}

// Open reads the sender's revealed commitments and checks both that they're
// internally consistent with the earlier blinded challenge and that the
// chosen-branch commitment matches what the receiver actually got.
func (s *RecvVerifier) Open(recv io.Reader) error {
	var msg0Com, msg1Com [digest.Size]byte
	if _, err := io.ReadFull(recv, msg0Com[:]); err != nil {
		return mperr.WrapIO("ot.RecvVerifier.Open", err)
	}
	if _, err := io.ReadFull(recv, msg1Com[:]); err != nil {
		return mperr.WrapIO("ot.RecvVerifier.Open", err)
	}
	chosenMsgCom := msg0Com
	if s.choiceBit {
		chosenMsgCom = msg1Com
	}

	expComMsg := digest.Sum(msg0Com[:])
	for i := range expComMsg {
		s.comMsg[i] ^= expComMsg[i]
	}
	expComMsg = digest.Sum(msg1Com[:])

	if expComMsg == s.comMsg && chosenMsgCom == s.hashedChosenMsg {
		return nil
	}
	return mperr.Prooff("ot.RecvVerifier.Open", "verification failed for base OT (sender cheated)")
}

// SendBatch runs count independent base OTs as the sender, returning the
// (msg0, msg1) pair decoded for each, having verified the receiver's
// consistency proofs for every one.
func SendBatch(count int, rnd io.Reader, recv io.Reader, send io.Writer) ([][2][MsgSize]byte, error) {
	sender, err := NewSender(rnd, send)
	if err != nil {
		return nil, err
	}
	if err := flush(send); err != nil {
		return nil, err
	}

	msgs := make([][2][MsgSize]byte, count)
	verifiers := make([]*SendVerifier, count)
	for i := 0; i < count; i++ {
		m0, m1, err := sender.Decode(recv)
		if err != nil {
			return nil, err
		}
		v, err := NewSendVerifier(m0, m1, send)
		if err != nil {
			return nil, err
		}
		verifiers[i] = v
		msgs[i] = [2][MsgSize]byte{m0, m1}
	}
	if err := flush(send); err != nil {
		return nil, err
	}

	for i := 0; i < count; i++ {
		if err := verifiers[i].Open(recv, send); err != nil {
			return nil, err
		}
	}
	if err := flush(send); err != nil {
		return nil, err
	}
	return msgs, nil
}

// RecvBatch runs len(choiceBits) independent base OTs as the receiver,
// returning the chosen message for each.
func RecvBatch(choiceBits []bool, rnd io.Reader, recv io.Reader, send io.Writer) ([][MsgSize]byte, error) {
	recver, err := NewRecver(recv)
	if err != nil {
		return nil, err
	}

	msgs := make([][MsgSize]byte, len(choiceBits))
	for i, bit := range choiceBits {
		m, err := recver.Choose(rnd, bit, send)
		if err != nil {
			return nil, err
		}
		msgs[i] = m
	}
	if err := flush(send); err != nil {
		return nil, err
	}

	verifiers := make([]*RecvVerifier, len(choiceBits))
	for i, bit := range choiceBits {
		v, err := NewRecvVerifier(msgs[i], bit, recv, send)
		if err != nil {
			return nil, err
		}
		verifiers[i] = v
	}
	if err := flush(send); err != nil {
		return nil, err
	}

	for i := range choiceBits {
		if err := verifiers[i].Open(recv); err != nil {
			return nil, err
		}
	}
	return msgs, nil
}

type flusher interface {
	Flush() error
}

func flush(w io.Writer) error {
	if f, ok := w.(flusher); ok {
		return mperr.WrapIO("ot.flush", f.Flush())
	}
	return nil
}
