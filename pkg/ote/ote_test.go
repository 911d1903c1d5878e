package ote

import (
	"crypto/rand"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KimlikDAO/mpecdsa-sub000/pkg/curve"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/ro"
)

type flushingWriter struct{ w *os.File }

func (f *flushingWriter) Write(p []byte) (int, error) { return f.w.Write(p) }
func (f *flushingWriter) Flush() error { return nil }

func pipe(t *testing.T) (senderRecv, recverSend, recverRecv, senderSend *os.File) {
	t.Helper()
	a, b, err := os.Pipe()
	require.NoError(t, err)
	c, d, err := os.Pipe()
	require.NoError(t, err)
	return a, b, c, d
}

func setup(t *testing.T) (*Sender, *Recver) {
	t.Helper()
	senderRecv, recverSend, recverRecv, senderSend := pipe(t)

	type sres struct {
		s   *Sender
		err error
	}
	type rres struct {
		r   *Recver
		err error
	}
	sch := make(chan sres, 1)
	rch := make(chan rres, 1)

	go func() {
		s, err := NewSender(rand.Reader, senderRecv, &flushingWriter{senderSend})
		sch <- sres{s, err}
	}()
	go func() {
		r, err := NewRecver(rand.Reader, recverRecv, &flushingWriter{recverSend})
		rch <- rres{r, err}
	}()

	sr := <-sch
	rr := <-rch
	require.NoError(t, sr.err)
	require.NoError(t, rr.err)
	return sr.s, rr.r
}

func TestExtendAndTransferAdditiveShares(t *testing.T) {
	sender, recver := setup(t)

	senderRecv, recverSend, recverRecv, senderSend := pipe(t)

	alpha := curve.Random(rand.Reader)
	beta := curve.Random(rand.Reader)

	bits := make([]bool, EncodeLen)
	for i := 0; i < curve.NBits; i++ {
		bits[i] = beta.Bit(i)
	}
	for i := curve.NBits; i < EncodeLen; i++ {
		bits[i] = false
	}
	coeffs := make([]*curve.Scalar, EncodeLen)
	for i := 0; i < curve.NBits; i++ {
		coeffs[i] = curve.GadgetTable[i]
	}
	for i := curve.NBits; i < EncodeLen; i++ {
		coeffs[i] = curve.Zero()
	}

	var tag, checkTag ro.Tag
	tag[0] = 1
	checkTag[0] = 2

	type extRes struct {
		ext *Extension
		err error
	}
	sExtCh := make(chan extRes, 1)
	rExtCh := make(chan extRes, 1)
	go func() {
		ext, err := sender.Extend(EncodeLen, 7, senderRecv)
		sExtCh <- extRes{ext, err}
	}()
	go func() {
		ext, err := recver.Extend(bits, 7, rand.Reader, &flushingWriter{recverSend})
		rExtCh <- extRes{ext, err}
	}()
	sExt := <-sExtCh
	rExt := <-rExtCh
	require.NoError(t, sExt.err)
	require.NoError(t, rExt.err)

	type shareRes struct {
		v   *curve.Scalar
		err error
	}
	tACh := make(chan shareRes, 1)
	tBCh := make(chan shareRes, 1)
	go func() {
		tA, err := sender.Transfer(sExt.ext, alpha, coeffs, tag, checkTag, rand.Reader, &flushingWriter{senderSend})
		tACh <- shareRes{tA, err}
	}()
	go func() {
		tB, err := recver.Transfer(rExt.ext, bits, coeffs, tag, checkTag, recverRecv)
		tBCh <- shareRes{tB, err}
	}()
	tA := <-tACh
	tB := <-tBCh
	require.NoError(t, tA.err)
	require.NoError(t, tB.err)

	got := tA.v.Add(tB.v)
	want := alpha.Mul(beta)
	require.True(t, got.Equal(want))
}
