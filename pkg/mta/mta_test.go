package mta

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

func pipePair(t *testing.T) (aRecv, bSend, bRecv, aSend *os.File) {
	t.Helper()
	a, b, err := os.Pipe()
	require.NoError(t, err)
	c, d, err := os.Pipe()
	require.NoError(t, err)
	return a, b, c, d
}

func setupPair(t *testing.T) (*Alice, *Bob, *os.File, *os.File, *os.File, *os.File) {
	t.Helper()
	aRecv, bSend, bRecv, aSend := pipePair(t)

	type aliceRes struct {
		a   *Alice
		err error
	}
	type bobRes struct {
		b   *Bob
		err error
	}
	aCh := make(chan aliceRes, 1)
	bCh := make(chan bobRes, 1)
	go func() {
		a, err := NewAlice(rand.Reader, aRecv, &flushingWriter{aSend})
		aCh <- aliceRes{a, err}
	}()
	go func() {
		b, err := NewBob(rand.Reader, bRecv, &flushingWriter{bSend})
		bCh <- bobRes{b, err}
	}()
	ar := <-aCh
	br := <-bCh
	require.NoError(t, ar.err)
	require.NoError(t, br.err)
	return ar.a, br.b, aRecv, aSend, bRecv, bSend
}

func TestMulRoundTrip(t *testing.T) {
	alice, bob, aRecv, aSend, bRecv, bSend := setupPair(t)

	alpha := curve.Random(rand.Reader)
	beta := curve.Random(rand.Reader)

	var tag, checkTag ro.Tag
	tag[0] = 9
	checkTag[0] = 10

	type shareRes struct {
		v   *curve.Scalar
		err error
	}
	tACh := make(chan shareRes, 1)
	tBCh := make(chan shareRes, 1)
	go func() {
		tA, err := alice.Mul(alpha, 3, tag, checkTag, rand.Reader, aRecv, &flushingWriter{aSend})
		tACh <- shareRes{tA, err}
	}()
	go func() {
		tB, err := bob.Mul(beta, 3, tag, checkTag, rand.Reader, bRecv, &flushingWriter{bSend})
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

func TestRMulRoundTrip(t *testing.T) {
	alice, bob, aRecv, aSend, bRecv, bSend := setupPair(t)

	var tag, checkTag ro.Tag
	tag[0] = 11
	checkTag[0] = 12

	type rmulRes struct {
		x, tau *curve.Scalar
		err    error
	}
	aCh := make(chan rmulRes, 1)
	bCh := make(chan rmulRes, 1)
	go func() {
		alpha, tA, err := alice.RMul(5, tag, checkTag, rand.Reader, aRecv, &flushingWriter{aSend})
		aCh <- rmulRes{alpha, tA, err}
	}()
	go func() {
		beta, tB, err := bob.RMul(5, tag, checkTag, rand.Reader, bRecv, &flushingWriter{bSend})
		bCh <- rmulRes{beta, tB, err}
	}()
	ar := <-aCh
	br := <-bCh
	require.NoError(t, ar.err)
	require.NoError(t, br.err)

	got := ar.tau.Add(br.tau)
	want := ar.x.Mul(br.x)
	require.True(t, got.Equal(want))
}

func TestRefreshKeepsSharesConsistent(t *testing.T) {
	alice, bob, aRecv, aSend, bRecv, bSend := setupPair(t)

	var fresh [curve.NBytes]byte
	_, err := rand.Read(fresh[:])
	require.NoError(t, err)
	alice.Refresh(fresh)
	bob.Refresh(fresh)

	alpha := curve.Random(rand.Reader)
	beta := curve.Random(rand.Reader)

	var tag, checkTag ro.Tag
	tag[0] = 13
	checkTag[0] = 14

	type shareRes struct {
		v   *curve.Scalar
		err error
	}
	tACh := make(chan shareRes, 1)
	tBCh := make(chan shareRes, 1)
	go func() {
		tA, err := alice.Mul(alpha, 9, tag, checkTag, rand.Reader, aRecv, &flushingWriter{aSend})
		tACh <- shareRes{tA, err}
	}()
	go func() {
		tB, err := bob.Mul(beta, 9, tag, checkTag, rand.Reader, bRecv, &flushingWriter{bSend})
		tBCh <- shareRes{tB, err}
	}()
	tA := <-tACh
	tB := <-tBCh
	require.NoError(t, tA.err)
	require.NoError(t, tB.err)
	require.True(t, tA.v.Add(tB.v).Equal(alpha.Mul(beta)))
}
