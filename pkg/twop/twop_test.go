package twop

import (
	"crypto/rand"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KimlikDAO/mpecdsa-sub000/pkg/curve"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/ecdsa"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/mperr"
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
		a, err := SetupAlice(rand.Reader, aRecv, &flushingWriter{aSend})
		aCh <- aliceRes{a, err}
	}()
	go func() {
		b, err := SetupBob(rand.Reader, bRecv, &flushingWriter{bSend})
		bCh <- bobRes{b, err}
	}()
	ar := <-aCh
	br := <-bCh
	require.NoError(t, ar.err)
	require.NoError(t, br.err)
	require.True(t, ar.a.JointPublicKey().Equal(br.b.JointPublicKey()))
	return ar.a, br.b, aRecv, aSend, bRecv, bSend
}

func TestSetupAndSignRoundTrip(t *testing.T) {
	alice, bob, aRecv, aSend, bRecv, bSend := setupPair(t)

	// The joint key is the product key (skA*skB)*G.
	product := curve.ScalarMult(curve.ScalarBaseMult(bob.PrivateShare()), alice.PrivateShare()).Affine()
	require.True(t, product.Equal(alice.JointPublicKey()))

	msg := []byte("The Quick Brown Fox Jumped Over The Lazy Dog")

	type signErr struct{ err error }
	type signRes struct {
		r, s *curve.Scalar
		err  error
	}
	aCh := make(chan signErr, 1)
	bCh := make(chan signRes, 1)
	go func() {
		err := alice.Sign(msg, rand.Reader, aRecv, &flushingWriter{aSend})
		aCh <- signErr{err}
	}()
	go func() {
		r, s, err := bob.Sign(msg, rand.Reader, bRecv, &flushingWriter{bSend})
		bCh <- signRes{r, s, err}
	}()
	aRes := <-aCh
	bRes := <-bCh
	require.NoError(t, aRes.err)
	require.NoError(t, bRes.err)
	require.True(t, ecdsa.VerifyWithTables(curve.PrecompTable(bob.JointPublicKey()), msg, bRes.r, bRes.s))
}

// corruptingReader flips one bit of the byte at a fixed absolute stream
// offset, leaving everything else untouched.
type corruptingReader struct {
	r      *os.File
	offset int64
	seen   int64
}

func (c *corruptingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if idx := c.offset - c.seen; idx >= 0 && idx < int64(n) {
		p[idx] ^= 1
	}
	c.seen += int64(n)
	return n, err
}

func TestSetupRejectsTamperedCommitment(t *testing.T) {
	aRecv, bSend, bRecv, aSend := pipePair(t)

	// Alice runs normally but will stall once Bob aborts; she is abandoned.
	go func() {
		_, _ = SetupAlice(rand.Reader, aRecv, &flushingWriter{aSend})
	}()

	_, err := SetupBob(rand.Reader, &corruptingReader{r: bRecv}, &flushingWriter{bSend})
	require.Error(t, err)
	require.True(t, mperr.IsProof(err))
}

func TestSignRejectsAlteredMessage(t *testing.T) {
	alice, bob, aRecv, aSend, bRecv, bSend := setupPair(t)
	msg := []byte("etaoin shrdlu")
	aCh := make(chan error, 1)
	go func() { aCh <- alice.Sign(msg, rand.Reader, aRecv, &flushingWriter{aSend}) }()
	r, s, err := bob.Sign(msg, rand.Reader, bRecv, &flushingWriter{bSend})
	require.NoError(t, err)
	require.NoError(t, <-aCh)
	require.False(t, ecdsa.VerifyWithTables(curve.PrecompTable(bob.JointPublicKey()), append(msg, 'x'), r, s))
}

func TestVerifyRejectsDegenerateSignatures(t *testing.T) {
	_, bob, _, _, _, _ := setupPair(t)
	msg := []byte("Lorem ipsum dolor sit amet")
	zero := curve.Zero()
	one := curve.One()
	table := curve.PrecompTable(bob.JointPublicKey())
	require.False(t, ecdsa.VerifyWithTables(table, msg, zero, one))
	require.False(t, ecdsa.VerifyWithTables(curve.PrecompTable(curve.InfinityPoint()), msg, one, one))
}
