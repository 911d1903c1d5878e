package threshold

import (
	"crypto/rand"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KimlikDAO/mpecdsa-sub000/pkg/curve"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/ecdsa"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/party"
)

type flushingWriter struct{ w *os.File }

func (f *flushingWriter) Write(p []byte) (int, error) { return f.w.Write(p) }
func (f *flushingWriter) Flush() error { return nil }

// pipeTransport is one party's Transport view over a fully connected mesh of
// pre-established os.Pipe pairs, one per counterparty, reused across every
// phase of setup and every subsequent signature.
type pipeTransport struct {
	recvs map[party.ID]*os.File
	sends map[party.ID]*flushingWriter
}

func (p *pipeTransport) PairConn(counterparty party.ID) (io.Reader, io.Writer) {
	return p.recvs[counterparty], p.sends[counterparty]
}

// buildMesh wires a fully connected mesh of n parties, returning one
// pipeTransport per party.
func buildMesh(t *testing.T, n int) []*pipeTransport {
	t.Helper()
	transports := make([]*pipeTransport, n)
	for i := range transports {
		transports[i] = &pipeTransport{
			recvs: make(map[party.ID]*os.File),
			sends: make(map[party.ID]*flushingWriter),
		}
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			iToJRecv, iToJSend, err := os.Pipe()
			require.NoError(t, err)
			jToIRecv, jToISend, err := os.Pipe()
			require.NoError(t, err)
			transports[j].recvs[party.ID(i)] = iToJRecv
			transports[i].sends[party.ID(j)] = &flushingWriter{iToJSend}
			transports[i].recvs[party.ID(j)] = jToIRecv
			transports[j].sends[party.ID(i)] = &flushingWriter{jToISend}
		}
	}
	return transports
}

func setupGroup(t *testing.T, n, threshold int) ([]*Signer, []*pipeTransport) {
	t.Helper()
	ids := party.Range(n)
	transports := buildMesh(t, n)

	type res struct {
		s   *Signer
		err error
	}
	chs := make([]chan res, n)
	for i := 0; i < n; i++ {
		chs[i] = make(chan res, 1)
		i := i
		go func() {
			s, err := Setup(party.ID(i), ids, threshold, rand.Reader, transports[i])
			chs[i] <- res{s, err}
		}()
	}

	signers := make([]*Signer, n)
	for i := 0; i < n; i++ {
		r := <-chs[i]
		require.NoError(t, r.err)
		signers[i] = r.s
	}
	for i := 1; i < n; i++ {
		require.True(t, signers[0].GroupPublicKey().Equal(signers[i].GroupPublicKey()))
	}
	return signers, transports
}

func TestTwoOfThreeSetupJointKey(t *testing.T) {
	signers, _ := setupGroup(t, 3, 2)
	require.False(t, signers[0].GroupPublicKey().Infinity)

	// Lagrange reconstruction of the joint secret from any two polynomial
	// points must land back on the group public key.
	subset := party.New(0, 1)
	sk := lagrangeCoeff(0, subset).Mul(signers[0].point).
		Add(lagrangeCoeff(1, subset).Mul(signers[1].point))
	require.True(t, curve.ScalarBaseMult(sk).Affine().Equal(signers[0].GroupPublicKey()))
}

func TestMulShareProductShares(t *testing.T) {
	signers, transports := setupGroup(t, 3, 2)

	factors := make([]*curve.Scalar, len(signers))
	want := curve.One()
	for i := range factors {
		factors[i] = curve.Random(rand.Reader)
		want = want.Mul(factors[i])
	}

	type res struct {
		share *curve.Scalar
		err   error
	}
	chs := make([]chan res, len(signers))
	for i, s := range signers {
		chs[i] = make(chan res, 1)
		i, s := i, s
		go func() {
			share, err := s.MulShare(factors[i], rand.Reader, transports[i])
			chs[i] <- res{share, err}
		}()
	}

	got := curve.Zero()
	for i := range signers {
		r := <-chs[i]
		require.NoError(t, r.err)
		got = got.Add(r.share)
	}
	require.True(t, got.Equal(want))
}

func TestTwoOfNSignRoundTrip(t *testing.T) {
	signers, transports := setupGroup(t, 3, 2)
	msgs := [][]byte{
		[]byte("etaoin shrdlu"),
		[]byte("Lorem ipsum dolor sit amet"),
		[]byte("The Quick Brown Fox Jumped Over The Lazy Dog"),
	}
	table := curve.PrecompTable(signers[0].GroupPublicKey())

	pairs := [][2]int{{0, 1}, {0, 2}, {1, 2}}
	for _, pair := range pairs {
		for _, msg := range msgs {
			a, b := pair[0], pair[1]

			type signRes struct {
				r, s *curve.Scalar
				err  error
			}
			chA := make(chan signRes, 1)
			chB := make(chan signRes, 1)
			go func() {
				r, s, err := signers[a].Sign(party.ID(b), msg, rand.Reader, transports[a])
				chA <- signRes{r, s, err}
			}()
			go func() {
				r, s, err := signers[b].Sign(party.ID(a), msg, rand.Reader, transports[b])
				chB <- signRes{r, s, err}
			}()
			resA := <-chA
			resB := <-chB
			require.NoError(t, resA.err)
			require.NoError(t, resB.err)

			var r, s *curve.Scalar
			if resA.r != nil {
				r, s = resA.r, resA.s
			} else {
				r, s = resB.r, resB.s
			}
			require.NotNil(t, r)
			require.True(t, ecdsa.VerifyWithTables(table, msg, r, s))
		}
	}
}
