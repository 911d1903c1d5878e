package threshold_test

import (
	"crypto/rand"
	"io"
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/KimlikDAO/mpecdsa-sub000/pkg/curve"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/ecdsa"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/mperr"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/party"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/threshold"
)

func TestThreshold(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Threshold ECDSA Suite")
}

type suiteWriter struct{ w *os.File }

func (f *suiteWriter) Write(p []byte) (int, error) { return f.w.Write(p) }
func (f *suiteWriter) Flush() error { return nil }

type suiteTransport struct {
	recvs map[party.ID]io.Reader
	sends map[party.ID]io.Writer
}

func (s *suiteTransport) PairConn(counterparty party.ID) (io.Reader, io.Writer) {
	return s.recvs[counterparty], s.sends[counterparty]
}

func meshOf(n int) []*suiteTransport {
	transports := make([]*suiteTransport, n)
	for i := range transports {
		transports[i] = &suiteTransport{
			recvs: make(map[party.ID]io.Reader),
			sends: make(map[party.ID]io.Writer),
		}
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			iToJ, iSend, err := os.Pipe()
			Expect(err).NotTo(HaveOccurred())
			jToI, jSend, err := os.Pipe()
			Expect(err).NotTo(HaveOccurred())
			transports[j].recvs[party.ID(i)] = iToJ
			transports[i].sends[party.ID(j)] = &suiteWriter{iSend}
			transports[i].recvs[party.ID(j)] = jToI
			transports[j].sends[party.ID(i)] = &suiteWriter{jSend}
		}
	}
	return transports
}

func runSetup(n, t int, transports []*suiteTransport) []*threshold.Signer {
	ids := party.Range(n)
	type res struct {
		s   *threshold.Signer
		err error
	}
	chs := make([]chan res, n)
	for i := 0; i < n; i++ {
		chs[i] = make(chan res, 1)
		i := i
		go func() {
			s, err := threshold.Setup(party.ID(i), ids, t, rand.Reader, transports[i])
			chs[i] <- res{s, err}
		}()
	}
	signers := make([]*threshold.Signer, n)
	for i := 0; i < n; i++ {
		r := <-chs[i]
		Expect(r.err).NotTo(HaveOccurred())
		signers[i] = r.s
	}
	return signers
}

func runPairSign(a, b *threshold.Signer, msg []byte, ta, tb *suiteTransport) (r, s *curve.Scalar) {
	type res struct {
		r, s *curve.Scalar
		err  error
	}
	chA := make(chan res, 1)
	chB := make(chan res, 1)
	go func() {
		r, s, err := a.Sign(b.Self(), msg, rand.Reader, ta)
		chA <- res{r, s, err}
	}()
	go func() {
		r, s, err := b.Sign(a.Self(), msg, rand.Reader, tb)
		chB <- res{r, s, err}
	}()
	ra := <-chA
	rb := <-chB
	Expect(ra.err).NotTo(HaveOccurred())
	Expect(rb.err).NotTo(HaveOccurred())
	if ra.r != nil {
		return ra.r, ra.s
	}
	return rb.r, rb.s
}

var _ = Describe("t-of-N setup and 2-of-N signing", func() {
	var (
		transports []*suiteTransport
		signers    []*threshold.Signer
	)

	BeforeEach(func() {
		transports = meshOf(3)
		signers = runSetup(3, 2, transports)
	})

	It("records the same joint public key on every party", func() {
		for i := 1; i < len(signers); i++ {
			Expect(signers[i].GroupPublicKey().Equal(signers[0].GroupPublicKey())).To(BeTrue())
		}
	})

	It("produces verifying signatures for every pair and message", func() {
		msgs := [][]byte{
			[]byte("etaoin shrdlu"),
			[]byte("Lorem ipsum dolor sit amet"),
			[]byte("The Quick Brown Fox Jumped Over The Lazy Dog"),
		}
		table := curve.PrecompTable(signers[0].GroupPublicKey())
		for _, pair := range [][2]int{{0, 1}, {0, 2}, {1, 2}} {
			for _, msg := range msgs {
				r, s := runPairSign(signers[pair[0]], signers[pair[1]], msg,
					transports[pair[0]], transports[pair[1]])
				Expect(r).NotTo(BeNil())
				Expect(ecdsa.VerifyWithTables(table, msg, r, s)).To(BeTrue())
			}
		}
	})

	It("rejects degenerate signatures", func() {
		table := curve.PrecompTable(signers[0].GroupPublicKey())
		msg := []byte("etaoin shrdlu")
		Expect(ecdsa.VerifyWithTables(table, msg, curve.Zero(), curve.One())).To(BeFalse())
		Expect(ecdsa.VerifyWithTables(curve.PrecompTable(curve.InfinityPoint()), msg, curve.One(), curve.One())).To(BeFalse())
	})

	It("rejects an out-of-group counterparty with a general error", func() {
		_, _, err := signers[0].Sign(party.ID(7), []byte("m"), rand.Reader, transports[0])
		Expect(err).To(HaveOccurred())
		Expect(mperr.Is(err, mperr.General)).To(BeTrue())
	})
})

// tamperedReader flips one bit of the byte at a fixed absolute stream
// offset.
type tamperedReader struct {
	r      io.Reader
	offset int64
	seen   int64
}

func (c *tamperedReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if idx := c.offset - c.seen; idx >= 0 && idx < int64(n) {
		p[idx] ^= 1
	}
	c.seen += int64(n)
	return n, err
}

var _ = Describe("setup under an active attacker", func() {
	It("fails with a proof error when a pairwise transcript is tampered", func() {
		transports := meshOf(3)
		// Party 0 sees a corrupted stream from party 1. The first 32 bytes
		// on that stream are the (unauthenticated) tagger seed; the byte at
		// offset 32 is the first byte of party 1's public key share, whose
		// proof of knowledge then cannot verify.
		transports[0].recvs[1] = &tamperedReader{r: transports[0].recvs[1], offset: 32}

		ids := party.Range(3)
		errCh := make(chan error, 1)
		go func() {
			_, err := threshold.Setup(0, ids, 2, rand.Reader, transports[0])
			errCh <- err
		}()
		for i := 1; i < 3; i++ {
			i := i
			go func() {
				_, _ = threshold.Setup(party.ID(i), ids, 2, rand.Reader, transports[i])
			}()
		}
		err := <-errCh
		Expect(err).To(HaveOccurred())
		Expect(mperr.IsProof(err)).To(BeTrue())
	})
})
