package main

import (
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/KimlikDAO/mpecdsa-sub000/pkg/curve"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/ecdsa"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/party"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/threshold"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/twop"
)

// pipeWriter gives an os.Pipe the Flush method the protocol's phase
// boundaries call; pipes are unbuffered on the write side so it is a no-op.
type pipeWriter struct{ w *os.File }

func (p *pipeWriter) Write(b []byte) (int, error) { return p.w.Write(b) }
func (p *pipeWriter) Flush() error { return nil }

// pipeTransport is one party's view of an in-process full mesh.
type pipeTransport struct {
	recvs map[party.ID]io.Reader
	sends map[party.ID]io.Writer
}

func (p *pipeTransport) PairConn(counterparty party.ID) (io.Reader, io.Writer) {
	return p.recvs[counterparty], p.sends[counterparty]
}

func pipeMesh(n int) ([]*pipeTransport, error) {
	transports := make([]*pipeTransport, n)
	for i := range transports {
		transports[i] = &pipeTransport{
			recvs: make(map[party.ID]io.Reader),
			sends: make(map[party.ID]io.Writer),
		}
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			iToJ, iSend, err := os.Pipe()
			if err != nil {
				return nil, err
			}
			jToI, jSend, err := os.Pipe()
			if err != nil {
				return nil, err
			}
			transports[j].recvs[party.ID(i)] = iToJ
			transports[i].sends[party.ID(j)] = &pipeWriter{iSend}
			transports[i].recvs[party.ID(j)] = jToI
			transports[j].sends[party.ID(i)] = &pipeWriter{jSend}
		}
	}
	return transports, nil
}

type timingStats struct {
	total, min, max time.Duration
	count           int
}

func (s *timingStats) add(d time.Duration) {
	if s.count == 0 || d < s.min {
		s.min = d
	}
	if d > s.max {
		s.max = d
	}
	s.total += d
	s.count++
}

func (s *timingStats) report(what string) {
	if s.count == 0 {
		return
	}
	fmt.Printf("%s: avg %v, min %v, max %v over %d iterations\n",
		what, s.total/time.Duration(s.count), s.min, s.max, s.count)
}

func benchSign2PLocal() error {
	aRecv, bSend, err := os.Pipe()
	if err != nil {
		return err
	}
	bRecv, aSend, err := os.Pipe()
	if err != nil {
		return err
	}

	type aliceRes struct {
		a   *twop.Alice
		err error
	}
	type bobRes struct {
		b   *twop.Bob
		err error
	}
	aCh := make(chan aliceRes, 1)
	bCh := make(chan bobRes, 1)
	setupStart := time.Now()
	go func() {
		a, err := twop.SetupAlice(rand.Reader, aRecv, &pipeWriter{aSend})
		aCh <- aliceRes{a, err}
	}()
	go func() {
		b, err := twop.SetupBob(rand.Reader, bRecv, &pipeWriter{bSend})
		bCh <- bobRes{b, err}
	}()
	ar := <-aCh
	br := <-bCh
	if ar.err != nil {
		return ar.err
	}
	if br.err != nil {
		return br.err
	}
	fmt.Printf("2P setup: %v\n", time.Since(setupStart))

	table := curve.PrecompTable(br.b.JointPublicKey())
	msg := []byte(message)
	var stats timingStats
	for i := 0; i < iterations; i++ {
		errCh := make(chan error, 1)
		start := time.Now()
		go func() {
			errCh <- ar.a.Sign(msg, rand.Reader, aRecv, &pipeWriter{aSend})
		}()
		r, s, err := br.b.Sign(msg, rand.Reader, bRecv, &pipeWriter{bSend})
		if err != nil {
			return err
		}
		if err := <-errCh; err != nil {
			return err
		}
		stats.add(time.Since(start))
		if !ecdsa.VerifyWithTables(table, msg, r, s) {
			return fmt.Errorf("signature %d failed verification", i)
		}
	}
	stats.report("2P sign")
	return nil
}

// benchMulShare sets a group up once, then times the N-party product
// fan-in running over the persistent pairwise multiplier state.
func benchMulShare() error {
	n := partyCount
	if n < 2 {
		return fmt.Errorf("-N must be at least 2")
	}
	ids := party.Range(n)
	transports, err := pipeMesh(n)
	if err != nil {
		return err
	}

	type setupRes struct {
		s   *threshold.Signer
		err error
	}
	setupChs := make([]chan setupRes, n)
	for i := 0; i < n; i++ {
		setupChs[i] = make(chan setupRes, 1)
		i := i
		go func() {
			s, err := threshold.Setup(party.ID(i), ids, thresholdT, rand.Reader, transports[i])
			setupChs[i] <- setupRes{s, err}
		}()
	}
	signers := make([]*threshold.Signer, n)
	for i := 0; i < n; i++ {
		r := <-setupChs[i]
		if r.err != nil {
			return r.err
		}
		signers[i] = r.s
	}

	var stats timingStats
	for iter := 0; iter < iterations; iter++ {
		factors := make([]*curve.Scalar, n)
		want := curve.One()
		for i := range factors {
			factors[i] = curve.Random(rand.Reader)
			want = want.Mul(factors[i])
		}

		type res struct {
			share *curve.Scalar
			err   error
		}
		chs := make([]chan res, n)
		start := time.Now()
		for i := 0; i < n; i++ {
			chs[i] = make(chan res, 1)
			i := i
			go func() {
				share, err := signers[i].MulShare(factors[i], rand.Reader, transports[i])
				chs[i] <- res{share, err}
			}()
		}
		got := curve.Zero()
		for i := 0; i < n; i++ {
			r := <-chs[i]
			if r.err != nil {
				return r.err
			}
			got = got.Add(r.share)
		}
		stats.add(time.Since(start))

		if !got.Equal(want) {
			return fmt.Errorf("fan-in iteration %d: shares do not sum to the product", iter)
		}
	}
	stats.report(fmt.Sprintf("%d-party mul", n))
	return nil
}

func benchThresholdSetup() error {
	n := partyCount
	if n < 2 {
		return fmt.Errorf("-N must be at least 2")
	}
	ids := party.Range(n)

	var stats timingStats
	for iter := 0; iter < iterations; iter++ {
		transports, err := pipeMesh(n)
		if err != nil {
			return err
		}

		type res struct {
			s   *threshold.Signer
			err error
		}
		chs := make([]chan res, n)
		start := time.Now()
		for i := 0; i < n; i++ {
			chs[i] = make(chan res, 1)
			i := i
			go func() {
				s, err := threshold.Setup(party.ID(i), ids, thresholdT, rand.Reader, transports[i])
				chs[i] <- res{s, err}
			}()
		}
		var signers []*threshold.Signer
		for i := 0; i < n; i++ {
			r := <-chs[i]
			if r.err != nil {
				return r.err
			}
			signers = append(signers, r.s)
		}
		stats.add(time.Since(start))

		for i := 1; i < n; i++ {
			if !signers[i].GroupPublicKey().Equal(signers[0].GroupPublicKey()) {
				return fmt.Errorf("party %d disagrees on the group public key", i)
			}
		}
	}
	stats.report(fmt.Sprintf("%d-of-%d setup", thresholdT, n))
	return nil
}
