package mpmul

import (
	"crypto/rand"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KimlikDAO/mpecdsa-sub000/pkg/curve"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/mta"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/party"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/ro"
)

type flushingWriter struct{ w *os.File }

func (f *flushingWriter) Write(p []byte) (int, error) { return f.w.Write(p) }
func (f *flushingWriter) Flush() error { return nil }

// memTransport wires every ordered pair of parties with a dedicated pipe.
type memTransport struct {
	recv map[party.ID]*os.File
	send map[party.ID]*os.File
}

func (m *memTransport) PairConn(other party.ID) (io.Reader, io.Writer) {
	return m.recv[other], &flushingWriter{m.send[other]}
}

func newNetwork(ids party.IDs) map[party.ID]*memTransport {
	nets := make(map[party.ID]*memTransport, len(ids))
	for _, id := range ids {
		nets[id] = &memTransport{recv: map[party.ID]*os.File{}, send: map[party.ID]*os.File{}}
	}
	for i, a := range ids {
		for _, b := range ids[i+1:] {
			bReadsFromA, aWritesToB, err := os.Pipe()
			if err != nil {
				panic(err)
			}
			aReadsFromB, bWritesToA, err := os.Pipe()
			if err != nil {
				panic(err)
			}
			nets[a].send[b] = aWritesToB
			nets[a].recv[b] = aReadsFromB
			nets[b].send[a] = bWritesToA
			nets[b].recv[a] = bReadsFromA
		}
	}
	return nets
}

// testPeers is the persistent per-pair state one party holds for the
// fan-in: its mta multipliers (role by index ordering), its dyadic tagger
// views, and a per-pair extension counter.
type testPeers struct {
	alices  map[party.ID]*mta.Alice
	bobs    map[party.ID]*mta.Bob
	taggers map[party.ID]*ro.DyadicTagger

	mu  sync.Mutex
	ext map[party.ID]uint64
}

func (p *testPeers) PairMul(j party.ID) PairMul {
	if a, ok := p.alices[j]; ok {
		return a
	}
	return p.bobs[j]
}

func (p *testPeers) PairTagger(j party.ID) *ro.DyadicTagger { return p.taggers[j] }

func (p *testPeers) NextExtIndex(j party.ID) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := p.ext[j]
	p.ext[j] = c + 1
	return c
}

// setupPeers establishes one party's pairwise multiplier and tagger state
// over the mesh, the way a signer's setup phase would: tagger seed gossip
// first, then one base OT handshake per pair, each pair on its own stream.
func setupPeers(self party.ID, ids party.IDs, net *memTransport) (*testPeers, error) {
	n := len(ids)
	recvs := make([]io.Reader, n)
	sends := make([]io.Writer, n)
	for _, j := range ids {
		if j == self {
			continue
		}
		recvs[j], sends[j] = net.PairConn(j)
	}
	group, err := ro.FromNetworkUnverified(self, rand.Reader, recvs, sends)
	if err != nil {
		return nil, err
	}

	peers := &testPeers{
		alices:  map[party.ID]*mta.Alice{},
		bobs:    map[party.ID]*mta.Bob{},
		taggers: map[party.ID]*ro.DyadicTagger{},
		ext:     map[party.ID]uint64{},
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	errs := make([]error, 0, n-1)
	for _, j := range ids {
		if j == self {
			continue
		}
		j := j
		wg.Add(1)
		go func() {
			defer wg.Done()
			recv, send := net.PairConn(j)
			tagger, err := group.DyadicView(j)
			if err == nil {
				mu.Lock()
				peers.taggers[j] = tagger
				mu.Unlock()
			}
			if err == nil {
				if party.IsBob(self, j) {
					var bob *mta.Bob
					bob, err = mta.NewBob(rand.Reader, recv, send)
					if err == nil {
						mu.Lock()
						peers.bobs[j] = bob
						mu.Unlock()
					}
				} else {
					var alice *mta.Alice
					alice, err = mta.NewAlice(rand.Reader, recv, send)
					if err == nil {
						mu.Lock()
						peers.alices[j] = alice
						mu.Unlock()
					}
				}
			}
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return peers, nil
}

func runFanIn(t *testing.T, n int) {
	t.Helper()
	ids := party.Range(n)
	nets := newNetwork(ids)

	factors := make(map[party.ID]*curve.Scalar, n)
	want := curve.One()
	for _, id := range ids {
		f := curve.Random(rand.Reader)
		factors[id] = f
		want = want.Mul(f)
	}

	type res struct {
		id    party.ID
		share *curve.Scalar
		err   error
	}
	results := make(chan res, n)
	for _, id := range ids {
		id := id
		go func() {
			peers, err := setupPeers(id, ids, nets[id])
			if err != nil {
				results <- res{id, nil, err}
				return
			}
			share, err := FanIn(id, ids, factors[id], peers, rand.Reader, nets[id])
			results <- res{id, share, err}
		}()
	}

	got := curve.Zero()
	for range ids {
		r := <-results
		require.NoError(t, r.err)
		got = got.Add(r.share)
	}
	require.True(t, got.Equal(want))
}

func TestFanInProductShares(t *testing.T) {
	runFanIn(t, 4)
}

func TestFanInOddPartyCount(t *testing.T) {
	runFanIn(t, 3)
}

func TestFanInRejectsNonMember(t *testing.T) {
	_, err := FanIn(9, party.Range(3), curve.One(), nil, rand.Reader, nil)
	require.Error(t, err)
}
