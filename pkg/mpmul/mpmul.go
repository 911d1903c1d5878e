// Package mpmul turns N multiplicative shares into additive shares of
// their product. Parties are organized into a binary merge tree by index:
// in round r, each party's size-2^r block folds its two halves together by
// having every member of one half run one pre-generated random pair
// product ("rmul" triple) against every member of the other half. The
// triples are produced up front over the persistent two-party multiplier
// state, so the rounds themselves cost only one masked scalar each way per
// cross pair: a party sends its running value minus its triple share, and
// both sides rebuild their new additive share as tau plus the incoming
// difference times their own factor. Round count is logarithmic, but every
// one of the N(N-1)/2 pairs still crosses exactly once (at the level where
// their subtrees first diverge), so total triple consumption is inherently
// quadratic in N.
package mpmul

import (
	"context"
	"io"

	"github.com/KimlikDAO/mpecdsa-sub000/pkg/curve"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/mperr"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/party"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/pool"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/ro"
)

// Triple is one party's half of a pre-generated random pair product: Share
// is this party's random factor (alpha on the Alice side of the pair, beta
// on the Bob side) and Tau its additive share of alpha*beta.
type Triple struct {
	Share *curve.Scalar
	Tau   *curve.Scalar
}

// PairMul is one party's persistent two-party multiplier against a single
// counterparty; a call pre-generates one random product half. Both pkg/mta
// roles satisfy it.
type PairMul interface {
	RMul(extIndex uint64, tag, checkTag ro.Tag, rnd io.Reader, recv io.Reader, send io.Writer) (share, tau *curve.Scalar, err error)
}

// Peers supplies the persistent per-pair resources the fan-in consumes:
// the two-party multiplier, the pair's dyadic tagger, and the next unused
// OT-extension index. Implementations must advance extension indices and
// tag counters identically on both sides of every pair, which holds as
// long as both sides run the same sequence of operations.
type Peers interface {
	PairMul(counterparty party.ID) PairMul
	PairTagger(counterparty party.ID) *ro.DyadicTagger
	NextExtIndex(counterparty party.ID) uint64
}

// Transport hands back the pairwise reader/writer for a given counterparty.
type Transport interface {
	PairConn(counterparty party.ID) (io.Reader, io.Writer)
}

// FanIn computes self's additive share of the product of all parties'
// factors: one rmul triple is pre-generated per counterparty over the
// persistent multiplier state, then the merge rounds fold the tree
// together. ids must equal party.Range(len(ids)).
func FanIn(self party.ID, ids party.IDs, factor *curve.Scalar, peers Peers, rnd io.Reader, transport Transport) (*curve.Scalar, error) {
	n := len(ids)
	if !ids.Contains(self) {
		return nil, mperr.Generalf("mpmul.FanIn", "party %d not a member of the group", self)
	}
	for i, id := range ids {
		if id != party.ID(i) {
			return nil, mperr.Generalf("mpmul.FanIn", "ids must be party.Range(%d), got %v", n, ids)
		}
	}

	triples, err := pregen(self, ids, peers, rnd, transport)
	if err != nil {
		return nil, err
	}

	v := factor
	for round := 1; round <= levels(n); round++ {
		v, err = mulRound(round, self, n, v, triples, transport)
		if err != nil {
			return nil, err
		}
	}
	return v, nil
}

// pregen runs the rmul pre-generation: one random pair product per
// counterparty, concurrently over the worker pool since every pair has its
// own stream and multiplier state.
func pregen(self party.ID, ids party.IDs, peers Peers, rnd io.Reader, transport Transport) (map[party.ID]*Triple, error) {
	counterparties := ids.Without(self)
	results := make([]*Triple, len(counterparties))
	g := pool.New(context.Background(), len(counterparties))
	for idx, j := range counterparties {
		idx, j := idx, j
		g.Go(func() error {
			recv, send := transport.PairConn(j)
			tagRange := peers.PairTagger(j).AllocateDyadicRange(2)
			tag, err := tagRange.Next()
			if err != nil {
				return err
			}
			checkTag, err := tagRange.Next()
			if err != nil {
				return err
			}
			share, tau, err := peers.PairMul(j).RMul(peers.NextExtIndex(j), tag, checkTag, rnd, recv, send)
			if err != nil {
				return err
			}
			results[idx] = &Triple{Share: share, Tau: tau}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	triples := make(map[party.ID]*Triple, len(counterparties))
	for idx, j := range counterparties {
		triples[j] = results[idx]
	}
	return triples, nil
}

// levels is the number of merge rounds for n parties.
func levels(n int) int {
	l := 0
	for (1 << l) < n {
		l++
	}
	return l
}

// mulRound merges this party's half of the round's block with the opposite
// half: send the running value minus the pair's triple share to every
// opposite-half party, then rebuild the value as the sum over those pairs
// of tau plus the incoming difference times this party's own factor - the
// running value on the Bob (upper-half) side, the triple share on the
// Alice (lower-half) side.
func mulRound(round int, self party.ID, n int, v *curve.Scalar, triples map[party.ID]*Triple, transport Transport) (*curve.Scalar, error) {
	selfIdx := int(self)
	blockBase := (selfIdx >> round) << round
	discriminator := blockBase + 1<<(round-1)
	var oppBase int
	if selfIdx < discriminator {
		oppBase = discriminator
		if oppBase > n {
			oppBase = n
		}
	} else {
		oppBase = blockBase
	}
	oppCount := 1 << (round - 1)
	if n-oppBase < oppCount {
		oppCount = n - oppBase
	}
	if oppCount <= 0 {
		return v, nil
	}

	for jj := 0; jj < oppCount; jj++ {
		j := party.ID(oppBase + jj)
		_, send := transport.PairConn(j)
		if err := sendScalar(send, v.Sub(triples[j].Share)); err != nil {
			return nil, err
		}
		if err := flush(send); err != nil {
			return nil, err
		}
	}

	acc := curve.Zero()
	for jj := 0; jj < oppCount; jj++ {
		j := party.ID(oppBase + jj)
		recv, _ := transport.PairConn(j)
		d, err := recvScalar(recv)
		if err != nil {
			return nil, err
		}
		t := triples[j]
		if int(j) < discriminator {
			// counterparty is the Alice side, so self is Bob and
			// multiplies by its running value
			acc = acc.Add(t.Tau.Add(d.Mul(v)))
		} else {
			acc = acc.Add(t.Tau.Add(d.Mul(t.Share)))
		}
	}
	return acc, nil
}

func sendScalar(w io.Writer, x *curve.Scalar) error {
	_, err := w.Write(x.Bytes())
	return mperr.WrapIO("mpmul.sendScalar", err)
}

func recvScalar(r io.Reader) (*curve.Scalar, error) {
	var buf [curve.NBytes]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, mperr.WrapIO("mpmul.recvScalar", err)
	}
	return curve.NewScalar().SetBytes(buf[:]), nil
}

type flusher interface{ Flush() error }

func flush(w io.Writer) error {
	if f, ok := w.(flusher); ok {
		return mperr.WrapIO("mpmul.flush", f.Flush())
	}
	return nil
}
