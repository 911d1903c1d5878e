// Package threshold implements t-of-N ECDSA key setup and 2-of-N signing:
// every party holds one point on a degree-(t-1) Shamir
// polynomial whose constant term is the joint private key, and any two
// parties can jointly produce a valid signature by running a three-MtA
// variant of pkg/twop's 2-of-2 protocol against their Lagrange-weighted
// shares instead of their raw polynomial points.
//
// Setup generalizes pkg/twop's commit-then-reveal handshake to every ordered
// pair: each party commits to a PoK of a freshly sampled secret, samples a
// degree-(t-1) polynomial with that secret as its constant term, privately
// evaluates it at every other party's index, and sums the evaluations it
// receives into its own point on the joint polynomial. Every contiguous
// size-t window of parties then verifies, in the exponent, that Lagrange
// reconstruction from that window's published points recovers the same
// joint public key every party computed directly from the summed PoKs.
// One OT-extension instance is established per ordered pair alongside the
// Shamir exchange; the same persistent pairwise state also backs MulShare,
// the group-wide product fan-in built on pkg/mpmul.
//
// Sign lets any two parties from the group reconstruct a signature: each
// scales its own polynomial point by its Lagrange coefficient within the
// two-party subset, and the resulting scaled points play the role of
// pkg/twop's two fixed shares — except the joint secret is now their SUM
// rather than their product, which needs one extra MtA (three instead of
// two) to divide both addends by the product of the two nonce shares.
package threshold

import (
	"context"
	"io"
	"sync"

	"github.com/KimlikDAO/mpecdsa-sub000/pkg/curve"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/digest"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/ecdsa"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/mperr"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/mpmul"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/mta"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/party"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/pool"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/ro"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/zkpok"
)

// Transport hands back a dedicated, ordered byte-stream pair for a given
// counterparty. Setup, Sign, and MulShare each use it for exactly one
// pairwise conversation at a time per pair.
type Transport interface {
	PairConn(counterparty party.ID) (io.Reader, io.Writer)
}

// Per-signature tag indices, generalizing pkg/twop's signTagCount to the
// three-MtA case: one nonce tag, three (tag, checkTag) MtA pairs, and the
// two Gamma masks.
const (
	kaTagIdx = iota
	mtaZTagIdx
	mtaZCheckTagIdx
	mta1TagIdx
	mta1CheckTagIdx
	mta2TagIdx
	mta2CheckTagIdx
	gamma1TagIdx
	gamma2TagIdx
	signTagCount
)

// Signer is one party's persistent state after a t-of-N setup: its point on
// the joint Shamir polynomial, the joint public key, and one OT-extension
// instance per counterparty, reused across every subsequent signature.
type Signer struct {
	self      party.ID
	ids       party.IDs
	threshold int

	point        *curve.Scalar
	groupPk      *curve.Point
	groupPkTable *curve.Table

	mu          sync.Mutex
	mtaAlice    map[party.ID]*mta.Alice
	mtaBob      map[party.ID]*mta.Bob
	taggers     map[party.ID]*ro.DyadicTagger
	extCounters map[party.ID]uint64
}

// GroupPublicKey returns the joint public key every 2-of-N signature
// produced by this group verifies under.
func (s *Signer) GroupPublicKey() *curve.Point { return s.groupPk }

// PrivateShare returns this party's point on the joint Shamir polynomial,
// for the CLI's optional keyshare-at-rest persistence. Never sent on the
// wire in cleartext by the protocol itself.
func (s *Signer) PrivateShare() *curve.Scalar { return s.point }

// Self returns this signer's party index.
func (s *Signer) Self() party.ID { return s.self }

// Setup runs the t-of-N key generation protocol described in package doc.
// ids must equal party.Range(len(ids)): parties are addressed by their
// position in the group, which also doubles as their Shamir x-coordinate
// (offset by one, so party 0 never evaluates at x=0).
func Setup(self party.ID, ids party.IDs, threshold int, rnd io.Reader, transport Transport) (*Signer, error) {
	n := len(ids)
	if !ids.Contains(self) {
		return nil, mperr.Generalf("threshold.Setup", "party %d not a member of the group", self)
	}
	if threshold < 2 || threshold > n {
		return nil, mperr.Generalf("threshold.Setup", "threshold %d out of range for %d parties", threshold, n)
	}
	for i, id := range ids {
		if id != party.ID(i) {
			return nil, mperr.Generalf("threshold.Setup", "ids must be party.Range(%d), got %v", n, ids)
		}
	}

	secretShare := curve.Random(rnd)
	ownPk := curve.ScalarBaseMult(secretShare).Affine()
	proof := zkpok.Prove(rnd, secretShare, ownPk)
	commitment := digest.Sum(proof.Bytes())

	coeffs := make([]*curve.Scalar, threshold-1)
	for i := range coeffs {
		coeffs[i] = curve.Random(rnd)
	}

	group, err := groupTagger(self, n, rnd, transport)
	if err != nil {
		return nil, err
	}

	counterparties := ids.Without(self)

	type pairResult struct {
		id     party.ID
		peerPk *curve.Point
		eval   *curve.Scalar
		tagger *ro.DyadicTagger
		alice  *mta.Alice
		bob    *mta.Bob
	}
	results := make([]pairResult, len(counterparties))

	g := pool.New(context.Background(), len(counterparties))
	for idx, j := range counterparties {
		idx, j := idx, j
		g.Go(func() error {
			recv, send := transport.PairConn(j)

			peerPk, err := pairwisePoK(self, j, ownPk, proof, commitment, recv, send)
			if err != nil {
				return err
			}

			myEvalForJ := evalPoly(secretShare, coeffs, xFor(j))
			peerEvalForMe, err := exchangeScalar(self, j, myEvalForJ, recv, send)
			if err != nil {
				return err
			}

			dtagger, err := group.DyadicView(j)
			if err != nil {
				return err
			}

			var alice *mta.Alice
			var bob *mta.Bob
			if party.IsBob(self, j) {
				bob, err = mta.NewBob(rnd, recv, send)
			} else {
				alice, err = mta.NewAlice(rnd, recv, send)
			}
			if err != nil {
				return err
			}

			results[idx] = pairResult{id: j, peerPk: peerPk, eval: peerEvalForMe, tagger: dtagger, alice: alice, bob: bob}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	groupPk := ownPk
	point := evalPoly(secretShare, coeffs, xFor(self))
	mtaAlice := make(map[party.ID]*mta.Alice, len(counterparties))
	mtaBob := make(map[party.ID]*mta.Bob, len(counterparties))
	taggers := make(map[party.ID]*ro.DyadicTagger, len(counterparties))
	for _, res := range results {
		groupPk = curve.Op(groupPk, res.peerPk).Affine()
		point = point.Add(res.eval)
		taggers[res.id] = res.tagger
		if res.alice != nil {
			mtaAlice[res.id] = res.alice
		}
		if res.bob != nil {
			mtaBob[res.id] = res.bob
		}
	}

	mine := curve.ScalarBaseMult(point).Affine()
	pubPoints := make(map[party.ID]*curve.Point, n)
	pubPoints[self] = mine

	var mu sync.Mutex
	g2 := pool.New(context.Background(), len(counterparties))
	for _, j := range counterparties {
		j := j
		g2.Go(func() error {
			recv, send := transport.PairConn(j)
			theirs, err := exchangePoint(self, j, mine, recv, send)
			if err != nil {
				return err
			}
			mu.Lock()
			pubPoints[j] = theirs
			mu.Unlock()
			return nil
		})
	}
	if err := g2.Wait(); err != nil {
		return nil, err
	}

	if err := verifyLagrangeWindows(ids, threshold, pubPoints, groupPk); err != nil {
		return nil, err
	}

	return &Signer{
		self: self, ids: ids, threshold: threshold,
		point: point, groupPk: groupPk, groupPkTable: curve.PrecompTable(groupPk),
		mtaAlice: mtaAlice, mtaBob: mtaBob, taggers: taggers,
		extCounters: make(map[party.ID]uint64),
	}, nil
}

// verifyLagrangeWindows checks, for every contiguous size-threshold window
// of ids, that Lagrange reconstruction in the exponent over that window's
// published polynomial points recovers groupPk.
func verifyLagrangeWindows(ids party.IDs, threshold int, pubPoints map[party.ID]*curve.Point, groupPk *curve.Point) error {
	for start := 0; start+threshold <= len(ids); start++ {
		window := ids[start : start+threshold]
		reconstructed := curve.InfinityPoint()
		for _, id := range window {
			coeff := lagrangeCoeff(id, window)
			reconstructed = curve.Op(reconstructed, curve.ScalarMult(pubPoints[id], coeff)).Affine()
		}
		if !reconstructed.Equal(groupPk) {
			return mperr.Prooff("threshold.Setup", "Lagrange reconstruction over window %v does not match the group public key", window)
		}
	}
	return nil
}

// Sign lets self and counterparty jointly produce a signature over msg.
// Only one of the two calls returns the completed (r, s): whichever party
// is Bob for this pair assembles it, exactly as in pkg/twop.
func (s *Signer) Sign(counterparty party.ID, msg []byte, rnd io.Reader, transport Transport) (r, sig *curve.Scalar, err error) {
	if counterparty == s.self || !s.ids.Contains(counterparty) {
		return nil, nil, mperr.Generalf("threshold.Signer.Sign", "invalid counterparty %d", counterparty)
	}
	recv, send := transport.PairConn(counterparty)
	subset := party.New(s.self, counterparty)
	effShare := lagrangeCoeff(s.self, subset).Mul(s.point)

	tagger, ok := s.taggers[counterparty]
	if !ok {
		return nil, nil, mperr.Generalf("threshold.Signer.Sign", "no counterparty state for party %d", counterparty)
	}
	tags, err := nextTags(tagger.AllocateDyadicRange(signTagCount))
	if err != nil {
		return nil, nil, err
	}
	extBase := s.nextExt(counterparty, 3)

	if party.IsBob(s.self, counterparty) {
		m, ok := s.mtaBob[counterparty]
		if !ok {
			return nil, nil, mperr.Generalf("threshold.Signer.Sign", "no Bob MtA state for party %d", counterparty)
		}
		return s.signBob(m, effShare, extBase, tags, msg, rnd, recv, send)
	}
	m, ok := s.mtaAlice[counterparty]
	if !ok {
		return nil, nil, mperr.Generalf("threshold.Signer.Sign", "no Alice MtA state for party %d", counterparty)
	}
	return nil, nil, s.signAlice(m, effShare, extBase, tags, msg, rnd, recv, send)
}

// nextExt reserves n consecutive OT-extension indices against a
// counterparty. Both sides of a pair stay aligned because they run the
// same sequence of operations, each reserving the same count.
func (s *Signer) nextExt(counterparty party.ID, n uint64) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.extCounters[counterparty]
	s.extCounters[counterparty] = c + n
	return c
}

// MulShare computes this party's additive share of the product of one
// factor per party across the whole group, over the persistent pairwise
// multiplier state established at Setup: the sum of every party's returned
// share equals the product of every party's factor. Every party must call
// it with the same transport topology, concurrently.
func (s *Signer) MulShare(factor *curve.Scalar, rnd io.Reader, transport Transport) (*curve.Scalar, error) {
	return mpmul.FanIn(s.self, s.ids, factor, signerPeers{s}, rnd, transport)
}

// signerPeers adapts the Signer's per-counterparty state to the fan-in's
// Peers contract.
type signerPeers struct{ s *Signer }

func (p signerPeers) PairMul(j party.ID) mpmul.PairMul {
	if a, ok := p.s.mtaAlice[j]; ok {
		return a
	}
	return p.s.mtaBob[j]
}

func (p signerPeers) PairTagger(j party.ID) *ro.DyadicTagger { return p.s.taggers[j] }

func (p signerPeers) NextExtIndex(j party.ID) uint64 { return p.s.nextExt(j, 1) }

// signBob runs the Bob side of a 2-of-N signature: publish a nonce
// commitment, supply the receiver-side shares to all three MtAs, and
// reconstruct s from Alice's masked reveals. Structurally identical to
// pkg/twop.Bob.Sign except beta1/beta2 become betaZ/beta1/beta2 and t1B/t2B
// become tZB and the combined trB = t1B+t2B.
func (s *Signer) signBob(m *mta.Bob, effShare *curve.Scalar, extBase uint64, tags []ro.Tag, msg []byte, rnd io.Reader, recv io.Reader, send io.Writer) (r, sig *curve.Scalar, err error) {
	kB := curve.Random(rnd)
	DB := curve.ScalarBaseMult(kB).Affine()
	if err := sendPoint(send, DB); err != nil {
		return nil, nil, err
	}
	if err := flush(send); err != nil {
		return nil, nil, err
	}

	kBInv := kB.Inv()
	betaZ := kBInv
	beta1 := kBInv
	beta2 := effShare.Mul(kBInv)

	tZB, err := m.Mul(betaZ, extBase, tags[mtaZTagIdx], tags[mtaZCheckTagIdx], rnd, recv, send)
	if err != nil {
		return nil, nil, err
	}
	t1B, err := m.Mul(beta1, extBase+1, tags[mta1TagIdx], tags[mta1CheckTagIdx], rnd, recv, send)
	if err != nil {
		return nil, nil, err
	}
	t2B, err := m.Mul(beta2, extBase+2, tags[mta2TagIdx], tags[mta2CheckTagIdx], rnd, recv, send)
	if err != nil {
		return nil, nil, err
	}
	trB := t1B.Add(t2B)

	DprimeA, err := recvPoint(recv)
	if err != nil {
		return nil, nil, err
	}
	proof, err := zkpok.Recv(recv)
	if err != nil {
		return nil, nil, err
	}

	h := taggedHashScalar(tags[kaTagIdx], pointBytes(DprimeA))
	R := curve.Op(DprimeA, curve.ScalarMult(DB, h)).Affine()
	if !proof.VerifyBase(DB, R) {
		return nil, nil, mperr.Prooff("threshold.Signer.signBob", "counterparty's nonce proof of knowledge failed to verify")
	}
	r = curve.NewScalar().SetBytes(R.X.Bytes())

	var maskedPi [curve.NBytes]byte
	if _, err := io.ReadFull(recv, maskedPi[:]); err != nil {
		return nil, nil, mperr.WrapIO("threshold.Signer.signBob", err)
	}
	gamma1 := curve.ScalarMult(R, tZB).Affine()
	mask1 := taggedHash(tags[gamma1TagIdx], pointBytes(gamma1))
	var piBytes [curve.NBytes]byte
	for i := range piBytes {
		piBytes[i] = maskedPi[i] ^ mask1[i]
	}
	pi := curve.NewScalar().SetBytes(piBytes[:])
	tZBAdj := tZB.Sub(pi.Mul(kBInv))

	var maskedMa [curve.NBytes]byte
	if _, err := io.ReadFull(recv, maskedMa[:]); err != nil {
		return nil, nil, mperr.WrapIO("threshold.Signer.signBob", err)
	}
	gamma2 := curve.Op(curve.ScalarBaseMult(trB), curve.ScalarMult(s.groupPk, tZBAdj.Neg())).Affine()
	mask2 := taggedHash(tags[gamma2TagIdx], pointBytes(gamma2))
	var maBytes [curve.NBytes]byte
	for i := range maBytes {
		maBytes[i] = maskedMa[i] ^ mask2[i]
	}
	ma := curve.NewScalar().SetBytes(maBytes[:])

	z := ecdsa.HashToScalar(msg)
	mb := tZBAdj.Mul(z).Add(trB.Mul(r))
	sig = ma.Add(mb)

	if !ecdsa.VerifyWithTables(s.groupPkTable, msg, r, sig) {
		return nil, nil, mperr.Prooff("threshold.Signer.signBob", "reconstructed signature failed local ECDSA verification")
	}
	return r, sig, nil
}

// signAlice runs the Alice side, mirroring pkg/twop.Alice.Sign with the
// same betaZ/beta1/beta2 generalization as signBob.
func (s *Signer) signAlice(m *mta.Alice, effShare *curve.Scalar, extBase uint64, tags []ro.Tag, msg []byte, rnd io.Reader, recv io.Reader, send io.Writer) error {
	DB, err := recvPoint(recv)
	if err != nil {
		return err
	}

	kPrimeA := curve.Random(rnd)
	pi := curve.Random(rnd)

	DprimeA := curve.ScalarMult(DB, kPrimeA).Affine()
	h := taggedHashScalar(tags[kaTagIdx], pointBytes(DprimeA))
	kA := kPrimeA.Add(h)
	R := curve.ScalarMult(DB, kA).Affine()
	r := curve.NewScalar().SetBytes(R.X.Bytes())

	kAInv := kA.Inv()
	alphaZ := kAInv.Add(pi)
	alpha1 := effShare.Mul(kAInv)
	alpha2 := kAInv

	tZA, err := m.Mul(alphaZ, extBase, tags[mtaZTagIdx], tags[mtaZCheckTagIdx], rnd, recv, send)
	if err != nil {
		return err
	}
	t1A, err := m.Mul(alpha1, extBase+1, tags[mta1TagIdx], tags[mta1CheckTagIdx], rnd, recv, send)
	if err != nil {
		return err
	}
	t2A, err := m.Mul(alpha2, extBase+2, tags[mta2TagIdx], tags[mta2CheckTagIdx], rnd, recv, send)
	if err != nil {
		return err
	}
	trA := t1A.Add(t2A)

	proof := zkpok.ProveBase(rnd, kA, DB, R)

	if err := sendPoint(send, DprimeA); err != nil {
		return err
	}
	if err := proof.Send(send); err != nil {
		return err
	}
	if err := flush(send); err != nil {
		return err
	}

	gamma1 := curve.Op(
		curve.Op(curve.ScalarMult(R, tZA.Neg()), curve.ScalarMult(curve.Generator(), pi.Mul(kA))),
		curve.Generator(),
	).Affine()
	mask1 := taggedHash(tags[gamma1TagIdx], pointBytes(gamma1))
	piBytes := pi.Bytes()
	var maskedPi [curve.NBytes]byte
	for i := range maskedPi {
		maskedPi[i] = piBytes[i] ^ mask1[i]
	}
	if _, err := send.Write(maskedPi[:]); err != nil {
		return mperr.WrapIO("threshold.Signer.signAlice", err)
	}
	if err := flush(send); err != nil {
		return err
	}

	z := ecdsa.HashToScalar(msg)
	ma := tZA.Mul(z).Add(trA.Mul(r))
	gamma2 := curve.Op(curve.ScalarMult(s.groupPk, tZA), curve.ScalarMult(curve.Generator(), trA.Neg())).Affine()
	mask2 := taggedHash(tags[gamma2TagIdx], pointBytes(gamma2))
	maBytes := ma.Bytes()
	var maskedMa [curve.NBytes]byte
	for i := range maskedMa {
		maskedMa[i] = maBytes[i] ^ mask2[i]
	}
	if _, err := send.Write(maskedMa[:]); err != nil {
		return mperr.WrapIO("threshold.Signer.signAlice", err)
	}
	return flush(send)
}

// pairwisePoK runs the commit-then-reveal handshake for one pair, following
// pkg/twop's convention that the lower-indexed party commits first.
func pairwisePoK(self, other party.ID, pk *curve.Point, proof *zkpok.Proof, commitment [32]byte, recv io.Reader, send io.Writer) (*curve.Point, error) {
	if self < other {
		if err := zkpok.SendCommitment(send, commitment); err != nil {
			return nil, err
		}
		if err := flush(send); err != nil {
			return nil, err
		}
		peerPk, err := recvPoint(recv)
		if err != nil {
			return nil, err
		}
		peerProof, err := zkpok.Recv(recv)
		if err != nil {
			return nil, err
		}
		if !peerProof.Verify(peerPk) {
			return nil, mperr.Prooff("threshold.pairwisePoK", "party %d's setup proof of knowledge failed to verify", other)
		}
		if err := sendPoint(send, pk); err != nil {
			return nil, err
		}
		if err := proof.Send(send); err != nil {
			return nil, err
		}
		if err := flush(send); err != nil {
			return nil, err
		}
		return peerPk, nil
	}

	peerCommitment, err := zkpok.RecvCommitment(recv)
	if err != nil {
		return nil, err
	}
	if err := sendPoint(send, pk); err != nil {
		return nil, err
	}
	if err := proof.Send(send); err != nil {
		return nil, err
	}
	if err := flush(send); err != nil {
		return nil, err
	}
	peerPk, err := recvPoint(recv)
	if err != nil {
		return nil, err
	}
	peerProof, err := zkpok.Recv(recv)
	if err != nil {
		return nil, err
	}
	if !zkpok.VerifyWithCommitment(peerPk, peerCommitment, peerProof) {
		return nil, mperr.Prooff("threshold.pairwisePoK", "party %d's opened setup proof failed to verify or match commitment", other)
	}
	return peerPk, nil
}

// exchangeScalar swaps a scalar with a counterparty, the lower-indexed
// party writing first, avoiding any need for separate framing.
func exchangeScalar(self, other party.ID, mine *curve.Scalar, recv io.Reader, send io.Writer) (*curve.Scalar, error) {
	if self < other {
		if err := sendScalar(send, mine); err != nil {
			return nil, err
		}
		if err := flush(send); err != nil {
			return nil, err
		}
		return recvScalar(recv)
	}
	theirs, err := recvScalar(recv)
	if err != nil {
		return nil, err
	}
	if err := sendScalar(send, mine); err != nil {
		return nil, err
	}
	return theirs, flush(send)
}

// exchangePoint mirrors exchangeScalar for points.
func exchangePoint(self, other party.ID, mine *curve.Point, recv io.Reader, send io.Writer) (*curve.Point, error) {
	if self < other {
		if err := sendPoint(send, mine); err != nil {
			return nil, err
		}
		if err := flush(send); err != nil {
			return nil, err
		}
		return recvPoint(recv)
	}
	theirs, err := recvPoint(recv)
	if err != nil {
		return nil, err
	}
	if err := sendPoint(send, mine); err != nil {
		return nil, err
	}
	return theirs, flush(send)
}

// groupTagger builds the N-party Random Oracle tagger over every pairwise
// stream the transport exposes, used only to hand out DyadicView taggers;
// the seed gossip itself runs once during Setup.
func groupTagger(self party.ID, n int, rnd io.Reader, transport Transport) (*ro.GroupTagger, error) {
	recvs := make([]io.Reader, n)
	sends := make([]io.Writer, n)
	for i := 0; i < n; i++ {
		j := party.ID(i)
		if j == self {
			continue
		}
		recv, send := transport.PairConn(j)
		recvs[i] = recv
		sends[i] = send
	}
	return ro.FromNetworkUnverified(self, rnd, recvs, sends)
}

// xFor maps a party index to its Shamir x-coordinate. Offset by one so
// party 0 never evaluates its polynomial at the reconstruction point.
func xFor(id party.ID) *curve.Scalar {
	return curve.ScalarFromUint64(uint64(id) + 1)
}

// evalPoly evaluates secret + coeffs[0]*x + coeffs[1]*x^2 + ... via Horner's
// method, coeffs holding the degree-1-and-up terms in ascending order.
func evalPoly(secret *curve.Scalar, coeffs []*curve.Scalar, x *curve.Scalar) *curve.Scalar {
	acc := curve.Zero()
	for i := len(coeffs) - 1; i >= 0; i-- {
		acc = acc.Add(coeffs[i]).Mul(x)
	}
	return acc.Add(secret)
}

// lagrangeCoeff computes id's Lagrange coefficient for reconstructing the
// value at x=0 from the points in subset.
func lagrangeCoeff(id party.ID, subset party.IDs) *curve.Scalar {
	num := curve.One()
	den := curve.One()
	xi := xFor(id)
	for _, k := range subset {
		if k == id {
			continue
		}
		xk := xFor(k)
		num = num.Mul(xk.Neg())
		den = den.Mul(xi.Sub(xk))
	}
	return num.Mul(den.Inv())
}

func pointBytes(p *curve.Point) []byte {
	b := p.Bytes()
	return b[:]
}

func taggedHash(tag ro.Tag, parts ...[]byte) [digest.Size]byte {
	n := ro.TagSize
	for _, p := range parts {
		n += len(p)
	}
	buf := make([]byte, 0, n)
	buf = append(buf, tag[:]...)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return digest.Sum(buf)
}

func taggedHashScalar(tag ro.Tag, parts ...[]byte) *curve.Scalar {
	h := taggedHash(tag, parts...)
	return curve.NewScalar().SetBytes(h[:])
}

func sendScalar(w io.Writer, x *curve.Scalar) error {
	_, err := w.Write(x.Bytes())
	return mperr.WrapIO("threshold.sendScalar", err)
}

func recvScalar(r io.Reader) (*curve.Scalar, error) {
	var buf [curve.NBytes]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, mperr.WrapIO("threshold.recvScalar", err)
	}
	return curve.NewScalar().SetBytes(buf[:]), nil
}

func sendPoint(w io.Writer, p *curve.Point) error {
	b := p.Bytes()
	_, err := w.Write(b[:])
	return mperr.WrapIO("threshold.sendPoint", err)
}

func recvPoint(r io.Reader) (*curve.Point, error) {
	var buf [64]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, mperr.WrapIO("threshold.recvPoint", err)
	}
	return curve.PointFromBytes(buf[:]), nil
}

func nextTags(r *ro.TagRange) ([]ro.Tag, error) {
	out := make([]ro.Tag, signTagCount)
	for i := range out {
		t, err := r.Next()
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

type flusher interface{ Flush() error }

func flush(w io.Writer) error {
	if f, ok := w.(flusher); ok {
		return mperr.WrapIO("threshold.flush", f.Flush())
	}
	return nil
}
