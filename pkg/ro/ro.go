// Package ro implements the Random-Oracle tagging discipline: every hash
// call made elsewhere in the protocol is prefixed with a 12-byte tag that is
// unique across (session, party pair or broadcast origin, call site), so
// that no hash invocation can be replayed across sessions or confused with
// another party's.
//
// Tags come in two flavors. Dyadic tags are shared between an unordered pair
// of parties and need no synchronization: both sides derive the same base
// from their UIDs and advance independent local counters. Broadcast tags
// are scoped to a source party and the currently active subgroup mask, and
// require the receiving side to track the sender's counter explicitly (via
// AdvanceCounterpartyBroadcastCounter) so that a replayed or stale tag is
// rejected.
package ro

import (
	"encoding/binary"
	"io"
	"sync/atomic"

	"github.com/KimlikDAO/mpecdsa-sub000/pkg/digest"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/mperr"
	"github.com/KimlikDAO/mpecdsa-sub000/pkg/party"
)

// TagSize is the length in bytes of a Random Oracle tag.
const TagSize = 12

// Tag is a domain-separating prefix prepended to a hash input.
type Tag [TagSize]byte

func tagFromBase(base Tag, counter uint64) Tag {
	out := base
	v := binary.LittleEndian.Uint64(out[0:8]) + counter
	binary.LittleEndian.PutUint64(out[0:8], v)
	return out
}

// TagRange hands out length consecutive tags from a pre-allocated base, used
// to reserve tag space for parallel sub-protocol rounds without contending
// on the shared atomic counter per call.
type TagRange struct {
	base    Tag
	counter uint64
	length  uint64
}

// Next returns the next tag in the range, or an error once exhausted.
func (r *TagRange) Next() (Tag, error) {
	if r.counter >= r.length {
		return Tag{}, mperr.Generalf("TagRange.Next", "random oracle tag range exhausted")
	}
	t := tagFromBase(r.base, r.counter)
	r.counter++
	return t, nil
}

// Tagger is a mode-less tag source, returned by BroadcastView,
// DyadicGroupView and DyadicTagger.DyadicModeless: tags scoped to a single
// counterparty (or, for a broadcast tagger, to self),
// without exposing the rest of the group's counters.
type Tagger interface {
	NextTag() (Tag, error)
	AllocateRange(length uint64) (*TagRange, error)
	NextCounterpartyTag(counterparty party.ID) (Tag, error)
	AllocateCounterpartyRange(counterparty party.ID, length uint64) (*TagRange, error)
}

// GroupTagger holds per-party UIDs, dyadic and broadcast bases for every
// other party in the (super)group, and the active subgroup mask. It is the
// root object built once per session from exchanged seeds.
type GroupTagger struct {
	playerIndex party.ID
	puids       [][digest.Size]byte

	subgroupMask []bool
	subToSuper   []int // subgroup index -> supergroup index, -1 if none
	superToSub   []int // supergroup index -> subgroup index, -1 if none
	subgroupSize int

	dyadicBases       []Tag
	dyadicCounters    []*atomic.Uint64
	broadcastBases    []Tag
	broadcastCounters []*atomic.Uint64
}

func fillNone(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = -1
	}
	return out
}

func partyBroadcastBase(p int, puids [][digest.Size]byte, subgroupMask []bool) Tag {
	hashin := make([]byte, len(puids)*digest.Size+8)
	binary.LittleEndian.PutUint64(hashin[0:8], uint64(p))
	for i, uid := range puids {
		if subgroupMask[i] {
			copy(hashin[i*digest.Size+8:(i+1)*digest.Size+8], uid[:])
		}
	}
	out := digest.Sum(hashin)
	var tag Tag
	copy(tag[:], out[:TagSize])
	return tag
}

// FromNetworkUnverified establishes a GroupTagger by having every party
// contribute a random 32-byte seed over the given per-party send/recv
// streams, in the manner of an unauthenticated gossip round: entries for
// self are skipped. Counters start at zero; this constructor does not let
// any party object to another's starting counter value.
func FromNetworkUnverified(playerIndex party.ID, rnd io.Reader, recv []io.Reader, send []io.Writer) (*GroupTagger, error) {
	if len(recv) != len(send) {
		return nil, mperr.Generalf("ro.FromNetworkUnverified", "number of send streams does not match number of recv streams")
	}
	playerCount := len(recv)
	seed := make([]byte, playerCount*digest.Size)
	mySlice := seed[int(playerIndex)*digest.Size : (int(playerIndex)+1)*digest.Size]
	if _, err := io.ReadFull(rnd, mySlice); err != nil {
		return nil, mperr.Generalf("ro.FromNetworkUnverified", "sampling seed: %w", err)
	}

	for i := 0; i < playerCount; i++ {
		if party.ID(i) == playerIndex {
			continue
		}
		if _, err := send[i].Write(mySlice); err != nil {
			return nil, mperr.WrapIO("ro.FromNetworkUnverified", err)
		}
		if f, ok := send[i].(interface{ Flush() error }); ok {
			if err := f.Flush(); err != nil {
				return nil, mperr.WrapIO("ro.FromNetworkUnverified", err)
			}
		}
	}
	for i := 0; i < playerCount; i++ {
		if party.ID(i) == playerIndex {
			continue
		}
		if _, err := io.ReadFull(recv[i], seed[i*digest.Size:(i+1)*digest.Size]); err != nil {
			return nil, mperr.WrapIO("ro.FromNetworkUnverified", err)
		}
	}

	mask := make([]bool, playerCount)
	for i := range mask {
		mask[i] = true
	}
	return fromSeed(playerIndex, playerCount, seed, mask)
}

func fromSeed(playerIndex party.ID, playerCount int, seed []byte, subgroupMask []bool) (*GroupTagger, error) {
	if len(subgroupMask) != playerCount {
		return nil, mperr.Generalf("ro.fromSeed", "subgroup mask length does not match player count")
	}
	if !subgroupMask[playerIndex] {
		return nil, mperr.Generalf("ro.fromSeed", "cannot apply subgroup mask that omits active party")
	}

	ps := make([]byte, len(seed)+8)
	copy(ps[8:], seed)
	puids := make([][digest.Size]byte, playerCount)
	for i := 0; i < playerCount; i++ {
		binary.LittleEndian.PutUint64(ps[0:8], uint64(i))
		puids[i] = digest.Sum(ps)
	}

	dyadicBases := make([]Tag, playerCount)
	hashin := make([]byte, 2*digest.Size)
	copy(hashin[digest.Size:], puids[playerIndex][:])
	for i := 0; i < int(playerIndex); i++ {
		copy(hashin[0:digest.Size], puids[i][:])
		out := digest.Sum(hashin)
		copy(dyadicBases[i][:], out[:TagSize])
	}
	copy(hashin[0:digest.Size], puids[playerIndex][:])
	for i := int(playerIndex) + 1; i < playerCount; i++ {
		copy(hashin[digest.Size:], puids[i][:])
		out := digest.Sum(hashin)
		copy(dyadicBases[i][:], out[:TagSize])
	}

	broadcastBases := make([]Tag, playerCount)
	subToSuper := fillNone(playerCount)
	superToSub := fillNone(playerCount)
	subgroupSize := 0
	for i := 0; i < playerCount; i++ {
		if subgroupMask[i] {
			subToSuper[subgroupSize] = i
			superToSub[i] = subgroupSize
			broadcastBases[i] = partyBroadcastBase(i, puids, subgroupMask)
			subgroupSize++
		}
	}

	dyadicCounters := make([]*atomic.Uint64, playerCount)
	broadcastCounters := make([]*atomic.Uint64, playerCount)
	for i := range dyadicCounters {
		dyadicCounters[i] = new(atomic.Uint64)
		broadcastCounters[i] = new(atomic.Uint64)
	}

	return &GroupTagger{
		playerIndex:       playerIndex,
		puids:             puids,
		subgroupMask:      append([]bool(nil), subgroupMask...),
		subToSuper:        subToSuper,
		superToSub:        superToSub,
		subgroupSize:      subgroupSize,
		dyadicBases:       dyadicBases,
		dyadicCounters:    dyadicCounters,
		broadcastBases:    broadcastBases,
		broadcastCounters: broadcastCounters,
	}, nil
}

// UnsafeClone snapshots the tagger, including current counter values. It
// must never be used to fork independently-advancing views of the same
// logical tagger into two live sessions; it exists for tests that need a
// frozen copy to compare against.
func (g *GroupTagger) UnsafeClone() *GroupTagger {
	out := &GroupTagger{
		playerIndex:    g.playerIndex,
		puids:          append([][digest.Size]byte(nil), g.puids...),
		subgroupMask:   append([]bool(nil), g.subgroupMask...),
		subToSuper:     append([]int(nil), g.subToSuper...),
		superToSub:     append([]int(nil), g.superToSub...),
		subgroupSize:   g.subgroupSize,
		dyadicBases:    append([]Tag(nil), g.dyadicBases...),
		broadcastBases: append([]Tag(nil), g.broadcastBases...),
	}
	out.dyadicCounters = make([]*atomic.Uint64, len(g.dyadicCounters))
	out.broadcastCounters = make([]*atomic.Uint64, len(g.broadcastCounters))
	for i := range g.dyadicCounters {
		c := new(atomic.Uint64)
		c.Store(g.dyadicCounters[i].Load())
		out.dyadicCounters[i] = c
		b := new(atomic.Uint64)
		b.Store(g.broadcastCounters[i].Load())
		out.broadcastCounters[i] = b
	}
	return out
}

// ApplySubgroupMask recomputes broadcast bases for the given mask. Parties
// outside the new mask keep no usable broadcast base; their counters do not
// advance.
func (g *GroupTagger) ApplySubgroupMask(newMask []bool) error {
	if len(newMask) != len(g.puids) {
		return mperr.Generalf("GroupTagger.ApplySubgroupMask", "subgroup mask length does not match player count")
	}
	subToSuper := fillNone(len(newMask))
	superToSub := fillNone(len(newMask))
	subgroupSize := 0
	for i, in := range newMask {
		if in {
			subToSuper[subgroupSize] = i
			superToSub[i] = subgroupSize
			g.broadcastBases[i] = partyBroadcastBase(i, g.puids, newMask)
			subgroupSize++
		}
	}
	g.subToSuper = subToSuper
	g.superToSub = superToSub
	g.subgroupSize = subgroupSize
	g.subgroupMask = append([]bool(nil), newMask...)
	return nil
}

// ApplySubgroupList is ApplySubgroupMask expressed as a member list.
func (g *GroupTagger) ApplySubgroupList(list []party.ID) error {
	if len(list) > len(g.puids) {
		return mperr.Generalf("GroupTagger.ApplySubgroupList", "subgroup list longer than player count")
	}
	mask := make([]bool, len(g.puids))
	for _, id := range list {
		if int(id) >= len(mask) {
			return mperr.Generalf("GroupTagger.ApplySubgroupList", "subgroup list contains invalid party %d", id)
		}
		mask[id] = true
	}
	return g.ApplySubgroupMask(mask)
}

// RemoveSubgroupMask restores the full supergroup as the active subgroup.
func (g *GroupTagger) RemoveSubgroupMask() {
	mask := make([]bool, len(g.puids))
	for i := range mask {
		mask[i] = true
	}
	_ = g.ApplySubgroupMask(mask)
}

// SubgroupPartyCount reports the active subgroup's size.
func (g *GroupTagger) SubgroupPartyCount() int { return g.subgroupSize }

// SupergroupPartyCount reports the total party count.
func (g *GroupTagger) SupergroupPartyCount() int { return len(g.puids) }

// CurrentBroadcastCounter reports this party's own broadcast counter value.
func (g *GroupTagger) CurrentBroadcastCounter() uint64 {
	return g.broadcastCounters[g.playerIndex].Load()
}

// AdvanceBroadcastCounter advances this party's own broadcast counter, used
// when this party is told by a higher protocol layer to skip ahead.
func (g *GroupTagger) AdvanceBroadcastCounter(tagIndex uint64) error {
	self, ok := g.sub(g.playerIndex)
	if !ok {
		return mperr.Generalf("GroupTagger.AdvanceBroadcastCounter", "active party not in subgroup")
	}
	return g.AdvanceCounterpartyBroadcastCounter(self, tagIndex)
}

// NextBroadcastTag returns this party's own next broadcast tag.
func (g *GroupTagger) NextBroadcastTag() Tag {
	self, ok := g.sub(g.playerIndex)
	if !ok {
		panic("active party not in subgroup")
	}
	t, err := g.NextCounterpartyBroadcastTag(self)
	if err != nil {
		panic(err)
	}
	return t
}

// AllocateBroadcastRange pre-allocates length broadcast tags for this party.
func (g *GroupTagger) AllocateBroadcastRange(length uint64) *TagRange {
	self, ok := g.sub(g.playerIndex)
	if !ok {
		panic("active party not in subgroup")
	}
	r, err := g.AllocateCounterpartyBroadcastRange(self, length)
	if err != nil {
		panic(err)
	}
	return r
}

// ForkTagger derives a fresh GroupTagger seeded from this party's next
// broadcast tag, used to pre-allocate independent tag space for a
// sub-protocol without burning base OTs or a fresh seed exchange.
func (g *GroupTagger) ForkTagger() (*GroupTagger, error) {
	self, ok := g.sub(g.playerIndex)
	if !ok {
		return nil, mperr.Generalf("GroupTagger.ForkTagger", "active party not in subgroup")
	}
	return g.ForkCounterpartyTagger(self)
}

// ForkCounterpartyTagger derives a fresh GroupTagger from counterparty's
// next broadcast tag as the new seed, keeping the same subgroup mask.
func (g *GroupTagger) ForkCounterpartyTagger(counterparty party.ID) (*GroupTagger, error) {
	tag, err := g.NextCounterpartyBroadcastTag(counterparty)
	if err != nil {
		return nil, err
	}
	return fromSeed(g.playerIndex, len(g.puids), tag[:], g.subgroupMask)
}

// sub maps a supergroup ID to a subgroup index.
func (g *GroupTagger) sub(id party.ID) (party.ID, bool) {
	if int(id) >= len(g.superToSub) {
		return 0, false
	}
	idx := g.superToSub[id]
	if idx < 0 {
		return 0, false
	}
	return party.ID(idx), true
}

// DyadicView returns a DyadicTagger scoped to exactly one counterparty, exposing
// only that pair's dyadic base and the counterparty's broadcast base. This
// is what gets handed to the multiplier so it cannot reach into any other
// party's tag space.
func (g *GroupTagger) DyadicView(counterparty party.ID) (*DyadicTagger, error) {
	if int(counterparty) >= len(g.subToSuper) {
		return nil, mperr.Generalf("GroupTagger.DyadicView", "invalid counterparty %d", counterparty)
	}
	superCounterparty := g.subToSuper[counterparty]
	if superCounterparty < 0 {
		return nil, mperr.Generalf("GroupTagger.DyadicView", "invalid counterparty %d", counterparty)
	}
	self, _ := g.sub(g.playerIndex)
	return &DyadicTagger{
		playerIndex:                  self,
		counterparty:                 counterparty,
		dyadicBase:                   g.dyadicBases[superCounterparty],
		dyadicCounter:                g.dyadicCounters[superCounterparty],
		counterpartyBroadcastBase:    g.broadcastBases[superCounterparty],
		counterpartyBroadcastCounter: g.broadcastCounters[superCounterparty],
	}, nil
}

func advance(counter *atomic.Uint64, tagIndex uint64, counterparty party.ID) error {
	old := counter.Load()
	for {
		if old > tagIndex {
			return mperr.Prooff("ro.advance", "party %d attempted to reuse a random oracle tag", counterparty)
		}
		if counter.CompareAndSwap(old, tagIndex) {
			return nil
		}
		old = counter.Load()
	}
}

// AdvanceCounterpartyBroadcastCounter rejects a replayed or lower-than-seen
// broadcast tag index from counterparty with a Proof error; a strictly
// increasing value is accepted.
func (g *GroupTagger) AdvanceCounterpartyBroadcastCounter(counterparty party.ID, tagIndex uint64) error {
	superCounterparty := g.subToSuper[counterparty]
	if superCounterparty < 0 {
		return mperr.Generalf("GroupTagger.AdvanceCounterpartyBroadcastCounter", "invalid counterparty %d", counterparty)
	}
	return advance(g.broadcastCounters[superCounterparty], tagIndex, counterparty)
}

// NextCounterpartyBroadcastTag issues the next broadcast tag attributed to
// counterparty.
func (g *GroupTagger) NextCounterpartyBroadcastTag(counterparty party.ID) (Tag, error) {
	superCounterparty := g.subToSuper[counterparty]
	if superCounterparty < 0 {
		return Tag{}, mperr.Generalf("GroupTagger.NextCounterpartyBroadcastTag", "invalid counterparty %d", counterparty)
	}
	old := g.broadcastCounters[superCounterparty].Add(1) - 1
	return tagFromBase(g.broadcastBases[superCounterparty], old), nil
}

// AllocateCounterpartyBroadcastRange pre-allocates length broadcast tags
// attributed to counterparty.
func (g *GroupTagger) AllocateCounterpartyBroadcastRange(counterparty party.ID, length uint64) (*TagRange, error) {
	superCounterparty := g.subToSuper[counterparty]
	if superCounterparty < 0 {
		return nil, mperr.Generalf("GroupTagger.AllocateCounterpartyBroadcastRange", "invalid counterparty %d", counterparty)
	}
	old := g.broadcastCounters[superCounterparty].Add(length) - length
	return &TagRange{base: g.broadcastBases[superCounterparty], counter: old, length: old + length}, nil
}

// AdvanceCounterpartyDyadicCounter is the dyadic analogue of
// AdvanceCounterpartyBroadcastCounter.
func (g *GroupTagger) AdvanceCounterpartyDyadicCounter(counterparty party.ID, tagIndex uint64) error {
	superCounterparty := g.subToSuper[counterparty]
	if superCounterparty < 0 {
		return mperr.Generalf("GroupTagger.AdvanceCounterpartyDyadicCounter", "invalid counterparty %d", counterparty)
	}
	return advance(g.dyadicCounters[superCounterparty], tagIndex, counterparty)
}

// NextCounterpartyDyadicTag issues the next dyadic tag shared with
// counterparty.
func (g *GroupTagger) NextCounterpartyDyadicTag(counterparty party.ID) (Tag, error) {
	superCounterparty := g.subToSuper[counterparty]
	if superCounterparty < 0 {
		return Tag{}, mperr.Generalf("GroupTagger.NextCounterpartyDyadicTag", "invalid counterparty %d", counterparty)
	}
	old := g.dyadicCounters[superCounterparty].Add(1) - 1
	return tagFromBase(g.dyadicBases[superCounterparty], old), nil
}

// AllocateCounterpartyDyadicRange pre-allocates length dyadic tags shared
// with counterparty.
func (g *GroupTagger) AllocateCounterpartyDyadicRange(counterparty party.ID, length uint64) (*TagRange, error) {
	superCounterparty := g.subToSuper[counterparty]
	if superCounterparty < 0 {
		return nil, mperr.Generalf("GroupTagger.AllocateCounterpartyDyadicRange", "invalid counterparty %d", counterparty)
	}
	old := g.dyadicCounters[superCounterparty].Add(length) - length
	return &TagRange{base: g.dyadicBases[superCounterparty], counter: old, length: old + length}, nil
}

// BroadcastView adapts the GroupTagger to the Tagger interface, scoped to
// self's own broadcast channel.
func (g *GroupTagger) BroadcastView() Tagger {
	return groupModeless{g: g, dyadic: false}
}

// DyadicGroupView adapts the GroupTagger to the Tagger interface in dyadic
// mode: NextTag and AllocateRange are unavailable since there is no single
// designated counterparty at this scope.
func (g *GroupTagger) DyadicGroupView() Tagger {
	return groupModeless{g: g, dyadic: true}
}

type groupModeless struct {
	g      *GroupTagger
	dyadic bool
}

func (m groupModeless) NextTag() (Tag, error) {
	if m.dyadic {
		return Tag{}, mperr.Generalf("ro.Tagger.NextTag", "tried to generate a dyadic tag with no defined counterparty")
	}
	return m.g.NextBroadcastTag(), nil
}

func (m groupModeless) AllocateRange(length uint64) (*TagRange, error) {
	if m.dyadic {
		return nil, mperr.Generalf("ro.Tagger.AllocateRange", "tried to allocate a dyadic tag range with no defined counterparty")
	}
	return m.g.AllocateBroadcastRange(length), nil
}

func (m groupModeless) NextCounterpartyTag(counterparty party.ID) (Tag, error) {
	if m.dyadic {
		return m.g.NextCounterpartyDyadicTag(counterparty)
	}
	return m.g.NextCounterpartyBroadcastTag(counterparty)
}

func (m groupModeless) AllocateCounterpartyRange(counterparty party.ID, length uint64) (*TagRange, error) {
	if m.dyadic {
		return m.g.AllocateCounterpartyDyadicRange(counterparty, length)
	}
	return m.g.AllocateCounterpartyBroadcastRange(counterparty, length)
}

// DyadicTagger is a per-counterparty view that exposes only the dyadic base
// shared with that counterparty and that counterparty's broadcast base; it
// cannot touch any other party's tag space.
type DyadicTagger struct {
	playerIndex                  party.ID
	counterparty                 party.ID
	dyadicBase                   Tag
	dyadicCounter                *atomic.Uint64
	counterpartyBroadcastBase    Tag
	counterpartyBroadcastCounter *atomic.Uint64
}

// NextDyadicTag issues the next tag on the shared dyadic channel.
func (d *DyadicTagger) NextDyadicTag() Tag {
	old := d.dyadicCounter.Add(1) - 1
	return tagFromBase(d.dyadicBase, old)
}

// AllocateDyadicRange pre-allocates length tags on the shared dyadic
// channel.
func (d *DyadicTagger) AllocateDyadicRange(length uint64) *TagRange {
	old := d.dyadicCounter.Add(length) - length
	return &TagRange{base: d.dyadicBase, counter: old, length: old + length}
}

// NextCounterpartyBroadcastTag issues the next tag the counterparty would
// use for a broadcast addressed by this pairing.
func (d *DyadicTagger) NextCounterpartyBroadcastTag() Tag {
	old := d.counterpartyBroadcastCounter.Add(1) - 1
	return tagFromBase(d.counterpartyBroadcastBase, old)
}

// AllocateDyadicCounterpartyBroadcastRange pre-allocates length
// counterparty-broadcast tags.
func (d *DyadicTagger) AllocateDyadicCounterpartyBroadcastRange(length uint64) *TagRange {
	old := d.counterpartyBroadcastCounter.Add(length) - length
	return &TagRange{base: d.counterpartyBroadcastBase, counter: old, length: old + length}
}

func (d *DyadicTagger) checkCounterparty(counterparty party.ID) error {
	if counterparty != d.counterparty {
		return mperr.Generalf("DyadicTagger", "attempted to address non-designated counterparty %d (expected %d)", counterparty, d.counterparty)
	}
	return nil
}

// AdvanceCounterpartyBroadcastCounter advances the counterparty-broadcast
// counter to tagIndex; any counterparty other than the designated one is
// rejected.
func (d *DyadicTagger) AdvanceCounterpartyBroadcastCounter(counterparty party.ID, tagIndex uint64) error {
	if err := d.checkCounterparty(counterparty); err != nil {
		return err
	}
	return advance(d.counterpartyBroadcastCounter, tagIndex, counterparty)
}

// NextCounterpartyBroadcastTagFor is NextCounterpartyBroadcastTag after
// checking that counterparty is the designated one.
func (d *DyadicTagger) NextCounterpartyBroadcastTagFor(counterparty party.ID) (Tag, error) {
	if err := d.checkCounterparty(counterparty); err != nil {
		return Tag{}, err
	}
	return d.NextCounterpartyBroadcastTag(), nil
}

// AllocateCounterpartyBroadcastRangeFor is
// AllocateDyadicCounterpartyBroadcastRange after checking that counterparty
// is the designated one.
func (d *DyadicTagger) AllocateCounterpartyBroadcastRangeFor(counterparty party.ID, length uint64) (*TagRange, error) {
	if err := d.checkCounterparty(counterparty); err != nil {
		return nil, err
	}
	return d.AllocateDyadicCounterpartyBroadcastRange(length), nil
}

// AdvanceCounterpartyDyadicCounter advances the shared dyadic counter to
// tagIndex; any counterparty other than the designated one is rejected.
func (d *DyadicTagger) AdvanceCounterpartyDyadicCounter(counterparty party.ID, tagIndex uint64) error {
	if err := d.checkCounterparty(counterparty); err != nil {
		return err
	}
	return advance(d.dyadicCounter, tagIndex, counterparty)
}

// DyadicModeless adapts a DyadicTagger to the Tagger interface.
func (d *DyadicTagger) DyadicModeless(dyadic bool) Tagger {
	return dyadicModeless{d: d, dyadic: dyadic}
}

type dyadicModeless struct {
	d      *DyadicTagger
	dyadic bool
}

func (m dyadicModeless) NextTag() (Tag, error) {
	if m.dyadic {
		return m.d.NextDyadicTag(), nil
	}
	return Tag{}, mperr.Generalf("ro.Tagger.NextTag", "tried to autogenerate broadcast tags from a dyadic tagger")
}

func (m dyadicModeless) AllocateRange(length uint64) (*TagRange, error) {
	if m.dyadic {
		return m.d.AllocateDyadicRange(length), nil
	}
	return nil, mperr.Generalf("ro.Tagger.AllocateRange", "tried to autogenerate broadcast tags from a dyadic tagger")
}

func (m dyadicModeless) NextCounterpartyTag(counterparty party.ID) (Tag, error) {
	if m.dyadic {
		if err := m.d.checkCounterparty(counterparty); err != nil {
			return Tag{}, err
		}
		return m.d.NextDyadicTag(), nil
	}
	return m.d.NextCounterpartyBroadcastTagFor(counterparty)
}

func (m dyadicModeless) AllocateCounterpartyRange(counterparty party.ID, length uint64) (*TagRange, error) {
	if m.dyadic {
		if err := m.d.checkCounterparty(counterparty); err != nil {
			return nil, err
		}
		return m.d.AllocateDyadicRange(length), nil
	}
	return m.d.AllocateCounterpartyBroadcastRangeFor(counterparty, length)
}
