package ro

import (
	"crypto/rand"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KimlikDAO/mpecdsa-sub000/pkg/party"
)

// TestFromNetworkUnverifiedTwoParty exercises the real seed-exchange path
// over kernel-buffered pipes (so the write-then-read ordering in
// FromNetworkUnverified doesn't need a reader on the other end ready yet).
func TestFromNetworkUnverifiedTwoParty(t *testing.T) {
	aliceReadsFromBob, bobWritesToAlice, err := os.Pipe()
	require.NoError(t, err)
	bobReadsFromAlice, aliceWritesToBob, err := os.Pipe()
	require.NoError(t, err)

	type result struct {
		g   *GroupTagger
		err error
	}
	aliceCh := make(chan result, 1)
	bobCh := make(chan result, 1)

	go func() {
		g, err := FromNetworkUnverified(0, rand.Reader, []io.Reader{nil, aliceReadsFromBob}, []io.Writer{nil, aliceWritesToBob})
		aliceCh <- result{g, err}
	}()
	go func() {
		g, err := FromNetworkUnverified(1, rand.Reader, []io.Reader{bobReadsFromAlice, nil}, []io.Writer{bobWritesToAlice, nil})
		bobCh <- result{g, err}
	}()

	alice := <-aliceCh
	bob := <-bobCh
	require.NoError(t, alice.err)
	require.NoError(t, bob.err)
	assert.Equal(t, alice.g.puids[0], bob.g.puids[0])
	assert.Equal(t, alice.g.puids[1], bob.g.puids[1])
}

func TestNextTagMonotonic(t *testing.T) {
	seed := make([]byte, 3*32)
	mask := []bool{true, true, true}
	g, err := fromSeed(0, 3, seed, mask)
	require.NoError(t, err)

	t1, err := g.NextCounterpartyDyadicTag(1)
	require.NoError(t, err)
	t2, err := g.NextCounterpartyDyadicTag(1)
	require.NoError(t, err)
	assert.NotEqual(t, t1, t2)
}

func TestAdvanceRejectsReplay(t *testing.T) {
	seed := make([]byte, 3*32)
	mask := []bool{true, true, true}
	g, err := fromSeed(0, 3, seed, mask)
	require.NoError(t, err)

	require.NoError(t, g.AdvanceCounterpartyDyadicCounter(1, 5))
	err = g.AdvanceCounterpartyDyadicCounter(1, 2)
	require.Error(t, err)
}

func TestTagRangeExhaustion(t *testing.T) {
	seed := make([]byte, 3*32)
	mask := []bool{true, true, true}
	g, err := fromSeed(0, 3, seed, mask)
	require.NoError(t, err)

	r, err := g.AllocateCounterpartyDyadicRange(1, 2)
	require.NoError(t, err)
	_, err = r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	require.Error(t, err)
}

func TestDyadicViewRejectsWrongCounterparty(t *testing.T) {
	seed := make([]byte, 3*32)
	mask := []bool{true, true, true}
	g, err := fromSeed(1, 3, seed, mask)
	require.NoError(t, err)

	view, err := g.DyadicView(0)
	require.NoError(t, err)
	_, err = view.NextCounterpartyBroadcastTagFor(2)
	require.Error(t, err)
}

func TestSubgroupMaskExcludesNonMembers(t *testing.T) {
	seed := make([]byte, 3*32)
	mask := []bool{true, true, true}
	g, err := fromSeed(0, 3, seed, mask)
	require.NoError(t, err)

	require.NoError(t, g.ApplySubgroupList([]party.ID{0, 2}))
	assert.Equal(t, 2, g.SubgroupPartyCount())
}
