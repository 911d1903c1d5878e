package zkpok

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KimlikDAO/mpecdsa-sub000/pkg/curve"
)

func TestProveVerifyRoundTrip(t *testing.T) {
	x := curve.Random(rand.Reader)
	gx := curve.ScalarBaseMult(x).Affine()

	p := Prove(rand.Reader, x, gx)
	assert.True(t, p.Verify(gx))
}

func TestVerifyRejectsWrongStatement(t *testing.T) {
	x := curve.Random(rand.Reader)
	gx := curve.ScalarBaseMult(x).Affine()
	otherX := curve.Random(rand.Reader)
	otherGx := curve.ScalarBaseMult(otherX).Affine()

	p := Prove(rand.Reader, x, gx)
	assert.False(t, p.Verify(otherGx))
}

func TestWireRoundTrip(t *testing.T) {
	x := curve.Random(rand.Reader)
	gx := curve.ScalarBaseMult(x).Affine()
	p := Prove(rand.Reader, x, gx)

	var buf bytes.Buffer
	require.NoError(t, p.Send(&buf))
	got, err := Recv(&buf)
	require.NoError(t, err)
	assert.True(t, got.Verify(gx))
}

func TestCommitThenReveal(t *testing.T) {
	x := curve.Random(rand.Reader)
	gx := curve.ScalarBaseMult(x).Affine()

	commitment, reveal := ProveToCommitment(rand.Reader, x, gx)
	p := reveal()
	assert.True(t, VerifyWithCommitment(gx, commitment, p))
}

func TestCommitThenRevealRejectsSwappedProof(t *testing.T) {
	x1 := curve.Random(rand.Reader)
	gx1 := curve.ScalarBaseMult(x1).Affine()
	x2 := curve.Random(rand.Reader)
	gx2 := curve.ScalarBaseMult(x2).Affine()

	commitment1, _ := ProveToCommitment(rand.Reader, x1, gx1)
	p2 := Prove(rand.Reader, x2, gx2)
	assert.False(t, VerifyWithCommitment(gx2, commitment1, p2))
}
