package ecdsa

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/KimlikDAO/mpecdsa-sub000/pkg/curve"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	sk, pk := Keygen(rand.Reader)
	msg := []byte("The Quick Brown Fox Jumps Over The Lazy Dog")

	r, s := Sign(rand.Reader, sk, msg)
	assert.True(t, Verify(pk, msg, r, s))
}

func TestVerifyRejectsWrongMessage(t *testing.T) {
	sk, pk := Keygen(rand.Reader)
	r, s := Sign(rand.Reader, sk, []byte("message one"))
	assert.False(t, Verify(pk, []byte("message two"), r, s))
}

func TestVerifyRejectsZeroComponents(t *testing.T) {
	_, pk := Keygen(rand.Reader)
	table := curve.PrecompTable(pk)
	one := curve.ScalarFromUint64(1)
	zero := curve.Zero()
	assert.False(t, VerifyWithTables(table, []byte("m"), zero, one))
	assert.False(t, VerifyWithTables(table, []byte("m"), one, zero))
}

func TestVerifyRejectsForeignKey(t *testing.T) {
	sk, _ := Keygen(rand.Reader)
	_, otherPk := Keygen(rand.Reader)
	msg := []byte("hello")
	r, s := Sign(rand.Reader, sk, msg)
	assert.False(t, Verify(otherPk, msg, r, s))
}
