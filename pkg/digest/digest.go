// Package digest is the protocol's hash collaborator: plain SHA-256 plus a
// batched interface for hashing many independent fixed-size blocks
// concurrently.
package digest

import (
	"crypto/sha256"

	"golang.org/x/sync/errgroup"

	"github.com/KimlikDAO/mpecdsa-sub000/pkg/pool"
)

// Size is the digest length in bytes.
const Size = sha256.Size

// Sum hashes msg with SHA-256.
func Sum(msg []byte) [Size]byte {
	return sha256.Sum256(msg)
}

// Multi hashes each element of msgs independently, in parallel across a
// worker pool sized to len(msgs) (bounded by RAYON_NUM_THREADS), and returns
// one digest per input in the same order.
func Multi(msgs [][]byte) [][Size]byte {
	out := make([][Size]byte, len(msgs))
	if len(msgs) == 0 {
		return out
	}
	g := new(errgroup.Group)
	g.SetLimit(pool.Size(len(msgs)))
	for i, m := range msgs {
		i, m := i, m
		g.Go(func() error {
			out[i] = sha256.Sum256(m)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
