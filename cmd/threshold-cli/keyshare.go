package main

import (
	"crypto/rand"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"

	"github.com/KimlikDAO/mpecdsa-sub000/pkg/curve"
)

// keyshareRecord is the on-disk shape of a saved keyshare. The protocol
// itself persists nothing; this is purely a CLI convenience for recording
// the outcome of a keygen run for out-of-band inspection.
type keyshareRecord struct {
	Mode       string `cbor:"mode"`
	Self       uint32 `cbor:"self"`
	PartyCount uint32 `cbor:"partyCount"`
	Threshold  uint32 `cbor:"threshold"`
	GroupPk    []byte `cbor:"groupPk"`
	Share      []byte `cbor:"share"`
}

const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	saltSize     = 16
	secretboxKey = 32
)

// saveKeyshare encrypts rec at rest with a scrypt-derived key and
// nacl/secretbox, and prints a blake3 fingerprint of the group public key
// so operators can compare keyshare files without decrypting them.
func saveKeyshare(path, passphrase string, rec keyshareRecord) error {
	plain, err := cbor.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal keyshare: %w", err)
	}

	var salt [saltSize]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return fmt.Errorf("salt: %w", err)
	}
	keyBytes, err := scrypt.Key([]byte(passphrase), salt[:], scryptN, scryptR, scryptP, secretboxKey)
	if err != nil {
		return fmt.Errorf("derive key: %w", err)
	}
	var key [32]byte
	copy(key[:], keyBytes)

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("nonce: %w", err)
	}
	sealed := secretbox.Seal(nil, plain, &nonce, &key)

	out := make([]byte, 0, saltSize+24+len(sealed))
	out = append(out, salt[:]...)
	out = append(out, nonce[:]...)
	out = append(out, sealed...)
	if err := os.WriteFile(path, out, 0600); err != nil {
		return fmt.Errorf("write keyshare: %w", err)
	}

	fp := blake3.Sum256(rec.GroupPk)
	fmt.Printf("saved keyshare %s (group key fingerprint %x)\n", path, fp[:8])
	return nil
}

// loadKeyshare reverses saveKeyshare.
func loadKeyshare(path, passphrase string) (keyshareRecord, error) {
	var rec keyshareRecord
	raw, err := os.ReadFile(path)
	if err != nil {
		return rec, fmt.Errorf("read keyshare: %w", err)
	}
	if len(raw) < saltSize+24 {
		return rec, fmt.Errorf("keyshare file too short")
	}
	salt := raw[:saltSize]
	nonce := raw[saltSize : saltSize+24]
	sealed := raw[saltSize+24:]

	keyBytes, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, secretboxKey)
	if err != nil {
		return rec, fmt.Errorf("derive key: %w", err)
	}
	var key [32]byte
	copy(key[:], keyBytes)
	var nonceArr [24]byte
	copy(nonceArr[:], nonce)

	plain, ok := secretbox.Open(nil, sealed, &nonceArr, &key)
	if !ok {
		return rec, fmt.Errorf("wrong passphrase or corrupted keyshare")
	}
	if err := cbor.Unmarshal(plain, &rec); err != nil {
		return rec, fmt.Errorf("unmarshal keyshare: %w", err)
	}
	return rec, nil
}

func pointToBytes(p *curve.Point) []byte {
	b := p.Bytes()
	return b[:]
}

func scalarToBytes(s *curve.Scalar) []byte {
	return s.Bytes()
}
