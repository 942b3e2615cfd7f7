// Package wallet signs, prices and submits transactions for the pool
// authority.
package wallet

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mr-tron/base58"
)

var (
	ErrKeyFileEmpty = errors.New("signer key file is empty")
	ErrBadSeedSize  = errors.New("signer seed must be 32 or 64 bytes")
)

// Signer holds the authority keypair. The key never leaves this struct.
type Signer struct {
	priv   ed25519.PrivateKey
	pubkey string
}

// LoadSigner reads a base58-encoded ed25519 seed (or full 64-byte keypair)
// from path.
func LoadSigner(path string) (*Signer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading signer key: %w", err)
	}
	encoded := strings.TrimSpace(string(raw))
	if encoded == "" {
		return nil, ErrKeyFileEmpty
	}

	seed, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding signer key: %w", err)
	}

	var priv ed25519.PrivateKey
	switch len(seed) {
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(seed)
	case ed25519.PrivateKeySize:
		priv = ed25519.PrivateKey(seed)
	default:
		return nil, fmt.Errorf("%w: got %d", ErrBadSeedSize, len(seed))
	}

	pub := priv.Public().(ed25519.PublicKey)
	return &Signer{
		priv:   priv,
		pubkey: base58.Encode(pub),
	}, nil
}

// PublicKey returns the base58 authority address.
func (s *Signer) PublicKey() string { return s.pubkey }

// Sign signs the serialized message.
func (s *Signer) Sign(message []byte) []byte {
	return ed25519.Sign(s.priv, message)
}
