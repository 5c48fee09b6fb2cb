package aptos

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/sha3"
)

// Key prefixes accepted on stored private keys.
const (
	ed25519PrivPrefix = "ed25519-priv-"
	hexPrefix         = "0x"
)

// ed25519Scheme is the authentication key scheme byte for single ed25519 keys.
const ed25519Scheme = 0x00

// Signer signs transactions on behalf of an account.
type Signer interface {
	Address() string
	PublicKeyHex() string
	Sign(message []byte) []byte
}

// Account is an ed25519 signing account.
type Account struct {
	address string
	priv    ed25519.PrivateKey
}

var _ Signer = (*Account)(nil)

// NewAccountFromHex parses a hex private key. Accepts a 32-byte seed or a
// 64-byte seed||public key, optionally prefixed with "ed25519-priv-" and/or "0x".
func NewAccountFromHex(key string) (*Account, error) {
	key = strings.TrimSpace(key)
	key = strings.TrimPrefix(key, ed25519PrivPrefix)
	key = strings.TrimPrefix(strings.TrimPrefix(key, hexPrefix), "0X")

	raw, err := hex.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("%w: not hex", ErrInvalidPrivateKey)
	}

	var priv ed25519.PrivateKey
	switch len(raw) {
	case ed25519.SeedSize:
		priv = ed25519.NewKeyFromSeed(raw)
	case ed25519.PrivateKeySize:
		priv = ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
		if !bytes.Equal(priv.Public().(ed25519.PublicKey), raw[ed25519.SeedSize:]) {
			return nil, fmt.Errorf("%w: public half does not match seed", ErrInvalidPrivateKey)
		}
	default:
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidPrivateKey, len(raw))
	}

	pub := priv.Public().(ed25519.PublicKey)
	if err := ValidatePublicKey(pub); err != nil {
		return nil, err
	}

	return &Account{
		address: AuthenticationKey(pub),
		priv:    priv,
	}, nil
}

// WithAddress returns a copy of the account bound to address.
// Needed when the account's key was rotated and address != authentication key.
func (a *Account) WithAddress(address string) *Account {
	if address == "" {
		return a
	}
	return &Account{address: address, priv: a.priv}
}

// Address returns the account address as 0x-prefixed hex.
func (a *Account) Address() string {
	return a.address
}

// PublicKeyHex returns the public key as 0x-prefixed hex.
func (a *Account) PublicKeyHex() string {
	return hexPrefix + hex.EncodeToString(a.priv.Public().(ed25519.PublicKey))
}

// Sign signs message with the account key.
func (a *Account) Sign(message []byte) []byte {
	return ed25519.Sign(a.priv, message)
}

// AuthenticationKey derives the single-key authentication key (and default address) of pub.
func AuthenticationKey(pub ed25519.PublicKey) string {
	h := sha3.New256()
	h.Write(pub)
	h.Write([]byte{ed25519Scheme})
	return hexPrefix + hex.EncodeToString(h.Sum(nil))
}

// ValidatePublicKey checks that pub is a canonical encoding of a curve point.
func ValidatePublicKey(pub []byte) error {
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: public key is %d bytes", ErrInvalidPrivateKey, len(pub))
	}
	if _, err := new(edwards25519.Point).SetBytes(pub); err != nil {
		return fmt.Errorf("%w: public key not on curve", ErrInvalidPrivateKey)
	}
	return nil
}
