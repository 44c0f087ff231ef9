package feed

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// KeySize is the size of a feed public key
const KeySize = ed25519.PublicKeySize

// Key identifies a feed: the public key of its writer
type Key [KeySize]byte

func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// Short returns an abbreviated form of the key for logs
func (k Key) Short() string {
	return hex.EncodeToString(k[:4])
}

// KeyFromBytes copies b into a Key
func KeyFromBytes(b []byte) (Key, error) {
	var k Key
	if len(b) != KeySize {
		return k, fmt.Errorf("invalid key length %d, expected %d", len(b), KeySize)
	}
	copy(k[:], b)
	return k, nil
}

// ParseKey decodes a hex encoded key
func ParseKey(s string) (Key, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Key{}, fmt.Errorf("invalid key %q: %w", s, err)
	}
	return KeyFromBytes(b)
}

// DiscoveryKey derives the public name of a feed from its key. It is
// used to address stored data without exposing the key itself.
func DiscoveryKey(k Key) []byte {
	h, err := blake2b.New256(k[:])
	if err != nil {
		// only fails for keys longer than 64 bytes
		panic(err)
	}
	h.Write([]byte("aodb"))
	return h.Sum(nil)
}

// KeyPair is the identity of a writable feed
type KeyPair struct {
	Public  Key
	Private ed25519.PrivateKey
}

// GenerateKeyPair creates a new random key pair
func GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("failed to generate key pair: %w", err)
	}
	kp := KeyPair{Private: priv}
	copy(kp.Public[:], pub)
	return kp, nil
}

// KeyPairFromPrivate restores a key pair from its private key
func KeyPairFromPrivate(priv []byte) (KeyPair, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return KeyPair{}, fmt.Errorf("invalid private key length %d", len(priv))
	}
	p := ed25519.PrivateKey(append([]byte(nil), priv...))
	kp := KeyPair{Private: p}
	copy(kp.Public[:], p.Public().(ed25519.PublicKey))
	return kp, nil
}
