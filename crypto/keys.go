package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the length of a channel key in bytes (256 bits).
const KeySize = chacha20poly1305.KeySize

var (
	// ErrMalformedKey means stored key material does not decode to a KeySize key.
	ErrMalformedKey = errors.New("malformed channel key")
)

// Key is a symmetric channel key. It can only be obtained from a KeyManager;
// copies share the same backing memory so Destroy wipes every copy.
type Key struct {
	b *[KeySize]byte
}

// Valid reports whether k holds key material.
func (k Key) Valid() bool { return k.b != nil }

// Destroy zeroes the key material. The key is unusable afterwards.
func (k Key) Destroy() {
	if k.b != nil {
		Wipe(k.b[:])
	}
}

// Clone returns an independent copy; destroying one leaves the other intact.
func (k Key) Clone() Key {
	if k.b == nil {
		return Key{}
	}
	b := *k.b
	return Key{b: &b}
}

func (k Key) bytes() ([]byte, error) {
	if k.b == nil {
		return nil, ErrMalformedKey
	}
	return k.b[:], nil
}

// KeyManager creates, exports and imports channel keys.
type KeyManager struct {
	rand io.Reader
}

// NewKeyManager returns a KeyManager reading from crypto/rand.
func NewKeyManager() *KeyManager {
	return &KeyManager{rand: rand.Reader}
}

// NewKeyManagerWithReader is used by tests to substitute the entropy source.
func NewKeyManagerWithReader(r io.Reader) *KeyManager {
	return &KeyManager{rand: r}
}

// GenerateKey returns a fresh random key. An error here means the system
// randomness source failed and the caller must not continue.
func (m *KeyManager) GenerateKey() (Key, error) {
	var b [KeySize]byte
	if _, err := io.ReadFull(m.rand, b[:]); err != nil {
		return Key{}, fmt.Errorf("read key entropy: %w", err)
	}
	return Key{b: &b}, nil
}

// ExportKey encodes k as standard base64 of the raw key bytes.
func (m *KeyManager) ExportKey(k Key) (string, error) {
	raw, err := k.bytes()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// ImportKey decodes material produced by ExportKey. Anything that is not
// canonical base64 of exactly KeySize bytes is rejected.
func (m *KeyManager) ImportKey(exported string) (Key, error) {
	buf := make([]byte, base64.StdEncoding.DecodedLen(len(exported)))
	return importInto(buf, exported)
}

// importInto decodes into buf and wipes buf before returning, including when
// decoding stops partway.
func importInto(buf []byte, exported string) (Key, error) {
	defer Wipe(buf)
	n, err := base64.StdEncoding.Strict().Decode(buf, []byte(exported))
	if err != nil || n != KeySize {
		return Key{}, ErrMalformedKey
	}
	var b [KeySize]byte
	copy(b[:], buf[:n])
	return Key{b: &b}, nil
}
