package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// NonceSize is the per-message nonce length (96 bits).
const NonceSize = chacha20poly1305.NonceSize

var (
	// ErrMalformedInput means a ciphertext or nonce has an impossible length.
	ErrMalformedInput = errors.New("malformed ciphertext or nonce")

	// ErrAuthenticationFailed means the AEAD tag did not verify: the message was
	// tampered with, or the key or nonce does not belong to it.
	ErrAuthenticationFailed = errors.New("message authentication failed")
)

var nonceSource io.Reader = rand.Reader

// Encrypt seals plaintext under key with a freshly drawn random nonce.
// The returned ciphertext carries the authentication tag.
func Encrypt(plaintext string, key Key) (ciphertext, nonce []byte, err error) {
	raw, err := key.bytes()
	if err != nil {
		return nil, nil, err
	}
	aead, err := chacha20poly1305.New(raw)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, NonceSize)
	if _, err := io.ReadFull(nonceSource, nonce); err != nil {
		return nil, nil, fmt.Errorf("read nonce: %w", err)
	}
	ciphertext = aead.Seal(nil, nonce, []byte(plaintext), nil)
	return ciphertext, nonce, nil
}

// Decrypt verifies and opens ciphertext. It never returns partial plaintext.
func Decrypt(ciphertext, nonce []byte, key Key) (string, error) {
	raw, err := key.bytes()
	if err != nil {
		return "", err
	}
	if len(nonce) != NonceSize || len(ciphertext) < chacha20poly1305.Overhead {
		return "", ErrMalformedInput
	}
	aead, err := chacha20poly1305.New(raw)
	if err != nil {
		return "", err
	}
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrAuthenticationFailed
	}
	return string(plain), nil
}
