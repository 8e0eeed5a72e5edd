// Package crypto provides the optional byte-in/byte-out transform the
// gateway's modem loop applies to a fully-assembled packet before it reaches
// the modem link, and undoes on receipt. The core treats it as an opaque injection
// point (spec's crypto_passphrase hook): no algorithm is mandated, only the
// Transform contract.
package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrCiphertextTooShort is returned by Decrypt when the input is shorter
// than the nonce it must be prefixed with.
var ErrCiphertextTooShort = errors.New("crypto: ciphertext shorter than nonce")

// Transform is a keyed, purely functional byte transform applied to a
// packet's final payload.
type Transform interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// NoopTransform passes bytes through unchanged; the default when no
// passphrase is configured.
type NoopTransform struct{}

func (NoopTransform) Encrypt(p []byte) ([]byte, error) { return p, nil }
func (NoopTransform) Decrypt(c []byte) ([]byte, error) { return c, nil }

// ChaCha20Poly1305Transform derives a key from a passphrase and seals each
// packet with XChaCha20-Poly1305, prefixing the ciphertext with its nonce.
type ChaCha20Poly1305Transform struct {
	aead chacha20poly1305.AEAD
}

// NewChaCha20Poly1305Transform derives a 32-byte key from passphrase (via a
// fixed-size stretch, since the source config field is a plain string, not
// pre-hashed key material) and returns a ready Transform.
func NewChaCha20Poly1305Transform(passphrase string) (*ChaCha20Poly1305Transform, error) {
	key := stretchKey(passphrase)
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("crypto: new aead: %w", err)
	}
	return &ChaCha20Poly1305Transform{aead: aead}, nil
}

// stretchKey expands an arbitrary-length passphrase into exactly
// chacha20poly1305.KeySize bytes by repeating/truncating it — a minimal
// stand-in for a real KDF, adequate for the opaque-transform contract this
// hook exposes.
func stretchKey(passphrase string) [chacha20poly1305.KeySize]byte {
	var key [chacha20poly1305.KeySize]byte
	if len(passphrase) == 0 {
		return key
	}
	for i := range key {
		key[i] = passphrase[i%len(passphrase)]
	}
	return key
}

// Encrypt seals plaintext, returning nonce || ciphertext || tag.
func (t *ChaCha20Poly1305Transform) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, t.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("crypto: nonce: %w", err)
	}
	return t.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a nonce || ciphertext || tag blob produced by Encrypt.
func (t *ChaCha20Poly1305Transform) Decrypt(ciphertext []byte) ([]byte, error) {
	ns := t.aead.NonceSize()
	if len(ciphertext) < ns {
		return nil, ErrCiphertextTooShort
	}
	nonce, sealed := ciphertext[:ns], ciphertext[ns:]
	plaintext, err := t.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: open: %w", err)
	}
	return plaintext, nil
}
