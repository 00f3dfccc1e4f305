// Package crypto provides the passphrase-derived codec behind the script's
// encrypt-at-rest option. The file writer seals CSV payloads with it; the
// compiler only constructs it.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 16
	keySize    = 32
	iterations = 64_000
)

// Codec seals and opens data with an AES-256-GCM key derived from a
// passphrase. Each Seal uses a fresh salt and nonce, prepended to the
// ciphertext.
type Codec struct {
	passphrase []byte
}

func New(passphrase string) *Codec {
	return &Codec{passphrase: []byte(passphrase)}
}

func (c *Codec) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(c.passphrase, salt, iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "init cipher")
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext. Output layout: salt || nonce || ciphertext.
func (c *Codec) Seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, errors.Wrap(err, "generate salt")
	}
	aead, err := c.aead(salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.Wrap(err, "generate nonce")
	}

	out := make([]byte, 0, saltSize+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, nil), nil
}

// Open decrypts data produced by Seal. A wrong passphrase or tampered
// payload fails authentication.
func (c *Codec) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < saltSize {
		return nil, errors.New("sealed data too short")
	}
	salt := sealed[:saltSize]
	aead, err := c.aead(salt)
	if err != nil {
		return nil, err
	}
	rest := sealed[saltSize:]
	if len(rest) < aead.NonceSize() {
		return nil, errors.New("sealed data too short")
	}
	nonce, ciphertext := rest[:aead.NonceSize()], rest[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.Wrap(err, "open sealed data")
	}
	return plaintext, nil
}
