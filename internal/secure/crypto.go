package secure

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

// Crypter seals transcript and audio records with AES-GCM before they
// leave the process. The first 32 bytes of the key are used.
type Crypter struct {
	aead cipher.AEAD
}

func NewCrypter(key string) (*Crypter, error) {
	k := []byte(key)
	if len(k) < 32 {
		return nil, fmt.Errorf("key length must be >= 32 bytes, got %d", len(k))
	}
	block, err := aes.NewCipher(k[:32])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Crypter{aead: aead}, nil
}

// Encrypt prepends the nonce to the ciphertext.
func (c *Crypter) Encrypt(data []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, data, nil), nil
}

func (c *Crypter) Decrypt(data []byte) ([]byte, error) {
	ns := c.aead.NonceSize()
	if len(data) < ns {
		return nil, fmt.Errorf("ciphertext too short")
	}
	return c.aead.Open(nil, data[:ns], data[ns:], nil)
}
