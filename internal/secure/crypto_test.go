package secure_test

import (
	"testing"

	"github.com/Kerim-Sabic/free-cluely/internal/secure"
)

const testKey = "testkey12345678901234567890123456"

func TestCrypter_EncryptDecrypt(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"simple", []byte("segment text")},
		{"empty", []byte("")},
		{"nil", nil},
		{"long", []byte("a long transcript a long transcript a long transcript a long transcript a long transcript")},
		{"non ascii", []byte("ačiū, iki pasimatymo")},
		{"binary", []byte{0xff, 0xfe, 0x00, 0x01, 0x80, 0x7f}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := secure.NewCrypter(testKey)
			if err != nil {
				t.Fatalf("NewCrypter() failed: %v", err)
			}
			encrypted, err := c.Encrypt(tt.data)
			if err != nil {
				t.Fatalf("Encrypt() failed: %v", err)
			}
			if len(tt.data) > 0 && string(encrypted) == string(tt.data) {
				t.Errorf("data not encrypted")
			}
			decrypted, err := c.Decrypt(encrypted)
			if err != nil {
				t.Fatalf("Decrypt() failed: %v", err)
			}
			if string(decrypted) != string(tt.data) {
				t.Errorf("Decrypt() = %q, want %q", decrypted, tt.data)
			}
		})
	}
}

func TestCrypter_ShortKey(t *testing.T) {
	if _, err := secure.NewCrypter("short"); err == nil {
		t.Error("NewCrypter() succeeded with a short key")
	}
}

func TestCrypter_ShortCiphertext(t *testing.T) {
	c, err := secure.NewCrypter(testKey)
	if err != nil {
		t.Fatalf("NewCrypter() failed: %v", err)
	}
	if _, err := c.Decrypt([]byte{1, 2, 3}); err == nil {
		t.Error("Decrypt() succeeded on truncated input")
	}
}
