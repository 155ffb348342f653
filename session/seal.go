package session

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const sealFormatVersion = 1

var sealInfo = []byte("clinicauth session record v1")

// ErrSealedRecordInvalid is returned when a sealed record fails to open.
var ErrSealedRecordInvalid = errors.New("sealed session record invalid")

// Sealer encrypts persisted session records with XChaCha20-Poly1305. The key
// is derived from an application secret with HKDF-SHA256.
type Sealer struct {
	key [chacha20poly1305.KeySize]byte
}

// NewSealer derives a record key from secret. salt may be nil.
func NewSealer(secret, salt []byte) (*Sealer, error) {
	if len(secret) < 16 {
		return nil, errors.New("seal secret must be at least 16 bytes")
	}

	s := &Sealer{}
	kdf := hkdf.New(sha256.New, secret, salt, sealInfo)
	if _, err := io.ReadFull(kdf, s.key[:]); err != nil {
		return nil, err
	}
	return s, nil
}

// Seal encrypts plaintext as version || nonce || ciphertext.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key[:])
	if err != nil {
		return nil, err
	}

	out := make([]byte, 1+aead.NonceSize(), 1+aead.NonceSize()+len(plaintext)+aead.Overhead())
	out[0] = sealFormatVersion
	if _, err := rand.Read(out[1:]); err != nil {
		return nil, err
	}
	nonce := out[1 : 1+aead.NonceSize()]
	return aead.Seal(out, nonce, plaintext, out[:1]), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key[:])
	if err != nil {
		return nil, err
	}
	if len(sealed) < 1+aead.NonceSize()+aead.Overhead() || sealed[0] != sealFormatVersion {
		return nil, ErrSealedRecordInvalid
	}

	nonce := sealed[1 : 1+aead.NonceSize()]
	plaintext, err := aead.Open(nil, nonce, sealed[1+aead.NonceSize():], sealed[:1])
	if err != nil {
		return nil, ErrSealedRecordInvalid
	}
	return plaintext, nil
}
