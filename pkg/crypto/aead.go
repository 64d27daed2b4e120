package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// KDFAlgorithm selects the PRF used by DeriveKey.
type KDFAlgorithm int

const (
	PBKDF2SHA256 KDFAlgorithm = iota
	PBKDF2SHA512
)

// DefaultKDFIterations and DefaultKeyLen match the cache encryption
// defaults: 100,000 rounds, 32-byte (AES-256) output.
const (
	DefaultKDFIterations = 100_000
	DefaultKeyLen        = 32
)

// DeriveKey derives a key of keyLen bytes from password and salt using
// PBKDF2 with the given algorithm and iteration count.
func DeriveKey(password, salt []byte, iterations, keyLen int, algo KDFAlgorithm) []byte {
	switch algo {
	case PBKDF2SHA512:
		return pbkdf2.Key(password, salt, iterations, keyLen, sha512.New)
	default:
		return pbkdf2.Key(password, salt, iterations, keyLen, sha256.New)
	}
}

// AEADEnvelope is the wire shape of an encrypted cache entry: hex-ready
// IV, ciphertext, and tag, stored and transmitted separately so a
// decrypt failure can't be mistaken for a successfully-decrypted forgery.
type AEADEnvelope struct {
	IV         []byte
	Ciphertext []byte
	Tag        []byte
}

// EncryptAESGCM seals plaintext under a 32-byte key using AES-256-GCM
// with a random 12-byte IV. aad may be nil.
func EncryptAESGCM(plaintext, key32, aad []byte) (*AEADEnvelope, error) {
	if len(key32) != 32 {
		return nil, fmt.Errorf("aead: key must be 32 bytes, got %d", len(key32))
	}

	block, err := aes.NewCipher(key32)
	if err != nil {
		return nil, fmt.Errorf("aead: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("aead: %w", err)
	}

	iv, err := RandomBytes(gcm.NonceSize())
	if err != nil {
		return nil, fmt.Errorf("aead: %w", err)
	}

	sealed := gcm.Seal(nil, iv, plaintext, aad)
	tagLen := gcm.Overhead()
	ciphertext := sealed[:len(sealed)-tagLen]
	tag := sealed[len(sealed)-tagLen:]

	return &AEADEnvelope{IV: iv, Ciphertext: ciphertext, Tag: tag}, nil
}

// errDecryptionFailed is the single opaque error returned on any
// decryption failure, so callers can't distinguish a bad key from a
// tampered ciphertext via the error message (no padding/tag oracle).
var errDecryptionFailed = fmt.Errorf("aead: decryption failed")

// DecryptAESGCM opens an envelope sealed by EncryptAESGCM. Any failure —
// wrong key, tampered ciphertext, tampered tag — returns the same
// opaque error with no plaintext.
func DecryptAESGCM(env *AEADEnvelope, key32, aad []byte) ([]byte, error) {
	if len(key32) != 32 {
		return nil, errDecryptionFailed
	}

	block, err := aes.NewCipher(key32)
	if err != nil {
		return nil, errDecryptionFailed
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errDecryptionFailed
	}
	if len(env.IV) != gcm.NonceSize() {
		return nil, errDecryptionFailed
	}

	sealed := append(append([]byte{}, env.Ciphertext...), env.Tag...)
	plaintext, err := gcm.Open(nil, env.IV, sealed, aad)
	if err != nil {
		return nil, errDecryptionFailed
	}
	return plaintext, nil
}
