package crypto

import (
	"bytes"
	"testing"
)

func TestEncryptDecryptAESGCM_RoundTrip(t *testing.T) {
	key, _ := RandomBytes(32)
	plaintext := []byte(`{"vcId":"vc_1"}`)

	env, err := EncryptAESGCM(plaintext, key, nil)
	if err != nil {
		t.Fatalf("EncryptAESGCM: %v", err)
	}

	decrypted, err := DecryptAESGCM(env, key, nil)
	if err != nil {
		t.Fatalf("DecryptAESGCM: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("got %q, want %q", decrypted, plaintext)
	}
}

func TestDecryptAESGCM_TamperedCiphertextFailsOpaque(t *testing.T) {
	key, _ := RandomBytes(32)
	env, err := EncryptAESGCM([]byte("secret"), key, nil)
	if err != nil {
		t.Fatalf("EncryptAESGCM: %v", err)
	}

	tampered := *env
	tampered.Ciphertext = append([]byte{}, env.Ciphertext...)
	tampered.Ciphertext[0] ^= 0x01

	if _, err := DecryptAESGCM(&tampered, key, nil); err == nil {
		t.Error("expected tampered ciphertext to fail decryption")
	} else if err != errDecryptionFailed {
		t.Errorf("expected opaque decryption error, got %v", err)
	}
}

func TestDecryptAESGCM_WrongKeyFails(t *testing.T) {
	key, _ := RandomBytes(32)
	wrongKey, _ := RandomBytes(32)

	env, err := EncryptAESGCM([]byte("secret"), key, nil)
	if err != nil {
		t.Fatalf("EncryptAESGCM: %v", err)
	}

	if _, err := DecryptAESGCM(env, wrongKey, nil); err == nil {
		t.Error("expected wrong key to fail decryption")
	}
}

func TestEncryptAESGCM_RejectsShortKey(t *testing.T) {
	if _, err := EncryptAESGCM([]byte("x"), []byte("short"), nil); err == nil {
		t.Error("expected short key to be rejected")
	}
}

func TestDeriveKey_Deterministic(t *testing.T) {
	salt := []byte("salt-value-16by!")
	k1 := DeriveKey([]byte("password"), salt, DefaultKDFIterations, DefaultKeyLen, PBKDF2SHA256)
	k2 := DeriveKey([]byte("password"), salt, DefaultKDFIterations, DefaultKeyLen, PBKDF2SHA256)

	if !bytes.Equal(k1, k2) {
		t.Error("expected deterministic key derivation for same inputs")
	}
	if len(k1) != DefaultKeyLen {
		t.Errorf("got key length %d, want %d", len(k1), DefaultKeyLen)
	}
}

func TestDeriveKey_DifferentAlgorithmsDiffer(t *testing.T) {
	salt := []byte("fixed-salt-value")
	sha256Key := DeriveKey([]byte("pw"), salt, 1000, 32, PBKDF2SHA256)
	sha512Key := DeriveKey([]byte("pw"), salt, 1000, 32, PBKDF2SHA512)

	if bytes.Equal(sha256Key, sha512Key) {
		t.Error("expected PBKDF2-SHA256 and PBKDF2-SHA512 to produce different keys")
	}
}
