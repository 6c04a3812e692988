package selfencryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/hkdf"
)

// deriveKeyNonce derives a 32-byte AES key and 12-byte GCM nonce from
// secret/info via HKDF-SHA256, grounded on ecies/ecies.go's DH-then-HKDF
// key derivation step. Unlike ECIES (whose randomness comes from the
// ephemeral DH point), self encryption needs fully deterministic output
// -- the same bytes must always produce the same chunk address -- so
// both the key and the nonce are derived rather than drawn from an RNG.
func deriveKeyNonce(secret, info []byte) (key, nonce []byte, err error) {
	reader := hkdf.New(sha256.New, secret, nil, info)
	key = make([]byte, 32)
	if _, err = reader.Read(key); err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, 12)
	if _, err = reader.Read(nonce); err != nil {
		return nil, nil, err
	}
	return key, nonce, nil
}

func seal(secret, info, plaintext []byte) ([]byte, error) {
	key, nonce, err := deriveKeyNonce(secret, info)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, plaintext, nil), nil
}

func open(secret, info, ciphertext []byte) ([]byte, error) {
	key, nonce, err := deriveKeyNonce(secret, info)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("selfencryption: decrypt: %w", err)
	}
	return pt, nil
}
