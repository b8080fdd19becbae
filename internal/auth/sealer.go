package auth

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// TokenStorageKey is the fixed key the session token is persisted under.
const TokenStorageKey = "token"

const sealedPrefix = "v1."

// TokenSealer encrypts the bearer token before it is written to a token
// store. A sealer built from an empty secret stores tokens as plain text.
type TokenSealer struct {
	aead cipher.AEAD
}

func NewTokenSealer(secret []byte) (TokenSealer, error) {
	if len(secret) == 0 {
		return TokenSealer{}, nil
	}

	key := make([]byte, chacha20poly1305.KeySize)
	kdf := hkdf.New(sha256.New, secret, nil, []byte("favors session token"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return TokenSealer{}, fmt.Errorf("derive token key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return TokenSealer{}, fmt.Errorf("token cipher: %w", err)
	}
	return TokenSealer{aead: aead}, nil
}

func (s TokenSealer) Seal(token string) (string, error) {
	if s.aead == nil {
		return token, nil
	}

	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(token)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("token nonce: %w", err)
	}
	out := s.aead.Seal(nonce, nonce, []byte(token), []byte(TokenStorageKey))
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(out), nil
}

func (s TokenSealer) Open(stored string) (string, bool) {
	if s.aead == nil {
		return stored, stored != ""
	}

	raw, ok := strings.CutPrefix(stored, sealedPrefix)
	if !ok || raw == "" {
		return "", false
	}
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil || len(b) < s.aead.NonceSize() {
		return "", false
	}

	nonce, ct := b[:s.aead.NonceSize()], b[s.aead.NonceSize():]
	pt, err := s.aead.Open(nil, nonce, ct, []byte(TokenStorageKey))
	if err != nil {
		return "", false
	}
	return string(pt), true
}
