// Package cryptox bundles the cryptographic primitives the game is built on:
// AES-GCM authenticated encryption, PBKDF2 key derivation, SHA-256 answer
// digests, and per-player RSA keypair generation.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeyLen is the AES-256 key size used everywhere in the project.
	KeyLen = 32
	// NonceLen is the AES-GCM nonce size. A fresh random nonce is generated
	// for every encryption; reuse under the same key breaks GCM completely.
	NonceLen = 12
	// KDFIterations is the fixed PBKDF2 cost parameter.
	KDFIterations = 200_000

	rsaKeyBits = 2048
)

// DeriveKey derives a 32-byte key from a password and salt using
// PBKDF2-SHA256 with a fixed iteration count. The same password and salt
// always yield the same key.
func DeriveKey(password, salt []byte) []byte {
	return pbkdf2.Key(password, salt, KDFIterations, KeyLen, sha256.New)
}

// Encrypt seals plaintext with AES-256-GCM under key, generating a fresh
// random nonce. The ciphertext includes the GCM authentication tag; the
// nonce is returned separately so callers choose their own framing.
func Encrypt(key, plaintext []byte) (ciphertext, nonce []byte, err error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, NonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("nonce: %w", err)
	}

	ciphertext = aesgcm.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// Decrypt opens an AES-256-GCM ciphertext. Any tampering, wrong key, or
// wrong nonce fails the tag check and returns an error; no partial
// plaintext is ever produced.
func Decrypt(ciphertext, nonce, key []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	return aesgcm.Open(nil, nonce, ciphertext, nil)
}

// SealString encrypts s under key and returns base64(nonce || ciphertext),
// the transport form handed to players for the secret-link puzzle.
func SealString(key []byte, s string) (string, error) {
	ciphertext, nonce, err := Encrypt(key, []byte(s))
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(append(nonce, ciphertext...)), nil
}

// OpenString reverses SealString. It fails if the blob is malformed or the
// tag check fails.
func OpenString(key []byte, b64 string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(blob) < NonceLen {
		return "", fmt.Errorf("blob too short: %d bytes", len(blob))
	}
	plaintext, err := Decrypt(blob[NonceLen:], blob[:NonceLen], key)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// HashAnswer returns the hex SHA-256 digest of a candidate answer. Answers
// are verified by exact digest comparison only; the plaintext answer is
// never stored server-side.
func HashAnswer(candidate string) string {
	sum := sha256.Sum256([]byte(candidate))
	return hex.EncodeToString(sum[:])
}

// NewRSAKeyPair generates a fresh RSA-2048 keypair and returns it as
// (private PEM, public PEM). The private half is handed to the player and
// must not be retained by the caller beyond that.
func NewRSAKeyPair() (privPEM, pubPEM []byte, err error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, nil, fmt.Errorf("generate rsa key: %w", err)
	}

	privPEM = pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal public key: %w", err)
	}
	pubPEM = pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubDER,
	})

	return privPEM, pubPEM, nil
}

// EncryptOAEP encrypts plaintext with the PEM-encoded RSA public key using
// OAEP-SHA256. Padding is randomized, so encrypting the same plaintext
// twice yields different ciphertexts.
func EncryptOAEP(pubPEM, plaintext []byte) ([]byte, error) {
	block, _ := pem.Decode(pubPEM)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in public key")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("not an RSA public key: %T", parsed)
	}
	return rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, plaintext, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
