package cryptox

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	password := []byte("secret-password")
	salt := []byte("fixed-salt")

	key1 := DeriveKey(password, salt)
	key2 := DeriveKey(password, salt)

	if !bytes.Equal(key1, key2) {
		t.Errorf("expected same result for same inputs, got different")
	}
	if len(key1) != KeyLen {
		t.Errorf("expected key length %d, got %d", KeyLen, len(key1))
	}
}

func TestDeriveKey_DifferentSalts(t *testing.T) {
	password := []byte("secret-password")

	key1 := DeriveKey(password, []byte("salt-1"))
	key2 := DeriveKey(password, []byte("salt-2"))

	if bytes.Equal(key1, key2) {
		t.Errorf("expected different results for different salts, got same")
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := make([]byte, KeyLen)
	plaintext := []byte(`{"users":{"alice":{"stage":"intro"}}}`)

	ciphertext, nonce, err := Encrypt(key, plaintext)
	require.NoError(t, err)
	require.Len(t, nonce, NonceLen)
	require.NotEqual(t, plaintext, ciphertext)

	got, err := Decrypt(ciphertext, nonce, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestDecrypt_TamperFails(t *testing.T) {
	key := make([]byte, KeyLen)
	ciphertext, nonce, err := Encrypt(key, []byte("payload"))
	require.NoError(t, err)

	for i := range ciphertext {
		tampered := append([]byte(nil), ciphertext...)
		tampered[i] ^= 0x01
		if _, err := Decrypt(tampered, nonce, key); err == nil {
			t.Fatalf("flipping byte %d was not detected", i)
		}
	}
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	key := make([]byte, KeyLen)
	ciphertext, nonce, err := Encrypt(key, []byte("payload"))
	require.NoError(t, err)

	wrong := append([]byte(nil), key...)
	wrong[0] ^= 0xff
	_, err = Decrypt(ciphertext, nonce, wrong)
	assert.Error(t, err)
}

func TestEncrypt_FreshNoncePerCall(t *testing.T) {
	key := make([]byte, KeyLen)

	ct1, n1, err := Encrypt(key, []byte("same plaintext"))
	require.NoError(t, err)
	ct2, n2, err := Encrypt(key, []byte("same plaintext"))
	require.NoError(t, err)

	assert.NotEqual(t, n1, n2)
	assert.NotEqual(t, ct1, ct2)
}

func TestSealOpenString(t *testing.T) {
	key := make([]byte, KeyLen)
	const link = "gemini://localhost/final?user=alice"

	sealed, err := SealString(key, link)
	require.NoError(t, err)

	got, err := OpenString(key, sealed)
	require.NoError(t, err)
	assert.Equal(t, link, got)
}

func TestOpenString_Malformed(t *testing.T) {
	key := make([]byte, KeyLen)

	_, err := OpenString(key, "not base64!!")
	assert.Error(t, err)

	_, err = OpenString(key, "AAAA") // decodes to 3 bytes, shorter than a nonce
	assert.Error(t, err)
}

func TestHashAnswer_KnownVector(t *testing.T) {
	const expected = "a9c43be948c5cabd56ef2bacffb77cdaa5eec49dd5eb0cc4129cf3eda5f0e74c"
	assert.Equal(t, expected, HashAnswer("dragon"))
	assert.NotEqual(t, expected, HashAnswer("Dragon"))
}

func TestNewRSAKeyPair_FreshAndWellFormed(t *testing.T) {
	priv1, pub1, err := NewRSAKeyPair()
	require.NoError(t, err)
	priv2, pub2, err := NewRSAKeyPair()
	require.NoError(t, err)

	assert.Contains(t, string(priv1), "RSA PRIVATE KEY")
	assert.Contains(t, string(pub1), "PUBLIC KEY")
	assert.NotEqual(t, pub1, pub2)
	assert.NotEqual(t, priv1, priv2)
}

func TestEncryptOAEP_Nondeterministic(t *testing.T) {
	_, pub, err := NewRSAKeyPair()
	require.NoError(t, err)

	ct1, err := EncryptOAEP(pub, []byte("final message"))
	require.NoError(t, err)
	ct2, err := EncryptOAEP(pub, []byte("final message"))
	require.NoError(t, err)

	assert.NotEqual(t, ct1, ct2)
}

func TestEncryptOAEP_BadKey(t *testing.T) {
	_, err := EncryptOAEP([]byte("not a pem block"), []byte("x"))
	assert.Error(t, err)
}
