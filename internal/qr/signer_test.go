package qr

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signet/internal/domain"
)

func generateKeyPEM(t *testing.T, bits int) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, bits)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	block := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return key, string(block)
}

func TestSign_RecoverablePayload(t *testing.T) {
	key, pemBlock := generateKeyPEM(t, 3072)
	builder := NewBuilder("https://verify.example.com/v")
	signer := NewSigner(builder, WithInlineKey(pemBlock))

	signed, err := signer.Sign(context.Background(), "INV2024001-SIGNET01-20240115", "abcDEF123_-X", testInvoice(), domain.QRFormatCompact)
	require.NoError(t, err)

	assert.Equal(t, domain.PayloadRecoverable, signed.Kind)
	assert.Empty(t, signed.Digest)
	assert.NotEmpty(t, signed.QRString)
	assert.NotEmpty(t, signed.KeyFingerprint)

	// The holder of the private key can recover the envelope.
	plaintext, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, key, signed.EncryptedPayload, nil)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(plaintext, &env))
	assert.Equal(t, "INV2024001-SIGNET01-20240115", env.IRN)
	assert.Equal(t, "abcDEF123_-X", env.VerificationCode)
	assert.Equal(t, signed.QRString, env.QRString)
}

func TestSign_DigestOnlyFallback(t *testing.T) {
	key, pemBlock := generateKeyPEM(t, 2048)
	builder := NewBuilder("https://verify.example.com/v")
	signer := NewSigner(builder, WithInlineKey(pemBlock))

	// The structured envelope embeds the full JSON payload and exceeds a
	// 2048-bit key's OAEP capacity.
	signed, err := signer.Sign(context.Background(), "INV2024001-SIGNET01-20240115", "abcDEF123_-X", testInvoice(), domain.QRFormatStructured)
	require.NoError(t, err)

	assert.Equal(t, domain.PayloadDigestOnly, signed.Kind)
	require.NotEmpty(t, signed.Digest)

	plaintext, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, key, signed.EncryptedPayload, nil)
	require.NoError(t, err)
	assert.Equal(t, signed.Digest, base64.StdEncoding.EncodeToString(plaintext))
}

func TestSign_NoKeySource(t *testing.T) {
	signer := NewSigner(NewBuilder("https://verify.example.com/v"))

	_, err := signer.Sign(context.Background(), "INV2024001-SIGNET01-20240115", "abcDEF123_-X", testInvoice(), domain.QRFormatCompact)
	require.ErrorIs(t, err, domain.ErrSigningKeyUnavailable)
}

func TestSign_BundleFile(t *testing.T) {
	_, pemBlock := generateKeyPEM(t, 3072)

	// A realistic bundle: surrounding text and an unrelated block before
	// the public key.
	bundle := "# key bundle v3\n-----BEGIN CERTIFICATE-----\nTk9UQVJFQUxDRVJU\n-----END CERTIFICATE-----\n" + pemBlock + "\ntrailing notes\n"
	path := filepath.Join(t.TempDir(), "bundle.pem")
	require.NoError(t, os.WriteFile(path, []byte(bundle), 0o600))

	signer := NewSigner(NewBuilder("https://verify.example.com/v"), WithBundleFile(path))

	signed, err := signer.Sign(context.Background(), "INV2024001-SIGNET01-20240115", "abcDEF123_-X", testInvoice(), domain.QRFormatCompact)
	require.NoError(t, err)
	assert.Equal(t, domain.PayloadRecoverable, signed.Kind)
}

type staticSource struct{ bundle []byte }

func (s *staticSource) FetchBundle(context.Context) ([]byte, error) {
	return s.bundle, nil
}

func TestSign_RemoteSource(t *testing.T) {
	_, pemBlock := generateKeyPEM(t, 3072)
	signer := NewSigner(NewBuilder("https://verify.example.com/v"), WithBundleSource(&staticSource{bundle: []byte(pemBlock)}))

	signed, err := signer.Sign(context.Background(), "INV2024001-SIGNET01-20240115", "abcDEF123_-X", testInvoice(), domain.QRFormatURL)
	require.NoError(t, err)
	assert.NotEmpty(t, signed.EncryptedPayload)
}

func TestParsePublicKey(t *testing.T) {
	_, pemBlock := generateKeyPEM(t, 2048)

	t.Run("bare PEM", func(t *testing.T) {
		key, err := parsePublicKey([]byte(pemBlock))
		require.NoError(t, err)
		assert.Equal(t, 256, key.Size())
	})

	t.Run("no public key block", func(t *testing.T) {
		_, err := parsePublicKey([]byte("nothing here"))
		require.Error(t, err)
	})

	t.Run("unterminated block", func(t *testing.T) {
		_, err := parsePublicKey([]byte("-----BEGIN PUBLIC KEY-----\nabc"))
		require.Error(t, err)
	})
}
