package qr

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"signet/internal/domain"
	"signet/internal/port"
)

const (
	publicKeyBegin = "-----BEGIN PUBLIC KEY-----"
	publicKeyEnd   = "-----END PUBLIC KEY-----"
)

// envelope is what actually gets encrypted.
type envelope struct {
	IRN              string `json:"irn"`
	VerificationCode string `json:"verification_code"`
	QRFormat         string `json:"qr_format"`
	QRString         string `json:"qr_string"`
	Timestamp        string `json:"timestamp"`
}

// Signer encrypts QR payloads with an RSA public key so only the holder of
// the matching private key can recover them. The key is loaded once and
// cached; signing without a loadable key is an explicit error, never a
// silent skip.
type Signer struct {
	builder *Builder

	inlinePEM  string
	bundlePath string
	source     port.KeyBundleSource

	mu          sync.Mutex
	key         *rsa.PublicKey
	fingerprint string

	now func() time.Time
}

// SignerOption configures a Signer's key sources.
type SignerOption func(*Signer)

// WithInlineKey supplies the public key PEM directly from configuration.
func WithInlineKey(pemBlock string) SignerOption {
	return func(s *Signer) { s.inlinePEM = pemBlock }
}

// WithBundleFile points the signer at a local key bundle file.
func WithBundleFile(path string) SignerOption {
	return func(s *Signer) { s.bundlePath = path }
}

// WithBundleSource attaches a remote bundle source (e.g. S3).
func WithBundleSource(src port.KeyBundleSource) SignerOption {
	return func(s *Signer) { s.source = src }
}

// NewSigner creates a Signer. Key sources are consulted in option order:
// inline PEM, bundle file, remote source.
func NewSigner(builder *Builder, opts ...SignerOption) *Signer {
	s := &Signer{builder: builder, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sign builds and serializes the QR payload, then encrypts the signing
// envelope with RSA-OAEP/SHA-256. Envelopes larger than the key's OAEP
// capacity are replaced by their SHA-256 digest before encryption; the
// result's Kind records which variant the caller holds.
func (s *Signer) Sign(ctx context.Context, irnValue, verificationCode string, inv domain.InvoiceRecord, format domain.QRFormat) (*domain.SignedQR, error) {
	key, fingerprint, err := s.loadKey(ctx)
	if err != nil {
		return nil, err
	}

	payload := s.builder.Build(irnValue, verificationCode, inv)
	qrString, err := s.builder.Serialize(payload, format)
	if err != nil {
		return nil, err
	}

	plaintext, err := json.Marshal(envelope{
		IRN:              irnValue,
		VerificationCode: verificationCode,
		QRFormat:         string(format),
		QRString:         qrString,
		Timestamp:        s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling signing envelope: %w", err)
	}

	result := &domain.SignedQR{
		Format:         format,
		QRString:       qrString,
		Kind:           domain.PayloadRecoverable,
		KeyFingerprint: fingerprint,
		SignedAt:       s.now().UTC(),
	}

	maxPayload := key.Size() - 2*sha256.Size - 2
	if len(plaintext) > maxPayload {
		digest := sha256.Sum256(plaintext)
		if len(digest) > maxPayload {
			return nil, fmt.Errorf("key too small for even a digest payload (%d bytes max): %w", maxPayload, domain.ErrSigningKeyUnavailable)
		}
		result.Kind = domain.PayloadDigestOnly
		result.Digest = base64.StdEncoding.EncodeToString(digest[:])
		plaintext = digest[:]
	}

	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, key, plaintext, nil)
	if err != nil {
		return nil, fmt.Errorf("encrypting QR payload: %w", err)
	}
	result.EncryptedPayload = ciphertext
	return result, nil
}

// loadKey resolves, parses and caches the RSA public key.
func (s *Signer) loadKey(ctx context.Context) (*rsa.PublicKey, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key != nil {
		return s.key, s.fingerprint, nil
	}

	bundle, err := s.fetchBundle(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrSigningKeyUnavailable, err)
	}

	key, err := parsePublicKey(bundle)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrSigningKeyUnavailable, err)
	}

	s.key = key
	s.fingerprint = keyFingerprint(key)
	return key, s.fingerprint, nil
}

func (s *Signer) fetchBundle(ctx context.Context) ([]byte, error) {
	if s.inlinePEM != "" {
		return []byte(s.inlinePEM), nil
	}
	if s.bundlePath != "" {
		data, err := os.ReadFile(s.bundlePath)
		if err != nil {
			return nil, fmt.Errorf("reading key bundle %s: %w", s.bundlePath, err)
		}
		return data, nil
	}
	if s.source != nil {
		return s.source.FetchBundle(ctx)
	}
	return nil, fmt.Errorf("no key source configured")
}

// parsePublicKey locates the public key block inside a bundle by substring
// search, ignoring any other PEM blocks or surrounding content.
func parsePublicKey(bundle []byte) (*rsa.PublicKey, error) {
	text := string(bundle)
	start := strings.Index(text, publicKeyBegin)
	if start < 0 {
		return nil, fmt.Errorf("bundle contains no public key block")
	}
	end := strings.Index(text[start:], publicKeyEnd)
	if end < 0 {
		return nil, fmt.Errorf("public key block is not terminated")
	}
	block, _ := pem.Decode([]byte(text[start : start+end+len(publicKeyEnd)]))
	if block == nil {
		return nil, fmt.Errorf("public key block is not valid PEM")
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing public key: %w", err)
	}
	rsaKey, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is %T, expected RSA", parsed)
	}
	return rsaKey, nil
}

// keyFingerprint is a short stable identifier for the loaded key.
func keyFingerprint(key *rsa.PublicKey) string {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(der)
	return hex.EncodeToString(sum[:8])
}
