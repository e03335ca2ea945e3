package port

import "context"

// KeyBundleSource fetches the raw signing key bundle the QR signer
// extracts its public key from.
type KeyBundleSource interface {
	FetchBundle(ctx context.Context) ([]byte, error)
}
