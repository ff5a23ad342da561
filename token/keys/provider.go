package keys

import (
	"crypto/rsa"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Provider owns the process-wide signing key pair. It is created once at
// start up and handed to every component that signs or verifies tokens.
// The key pair never changes after construction, so reads need no locking.
type Provider struct {
	keyPair *KeyPair
}

// NewProvider wraps an already loaded key pair.
func NewProvider(keyPair *KeyPair) (*Provider, error) {
	if keyPair == nil || keyPair.PrivateKey == nil || keyPair.PublicKey == nil {
		return nil, fmt.Errorf("key pair is incomplete")
	}
	if keyPair.KeyID == "" {
		keyPair.KeyID = uuid.New().String()
	}
	return &Provider{keyPair: keyPair}, nil
}

// NewEphemeralProvider generates an RSA-2048 key pair that lives for the
// lifetime of the process. Tokens signed by it do not survive a restart.
func NewEphemeralProvider(keyID string) (*Provider, error) {
	if keyID == "" {
		keyID = uuid.New().String()
	}
	keyPair, err := GenerateRSAKeyPair(keyID, minRSABits)
	if err != nil {
		return nil, fmt.Errorf("[keys NewEphemeralProvider] %w", err)
	}
	log.Warn().Str("kid", keyID).Msg("using an ephemeral signing key; tokens will not survive a restart")
	return NewProvider(keyPair)
}

// NewProviderFromPEM loads an external key pair and fails fast if either half
// is unparsable, not RSA, or the halves do not belong together.
func NewProviderFromPEM(keyID, privateKeyPEM, publicKeyPEM string) (*Provider, error) {
	keyPair, err := ParseKeyPair(keyID, []byte(privateKeyPEM), []byte(publicKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("[keys NewProviderFromPEM] %w", err)
	}
	return NewProvider(keyPair)
}

// NewProviderFromFiles reads the PEM files once and caches the parsed keys.
func NewProviderFromFiles(keyID, privateKeyPath, publicKeyPath string) (*Provider, error) {
	privatePEM, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("[keys NewProviderFromFiles] read private key: %w", err)
	}
	var publicPEM []byte
	if publicKeyPath != "" {
		if publicPEM, err = os.ReadFile(publicKeyPath); err != nil {
			return nil, fmt.Errorf("[keys NewProviderFromFiles] read public key: %w", err)
		}
	}
	return NewProviderFromPEM(keyID, string(privatePEM), string(publicPEM))
}

// CurrentKeyPair returns the public key, private key and key id.
func (p *Provider) CurrentKeyPair() (*rsa.PublicKey, *rsa.PrivateKey, string) {
	return p.keyPair.PublicKey, p.keyPair.PrivateKey, p.keyPair.KeyID
}

// KeyID is the opaque identifier published in the JWKS and the token header.
func (p *Provider) KeyID() string {
	return p.keyPair.KeyID
}

// Signer returns a signer bound to the provider's key pair.
func (p *Provider) Signer() *KeyPairSigner {
	return &KeyPairSigner{keyPair: p.keyPair}
}

// JWKS returns the key-discovery document for third-party verifiers.
func (p *Provider) JWKS() JWKS {
	return JWKS{Keys: []JWK{p.keyPair.JWK()}}
}
