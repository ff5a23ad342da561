package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"math/big"

	"github.com/golang-jwt/jwt/v5"
)

// RS256 is the only algorithm this service signs with.
const RS256 = "RS256"

const minRSABits = 2048

// KeyPair is an RSA signing key and the id it is published under.
type KeyPair struct {
	KeyID      string
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey
}

// JWKS represents a JSON Web Key Set
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key
type JWK struct {
	Kty string `json:"kty"`           // Key type (RSA)
	Use string `json:"use,omitempty"` // sig or enc
	Kid string `json:"kid,omitempty"` // Key ID
	Alg string `json:"alg,omitempty"` // Algorithm
	N   string `json:"n,omitempty"`   // Modulus
	E   string `json:"e,omitempty"`   // Exponent
}

// GenerateRSAKeyPair creates a fresh key pair of at least 2048 bits.
func GenerateRSAKeyPair(keyID string, bits int) (*KeyPair, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, max(bits, minRSABits))
	if err != nil {
		return nil, fmt.Errorf("generate RSA key: %w", err)
	}
	return &KeyPair{KeyID: keyID, PrivateKey: privateKey, PublicKey: &privateKey.PublicKey}, nil
}

// ParseKeyPair builds a key pair from PEM text. The private key may be PKCS#1
// or PKCS#8; the public key is optional and, when given, must match it.
func ParseKeyPair(keyID string, privateKeyPEM, publicKeyPEM []byte) (*KeyPair, error) {
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	if bits := privateKey.N.BitLen(); bits < minRSABits {
		return nil, fmt.Errorf("private key is %d bits, need at least %d", bits, minRSABits)
	}

	kp := &KeyPair{KeyID: keyID, PrivateKey: privateKey, PublicKey: &privateKey.PublicKey}
	if len(publicKeyPEM) == 0 {
		return kp, nil
	}

	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}
	if !publicKey.Equal(kp.PublicKey) {
		return nil, fmt.Errorf("public key does not match private key")
	}
	return kp, nil
}

// EncodePEM returns the private key as PKCS#8 and the public key as PKIX.
func (kp *KeyPair) EncodePEM() (privatePEM, publicPEM []byte, err error) {
	privDER, err := x509.MarshalPKCS8PrivateKey(kp.PrivateKey)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(kp.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER}),
		pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}),
		nil
}

// JWK describes the public half for key discovery.
func (kp *KeyPair) JWK() JWK {
	return JWK{
		Kty: "RSA",
		Use: "sig",
		Kid: kp.KeyID,
		Alg: RS256,
		N:   base64.RawURLEncoding.EncodeToString(kp.PublicKey.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(kp.PublicKey.E)).Bytes()),
	}
}
