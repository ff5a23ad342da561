package keys

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// KeyPairSigner signs with a key pair and resolves the key for verification.
type KeyPairSigner struct {
	keyPair *KeyPair
}

// Sign produces a compact RS256 JWS carrying the key id in its header.
func (s *KeyPairSigner) Sign(claims jwt.Claims) (string, error) {
	if s.keyPair == nil || s.keyPair.PrivateKey == nil {
		return "", fmt.Errorf("no private key loaded")
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.keyPair.KeyID
	return token.SignedString(s.keyPair.PrivateKey)
}

// Keyfunc is a jwt.Keyfunc. Tokens naming another key id, or signed with
// anything but RSA, get no key.
func (s *KeyPairSigner) Keyfunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	if kid, ok := token.Header["kid"].(string); ok && kid != s.keyPair.KeyID {
		return nil, fmt.Errorf("unknown key id %q", kid)
	}
	return s.keyPair.PublicKey, nil
}
