package config

import "time"

type TokenConfig interface {
	GetIssuer() string
	GetAudience() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
	GetKeyID() string
	GetPrivateKeyPath() string
	GetPublicKeyPath() string
}

type Token struct{}

var _ TokenConfig = Token{}

func (Token) GetIssuer() string {
	return GetEnv("JWT_ISSUER", "recrutech-auth")
}

func (Token) GetAudience() string {
	return GetEnv("JWT_AUDIENCE", "recrutech-api")
}

func (Token) GetAccessTokenExpiry() time.Duration {
	return GetEnvDuration("JWT_ACCESS_TTL", 15*time.Minute)
}

func (Token) GetRefreshTokenExpiry() time.Duration {
	return GetEnvDuration("JWT_REFRESH_TTL", 7*24*time.Hour) // 7 days
}

// GetKeyID is empty unless configured; the key provider then generates one.
func (Token) GetKeyID() string {
	return GetEnv("JWT_KEY_ID", "")
}

// GetPrivateKeyPath and GetPublicKeyPath select an external key pair. The
// public key is optional and derived from the private key when unset. With
// neither set an ephemeral pair is generated at start up.
func (Token) GetPrivateKeyPath() string {
	return GetEnv("JWT_PRIVATE_KEY_PATH", "")
}

func (Token) GetPublicKeyPath() string {
	return GetEnv("JWT_PUBLIC_KEY_PATH", "")
}
