package config

type Config interface {
	EnvConfig
	CorsConfig
	TokenConfig
	ThrottleConfig
	StorageConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() []string
	GetAllowedHeaders() []string
}

type mainConfig struct {
	EnvVars
	Cors
	Token
	Throttle
	Storage
}

func New() Config {
	return mainConfig{}
}
