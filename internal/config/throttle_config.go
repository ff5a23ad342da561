package config

import "time"

type ThrottleConfig interface {
	GetRateLimitEnabled() bool
	GetRateLimit() int
	GetRateLimitRefreshPeriod() time.Duration
	GetRateLimitTimeout() time.Duration
	GetRateLimitSweepInterval() time.Duration
	GetRateLimitBackend() string
}

type Throttle struct{}

var _ ThrottleConfig = Throttle{}

func (Throttle) GetRateLimitEnabled() bool {
	return GetEnvBool("RATE_LIMIT_ENABLED", true)
}

func (Throttle) GetRateLimit() int {
	return GetEnvInt("RATE_LIMIT_LIMIT", 10)
}

func (Throttle) GetRateLimitRefreshPeriod() time.Duration {
	return GetEnvDuration("RATE_LIMIT_REFRESH_PERIOD", 60*time.Second)
}

func (Throttle) GetRateLimitTimeout() time.Duration {
	return GetEnvDuration("RATE_LIMIT_TIMEOUT", 30*time.Second)
}

func (Throttle) GetRateLimitSweepInterval() time.Duration {
	return GetEnvDuration("RATE_LIMIT_SWEEP_INTERVAL", 5*time.Minute)
}

// GetRateLimitBackend is "memory" (default) or "redis".
func (Throttle) GetRateLimitBackend() string {
	return GetEnv("RATE_LIMIT_BACKEND", BackendMemory)
}
