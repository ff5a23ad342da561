package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/recrutech-auth/auth"
	"github.com/jrsteele09/recrutech-auth/internal/config"
	"github.com/jrsteele09/recrutech-auth/server"
	"github.com/jrsteele09/recrutech-auth/throttle"
	"github.com/jrsteele09/recrutech-auth/token"
	"github.com/jrsteele09/recrutech-auth/token/jwt"
	"github.com/jrsteele09/recrutech-auth/token/keys"
	"github.com/jrsteele09/recrutech-auth/token/refresh"
	"github.com/jrsteele09/recrutech-auth/token/refresh/postgres"
	"github.com/jrsteele09/recrutech-auth/token/refresh/redisledger"
	fakeuserrepo "github.com/jrsteele09/recrutech-auth/users/repofake"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const redisKeyPrefix = "recrutech-auth"

func main() {
	for {
		if err := run(); err != nil {
			log.Error().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	setupLogging(c)
	displayAppname(c.GetAppName())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider, err := newKeyProvider(c)
	if err != nil {
		return err
	}

	var closers []func() error
	defer func() {
		for _, closeFn := range closers {
			_ = closeFn()
		}
	}()

	var redisClient redis.UniversalClient
	if c.GetLedgerBackend() == config.BackendRedis || c.GetRateLimitBackend() == config.BackendRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     c.GetRedisAddr(),
			Password: c.GetRedisPassword(),
			DB:       c.GetRedisDB(),
		})
		closers = append(closers, redisClient.Close)
	}

	ledger, closeLedger, err := newLedger(ctx, c, redisClient)
	if err != nil {
		return err
	}
	closers = append(closers, closeLedger)

	userDirectory := fakeuserrepo.NewFakeUserRepo()
	codec := jwt.NewCodec(provider, c.GetIssuer(), c.GetAudience())
	manager := token.New(codec, ledger, userDirectory,
		token.WithTokenExpiry(c.GetAccessTokenExpiry(), c.GetRefreshTokenExpiry()),
		token.WithLedgerTimeout(c.GetLedgerTimeout()),
	)
	authService, err := auth.NewAuthService(userDirectory, manager)
	if err != nil {
		return fmt.Errorf("auth.NewAuthService: %w", err)
	}

	go refresh.NewSweeper(ledger, c.GetLedgerSweepInterval(), c.GetLedgerTimeout()).Run(ctx)

	var options []server.Option
	if c.GetRateLimitEnabled() {
		options = append(options, server.WithLimiter(newLimiter(ctx, c, redisClient)))
	}

	handler, err := server.New(c, authService, provider, options...)
	if err != nil {
		return fmt.Errorf("server.New: %w", err)
	}

	httpServer := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := listenAndServe(httpServer); err != nil {
			log.Error().Err(err).Msg("listener stopped")
		}
	}()
	waitForStopSignal()
	cancel()
	returnError = shutdown(httpServer)
	return returnError
}

func setupLogging(c config.Config) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	}
	log.Logger = log.With().Str("app", c.GetAppName()).Logger()
}

// newKeyProvider loads the signing key pair from disk when both paths are set,
// otherwise generates a key that lives only as long as the process.
// errPublicKeyWithoutPrivate rejects a public key path configured on its own.
var errPublicKeyWithoutPrivate = errors.New("JWT_PUBLIC_KEY_PATH is set without JWT_PRIVATE_KEY_PATH")

func newKeyProvider(c config.Config) (*keys.Provider, error) {
	privatePath, publicPath := c.GetPrivateKeyPath(), c.GetPublicKeyPath()
	if privatePath == "" && publicPath != "" {
		return nil, errPublicKeyWithoutPrivate
	}

	if privatePath != "" {
		// The public key is derived from the private key when no path is given.
		provider, err := keys.NewProviderFromFiles(c.GetKeyID(), privatePath, publicPath)
		if err != nil {
			return nil, fmt.Errorf("keys.NewProviderFromFiles: %w", err)
		}
		log.Info().Str("kid", provider.KeyID()).Msg("signing key loaded")
		return provider, nil
	}

	provider, err := keys.NewEphemeralProvider(c.GetKeyID())
	if err != nil {
		return nil, fmt.Errorf("keys.NewEphemeralProvider: %w", err)
	}
	return provider, nil
}

func newLedger(ctx context.Context, c config.Config, redisClient redis.UniversalClient) (refresh.Ledger, func() error, error) {
	noop := func() error { return nil }

	switch c.GetLedgerBackend() {
	case config.BackendPostgres:
		db, err := postgres.Open(ctx, c.GetDatabaseDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("postgres.Open: %w", err)
		}
		log.Info().Msg("refresh token ledger: postgres")
		return postgres.NewLedger(db), db.Close, nil
	case config.BackendRedis:
		log.Info().Str("addr", c.GetRedisAddr()).Msg("refresh token ledger: redis")
		return redisledger.NewLedger(redisClient, redisKeyPrefix), noop, nil
	default:
		log.Info().Msg("refresh token ledger: memory")
		return refresh.NewInMemoryLedger(), noop, nil
	}
}

func newLimiter(ctx context.Context, c config.Config, redisClient redis.UniversalClient) throttle.Limiter {
	throttleConfig := throttle.Config{
		Limit:         c.GetRateLimit(),
		RefreshPeriod: c.GetRateLimitRefreshPeriod(),
		Timeout:       c.GetRateLimitTimeout(),
	}

	if c.GetRateLimitBackend() == config.BackendRedis {
		log.Info().Int("limit", throttleConfig.Limit).Msg("request throttle: redis")
		return throttle.NewRedisThrottle(redisClient, redisKeyPrefix, throttleConfig)
	}

	limiter := throttle.New(throttleConfig)
	go limiter.Run(ctx, c.GetRateLimitSweepInterval())
	log.Info().Int("limit", throttleConfig.Limit).Msg("request throttle: memory")
	return limiter
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
