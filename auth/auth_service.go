package auth

import (
	"context"
	"strings"
	"time"

	autherrors "github.com/jrsteele09/recrutech-auth/internal/errors"
	"github.com/jrsteele09/recrutech-auth/password"
	"github.com/jrsteele09/recrutech-auth/token"
	"github.com/jrsteele09/recrutech-auth/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const bearerTokenType = "Bearer"

// AuthService implements the login, registration, refresh and logout flows
// on top of the token lifecycle Manager.
type AuthService struct {
	users    users.Directory           // Repository for user data
	verifier *users.CredentialVerifier // Username/password check
	tokens   *token.Manager            // Token issuance, rotation and revocation
	nowTime  func() time.Time          // nowTime function (injectable for testing)
}

// AuthServiceOption defines a function type to modify the AuthService instance.
type AuthServiceOption func(*AuthService)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) AuthServiceOption {
	return func(as *AuthService) {
		as.nowTime = nowFunc
	}
}

// NewAuthService initializes a new AuthService with required dependencies.
func NewAuthService(directory users.Directory, tokens *token.Manager, options ...AuthServiceOption) (*AuthService, error) {
	if directory == nil {
		return nil, errors.New("[NewAuthService] users directory is required")
	}
	if tokens == nil {
		return nil, errors.New("[NewAuthService] token manager is required")
	}

	authService := &AuthService{
		users:    directory,
		verifier: users.NewCredentialVerifier(directory),
		tokens:   tokens,
		nowTime:  time.Now,
	}

	for _, opt := range options {
		opt(authService)
	}
	return authService, nil
}

// Register creates a ROLE_USER account and signs the new user in.
func (as *AuthService) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	return as.register(ctx, req, users.RoleUser)
}

// RegisterHR creates a ROLE_HR account and signs the new user in.
func (as *AuthService) RegisterHR(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	return as.register(ctx, req, users.RoleHR)
}

func (as *AuthService) register(ctx context.Context, req RegisterRequest, role users.RoleType) (*AuthResponse, error) {
	if err := ValidateRegisterRequest(&req); err != nil {
		return nil, err
	}
	if violations := password.Validate(req.Password); len(violations) > 0 {
		return nil, &autherrors.PasswordPolicyError{Violations: violations}
	}

	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)
	if err := as.ensureAvailable(ctx, username, email); err != nil {
		return nil, err
	}

	hash, err := users.HashPassword(req.Password)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthService.Register] HashPassword")
	}

	user := &users.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Roles:        []users.RoleType{role},
		DateJoined:   as.nowTime(),
	}
	// Create re-checks uniqueness, so a concurrent registration still loses cleanly.
	if err := as.users.Create(ctx, user); err != nil {
		return nil, errors.Wrap(err, "[AuthService.Register] Create")
	}

	pair, err := as.tokens.IssueTokenPair(ctx, user)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthService.Register] IssueTokenPair")
	}
	log.Info().Str("user_id", user.ID).Str("role", string(role)).Msg("user registered")
	return newAuthResponse(pair, user), nil
}

func (as *AuthService) ensureAvailable(ctx context.Context, username, email string) error {
	if _, err := as.users.FindByUsername(ctx, username); err == nil {
		return autherrors.ErrUsernameTaken
	} else if !autherrors.Is(err, autherrors.ErrUserNotFound) {
		return errors.Wrap(err, "[AuthService.Register] FindByUsername")
	}

	if _, err := as.users.FindByEmail(ctx, email); err == nil {
		return autherrors.ErrEmailTaken
	} else if !autherrors.Is(err, autherrors.ErrUserNotFound) {
		return errors.Wrap(err, "[AuthService.Register] FindByEmail")
	}
	return nil
}

// Login checks the credentials and issues a new token pair.
func (as *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := ValidateLoginRequest(&req); err != nil {
		return nil, err
	}

	user, err := as.verifier.Verify(ctx, strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthService.Login] Verify")
	}

	pair, err := as.tokens.IssueTokenPair(ctx, user)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthService.Login] IssueTokenPair")
	}

	if err := as.users.SetLastLogin(ctx, user.ID, as.nowTime()); err != nil {
		log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to record last login")
	}
	return newAuthResponse(pair, user), nil
}

// Refresh rotates a refresh token. The presented token can never be used again.
func (as *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, &ValidationError{Field: "refreshToken", Message: "is required"}
	}

	// Rotate has retired the old token; respond with the user it resolved.
	pair, err := as.tokens.Rotate(ctx, refreshToken)
	if err != nil {
		return nil, errors.Wrap(err, "[AuthService.Refresh] Rotate")
	}
	return newAuthResponse(pair, pair.User), nil
}

// Logout revokes one refresh token. Repeating it is harmless.
func (as *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return &ValidationError{Field: "refreshToken", Message: "is required"}
	}
	if err := as.tokens.Revoke(ctx, refreshToken); err != nil {
		return errors.Wrap(err, "[AuthService.Logout] Revoke")
	}
	return nil
}

// LogoutAll revokes every refresh token of the user the access token was
// issued to and returns how many were revoked.
func (as *AuthService) LogoutAll(ctx context.Context, accessToken string) (int, error) {
	claims, err := as.tokens.ValidateAccessToken(ctx, accessToken)
	if err != nil {
		return 0, errors.Wrap(err, "[AuthService.LogoutAll] ValidateAccessToken")
	}
	n, err := as.tokens.RevokeAllForUser(ctx, claims.Subject)
	if err != nil {
		return n, errors.Wrap(err, "[AuthService.LogoutAll] RevokeAllForUser")
	}
	log.Info().Str("user_id", claims.Subject).Int("revoked", n).Msg("logged out everywhere")
	return n, nil
}

// IntrospectToken validates and returns metadata about a token.
// This method should be called by resource servers to validate tokens
func (as *AuthService) IntrospectToken(ctx context.Context, rawToken string) (*token.TokenIntrospection, error) {
	return as.tokens.Introspect(ctx, rawToken)
}

func newAuthResponse(pair *token.TokenPair, user *users.User) *AuthResponse {
	return &AuthResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    bearerTokenType,
		ExpiresIn:    int64(pair.ExpiresIn),
		Username:     user.Username,
		Email:        user.Email,
		Roles:        user.RoleNames(),
	}
}
