package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/restaurant/internal/models"
	"github.com/Skotchmaster/restaurant/internal/mykafka"
	"github.com/Skotchmaster/restaurant/internal/repo"
	"github.com/Skotchmaster/restaurant/pkg/hash"
	"github.com/Skotchmaster/restaurant/pkg/logging"
	"github.com/Skotchmaster/restaurant/pkg/tokens"
)

const minPasswordLen = 6

type AuthService struct {
	Repo   *repo.GormRepo
	Tokens *tokens.Issuer
	Events EventPublisher
}

type LoginResult struct {
	User *models.User
	tokens.Pair
	IsAdmin bool
}

// Identity is a user identity asserted by an OAuth provider.
type Identity struct {
	Provider string
	Subject  string
	Email    string
	Name     string
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", invalid("email", "required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", invalid("email", "invalid address")
	}
	return email, nil
}

func (s *AuthService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "required")
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if password == "" {
		return nil, invalid("password", "required")
	}
	if len(password) < minPasswordLen {
		return nil, invalid("password", fmt.Sprintf("must be at least %d characters", minPasswordLen))
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		l.Error("register_error", "reason", "cannot hash the password", "error", err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: &pwHash,
		Role:         models.RoleUser,
	}
	if err := s.Repo.CreateUserWithCart(ctx, user); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExist) {
			l.Warn("register_error", "reason", "user already exist")
			return nil, fmt.Errorf("email %s: %w", email, ErrConflict)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	l.Info("user_registered", "user_id", user.ID.String())
	publish(ctx, s.Events, mykafka.TopicUserEvents, user.ID.String(), map[string]any{
		"type":   "user_registered",
		"userID": user.ID.String(),
	})
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, invalid("email", "required")
	}
	if password == "" {
		return nil, invalid("password", "required")
	}

	l := logging.FromContext(ctx).With("svc", "auth.login")

	user, err := s.Repo.FindUserByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		l.Warn("login_failed", "reason", "unknown email")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user.PasswordHash == nil || !hash.CheckPassword(*user.PasswordHash, password) {
		l.Warn("login_failed", "reason", "wrong password", "user_id", user.ID.String())
		return nil, ErrInvalidCredentials
	}

	return s.issueSession(ctx, user)
}

// LoginOAuth signs in the user behind an external identity, creating or
// linking the account on first use.
func (s *AuthService) LoginOAuth(ctx context.Context, id Identity) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.oauth", "provider", id.Provider)

	if id.Provider == "" || id.Subject == "" {
		return nil, invalid("identity", "provider and subject required")
	}
	email := strings.ToLower(strings.TrimSpace(id.Email))
	name := strings.TrimSpace(id.Name)
	if name == "" {
		name = email
	}

	user := &models.User{
		Name:            name,
		Email:           email,
		Role:            models.RoleUser,
		Provider:        id.Provider,
		ProviderSubject: id.Subject,
	}
	if user.Email == "" {
		// keeps the unique email column satisfied for providers hiding emails
		user.Email = fmt.Sprintf("%s+%s@users.noreply", id.Provider, id.Subject)
	}

	created, err := s.Repo.UpsertOAuthUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("upsert oauth user: %w", err)
	}
	if created {
		l.Info("user_registered", "user_id", user.ID.String())
		publish(ctx, s.Events, mykafka.TopicUserEvents, user.ID.String(), map[string]any{
			"type":     "user_registered",
			"userID":   user.ID.String(),
			"provider": id.Provider,
		})
	}

	return s.issueSession(ctx, user)
}

func (s *AuthService) issueSession(ctx context.Context, user *models.User) (*LoginResult, error) {
	accessToken, accessExp, err := s.Tokens.CreateAccessToken(user.ID.String(), user.Role)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, jti, refreshExp, err := s.Tokens.CreateRefreshToken(user.ID.String())
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	if err := s.Repo.AddRefreshToken(ctx, &models.RefreshToken{
		UserID:    user.ID,
		JTI:       jti,
		TokenHash: hash.Sha256Hex(refreshToken),
		ExpiresAt: refreshExp,
	}); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &LoginResult{
		User: user,
		Pair: tokens.Pair{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			AccessExp:    accessExp,
			RefreshExp:   refreshExp,
		},
		IsAdmin: user.Role == models.RoleAdmin,
	}, nil
}

// Refresh exchanges a valid refresh token for a new session. The old refresh
// token is revoked in the same transaction that stores the new one.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	claims, err := tokens.RefreshClaimsFromToken(refreshToken, s.Tokens.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRefreshToken, err)
	}

	stored, err := s.Repo.FindRefreshByID(ctx, claims.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: unknown token", ErrInvalidRefreshToken)
	}
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	if stored.TokenHash != hash.Sha256Hex(refreshToken) {
		return nil, fmt.Errorf("%w: token mismatch", ErrInvalidRefreshToken)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID != stored.UserID {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidRefreshToken)
	}
	user, err := s.Repo.GetUserByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user gone", ErrInvalidRefreshToken)
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	accessToken, accessExp, err := s.Tokens.CreateAccessToken(user.ID.String(), user.Role)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	newRefresh, jti, refreshExp, err := s.Tokens.CreateRefreshToken(user.ID.String())
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	err = s.Repo.RotateRefreshToken(ctx, claims.ID, &models.RefreshToken{
		UserID:    user.ID,
		JTI:       jti,
		TokenHash: hash.Sha256Hex(newRefresh),
		ExpiresAt: refreshExp,
	})
	if errors.Is(err, repo.ErrTokenExpiredOrRevoked) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRefreshToken, err)
	}
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	return &LoginResult{
		User: user,
		Pair: tokens.Pair{
			AccessToken:  accessToken,
			RefreshToken: newRefresh,
			AccessExp:    accessExp,
			RefreshExp:   refreshExp,
		},
		IsAdmin: user.Role == models.RoleAdmin,
	}, nil
}

// RefreshSession is Refresh for callers that only need the new token pair.
func (s *AuthService) RefreshSession(ctx context.Context, refreshToken string) (*tokens.Pair, error) {
	res, err := s.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return &res.Pair, nil
}

func (s *AuthService) LogOut(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := s.Repo.RevokeRefreshByHash(ctx, hash.Sha256Hex(refreshToken)); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.Repo.GetUserByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}
