package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nexuscrm/salescrm/internal/domain/models"
	"github.com/nexuscrm/salescrm/internal/infrastructure/persistence"
	"github.com/nexuscrm/salescrm/pkg/auth"
	"github.com/nexuscrm/salescrm/pkg/constants"
	apperrors "github.com/nexuscrm/salescrm/pkg/errors"
	"github.com/nexuscrm/salescrm/pkg/utils"
)

// AuthService handles local login and registration and the caller's profile.
type AuthService struct {
	users             *persistence.UserRepository
	tokens            *auth.TokenManager
	allowRegistration bool
	now               func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(users *persistence.UserRepository, tokens *auth.TokenManager, allowRegistration bool) *AuthService {
	return &AuthService{
		users:             users,
		tokens:            tokens,
		allowRegistration: allowRegistration,
		now:               time.Now,
	}
}

// Login verifies email and password and issues a token.
func (s *AuthService) Login(ctx context.Context, in models.LoginInput) (*models.AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	profile, err := s.users.FindUserByEmail(ctx, email)
	if errors.Is(err, persistence.ErrNotFound) {
		zap.L().Info("login failed: unknown email", zap.String("email", email))
		return nil, apperrors.NewUnauthorizedError("Invalid email or password")
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	if profile.PasswordHash == "" {
		return nil, apperrors.NewUnauthorizedError("Password authentication not configured for this user")
	}
	if !auth.VerifyPassword(in.Password, profile.PasswordHash) {
		zap.L().Info("login failed: invalid password", zap.String("user_id", profile.ID))
		return nil, apperrors.NewUnauthorizedError("Invalid email or password")
	}
	return s.issue(profile)
}

// Register creates a password profile. The first profile of a fresh
// database becomes an admin.
func (s *AuthService) Register(ctx context.Context, in models.RegisterInput) (*models.AuthResult, error) {
	if !s.allowRegistration {
		return nil, apperrors.NewPermissionError("register", "account")
	}
	profile, err := s.createProfile(ctx, in, "")
	if err != nil {
		return nil, err
	}
	return s.issue(profile)
}

// Provision creates a password profile with the given role regardless of
// the registration setting. An existing profile with the same email is
// returned unchanged. Used by seeding.
func (s *AuthService) Provision(ctx context.Context, in models.RegisterInput, role string) (*models.UserProfile, error) {
	if role != "" && !constants.IsValidRole(role) {
		return nil, apperrors.NewValidationError("role", fmt.Sprintf("unknown role %q", role))
	}
	existing, err := s.users.FindUserByEmail(ctx, strings.ToLower(strings.TrimSpace(in.Email)))
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return s.createProfile(ctx, in, role)
}

// createProfile validates and stores a password profile. An empty role makes
// the first profile of a fresh database an admin and every later one a
// sales rep.
func (s *AuthService) createProfile(ctx context.Context, in models.RegisterInput, role string) (*models.UserProfile, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if !auth.IsValidEmail(email) {
		return nil, apperrors.NewValidationError(constants.FieldEmail, "invalid email address")
	}
	if err := auth.ValidatePasswordStrength(in.Password); err != nil {
		return nil, apperrors.NewValidationError("password", err.Error())
	}

	exists, err := s.users.CheckUserExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if exists {
		return nil, apperrors.NewConflictError("User", constants.FieldEmail, email)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if role == "" {
		role = constants.RoleSalesRep
		all, err := s.users.FindAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("database error: %w", err)
		}
		if len(all) == 0 {
			role = constants.RoleAdmin
		}
	}

	now := s.now().UTC()
	profile := &models.UserProfile{
		ID:           utils.GenerateID(),
		Email:        email,
		FullName:     utils.StringPtr(in.FullName),
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateUser(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	zap.L().Info("user registered", zap.String("user_id", profile.ID), zap.String("role", role))
	return profile, nil
}

func (s *AuthService) issue(p *models.UserProfile) (*models.AuthResult, error) {
	if s.tokens == nil {
		return nil, apperrors.NewUnavailableError("local authentication")
	}
	token, expiresAt, err := s.tokens.GenerateToken(p.ID, p.Email, p.DisplayName(), p.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &models.AuthResult{Token: token, ExpiresAt: expiresAt, User: p}, nil
}

// GetMe returns the caller's profile, creating it on first sight for users
// that authenticated with the external identity provider.
func (s *AuthService) GetMe(ctx context.Context, user *models.UserSession) (*models.UserProfile, error) {
	p, err := s.users.GetUserByID(ctx, user.ID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	role := user.Role
	if !constants.IsValidRole(role) {
		role = constants.RoleSalesRep
	}
	now := s.now().UTC()
	p = &models.UserProfile{
		ID:        user.ID,
		Email:     strings.ToLower(user.Email),
		FullName:  utils.StringPtr(user.Name),
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.CreateUser(ctx, p); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	zap.L().Info("profile created from token", zap.String("user_id", p.ID))
	return p, nil
}

// UpdateMe changes the caller's display name and avatar.
func (s *AuthService) UpdateMe(ctx context.Context, user *models.UserSession, in models.UpdateProfileInput) (*models.UserProfile, error) {
	if _, err := s.GetMe(ctx, user); err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if in.FullName != nil {
		fields["full_name"] = nullable(optionalText(in.FullName))
	}
	if in.AvatarURL != nil {
		fields["avatar_url"] = nullable(optionalText(in.AvatarURL))
	}
	if len(fields) > 0 {
		if err := s.users.UpdateUser(ctx, user.ID, fields); err != nil {
			return nil, mapRepoError(err, "User", user.ID)
		}
	}
	return s.GetMe(ctx, user)
}

// ListProfiles returns every profile. Admin only.
func (s *AuthService) ListProfiles(ctx context.Context, user *models.UserSession) ([]*models.UserProfile, error) {
	if !user.IsAdmin() {
		return nil, apperrors.NewPermissionError("list", "users")
	}
	profiles, err := s.users.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return profiles, nil
}

// SessionFromClaims builds the caller from validated token claims.
func SessionFromClaims(c *auth.Claims) *models.UserSession {
	role := c.Role
	if !constants.IsValidRole(role) {
		role = constants.RoleSalesRep
	}
	return &models.UserSession{ID: c.UserID(), Email: c.Email, Name: c.Name, Role: role}
}
