package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"query_quest/internal/common"
	"query_quest/internal/common/security"
	"query_quest/internal/domain/model"
	"query_quest/internal/domain/repository"
	"query_quest/internal/platform/cache"
	"query_quest/internal/platform/email"
	"query_quest/internal/platform/metrics"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const verificationTokenBytes = 32

type AuthService struct {
	userRepo  repository.UserRepository
	directory *DirectoryService
	emailSvc  email.Service
	denylist  *cache.TokenDenylist
	validate  *validator.Validate
	logger    *zap.SugaredLogger

	frontendBaseURL string
}

func NewAuthService(
	userRepo repository.UserRepository,
	directory *DirectoryService,
	emailSvc email.Service,
	denylist *cache.TokenDenylist,
	logger *zap.SugaredLogger,
	frontendBaseURL string,
) *AuthService {
	return &AuthService{
		userRepo:        userRepo,
		directory:       directory,
		emailSvc:        emailSvc,
		denylist:        denylist,
		validate:        validator.New(),
		logger:          logger,
		frontendBaseURL: frontendBaseURL,
	}
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// Register provisions a self-service account. The email must match an
// institution suffix; the inferred role is assigned, admin never is.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*model.User, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%v: %w", err, common.ErrValidation)
	}

	validation, err := s.directory.ValidateEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if !validation.IsValid {
		return nil, fmt.Errorf("%s: %w", validation.Message, common.ErrValidation)
	}

	normalizedEmail := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.userRepo.FindByEmail(ctx, normalizedEmail); err == nil {
		return nil, fmt.Errorf("an account with this email already exists: %w", common.ErrConflict)
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing account: %w", err)
	}

	hashedPassword, err := security.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	token, err := security.GenerateOpaqueToken(verificationTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification token: %w", err)
	}

	user := &model.User{
		ID:                uuid.NewString(),
		Name:              req.Name,
		Email:             normalizedEmail,
		HashedPassword:    hashedPassword,
		Role:              validation.Role,
		VerificationToken: &token,
		IsEmailVerified:   false,
		InstitutionID:     &validation.Institution.ID,
	}

	if err := s.userRepo.Create(ctx, nil, user); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	metrics.Registrations.Inc()

	// Delivery failure must not undo account creation; the user stays
	// unverified and can be resent a link.
	msg := email.Message{
		ToName:  user.Name,
		ToAddr:  user.Email,
		Subject: "Verify your Query Quest account",
		Body: fmt.Sprintf("Hi %s,\n\nWelcome to Query Quest! Verify your email by visiting:\n%s/verify-email?token=%s\n",
			user.Name, s.frontendBaseURL, token),
	}
	if err := s.emailSvc.Send(msg); err != nil {
		s.logger.Errorw("verification email delivery failed", "user_id", user.ID, "err", err)
	}

	return sanitizeUser(user), nil
}

// Login checks credentials and verification state, stamps last_login and
// issues a session token.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, fmt.Errorf("email and password are required: %w", common.ErrValidation)
	}

	user, err := s.userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("invalid credentials: %w", common.ErrUnauthorized)
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	if !security.CheckPasswordHash(req.Password, user.HashedPassword) {
		return nil, fmt.Errorf("invalid credentials: %w", common.ErrUnauthorized)
	}
	if !user.IsEmailVerified {
		return nil, fmt.Errorf("email address not verified: %w", common.ErrForbidden)
	}

	now := time.Now().UTC()
	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("failed to update last login: %w", err)
	}
	user.LastLogin = &now

	token, err := security.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &AuthResponse{User: sanitizeUser(user), Token: token}, nil
}

// VerifyEmail consumes a verification token.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, fmt.Errorf("verification token is required: %w", common.ErrValidation)
	}
	user, err := s.userRepo.FindByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("unknown or expired verification token: %w", common.ErrBadRequest)
		}
		return nil, fmt.Errorf("failed to look up verification token: %w", err)
	}
	if err := s.userRepo.MarkVerified(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("failed to mark account verified: %w", err)
	}
	user.IsEmailVerified = true
	user.VerificationToken = nil
	return sanitizeUser(user), nil
}

// Logout revokes the presented session token until its natural expiry.
func (s *AuthService) Logout(ctx context.Context, jti string, expiresAt time.Time) error {
	if err := s.denylist.Revoke(ctx, jti, expiresAt); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// GetAccount returns the sanitized account for the session user.
func (s *AuthService) GetAccount(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func sanitizeUser(user *model.User) *model.User {
	u := *user
	u.HashedPassword = ""
	u.VerificationToken = nil
	return &u
}
