package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/solite/internal/auth"
	"github.com/charlesng35/solite/internal/database"
	"github.com/charlesng35/solite/internal/models"
	"github.com/charlesng35/solite/pkg/crypto"
	apperrors "github.com/charlesng35/solite/pkg/errors"
	"github.com/charlesng35/solite/pkg/logger"
	"github.com/charlesng35/solite/pkg/metrics"
)

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found.", http.StatusNotFound)
	// ErrUserExists is returned when signing up with an email that is already registered.
	ErrUserExists = apperrors.New("USER_EXISTS", "User already exists.", http.StatusBadRequest)
)

// RegisterInput carries the sign-up payload.
type RegisterInput struct {
	Email    string
	Password string
}

// UserSummary is the public projection of a user.
type UserSummary struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// TokenIssuer issues signed access tokens.
type TokenIssuer interface {
	GenerateAccessToken(input auth.AccessTokenInput) (string, error)
}

// UserService is the user directory: registration, credential checks and lookups.
type UserService struct {
	db     *gorm.DB
	tokens TokenIssuer
	hasher crypto.Hasher
	log    *zap.Logger
}

// UserOption customises a UserService.
type UserOption func(*UserService)

// WithPasswordHasher overrides the bcrypt cost used for new passwords.
func WithPasswordHasher(h crypto.Hasher) UserOption {
	return func(s *UserService) { s.hasher = h }
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB, tokens TokenIssuer, opts ...UserOption) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	if tokens == nil {
		return nil, errors.New("user service: token issuer is required")
	}
	s := &UserService{
		db:     db,
		tokens: tokens,
		hasher: crypto.DefaultHasher,
		log:    logger.WithModule("users"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register stores a new user with a hashed password.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	email := normaliseEmail(input.Email)
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}
	if strings.TrimSpace(input.Password) == "" {
		return nil, apperrors.NewBadRequest("password is required")
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("user service: check email: %w", err)
	}
	if existing > 0 {
		return nil, ErrUserExists
	}

	hashed, err := s.hasher.Hash(input.Password)
	if errors.Is(err, crypto.ErrPasswordTooLong) {
		return nil, apperrors.NewBadRequest("password must be at most 72 bytes")
	}
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := &models.User{Email: email, Password: hashed}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("user service: create user: %w", err)
	}

	s.log.Info("user registered", zap.String("user_id", user.ID))
	return user, nil
}

// Authenticate checks the credentials and returns a signed access token.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (string, *models.User, error) {
	ctx = ensureContext(ctx)

	email = normaliseEmail(email)
	if email == "" || password == "" {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return "", nil, apperrors.ErrInvalidCredentials.WithMessage("Invalid credentials.")
	}

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return "", nil, apperrors.ErrInvalidCredentials.WithMessage("Invalid credentials.")
	}
	if err != nil {
		return "", nil, fmt.Errorf("user service: load user: %w", err)
	}

	if !s.hasher.Verify(user.Password, password) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return "", nil, apperrors.ErrInvalidCredentials.WithMessage("Invalid credentials.")
	}

	token, err := s.tokens.GenerateAccessToken(auth.AccessTokenInput{UserID: user.ID, Email: user.Email})
	if err != nil {
		return "", nil, fmt.Errorf("user service: issue token: %w", err)
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	return token, &user, nil
}

// GetByID loads a user by identifier.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrUserNotFound
	}

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get user: %w", err)
	}
	return &user, nil
}

// GetEmail returns the email address registered for the user.
func (s *UserService) GetEmail(ctx context.Context, id string) (string, error) {
	user, err := s.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return user.Email, nil
}

// List returns every user as id/email pairs, oldest first.
func (s *UserService) List(ctx context.Context) ([]UserSummary, error) {
	ctx = ensureContext(ctx)

	var users []models.User
	if err := s.db.WithContext(ctx).
		Select("id", "email").
		Order("created_at ASC").
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("user service: list users: %w", err)
	}

	out := make([]UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, UserSummary{ID: u.ID, Email: u.Email})
	}
	return out, nil
}
