package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/checkin/internal/audit"
	"github.com/Togather-Foundation/checkin/internal/auth"
	"github.com/Togather-Foundation/checkin/internal/metrics"
	"github.com/Togather-Foundation/checkin/internal/sanitize"
	"github.com/Togather-Foundation/checkin/internal/validation"
)

// PasswordHasher is the credential capability used by the service.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// TokenIssuer mints bearer tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID int64, username string) (string, error)
	Expiry() time.Duration
}

// Service handles registration, login and admin user management.
type Service struct {
	repo                   Repository
	hasher                 PasswordHasher
	tokens                 TokenIssuer
	auditLogger            *audit.Logger
	allowAdminRegistration bool
	now                    func() time.Time
	logger                 zerolog.Logger
}

func NewService(
	repo Repository,
	hasher PasswordHasher,
	tokens TokenIssuer,
	auditLogger *audit.Logger,
	allowAdminRegistration bool,
	logger zerolog.Logger,
) *Service {
	return &Service{
		repo:                   repo,
		hasher:                 hasher,
		tokens:                 tokens,
		auditLogger:            auditLogger,
		allowAdminRegistration: allowAdminRegistration,
		now:                    time.Now,
		logger:                 logger.With().Str("component", "users").Logger(),
	}
}

// RegisterParams is the self-service registration input.
type RegisterParams struct {
	Username string `json:"username" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,max=255"`
	Password string `json:"password" validate:"required,max=72"`
	Role     string `json:"role"`
}

// CreateUserParams is the admin user creation input.
type CreateUserParams struct {
	Username string `json:"username" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,max=255"`
	Password string `json:"password" validate:"required,max=72"`
	Role     string `json:"role"`
}

// UpdateUserParams overwrites every mutable field of a user.
type UpdateUserParams struct {
	Username string `json:"username" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,max=255"`
	Password string `json:"password" validate:"required,max=72"`
	Role     string `json:"role"`
}

// Register creates a user from the public registration endpoint.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*User, error) {
	params.Username, params.Email = trimIdentity(params.Username, params.Email)
	role, err := checkInput(params, params.Email, params.Password, params.Role)
	if err != nil {
		return nil, err
	}
	if role == auth.RoleAdmin && !s.allowAdminRegistration {
		return nil, ErrAdminSelfAssign
	}

	user, err := s.create(ctx, params.Username, params.Email, params.Password, role)
	s.recordRegistration("self", err)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("user registered")
	return user, nil
}

// CreateUser creates a user on behalf of an admin.
func (s *Service) CreateUser(ctx context.Context, params CreateUserParams) (*User, error) {
	params.Username, params.Email = trimIdentity(params.Username, params.Email)
	role, err := checkInput(params, params.Email, params.Password, params.Role)
	if err != nil {
		return nil, err
	}

	user, err := s.create(ctx, params.Username, params.Email, params.Password, role)
	s.recordRegistration("admin", err)
	if err != nil {
		s.auditLogger.Record(ctx, "admin.user.create", "user", "", audit.StatusFailure, map[string]string{"error": err.Error()})
		return nil, err
	}

	s.auditLogger.Record(ctx, "admin.user.create", "user", strconv.FormatInt(user.ID, 10), audit.StatusSuccess, map[string]string{
		"username": user.Username,
		"role":     string(user.Role),
	})
	return user, nil
}

// EnsureAdmin creates an admin account unless the username or email is
// already in use. It reports whether a user was created.
func (s *Service) EnsureAdmin(ctx context.Context, username, email, password string) (bool, error) {
	params := CreateUserParams{Username: username, Email: email, Password: password, Role: string(auth.RoleAdmin)}
	params.Username, params.Email = trimIdentity(params.Username, params.Email)
	role, err := checkInput(params, params.Email, params.Password, params.Role)
	if err != nil {
		return false, err
	}

	_, err = s.create(ctx, params.Username, params.Email, params.Password, role)
	switch {
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrUsernameTaken), errors.Is(err, ErrDuplicateUser):
		return false, nil
	case err != nil:
		s.recordRegistration("bootstrap", err)
		return false, err
	}
	s.recordRegistration("bootstrap", nil)
	return true, nil
}

// create runs the uniqueness pre-checks and the insert in one transaction.
// The unique constraints remain the final arbiter under concurrent requests.
func (s *Service) create(ctx context.Context, username, email, password string, role auth.Role) (*User, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	txRepo, txCommitter, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = txCommitter.Rollback(ctx) }()

	if err := ensureFree(ctx, txRepo, 0, username, email); err != nil {
		return nil, err
	}

	user, err := txRepo.Create(ctx, CreateParams{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedOn:    s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateUser) {
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := txCommitter.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return user, nil
}

// Login verifies credentials and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (*Token, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		metrics.AuthFailuresTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, ErrInvalidCredentials
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			metrics.AuthFailuresTotal.WithLabelValues("invalid_credentials").Inc()
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		metrics.AuthFailuresTotal.WithLabelValues("invalid_credentials").Inc()
		s.logger.Warn().Int64("user_id", user.ID).Msg("login rejected")
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &Token{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   s.tokens.Expiry(),
	}, nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return list, nil
}

// UpdateUser overwrites username, email, password and role.
func (s *Service) UpdateUser(ctx context.Context, id int64, params UpdateUserParams) (*User, error) {
	params.Username, params.Email = trimIdentity(params.Username, params.Email)
	role, err := checkInput(params, params.Email, params.Password, params.Role)
	if err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	txRepo, txCommitter, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = txCommitter.Rollback(ctx) }()

	if _, err := txRepo.GetByID(ctx, id); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if err := ensureFree(ctx, txRepo, id, params.Username, params.Email); err != nil {
		return nil, err
	}

	user, err := txRepo.Update(ctx, id, UpdateParams{
		Username:     params.Username,
		Email:        params.Email,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrUserNotFound):
			return nil, ErrUserNotFound
		case errors.Is(err, ErrDuplicateUser):
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	if err := txCommitter.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	s.auditLogger.Record(ctx, "admin.user.update", "user", strconv.FormatInt(id, 10), audit.StatusSuccess, map[string]string{
		"username": user.Username,
		"role":     string(user.Role),
	})
	return user, nil
}

// DeleteUser removes a user together with its check-ins.
func (s *Service) DeleteUser(ctx context.Context, id int64) (*User, error) {
	user, err := s.repo.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to delete user: %w", err)
	}

	s.auditLogger.Record(ctx, "admin.user.delete", "user", strconv.FormatInt(id, 10), audit.StatusSuccess, map[string]string{
		"username": user.Username,
	})
	return user, nil
}

// ensureFree fails when username or email belongs to a user other than selfID.
func ensureFree(ctx context.Context, repo Repository, selfID int64, username, email string) error {
	existing, err := repo.GetByEmail(ctx, email)
	switch {
	case err == nil && existing.ID != selfID:
		return ErrEmailTaken
	case err != nil && !errors.Is(err, ErrUserNotFound):
		return fmt.Errorf("failed to check email: %w", err)
	}

	existing, err = repo.GetByUsername(ctx, username)
	switch {
	case err == nil && existing.ID != selfID:
		return ErrUsernameTaken
	case err != nil && !errors.Is(err, ErrUserNotFound):
		return fmt.Errorf("failed to check username: %w", err)
	}
	return nil
}

// trimIdentity strips markup from the username and whitespace from both.
func trimIdentity(username, email string) (string, string) {
	return sanitize.Text(username), strings.TrimSpace(email)
}

// checkInput validates the payload and parses the requested role. The
// struct tags count runes, so the bcrypt byte limit is checked here.
func checkInput(payload any, email, password, rawRole string) (auth.Role, error) {
	if !validation.Email(email) {
		return "", ErrInvalidEmail
	}
	if err := validation.Struct(payload); err != nil {
		return "", err
	}
	if len(password) > auth.MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	role, err := auth.ParseRole(rawRole)
	if err != nil {
		return "", ErrInvalidRole
	}
	return role, nil
}

func (s *Service) recordRegistration(source string, err error) {
	result := "created"
	if err != nil {
		result = "failed"
		if errors.Is(err, ErrEmailTaken) || errors.Is(err, ErrUsernameTaken) || errors.Is(err, ErrDuplicateUser) {
			result = "conflict"
		}
	}
	metrics.RegistrationsTotal.WithLabelValues(source, result).Inc()
}
