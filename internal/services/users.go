package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/nihal-ranchod/ARMMI-pandasi/internal/apperrors"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/docstore"
	"github.com/nihal-ranchod/ARMMI-pandasi/internal/entity"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

const (
	minPasswordLength = 8
	// bcrypt only accepts up to 72 bytes of input.
	maxPasswordBytes = 72
)

type RegisterInput struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	AdminKey string `json:"admin_key"`
}

type UserStats struct {
	Datasets int64 `json:"datasets"`
	Queries  int64 `json:"queries"`
}

type UserServiceConfig struct {
	Users    UserStore
	Sessions SessionStore
	Datasets DatasetStore
	History  HistoryStore
	Mailer   Mailer
	Logger   *zap.Logger

	AdminRegistrationKey string
	SessionTTL           time.Duration
}

type UserService struct {
	users    UserStore
	sessions SessionStore
	datasets DatasetStore
	history  HistoryStore
	mailer   Mailer
	logger   *zap.Logger

	adminKey   string
	sessionTTL time.Duration
	now        func() time.Time
}

func NewUserService(cfg UserServiceConfig) *UserService {
	s := &UserService{
		users:      cfg.Users,
		sessions:   cfg.Sessions,
		datasets:   cfg.Datasets,
		history:    cfg.History,
		mailer:     cfg.Mailer,
		logger:     cfg.Logger,
		adminKey:   cfg.AdminRegistrationKey,
		sessionTTL: cfg.SessionTTL,
		now:        time.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = 24 * time.Hour
	}
	return s
}

// Register creates a regular user account.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*entity.User, error) {
	in = normalizeRegistration(in)
	if err := validateRegistration(in); err != nil {
		return nil, err
	}
	return s.create(ctx, in, entity.RoleUser)
}

// RegisterAdmin creates an admin account when the caller presents the
// configured registration key.
func (s *UserService) RegisterAdmin(ctx context.Context, in RegisterInput) (*entity.User, error) {
	in = normalizeRegistration(in)
	switch {
	case in.Email == "":
		return nil, apperrors.Validation("Email is required")
	case in.Name == "":
		return nil, apperrors.Validation("Name is required")
	case in.Password == "":
		return nil, apperrors.Validation("Password is required")
	case in.AdminKey == "":
		return nil, apperrors.Validation("Admin key is required")
	}
	if s.adminKey == "" {
		s.logger.Error("ADMIN_REGISTRATION_KEY is not set")
		return nil, apperrors.New(apperrors.KindNotImplemented, "Admin registration not configured")
	}
	if subtle.ConstantTimeCompare([]byte(in.AdminKey), []byte(s.adminKey)) != 1 {
		s.logger.Warn("Invalid admin key attempted", zap.String("email", in.Email))
		return nil, apperrors.Forbidden("Invalid admin key")
	}
	if err := validateRegistration(in); err != nil {
		return nil, err
	}
	return s.create(ctx, in, entity.RoleAdmin)
}

func (s *UserService) create(ctx context.Context, in RegisterInput, role string) (*entity.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	user := &entity.User{
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, docstore.ErrDuplicate) {
			return nil, apperrors.Conflict("User with this email already exists")
		}
		return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to create user", err)
	}
	s.logger.Info("Registered user", zap.String("email", user.Email), zap.String("role", user.Role))
	s.welcome(ctx, user)
	return user, nil
}

func (s *UserService) welcome(ctx context.Context, user *entity.User) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.SendWelcome(ctx, user.Email, user.Name); err != nil {
		s.logger.Warn("Failed to send welcome email", zap.String("email", user.Email), zap.Error(err))
	}
}

func normalizeRegistration(in RegisterInput) RegisterInput {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	in.AdminKey = strings.TrimSpace(in.AdminKey)
	return in
}

func validateRegistration(in RegisterInput) error {
	switch {
	case in.Email == "":
		return apperrors.Validation("Email is required")
	case in.Name == "":
		return apperrors.Validation("Name is required")
	case in.Password == "":
		return apperrors.Validation("Password is required")
	case !emailPattern.MatchString(in.Email):
		return apperrors.Validation("Invalid email format")
	}
	return ValidatePassword(in.Password)
}

// ValidatePassword requires eight characters, at most 72 bytes, with at least
// one letter and one digit.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.Validation("Password must be at least 8 characters long")
	}
	if len(password) > maxPasswordBytes {
		return apperrors.Validation("Password must be at most 72 bytes long")
	}
	var letter, digit bool
	for _, r := range password {
		switch {
		case r <= unicode.MaxASCII && unicode.IsLetter(r):
			letter = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	if !letter {
		return apperrors.Validation("Password must contain at least one letter")
	}
	if !digit {
		return apperrors.Validation("Password must contain at least one number")
	}
	return nil
}

// Authenticate checks an email and password. Unknown emails and wrong
// passwords get the same error.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*entity.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.Validation("Email and password are required")
	}
	invalid := apperrors.Unauthorized("Invalid email or password")

	user, err := s.users.FindUserByEmail(ctx, email)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, invalid
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to look up user", err)
	}
	if user.PasswordHash == "" {
		return nil, invalid
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, invalid
	}
	return user, nil
}

func (s *UserService) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	user, err := s.users.FindUserByID(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperrors.NotFound("User not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to look up user", err)
	}
	return user, nil
}

// FindOrCreateOAuthUser returns the account for a verified Google email,
// creating a passwordless regular user on first sign-in.
func (s *UserService) FindOrCreateOAuthUser(ctx context.Context, email, name, picture string) (*entity.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !emailPattern.MatchString(email) {
		return nil, apperrors.Validation("Invalid email format")
	}
	user, err := s.users.FindUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to look up user", err)
	}

	if strings.TrimSpace(name) == "" {
		name = email[:strings.IndexByte(email, '@')]
	}
	user = &entity.User{Email: email, Name: strings.TrimSpace(name), ProfilePicture: picture, Role: entity.RoleUser}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, docstore.ErrDuplicate) {
			// Lost a race with a concurrent first sign-in.
			return s.users.FindUserByEmail(ctx, email)
		}
		return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to create user", err)
	}
	s.logger.Info("Created user from Google sign-in", zap.String("email", email))
	s.welcome(ctx, user)
	return user, nil
}

func (s *UserService) Stats(ctx context.Context, userID uuid.UUID) (*UserStats, error) {
	datasets, err := s.datasets.CountDatasets(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to count datasets", err)
	}
	queries, err := s.history.CountHistory(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to count queries", err)
	}
	return &UserStats{Datasets: datasets, Queries: queries}, nil
}

// CreateSession records a login and returns the server-side session.
func (s *UserService) CreateSession(ctx context.Context, user *entity.User) (*entity.Session, error) {
	now := s.now().UTC()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("Failed to update last login", zap.String("user_id", user.ID.String()), zap.Error(err))
	} else {
		user.LastLogin = &now
	}

	session := &entity.Session{
		ID:        uuid.New(),
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		IsAdmin:   user.IsAdmin(),
		ExpiresAt: now.Add(s.sessionTTL),
		CreatedAt: now,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to create session", err)
	}
	s.logger.Info("Created session", zap.String("email", user.Email), zap.String("role", user.Role))
	return session, nil
}

// ResolveSession re-reads the session's user on every call. A session whose
// user no longer exists is deleted.
func (s *UserService) ResolveSession(ctx context.Context, sessionID uuid.UUID) (*entity.User, error) {
	session, err := s.sessions.GetSession(ctx, sessionID)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperrors.Unauthorized("Authentication required")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to read session", err)
	}
	if !s.now().Before(session.ExpiresAt) {
		s.dropSession(ctx, sessionID)
		return nil, apperrors.Unauthorized("Session expired, please login again")
	}

	user, err := s.users.FindUserByID(ctx, session.UserID)
	if errors.Is(err, docstore.ErrNotFound) {
		s.dropSession(ctx, sessionID)
		return nil, apperrors.Unauthorized("Invalid session, please login again")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "Failed to look up user", err)
	}
	return user, nil
}

func (s *UserService) DestroySession(ctx context.Context, sessionID uuid.UUID) error {
	err := s.sessions.DeleteSession(ctx, sessionID)
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return apperrors.Wrap(apperrors.KindInternal, "Failed to logout", err)
	}
	return nil
}

func (s *UserService) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpiredSessions(ctx, s.now().UTC())
}

func (s *UserService) dropSession(ctx context.Context, sessionID uuid.UUID) {
	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil && !errors.Is(err, docstore.ErrNotFound) {
		s.logger.Warn("Failed to delete session", zap.String("session_id", sessionID.String()), zap.Error(err))
	}
}
