package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"mindcare-chatbot-backend/apperrors"
	"mindcare-chatbot-backend/database"
	"mindcare-chatbot-backend/logger"
	"mindcare-chatbot-backend/models"
)

// CredentialStore is the relational account store. Implementations hash
// passwords; nothing here sees a stored hash.
type CredentialStore interface {
	CreateAccount(ctx context.Context, username, email, password string) (models.User, error)
	Authenticate(ctx context.Context, username, password string) (models.User, error)
}

// VaultStore is the document-vault account store.
type VaultStore interface {
	Register(ctx context.Context, username, password string) (models.User, error)
	Authenticate(ctx context.Context, username, password string) (models.User, error)
}

type SessionStarter interface {
	StartSession(ctx context.Context, username string, channel models.MessageChannel) (models.ConversationState, error)
	EndSession(ctx context.Context, sessionID string) error
}

const (
	vaultMinUsername = 3
	vaultMinPassword = 6
	// bcrypt rejects longer inputs
	vaultMaxPassword = 72
)

type AuthService struct {
	users     CredentialStore
	vault     VaultStore
	sessions  SessionStarter
	companion *CompanionService
	now       func() time.Time
}

// NewAuthService wires both login flows. vault may be nil when the
// document vault is disabled.
func NewAuthService(users CredentialStore, vault VaultStore, sessions SessionStarter, companion *CompanionService) *AuthService {
	return &AuthService{
		users:     users,
		vault:     vault,
		sessions:  sessions,
		companion: companion,
		now:       time.Now,
	}
}

func (s *AuthService) VaultEnabled() bool {
	return s.vault != nil
}

func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (models.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)

	switch {
	case username == "":
		return models.User{}, apperrors.Validation("username", "Please fill out all fields.")
	case email == "":
		return models.User{}, apperrors.Validation("email", "Please fill out all fields.")
	case req.Password == "":
		return models.User{}, apperrors.Validation("password", "Please fill out all fields.")
	case req.ConfirmPassword == "":
		return models.User{}, apperrors.Validation("confirm_password", "Please fill out all fields.")
	case req.Password != req.ConfirmPassword:
		return models.User{}, apperrors.Validation("confirm_password", "Passwords do not match.")
	}

	user, err := s.users.CreateAccount(ctx, username, email, req.Password)
	if errors.Is(err, database.ErrUsernameOrEmailTaken) {
		return models.User{}, apperrors.Conflict(err, "Username or email already exists. Try a different one.")
	}
	if err != nil {
		return models.User{}, apperrors.Collaborator(err, "failed to create account")
	}

	logger.WithField("username", user.Username).Info("Account created")
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := requireCredentials(req); err != nil {
		return nil, err
	}

	user, err := s.users.Authenticate(ctx, strings.TrimSpace(req.Username), req.Password)
	if errors.Is(err, database.ErrInvalidCredentials) {
		return nil, apperrors.Unauthorized("Invalid username or password.")
	}
	if err != nil {
		return nil, apperrors.Collaborator(err, "failed to verify credentials")
	}
	return s.openSession(ctx, user)
}

func (s *AuthService) VaultRegister(ctx context.Context, req models.RegisterRequest) (models.User, error) {
	if s.vault == nil {
		return models.User{}, apperrors.NotFound("document vault is not enabled")
	}

	username := strings.TrimSpace(req.Username)
	switch {
	case username == "" || req.Password == "" || req.ConfirmPassword == "":
		return models.User{}, apperrors.Validation("username", "Fill all fields!")
	case len([]rune(username)) < vaultMinUsername:
		return models.User{}, apperrors.Validation("username", "Username too short!")
	case len([]rune(req.Password)) < vaultMinPassword:
		return models.User{}, apperrors.Validation("password", "Password too short!")
	case len(req.Password) > vaultMaxPassword:
		return models.User{}, apperrors.Validation("password", "Password too long!")
	case req.Password != req.ConfirmPassword:
		return models.User{}, apperrors.Validation("confirm_password", "Passwords don't match!")
	}

	user, err := s.vault.Register(ctx, username, req.Password)
	if errors.Is(err, database.ErrUsernameTaken) {
		return models.User{}, apperrors.Conflict(err, "Username already exists!")
	}
	if err != nil {
		return models.User{}, apperrors.Collaborator(err, "failed to create vault account")
	}
	return user, nil
}

func (s *AuthService) VaultLogin(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if s.vault == nil {
		return nil, apperrors.NotFound("document vault is not enabled")
	}
	if err := requireCredentials(req); err != nil {
		return nil, err
	}

	user, err := s.vault.Authenticate(ctx, strings.TrimSpace(req.Username), req.Password)
	if errors.Is(err, database.ErrInvalidCredentials) {
		return nil, apperrors.Unauthorized("Invalid credentials!")
	}
	if err != nil {
		return nil, apperrors.Collaborator(err, "failed to verify vault credentials")
	}
	return s.openSession(ctx, user)
}

func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return apperrors.Validation("session_id", "session_id is required")
	}
	return s.sessions.EndSession(ctx, sessionID)
}

func (s *AuthService) openSession(ctx context.Context, user models.User) (*models.LoginResponse, error) {
	state, err := s.sessions.StartSession(ctx, user.Username, models.ChannelWeb)
	if err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"username":   user.Username,
		"session_id": state.SessionID,
	}).Info("User logged in")

	return &models.LoginResponse{
		SessionID: state.SessionID,
		User:      user,
		Greeting:  s.companion.Greeting(s.now()),
	}, nil
}

func requireCredentials(req models.LoginRequest) error {
	if strings.TrimSpace(req.Username) == "" {
		return apperrors.Validation("username", "Please provide both username and password.")
	}
	if req.Password == "" {
		return apperrors.Validation("password", "Please provide both username and password.")
	}
	return nil
}
