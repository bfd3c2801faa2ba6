package database

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"mindcare-chatbot-backend/models"
	"mindcare-chatbot-backend/utils"
)

var (
	ErrUsernameOrEmailTaken = errors.New("username or email already registered")
	ErrUsernameTaken        = errors.New("username already exists")
	ErrInvalidCredentials   = errors.New("invalid credentials")
)

type UserModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username     string    `gorm:"uniqueIndex;not null"`
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserModel) TableName() string {
	return "users"
}

// UserRepository is the relational credential store.
type UserRepository struct {
	db         *gorm.DB
	iterations int
}

func NewUserRepository(db *gorm.DB, iterations int) *UserRepository {
	return &UserRepository{db: db, iterations: iterations}
}

func (r *UserRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&UserModel{})
}

func (r *UserRepository) CreateAccount(ctx context.Context, username, email, password string) (models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	var existing int64
	err := r.db.WithContext(ctx).Model(&UserModel{}).
		Where("username = ? OR email = ?", username, email).
		Count(&existing).Error
	if err != nil {
		return models.User{}, err
	}
	if existing > 0 {
		return models.User{}, ErrUsernameOrEmailTaken
	}

	hash, err := utils.HashPassword(password, r.iterations)
	if err != nil {
		return models.User{}, err
	}

	now := time.Now().UTC()
	user := UserModel{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := r.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.User{}, ErrUsernameOrEmailTaken
		}
		return models.User{}, err
	}

	return mapUserModel(user), nil
}

func (r *UserRepository) Authenticate(ctx context.Context, username, password string) (models.User, error) {
	var user UserModel
	err := r.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, err
	}

	ok, err := utils.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return models.User{}, ErrInvalidCredentials
	}
	return mapUserModel(user), nil
}

func mapUserModel(user UserModel) models.User {
	return models.User{
		ID:        user.ID.String(),
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}
}

// MemoryUserStore is used when no relational database is configured.
type MemoryUserStore struct {
	mu         sync.RWMutex
	users      map[string]UserModel
	iterations int
}

func NewMemoryUserStore(iterations int) *MemoryUserStore {
	return &MemoryUserStore{
		users:      make(map[string]UserModel),
		iterations: iterations,
	}
}

func (s *MemoryUserStore) CreateAccount(_ context.Context, username, email, password string) (models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	hash, err := utils.HashPassword(password, s.iterations)
	if err != nil {
		return models.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username || u.Email == email {
			return models.User{}, ErrUsernameOrEmailTaken
		}
	}

	now := time.Now().UTC()
	user := UserModel{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[username] = user
	return mapUserModel(user), nil
}

func (s *MemoryUserStore) Authenticate(_ context.Context, username, password string) (models.User, error) {
	s.mu.RLock()
	user, ok := s.users[strings.TrimSpace(username)]
	s.mu.RUnlock()
	if !ok {
		return models.User{}, ErrInvalidCredentials
	}

	valid, err := utils.VerifyPassword(password, user.PasswordHash)
	if err != nil || !valid {
		return models.User{}, ErrInvalidCredentials
	}
	return mapUserModel(user), nil
}
