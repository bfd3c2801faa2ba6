package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"mindcare-chatbot-backend/models"
)

type vaultUser struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Username  string             `bson:"username"`
	Password  []byte             `bson:"password"`
	CreatedAt time.Time          `bson:"created_at"`
}

// VaultRepository stores document-vault accounts with bcrypt hashes.
type VaultRepository struct {
	coll *mongo.Collection
	cost int
}

func NewVaultRepository(db *mongo.Database, collection string, cost int) *VaultRepository {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &VaultRepository{coll: db.Collection(collection), cost: cost}
}

func (r *VaultRepository) Register(ctx context.Context, username, password string) (models.User, error) {
	username = strings.TrimSpace(username)

	existing, err := r.coll.CountDocuments(ctx, bson.M{"username": username})
	if err != nil {
		return models.User{}, fmt.Errorf("failed to check username: %w", err)
	}
	if existing > 0 {
		return models.User{}, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), r.cost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := vaultUser{
		Username:  username,
		Password:  hash,
		CreatedAt: time.Now().UTC(),
	}
	res, err := r.coll.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.User{}, ErrUsernameTaken
		}
		return models.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		user.ID = id
	}

	return mapVaultUser(user), nil
}

func (r *VaultRepository) Authenticate(ctx context.Context, username, password string) (models.User, error) {
	var user vaultUser
	err := r.coll.FindOne(ctx, bson.M{"username": strings.TrimSpace(username)}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(user.Password, []byte(password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return mapVaultUser(user), nil
}

func mapVaultUser(user vaultUser) models.User {
	return models.User{
		ID:        user.ID.Hex(),
		Username:  user.Username,
		Role:      "vault",
		CreatedAt: user.CreatedAt,
	}
}
