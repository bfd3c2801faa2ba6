package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryUserStore_CreateAndAuthenticate(t *testing.T) {
	store := NewMemoryUserStore(1000)
	ctx := context.Background()

	user, err := store.CreateAccount(ctx, " alice ", "Alice@Example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEmpty(t, user.ID)

	got, err := store.Authenticate(ctx, "alice", "password1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = store.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = store.Authenticate(ctx, "bob", "password1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestMemoryUserStore_DuplicateUsernameOrEmail(t *testing.T) {
	store := NewMemoryUserStore(1000)
	ctx := context.Background()

	_, err := store.CreateAccount(ctx, "alice", "alice@example.com", "pw")
	require.NoError(t, err)

	_, err = store.CreateAccount(ctx, "alice", "other@example.com", "pw")
	assert.ErrorIs(t, err, ErrUsernameOrEmailTaken)

	_, err = store.CreateAccount(ctx, "alice2", "ALICE@example.com", "pw")
	assert.ErrorIs(t, err, ErrUsernameOrEmailTaken)
}

func TestMemoryUserStore_NeverKeepsPlaintext(t *testing.T) {
	store := NewMemoryUserStore(1000)

	_, err := store.CreateAccount(context.Background(), "carol", "carol@example.com", "hunter22")
	require.NoError(t, err)

	stored := store.users["carol"]
	assert.NotContains(t, stored.PasswordHash, "hunter22")
	assert.Contains(t, stored.PasswordHash, "1000$")
}
