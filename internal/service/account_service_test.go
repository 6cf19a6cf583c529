package service

import (
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"account-graph/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestRegister(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	email, err := env.accounts.Register(ctx, RegisterInput{Email: " Alice@Example.com ", Name: "Alice", Password: "pa55word"})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email)

	entry := env.hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "account registered", entry.Message)
	assert.Equal(t, logrus.InfoLevel, entry.Level)

	_, err = env.accounts.Register(ctx, RegisterInput{Email: "alice@example.com", Name: "Other", Password: "x"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	stored, err := env.repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	full, err := env.repo.GetByID(ctx, stored.ID, domain.ProjectPasswordHash|domain.ProjectFollowing)
	require.NoError(t, err)
	assert.NotEqual(t, "pa55word", full.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(full.PasswordHash), []byte("pa55word")))
	assert.Empty(t, full.Following)
}

func TestRegisterRejectsMissingFields(t *testing.T) {
	env := newTestEnv(t)
	for _, in := range []RegisterInput{
		{Name: "n", Password: "p"},
		{Email: "e@example.com", Password: "p"},
		{Email: "e@example.com", Name: "n"},
	} {
		_, err := env.accounts.Register(context.Background(), in)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
}

func TestRejectsPasswordLongerThanBcryptLimit(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	long := strings.Repeat("x", maxPasswordBytes+1)

	_, err := env.accounts.Register(ctx, RegisterInput{Email: "long@example.com", Name: "Long", Password: long})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = env.repo.GetByEmail(ctx, "long@example.com")
	assert.Error(t, err)

	id := env.register(t, "short@example.com")
	_, err = env.accounts.Update(ctx, id, domain.AccountPatch{Password: &long})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestListAccounts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	accounts, err := env.accounts.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, accounts)
	assert.Empty(t, accounts)

	env.register(t, "a@example.com")
	env.register(t, "b@example.com")

	accounts, err = env.accounts.List(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	for _, account := range accounts {
		assert.Empty(t, account.PasswordHash)
		assert.Nil(t, account.Following)
	}
}

func TestGetByIDProjection(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.register(t, "a@example.com")
	b := env.register(t, "b@example.com")
	_, err := env.follows.Follow(ctx, a, b)
	require.NoError(t, err)

	plain, err := env.accounts.GetByID(ctx, a, domain.ParseFieldSpec(""))
	require.NoError(t, err)
	assert.Empty(t, plain.PasswordHash)
	assert.Nil(t, plain.Following)

	withFollowing, err := env.accounts.GetByID(ctx, a, domain.ParseFieldSpec("following"))
	require.NoError(t, err)
	assert.Equal(t, []string{b}, withFollowing.Following)
	assert.Empty(t, withFollowing.PasswordHash)

	_, err = env.accounts.GetByID(ctx, domain.NewID(), domain.ProjectDefault)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = env.accounts.GetByID(ctx, "nope", domain.ProjectDefault)
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.register(t, "a@example.com")
	env.register(t, "b@example.com")

	applied, err := env.accounts.Update(ctx, a, domain.AccountPatch{
		Name:     strPtr(" Alice "),
		Password: strPtr("n3w-secret"),
	})
	require.NoError(t, err)
	require.NotNil(t, applied.Password)
	assert.Equal(t, "n3w-secret", *applied.Password)
	assert.Equal(t, "Alice", *applied.Name)
	assert.Nil(t, applied.Email)

	stored, err := env.repo.GetByID(ctx, a, domain.ProjectPasswordHash)
	require.NoError(t, err)
	assert.Equal(t, "Alice", stored.Name)
	assert.NotEqual(t, "n3w-secret", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("n3w-secret")))

	// keeping one's own email is not a conflict
	_, err = env.accounts.Update(ctx, a, domain.AccountPatch{Email: strPtr("A@example.com")})
	assert.NoError(t, err)

	_, err = env.accounts.Update(ctx, a, domain.AccountPatch{Email: strPtr("b@example.com")})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	_, err = env.accounts.Update(ctx, a, domain.AccountPatch{})
	assert.ErrorIs(t, err, ErrEmptyPatch)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = env.accounts.Update(ctx, domain.NewID(), domain.AccountPatch{Name: strPtr("ghost")})
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	a := env.register(t, "a@example.com")

	_, err := env.accounts.Delete(ctx, domain.NewID())
	assert.ErrorIs(t, err, ErrAccountNotFound)

	deleted, err := env.accounts.Delete(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, a, deleted)

	_, err = env.accounts.GetByID(ctx, a, domain.ProjectDefault)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	// the email is free again
	_, err = env.accounts.Register(ctx, RegisterInput{Email: "a@example.com", Name: "again", Password: "p"})
	assert.NoError(t, err)
}
