package mongodb

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"account-graph/internal/domain"
	"account-graph/internal/repository"
)

const testURIEnv = "ACCOUNTGRAPH_TEST_MONGO_URI"

func newTestRepo(t *testing.T) repository.AccountRepository {
	t.Helper()
	uri := os.Getenv(testURIEnv)
	if uri == "" {
		t.Skipf("%s not set", testURIEnv)
	}

	ctx := context.Background()
	client, err := Connect(ctx, uri)
	require.NoError(t, err)

	database := "accountgraph_test_" + strings.ReplaceAll(domain.NewID(), "-", "")
	t.Cleanup(func() {
		_ = client.Database(database).Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})

	repo := NewAccountRepository(client, database, "accounts")
	require.NoError(t, repo.Init(ctx))
	return repo
}

func createAccount(t *testing.T, repo repository.AccountRepository, email string) string {
	t.Helper()
	id, err := repo.Create(context.Background(), &domain.Account{Email: email, Name: email, PasswordHash: "hash"})
	require.NoError(t, err)
	return id
}

func TestProjection(t *testing.T) {
	assert.Len(t, projection(domain.ProjectDefault), 2)
	assert.Len(t, projection(domain.ProjectFollowing), 1)
	assert.Empty(t, projection(domain.ProjectFollowing|domain.ProjectPasswordHash))
}

func TestToDomainHidesUnprojectedFields(t *testing.T) {
	doc := accountDocument{ID: "id", Email: "e", PasswordHash: "h", Following: []string{"x"}}

	account := toDomain(doc, domain.ProjectDefault)
	assert.Empty(t, account.PasswordHash)
	assert.Nil(t, account.Following)

	account = toDomain(accountDocument{ID: "id"}, domain.ProjectFollowing)
	assert.NotNil(t, account.Following)
}

func TestAccountRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	a := createAccount(t, repo, "a@example.com")
	b := createAccount(t, repo, "b@example.com")
	c := createAccount(t, repo, "c@example.com")

	_, err := repo.Create(ctx, &domain.Account{Email: "a@example.com", Name: "dup", PasswordHash: "h"})
	assert.ErrorIs(t, err, repository.ErrConflict)

	got, err := repo.GetByID(ctx, a, domain.ProjectDefault)
	require.NoError(t, err)
	assert.Empty(t, got.PasswordHash)
	assert.Nil(t, got.Following)

	require.NoError(t, repo.AddFollowing(ctx, a, b))
	require.NoError(t, repo.AddFollowing(ctx, a, c))
	assert.ErrorIs(t, repo.AddFollowing(ctx, a, b), repository.ErrAlreadyMember)
	assert.ErrorIs(t, repo.AddFollowing(ctx, domain.NewID(), b), repository.ErrNotFound)

	got, err = repo.GetByID(ctx, a, domain.ProjectFollowing)
	require.NoError(t, err)
	assert.Equal(t, []string{b, c}, got.Following)

	followers, err := repo.ListFollowers(ctx, b, domain.ProjectDefault)
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, a, followers[0].ID)

	require.NoError(t, repo.RemoveFollowing(ctx, a, b))
	assert.ErrorIs(t, repo.RemoveFollowing(ctx, a, b), repository.ErrNotMember)

	taken := "c@example.com"
	assert.ErrorIs(t, repo.Update(ctx, a, repository.AccountUpdate{Email: &taken}), repository.ErrConflict)

	require.NoError(t, repo.Delete(ctx, a))
	assert.ErrorIs(t, repo.Delete(ctx, a), repository.ErrNotFound)

	resolved, err := repo.GetByIDs(ctx, []string{a, b, c}, domain.ProjectDefault)
	require.NoError(t, err)
	assert.Len(t, resolved, 2)
}
