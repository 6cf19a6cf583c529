package service

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"account-graph/internal/repository"
	"account-graph/internal/repository/sqlite"
)

type testEnv struct {
	repo     repository.AccountRepository
	hasher   Hasher
	accounts AccountService
	follows  FollowService
	hook     *logtest.Hook
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := sqlite.Open(sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := sqlite.NewAccountRepository(db)
	require.NoError(t, repo.Init(context.Background()))

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	hasher := NewBcryptHasher(bcrypt.MinCost)

	return &testEnv{
		repo:     repo,
		hasher:   hasher,
		accounts: NewAccountService(repo, hasher, logger),
		follows:  NewFollowService(repo, logger),
		hook:     hook,
	}
}

// register creates an account and returns its id.
func (e *testEnv) register(t *testing.T, email string) string {
	t.Helper()
	ctx := context.Background()
	_, err := e.accounts.Register(ctx, RegisterInput{Email: email, Name: "user " + email, Password: "secret-" + email})
	require.NoError(t, err)
	account, err := e.repo.GetByEmail(ctx, email)
	require.NoError(t, err)
	return account.ID
}
