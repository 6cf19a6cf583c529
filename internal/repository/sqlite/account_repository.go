package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"account-graph/internal/domain"
	"account-graph/internal/repository"
)

const (
	createAccountsTable = `
CREATE TABLE IF NOT EXISTS accounts (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`
	// seq keeps follow order; the unique pair makes the following list a set.
	createFollowingTable = `
CREATE TABLE IF NOT EXISTS account_following (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
	target_id TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	UNIQUE (account_id, target_id)
);
`
	createFollowingTargetIndex = `
CREATE INDEX IF NOT EXISTS idx_account_following_target
ON account_following (target_id, seq);
`
)

// maxIDsPerQuery keeps IN lists well below sqlite's bound variable limit.
const maxIDsPerQuery = 500

// AccountRepository stores accounts in sqlite. Following lists live in their
// own table so follow and unfollow are single-row writes.
type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) repository.AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Init(ctx context.Context) error {
	for _, stmt := range []string{createAccountsTable, createFollowingTable, createFollowingTargetIndex} {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create account schema: %w", err)
		}
	}
	return nil
}

func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) (string, error) {
	now := time.Now().UTC()
	account.ID = domain.NewID()
	account.CreatedAt = now
	account.UpdatedAt = now
	account.Following = []string{}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO accounts (id, email, name, password_hash, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.Email,
		account.Name,
		account.PasswordHash,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("insert account: %w", repository.ErrConflict)
		}
		return "", fmt.Errorf("insert account: %w", err)
	}
	return account.ID, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string, proj domain.Projection) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+accountColumns(proj)+`
FROM accounts a
WHERE a.id = ?`,
		id,
	)
	account, err := scanAccount(row, proj)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}

	if proj.Has(domain.ProjectFollowing) {
		if err := r.attachFollowing(ctx, []*domain.Account{account}); err != nil {
			return nil, err
		}
	}
	return account, nil
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+accountColumns(domain.ProjectDefault)+`
FROM accounts a
WHERE a.email = ?`,
		email,
	)
	account, err := scanAccount(row, domain.ProjectDefault)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return account, nil
}

func (r *AccountRepository) GetByIDs(ctx context.Context, ids []string, proj domain.Projection) ([]domain.Account, error) {
	accounts := []domain.Account{}
	for _, batch := range chunkIDs(ids, maxIDsPerQuery) {
		found, err := r.queryAccounts(ctx, proj, `
SELECT `+accountColumns(proj)+`
FROM accounts a
WHERE a.id IN (`+placeholders(len(batch))+`)`,
			idArgs(batch)...,
		)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, found...)
	}
	return accounts, nil
}

func (r *AccountRepository) List(ctx context.Context, proj domain.Projection) ([]domain.Account, error) {
	return r.queryAccounts(ctx, proj, `
SELECT `+accountColumns(proj)+`
FROM accounts a
ORDER BY a.created_at ASC, a.id ASC`)
}

func (r *AccountRepository) Update(ctx context.Context, id string, update repository.AccountUpdate) error {
	var (
		sets []string
		args []any
	)
	if update.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, *update.Email)
	}
	if update.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *update.Name)
	}
	if update.PasswordHash != nil {
		sets = append(sets, "password_hash = ?")
		args = append(args, *update.PasswordHash)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	res, err := r.db.ExecContext(ctx, `UPDATE accounts SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update account: %w", repository.ErrConflict)
		}
		return fmt.Errorf("update account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM account_following WHERE account_id = ?`, id); err != nil {
			return fmt.Errorf("delete following: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete account rows affected: %w", err)
		}
		if n == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}

func (r *AccountRepository) AddFollowing(ctx context.Context, accountID, targetID string) error {
	now := time.Now().UTC()
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := accountExists(ctx, tx, accountID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
INSERT INTO account_following (account_id, target_id, created_at)
VALUES (?, ?, ?)
ON CONFLICT (account_id, target_id) DO NOTHING`,
			accountID,
			targetID,
			now,
		)
		if err != nil {
			return fmt.Errorf("insert following: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert following rows affected: %w", err)
		}
		if n == 0 {
			return repository.ErrAlreadyMember
		}
		return touchAccount(ctx, tx, accountID, now)
	})
}

func (r *AccountRepository) RemoveFollowing(ctx context.Context, accountID, targetID string) error {
	now := time.Now().UTC()
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := accountExists(ctx, tx, accountID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
DELETE FROM account_following
WHERE seq = (
	SELECT seq FROM account_following
	WHERE account_id = ? AND target_id = ?
	ORDER BY seq
	LIMIT 1
)`,
			accountID,
			targetID,
		)
		if err != nil {
			return fmt.Errorf("delete following: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete following rows affected: %w", err)
		}
		if n == 0 {
			return repository.ErrNotMember
		}
		return touchAccount(ctx, tx, accountID, now)
	})
}

func (r *AccountRepository) ListFollowers(ctx context.Context, targetID string, proj domain.Projection) ([]domain.Account, error) {
	return r.queryAccounts(ctx, proj, `
SELECT `+accountColumns(proj)+`
FROM account_following f
JOIN accounts a ON a.id = f.account_id
WHERE f.target_id = ?
ORDER BY f.seq ASC`,
		targetID,
	)
}

func (r *AccountRepository) queryAccounts(ctx context.Context, proj domain.Projection, query string, args ...any) ([]domain.Account, error) {
	accounts, err := r.scanAccounts(ctx, proj, query, args...)
	if err != nil {
		return nil, err
	}
	if proj.Has(domain.ProjectFollowing) && len(accounts) > 0 {
		ptrs := make([]*domain.Account, len(accounts))
		for i := range accounts {
			ptrs[i] = &accounts[i]
		}
		if err := r.attachFollowing(ctx, ptrs); err != nil {
			return nil, err
		}
	}
	return accounts, nil
}

// scanAccounts releases its rows before returning; the pool holds one connection.
func (r *AccountRepository) scanAccounts(ctx context.Context, proj domain.Projection, query string, args ...any) ([]domain.Account, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	accounts := []domain.Account{}
	for rows.Next() {
		account, err := scanAccount(rows, proj)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

func (r *AccountRepository) attachFollowing(ctx context.Context, accounts []*domain.Account) error {
	byID := make(map[string]*domain.Account, len(accounts))
	ids := make([]string, 0, len(accounts))
	for _, account := range accounts {
		account.Following = []string{}
		byID[account.ID] = account
		ids = append(ids, account.ID)
	}

	for _, batch := range chunkIDs(ids, maxIDsPerQuery) {
		if err := r.loadFollowing(ctx, byID, batch); err != nil {
			return err
		}
	}
	return nil
}

func (r *AccountRepository) loadFollowing(ctx context.Context, byID map[string]*domain.Account, ids []string) error {
	rows, err := r.db.QueryContext(ctx, `
SELECT account_id, target_id
FROM account_following
WHERE account_id IN (`+placeholders(len(ids))+`)
ORDER BY seq ASC`,
		idArgs(ids)...,
	)
	if err != nil {
		return fmt.Errorf("query following: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var accountID, targetID string
		if err := rows.Scan(&accountID, &targetID); err != nil {
			return fmt.Errorf("scan following: %w", err)
		}
		if account, ok := byID[accountID]; ok {
			account.Following = append(account.Following, targetID)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate following: %w", err)
	}
	return nil
}

func (r *AccountRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func accountExists(ctx context.Context, tx *sql.Tx, id string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lookup account: %w", err)
	}
	return nil
}

func touchAccount(ctx context.Context, tx *sql.Tx, id string, at time.Time) error {
	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET updated_at = ? WHERE id = ?`, at, id); err != nil {
		return fmt.Errorf("touch account: %w", err)
	}
	return nil
}

func accountColumns(proj domain.Projection) string {
	cols := "a.id, a.email, a.name, a.created_at, a.updated_at"
	if proj.Has(domain.ProjectPasswordHash) {
		cols += ", a.password_hash"
	}
	return cols
}

func scanAccount(row interface {
	Scan(dest ...any) error
}, proj domain.Projection) (*domain.Account, error) {
	var account domain.Account
	dest := []any{
		&account.ID,
		&account.Email,
		&account.Name,
		&account.CreatedAt,
		&account.UpdatedAt,
	}
	if proj.Has(domain.ProjectPasswordHash) {
		dest = append(dest, &account.PasswordHash)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &account, nil
}

// chunkIDs splits ids into batches of at most size.
func chunkIDs(ids []string, size int) [][]string {
	var batches [][]string
	for len(ids) > size {
		batches = append(batches, ids[:size])
		ids = ids[size:]
	}
	if len(ids) > 0 {
		batches = append(batches, ids)
	}
	return batches
}

func idArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func isUniqueViolation(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "unique")
}
