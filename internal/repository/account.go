package repository

import (
	"context"
	"errors"

	"account-graph/internal/domain"
)

var (
	// ErrNotFound is returned when no account has the requested id or email.
	ErrNotFound = errors.New("account not found")
	// ErrConflict is returned when a write would break the unique email index.
	ErrConflict = errors.New("account conflict")
	// ErrAlreadyMember is returned when a following set already holds the target.
	ErrAlreadyMember = errors.New("target already in following")
	// ErrNotMember is returned when a following set does not hold the target.
	ErrNotMember = errors.New("target not in following")
)

// AccountUpdate is a partial update applied in a single store write.
type AccountUpdate struct {
	Email        *string
	Name         *string
	PasswordHash *string
}

// AccountRepository defines persistence operations for Account entities.
// Every read takes an explicit projection; hidden fields outside it are left zero.
type AccountRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, account *domain.Account) (string, error)
	GetByID(ctx context.Context, id string, proj domain.Projection) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	// GetByIDs resolves ids in no particular order; unknown ids are skipped.
	GetByIDs(ctx context.Context, ids []string, proj domain.Projection) ([]domain.Account, error)
	List(ctx context.Context, proj domain.Projection) ([]domain.Account, error)
	Update(ctx context.Context, id string, update AccountUpdate) error
	Delete(ctx context.Context, id string) error

	// AddFollowing appends targetID to the account's following set atomically.
	AddFollowing(ctx context.Context, accountID, targetID string) error
	// RemoveFollowing drops one occurrence of targetID atomically.
	RemoveFollowing(ctx context.Context, accountID, targetID string) error
	// ListFollowers returns accounts whose following holds targetID.
	ListFollowers(ctx context.Context, targetID string, proj domain.Projection) ([]domain.Account, error)
}
