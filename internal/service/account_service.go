package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"account-graph/internal/domain"
	"account-graph/internal/repository"
)

var (
	// ErrInvalidInput marks requests rejected before reaching the store.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmptyPatch is returned when an update carries no field.
	ErrEmptyPatch = fmt.Errorf("%w: nothing to update", ErrInvalidInput)
	// ErrDuplicateEmail is returned when another account already uses the email.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrAccountNotFound is returned when the addressed account does not exist.
	ErrAccountNotFound = errors.New("account not found")
)

// RegisterInput is the payload of a registration.
type RegisterInput struct {
	Email    string
	Name     string
	Password string
}

// AccountService describes account lifecycle operations.
type AccountService interface {
	Register(ctx context.Context, in RegisterInput) (string, error)
	List(ctx context.Context) ([]domain.Account, error)
	GetByID(ctx context.Context, id string, proj domain.Projection) (*domain.Account, error)
	// Update returns the applied patch with the plaintext password in place of its hash.
	Update(ctx context.Context, id string, patch domain.AccountPatch) (*domain.AccountPatch, error)
	Delete(ctx context.Context, id string) (string, error)
}

type accountService struct {
	accounts repository.AccountRepository
	hasher   Hasher
	logger   *logrus.Logger
}

func NewAccountService(accounts repository.AccountRepository, hasher Hasher, logger *logrus.Logger) AccountService {
	if logger == nil {
		logger = logrus.New()
	}
	return &accountService{
		accounts: accounts,
		hasher:   hasher,
		logger:   logger,
	}
}

func (s *accountService) Register(ctx context.Context, in RegisterInput) (string, error) {
	email := normalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)

	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if name == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if in.Password == "" {
		return "", fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	if err := s.ensureEmailFree(ctx, email, ""); err != nil {
		return "", err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return "", err
	}

	account := &domain.Account{
		Email:        email,
		Name:         name,
		PasswordHash: hash,
	}
	if _, err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return "", ErrDuplicateEmail
		}
		return "", err
	}

	s.logger.WithFields(logrus.Fields{
		"account_id": account.ID,
		"email":      account.Email,
	}).Info("account registered")
	return account.Email, nil
}

func (s *accountService) List(ctx context.Context) ([]domain.Account, error) {
	return s.accounts.List(ctx, domain.ProjectDefault)
}

func (s *accountService) GetByID(ctx context.Context, id string, proj domain.Projection) (*domain.Account, error) {
	id, err := domain.ParseID(id)
	if err != nil {
		return nil, err
	}
	account, err := s.accounts.GetByID(ctx, id, proj)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return account, nil
}

func (s *accountService) Update(ctx context.Context, id string, patch domain.AccountPatch) (*domain.AccountPatch, error) {
	id, err := domain.ParseID(id)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return nil, ErrEmptyPatch
	}

	var (
		update  repository.AccountUpdate
		applied domain.AccountPatch
	)
	if patch.Email != nil {
		email := normalizeEmail(*patch.Email)
		if email == "" {
			return nil, fmt.Errorf("%w: email must not be empty", ErrInvalidInput)
		}
		if err := s.ensureEmailFree(ctx, email, id); err != nil {
			return nil, err
		}
		update.Email = &email
		applied.Email = &email
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
		}
		update.Name = &name
		applied.Name = &name
	}
	if patch.Password != nil {
		if *patch.Password == "" {
			return nil, fmt.Errorf("%w: password must not be empty", ErrInvalidInput)
		}
		hash, err := s.hasher.Hash(*patch.Password)
		if err != nil {
			return nil, err
		}
		plain := *patch.Password
		update.PasswordHash = &hash
		applied.Password = &plain
	}

	if err := s.accounts.Update(ctx, id, update); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrDuplicateEmail
		}
		return nil, mapNotFound(err)
	}

	s.logger.WithFields(logrus.Fields{
		"account_id":       id,
		"email_changed":    applied.Email != nil,
		"name_changed":     applied.Name != nil,
		"password_changed": applied.Password != nil,
	}).Info("account updated")
	return &applied, nil
}

func (s *accountService) Delete(ctx context.Context, id string) (string, error) {
	id, err := domain.ParseID(id)
	if err != nil {
		return "", err
	}
	if err := s.accounts.Delete(ctx, id); err != nil {
		return "", mapNotFound(err)
	}
	s.logger.WithField("account_id", id).Info("account deleted")
	return id, nil
}

// ensureEmailFree fails unless email is unused or used by selfID.
func (s *accountService) ensureEmailFree(ctx context.Context, email, selfID string) error {
	existing, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup email: %w", err)
	}
	if existing.ID == selfID {
		return nil
	}
	return ErrDuplicateEmail
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func mapNotFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrAccountNotFound
	}
	return err
}
