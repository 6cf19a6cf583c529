package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"account-graph/internal/domain"
	"account-graph/internal/repository"
)

var (
	// ErrAlreadyFollowing is returned when the actor already follows the target.
	ErrAlreadyFollowing = errors.New("already following")
	// ErrNotFollowing is returned when the actor does not follow the target.
	ErrNotFollowing = errors.New("not following")
)

// FollowService manages the directed follow relation between accounts.
type FollowService interface {
	Follow(ctx context.Context, actorID, targetID string) (*domain.Account, error)
	Unfollow(ctx context.Context, actorID, targetID string) (string, error)
	ListFollowing(ctx context.Context, subjectID string) ([]domain.Account, error)
	ListFollowers(ctx context.Context, subjectID string) ([]domain.Account, error)
}

type followService struct {
	accounts repository.AccountRepository
	logger   *logrus.Logger
}

func NewFollowService(accounts repository.AccountRepository, logger *logrus.Logger) FollowService {
	if logger == nil {
		logger = logrus.New()
	}
	return &followService{
		accounts: accounts,
		logger:   logger,
	}
}

// Follow neither checks that the target exists nor rejects self-follows.
func (s *followService) Follow(ctx context.Context, actorID, targetID string) (*domain.Account, error) {
	actor, target, err := parsePair(actorID, targetID)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.AddFollowing(ctx, actor, target); err != nil {
		if errors.Is(err, repository.ErrAlreadyMember) {
			return nil, ErrAlreadyFollowing
		}
		return nil, mapNotFound(err)
	}
	s.logger.WithFields(logrus.Fields{
		"actor_id":  actor,
		"target_id": target,
	}).Info("account followed")

	account, err := s.accounts.GetByID(ctx, actor, domain.ProjectFollowing)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return account, nil
}

func (s *followService) Unfollow(ctx context.Context, actorID, targetID string) (string, error) {
	actor, target, err := parsePair(actorID, targetID)
	if err != nil {
		return "", err
	}

	if err := s.accounts.RemoveFollowing(ctx, actor, target); err != nil {
		if errors.Is(err, repository.ErrNotMember) {
			return "", ErrNotFollowing
		}
		return "", mapNotFound(err)
	}
	s.logger.WithFields(logrus.Fields{
		"actor_id":  actor,
		"target_id": target,
	}).Info("account unfollowed")
	return target, nil
}

// ListFollowing resolves the subject's following ids in stored order.
// Ids whose account no longer exists are skipped.
func (s *followService) ListFollowing(ctx context.Context, subjectID string) ([]domain.Account, error) {
	id, err := domain.ParseID(subjectID)
	if err != nil {
		return nil, err
	}
	subject, err := s.accounts.GetByID(ctx, id, domain.ProjectFollowing)
	if err != nil {
		return nil, mapNotFound(err)
	}
	if len(subject.Following) == 0 {
		return []domain.Account{}, nil
	}

	found, err := s.accounts.GetByIDs(ctx, subject.Following, domain.ProjectDefault)
	if err != nil {
		return nil, fmt.Errorf("resolve following: %w", err)
	}
	byID := make(map[string]domain.Account, len(found))
	for _, account := range found {
		byID[account.ID] = account
	}

	resolved := make([]domain.Account, 0, len(subject.Following))
	for _, followedID := range subject.Following {
		if account, ok := byID[followedID]; ok {
			resolved = append(resolved, account)
		}
	}
	if missing := len(subject.Following) - len(resolved); missing > 0 {
		s.logger.WithFields(logrus.Fields{
			"account_id": id,
			"dangling":   missing,
		}).Debug("following references unknown accounts")
	}
	return resolved, nil
}

// ListFollowers returns the accounts that follow the subject.
func (s *followService) ListFollowers(ctx context.Context, subjectID string) ([]domain.Account, error) {
	id, err := domain.ParseID(subjectID)
	if err != nil {
		return nil, err
	}
	if _, err := s.accounts.GetByID(ctx, id, domain.ProjectDefault); err != nil {
		return nil, mapNotFound(err)
	}
	return s.accounts.ListFollowers(ctx, id, domain.ProjectDefault)
}

func parsePair(actorID, targetID string) (string, string, error) {
	actor, err := domain.ParseID(actorID)
	if err != nil {
		return "", "", err
	}
	target, err := domain.ParseID(targetID)
	if err != nil {
		return "", "", err
	}
	return actor, target, nil
}
