package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/damir-m/splitmate/internal/apperr"
	"github.com/damir-m/splitmate/internal/models"
	"github.com/damir-m/splitmate/internal/storage"
)

// FriendService handles business logic for the friend graph.
type FriendService struct {
	users    storage.UserStore
	notifier Notifier
}

// NewFriendService creates a new FriendService.
func NewFriendService(users storage.UserStore, notifier Notifier) *FriendService {
	return &FriendService{
		users:    users,
		notifier: notifier,
	}
}

// AddFriend resolves handle to a user and records the relation on both
// endpoints. Either insertion is idempotent, so the whole operation is safe
// to retry. The two writes hit separate documents; a crash between them
// leaves a one-sided edge that the reconciliation sweep repairs.
func (s *FriendService) AddFriend(ctx context.Context, selfID primitive.ObjectID, handle string) (*models.UserRef, error) {
	friend, err := s.users.GetUserByUsername(ctx, handle)
	if err != nil {
		return nil, err
	}

	if friend.ID == selfID {
		return nil, fmt.Errorf("%w: self-reference", apperr.ErrInvalidOperation)
	}

	if err := s.users.AddFriend(ctx, selfID, friend.ID); err != nil {
		return nil, fmt.Errorf("failed to add friend to own list: %w", err)
	}
	if err := s.users.AddFriend(ctx, friend.ID, selfID); err != nil {
		return nil, fmt.Errorf("failed to add self to friend's list: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"userID":   selfID.Hex(),
		"friendID": friend.ID.Hex(),
	}).Info("Friend relation added")

	notify(s.notifier, selfID, friend.ID)

	return &models.UserRef{ID: friend.ID, Username: friend.Username}, nil
}

// RemoveFriend severs the relation from both endpoints. Either endpoint may
// call it; no consent from the other side is required.
func (s *FriendService) RemoveFriend(ctx context.Context, selfID, friendID primitive.ObjectID) error {
	if err := s.users.RemoveFriend(ctx, selfID, friendID); err != nil {
		return fmt.Errorf("failed to remove friend from own list: %w", err)
	}
	// The other account may be gone; the caller can still drop the edge
	// from their own list.
	if err := s.users.RemoveFriend(ctx, friendID, selfID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("failed to remove self from friend's list: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"userID":   selfID.Hex(),
		"friendID": friendID.Hex(),
	}).Info("Friend relation removed")

	notify(s.notifier, selfID, friendID)
	return nil
}

// ListFriends resolves the stored friend ids to display-ready records with
// a single batched lookup.
func (s *FriendService) ListFriends(ctx context.Context, selfID primitive.ObjectID) ([]models.UserRef, error) {
	friendIDs, err := s.users.GetFriendIDs(ctx, selfID)
	if err != nil {
		return nil, fmt.Errorf("failed to get friend IDs: %w", err)
	}

	if len(friendIDs) == 0 {
		return []models.UserRef{}, nil
	}

	users, err := s.users.GetUsersByIDs(ctx, friendIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}

	refs := make([]models.UserRef, 0, len(users))
	for _, user := range users {
		refs = append(refs, models.UserRef{
			ID:       user.ID,
			Username: user.Username,
		})
	}

	return refs, nil
}
