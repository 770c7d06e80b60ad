package jobs

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/damir-m/splitmate/internal/services"
	"github.com/damir-m/splitmate/internal/storage"
)

// FriendReconciler repairs the friend graph after partial failures. The
// relation is stored once per endpoint, and the two writes are independent,
// so a crash between them leaves a one-sided edge. The sweep restores the
// missing reverse edge, or prunes the edge entirely when its other endpoint
// no longer exists.
type FriendReconciler struct {
	Users    storage.UserStore
	Notifier services.Notifier
}

// NewFriendReconciler creates a new instance of FriendReconciler.
func NewFriendReconciler(users storage.UserStore, notifier services.Notifier) *FriendReconciler {
	return &FriendReconciler{
		Users:    users,
		Notifier: notifier,
	}
}

// RunSweep walks every user and enforces symmetry: for each stored edge
// A->B, B->A must exist too. A one-sided edge is completed rather than
// removed, since adds are idempotent and a half-finished removal can simply
// be retried by its initiator.
func (j *FriendReconciler) RunSweep(ctx context.Context) error {
	users, err := j.Users.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch users: %w", err)
	}

	friendSets := make(map[primitive.ObjectID]map[primitive.ObjectID]bool, len(users))
	for _, user := range users {
		set := make(map[primitive.ObjectID]bool, len(user.Friends))
		for _, id := range user.Friends {
			set[id] = true
		}
		friendSets[user.ID] = set
	}

	var repaired, pruned int
	var touched []primitive.ObjectID

	for _, user := range users {
		for _, friendID := range user.Friends {
			reverse, exists := friendSets[friendID]
			if !exists {
				// dangling edge to a deleted account
				if err := j.Users.RemoveFriend(ctx, user.ID, friendID); err != nil {
					logrus.WithError(err).Warnf("Failed to prune dangling edge %s->%s", user.ID.Hex(), friendID.Hex())
					continue
				}
				pruned++
				touched = append(touched, user.ID)
				continue
			}
			if !reverse[user.ID] {
				if err := j.Users.AddFriend(ctx, friendID, user.ID); err != nil {
					logrus.WithError(err).Warnf("Failed to restore edge %s->%s", friendID.Hex(), user.ID.Hex())
					continue
				}
				reverse[user.ID] = true
				repaired++
				touched = append(touched, user.ID, friendID)
			}
		}
	}

	if len(touched) > 0 && j.Notifier != nil {
		j.Notifier.Notify(touched...)
	}

	logrus.WithFields(logrus.Fields{
		"users":    len(users),
		"repaired": repaired,
		"pruned":   pruned,
	}).Info("Friend graph sweep completed")
	return nil
}
