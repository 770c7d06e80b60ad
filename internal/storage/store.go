// Package storage defines the persistence boundary of the engine. The
// services only see these interfaces, so the document store can be swapped
// for the in-memory implementation in tests.
package storage

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/damir-m/splitmate/internal/models"
)

// UserStore persists user documents, including each user's friend list.
type UserStore interface {
	// CreateUser inserts a new user and returns it with the assigned ID.
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)

	// GetUserByID fetches a single user document.
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)

	// GetUserByEmail fetches a user by email, for login.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUserByUsername resolves a handle to its user document. Returns
	// apperr.ErrNotFound when no user owns the handle.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// AddFriend inserts friendID into userID's friend list. Inserting an
	// already-present id is a no-op; the write touches one document.
	// Returns apperr.ErrNotFound when userID does not exist.
	AddFriend(ctx context.Context, userID, friendID primitive.ObjectID) error

	// RemoveFriend removes friendID from userID's friend list. The write
	// touches one document. Returns apperr.ErrNotFound when userID does
	// not exist.
	RemoveFriend(ctx context.Context, userID, friendID primitive.ObjectID) error

	// GetFriendIDs returns the stored friend id list for a user.
	GetFriendIDs(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error)

	// GetUsersByIDs fetches user documents for a batch of ids.
	GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)

	// ListUsers returns every user document. Used by the reconciliation
	// sweep only.
	ListUsers(ctx context.Context) ([]models.User, error)
}

// BillStore persists bill documents.
type BillStore interface {
	// CreateBill inserts a new bill atomically and returns it with the
	// assigned ID.
	CreateBill(ctx context.Context, bill *models.Bill) (*models.Bill, error)

	// GetBill fetches a bill by id. Returns apperr.ErrNotFound when the
	// id matches nothing.
	GetBill(ctx context.Context, id primitive.ObjectID) (*models.Bill, error)

	// SetParticipantPaid flips the paid flag of the participant entry
	// matching uid to true, patching only that entry inside the stored
	// document. It reports whether an entry matched; it never replaces
	// the participant list wholesale.
	SetParticipantPaid(ctx context.Context, billID, uid primitive.ObjectID) (bool, error)

	// ListPendingBills returns bills where uid appears as an unpaid
	// participant, newest first.
	ListPendingBills(ctx context.Context, uid primitive.ObjectID) ([]models.Bill, error)
}
