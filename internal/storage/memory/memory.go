// Package memory provides an in-memory implementation of the storage
// interfaces. It mirrors the document store's per-document write
// serialization and is used by tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/damir-m/splitmate/internal/apperr"
	"github.com/damir-m/splitmate/internal/models"
)

// Store keeps users and bills in maps guarded by a mutex, so every write
// applies to exactly one record at a time, like the document store.
type Store struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
	bills map[primitive.ObjectID]*models.Bill
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		users: make(map[primitive.ObjectID]*models.User),
		bills: make(map[primitive.ObjectID]*models.Bill),
	}
}

func copyUser(u *models.User) *models.User {
	cp := *u
	cp.Friends = append([]primitive.ObjectID(nil), u.Friends...)
	return &cp
}

func copyBill(b *models.Bill) *models.Bill {
	cp := *b
	cp.Participants = append([]models.Participant(nil), b.Participants...)
	return &cp
}

// CreateUser inserts a new user and assigns it an id.
func (s *Store) CreateUser(_ context.Context, user *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user.ID = primitive.NewObjectID()
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	s.users[user.ID] = copyUser(user)
	return user, nil
}

// GetUserByID fetches a single user.
func (s *Store) GetUserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", apperr.ErrNotFound, id.Hex())
	}
	return copyUser(user), nil
}

// GetUserByEmail fetches a user by email.
func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.Email == email {
			return copyUser(user), nil
		}
	}
	return nil, fmt.Errorf("%w: no user with that email", apperr.ErrNotFound)
}

// GetUserByUsername resolves a handle to its user record.
func (s *Store) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.Username == username {
			return copyUser(user), nil
		}
	}
	return nil, fmt.Errorf("%w: no user with handle %q", apperr.ErrNotFound, username)
}

// AddFriend inserts friendID into userID's friend list, idempotently.
func (s *Store) AddFriend(_ context.Context, userID, friendID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("%w: user %s", apperr.ErrNotFound, userID.Hex())
	}
	for _, id := range user.Friends {
		if id == friendID {
			return nil
		}
	}
	user.Friends = append(user.Friends, friendID)
	return nil
}

// RemoveFriend removes friendID from userID's friend list.
func (s *Store) RemoveFriend(_ context.Context, userID, friendID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("%w: user %s", apperr.ErrNotFound, userID.Hex())
	}
	kept := user.Friends[:0]
	for _, id := range user.Friends {
		if id != friendID {
			kept = append(kept, id)
		}
	}
	user.Friends = kept
	return nil
}

// GetFriendIDs returns the stored friend list for a user.
func (s *Store) GetFriendIDs(_ context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", apperr.ErrNotFound, userID.Hex())
	}
	return append([]primitive.ObjectID(nil), user.Friends...), nil
}

// GetUsersByIDs fetches user records for a batch of ids.
func (s *Store) GetUsersByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var users []models.User
	for _, id := range ids {
		if user, ok := s.users[id]; ok {
			users = append(users, *copyUser(user))
		}
	}
	return users, nil
}

// ListUsers returns every user record.
func (s *Store) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]models.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, *copyUser(user))
	}
	return users, nil
}

// CreateBill inserts a new bill and assigns it an id.
func (s *Store) CreateBill(_ context.Context, bill *models.Bill) (*models.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bill.ID = primitive.NewObjectID()
	s.bills[bill.ID] = copyBill(bill)
	return bill, nil
}

// GetBill fetches a bill by id.
func (s *Store) GetBill(_ context.Context, id primitive.ObjectID) (*models.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bill, ok := s.bills[id]
	if !ok {
		return nil, fmt.Errorf("%w: bill %s", apperr.ErrNotFound, id.Hex())
	}
	return copyBill(bill), nil
}

// SetParticipantPaid flips the matching participant's paid flag in place,
// leaving every other entry untouched.
func (s *Store) SetParticipantPaid(_ context.Context, billID, uid primitive.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bill, ok := s.bills[billID]
	if !ok {
		return false, nil
	}
	for i := range bill.Participants {
		if bill.Participants[i].UID == uid {
			bill.Participants[i].Paid = true
			return true, nil
		}
	}
	return false, nil
}

// ListPendingBills returns bills where uid is an unpaid participant,
// newest first.
func (s *Store) ListPendingBills(_ context.Context, uid primitive.ObjectID) ([]models.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var bills []models.Bill
	for _, bill := range s.bills {
		for _, p := range bill.Participants {
			if p.UID == uid && !p.Paid {
				bills = append(bills, *copyBill(bill))
				break
			}
		}
	}
	sort.Slice(bills, func(i, j int) bool {
		return bills[i].CreatedAt.After(bills[j].CreatedAt)
	})
	return bills, nil
}
