package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/damir-m/splitmate/internal/apperr"
	"github.com/damir-m/splitmate/internal/models"
)

// UserStore handles user documents in the users collection.
type UserStore struct {
	collection *mongo.Collection
}

// NewUserStore creates a new instance of UserStore.
func NewUserStore(db *mongo.Database) *UserStore {
	return &UserStore{
		collection: db.Collection("users"),
	}
}

// CreateUser inserts a new user into the database.
func (s *UserStore) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()

	result, err := s.collection.InsertOne(ctx, user)
	if err != nil {
		logrus.WithError(err).Error("Failed to insert user into database")
		return nil, fmt.Errorf("%w: failed to insert user: %v", apperr.ErrStoreUnavailable, err)
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("%w: failed to cast inserted ID", apperr.ErrStoreUnavailable)
	}
	user.ID = insertedID

	logrus.WithField("userID", user.ID.Hex()).Info("User inserted successfully")
	return user, nil
}

// GetUserByID retrieves a user by their ID.
func (s *UserStore) GetUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: user %s", apperr.ErrNotFound, id.Hex())
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"userID": id.Hex(),
			"error":  err,
		}).Warn("Failed to find user by ID")
		return nil, fmt.Errorf("%w: failed to find user by id: %v", apperr.ErrStoreUnavailable, err)
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email.
func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.collection.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: no user with that email", apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to find user by email: %v", apperr.ErrStoreUnavailable, err)
	}
	return &user, nil
}

// GetUserByUsername resolves a handle to its user document.
func (s *UserStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.collection.FindOne(ctx, bson.M{"username": username}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: no user with handle %q", apperr.ErrNotFound, username)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"username": username,
			"error":    err,
		}).Warn("Failed to find user by username")
		return nil, fmt.Errorf("%w: failed to find user by username: %v", apperr.ErrStoreUnavailable, err)
	}
	return &user, nil
}

// AddFriend inserts friendID into userID's friends array. $addToSet keeps
// the insert idempotent, so retries are safe.
func (s *UserStore) AddFriend(ctx context.Context, userID, friendID primitive.ObjectID) error {
	result, err := s.collection.UpdateOne(
		ctx,
		bson.M{"_id": userID},
		bson.M{"$addToSet": bson.M{"friends": friendID}}, // avoid duplicates
	)
	if err != nil {
		return fmt.Errorf("%w: failed to add friend: %v", apperr.ErrStoreUnavailable, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: user %s", apperr.ErrNotFound, userID.Hex())
	}
	return nil
}

// RemoveFriend pulls friendID from userID's friends array.
func (s *UserStore) RemoveFriend(ctx context.Context, userID, friendID primitive.ObjectID) error {
	result, err := s.collection.UpdateOne(
		ctx,
		bson.M{"_id": userID},
		bson.M{"$pull": bson.M{"friends": friendID}},
	)
	if err != nil {
		return fmt.Errorf("%w: failed to remove friend from user %s: %v", apperr.ErrStoreUnavailable, userID.Hex(), err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: user %s", apperr.ErrNotFound, userID.Hex())
	}
	return nil
}

// GetFriendIDs returns the list of friend ids for a user.
func (s *UserStore) GetFriendIDs(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Friends, nil
}

// GetUsersByIDs fetches user documents for a list of ids in a single query.
func (s *UserStore) GetUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	filter := bson.M{"_id": bson.M{"$in": ids}}

	cursor, err := s.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch users by IDs: %v", apperr.ErrStoreUnavailable, err)
	}
	defer cursor.Close(ctx)

	var users []models.User
	for cursor.Next(ctx) {
		var user models.User
		if err := cursor.Decode(&user); err != nil {
			return nil, fmt.Errorf("%w: failed to decode user: %v", apperr.ErrStoreUnavailable, err)
		}
		users = append(users, user)
	}

	return users, nil
}

// ListUsers returns every user document.
func (s *UserStore) ListUsers(ctx context.Context) ([]models.User, error) {
	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch users: %v", apperr.ErrStoreUnavailable, err)
	}
	defer cursor.Close(ctx)

	var users []models.User
	for cursor.Next(ctx) {
		var user models.User
		if err := cursor.Decode(&user); err != nil {
			return nil, fmt.Errorf("%w: failed to decode user: %v", apperr.ErrStoreUnavailable, err)
		}
		users = append(users, user)
	}

	return users, nil
}
