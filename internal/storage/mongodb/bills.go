package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/damir-m/splitmate/internal/apperr"
	"github.com/damir-m/splitmate/internal/models"
)

// BillStore handles bill documents in the bills collection.
type BillStore struct {
	collection *mongo.Collection
}

// NewBillStore creates a new instance of BillStore.
func NewBillStore(db *mongo.Database) *BillStore {
	return &BillStore{
		collection: db.Collection("bills"),
	}
}

// CreateBill inserts a new bill document.
func (s *BillStore) CreateBill(ctx context.Context, bill *models.Bill) (*models.Bill, error) {
	result, err := s.collection.InsertOne(ctx, bill)
	if err != nil {
		logrus.WithError(err).Error("Failed to insert bill into database")
		return nil, fmt.Errorf("%w: failed to insert bill: %v", apperr.ErrStoreUnavailable, err)
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("%w: failed to cast inserted ID", apperr.ErrStoreUnavailable)
	}
	bill.ID = insertedID

	logrus.WithField("billID", bill.ID.Hex()).Info("Bill inserted successfully")
	return bill, nil
}

// GetBill retrieves a bill by its ID.
func (s *BillStore) GetBill(ctx context.Context, id primitive.ObjectID) (*models.Bill, error) {
	var bill models.Bill
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&bill)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: bill %s", apperr.ErrNotFound, id.Hex())
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to find bill: %v", apperr.ErrStoreUnavailable, err)
	}
	return &bill, nil
}

// SetParticipantPaid patches a single participant's paid flag inside the
// stored document. The positional $ operator targets only the entry that
// matched the filter, so a concurrent flip of a different entry is never
// clobbered by a stale client copy.
func (s *BillStore) SetParticipantPaid(ctx context.Context, billID, uid primitive.ObjectID) (bool, error) {
	filter := bson.M{"_id": billID, "participants.uid": uid}
	update := bson.M{"$set": bson.M{"participants.$.paid": true}}

	result, err := s.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"billID": billID.Hex(),
			"uid":    uid.Hex(),
			"error":  err,
		}).Error("Failed to update participant payment status")
		return false, fmt.Errorf("%w: failed to mark participant paid: %v", apperr.ErrStoreUnavailable, err)
	}

	return result.MatchedCount > 0, nil
}

// ListPendingBills returns bills where uid is an unpaid participant,
// newest first.
func (s *BillStore) ListPendingBills(ctx context.Context, uid primitive.ObjectID) ([]models.Bill, error) {
	filter := bson.M{
		"participants": bson.M{
			"$elemMatch": bson.M{"uid": uid, "paid": false},
		},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch pending bills: %v", apperr.ErrStoreUnavailable, err)
	}
	defer cursor.Close(ctx)

	var bills []models.Bill
	for cursor.Next(ctx) {
		var bill models.Bill
		if err := cursor.Decode(&bill); err != nil {
			return nil, fmt.Errorf("%w: failed to decode bill: %v", apperr.ErrStoreUnavailable, err)
		}
		bills = append(bills, bill)
	}

	return bills, nil
}
