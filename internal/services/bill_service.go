package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/damir-m/splitmate/internal/apperr"
	"github.com/damir-m/splitmate/internal/models"
	"github.com/damir-m/splitmate/internal/storage"
)

// BillService handles business logic for the bill ledger.
type BillService struct {
	bills    storage.BillStore
	users    storage.UserStore
	notifier Notifier
}

// NewBillService creates a new BillService.
func NewBillService(bills storage.BillStore, users storage.UserStore, notifier Notifier) *BillService {
	return &BillService{
		bills:    bills,
		users:    users,
		notifier: notifier,
	}
}

// CreateBillInput carries the caller's bill parameters.
type CreateBillInput struct {
	Description  string
	TotalAmount  float64
	FriendIDs    []primitive.ObjectID
	PaymentQrURL string
}

// CreateBill validates the input, computes the even split across the
// selected friends plus the creator, and persists the bill atomically. The
// creator's own participant entry is seeded paid; everyone else starts
// unpaid. This is the only place the total, split and membership are set.
func (s *BillService) CreateBill(ctx context.Context, creatorID primitive.ObjectID, input CreateBillInput) (*models.Bill, error) {
	if strings.TrimSpace(input.Description) == "" {
		return nil, fmt.Errorf("%w: description is required", apperr.ErrValidation)
	}
	if input.TotalAmount <= 0 {
		return nil, fmt.Errorf("%w: total amount must be positive", apperr.ErrValidation)
	}
	if len(input.FriendIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one friend must be selected", apperr.ErrValidation)
	}

	friendIDs := dedupeIDs(input.FriendIDs)
	for _, id := range friendIDs {
		if id == creatorID {
			return nil, fmt.Errorf("%w: self-reference", apperr.ErrInvalidOperation)
		}
	}

	creator, err := s.users.GetUserByID(ctx, creatorID)
	if err != nil {
		return nil, err
	}

	friends, err := s.users.GetUsersByIDs(ctx, friendIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve participants: %w", err)
	}
	if len(friends) != len(friendIDs) {
		return nil, fmt.Errorf("%w: one or more participants do not exist", apperr.ErrNotFound)
	}
	byID := make(map[primitive.ObjectID]models.User, len(friends))
	for _, f := range friends {
		byID[f.ID] = f
	}

	splitAmount := input.TotalAmount / float64(len(friendIDs)+1)

	participants := make([]models.Participant, 0, len(friendIDs)+1)
	for _, id := range friendIDs {
		participants = append(participants, models.Participant{
			UID:      id,
			Username: byID[id].Username,
			Paid:     false,
		})
	}
	participants = append(participants, models.Participant{
		UID:      creator.ID,
		Username: creator.Username,
		Paid:     true, // the creator has settled their own share by construction
	})

	bill := &models.Bill{
		Description:    strings.TrimSpace(input.Description),
		TotalAmount:    input.TotalAmount,
		SplitAmount:    splitAmount,
		PaidBy:         creator.ID,
		PaidByUsername: creator.Username,
		Participants:   participants,
		CreatedAt:      time.Now().UTC(),
		Status:         models.StatusPending,
		PaymentQrURL:   input.PaymentQrURL,
	}

	created, err := s.bills.CreateBill(ctx, bill)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"billID":       created.ID.Hex(),
		"creatorID":    creator.ID.Hex(),
		"participants": len(participants),
		"splitAmount":  models.RoundCurrency(splitAmount),
	}).Info("Bill created")

	notify(s.notifier, participantIDs(created)...)
	return created, nil
}

// MarkPaid flips the caller's own participant entry to paid. The entry is
// patched inside the stored document at mutation time, never replaced from
// a client-held copy, so concurrent payments by other participants are
// preserved. Marking an already-paid entry again is a no-op.
func (s *BillService) MarkPaid(ctx context.Context, billID, callerID primitive.ObjectID) error {
	bill, err := s.bills.GetBill(ctx, billID)
	if err != nil {
		return err
	}

	participant, ok := bill.ParticipantFor(callerID)
	if !ok {
		return fmt.Errorf("%w: caller is not a participant of this bill", apperr.ErrForbidden)
	}
	if participant.Paid {
		return nil
	}

	matched, err := s.bills.SetParticipantPaid(ctx, billID, callerID)
	if err != nil {
		return err
	}
	if !matched {
		return fmt.Errorf("%w: caller is not a participant of this bill", apperr.ErrForbidden)
	}

	logrus.WithFields(logrus.Fields{
		"billID": billID.Hex(),
		"userID": callerID.Hex(),
	}).Info("Participant marked paid")

	notify(s.notifier, participantIDs(bill)...)
	return nil
}

// ListPendingBills returns the caller's unpaid bills, newest first.
func (s *BillService) ListPendingBills(ctx context.Context, userID primitive.ObjectID) ([]models.Bill, error) {
	return s.bills.ListPendingBills(ctx, userID)
}

func participantIDs(bill *models.Bill) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(bill.Participants))
	for _, p := range bill.Participants {
		ids = append(ids, p.UID)
	}
	return ids
}

func dedupeIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]bool, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
