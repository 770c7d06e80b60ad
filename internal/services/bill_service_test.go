package services

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/damir-m/splitmate/internal/apperr"
	"github.com/damir-m/splitmate/internal/models"
	"github.com/damir-m/splitmate/internal/storage/memory"
)

func newBillFixture(t *testing.T) (*memory.Store, *BillService, *models.User, *models.User, *models.User) {
	t.Helper()
	store := memory.NewStore()
	svc := NewBillService(store, store, nil)
	alice := newTestUser(t, store, "alice")
	bob := newTestUser(t, store, "bob")
	carol := newTestUser(t, store, "carol")
	return store, svc, alice, bob, carol
}

func TestCreateBill(t *testing.T) {
	_, svc, alice, bob, carol := newBillFixture(t)
	ctx := context.Background()

	bill, err := svc.CreateBill(ctx, alice.ID, CreateBillInput{
		Description: "Dinner at Restaurant",
		TotalAmount: 90.00,
		FriendIDs:   []primitive.ObjectID{bob.ID, carol.ID},
	})
	require.NoError(t, err)

	assert.Equal(t, 30.00, bill.SplitAmount)
	assert.Equal(t, alice.ID, bill.PaidBy)
	assert.Equal(t, "alice", bill.PaidByUsername)
	require.Len(t, bill.Participants, 3)
	assert.False(t, bill.CreatedAt.IsZero())

	// creator settled by construction, everyone else starts unpaid
	for _, p := range bill.Participants {
		if p.UID == alice.ID {
			assert.True(t, p.Paid)
		} else {
			assert.False(t, p.Paid)
		}
	}
	assert.Equal(t, models.StatusPending, bill.DerivedStatus())
}

func TestCreateBillSharesReconcile(t *testing.T) {
	_, svc, alice, bob, carol := newBillFixture(t)

	// 100 / 3 is a non-terminating decimal; the shares must still sum back
	// to the total within one minor currency unit
	bill, err := svc.CreateBill(context.Background(), alice.ID, CreateBillInput{
		Description: "Groceries",
		TotalAmount: 100.00,
		FriendIDs:   []primitive.ObjectID{bob.ID, carol.ID},
	})
	require.NoError(t, err)

	sum := bill.SplitAmount * float64(len(bill.Participants))
	assert.InDelta(t, bill.TotalAmount, sum, 0.01)
}

func TestCreateBillValidation(t *testing.T) {
	_, svc, alice, bob, _ := newBillFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		input   CreateBillInput
		wantErr error
	}{
		{
			name:    "empty description",
			input:   CreateBillInput{Description: "  ", TotalAmount: 10, FriendIDs: []primitive.ObjectID{bob.ID}},
			wantErr: apperr.ErrValidation,
		},
		{
			name:    "zero amount",
			input:   CreateBillInput{Description: "Lunch", TotalAmount: 0, FriendIDs: []primitive.ObjectID{bob.ID}},
			wantErr: apperr.ErrValidation,
		},
		{
			name:    "negative amount",
			input:   CreateBillInput{Description: "Lunch", TotalAmount: -5, FriendIDs: []primitive.ObjectID{bob.ID}},
			wantErr: apperr.ErrValidation,
		},
		{
			name:    "no participants",
			input:   CreateBillInput{Description: "Lunch", TotalAmount: 10},
			wantErr: apperr.ErrValidation,
		},
		{
			name:    "creator listed as participant",
			input:   CreateBillInput{Description: "Lunch", TotalAmount: 10, FriendIDs: []primitive.ObjectID{alice.ID}},
			wantErr: apperr.ErrInvalidOperation,
		},
		{
			name:    "unknown participant",
			input:   CreateBillInput{Description: "Lunch", TotalAmount: 10, FriendIDs: []primitive.ObjectID{primitive.NewObjectID()}},
			wantErr: apperr.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateBill(ctx, alice.ID, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreateBillDedupesParticipants(t *testing.T) {
	_, svc, alice, bob, _ := newBillFixture(t)

	bill, err := svc.CreateBill(context.Background(), alice.ID, CreateBillInput{
		Description: "Coffee",
		TotalAmount: 10.00,
		FriendIDs:   []primitive.ObjectID{bob.ID, bob.ID},
	})
	require.NoError(t, err)

	require.Len(t, bill.Participants, 2)
	assert.Equal(t, 5.00, bill.SplitAmount)
}

func TestMarkPaid(t *testing.T) {
	store, svc, alice, bob, carol := newBillFixture(t)
	ctx := context.Background()

	bill, err := svc.CreateBill(ctx, alice.ID, CreateBillInput{
		Description: "Dinner",
		TotalAmount: 90.00,
		FriendIDs:   []primitive.ObjectID{bob.ID, carol.ID},
	})
	require.NoError(t, err)

	require.NoError(t, svc.MarkPaid(ctx, bill.ID, bob.ID))

	stored, err := store.GetBill(ctx, bill.ID)
	require.NoError(t, err)

	bobEntry, ok := stored.ParticipantFor(bob.ID)
	require.True(t, ok)
	assert.True(t, bobEntry.Paid)

	// carol's entry is untouched
	carolEntry, ok := stored.ParticipantFor(carol.ID)
	require.True(t, ok)
	assert.False(t, carolEntry.Paid)
}

func TestMarkPaidNotParticipant(t *testing.T) {
	store, svc, alice, bob, _ := newBillFixture(t)
	ctx := context.Background()

	bill, err := svc.CreateBill(ctx, alice.ID, CreateBillInput{
		Description: "Dinner",
		TotalAmount: 60.00,
		FriendIDs:   []primitive.ObjectID{bob.ID},
	})
	require.NoError(t, err)

	outsider := newTestUser(t, store, "mallory")
	before, err := store.GetBill(ctx, bill.ID)
	require.NoError(t, err)

	err = svc.MarkPaid(ctx, bill.ID, outsider.ID)
	require.ErrorIs(t, err, apperr.ErrForbidden)

	after, err := store.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestMarkPaidUnknownBill(t *testing.T) {
	_, svc, alice, _, _ := newBillFixture(t)

	err := svc.MarkPaid(context.Background(), primitive.NewObjectID(), alice.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestMarkPaidIdempotent(t *testing.T) {
	store, svc, alice, bob, _ := newBillFixture(t)
	ctx := context.Background()

	bill, err := svc.CreateBill(ctx, alice.ID, CreateBillInput{
		Description: "Dinner",
		TotalAmount: 60.00,
		FriendIDs:   []primitive.ObjectID{bob.ID},
	})
	require.NoError(t, err)

	require.NoError(t, svc.MarkPaid(ctx, bill.ID, bob.ID))
	first, err := store.GetBill(ctx, bill.ID)
	require.NoError(t, err)

	// second call is a no-op, not an error
	require.NoError(t, svc.MarkPaid(ctx, bill.ID, bob.ID))
	second, err := store.GetBill(ctx, bill.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestMarkPaidConcurrent(t *testing.T) {
	store, svc, alice, bob, carol := newBillFixture(t)
	ctx := context.Background()

	bill, err := svc.CreateBill(ctx, alice.ID, CreateBillInput{
		Description: "Dinner",
		TotalAmount: 90.00,
		FriendIDs:   []primitive.ObjectID{bob.ID, carol.ID},
	})
	require.NoError(t, err)

	// two different participants pay at the same time; neither update may
	// be lost
	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = svc.MarkPaid(ctx, bill.ID, bob.ID)
	}()
	go func() {
		defer wg.Done()
		errs[1] = svc.MarkPaid(ctx, bill.ID, carol.ID)
	}()
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	stored, err := store.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	for _, p := range stored.Participants {
		assert.True(t, p.Paid, "participant %s should be paid", p.Username)
	}
	assert.Equal(t, models.StatusSettled, stored.DerivedStatus())
}

func TestSettlementScenario(t *testing.T) {
	_, svc, alice, bob, carol := newBillFixture(t)
	ctx := context.Background()

	bill, err := svc.CreateBill(ctx, alice.ID, CreateBillInput{
		Description: "Dinner at Restaurant",
		TotalAmount: 90.00,
		FriendIDs:   []primitive.ObjectID{bob.ID, carol.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, 30.00, bill.SplitAmount)

	// the bill is pending for both unpaid participants, not the creator
	for _, u := range []*models.User{bob, carol} {
		pending, err := svc.ListPendingBills(ctx, u.ID)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, bill.ID, pending[0].ID)
	}
	pending, err := svc.ListPendingBills(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, svc.MarkPaid(ctx, bill.ID, bob.ID))
	require.NoError(t, svc.MarkPaid(ctx, bill.ID, carol.ID))

	// once everyone paid, the bill is pending for nobody
	for _, u := range []*models.User{alice, bob, carol} {
		pending, err := svc.ListPendingBills(ctx, u.ID)
		require.NoError(t, err)
		assert.Empty(t, pending)
	}
}

func TestListPendingBillsOrder(t *testing.T) {
	store, svc, alice, bob, _ := newBillFixture(t)
	ctx := context.Background()

	// Seed directly through the store with distinct timestamps so the
	// ordering does not depend on clock resolution.
	now := time.Now().UTC()
	seedBill := func(description string, createdAt time.Time) *models.Bill {
		bill, err := store.CreateBill(ctx, &models.Bill{
			Description:    description,
			TotalAmount:    20.00,
			SplitAmount:    10.00,
			PaidBy:         alice.ID,
			PaidByUsername: alice.Username,
			Participants: []models.Participant{
				{UID: bob.ID, Username: bob.Username},
				{UID: alice.ID, Username: alice.Username, Paid: true},
			},
			Status:    models.StatusPending,
			CreatedAt: createdAt,
		})
		require.NoError(t, err)
		return bill
	}
	first := seedBill("Breakfast", now.Add(-time.Hour))
	second := seedBill("Lunch", now)

	pending, err := svc.ListPendingBills(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	// newest first
	assert.Equal(t, second.ID, pending[0].ID)
	assert.Equal(t, first.ID, pending[1].ID)
	assert.True(t, !pending[0].CreatedAt.Before(pending[1].CreatedAt))
}

func TestRoundCurrency(t *testing.T) {
	assert.Equal(t, 33.33, models.RoundCurrency(100.0/3.0))
	assert.Equal(t, 30.00, models.RoundCurrency(90.0/3.0))
	assert.True(t, math.Abs(models.RoundCurrency(0.005)-0.01) < 1e-9)
}
