package models

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Bill statuses. The stored status is informational only; readers should
// rely on DerivedStatus, which is computed from participant state.
const (
	StatusPending = "pending"
	StatusSettled = "settled"
)

// Participant is one person's entry on a bill: who they are and whether
// they have attested payment of their share.
type Participant struct {
	UID      primitive.ObjectID `bson:"uid" json:"uid"`
	Username string             `bson:"username" json:"username"`
	Paid     bool               `bson:"paid" json:"paid"`
}

// Bill is a shared expense. Total, split, description and the participant
// membership are set exactly once at creation; afterwards only individual
// Paid flags flip, and only from false to true.
type Bill struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Description    string             `bson:"description" json:"description"`
	TotalAmount    float64            `bson:"total_amount" json:"totalAmount"`
	SplitAmount    float64            `bson:"split_amount" json:"splitAmount"`
	PaidBy         primitive.ObjectID `bson:"paid_by" json:"paidBy"`
	PaidByUsername string             `bson:"paid_by_username" json:"paidByUsername"`
	Participants   []Participant      `bson:"participants" json:"participants"`
	CreatedAt      time.Time          `bson:"created_at" json:"createdAt"`
	Status         string             `bson:"status" json:"status"`
	PaymentQrURL   string             `bson:"payment_qr_url,omitempty" json:"paymentQrUrl,omitempty"`
}

// DerivedStatus reports the bill's settlement state from its participant
// entries rather than the stored Status copy.
func (b *Bill) DerivedStatus() string {
	for _, p := range b.Participants {
		if !p.Paid {
			return StatusPending
		}
	}
	return StatusSettled
}

// ParticipantFor returns the entry for the given user, if present.
func (b *Bill) ParticipantFor(uid primitive.ObjectID) (Participant, bool) {
	for _, p := range b.Participants {
		if p.UID == uid {
			return p, true
		}
	}
	return Participant{}, false
}

// RoundCurrency rounds an amount to 2 fractional digits for display.
func RoundCurrency(amount float64) float64 {
	return math.Round(amount*100) / 100
}
