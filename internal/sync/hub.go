// Package sync delivers live, ordered views of each user's friend list and
// pending bills. Consumers receive full snapshots, never diffs: every
// emission is the authoritative state and replaces whatever the consumer
// held before.
package sync

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/damir-m/splitmate/internal/models"
	"github.com/damir-m/splitmate/internal/storage"
)

// Snapshot is a complete, point-in-time materialization of one user's live
// queries. Seq increases by one per emission on a given subscription, so a
// consumer observes a total order of post-mutation states.
type Snapshot struct {
	Seq          uint64           `json:"seq"`
	EmittedAt    time.Time        `json:"emittedAt"`
	Friends      []models.UserRef `json:"friends"`
	PendingBills []models.Bill    `json:"pendingBills"`
}

// Subscription is one consumer's handle on the live feed. Release it with
// Hub.Unsubscribe; the updates channel is closed afterwards.
type Subscription struct {
	userID primitive.ObjectID
	ch     chan Snapshot
	dirty  chan struct{}
	quit   chan struct{}
	seq    uint64
}

// Updates returns the snapshot stream.
func (s *Subscription) Updates() <-chan Snapshot {
	return s.ch
}

// Hub fans committed mutations out to subscribers. It recomputes each
// affected subscriber's snapshot from the stores, so a push always reflects
// the store's current state rather than the mutation that triggered it.
type Hub struct {
	users storage.UserStore
	bills storage.BillStore

	mu   sync.Mutex
	subs map[*Subscription]struct{}

	// retry pacing for snapshot recomputation after store errors
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// NewHub creates a hub reading from the given stores.
func NewHub(users storage.UserStore, bills storage.BillStore) *Hub {
	return &Hub{
		users:       users,
		bills:       bills,
		subs:        make(map[*Subscription]struct{}),
		baseBackoff: 500 * time.Millisecond,
		maxBackoff:  10 * time.Second,
	}
}

// Subscribe registers a consumer for userID's live view and immediately
// schedules the first snapshot. A user may hold several subscriptions at
// once, one per connected client.
func (h *Hub) Subscribe(userID primitive.ObjectID) *Subscription {
	sub := &Subscription{
		userID: userID,
		ch:     make(chan Snapshot, 1),
		dirty:  make(chan struct{}, 1),
		quit:   make(chan struct{}),
	}
	sub.dirty <- struct{}{}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	go h.run(sub)

	logrus.WithField("userID", userID.Hex()).Debug("Subscription opened")
	return sub
}

// Unsubscribe releases the subscription and closes its updates channel.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	_, ok := h.subs[sub]
	if ok {
		delete(h.subs, sub)
	}
	h.mu.Unlock()

	if ok {
		close(sub.quit)
		logrus.WithField("userID", sub.userID.Hex()).Debug("Subscription closed")
	}
}

// Notify marks the given users' views stale. Signals coalesce: a
// subscription that is already pending recomputation is not queued twice,
// but the snapshot it eventually receives reflects all mutations up to the
// moment of recomputation.
func (h *Hub) Notify(userIDs ...primitive.ObjectID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		for _, id := range userIDs {
			if sub.userID == id {
				select {
				case sub.dirty <- struct{}{}:
				default:
				}
				break
			}
		}
	}
}

func (h *Hub) run(sub *Subscription) {
	defer close(sub.ch)

	backoff := h.baseBackoff
	for {
		select {
		case <-sub.quit:
			return
		case <-sub.dirty:
		}

		snapshot, err := h.snapshotFor(sub.userID)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"userID": sub.userID.Hex(),
				"error":  err,
			}).Warn("Snapshot recomputation failed, retrying")

			select {
			case <-sub.quit:
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > h.maxBackoff {
				backoff = h.maxBackoff
			}
			// re-arm so the next loop iteration retries
			select {
			case sub.dirty <- struct{}{}:
			default:
			}
			continue
		}
		backoff = h.baseBackoff

		sub.seq++
		snapshot.Seq = sub.seq
		h.deliver(sub, snapshot)
	}
}

// deliver hands the snapshot to the consumer. A slow consumer only ever
// sees the newest state: a stale undelivered snapshot is dropped in favor
// of the fresh one, which re-uses its sequence slot's ordering guarantee
// because states are full replacements.
func (h *Hub) deliver(sub *Subscription, snapshot Snapshot) {
	for {
		select {
		case <-sub.quit:
			return
		case sub.ch <- snapshot:
			return
		default:
		}
		select {
		case <-sub.ch:
		default:
		}
	}
}

func (h *Hub) snapshotFor(userID primitive.ObjectID) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	friendIDs, err := h.users.GetFriendIDs(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}

	friends := []models.UserRef{}
	if len(friendIDs) > 0 {
		users, err := h.users.GetUsersByIDs(ctx, friendIDs)
		if err != nil {
			return Snapshot{}, err
		}
		for _, u := range users {
			friends = append(friends, models.UserRef{ID: u.ID, Username: u.Username})
		}
	}

	bills, err := h.bills.ListPendingBills(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	if bills == nil {
		bills = []models.Bill{}
	}

	return Snapshot{
		EmittedAt:    time.Now().UTC(),
		Friends:      friends,
		PendingBills: bills,
	}, nil
}
