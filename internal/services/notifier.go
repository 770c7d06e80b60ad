package services

import "go.mongodb.org/mongo-driver/bson/primitive"

// Notifier is told which users' live views became stale after a committed
// mutation. The synchronization hub implements it; tests may pass nil.
type Notifier interface {
	Notify(userIDs ...primitive.ObjectID)
}

func notify(n Notifier, userIDs ...primitive.ObjectID) {
	if n != nil {
		n.Notify(userIDs...)
	}
}
