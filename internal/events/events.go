// Package events carries count-changed notifications from the code that
// mutates a cart or wishlist to the badges that display its size.
package events

import (
	"context"
	"time"
)

// Kind names the collection whose count changed.
type Kind string

const (
	KindCart     Kind = "cart"
	KindWishlist Kind = "wishlist"
)

// CountChanged reports the new item count of a shopper's cart or wishlist.
type CountChanged struct {
	Kind    Kind      `json:"kind"`
	OwnerID string    `json:"ownerId"`
	Count   int       `json:"count"`
	At      time.Time `json:"at"`
}

// Bus publishes count changes and delivers them to subscribers of the same owner.
type Bus interface {
	Publish(ctx context.Context, e CountChanged) error

	// Subscribe returns a channel of the owner's count changes and a function
	// that ends the subscription and closes the channel.
	Subscribe(ownerID string) (<-chan CountChanged, func())
}
