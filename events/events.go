// Package events publishes inventory movements for downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type names an inventory movement.
type Type string

const (
	StockReserved       Type = "stock.reserved"
	StockRestored       Type = "stock.restored"
	ReservationReverted Type = "stock.reservation_reverted"
	CartDeleted         Type = "cart.deleted"
	ProductCascaded     Type = "product.cascaded"
)

// Event is the payload written for every movement. Quantity is signed from the catalog's
// point of view: reservations are negative, restorations positive.
type Event struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	CartID     string    `json:"cart_id,omitempty"`
	ProductID  string    `json:"product_id,omitempty"`
	Quantity   int       `json:"quantity,omitempty"`
	Carts      int64     `json:"carts,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New stamps an event with an id and the current time.
func New(t Type) Event {
	return Event{ID: uuid.NewString(), Type: t, OccurredAt: time.Now().UTC()}
}

// Key is the partitioning key: the product when there is one, the cart otherwise.
func (e Event) Key() string {
	if e.ProductID != "" {
		return e.ProductID
	}
	return e.CartID
}

// Publisher delivers events. Publishing is best effort for callers: a failure never undoes
// the store mutation the event describes.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                        { return nil }
