package models

import (
	"encoding/json"
	"fmt"
)

// CartStatus is the lifecycle state of a cart. Only CartStatusActive is produced today.
type CartStatus string

const (
	CartStatusActive    CartStatus = "active"
	CartStatusCompleted CartStatus = "completed"
	CartStatusAbandoned CartStatus = "abandoned"
)

// Valid reports whether s is a member of the enumeration.
func (s CartStatus) Valid() bool {
	switch s {
	case CartStatusActive, CartStatusCompleted, CartStatusAbandoned:
		return true
	}
	return false
}

// Cart is a session scoped set of reserved line items.
type Cart struct {
	ID       ID         `json:"_id"`
	Session  string     `json:"session"`
	Status   CartStatus `json:"status"`
	Products []LineItem `json:"products"`
}

// CartInput is a create or replace request. Products and status are never taken from the client.
type CartInput struct {
	Session *string `json:"session"`
}

// LineItem reserves Quantity units of a product inside a cart. Any other field the client
// submitted with the item is kept in Attributes and stored next to the reference.
type LineItem struct {
	ProductID  ID             `bson:"_id"`
	Quantity   int            `bson:"quantity"`
	Attributes map[string]any `bson:",inline"`
}

const (
	lineItemProductKey  = "_id"
	lineItemQuantityKey = "quantity"
)

func (li LineItem) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(li.Attributes)+2)
	for k, v := range li.Attributes {
		m[k] = v
	}
	m[lineItemProductKey] = li.ProductID
	m[lineItemQuantityKey] = li.Quantity
	return json.Marshal(m)
}

func (li *LineItem) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*li = LineItem{}
	for k, v := range raw {
		switch k {
		case lineItemProductKey:
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("line item %s: %w", k, err)
			}
			li.ProductID = ID(s)
		case lineItemQuantityKey:
			if err := json.Unmarshal(v, &li.Quantity); err != nil {
				return fmt.Errorf("line item %s: %w", k, err)
			}
		default:
			var attr any
			if err := json.Unmarshal(v, &attr); err != nil {
				return err
			}
			if li.Attributes == nil {
				li.Attributes = make(map[string]any)
			}
			li.Attributes[k] = attr
		}
	}
	return nil
}

// Clone returns a copy that shares no maps or slices with li.
func (li LineItem) Clone() LineItem {
	out := li
	if li.Attributes != nil {
		out.Attributes = make(map[string]any, len(li.Attributes))
		for k, v := range li.Attributes {
			out.Attributes[k] = v
		}
	}
	return out
}

// SumQuantity adds up the quantities of items.
func SumQuantity(items []LineItem) int {
	total := 0
	for _, it := range items {
		total += it.Quantity
	}
	return total
}
