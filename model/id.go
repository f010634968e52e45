package models

import (
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrInvalidID is returned by ParseID for values that are not a 24 character hex ObjectID.
var ErrInvalidID = errors.New("invalid id")

// ID identifies a product or a cart. It always holds the lower-case hex form of an ObjectID,
// whichever store backend generated it.
type ID string

// NewID returns a fresh identifier.
func NewID() ID {
	return ID(primitive.NewObjectID().Hex())
}

// ParseID validates s and returns it in canonical form.
func ParseID(s string) (ID, error) {
	oid, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return "", ErrInvalidID
	}
	return ID(oid.Hex()), nil
}

// ObjectID converts an already parsed ID back to its binary form.
func (id ID) ObjectID() primitive.ObjectID {
	oid, _ := primitive.ObjectIDFromHex(string(id))
	return oid
}

func (id ID) String() string { return string(id) }
