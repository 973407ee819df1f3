// Package store persists users and offers. Every backend hands out 24-hex
// ObjectID identifiers so handlers can validate ids without knowing which
// backend is configured.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound    = errors.New("document not found")
	ErrEmailExists = errors.New("email already exists")
	ErrInvalidID   = errors.New("invalid id")
)

type User struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	PushMessageToken string    `json:"pushMessageToken,omitempty"`
	MailAuthCode     int       `json:"-"`
	LastCodeRequest  time.Time `json:"lastCodeRequest"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type Offer struct {
	ID            string    `json:"id"`
	UserMail      string    `json:"userMail"`
	AcceptingUser []string  `json:"acceptingUser"`
	Subject       string    `json:"subject"`
	Topic         []string  `json:"topic"`
	Year          int       `json:"year"`
	EndDate       time.Time `json:"endDate"`
	IsAccepted    bool      `json:"isAccepted"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type UserRepository interface {
	List(ctx context.Context) ([]*User, error)
	Get(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// Create assigns ID, CreatedAt and UpdatedAt when they are empty.
	Create(ctx context.Context, user *User) error
	// Update replaces email and, when pushMessageToken is non-nil, the push token.
	Update(ctx context.Context, id, email string, pushMessageToken *string) (*User, error)
	Delete(ctx context.Context, id string) (*User, error)
	// RotateMailAuthCode stores newCode and at only if the stored code and
	// lastCodeRequest still equal expectCode and expectAt. It reports whether
	// the swap was applied.
	RotateMailAuthCode(ctx context.Context, id string, expectCode int, expectAt time.Time, newCode int, at time.Time) (bool, error)
}

type OfferRepository interface {
	List(ctx context.Context) ([]*Offer, error)
	Get(ctx context.Context, id string) (*Offer, error)
	Create(ctx context.Context, offer *Offer) error
	// Replace overwrites every mutable field of the offer with offer.ID.
	Replace(ctx context.Context, offer *Offer) (*Offer, error)
	Delete(ctx context.Context, id string) (*Offer, error)
}

type Store interface {
	Users() UserRepository
	Offers() OfferRepository
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// ValidID reports whether id is a well-formed store identifier.
func ValidID(id string) bool {
	_, err := primitive.ObjectIDFromHex(id)
	return err == nil
}

// NewID returns a fresh store identifier.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// Now returns the current UTC time at millisecond precision, the finest
// precision shared by every backend.
func Now() time.Time {
	return Truncate(time.Now())
}

// Truncate normalizes t to UTC milliseconds.
func Truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func normalizeOffer(o *Offer) {
	if o.AcceptingUser == nil {
		o.AcceptingUser = []string{}
	}
	if o.Topic == nil {
		o.Topic = []string{}
	}
	o.EndDate = Truncate(o.EndDate)
}
