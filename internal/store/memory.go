package store

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps documents in process memory. It is used by tests and by
// STORE_DRIVER=memory for local runs.
type MemoryStore struct {
	users  *memoryUsers
	offers *memoryOffers
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  &memoryUsers{byID: make(map[string]*User)},
		offers: &memoryOffers{byID: make(map[string]*Offer)},
	}
}

func (s *MemoryStore) Users() UserRepository   { return s.users }
func (s *MemoryStore) Offers() OfferRepository { return s.offers }

func (s *MemoryStore) Ping(ctx context.Context) error  { return ctx.Err() }
func (s *MemoryStore) Close(ctx context.Context) error { return nil }

type memoryUsers struct {
	mu    sync.RWMutex
	byID  map[string]*User
	order []string
}

func copyUser(u *User) *User {
	c := *u
	return &c
}

func (r *memoryUsers) List(ctx context.Context) ([]*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]*User, 0, len(r.order))
	for _, id := range r.order {
		users = append(users, copyUser(r.byID[id]))
	}
	return users, nil
}

func (r *memoryUsers) Get(ctx context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(u), nil
}

func (r *memoryUsers) GetByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.byID {
		if strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryUsers) emailTaken(email, exceptID string) bool {
	for id, u := range r.byID {
		if id != exceptID && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (r *memoryUsers) Create(ctx context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.emailTaken(user.Email, "") {
		return ErrEmailExists
	}
	if user.ID == "" {
		user.ID = NewID()
	}
	now := Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}
	user.LastCodeRequest = Truncate(user.LastCodeRequest)

	r.byID[user.ID] = copyUser(user)
	r.order = append(r.order, user.ID)
	return nil
}

func (r *memoryUsers) Update(ctx context.Context, id, email string, pushMessageToken *string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if r.emailTaken(email, id) {
		return nil, ErrEmailExists
	}
	u.Email = email
	if pushMessageToken != nil {
		u.PushMessageToken = *pushMessageToken
	}
	u.UpdatedAt = Now()
	return copyUser(u), nil
}

func (r *memoryUsers) Delete(ctx context.Context, id string) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(r.byID, id)
	r.order = removeID(r.order, id)
	return u, nil
}

func (r *memoryUsers) RotateMailAuthCode(ctx context.Context, id string, expectCode int, expectAt time.Time, newCode int, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return false, nil
	}
	if u.MailAuthCode != expectCode || !u.LastCodeRequest.Equal(Truncate(expectAt)) {
		return false, nil
	}
	u.MailAuthCode = newCode
	u.LastCodeRequest = Truncate(at)
	u.UpdatedAt = Truncate(at)
	return true, nil
}

type memoryOffers struct {
	mu    sync.RWMutex
	byID  map[string]*Offer
	order []string
}

func copyOffer(o *Offer) *Offer {
	c := *o
	c.AcceptingUser = append([]string{}, o.AcceptingUser...)
	c.Topic = append([]string{}, o.Topic...)
	return &c
}

func (r *memoryOffers) List(ctx context.Context) ([]*Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	offers := make([]*Offer, 0, len(r.order))
	for _, id := range r.order {
		offers = append(offers, copyOffer(r.byID[id]))
	}
	return offers, nil
}

func (r *memoryOffers) Get(ctx context.Context, id string) (*Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyOffer(o), nil
}

func (r *memoryOffers) Create(ctx context.Context, offer *Offer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	normalizeOffer(offer)
	if offer.ID == "" {
		offer.ID = NewID()
	}
	now := Now()
	offer.CreatedAt = now
	offer.UpdatedAt = now

	r.byID[offer.ID] = copyOffer(offer)
	r.order = append(r.order, offer.ID)
	return nil
}

func (r *memoryOffers) Replace(ctx context.Context, offer *Offer) (*Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[offer.ID]
	if !ok {
		return nil, ErrNotFound
	}
	normalizeOffer(offer)
	offer.CreatedAt = existing.CreatedAt
	offer.UpdatedAt = Now()
	r.byID[offer.ID] = copyOffer(offer)
	return copyOffer(offer), nil
}

func (r *memoryOffers) Delete(ctx context.Context, id string) (*Offer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(r.byID, id)
	r.order = removeID(r.order, id)
	return o, nil
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
