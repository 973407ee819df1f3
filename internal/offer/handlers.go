// Package offer serves the tutoring offers posted on the board.
package offer

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	apperrors "github.com/offerboard/backend/internal/errors"
	"github.com/offerboard/backend/internal/logger"
	"github.com/offerboard/backend/internal/store"
)

// Counter counts offer events. May be nil.
type Counter interface {
	IncCounter(name string)
}

type Handlers struct {
	offers  store.OfferRepository
	counter Counter
	log     *logger.Logger
	now     func() time.Time
}

func NewHandlers(offers store.OfferRepository, counter Counter, l *logger.Logger) *Handlers {
	if l == nil {
		l = logger.Default()
	}
	return &Handlers{
		offers:  offers,
		counter: counter,
		log:     l.WithComponent("offer"),
		now:     time.Now,
	}
}

func (h *Handlers) count(name string) {
	if h.counter != nil {
		h.counter.IncCounter(name)
	}
}

type listResponse struct {
	Count  int            `json:"count"`
	Offers []*store.Offer `json:"offers"`
}

type offerResponse struct {
	Offer *store.Offer `json:"offer"`
}

func notFound(id string) error {
	return apperrors.NotFound(fmt.Sprintf("Unable to find offer with id: %s", id))
}

func pathID(r *http.Request) (string, error) {
	id := r.PathValue("id")
	if !store.ValidID(id) {
		return "", apperrors.InvalidID(id)
	}
	return id, nil
}

func (h *Handlers) decode(r *http.Request) (*offerRequest, error) {
	var req offerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, apperrors.BadRequest("Invalid request body")
	}
	if err := apperrors.FromValidation(req.Validate(h.now())); err != nil {
		return nil, err
	}
	return &req, nil
}

func (h *Handlers) List(w http.ResponseWriter, r *http.Request) error {
	offers, err := h.offers.List(r.Context())
	if err != nil {
		return apperrors.DatabaseError("failed to list offers").WithCause(err)
	}
	apperrors.WriteJSON(w, logger.RequestID(r.Context()), http.StatusOK, listResponse{Count: len(offers), Offers: offers})
	return nil
}

func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}

	o, err := h.offers.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(id)
		}
		return apperrors.DatabaseError("failed to load offer").WithCause(err)
	}

	apperrors.WriteJSON(w, logger.RequestID(r.Context()), http.StatusOK, o)
	return nil
}

func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) error {
	req, err := h.decode(r)
	if err != nil {
		return err
	}

	o := req.toOffer("")
	if err := h.offers.Create(r.Context(), o); err != nil {
		return apperrors.DatabaseError("failed to create offer").WithCause(err)
	}

	h.log.Info(r.Context(), "offer created", logger.Fields{"offer_id": o.ID, "subject": o.Subject})
	h.count("offers_created")
	apperrors.WriteJSON(w, logger.RequestID(r.Context()), http.StatusCreated, offerResponse{Offer: o})
	return nil
}

// Replace overwrites every mutable field of an existing offer.
func (h *Handlers) Replace(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	req, err := h.decode(r)
	if err != nil {
		return err
	}

	o, err := h.offers.Replace(r.Context(), req.toOffer(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(id)
		}
		return apperrors.DatabaseError("failed to update offer").WithCause(err)
	}

	apperrors.WriteJSON(w, logger.RequestID(r.Context()), http.StatusCreated, o)
	return nil
}

func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}

	o, err := h.offers.Delete(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(id)
		}
		return apperrors.DatabaseError("failed to delete offer").WithCause(err)
	}

	h.log.Info(r.Context(), "offer deleted", logger.Fields{"offer_id": id})
	h.count("offers_deleted")
	apperrors.WriteJSON(w, logger.RequestID(r.Context()), http.StatusNonAuthoritativeInfo, o)
	return nil
}
