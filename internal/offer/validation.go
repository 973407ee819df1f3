package offer

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/offerboard/backend/internal/store"
)

type offerRequest struct {
	UserMail      string    `json:"userMail"`
	AcceptingUser []string  `json:"acceptingUser"`
	Subject       string    `json:"subject"`
	Topic         []string  `json:"topic"`
	Year          *int      `json:"year"`
	EndDate       *Date     `json:"endDate"`
	IsAccepted    *bool     `json:"isAccepted"`
}

var (
	errNotStoreID = errors.New("must be a valid id")
	errPastDate   = errors.New("must be in the future")
	errBlankTopic = errors.New("must not contain blank topics")
)

func storeID(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if !store.ValidID(s) {
		return errNotStoreID
	}
	return nil
}

func storeIDs(value interface{}) error {
	ids, _ := value.([]string)
	for _, id := range ids {
		if !store.ValidID(id) {
			return errNotStoreID
		}
	}
	return nil
}

func topics(value interface{}) error {
	list, _ := value.([]string)
	for _, t := range list {
		if strings.TrimSpace(t) == "" {
			return errBlankTopic
		}
	}
	return nil
}

func after(now time.Time) validation.RuleFunc {
	return func(value interface{}) error {
		d, _ := value.(*Date)
		if d == nil {
			return nil
		}
		if !d.After(now) {
			return errPastDate
		}
		return nil
	}
}

// Validate checks the request against the clock reading now.
func (r offerRequest) Validate(now time.Time) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserMail, validation.Required, validation.By(storeID)),
		validation.Field(&r.AcceptingUser, validation.By(storeIDs)),
		validation.Field(&r.Subject, validation.Required),
		validation.Field(&r.Topic, validation.By(topics)),
		validation.Field(&r.Year, validation.Required, validation.Min(5), validation.Max(13)),
		validation.Field(&r.EndDate, validation.Required, validation.By(after(now))),
		validation.Field(&r.IsAccepted, validation.NotNil),
	)
}

func (r offerRequest) toOffer(id string) *store.Offer {
	return &store.Offer{
		ID:            id,
		UserMail:      r.UserMail,
		AcceptingUser: r.AcceptingUser,
		Subject:       strings.TrimSpace(r.Subject),
		Topic:         r.Topic,
		Year:          *r.Year,
		EndDate:       r.EndDate.Time,
		IsAccepted:    *r.IsAccepted,
	}
}
