package auth

import (
	"context"
	"time"

	"github.com/offerboard/backend/internal/logger"
	"github.com/offerboard/backend/internal/mail"
	"github.com/offerboard/backend/internal/store"
)

// CodeValidity is how long an emailed code can be used to log in.
const CodeValidity = 10 * time.Minute

const (
	ReasonIncorrectCode = "The emailCode is incorrect"
	ReasonCodeExpired   = "The send mailAuthCode is too old. A new one has been generated and a new email has been send."
	ReasonCodeUsed      = "The emailCode has already been used"
)

type Outcome int

const (
	Accepted Outcome = iota
	Rejected
	Regenerated
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Regenerated:
		return "regenerated"
	default:
		return "unknown"
	}
}

type LoginResult struct {
	Outcome Outcome
	Tokens  *TokenPair
	Reason  string
}

type LoginConfig struct {
	Users  store.UserRepository
	Tokens *Tokens
	Sender mail.CodeSender
	// AllowBypass accepts BypassCode for every user.
	AllowBypass bool
	Logger      *logger.Logger
}

// LoginMachine decides what a submitted code does to a user. Every mutation
// goes through the store's compare-and-swap so one code yields at most one
// token pair.
type LoginMachine struct {
	users       store.UserRepository
	tokens      *Tokens
	sender      mail.CodeSender
	allowBypass bool
	log         *logger.Logger
	now         func() time.Time
	newCode     func() (int, error)
}

func NewLoginMachine(cfg LoginConfig) *LoginMachine {
	l := cfg.Logger
	if l == nil {
		l = logger.Default()
	}
	return &LoginMachine{
		users:       cfg.Users,
		tokens:      cfg.Tokens,
		sender:      cfg.Sender,
		allowBypass: cfg.AllowBypass,
		log:         l.WithComponent("login"),
		now:         time.Now,
		newCode:     GenerateCode,
	}
}

func (m *LoginMachine) Login(ctx context.Context, user *store.User, submitted int) (*LoginResult, error) {
	if m.allowBypass && submitted == BypassCode {
		m.log.Warn(ctx, "test bypass code used", logger.Fields{"user_id": user.ID})
		return m.accept(user)
	}

	if submitted != user.MailAuthCode {
		return &LoginResult{Outcome: Rejected, Reason: ReasonIncorrectCode}, nil
	}

	now := m.now()
	if !now.Before(user.LastCodeRequest.Add(CodeValidity)) {
		code, swapped, err := m.rotate(ctx, user, now)
		if err != nil {
			return nil, err
		}
		if !swapped {
			return &LoginResult{Outcome: Rejected, Reason: ReasonCodeUsed}, nil
		}
		m.dispatch(ctx, user, code)
		return &LoginResult{Outcome: Regenerated, Reason: ReasonCodeExpired}, nil
	}

	result, err := m.accept(user)
	if err != nil {
		return nil, err
	}
	_, swapped, err := m.rotate(ctx, user, now)
	if err != nil {
		return nil, err
	}
	if !swapped {
		return &LoginResult{Outcome: Rejected, Reason: ReasonCodeUsed}, nil
	}
	return result, nil
}

func (m *LoginMachine) accept(user *store.User) (*LoginResult, error) {
	pair, err := m.tokens.IssuePair(user.ID)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Outcome: Accepted, Tokens: pair}, nil
}

func (m *LoginMachine) rotate(ctx context.Context, user *store.User, now time.Time) (int, bool, error) {
	code, err := m.newCode()
	if err != nil {
		return 0, false, err
	}
	swapped, err := m.users.RotateMailAuthCode(ctx, user.ID, user.MailAuthCode, user.LastCodeRequest, code, now)
	if err != nil {
		return 0, false, err
	}
	return code, swapped, nil
}

// NewCode returns a fresh code and its request time for a new user.
func (m *LoginMachine) NewCode() (int, time.Time, error) {
	code, err := m.newCode()
	if err != nil {
		return 0, time.Time{}, err
	}
	return code, store.Truncate(m.now()), nil
}

// Dispatch sends code to the user's email. Failures are logged and swallowed.
func (m *LoginMachine) Dispatch(ctx context.Context, user *store.User, code int) {
	m.dispatch(ctx, user, code)
}

func (m *LoginMachine) dispatch(ctx context.Context, user *store.User, code int) {
	if m.sender == nil {
		return
	}
	if err := m.sender.SendCode(ctx, user.Email, code); err != nil {
		m.log.Warn(ctx, "failed to send login code", logger.Fields{
			"user_id": user.ID,
			"error":   err.Error(),
		})
	}
}
