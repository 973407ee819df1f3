// Package user serves signup, login and account maintenance.
package user

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/offerboard/backend/internal/auth"
	apperrors "github.com/offerboard/backend/internal/errors"
	"github.com/offerboard/backend/internal/logger"
	"github.com/offerboard/backend/internal/store"
)

// Recorder counts login outcomes and account events.
type Recorder interface {
	RecordLogin(outcome string)
	IncCounter(name string)
}

type Handlers struct {
	users    store.UserRepository
	login    *auth.LoginMachine
	tokens   *auth.Tokens
	recorder Recorder
	log      *logger.Logger
}

type Config struct {
	Users    store.UserRepository
	Login    *auth.LoginMachine
	Tokens   *auth.Tokens
	Recorder Recorder
	Logger   *logger.Logger
}

func NewHandlers(cfg Config) *Handlers {
	l := cfg.Logger
	if l == nil {
		l = logger.Default()
	}
	return &Handlers{
		users:    cfg.Users,
		login:    cfg.Login,
		tokens:   cfg.Tokens,
		recorder: cfg.Recorder,
		log:      l.WithComponent("user"),
	}
}

type listResponse struct {
	Count int           `json:"count"`
	Users []*store.User `json:"users"`
}

type userResponse struct {
	User *store.User `json:"user"`
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.BadRequest("Invalid request body")
	}
	return nil
}

func notFound(id string) error {
	return apperrors.NotFound(fmt.Sprintf("User with id %s not found", id))
}

// pathID returns the {id} path value or a 400 when it is not a store id.
func pathID(r *http.Request) (string, error) {
	id := r.PathValue("id")
	if !store.ValidID(id) {
		return "", apperrors.InvalidID(id)
	}
	return id, nil
}

func (h *Handlers) count(name string) {
	if h.recorder != nil {
		h.recorder.IncCounter(name)
	}
}

func (h *Handlers) List(w http.ResponseWriter, r *http.Request) error {
	users, err := h.users.List(r.Context())
	if err != nil {
		return apperrors.DatabaseError("failed to list users").WithCause(err)
	}
	apperrors.WriteJSON(w, logger.RequestID(r.Context()), http.StatusOK, listResponse{Count: len(users), Users: users})
	return nil
}

func (h *Handlers) Signup(w http.ResponseWriter, r *http.Request) error {
	var req userRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	req.normalize()
	if err := apperrors.FromValidation(req.Validate()); err != nil {
		return err
	}

	ctx := r.Context()
	if _, err := h.users.GetByEmail(ctx, req.Email); err == nil {
		return apperrors.EmailExists(req.Email)
	} else if !errors.Is(err, store.ErrNotFound) {
		return apperrors.DatabaseError("failed to look up user").WithCause(err)
	}

	code, at, err := h.login.NewCode()
	if err != nil {
		return apperrors.InternalError("failed to generate login code").WithCause(err)
	}

	u := &store.User{
		Email:           req.Email,
		MailAuthCode:    code,
		LastCodeRequest: at,
	}
	if req.PushMessageToken != nil {
		u.PushMessageToken = *req.PushMessageToken
	}

	if err := h.users.Create(ctx, u); err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			return apperrors.EmailExists(req.Email)
		}
		return apperrors.DatabaseError("failed to create user").WithCause(err)
	}

	h.log.Info(ctx, "user signed up", logger.Fields{"user_id": u.ID})
	h.count("user_signups")
	h.login.Dispatch(ctx, u, code)

	apperrors.WriteJSON(w, logger.RequestID(ctx), http.StatusCreated, userResponse{User: u})
	return nil
}

func (h *Handlers) Update(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	if err := auth.RequireUser(r.Context(), id); err != nil {
		return err
	}

	var req userRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	req.normalize()
	if err := apperrors.FromValidation(req.Validate()); err != nil {
		return err
	}

	u, err := h.users.Update(r.Context(), id, req.Email, req.PushMessageToken)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return notFound(id)
		case errors.Is(err, store.ErrEmailExists):
			return apperrors.EmailExists(req.Email)
		}
		return apperrors.DatabaseError("failed to update user").WithCause(err)
	}

	apperrors.WriteJSON(w, logger.RequestID(r.Context()), http.StatusCreated, u)
	return nil
}

func (h *Handlers) Delete(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	if err := auth.RequireUser(r.Context(), id); err != nil {
		return err
	}

	if _, err := h.users.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(id)
		}
		return apperrors.DatabaseError("failed to delete user").WithCause(err)
	}

	h.log.Info(r.Context(), "user deleted", logger.Fields{"user_id": id})
	h.count("user_deletions")
	apperrors.WriteJSON(w, logger.RequestID(r.Context()), http.StatusNoContent, nil)
	return nil
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}

	var req loginRequest
	if err := decode(r, &req); err != nil {
		return err
	}
	if err := apperrors.FromValidation(req.Validate()); err != nil {
		return err
	}

	ctx := r.Context()
	u, err := h.users.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(id)
		}
		return apperrors.DatabaseError("failed to load user").WithCause(err)
	}

	res, err := h.login.Login(ctx, u, int(*req.EmailCode))
	if err != nil {
		return apperrors.InternalError("login failed").WithCause(err)
	}
	if h.recorder != nil {
		h.recorder.RecordLogin(res.Outcome.String())
	}

	switch res.Outcome {
	case auth.Regenerated:
		return apperrors.CodeExpired(res.Reason)
	case auth.Rejected:
		return apperrors.IncorrectCode(res.Reason)
	}

	apperrors.WriteJSON(w, logger.RequestID(ctx), http.StatusOK, res.Tokens)
	return nil
}

// Refresh trades a valid refresh token for a new token pair.
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	if err := auth.RequireUser(r.Context(), id); err != nil {
		return err
	}

	if _, err := h.users.Get(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return notFound(id)
		}
		return apperrors.DatabaseError("failed to load user").WithCause(err)
	}

	pair, err := h.tokens.IssuePair(id)
	if err != nil {
		return apperrors.InternalError("failed to issue tokens").WithCause(err)
	}

	apperrors.WriteJSON(w, logger.RequestID(r.Context()), http.StatusOK, pair)
	return nil
}
