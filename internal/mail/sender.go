// Package mail hands login codes to whatever delivers them to the user.
package mail

import (
	"context"
	"errors"

	apperrors "github.com/offerboard/backend/internal/errors"
	"github.com/offerboard/backend/internal/logger"
)

// ErrTransient marks a delivery failure that may succeed on a later attempt.
var ErrTransient = errors.New("mail: transient delivery failure")

type CodeSender interface {
	SendCode(ctx context.Context, email string, code int) error
}

// LogSender writes codes to the log instead of delivering them.
type LogSender struct {
	log *logger.Logger
}

func NewLogSender(l *logger.Logger) *LogSender {
	if l == nil {
		l = logger.Default()
	}
	return &LogSender{log: l.WithComponent("mail")}
}

func (s *LogSender) SendCode(ctx context.Context, email string, code int) error {
	s.log.Info(ctx, "login code issued", logger.Fields{
		"email": email,
		"code":  code,
	})
	return nil
}

// DispatchRecorder counts delivery attempts.
type DispatchRecorder interface {
	RecordCodeDispatch(ok bool)
}

type recordingSender struct {
	next     CodeSender
	recorder DispatchRecorder
}

// WithRecorder reports the result of every SendCode call to r.
func WithRecorder(s CodeSender, r DispatchRecorder) CodeSender {
	return &recordingSender{next: s, recorder: r}
}

func (s *recordingSender) SendCode(ctx context.Context, email string, code int) error {
	err := s.next.SendCode(ctx, email, code)
	s.recorder.RecordCodeDispatch(err == nil)
	return err
}

type retryingSender struct {
	next CodeSender
	cfg  *apperrors.RetryConfig
}

// WithRetry retries sends that fail with ErrTransient using cfg.
func WithRetry(s CodeSender, cfg *apperrors.RetryConfig) CodeSender {
	if cfg == nil {
		cfg = apperrors.MailRetryConfig()
	}
	c := *cfg
	c.Retryable = func(err error) bool { return errors.Is(err, ErrTransient) }
	return &retryingSender{next: s, cfg: &c}
}

func (s *retryingSender) SendCode(ctx context.Context, email string, code int) error {
	return apperrors.Retry(ctx, s.cfg, func(ctx context.Context) error {
		return s.next.SendCode(ctx, email, code)
	})
}
