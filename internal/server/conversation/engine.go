// Package conversation implements the bot's session state machine: it reads
// one inbound message against the sender's active session and returns the
// next action, performing storage and notification side effects.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/sehatbot/internal/common"
	"github.com/dmitrijs2005/sehatbot/internal/logging"
	"github.com/dmitrijs2005/sehatbot/internal/server/metrics"
	"github.com/dmitrijs2005/sehatbot/internal/server/models"
	"github.com/google/uuid"
)

// Sessions is the session store used by the engine.
type Sessions interface {
	Start(ctx context.Context, address string, payload models.Measurement) (*models.Session, error)
	GetAny(ctx context.Context, id string) (*models.Session, error)
	FindActiveByAddress(ctx context.Context, address string) (*models.Session, error)
	UpdateStatus(ctx context.Context, id string, from, to models.SessionStatus, upd models.SessionUpdate) error
}

// Profiles looks up and registers user profiles.
type Profiles interface {
	ListByAddress(ctx context.Context, address string) ([]*models.User, error)
	FindByDisplayID(ctx context.Context, address, displayID string) (*models.User, error)
	Register(ctx context.Context, sessionID, address string, draft models.Draft) (*models.User, error)
}

// Ledger records a paid completion atomically with the session's final
// transition.
type Ledger interface {
	RecordCompletion(ctx context.Context, c models.Completion) (*models.Receipt, error)
	ReportForSession(ctx context.Context, sessionID string) (*models.Report, error)
}

// Notifier queues an outbound message without blocking.
type Notifier interface {
	Enqueue(address, text string) bool
}

// Reporter forwards unexpected failures to error tracking.
type Reporter interface {
	CaptureException(err error, tags map[string]string)
}

type Deps struct {
	Codec    PayloadDecoder
	Sessions Sessions
	Profiles Profiles
	Ledger   Ledger
	Notifier Notifier
	Reporter Reporter
}

type Options struct {
	Fee           models.Amount
	PaymentMethod string
	// NewTransactionID defaults to "TXN-" followed by a random UUID.
	NewTransactionID func() string
}

type stateHandler func(ctx context.Context, s *models.Session, text string) (*Action, error)

type Engine struct {
	deps     Deps
	opts     Options
	logger   logging.Logger
	metrics  *metrics.Metrics
	handlers map[models.SessionStatus]stateHandler
}

func NewEngine(deps Deps, opts Options, logger logging.Logger, m *metrics.Metrics) *Engine {
	if opts.NewTransactionID == nil {
		opts.NewTransactionID = func() string { return "TXN-" + uuid.NewString() }
	}

	e := &Engine{
		deps:    deps,
		opts:    opts,
		logger:  logger.With("module", "conversation"),
		metrics: m,
	}
	e.handlers = map[models.SessionStatus]stateHandler{
		models.StatusAwaitingUserSelection: e.onSelection,
		models.StatusAwaitingName:          e.onName,
		models.StatusAwaitingGender:        e.onGender,
		models.StatusAwaitingAge:           e.onAge,
		models.StatusAwaitingPayment:       e.onPayment,
	}
	return e
}

// Handle processes one inbound message. Any storage failure or panic is
// logged, reported, answered with a queued apology to the sender, and
// returned as common.ErrorInternal.
func (e *Engine) Handle(ctx context.Context, in Inbound) (action *Action, err error) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			action, err = e.fail(ctx, in, fmt.Errorf("panic: %v", p))
		}
		e.metrics.ObserveHandle(time.Since(start))
	}()

	action, err = e.handle(ctx, in)
	if err != nil {
		return e.fail(ctx, in, err)
	}
	e.metrics.Message(action.Action)
	return action, nil
}

func (e *Engine) handle(ctx context.Context, in Inbound) (*Action, error) {
	action, err := e.dispatch(ctx, in)
	if errors.Is(err, common.ErrStatusConflict) {
		e.logger.Info(ctx, "concurrent update lost", "address", in.Address, "error", err)
		return sendMessage(MsgStillProcessing), nil
	}
	return action, err
}

func (e *Engine) dispatch(ctx context.Context, in Inbound) (*Action, error) {
	text := strings.TrimSpace(in.Text)

	if blob, ok := submission(text); ok {
		return e.start(ctx, in.Address, blob)
	}

	session, err := e.deps.Sessions.FindActiveByAddress(ctx, in.Address)
	if errors.Is(err, common.ErrorNotFound) {
		return e.withoutSession(ctx, in.Address, text)
	}
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}

	h, ok := e.handlers[session.Status]
	if !ok {
		e.logger.Warn(ctx, "unhandled session status", "session_id", session.ID, "status", session.Status)
		return sendMessage(MsgLostTrack), nil
	}

	return h(ctx, session, text)
}

func (e *Engine) start(ctx context.Context, address, blob string) (*Action, error) {
	payload, err := DecodeMeasurement(e.deps.Codec, blob)
	if err != nil {
		e.logger.Warn(ctx, "unreadable measurement payload", "address", address, "error", err)
		return sendMessage(MsgFormatError), nil
	}

	session, err := e.deps.Sessions.Start(ctx, address, payload)
	if errors.Is(err, common.ErrAlreadyExists) {
		return sendMessage(MsgStillProcessing), nil
	}
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	e.logger.Info(ctx, "session started", "session_id", session.ID, "machine_id", payload.MachineID)

	users, err := e.deps.Profiles.ListByAddress(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	if len(users) > 0 {
		return &Action{
			Action:    ActionNeedsUserSelection,
			SessionID: session.ID,
			Users:     userOptions(users),
			Message:   MsgSelectProfile,
		}, nil
	}

	if err := e.advance(ctx, session, models.StatusAwaitingName, models.SessionUpdate{}); err != nil {
		return nil, err
	}
	return prompt(ActionAskFullName, session.ID, MsgAskName), nil
}

// withoutSession answers a message that has no active session. A repeated
// confirmation of a session this sender already completed is acknowledged
// with its report id and no side effects.
func (e *Engine) withoutSession(ctx context.Context, address, text string) (*Action, error) {
	if id, ok := confirmation(text); ok && id != "" {
		s, err := e.deps.Sessions.GetAny(ctx, id)
		switch {
		case err == nil:
			if s.Address == address && s.Status == models.StatusCompleted {
				r, err := e.deps.Ledger.ReportForSession(ctx, s.ID)
				if err != nil {
					return nil, fmt.Errorf("get report: %w", err)
				}
				return sendMessage(fmt.Sprintf(MsgAlreadyConfirmed, r.ID)), nil
			}
		case !errors.Is(err, common.ErrorNotFound):
			return nil, fmt.Errorf("get session: %w", err)
		}
	}
	return sendMessage(MsgHelp), nil
}

func (e *Engine) onName(ctx context.Context, s *models.Session, text string) (*Action, error) {
	name, ok := parseName(text)
	if !ok {
		return sendMessage(MsgInvalidName), nil
	}

	draft := draftOf(s)
	draft.FullName = name
	if err := e.advance(ctx, s, models.StatusAwaitingGender, models.SessionUpdate{Draft: &draft}); err != nil {
		return nil, err
	}
	return prompt(ActionAskGender, s.ID, fmt.Sprintf(MsgAskGender, name)), nil
}

func (e *Engine) onGender(ctx context.Context, s *models.Session, text string) (*Action, error) {
	gender, ok := parseGender(text)
	if !ok {
		return sendMessage(MsgInvalidGender), nil
	}

	draft := draftOf(s)
	draft.Gender = gender
	if err := e.advance(ctx, s, models.StatusAwaitingAge, models.SessionUpdate{Draft: &draft}); err != nil {
		return nil, err
	}
	return prompt(ActionAskAge, s.ID, MsgAskAge), nil
}

func (e *Engine) onAge(ctx context.Context, s *models.Session, text string) (*Action, error) {
	age, ok := parseAge(text)
	if !ok {
		return sendMessage(MsgInvalidAge), nil
	}

	draft := draftOf(s)
	if draft.FullName == "" || draft.Gender == "" {
		e.logger.Warn(ctx, "incomplete registration draft", "session_id", s.ID)
		return sendMessage(MsgLostTrack), nil
	}
	draft.Age = age

	user, err := e.deps.Profiles.Register(ctx, s.ID, s.Address, draft)
	if err != nil {
		return nil, fmt.Errorf("register profile: %w", err)
	}
	e.metrics.Transition(string(s.Status), string(models.StatusAwaitingPayment))
	e.logger.Info(ctx, "profile registered", "session_id", s.ID, "user_id", user.ID, "display_id", user.DisplayID, "role", user.Role)

	return prompt(ActionNeedsPayment, s.ID, fmt.Sprintf(MsgRegistered, user.FullName, user.DisplayID)), nil
}

func (e *Engine) onSelection(ctx context.Context, s *models.Session, text string) (*Action, error) {
	displayID, ok := selection(text)
	if !ok {
		return sendMessage(MsgSelectReminder), nil
	}

	user, err := e.deps.Profiles.FindByDisplayID(ctx, s.Address, displayID)
	if errors.Is(err, common.ErrorNotFound) {
		return sendMessage(fmt.Sprintf(MsgUnknownProfile, displayID)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("find profile: %w", err)
	}

	upd := models.SessionUpdate{SelectedUserID: &user.ID}
	if err := e.advance(ctx, s, models.StatusAwaitingPayment, upd); err != nil {
		return nil, err
	}
	return prompt(ActionNeedsPayment, s.ID, MsgSelected), nil
}

func (e *Engine) onPayment(ctx context.Context, s *models.Session, text string) (*Action, error) {
	id, ok := confirmation(text)
	if !ok {
		return sendMessage(MsgAwaitingPayment), nil
	}
	if id != s.ID {
		return sendMessage(MsgSessionMismatch), nil
	}
	if s.SelectedUserID == nil {
		e.logger.Warn(ctx, "payment session without user", "session_id", s.ID)
		return sendMessage(MsgLostTrack), nil
	}

	receipt, err := e.deps.Ledger.RecordCompletion(ctx, models.Completion{
		SessionID:     s.ID,
		UserID:        *s.SelectedUserID,
		Measurement:   s.Measurement,
		Fee:           e.opts.Fee,
		TransactionID: e.opts.NewTransactionID(),
		PaymentMethod: e.opts.PaymentMethod,
	})
	if err != nil {
		return nil, fmt.Errorf("record completion: %w", err)
	}
	e.metrics.Transition(string(s.Status), string(models.StatusCompleted))
	e.logger.Info(ctx, "session completed", "session_id", s.ID, "report_id", receipt.Report.ID,
		"transaction_id", receipt.Report.TransactionID)

	e.deps.Notifier.Enqueue(s.Address, summary(receipt))

	return prompt(ActionPaymentSuccess, s.ID, MsgPaymentSuccess), nil
}

// advance moves s to the next status with a compare-and-swap on its current one.
func (e *Engine) advance(ctx context.Context, s *models.Session, to models.SessionStatus, upd models.SessionUpdate) error {
	if err := e.deps.Sessions.UpdateStatus(ctx, s.ID, s.Status, to, upd); err != nil {
		return fmt.Errorf("update session %s: %w", s.ID, err)
	}
	e.metrics.Transition(string(s.Status), string(to))
	e.logger.Debug(ctx, "session advanced", "session_id", s.ID, "from", s.Status, "to", to)
	return nil
}

func (e *Engine) fail(ctx context.Context, in Inbound, err error) (*Action, error) {
	e.metrics.Failure()
	e.logger.Error(ctx, "message handling failed", "address", in.Address, "error", err)

	if e.deps.Reporter != nil {
		e.deps.Reporter.CaptureException(err, map[string]string{"address": in.Address})
	}
	if in.Address != "" {
		e.deps.Notifier.Enqueue(in.Address, MsgApology)
	}
	return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
}

func draftOf(s *models.Session) models.Draft {
	if s.Draft == nil {
		return models.Draft{}
	}
	return *s.Draft
}
