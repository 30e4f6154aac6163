// Package services contains the bot server's business logic on top of the
// repositories: conversation sessions, user profiles and the completion ledger.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sehatbot/internal/common"
	"github.com/dmitrijs2005/sehatbot/internal/dbx"
	"github.com/dmitrijs2005/sehatbot/internal/server/config"
	"github.com/dmitrijs2005/sehatbot/internal/server/models"
	"github.com/dmitrijs2005/sehatbot/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// SessionService owns the lifecycle of conversation sessions. Expiry is
// evaluated lazily against the injected clock.
type SessionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	ttl         time.Duration
	now         func() time.Time
}

func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *SessionService {
	return &SessionService{
		db:          db,
		repomanager: m,
		ttl:         cfg.SessionTTL,
		now:         time.Now,
	}
}

// WithClock replaces the time source; used by tests.
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	s.now = now
	return s
}

// Create stores a new session awaiting user selection.
func (s *SessionService) Create(ctx context.Context, id, address string, payload models.Measurement) (*models.Session, error) {
	return s.create(ctx, s.db, id, address, payload)
}

// Start cancels every non-terminal session of the address and creates a new
// one, in one transaction.
func (s *SessionService) Start(ctx context.Context, address string, payload models.Measurement) (*models.Session, error) {
	if !payload.Valid() {
		return nil, common.ErrInvalidPayload
	}

	var session *models.Session
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Sessions(tx).CancelActiveByAddress(ctx, address); err != nil {
			return fmt.Errorf("error cancelling sessions: %w", err)
		}
		var err error
		session, err = s.create(ctx, tx, uuid.NewString(), address, payload)
		return err
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (s *SessionService) create(ctx context.Context, db dbx.DBTX, id, address string, payload models.Measurement) (*models.Session, error) {
	if !payload.Valid() {
		return nil, common.ErrInvalidPayload
	}

	session := &models.Session{
		ID:          id,
		Address:     address,
		Status:      models.StatusAwaitingUserSelection,
		Measurement: payload,
		ExpiresAt:   s.now().Add(s.ttl),
	}
	if err := s.repomanager.Sessions(db).Create(ctx, session); err != nil {
		return nil, fmt.Errorf("error creating session: %w", err)
	}
	return session, nil
}

// Get returns the session only while it has not expired.
func (s *SessionService) Get(ctx context.Context, id string) (*models.Session, error) {
	return s.repomanager.Sessions(s.db).Get(ctx, id, s.now())
}

// GetAny returns the session regardless of its expiry or status.
func (s *SessionService) GetAny(ctx context.Context, id string) (*models.Session, error) {
	return s.repomanager.Sessions(s.db).GetAny(ctx, id)
}

func (s *SessionService) FindActiveByAddress(ctx context.Context, address string) (*models.Session, error) {
	return s.repomanager.Sessions(s.db).FindActiveByAddress(ctx, address, s.now())
}

// UpdateStatus performs a checked compare-and-swap transition. The expiry is
// left unchanged.
func (s *SessionService) UpdateStatus(ctx context.Context, id string, from, to models.SessionStatus, upd models.SessionUpdate) error {
	if !models.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", common.ErrInvalidTransition, from, to)
	}
	return s.repomanager.Sessions(s.db).UpdateStatus(ctx, id, from, to, upd)
}

// CancelExpired marks expired non-terminal sessions cancelled.
func (s *SessionService) CancelExpired(ctx context.Context) (int64, error) {
	return s.repomanager.Sessions(s.db).CancelExpired(ctx, s.now())
}
