package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sehatbot/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.Session) error
	// Get returns the session only while it is unexpired at now.
	Get(ctx context.Context, id string, now time.Time) (*models.Session, error)
	GetAny(ctx context.Context, id string) (*models.Session, error)
	FindActiveByAddress(ctx context.Context, address string, now time.Time) (*models.Session, error)
	UpdateStatus(ctx context.Context, id string, from, to models.SessionStatus, upd models.SessionUpdate) error
	CancelActiveByAddress(ctx context.Context, address string) (int64, error)
	CancelExpired(ctx context.Context, now time.Time) (int64, error)
}
