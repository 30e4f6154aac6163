package reports

import (
	"context"

	"github.com/dmitrijs2005/sehatbot/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, rep *models.Report) (*models.Report, error)
	GetBySessionID(ctx context.Context, sessionID string) (*models.Report, error)
}
