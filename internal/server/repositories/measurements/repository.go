package measurements

import (
	"context"

	"github.com/dmitrijs2005/sehatbot/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, rec *models.MeasurementRecord) (*models.MeasurementRecord, error)
}
