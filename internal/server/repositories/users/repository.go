package users

import (
	"context"

	"github.com/dmitrijs2005/sehatbot/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByDisplayID(ctx context.Context, address, displayID string) (*models.User, error)
	ListByAddress(ctx context.Context, address string) ([]*models.User, error)
	CountByAddress(ctx context.Context, address string) (int, error)
	DisplayIDExists(ctx context.Context, displayID string) (bool, error)
	CreditBalance(ctx context.Context, id int64, amount models.Amount) (models.Amount, error)
}
