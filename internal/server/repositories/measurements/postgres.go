package measurements

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/sehatbot/internal/dbx"
	"github.com/dmitrijs2005/sehatbot/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, rec *models.MeasurementRecord) (*models.MeasurementRecord, error) {
	query :=
		`INSERT INTO measurements (user_id, height, weight, bmi, payment_status, machine_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at
		 `

	m := rec.Measurement
	err := r.db.QueryRowContext(ctx, query, rec.UserID, m.Height, m.Weight, m.BMI, rec.PaymentStatus, m.MachineID).
		Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}
