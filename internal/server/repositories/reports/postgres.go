package reports

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/sehatbot/internal/common"
	"github.com/dmitrijs2005/sehatbot/internal/dbx"
	"github.com/dmitrijs2005/sehatbot/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create appends a report. A second report for the same session or
// transaction id yields common.ErrAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, rep *models.Report) (*models.Report, error) {
	query :=
		`INSERT INTO reports (session_id, user_id, patient_name, height, weight, bmi, bmi_status,
		                      machine_id, fee, transaction_id, payment_type)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id, report_date
		 `

	m := rep.Measurement
	err := r.db.QueryRowContext(ctx, query,
		rep.SessionID, rep.UserID, rep.PatientName, m.Height, m.Weight, m.BMI, rep.BMIStatus,
		m.MachineID, rep.Fee, rep.TransactionID, rep.PaymentType).
		Scan(&rep.ID, &rep.ReportDate)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rep, nil
}

func (r *PostgresRepository) GetBySessionID(ctx context.Context, sessionID string) (*models.Report, error) {
	query :=
		`SELECT id, session_id, user_id, patient_name, report_date, height, weight, bmi, bmi_status,
		        machine_id, fee, transaction_id, payment_type
		 FROM reports
		 WHERE session_id = $1
		 `

	rep := &models.Report{}
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(
		&rep.ID, &rep.SessionID, &rep.UserID, &rep.PatientName, &rep.ReportDate,
		&rep.Measurement.Height, &rep.Measurement.Weight, &rep.Measurement.BMI, &rep.BMIStatus,
		&rep.Measurement.MachineID, &rep.Fee, &rep.TransactionID, &rep.PaymentType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rep, nil
}
