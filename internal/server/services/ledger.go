package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/sehatbot/internal/dbx"
	"github.com/dmitrijs2005/sehatbot/internal/server/models"
	"github.com/dmitrijs2005/sehatbot/internal/server/repositories/repomanager"
)

// LedgerService records paid completions.
type LedgerService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewLedgerService(db *sql.DB, m repomanager.RepositoryManager) *LedgerService {
	return &LedgerService{db: db, repomanager: m}
}

// RecordCompletion closes a paid session in one transaction: the session is
// moved to completed, the user's wallet is credited with the fee, and the
// paid measurement and its report are appended. If the session already left
// awaiting payment, common.ErrStatusConflict is returned and nothing is written.
func (s *LedgerService) RecordCompletion(ctx context.Context, c models.Completion) (*models.Receipt, error) {
	var receipt *models.Receipt

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		err := s.repomanager.Sessions(tx).UpdateStatus(ctx, c.SessionID,
			models.StatusAwaitingPayment, models.StatusCompleted, models.SessionUpdate{})
		if err != nil {
			return err
		}

		usersRepo := s.repomanager.Users(tx)
		user, err := usersRepo.GetByID(ctx, c.UserID)
		if err != nil {
			return fmt.Errorf("error loading user: %w", err)
		}

		balance, err := usersRepo.CreditBalance(ctx, c.UserID, c.Fee)
		if err != nil {
			return fmt.Errorf("error crediting balance: %w", err)
		}
		user.Balance = balance

		_, err = s.repomanager.Measurements(tx).Create(ctx, &models.MeasurementRecord{
			UserID:        c.UserID,
			Measurement:   c.Measurement,
			PaymentStatus: models.PaymentStatusPaid,
		})
		if err != nil {
			return fmt.Errorf("error storing measurement: %w", err)
		}

		report, err := s.repomanager.Reports(tx).Create(ctx, &models.Report{
			SessionID:     c.SessionID,
			UserID:        c.UserID,
			PatientName:   user.FullName,
			Measurement:   c.Measurement,
			BMIStatus:     models.ClassifyBMI(c.Measurement.BMI),
			Fee:           c.Fee,
			TransactionID: c.TransactionID,
			PaymentType:   c.PaymentMethod,
		})
		if err != nil {
			return fmt.Errorf("error creating report: %w", err)
		}

		receipt = &models.Receipt{Report: report, User: user}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// ReportForSession returns the report written when the session completed.
func (s *LedgerService) ReportForSession(ctx context.Context, sessionID string) (*models.Report, error) {
	return s.repomanager.Reports(s.db).GetBySessionID(ctx, sessionID)
}
