package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sehatbot/internal/common"
	"github.com/dmitrijs2005/sehatbot/internal/dbx"
	"github.com/dmitrijs2005/sehatbot/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const selectColumns = `session_id, address, status, measurement, selected_user_id, draft, created_at, expires_at`

const nonTerminal = `status NOT IN ('completed', 'cancelled')`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.Session) error {
	measurement, err := json.Marshal(s.Measurement)
	if err != nil {
		return fmt.Errorf("encode measurement: %w", err)
	}

	query :=
		`INSERT INTO sessions (session_id, address, status, measurement, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at
		 `

	err = r.db.QueryRowContext(ctx, query, s.ID, s.Address, string(s.Status), string(measurement), s.ExpiresAt).
		Scan(&s.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string, now time.Time) (*models.Session, error) {
	query := `SELECT ` + selectColumns + ` FROM sessions
		 WHERE session_id = $1 AND expires_at > $2
		 `
	return scanOne(r.db.QueryRowContext(ctx, query, id, now))
}

func (r *PostgresRepository) GetAny(ctx context.Context, id string) (*models.Session, error) {
	query := `SELECT ` + selectColumns + ` FROM sessions
		 WHERE session_id = $1
		 `
	return scanOne(r.db.QueryRowContext(ctx, query, id))
}

// FindActiveByAddress returns the most recent non-terminal, unexpired session.
func (r *PostgresRepository) FindActiveByAddress(ctx context.Context, address string, now time.Time) (*models.Session, error) {
	query := `SELECT ` + selectColumns + ` FROM sessions
		 WHERE address = $1 AND ` + nonTerminal + ` AND expires_at > $2
		 ORDER BY created_at DESC
		 LIMIT 1
		 `
	return scanOne(r.db.QueryRowContext(ctx, query, address, now))
}

// UpdateStatus moves the session from -> to only if it is still in from.
// Nil fields of upd keep their stored values. A lost race yields
// common.ErrStatusConflict.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, from, to models.SessionStatus, upd models.SessionUpdate) error {
	var draft any
	if upd.Draft != nil {
		b, err := json.Marshal(upd.Draft)
		if err != nil {
			return fmt.Errorf("encode draft: %w", err)
		}
		draft = string(b)
	}
	var selected any
	if upd.SelectedUserID != nil {
		selected = *upd.SelectedUserID
	}

	query :=
		`UPDATE sessions
		 SET status = $1,
		     selected_user_id = COALESCE($2, selected_user_id),
		     draft = COALESCE($3::jsonb, draft)
		 WHERE session_id = $4 AND status = $5
		 `

	res, err := r.db.ExecContext(ctx, query, string(to), selected, draft, id, string(from))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if err := dbx.RequireAffected(res); err != nil {
		if errors.Is(err, dbx.ErrNoRowsAffected) {
			return common.ErrStatusConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// CancelActiveByAddress cancels every non-terminal session of the address,
// expired or not, and returns how many were cancelled.
func (r *PostgresRepository) CancelActiveByAddress(ctx context.Context, address string) (int64, error) {
	query := `UPDATE sessions SET status = 'cancelled'
		 WHERE address = $1 AND ` + nonTerminal

	return r.exec(ctx, query, address)
}

func (r *PostgresRepository) CancelExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE sessions SET status = 'cancelled'
		 WHERE expires_at <= $1 AND ` + nonTerminal

	return r.exec(ctx, query, now)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func scanOne(row *sql.Row) (*models.Session, error) {
	var (
		s           models.Session
		status      string
		measurement []byte
		selected    sql.NullInt64
		draft       []byte
	)
	err := row.Scan(&s.ID, &s.Address, &status, &measurement, &selected, &draft, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	s.Status = models.SessionStatus(status)
	if err := json.Unmarshal(measurement, &s.Measurement); err != nil {
		return nil, fmt.Errorf("decode measurement: %w", err)
	}
	if selected.Valid {
		id := selected.Int64
		s.SelectedUserID = &id
	}
	if len(draft) > 0 {
		s.Draft = &models.Draft{}
		if err := json.Unmarshal(draft, s.Draft); err != nil {
			return nil, fmt.Errorf("decode draft: %w", err)
		}
	}
	return &s, nil
}
