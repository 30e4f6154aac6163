package users

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

// PrimaryConstraint is the partial unique index allowing one SuperUser per address.
const PrimaryConstraint = "users_primary_per_address_idx"

// ErrPrimaryExists is returned when a second primary profile is inserted for
// the same address.
var ErrPrimaryExists = errors.New("primary profile already exists")

const selectColumns = `id, display_id, address, full_name, age, gender, role, wallet_id, balance, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {

	query :=
		`INSERT INTO users (display_id, address, full_name, age, gender, role, wallet_id)
         VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, balance, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.DisplayID, user.Address, user.FullName, user.Age, user.Gender, user.Role, user.WalletID).
		Scan(&user.ID, &user.Balance, &user.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if pgErr.ConstraintName == PrimaryConstraint {
				return nil, ErrPrimaryExists
			}
			return nil, common.ErrAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + selectColumns + ` FROM users
		 WHERE id = $1
		 `

	return scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByDisplayID(ctx context.Context, address, displayID string) (*models.User, error) {
	query := `SELECT ` + selectColumns + ` FROM users
		 WHERE display_id = $1 AND address = $2
		 `

	return scanOne(r.db.QueryRowContext(ctx, query, displayID, address))
}

// ListByAddress returns the profiles of a mobile number, primary first and
// then in registration order.
func (r *PostgresRepository) ListByAddress(ctx context.Context, address string) ([]*models.User, error) {
	query := `SELECT ` + selectColumns + ` FROM users
		 WHERE address = $1
		 ORDER BY (role = 'SuperUser') DESC, created_at ASC, id ASC
		 `

	rows, err := r.db.QueryContext(ctx, query, address)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		u := &models.User{}
		if err := rows.Scan(&u.ID, &u.DisplayID, &u.Address, &u.FullName, &u.Age, &u.Gender,
			&u.Role, &u.WalletID, &u.Balance, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) CountByAddress(ctx context.Context, address string) (int, error) {
	query := `SELECT COUNT(*) FROM users WHERE address = $1`

	var n int
	if err := r.db.QueryRowContext(ctx, query, address).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) DisplayIDExists(ctx context.Context, displayID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE display_id = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, displayID).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// CreditBalance adds amount to the user's wallet and returns the new balance.
func (r *PostgresRepository) CreditBalance(ctx context.Context, id int64, amount models.Amount) (models.Amount, error) {
	query :=
		`UPDATE users SET balance = balance + $1
		 WHERE id = $2
		 RETURNING balance
		 `

	var balance models.Amount
	err := r.db.QueryRowContext(ctx, query, amount, id).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}

	return balance, nil
}

func scanOne(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.DisplayID, &u.Address, &u.FullName, &u.Age, &u.Gender,
		&u.Role, &u.WalletID, &u.Balance, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}
