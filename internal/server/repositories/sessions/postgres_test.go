package sessions

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/sehatbot/internal/common"
	"github.com/dmitrijs2005/sehatbot/internal/server/models"
	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgconn"
)

var sessionCols = []string{"session_id", "address", "status", "measurement", "selected_user_id", "draft", "created_at", "expires_at"}

const measurementJSON = `{"height":170,"weight":65,"bmi":22.49,"machineId":"KIOSK-7"}`

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	expires := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)
	created := expires.Add(-time.Hour)
	s := &models.Session{
		ID:          "sess-1",
		Address:     "919800000001",
		Status:      models.StatusAwaitingUserSelection,
		Measurement: models.Measurement{Height: 170, Weight: 65, BMI: 22.49, MachineID: "KIOSK-7"},
		ExpiresAt:   expires,
	}

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+sessions\s*\(session_id,\s*address,\s*status,\s*measurement,\s*expires_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)\s*RETURNING\s+created_at\s*$`).
		WithArgs("sess-1", "919800000001", "awaiting_user_selection", measurementJSON, expires).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	if err := repo.Create(context.Background(), s); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if !s.CreatedAt.Equal(created) {
		t.Fatalf("created_at not set: %v", s.CreatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_SecondActiveSessionRejected(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+sessions`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "sessions_one_active_per_address_idx"})

	err := repo.Create(context.Background(), &models.Session{ID: "sess-2", Address: "919800000001"})
	if !errors.Is(err, common.ErrAlreadyExists) {
		t.Fatalf("want common.ErrAlreadyExists, got %v", err)
	}
}

func TestGet_DecodesRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	created := now.Add(-10 * time.Minute)
	expires := created.Add(time.Hour)

	mock.ExpectQuery(`(?s)^SELECT\s+session_id,.*FROM\s+sessions\s+WHERE\s+session_id\s*=\s*\$1\s+AND\s+expires_at\s*>\s*\$2\s*$`).
		WithArgs("sess-1", now).
		WillReturnRows(sqlmock.NewRows(sessionCols).
			AddRow("sess-1", "919800000001", "awaiting_new_user_details_age", []byte(measurementJSON), int64(9),
				[]byte(`{"fullName":"Asha Verma","gender":"Female"}`), created, expires))

	got, err := repo.Get(context.Background(), "sess-1", now)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}

	uid := int64(9)
	want := &models.Session{
		ID:             "sess-1",
		Address:        "919800000001",
		Status:         models.StatusAwaitingAge,
		Measurement:    models.Measurement{Height: 170, Weight: 65, BMI: 22.49, MachineID: "KIOSK-7"},
		SelectedUserID: &uid,
		Draft:          &models.Draft{FullName: "Asha Verma", Gender: "Female"},
		CreatedAt:      created,
		ExpiresAt:      expires,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("session mismatch (-want +got):\n%s", diff)
	}
}

func TestGet_ExpiredIsNotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+session_id,.*FROM\s+sessions\s+WHERE\s+session_id`).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "sess-old", time.Now())
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestGetAny_NullableColumns(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)^SELECT\s+session_id,.*FROM\s+sessions\s+WHERE\s+session_id\s*=\s*\$1\s*$`).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows(sessionCols).
			AddRow("sess-1", "919800000001", "completed", []byte(measurementJSON), nil, nil, now, now))

	got, err := repo.GetAny(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("GetAny error: %v", err)
	}
	if got.SelectedUserID != nil || got.Draft != nil || got.Status != models.StatusCompleted {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestFindActiveByAddress_Query(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)^SELECT\s+session_id,.*FROM\s+sessions\s+WHERE\s+address\s*=\s*\$1\s+AND\s+status\s+NOT\s+IN\s+\('completed',\s*'cancelled'\)\s+AND\s+expires_at\s*>\s*\$2\s+ORDER\s+BY\s+created_at\s+DESC\s+LIMIT\s+1\s*$`).
		WithArgs("919800000001", now).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindActiveByAddress(context.Background(), "919800000001", now)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

const updateQ = `(?s)^UPDATE\s+sessions\s+SET\s+status\s*=\s*\$1,\s*selected_user_id\s*=\s*COALESCE\(\$2,\s*selected_user_id\),\s*draft\s*=\s*COALESCE\(\$3::jsonb,\s*draft\)\s+WHERE\s+session_id\s*=\s*\$4\s+AND\s+status\s*=\s*\$5\s*$`

func TestUpdateStatus_PartialFields(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(updateQ).
		WithArgs("awaiting_new_user_details_gender", nil, `{"fullName":"Asha Verma"}`, "sess-1", "awaiting_new_user_details_name").
		WillReturnResult(sqlmock.NewResult(0, 1))

	uid := int64(4)
	mock.ExpectExec(updateQ).
		WithArgs("awaiting_payment_confirmation", uid, nil, "sess-1", "awaiting_user_selection").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "sess-1", models.StatusAwaitingName, models.StatusAwaitingGender,
		models.SessionUpdate{Draft: &models.Draft{FullName: "Asha Verma"}})
	if err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}

	err = repo.UpdateStatus(context.Background(), "sess-1", models.StatusAwaitingUserSelection, models.StatusAwaitingPayment,
		models.SessionUpdate{SelectedUserID: &uid})
	if err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateStatus_LostRace(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(updateQ).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "sess-1", models.StatusAwaitingPayment, models.StatusCompleted, models.SessionUpdate{})
	if !errors.Is(err, common.ErrStatusConflict) {
		t.Fatalf("want common.ErrStatusConflict, got %v", err)
	}
}

func TestUpdateStatus_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(updateQ).WillReturnError(errors.New("conn reset"))

	err := repo.UpdateStatus(context.Background(), "sess-1", models.StatusAwaitingPayment, models.StatusCompleted, models.SessionUpdate{})
	if err == nil || !regexp.MustCompile(`db error: .*conn reset`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestCancelActiveByAddress(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^UPDATE\s+sessions\s+SET\s+status\s*=\s*'cancelled'\s+WHERE\s+address\s*=\s*\$1\s+AND\s+status\s+NOT\s+IN`).
		WithArgs("919800000001").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.CancelActiveByAddress(context.Background(), "919800000001")
	if err != nil || n != 2 {
		t.Fatalf("CancelActiveByAddress = %d, %v", n, err)
	}
}

func TestCancelExpired(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(`(?s)^UPDATE\s+sessions\s+SET\s+status\s*=\s*'cancelled'\s+WHERE\s+expires_at\s*<=\s*\$1\s+AND\s+status\s+NOT\s+IN`).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`(?s)^UPDATE\s+sessions`).
		WillReturnError(errors.New("timeout"))

	n, err := repo.CancelExpired(context.Background(), now)
	if err != nil || n != 3 {
		t.Fatalf("CancelExpired = %d, %v", n, err)
	}
	if _, err := repo.CancelExpired(context.Background(), now); err == nil {
		t.Fatal("expected error")
	}
}
