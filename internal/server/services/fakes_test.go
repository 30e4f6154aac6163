package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/sehatbot/internal/common"
	"github.com/dmitrijs2005/sehatbot/internal/dbx"
	"github.com/dmitrijs2005/sehatbot/internal/server/models"
	"github.com/dmitrijs2005/sehatbot/internal/server/repositories/measurements"
	"github.com/dmitrijs2005/sehatbot/internal/server/repositories/reports"
	"github.com/dmitrijs2005/sehatbot/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/sehatbot/internal/server/repositories/users"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// --- users ---

type fakeUsersRepo struct {
	byID      map[int64]*models.User
	nextID    int64
	taken     map[string]bool
	createErr []error // consumed one per Create call
	raced     *models.User
	countErr  error
	creditErr error
	getErr    error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byID: map[int64]*models.User{}, taken: map[string]bool{}}
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	if len(f.createErr) > 0 {
		err := f.createErr[0]
		f.createErr = f.createErr[1:]
		if err != nil {
			if f.raced != nil {
				f.nextID++
				f.raced.ID = f.nextID
				f.byID[f.raced.ID] = f.raced
				f.raced = nil
			}
			return nil, err
		}
	}
	f.nextID++
	cp := *u
	cp.ID = f.nextID
	f.byID[cp.ID] = &cp
	f.taken[cp.DisplayID] = true
	out := cp
	return &out, nil
}

func (f *fakeUsersRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsersRepo) GetByDisplayID(_ context.Context, address, displayID string) (*models.User, error) {
	for _, u := range f.byID {
		if u.DisplayID == displayID && u.Address == address {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) ListByAddress(_ context.Context, address string) ([]*models.User, error) {
	var out []*models.User
	for id := int64(1); id <= f.nextID; id++ {
		if u, ok := f.byID[id]; ok && u.Address == address {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeUsersRepo) CountByAddress(ctx context.Context, address string) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	list, _ := f.ListByAddress(ctx, address)
	return len(list), nil
}

func (f *fakeUsersRepo) DisplayIDExists(_ context.Context, displayID string) (bool, error) {
	return f.taken[displayID], nil
}

func (f *fakeUsersRepo) CreditBalance(_ context.Context, id int64, amount models.Amount) (models.Amount, error) {
	if f.creditErr != nil {
		return 0, f.creditErr
	}
	u, ok := f.byID[id]
	if !ok {
		return 0, common.ErrorNotFound
	}
	u.Balance += amount
	return u.Balance, nil
}

// --- sessions ---

type statusCall struct {
	id       string
	from, to models.SessionStatus
	upd      models.SessionUpdate
}

type fakeSessionsRepo struct {
	byID      map[string]*models.Session
	createErr error
	cancelErr error
	updateErr error
	updates   []statusCall
	cancelled []string
	expiredAt []time.Time
}

func newFakeSessionsRepo() *fakeSessionsRepo {
	return &fakeSessionsRepo{byID: map[string]*models.Session{}}
}

func (f *fakeSessionsRepo) Create(_ context.Context, s *models.Session) error {
	if f.createErr != nil {
		return f.createErr
	}
	cp := *s
	f.byID[s.ID] = &cp
	return nil
}

func (f *fakeSessionsRepo) Get(_ context.Context, id string, now time.Time) (*models.Session, error) {
	s, ok := f.byID[id]
	if !ok || !now.Before(s.ExpiresAt) {
		return nil, common.ErrorNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessionsRepo) GetAny(_ context.Context, id string) (*models.Session, error) {
	s, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessionsRepo) FindActiveByAddress(_ context.Context, address string, now time.Time) (*models.Session, error) {
	var best *models.Session
	for _, s := range f.byID {
		if s.Address == address && s.Active(now) && (best == nil || s.CreatedAt.After(best.CreatedAt)) {
			best = s
		}
	}
	if best == nil {
		return nil, common.ErrorNotFound
	}
	cp := *best
	return &cp, nil
}

func (f *fakeSessionsRepo) UpdateStatus(_ context.Context, id string, from, to models.SessionStatus, upd models.SessionUpdate) error {
	f.updates = append(f.updates, statusCall{id: id, from: from, to: to, upd: upd})
	if f.updateErr != nil {
		return f.updateErr
	}
	s, ok := f.byID[id]
	if !ok || s.Status != from {
		return common.ErrStatusConflict
	}
	s.Status = to
	if upd.SelectedUserID != nil {
		v := *upd.SelectedUserID
		s.SelectedUserID = &v
	}
	if upd.Draft != nil {
		d := *upd.Draft
		s.Draft = &d
	}
	return nil
}

func (f *fakeSessionsRepo) CancelActiveByAddress(_ context.Context, address string) (int64, error) {
	if f.cancelErr != nil {
		return 0, f.cancelErr
	}
	var n int64
	for _, s := range f.byID {
		if s.Address == address && !s.Status.Terminal() {
			s.Status = models.StatusCancelled
			f.cancelled = append(f.cancelled, s.ID)
			n++
		}
	}
	return n, nil
}

func (f *fakeSessionsRepo) CancelExpired(_ context.Context, now time.Time) (int64, error) {
	f.expiredAt = append(f.expiredAt, now)
	var n int64
	for _, s := range f.byID {
		if !s.Status.Terminal() && !now.Before(s.ExpiresAt) {
			s.Status = models.StatusCancelled
			n++
		}
	}
	return n, nil
}

// --- measurements & reports ---

type fakeMeasurementsRepo struct {
	records []*models.MeasurementRecord
	err     error
}

func (f *fakeMeasurementsRepo) Create(_ context.Context, rec *models.MeasurementRecord) (*models.MeasurementRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	rec.ID = int64(len(f.records) + 1)
	f.records = append(f.records, rec)
	return rec, nil
}

type fakeReportsRepo struct {
	reports []*models.Report
	err     error
}

func (f *fakeReportsRepo) Create(_ context.Context, rep *models.Report) (*models.Report, error) {
	if f.err != nil {
		return nil, f.err
	}
	rep.ID = int64(100 + len(f.reports))
	f.reports = append(f.reports, rep)
	return rep, nil
}

func (f *fakeReportsRepo) GetBySessionID(_ context.Context, sessionID string) (*models.Report, error) {
	for _, r := range f.reports {
		if r.SessionID == sessionID {
			return r, nil
		}
	}
	return nil, common.ErrorNotFound
}

// --- manager ---

type fakeRepoManager struct {
	u *fakeUsersRepo
	s *fakeSessionsRepo
	m *fakeMeasurementsRepo
	r *fakeReportsRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		u: newFakeUsersRepo(),
		s: newFakeSessionsRepo(),
		m: &fakeMeasurementsRepo{},
		r: &fakeReportsRepo{},
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error  { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository               { return m.u }
func (m *fakeRepoManager) Sessions(dbx.DBTX) sessions.Repository         { return m.s }
func (m *fakeRepoManager) Measurements(dbx.DBTX) measurements.Repository { return m.m }
func (m *fakeRepoManager) Reports(dbx.DBTX) reports.Repository           { return m.r }
