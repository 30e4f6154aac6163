package conversation

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/dmitrijs2005/sehatbot/internal/common"
	"github.com/dmitrijs2005/sehatbot/internal/cryptox"
	"github.com/dmitrijs2005/sehatbot/internal/server/models"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func newTestCodec(t *testing.T) *cryptox.Codec {
	t.Helper()
	key, err := cryptox.ParseKey(testKey, "")
	require.NoError(t, err)
	c, err := cryptox.NewCodec(key)
	require.NoError(t, err)
	return c
}

func sealed(t *testing.T, c *cryptox.Codec, m models.Measurement) string {
	t.Helper()
	blob, err := c.EncryptEntry(m)
	require.NoError(t, err)
	return "sehat_bmi<" + blob + ">"
}

// store is an in-memory stand-in for the session, profile and ledger services
// sharing one state, with the same compare-and-swap rules.
type store struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	order    []string
	users    []*models.User
	reports  []*models.Report
	nextSID  int

	startErr    error
	updateErr   error
	registerErr error
	panicOnFind bool
	// beforeUpdate runs just before a status swap, simulating a concurrent writer.
	beforeUpdate func(s *models.Session)
}

func newStore() *store {
	return &store{sessions: map[string]*models.Session{}}
}

func (st *store) Start(_ context.Context, address string, payload models.Measurement) (*models.Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.startErr != nil {
		return nil, st.startErr
	}
	for _, s := range st.sessions {
		if s.Address == address && !s.Status.Terminal() {
			s.Status = models.StatusCancelled
		}
	}
	st.nextSID++
	s := &models.Session{
		ID:          fmt.Sprintf("sess-%d", st.nextSID),
		Address:     address,
		Status:      models.StatusAwaitingUserSelection,
		Measurement: payload,
	}
	st.sessions[s.ID] = s
	st.order = append(st.order, s.ID)
	cp := *s
	return &cp, nil
}

func (st *store) GetAny(_ context.Context, id string) (*models.Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *s
	return &cp, nil
}

func (st *store) FindActiveByAddress(_ context.Context, address string) (*models.Session, error) {
	if st.panicOnFind {
		panic("nil map")
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	for i := len(st.order) - 1; i >= 0; i-- {
		s := st.sessions[st.order[i]]
		if s.Address == address && !s.Status.Terminal() {
			cp := *s
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (st *store) UpdateStatus(_ context.Context, id string, from, to models.SessionStatus, upd models.SessionUpdate) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.swap(id, from, to, upd)
}

func (st *store) swap(id string, from, to models.SessionStatus, upd models.SessionUpdate) error {
	if st.updateErr != nil {
		return st.updateErr
	}
	if !models.CanTransition(from, to) {
		return common.ErrInvalidTransition
	}
	s, ok := st.sessions[id]
	if !ok {
		return common.ErrStatusConflict
	}
	if st.beforeUpdate != nil {
		st.beforeUpdate(s)
	}
	if s.Status != from {
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

func (st *store) ListByAddress(_ context.Context, address string) ([]*models.User, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	var out []*models.User
	for _, u := range st.users {
		if u.Address == address {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (st *store) FindByDisplayID(_ context.Context, address, displayID string) (*models.User, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, u := range st.users {
		if u.Address == address && u.DisplayID == displayID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (st *store) addUser(address, name string) *models.User {
	st.mu.Lock()
	defer st.mu.Unlock()
	role := common.RolePrimary
	for _, u := range st.users {
		if u.Address == address {
			role = common.RoleDependent
		}
	}
	u := &models.User{
		ID:        int64(len(st.users) + 1),
		DisplayID: fmt.Sprintf("UID-%07d", len(st.users)+1),
		Address:   address,
		FullName:  name,
		Age:       40,
		Gender:    "Female",
		Role:      role,
		WalletID:  fmt.Sprintf("wallet-%d", len(st.users)+1),
	}
	st.users = append(st.users, u)
	return u
}

func (st *store) Register(_ context.Context, sessionID, address string, draft models.Draft) (*models.User, error) {
	if st.registerErr != nil {
		return nil, st.registerErr
	}
	u := st.addUser(address, draft.FullName)

	st.mu.Lock()
	defer st.mu.Unlock()
	u.Age, u.Gender = draft.Age, draft.Gender
	d := draft
	if err := st.swap(sessionID, models.StatusAwaitingAge, models.StatusAwaitingPayment,
		models.SessionUpdate{SelectedUserID: &u.ID, Draft: &d}); err != nil {
		st.users = st.users[:len(st.users)-1]
		return nil, err
	}
	cp := *u
	return &cp, nil
}

func (st *store) RecordCompletion(_ context.Context, c models.Completion) (*models.Receipt, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if err := st.swap(c.SessionID, models.StatusAwaitingPayment, models.StatusCompleted, models.SessionUpdate{}); err != nil {
		return nil, err
	}
	var user *models.User
	for _, u := range st.users {
		if u.ID == c.UserID {
			user = u
		}
	}
	if user == nil {
		return nil, common.ErrorNotFound
	}
	user.Balance += c.Fee
	r := &models.Report{
		ID:            int64(len(st.reports) + 1),
		SessionID:     c.SessionID,
		UserID:        c.UserID,
		PatientName:   user.FullName,
		Measurement:   c.Measurement,
		BMIStatus:     models.ClassifyBMI(c.Measurement.BMI),
		Fee:           c.Fee,
		TransactionID: c.TransactionID,
		PaymentType:   c.PaymentMethod,
	}
	st.reports = append(st.reports, r)
	u := *user
	return &models.Receipt{Report: r, User: &u}, nil
}

func (st *store) ReportForSession(_ context.Context, sessionID string) (*models.Report, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, r := range st.reports {
		if r.SessionID == sessionID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (st *store) status(id string) models.SessionStatus {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.sessions[id].Status
}

type outbound struct {
	address string
	text    string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []outbound
}

func (f *fakeNotifier) Enqueue(address, text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, outbound{address, text})
	return true
}

func (f *fakeNotifier) messages() []outbound {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]outbound(nil), f.sent...)
}

type fakeReporter struct {
	errs []error
}

func (f *fakeReporter) CaptureException(err error, _ map[string]string) {
	f.errs = append(f.errs, err)
}
