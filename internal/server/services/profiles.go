package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/sehatbot/internal/common"
	"github.com/dmitrijs2005/sehatbot/internal/dbx"
	"github.com/dmitrijs2005/sehatbot/internal/server/models"
	"github.com/dmitrijs2005/sehatbot/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/sehatbot/internal/server/repositories/users"
	"github.com/google/uuid"
)

const (
	maxDisplayIDAttempts = 10
	maxRegisterAttempts  = 2
)

// ErrDisplayIDExhausted is returned when no free display id was found.
var ErrDisplayIDExhausted = errors.New("could not allocate display id")

// ProfileService reads and registers user profiles of a mobile number.
type ProfileService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	newDisplayID func() (string, error)
}

func NewProfileService(db *sql.DB, m repomanager.RepositoryManager) *ProfileService {
	return &ProfileService{
		db:           db,
		repomanager:  m,
		newDisplayID: randomDisplayID,
	}
}

func randomDisplayID() (string, error) {
	digits, err := common.MakeRandDigits(common.DisplayIDDigits)
	if err != nil {
		return "", err
	}
	return common.DisplayIDPrefix + digits, nil
}

// ListByAddress returns the profiles of address, primary first.
func (s *ProfileService) ListByAddress(ctx context.Context, address string) ([]*models.User, error) {
	return s.repomanager.Users(s.db).ListByAddress(ctx, address)
}

// FindByDisplayID returns the profile only if it belongs to address.
func (s *ProfileService) FindByDisplayID(ctx context.Context, address, displayID string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByDisplayID(ctx, address, displayID)
}

// Register creates a profile from the collected draft and binds it to the
// session, moving the session from the age step to payment. Both writes
// commit together. The first profile of an address becomes the primary one;
// losing that race to a concurrent registration retries as a dependent.
func (s *ProfileService) Register(ctx context.Context, sessionID, address string, draft models.Draft) (*models.User, error) {
	var (
		user *models.User
		err  error
	)
	for range maxRegisterAttempts {
		user, err = s.register(ctx, sessionID, address, draft)
		if !errors.Is(err, users.ErrPrimaryExists) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *ProfileService) register(ctx context.Context, sessionID, address string, draft models.Draft) (*models.User, error) {
	var user *models.User

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		n, err := repo.CountByAddress(ctx, address)
		if err != nil {
			return fmt.Errorf("error counting profiles: %w", err)
		}
		role := common.RoleDependent
		if n == 0 {
			role = common.RolePrimary
		}

		displayID, err := s.allocateDisplayID(ctx, repo)
		if err != nil {
			return err
		}

		user, err = repo.Create(ctx, &models.User{
			DisplayID: displayID,
			Address:   address,
			FullName:  draft.FullName,
			Age:       draft.Age,
			Gender:    draft.Gender,
			Role:      role,
			WalletID:  uuid.NewString(),
		})
		if err != nil {
			return fmt.Errorf("error creating user: %w", err)
		}

		upd := models.SessionUpdate{SelectedUserID: &user.ID, Draft: &draft}
		return s.repomanager.Sessions(tx).UpdateStatus(ctx, sessionID,
			models.StatusAwaitingAge, models.StatusAwaitingPayment, upd)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *ProfileService) allocateDisplayID(ctx context.Context, repo users.Repository) (string, error) {
	for range maxDisplayIDAttempts {
		id, err := s.newDisplayID()
		if err != nil {
			return "", err
		}
		taken, err := repo.DisplayIDExists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("error checking display id: %w", err)
		}
		if !taken {
			return id, nil
		}
	}
	return "", ErrDisplayIDExhausted
}
