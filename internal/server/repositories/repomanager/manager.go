package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/sehatbot/internal/dbx"
	"github.com/dmitrijs2005/sehatbot/internal/server/repositories/measurements"
	"github.com/dmitrijs2005/sehatbot/internal/server/repositories/reports"
	"github.com/dmitrijs2005/sehatbot/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/sehatbot/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	Measurements(db dbx.DBTX) measurements.Repository
	Reports(db dbx.DBTX) reports.Repository
}
