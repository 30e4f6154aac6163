// Package server wires the bot together: storage, the conversation engine,
// the outbound notifier, error reporting and the HTTP and gRPC transports,
// and runs them until the process is signalled.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/sehatbot/internal/buildinfo"
	"github.com/dmitrijs2005/sehatbot/internal/cryptox"
	"github.com/dmitrijs2005/sehatbot/internal/logging"
	"github.com/dmitrijs2005/sehatbot/internal/server/config"
	"github.com/dmitrijs2005/sehatbot/internal/server/conversation"
	"github.com/dmitrijs2005/sehatbot/internal/server/httpapi"
	"github.com/dmitrijs2005/sehatbot/internal/server/metrics"
	"github.com/dmitrijs2005/sehatbot/internal/server/models"
	"github.com/dmitrijs2005/sehatbot/internal/server/notifier"
	"github.com/dmitrijs2005/sehatbot/internal/server/reporting"
	"github.com/dmitrijs2005/sehatbot/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/sehatbot/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	gs "github.com/dmitrijs2005/sehatbot/internal/server/grpc"
)

const (
	migrationTimeout = time.Minute
	flushTimeout     = 2 * time.Second
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	registry   *prometheus.Registry
	sessions   *services.SessionService
	engine     *conversation.Engine
	dispatcher *notifier.Dispatcher
	reporter   *reporting.Reporter
}

func NewApp(c *config.Config) (*App, error) {
	ctx := context.Background()
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	key, err := cryptox.ParseKey(c.EncryptionKey, c.EncryptionSalt)
	if err != nil {
		return nil, fmt.Errorf("encryption key: %w", err)
	}
	codec, err := cryptox.NewCodec(key)
	if err != nil {
		return nil, fmt.Errorf("encryption key: %w", err)
	}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()

	migrateCtx, cancel := context.WithTimeout(ctx, migrationTimeout)
	defer cancel()
	if err := rm.RunMigrations(migrateCtx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	sessions := services.NewSessionService(db, rm, c)
	profiles := services.NewProfileService(db, rm)
	ledger := services.NewLedgerService(db, rm)

	client := notifier.NewClient(notifier.ClientOptions{
		URL:       c.NotifyURL,
		AuthKey:   c.NotifyAuthKey,
		ChannelID: c.NotifyChannelID,
		Timeout:   c.NotifyTimeout,
	})
	dispatcher := notifier.NewDispatcher(client, notifier.DispatcherOptions{
		QueueSize:     c.NotifyQueueSize,
		Workers:       c.NotifyWorkers,
		MaxRetries:    c.NotifyMaxRetries,
		RatePerSecond: c.NotifyRatePerSecond,
		Timeout:       c.NotifyTimeout,
	}, logger, m)

	reporter := reporting.New(ctx, reporting.Options{
		DSN:         c.SentryDSN,
		Environment: c.SentryEnvironment,
		Release:     buildinfo.Version,
	}, logger)

	engine := conversation.NewEngine(conversation.Deps{
		Codec:    codec,
		Sessions: sessions,
		Profiles: profiles,
		Ledger:   ledger,
		Notifier: dispatcher,
		Reporter: reporter,
	}, conversation.Options{
		Fee:           models.Amount(c.PaymentFee),
		PaymentMethod: c.PaymentMethod,
	}, logger, m)

	return &App{
		config:     c,
		logger:     logger,
		db:         db,
		registry:   registry,
		sessions:   sessions,
		engine:     engine,
		dispatcher: dispatcher,
		reporter:   reporter,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(httpapi.Options{
		Address:        app.config.EndpointAddrHTTP,
		RequestTimeout: app.config.RequestTimeout,
		Metrics:        promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}),
	}, app.engine, app.db, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.db)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "version", buildinfo.Version)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(4)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.dispatcher.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		runSweeper(ctx, app.config.SweepInterval, app.sessions, app.logger)
	}()

	wg.Wait()

	app.reporter.Flush(flushTimeout)
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
