// Package httpapi exposes the bot over HTTP: the gateway webhook, health and
// Prometheus metrics.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/sehatbot/internal/logging"
	"github.com/dmitrijs2005/sehatbot/internal/server/conversation"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 5 * time.Second

// MessageHandler processes one inbound gateway message.
type MessageHandler interface {
	Handle(ctx context.Context, in conversation.Inbound) (*conversation.Action, error)
}

// Pinger checks database reachability; *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Options struct {
	Address        string
	RequestTimeout time.Duration
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
}

type Server struct {
	opts    Options
	handler MessageHandler
	db      Pinger
	logger  logging.Logger
	started time.Time
	router  *gin.Engine
}

func NewServer(opts Options, h MessageHandler, db Pinger, l logging.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		opts:    opts,
		handler: h,
		db:      db,
		logger:  l.With("module", "http_server"),
		started: time.Now(),
	}
	s.router = s.routes()
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", s.opts.Address)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
