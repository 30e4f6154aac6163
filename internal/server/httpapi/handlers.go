package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/sehatbot/internal/server/conversation"
	"github.com/gin-gonic/gin"
)

const (
	msgMissingFields = "Missing mobile or message in payload"
	msgInternal      = "Internal server error"
	banner           = "SehatBot webhook server is running"
)

type webhookRequest struct {
	Mobile          string          `json:"mobile"`
	Message         string          `json:"message"`
	MessageType     string          `json:"message_type"`
	InteractiveData json.RawMessage `json:"interactive_data"`
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Uptime   string `json:"uptime"`
}

func (s *Server) handleBanner(c *gin.Context) {
	c.String(http.StatusOK, banner)
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Database: "up", Uptime: time.Since(s.started).Round(time.Second).String()}
	code := http.StatusOK
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Warn(ctx, "database ping failed", "error", err)
		resp.Status, resp.Database = "degraded", "down"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}

func (s *Server) handleWebhook(c *gin.Context) {
	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadRequest, statusResponse{Status: "error", Message: msgMissingFields})
		return
	}
	if strings.TrimSpace(req.Mobile) == "" || req.Message == "" {
		c.JSON(http.StatusBadRequest, statusResponse{Status: "error", Message: msgMissingFields})
		return
	}

	ctx := c.Request.Context()
	if s.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RequestTimeout)
		defer cancel()
	}

	s.logger.Debug(ctx, "inbound message", "mobile", req.Mobile, "message_type", req.MessageType)

	action, err := s.handler.Handle(ctx, conversation.Inbound{
		Address:         strings.TrimSpace(req.Mobile),
		Text:            req.Message,
		MessageType:     req.MessageType,
		InteractiveData: req.InteractiveData,
	})
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, statusResponse{Status: "error", Message: msgInternal})
		return
	}

	c.JSON(http.StatusOK, action)
}
