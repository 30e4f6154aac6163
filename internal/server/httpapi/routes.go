package httpapi

import "github.com/gin-gonic/gin"

// WebhookPath receives inbound WhatsApp messages from the gateway.
const WebhookPath = "/api/bot/msg91-whatsapp-webhook"

func (s *Server) routes() *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(requestLogger(s.logger))

	router.GET("/", s.handleBanner)
	router.GET("/health", s.handleHealth)
	if s.opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(s.opts.Metrics))
	}

	router.POST(WebhookPath, s.handleWebhook)

	return router
}
