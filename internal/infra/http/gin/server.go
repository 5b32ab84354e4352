package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"rentline/internal/infra/config"
	"rentline/internal/infra/obs"
)

// Handlers groups the HTTP surfaces wired into the router.
type Handlers struct {
	Inbox InboxHTTP
	Items ItemHTTP
}

// NewServer assembles the gin router and returns an http.Server ready
// to listen.
func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Inbox != nil {
		api.POST("/inbox/session", h.Inbox.Open)
		api.DELETE("/inbox/session", h.Inbox.CloseSession)
		api.GET("/inbox/session", h.Inbox.Status)
		api.GET("/inbox/mine", h.Inbox.Mine)
		api.GET("/inbox/others", h.Inbox.Others)
		api.POST("/inbox/read", h.Inbox.MarkRead)
		api.POST("/inbox/focus", h.Inbox.Focus)
		api.POST("/inbox/messages", h.Inbox.Send)
	}
	if h.Items != nil {
		api.GET("/items", h.Items.List)
		api.GET("/items/:id", h.Items.Get)
		api.GET("/categories", h.Items.Categories)
		api.POST("/items", h.Items.Create)
		api.PATCH("/items/:id", h.Items.Update)
		api.DELETE("/items/:id", h.Items.Delete)
	}

	return &http.Server{Addr: cfg.HTTPAddr, Handler: router}
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
