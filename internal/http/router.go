package httpapi

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/opshub/backend/internal/ai"
	"github.com/opshub/backend/internal/config"
	"github.com/opshub/backend/internal/db"
	"github.com/opshub/backend/internal/events"
	"github.com/opshub/backend/internal/http/handlers"
	"github.com/opshub/backend/internal/http/middleware"
	"github.com/opshub/backend/internal/service"
	"github.com/opshub/backend/internal/speech"

	_ "github.com/opshub/backend/docs"
)

func Router(cfg config.Config, store db.Repository, dispatcher *service.Dispatcher, assistant ai.Assistant, synth speech.Synthesizer, broker *events.Broker, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id"},
		ExposeHeaders: []string{"X-Request-Id"},
		MaxAge:        12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" || cfg.CORSAllowed == "" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = splitOrigins(cfg.CORSAllowed)
		corsCfg.AllowCredentials = true
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:          store,
		Dispatcher:     dispatcher,
		Assistant:      assistant,
		Speech:         synth,
		Broker:         broker,
		Validator:      validator.New(),
		Logger:         logger,
		RequestTimeout: cfg.RequestTimeout,
	}

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.GET("/technicians", h.TechniciansList)
		api.GET("/tickets", h.TicketsList)
		api.GET("/tickets/:id", h.TicketDetails)
		api.GET("/events", h.Events)
		api.POST("/utterances", h.UtteranceCreate)
		api.POST("/evaluate", h.Evaluate)
		api.POST("/chat", h.Chat)
		api.POST("/speech", h.SpeechCreate)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/technicians", h.TechnicianCreate)
		admin.PATCH("/technicians/:id/status", h.TechnicianSetStatus)
		admin.POST("/tickets/:id/close", h.TicketClose)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

func splitOrigins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}
