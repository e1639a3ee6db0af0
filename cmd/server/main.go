package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/opshub/backend/internal/ai"
	"github.com/opshub/backend/internal/config"
	"github.com/opshub/backend/internal/db"
	"github.com/opshub/backend/internal/dispatch"
	"github.com/opshub/backend/internal/events"
	httpapi "github.com/opshub/backend/internal/http"
	"github.com/opshub/backend/internal/service"
	"github.com/opshub/backend/internal/speech"
)

// @title Operations Hub Dispatch API
// @version 1.0
// @BasePath /
// @securityDefinitions.apikey AdminKey
// @in header
// @name X-Admin-Key
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := log.Level(level).With().Str("service", "opshub").Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to apply schema")
	}

	engine, err := dispatch.FromFile(cfg.RulesFile)
	if err != nil {
		logger.Fatal().Err(err).Str("rules_file", cfg.RulesFile).Msg("failed to load dispatch rules")
	}

	assistant, err := ai.New(ctx, ai.Options{
		Provider:  cfg.AssistantProvider,
		BaseURL:   cfg.AssistantBaseURL,
		Model:     cfg.AssistantModel,
		APIKey:    cfg.AssistantAPIKey,
		MaxTokens: cfg.AssistantMaxTokens,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure assistant")
	}
	logger.Info().Str("provider", cfg.AssistantProvider).Msg("assistant configured")

	synth, err := speech.New(cfg.TTSProvider, cfg.ElevenLabsAPIKey, cfg.ElevenLabsVoiceID, cfg.ElevenLabsModel, cfg.ElevenLabsBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure speech")
	}

	broker := events.NewBroker()
	var external []events.Sink
	if cfg.AMQPURL != "" {
		conn, err := events.DialWithRetry(ctx, events.DialOptions{
			URL:           cfg.AMQPURL,
			RetryAttempts: 5,
			Delay:         time.Second,
			Logger:        logger,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect amqp")
		}
		publisher, err := events.NewAMQPPublisher(conn, cfg.AMQPExchange, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to set up amqp publisher")
		}
		defer publisher.Close()
		external = append(external, publisher)
		logger.Info().Str("exchange", cfg.AMQPExchange).Msg("publishing changes to amqp")
	}

	// With a database feed the broker hears every writer, including other
	// instances, so the dispatcher only reports to external sinks.
	notifier := events.Fanout{Logger: logger}
	if feed, ok := store.(db.ChangeFeed); ok && cfg.DBListen {
		notifier.Sinks = external
		go func() {
			err := feed.Listen(ctx, logger, func(c events.Change) {
				_ = broker.Publish(ctx, c)
			})
			if err != nil && ctx.Err() == nil {
				logger.Error().Err(err).Msg("change feed stopped")
			}
		}()
	} else {
		notifier.Sinks = append([]events.Sink{broker}, external...)
	}

	dispatcher := &service.Dispatcher{
		Store:             store,
		Engine:            engine,
		Assistant:         assistant,
		Speech:            synth,
		Notifier:          notifier,
		Logger:            logger,
		PersistUnassigned: cfg.PersistUnassigned,
	}

	router := httpapi.Router(cfg, store, dispatcher, assistant, synth, broker, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}
	srv.RegisterOnShutdown(broker.Close)

	go func() {
		logger.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
