package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"rentline/internal/app/session"
	"rentline/internal/infra/catalog"
	"rentline/internal/infra/config"
	ginserver "rentline/internal/infra/http/gin"
	"rentline/internal/infra/messaging"
	"rentline/internal/infra/obs"
	"rentline/internal/infra/relay"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	env := getenv("APP_ENV", "dev")
	logger := obs.NewLogger(env)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	var creds relay.CredentialSource
	if cfg.StaticToken != "" {
		creds = relay.StaticCredentialSource(cfg.StaticToken)
	} else {
		creds = &relay.CachedTokenSource{
			Endpoint: cfg.TokenEndpoint,
			Client:   &http.Client{Timeout: 10 * time.Second},
		}
	}

	httpClient := &http.Client{Timeout: 10 * time.Second}
	images := catalog.ImageResolver{
		BaseURL:     cfg.ImageBaseURL,
		Prefix:      cfg.ImagePrefix,
		Placeholder: cfg.ImagePlaceholder,
	}
	catalogClient := &catalog.Client{
		BaseURL:     cfg.ItemsAPIURL,
		HTTP:        httpClient,
		Credentials: creds,
		Logger:      logger,
	}
	messagingClient := &messaging.Client{
		BaseURL: cfg.MessagesAPIURL,
		HTTP:    httpClient,
		Logger:  logger,
	}

	inboxHandler := &ginserver.InboxHandler{
		BaseCtx: ctx,
		Logger:  logger,
		Factory: func(userID string) ginserver.InboxSession {
			fetcher := &session.Fetcher{
				Messaging:   messagingClient,
				Catalog:     catalogClient,
				Images:      images,
				Logger:      logger,
				MetaWorkers: cfg.MetaWorkers,
				Timeout:     cfg.BootstrapTimeout,
			}
			return session.New(userID, fetcher, relay.Config{
				URL:            cfg.RelayURL,
				Credentials:    creds,
				ReconnectDelay: cfg.ReconnectDelay,
			}, logger)
		},
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: func() error {
			if !inboxHandler.Connected() {
				return fmt.Errorf("relay not connected")
			}
			return nil
		},
	}, ginserver.Handlers{
		Inbox: inboxHandler,
		Items: ginserver.ItemHandler{Catalog: catalogClient, Images: images, Logger: logger},
	})

	go func() {
		<-ctx.Done()
		inboxHandler.CloseCurrent()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
