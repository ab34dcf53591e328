// Copyright 2026 The Alcheme Authors
// SPDX-License-Identifier: Apache-2.0

// Command alcheme-api is the alcheme backend-for-frontend: session
// authentication, the social, recipe, and inventory document store,
// chat history, and the SSE proxy in front of the agent service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/alcheme/alcheme/lib/agent"
	"github.com/alcheme/alcheme/lib/clock"
	"github.com/alcheme/alcheme/lib/conversation"
	"github.com/alcheme/alcheme/lib/docstore"
	"github.com/alcheme/alcheme/lib/inventory"
	"github.com/alcheme/alcheme/lib/recipes"
	"github.com/alcheme/alcheme/lib/social"
)

const version = "0.3.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "alcheme-api:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		listenAddr  string
		showVersion bool
	)
	pflag.StringVar(&configPath, "config", "", "path to the YAML configuration file")
	pflag.StringVar(&listenAddr, "listen", "", "override the configured listen address")
	pflag.BoolVar(&showVersion, "version", false, "print version information and exit")
	pflag.Parse()

	if showVersion {
		fmt.Println("alcheme-api", version)
		return nil
	}
	if configPath == "" {
		return errors.New("--config is required")
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Listen = listenAddr
	}

	level, err := logLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	sessionPrivate, err := loadPrivateKey(cfg.Session.PrivateKeyPath)
	if err != nil {
		return fmt.Errorf("session private key: %w", err)
	}
	sessionPublic, err := loadPublicKey(cfg.Session.PublicKeyPath)
	if err != nil {
		return fmt.Errorf("session public key: %w", err)
	}
	identityPublic, err := loadPublicKey(cfg.Identity.PublicKeyPath)
	if err != nil {
		return fmt.Errorf("identity public key: %w", err)
	}

	clk := clock.Real()

	store, err := docstore.Open(docstore.Config{
		Path:     cfg.Store.Path,
		PoolSize: cfg.Store.PoolSize,
		Logger:   logger,
		Clock:    clk,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	agentClient, err := agent.New(agent.Config{
		BaseURL:        cfg.Agent.BaseURL,
		APIKey:         cfg.AgentAPIKey(),
		ConnectTimeout: cfg.Agent.ConnectTimeout.Std(),
		StreamTimeout:  cfg.Agent.StreamTimeout.Std(),
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	socialService := social.New(store, logger)
	server := &Server{
		social:          socialService,
		inventory:       inventory.New(store, logger),
		recipes:         recipes.New(store, socialService, logger),
		conversations:   conversation.New(store, logger),
		agent:           agentClient,
		clock:           clk,
		logger:          logger,
		sessionPrivate:  sessionPrivate,
		sessionPublic:   sessionPublic,
		identityPublic:  identityPublic,
		sessionLifetime: cfg.Session.Lifetime.Std(),
	}

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("alcheme-api listening", "addr", cfg.Listen, "version", version)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
