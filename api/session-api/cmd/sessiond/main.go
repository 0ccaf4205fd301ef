// Copyright (c) 2025 Rehearsly Labs
//
// Licensed under the MIT License. See LICENSE.md for details.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	session_api "github.com/rehearslyai/api/session-api/api/session"
	internal_analysis "github.com/rehearslyai/api/session-api/internal/analysis"
	internal_device "github.com/rehearslyai/api/session-api/internal/device"
	session_routers "github.com/rehearslyai/api/session-api/router"
	"github.com/rehearslyai/config"
	"github.com/rehearslyai/pkg/commons"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

func main() {
	vConfig, err := config.InitConfig()
	if err != nil {
		log.Fatalf("failed to initialize config: %v", err)
	}
	cfg, err := config.GetApplicationConfig(vConfig)
	if err != nil {
		log.Fatalf("failed to load application config: %v", err)
	}

	logger, err := commons.NewApplicationLogger(
		commons.Name(cfg.Name),
		commons.Path(cfg.LogPath),
		commons.Level(cfg.LogLevel),
	)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Collaborators. The synthetic device/classifier/encoder stand in for the
	// browser-side capture stack; the analyzer is the real remote service.
	device := internal_device.NewSyntheticDevice(logger)
	loader := internal_device.NewHeuristicLoader(logger)
	encoders := internal_device.NewChunkEncoderFactory(logger,
		time.Duration(cfg.EncoderIntervalMs)*time.Millisecond)
	analyzer := internal_analysis.NewClient(logger, cfg.AnalyzerHost)

	sessionApi := session_api.NewSessionApi(cfg, logger, device, loader, encoders, analyzer)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CorsOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	session_routers.HealthCheckRoutes(cfg, engine, logger)
	session_routers.SessionApiRoute(cfg, engine, logger, sessionApi)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Infof("%s %s listening on %s", cfg.Name, cfg.Version, server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sessionApi.Close(shutdownCtx); err != nil {
			logger.Errorf("session teardown: %v", err)
		}
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("server exited: %v", err)
	}
}
