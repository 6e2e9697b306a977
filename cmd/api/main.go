package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"time"

	"school-admin/internal/adapters/auth/jwtauth"
	"school-admin/internal/adapters/notify/webhook"
	mem "school-admin/internal/adapters/storage/memory"
	pg "school-admin/internal/adapters/storage/postgres"
	"school-admin/internal/platform/config"
	"school-admin/internal/platform/httpclient"
	"school-admin/internal/platform/logger"
	"school-admin/internal/ports/auth"
	"school-admin/internal/ports/notify"
	"school-admin/internal/router"
	"school-admin/internal/seed"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		logger.NewFromEnv().Error("config load failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: logger.ParseFormat(cfg.Log.Format),
		App:    "school-admin",
	})

	var verifier auth.AuthVerifier
	if cfg.JWTSecret != "" {
		verifier = jwtauth.NewVerifier(cfg.JWTSecret)
	} else {
		log.Warn("no JWT_SECRET: modo dev con X-Debug-User-ID", nil)
	}

	var notifier notify.Dispatcher
	if cfg.NotifyWebhookURL != "" {
		notifier, err = webhook.New(cfg.NotifyWebhookURL, httpclient.DefaultTimeout)
		if err != nil {
			log.Error("invalid notify webhook url", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
	}

	opts := router.Options{
		AuthVerifier: verifier,
		Notifier:     notifier,
		Log:          log,
	}

	var db *sql.DB
	if cfg.DatabaseDSN != "" {
		db, err = pg.Open(cfg.DatabaseDSN)
		if err != nil {
			log.Error("postgres open failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		defer db.Close()
		opts.DB = db
	} else {
		// Modo in-memory: armar los repos acá para poder sembrarlos.
		dir := mem.NewDirectoryRepo()
		appr := mem.NewApprovalsRepo()
		opts.Directory = dir
		opts.Approvals = appr
		opts.Permissions = mem.NewPermissionsRepo()

		if err := seed.FirstSetup(context.Background(), dir, appr, log); err != nil {
			log.Error("seed failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
	}

	app := router.NewApp(opts)

	// Barrido periódico de permisos aprobados cuya ventana ya cerró.
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.SweepInterval))
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			n, err := app.Permissions.ExpireOverdue(ctx)
			cancel()
			if err != nil {
				log.Warn("expire sweep failed", map[string]any{"error": err.Error()})
				continue
			}
			if n > 0 {
				log.Info("expire sweep", map[string]any{"expired": n})
			}
		}
	}()

	addr := ":" + cfg.Port

	srv := &http.Server{
		Addr:         addr,
		Handler:      app.Handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Info("starting server", map[string]any{"addr": addr})
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}
