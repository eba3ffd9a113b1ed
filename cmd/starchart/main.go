package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/starchart/internal/amqp"
	"github.com/dukerupert/starchart/internal/backfill"
	"github.com/dukerupert/starchart/internal/backup"
	"github.com/dukerupert/starchart/internal/config"
	"github.com/dukerupert/starchart/internal/database"
	"github.com/dukerupert/starchart/internal/docstore"
	"github.com/dukerupert/starchart/internal/events"
	"github.com/dukerupert/starchart/internal/identity"
	"github.com/dukerupert/starchart/internal/ledger"
	"github.com/dukerupert/starchart/internal/logging"
	"github.com/dukerupert/starchart/internal/metrics"
	"github.com/dukerupert/starchart/internal/push"
	"github.com/dukerupert/starchart/internal/server"
	"github.com/dukerupert/starchart/internal/store"
	"github.com/dukerupert/starchart/internal/view"
	ws "github.com/dukerupert/starchart/internal/websocket"
)

func main() {
	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		slog.Error("failed to open database", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	docs, err := docstore.New(db, cfg.DBDriver)
	if err != nil {
		slog.Error("failed to create document store", "error", err)
		os.Exit(1)
	}

	if cfg.BackfillOnStart {
		rep, err := backfill.New(docs, logger.With("component", "backfill")).Run(context.Background(), false)
		if err != nil {
			slog.Error("backfill failed", "error", err)
			os.Exit(1)
		}
		slog.Info("backfill finished", "skipped", rep.Skipped, "scanned", rep.Scanned, "updated", rep.Updated, "failed", rep.Failed)
	}

	m := metrics.New()
	hub := ws.NewHub(logger.With("component", "websocket"))
	fanout := events.NewFanout(logger.With("component", "events"), m, hub)

	if cfg.AMQPURL != "" {
		pub, err := amqp.Dial(cfg.AMQPURL, cfg.AMQPExchange, logger.With("component", "amqp"))
		if err != nil {
			// Change notifications still reach dashboards through the hub.
			slog.Warn("amqp unavailable, continuing without it", "error", err)
		} else {
			defer pub.Close()
			fanout.Add(pub)
		}
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	var pushSvc *push.Service
	if cfg.PushEnabled() {
		pushSvc = push.NewService(push.Config{
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
			Subject:         cfg.VAPIDSubject,
		})
		notifier := push.NewNotifier(pushSvc, store.NewPushStore(docs), store.NewRedemptionStore(docs), logger.With("component", "push"))
		notifier.Start(bgCtx)
		defer notifier.Stop()
		fanout.Add(notifier)
	}

	sessions := store.NewSessionStore(docs)
	provider := identity.New(store.NewUserStore(docs), sessions, cfg.SessionTTL, logger.With("component", "identity"))

	views := view.NewRegistry(provider, view.Deps{
		Docs:    docs,
		Ledger:  ledger.NewReader(docs, logger.With("component", "ledger"), m),
		Roster:  cfg.Children,
		Timeout: cfg.ViewTimeout,
		Logger:  logger,
		Metrics: m,
	})
	defer views.Close()

	backups := backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		},
		Dir:        cfg.BackupDir,
		Interval:   cfg.BackupInterval,
		Passphrase: cfg.BackupPassphrase,
		Keep:       cfg.BackupKeep,
	}, docs, func(s backup.Status) {
		hub.Broadcast(ws.NewMessage(events.EntityBackup, string(s.State), s.LastName, nil))
	}, logger.With("component", "backup"))

	srv := server.New(server.Deps{
		Docs:          docs,
		Roster:        cfg.Children,
		Identity:      provider,
		Views:         views,
		Hub:           hub,
		Events:        fanout,
		Backups:       backups,
		Push:          pushSvc,
		Metrics:       m,
		SecureCookies: cfg.SecureCookies,
		Logger:        logger,
	})

	backups.Start(bgCtx)
	go srv.RateLimiter().RunCleanup(bgCtx, time.Minute)
	go closeSignedOutSockets(bgCtx, provider, hub)

	// Background cleanup goroutine
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n, err := provider.ExpireSessions(bgCtx); err != nil {
					slog.Error("cleanup expired sessions", "error", err)
				} else if n > 0 {
					slog.Info("cleaned up expired sessions", "count", n)
				}
			case <-bgCtx.Done():
				return
			}
		}
	}()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.ViewTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("starchart starting", "addr", ":"+cfg.Port, "children", cfg.Children, "driver", cfg.DBDriver)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	bgCancel()
	backups.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

// closeSignedOutSockets tells a session's open sockets it has ended and
// closes them so the page can return to the login screen.
func closeSignedOutSockets(ctx context.Context, provider *identity.Provider, hub *ws.Hub) {
	ch, unsubscribe := provider.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			if e.SignedOut() {
				hub.EndSession(e.SessionID)
			}
		}
	}
}
