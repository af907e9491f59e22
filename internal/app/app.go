// Package app wires the sync engine together for the daemon: session
// store, identity, REST client, push channel, conversation store, send
// coordinator and the chat facade.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"heartlink/internal/retention"
	"heartlink/pkg/chat"
	"heartlink/pkg/config"
	"heartlink/pkg/convo"
	"heartlink/pkg/history"
	"heartlink/pkg/logger"
	"heartlink/pkg/reactions"
	"heartlink/pkg/realtime"
	"heartlink/pkg/restapi"
	"heartlink/pkg/send"
	"heartlink/pkg/session"
	"heartlink/pkg/telemetry"
)

// App encapsulates the running engine and its lifecycle.
type App struct {
	eff    config.Effective
	Client *chat.Client

	retentionCancel context.CancelFunc
	metricsSrv      *http.Server
}

// New opens the session store, resolves the local identity and builds the
// engine. It does not start the push channel; call Run.
func New(eff config.Effective) (*App, error) {
	cfg := eff.Config

	if err := session.Open(cfg.Session.Path); err != nil {
		return nil, fmt.Errorf("open session store at %s: %w", cfg.Session.Path, err)
	}
	session.SetCacheLimit(uint64(cfg.Session.MaxCacheBytes))

	var resolver session.Resolver
	self, err := resolver.LocalUserID()
	if err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("resolve identity: %w", err)
	}

	api := restapi.New(cfg.API.BaseURL, cfg.API.Timeout.Std(0))
	store := convo.NewStore(cfg.Sync.ReconcileWindow.Std(convo.DefaultReconcileWindow))
	manager := realtime.NewManager(
		cfg.Realtime.URL,
		cfg.Realtime.MaxRetries,
		cfg.Realtime.Backoff.Std(0),
		cfg.Realtime.PingInterval.Std(0),
	)
	coord := send.New(store, api, cfg.Sync.ConfirmTimeout.Std(send.DefaultConfirmTimeout))

	client, err := chat.New(chat.Options{
		LocalUserID: self,
		Store:       store,
		History:     history.NewLoader(api),
		Reactions:   reactions.NewIndex(api),
		Source:      manager,
		Coordinator: coord,
		SendRPS:     cfg.Sync.SendRPS,
		SendBurst:   cfg.Sync.SendBurst,
	})
	if err != nil {
		_ = session.Close()
		return nil, err
	}

	return &App{eff: eff, Client: client}, nil
}

// Run starts the push channel, retention and the optional metrics
// listener, then blocks until ctx is canceled.
func (a *App) Run(ctx context.Context) error {
	cfg := a.eff.Config

	if err := a.Client.Start(ctx); err != nil {
		return err
	}

	cancel, err := retention.Start(ctx, cfg.Retention)
	if err != nil {
		return err
	}
	a.retentionCancel = cancel

	if cfg.Metrics.Enabled {
		addr := cfg.Metrics.Addr
		if addr == "" {
			addr = "127.0.0.1:9190"
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", telemetry.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, "ok state=%s\n", a.Client.ConnectionStatus())
		})
		a.metricsSrv = &http.Server{Addr: addr, Handler: mux}
		go func() {
			logger.Info("metrics_listener_started", "addr", addr)
			if err := a.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics_listener_failed", "error", err)
			}
		}()
	}

	<-ctx.Done()
	return nil
}

// Close releases everything in reverse start order.
func (a *App) Close() error {
	if a.retentionCancel != nil {
		a.retentionCancel()
	}
	if a.metricsSrv != nil {
		shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = a.metricsSrv.Shutdown(shutCtx)
	}
	if err := a.Client.Close(); err != nil {
		logger.Warn("push_close_failed", "error", err)
	}
	return session.Close()
}
