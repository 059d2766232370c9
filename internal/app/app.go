// Package app wires configuration, storage, the Telegram adapter, the
// notification service and the router into one lifecycle.
package app

import (
	"context"
	"time"

	"heraldbot/internal/config"
	"heraldbot/internal/digest"
	"heraldbot/internal/notify"
	"heraldbot/internal/runtime/supervisor"
	"heraldbot/internal/store"
	kit "heraldbot/internal/transport"
	telegram "heraldbot/internal/transport/telegram/adapter"
	"heraldbot/internal/transport/telegram/router"
	logx "heraldbot/pkg/logx"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log   logx.Logger
	logs  *logx.Service
	store *store.Store

	adapter *telegram.Adapter
	notif   *notify.Service
	dig     *digest.Service
	router  *router.Router

	updates chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	busyTimeout, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(store.Config{
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "store")))
	if err != nil {
		return nil, err
	}

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	notifSvc := notify.New(notify.Config{
		RatePerSec: cfg.Notify.RatePerSec,
	}, st, ad, log.With(logx.String("comp", "notify")))

	digestWindow, err := config.ParseDurationOrDefault("digest.window", cfg.Digest.Window, 24*time.Hour)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	digSvc := digest.New(digest.Config{
		Enabled: cfg.Digest.Enabled,
		Spec:    cfg.Digest.Spec,
		Window:  digestWindow,
	}, st, ad, cfg.Telegram.AdminUserIDs, log.With(logx.String("comp", "digest")))

	rt := router.New(ad, st, notifSvc, cfgm, cfg.Reports.Dir, log.With(logx.String("comp", "router")))

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		store:   st,
		adapter: ad,
		notif:   notifSvc,
		dig:     digSvc,
		router:  rt,
		updates: make(chan kit.Update, 256),
	}, nil
}

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	if err := a.dig.Start(a.sup.Context()); err != nil {
		return err
	}

	a.sup.Go("router.dispatch", func(c context.Context) error {
		return a.router.Run(c, a.updates)
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	// Hot reload fan-out: logging is the only section applied live. Token,
	// storage path and poll timeout take effect on restart.
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.logs.Apply(mapLoggingConfig(newCfg))
				a.log.Info("config reloaded", logx.String("path", a.cfgPath))
			}
		}
	})

	a.log.Info("started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup != nil {
		a.sup.Cancel()
	}
	a.dig.Stop()

	stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := a.adapter.Stop(stopCtx); err != nil {
		a.log.Warn("adapter stop", logx.Err(err))
	}

	var waitErr error
	if a.sup != nil {
		waitErr = a.sup.Wait(stopCtx)
	}

	if err := a.store.Close(); err != nil {
		a.log.Warn("store close", logx.Err(err))
	}
	a.log.Info("stopped")
	_ = a.logs.Close()
	return waitErr
}
