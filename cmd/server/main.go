package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/applog"
	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/bridge"
	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/browser"
	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/config"
	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/control"
	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/gallery"
	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/hub"
	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/launcher"
	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/realtime"
	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/session"
	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/tabs"
	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/watcher"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:], nil)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	logger := applog.Init(applog.InitConfig{LogLevel: cfg.LogLevel})

	// Broadcast hub and the components publishing through it.
	h := hub.New(hub.WithLogger(logger))
	registry := tabs.New(h,
		tabs.WithStaleAfter(cfg.StaleAfter),
		tabs.WithOpener(launcher.System{}),
		tabs.WithLogger(logger),
	)
	h.OnDisconnect(registry.OnDisconnect)

	store := gallery.New(cfg.GallerySize, h)

	holder := session.NewHolder(logger)
	facade := control.New(holder, h, logger)
	holder.OnAttach(func(string) { facade.Reset() })

	task := &session.TaskContext{}
	task.SetURLAndTask(cfg.TargetURL, cfg.TargetTask)

	rtServer := realtime.New(realtime.Options{
		Hub:       h,
		Tabs:      registry,
		Gallery:   store,
		Bridge:    bridge.New(holder, h, logger),
		Control:   facade,
		Sessions:  holder,
		Task:      task,
		StaticDir: cfg.StaticDir,
		Logger:    logger,
	})

	// Live reload of dashboard assets.
	var assets *watcher.Watcher
	if cfg.WatchAssets {
		assets = watcher.New(func(dir string, count int) {
			if registry.Refresh() {
				logger.Info("dashboard assets changed, refreshed open tabs", "dir", dir, "assets", count)
			}
		}, watcher.WithLogger(logger))
		if err := assets.Watch(cfg.StaticDir); err != nil {
			logger.Warn("asset watcher disabled", "err", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", cfg.ListenAddr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddr(), err)
	}
	httpServer := &http.Server{Handler: rtServer.Handler()}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(ln)
	}()
	logger.Info("dashboard server running", "url", cfg.DashboardURL(false), "listen", cfg.ListenAddr())

	var engine *browser.Engine
	if cfg.TargetURL != "" {
		engine = browser.New(browser.Options{
			Headless:  cfg.Headless,
			Bin:       cfg.BrowserBinary,
			MaxShots:  cfg.GallerySize,
			Publisher: h,
			Gallery:   store,
			Holder:    holder,
			Logger:    logger,
		})
		if err := engine.Start(ctx, cfg.TargetURL); err != nil {
			logger.Error("browser session failed to start", "err", err)
			engine = nil
		}
	}

	if cfg.Open {
		outcome, err := registry.RequestOpen(cfg.DashboardURL(cfg.OpenGallery))
		if err != nil {
			logger.Warn("open dashboard", "err", err)
		} else {
			logger.Info("dashboard requested", "outcome", outcome)
		}
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if engine != nil {
		if err := engine.Shutdown(shutdownCtx); err != nil {
			logger.Warn("stop browser", "err", err)
		}
	}
	if assets != nil {
		assets.Shutdown()
	}
	h.Shutdown()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "err", err)
		httpServer.Close()
	}
	logger.Info("stopped")
	return nil
}
