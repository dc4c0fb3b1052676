package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"designer/internal/access"
	"designer/internal/api"
	"designer/internal/blob"
	"designer/internal/config"
	"designer/internal/datadef"
	"designer/internal/iface"
	"designer/internal/lock"
	"designer/internal/logger"
	"designer/internal/notify"
	"designer/internal/watch"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	logger.Setup(cfg.LogLevel, cfg.LogPretty)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Блокировки: Redis, если инстансов несколько, иначе в процессе
	var locker lock.Locker = lock.NewLocal()
	if cfg.RedisAddr != "" {
		rl, err := lock.NewRedis(ctx, lock.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("Failed to setup Redis locks")
		}
		defer rl.Close()
		locker = rl
		log.Info().Str("addr", cfg.RedisAddr).Msg("Using Redis locks")
	}

	// 2. Уведомления: лента в памяти + NATS
	feed := notify.NewFeed(cfg.FeedSize)
	notifiers := notify.Multi{feed}
	if cfg.NatsURL != "" {
		np, err := notify.ConnectNats(cfg.NatsURL, cfg.NatsPrefix)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to setup NATS publisher")
		}
		defer np.Close()
		notifiers = append(notifiers, np)
	}

	// 3. Хранилища файловых источников (локально или gs://)
	blobs := blob.NewResolver(cfg.AppRoot, cfg.GCSCredentialsFile)
	defer blobs.Close()

	ifaceFile := cfg.InterfaceFile
	if !filepath.IsAbs(ifaceFile) {
		ifaceFile = filepath.Join(cfg.AppRoot, ifaceFile)
	}

	d := &api.Designer{
		Defs:         datadef.NewManager(cfg.DatadefDir, locker),
		Access:       access.NewManager(blobs, nil),
		Ifaces:       iface.NewGenerator(ifaceFile, locker),
		Scanner:      iface.Scanner{Root: cfg.AppRoot, Paths: cfg.ScanPaths},
		Feed:         feed,
		Notifier:     notifiers,
		QueryTimeout: cfg.QueryTimeout,
	}

	// 4. Ручные правки YAML
	if cfg.Watch {
		w, err := startWatcher(ctx, cfg.DatadefDir, notifiers)
		if err != nil {
			log.Warn().Err(err).Str("dir", cfg.DatadefDir).Msg("Datadef watcher disabled")
		} else {
			defer w.Close()
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(d),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server error")
			stop()
		}
	}()
	log.Info().
		Str("addr", srv.Addr).
		Str("datadef", cfg.DatadefDir).
		Str("appRoot", cfg.AppRoot).
		Msg("Designer server started")

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
}

func startWatcher(ctx context.Context, dir string, n notify.Notifier) (*watch.Watcher, error) {
	w, err := watch.New(dir, n, 0)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		_ = w.Close()
		return nil, err
	}
	return w, nil
}
