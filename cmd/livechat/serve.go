package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/wplc/livechat/internal/bootstrap"
	"github.com/wplc/livechat/internal/config"
	"github.com/wplc/livechat/internal/infra/cache"
	"github.com/wplc/livechat/internal/infra/db"
	"github.com/wplc/livechat/internal/infra/relay"
	"github.com/wplc/livechat/internal/modules/handler"
	"github.com/wplc/livechat/internal/modules/service"
	"github.com/wplc/livechat/internal/router"
	"github.com/wplc/livechat/internal/telemetry"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	inj := bootstrap.BuildContainer()

	cfg, err := do.Invoke[*config.Config](inj)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := do.Invoke[*zap.Logger](inj)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	telemetryOn := cfg.Telemetry.Enabled && cfg.Telemetry.OtlpEndpoint != ""
	if _, err := telemetry.SetupTracing(cfg); err != nil {
		log.Warn("tracing disabled", zap.Error(err))
	}
	if _, err := telemetry.SetupMetrics(cfg); err != nil {
		log.Warn("metrics disabled", zap.Error(err))
	}
	if err := telemetry.InitChatMetrics(); err != nil {
		log.Warn("chat metrics disabled", zap.Error(err))
	}

	database, err := do.Invoke[*gorm.DB](inj)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	rdb, err := do.Invoke[*redis.Client](inj)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if telemetryOn {
		if err := db.RegisterOpenTelemetryPlugin(database); err != nil {
			log.Warn("gorm tracing plugin", zap.Error(err))
		}
		if err := cache.Instrument(rdb); err != nil {
			log.Warn("redis instrumentation", zap.Error(err))
		}
	}

	operators := do.MustInvoke[service.OperatorService](inj)
	if err := bootstrap.EnsureBootstrapOperator(ctx, operators, cfg, log); err != nil {
		return fmt.Errorf("bootstrap operator: %w", err)
	}

	// Resolve the chat graph before the handlers so optional backends fail with an error.
	if _, err := do.Invoke[service.ChatService](inj); err != nil {
		return fmt.Errorf("build chat service: %w", err)
	}

	deps := router.RouterDeps{
		Config:          cfg,
		Log:             log,
		OperatorService: operators,
		PresenceService: do.MustInvoke[service.PresenceService](inj),
		WidgetHandler:   do.MustInvoke[*handler.WidgetHandler](inj),
		AdminHandler:    do.MustInvoke[*handler.AdminHandler](inj),
	}
	if hub, ok := do.MustInvoke[relay.Relay](inj).(*relay.Hub); ok {
		deps.Realtime = hub
	}
	engine := router.NewRouter(deps)
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var sweeper *service.FlowSweeper
	if cfg.Flow.Store == "database" {
		if sweeper, err = do.Invoke[*service.FlowSweeper](inj); err != nil {
			return fmt.Errorf("flow sweeper: %w", err)
		}
		sweeper.Start()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if sweeper != nil {
			sweeper.Stop(shutdownCtx)
		}
		err := srv.Shutdown(shutdownCtx)
		closeBackends(shutdownCtx, inj, log)
		return err
	})

	return g.Wait()
}

// closeBackends releases every connection the container opened. Errors are logged only.
func closeBackends(ctx context.Context, inj *do.Injector, log *zap.Logger) {
	if r, err := do.Invoke[relay.Relay](inj); err == nil {
		if err := r.Close(); err != nil {
			log.Warn("close relay", zap.Error(err))
		}
	}
	if m, err := do.Invoke[service.MessageMirror](inj); err == nil {
		if c, ok := m.(io.Closer); ok {
			if err := c.Close(); err != nil {
				log.Warn("close message mirror", zap.Error(err))
			}
		}
	}
	if rdb, err := do.Invoke[*redis.Client](inj); err == nil {
		if err := rdb.Close(); err != nil {
			log.Warn("close redis", zap.Error(err))
		}
	}
	if database, err := do.Invoke[*gorm.DB](inj); err == nil {
		if sqlDB, err := database.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if err := telemetry.Shutdown(ctx); err != nil {
		log.Warn("shutdown tracing", zap.Error(err))
	}
	if err := telemetry.ShutdownMetrics(ctx); err != nil {
		log.Warn("shutdown metrics", zap.Error(err))
	}
}
