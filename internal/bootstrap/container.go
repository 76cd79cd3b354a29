package bootstrap

import (
	"context"
	"crypto/tls"
	"errors"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wplc/livechat/internal/config"
	"github.com/wplc/livechat/internal/infra/blob"
	"github.com/wplc/livechat/internal/infra/cache"
	"github.com/wplc/livechat/internal/infra/db"
	"github.com/wplc/livechat/internal/infra/logger"
	mq "github.com/wplc/livechat/internal/infra/queue"
	"github.com/wplc/livechat/internal/infra/relay"
	"github.com/wplc/livechat/internal/modules/handler"
	"github.com/wplc/livechat/internal/modules/model"
	"github.com/wplc/livechat/internal/modules/repo"
	"github.com/wplc/livechat/internal/modules/service"
)

// Models lists every table the service owns.
func Models() []any {
	return []any{
		&model.Session{},
		&model.Message{},
		&model.File{},
		&model.Operator{},
		&model.FlowStateRow{},
	}
}

// BuildContainer registers every dependency lazily. Optional backends (RabbitMQ, S3) resolve
// to nil interfaces when they are not configured.
func BuildContainer() *do.Injector {
	inj := do.New()

	// config
	do.Provide(inj, func(i *do.Injector) (*config.Config, error) {
		return config.Load()
	})

	// logger
	do.Provide(inj, func(i *do.Injector) (*zap.Logger, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return logger.New(cfg.Log.Level)
	})

	// DB
	do.Provide(inj, func(i *do.Injector) (*gorm.DB, error) {
		cfg := do.MustInvoke[*config.Config](i)
		d, err := db.New(cfg)
		if err != nil {
			return nil, err
		}
		if cfg.Database.AutoMigrate {
			if err := d.AutoMigrate(Models()...); err != nil {
				return nil, err
			}
		}
		return d, nil
	})

	// Redis
	do.Provide(inj, func(i *do.Injector) (*redis.Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return cache.New(context.Background(), cfg.Redis)
	})

	// Realtime relay
	do.Provide(inj, func(i *do.Injector) (relay.Relay, error) {
		return relay.New(do.MustInvoke[*config.Config](i), do.MustInvoke[*zap.Logger](i))
	})

	// RabbitMQ DialFunc for connection and reconnection
	do.Provide(inj, func(i *do.Injector) (mq.DialFunc, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return func() (*amqp.Connection, error) {
			url := cfg.RabbitMQ.URL
			if cfg.RabbitMQ.EnableTLS || strings.HasPrefix(url, "amqps://") {
				url = strings.Replace(url, "amqp://", "amqps://", 1)
				return amqp.DialTLS(url, &tls.Config{MinVersion: tls.VersionTLS12})
			}
			return amqp.Dial(url)
		}, nil
	})

	// Message mirror, nil unless RabbitMQ is enabled
	do.Provide(inj, func(i *do.Injector) (service.MessageMirror, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if !cfg.RabbitMQ.Enabled {
			return nil, nil
		}
		dialFn := do.MustInvoke[mq.DialFunc](i)
		conn, err := dialFn()
		if err != nil {
			return nil, err
		}
		return mq.NewPublisher(conn, do.MustInvoke[*zap.Logger](i), cfg, dialFn)
	})

	// Object store, nil unless S3 is enabled
	do.Provide(inj, func(i *do.Injector) (service.ObjectStore, error) {
		cfg := do.MustInvoke[*config.Config](i)
		log := do.MustInvoke[*zap.Logger](i)
		if !cfg.S3.Enabled {
			log.Info("object storage disabled, uploads will be rejected")
			return nil, nil
		}
		s3, err := blob.NewS3(context.Background(), cfg)
		if errors.Is(err, blob.ErrBucketNotConfigured) {
			log.Warn("s3 enabled without a bucket, uploads will be rejected")
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return s3, nil
	})

	// Repo
	do.Provide(inj, func(i *do.Injector) (repo.SessionRepo, error) {
		return repo.NewSessionRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.MessageRepo, error) {
		return repo.NewMessageRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.FileRepo, error) {
		return repo.NewFileRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.OperatorRepo, error) {
		return repo.NewOperatorRepo(do.MustInvoke[*gorm.DB](i)), nil
	})
	do.Provide(inj, func(i *do.Injector) (*repo.GormFlowStateStore, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return repo.NewGormFlowStateStore(do.MustInvoke[*gorm.DB](i), flowTTL(cfg)), nil
	})
	do.Provide(inj, func(i *do.Injector) (repo.FlowStateStore, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.Flow.Store == "database" {
			return do.MustInvoke[*repo.GormFlowStateStore](i), nil
		}
		return repo.NewRedisFlowStateStore(do.MustInvoke[*redis.Client](i), flowTTL(cfg)), nil
	})

	// Service
	do.Provide(inj, func(i *do.Injector) (service.SessionService, error) {
		return service.NewSessionService(
			do.MustInvoke[repo.SessionRepo](i),
			do.MustInvoke[repo.MessageRepo](i),
			do.MustInvoke[repo.FileRepo](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.MessageService, error) {
		return service.NewMessageService(
			do.MustInvoke[repo.MessageRepo](i),
			do.MustInvoke[repo.SessionRepo](i),
			do.MustInvoke[repo.FileRepo](i),
			do.MustInvoke[repo.OperatorRepo](i),
			do.MustInvoke[*config.Config](i).Chat.HistoryLimit,
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.FlowEngine, error) {
		return service.NewFlowEngine(
			do.MustInvoke[repo.FlowStateStore](i),
			do.MustInvoke[service.SessionService](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.Gateway, error) {
		return service.NewGateway(
			do.MustInvoke[relay.Relay](i),
			do.MustInvoke[*config.Config](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.FileService, error) {
		return service.NewFileService(
			do.MustInvoke[service.ObjectStore](i),
			do.MustInvoke[*config.Config](i).Chat.MaxUploadBytes,
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.PresenceService, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return service.NewPresenceService(
			do.MustInvoke[*redis.Client](i),
			time.Duration(cfg.Chat.PresenceWindowSec)*time.Second,
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.OperatorService, error) {
		return service.NewOperatorService(
			do.MustInvoke[repo.OperatorRepo](i),
			do.MustInvoke[*config.Config](i),
			do.MustInvoke[*zap.Logger](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (service.ChatService, error) {
		return service.NewChatService(service.ChatServiceDeps{
			Sessions: do.MustInvoke[service.SessionService](i),
			Messages: do.MustInvoke[service.MessageService](i),
			Flow:     do.MustInvoke[service.FlowEngine](i),
			Gateway:  do.MustInvoke[service.Gateway](i),
			Files:    do.MustInvoke[service.FileService](i),
			Mirror:   do.MustInvoke[service.MessageMirror](i),
			Config:   do.MustInvoke[*config.Config](i),
			Log:      do.MustInvoke[*zap.Logger](i),
		}), nil
	})
	do.Provide(inj, func(i *do.Injector) (*service.FlowSweeper, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return service.NewFlowSweeper(
			do.MustInvoke[*repo.GormFlowStateStore](i),
			cfg.Flow.SweepSchedule,
			do.MustInvoke[*zap.Logger](i),
		)
	})

	// Handler
	do.Provide(inj, func(i *do.Injector) (*handler.WidgetHandler, error) {
		return handler.NewWidgetHandler(
			do.MustInvoke[service.ChatService](i),
			do.MustInvoke[service.Gateway](i),
			do.MustInvoke[service.PresenceService](i),
			do.MustInvoke[*config.Config](i),
		), nil
	})
	do.Provide(inj, func(i *do.Injector) (*handler.AdminHandler, error) {
		return handler.NewAdminHandler(handler.AdminHandlerDeps{
			Chat:      do.MustInvoke[service.ChatService](i),
			Sessions:  do.MustInvoke[service.SessionService](i),
			Gateway:   do.MustInvoke[service.Gateway](i),
			Presence:  do.MustInvoke[service.PresenceService](i),
			Operators: do.MustInvoke[service.OperatorService](i),
			ListLimit: do.MustInvoke[*config.Config](i).Chat.SessionListLimit,
		}), nil
	})
	return inj
}

func flowTTL(cfg *config.Config) time.Duration {
	days := cfg.Flow.TTLDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}
