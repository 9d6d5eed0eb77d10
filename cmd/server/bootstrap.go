package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/solite/internal/api"
	"github.com/charlesng35/solite/internal/app"
	"github.com/charlesng35/solite/internal/app/maintenance"
	iauth "github.com/charlesng35/solite/internal/auth"
	"github.com/charlesng35/solite/internal/database"
	"github.com/charlesng35/solite/internal/fanout"
	"github.com/charlesng35/solite/internal/handlers"
	"github.com/charlesng35/solite/internal/middleware"
	"github.com/charlesng35/solite/internal/notifications"
	"github.com/charlesng35/solite/internal/objectstore"
	"github.com/charlesng35/solite/internal/services"
	"github.com/charlesng35/solite/internal/store"
	"github.com/charlesng35/solite/internal/tracing"
	"github.com/charlesng35/solite/pkg/crypto"
	"github.com/charlesng35/solite/pkg/httpclient"
	"github.com/charlesng35/solite/pkg/logger"
)

// runtimeStack bundles long-lived resources used by the HTTP server.
type runtimeStack struct {
	DB         *gorm.DB
	Mongo      *store.MongoStore
	Hub        *notifications.Hub
	Dispatcher *fanout.Dispatcher
	Cleaner    *maintenance.Cleaner
	Router     *gin.Engine

	// SelfFanout is set when post and notification services share the process,
	// so fan-out calls loop back to this process's own listener.
	SelfFanout bool

	shutdownTracing tracing.ShutdownFunc
}

// bootstrapRuntime initialises storage, services and the HTTP router for every
// service selected by server.service.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			_ = stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.shutdownTracing, err = tracing.Setup(cfg.Monitoring.Tracing.TracingSetupConfig(serviceName(cfg)))
	if err != nil {
		return nil, fmt.Errorf("initialise tracing: %w", err)
	}

	runsUsers := cfg.Server.Runs(app.ServiceUser)
	runsPosts := cfg.Server.Runs(app.ServicePost)
	runsNotifications := cfg.Server.Runs(app.ServiceNotification)
	stack.SelfFanout = runsPosts && runsNotifications
	useMongo := strings.EqualFold(strings.TrimSpace(cfg.Notifications.Store), app.NotificationStoreMongo)

	if runsUsers || runsPosts || (runsNotifications && !useMongo) {
		stack.DB, err = initialiseDatabase(cfg)
		if err != nil {
			return nil, err
		}
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	deps := api.Dependencies{
		Config:    cfg,
		JWT:       jwtSvc,
		RateStore: middleware.NewMemoryRateStore(),
	}
	if stack.DB != nil {
		db := stack.DB
		deps.HealthChecks = append(deps.HealthChecks, handlers.HealthCheck{
			Name:  "database",
			Check: func(context.Context) error { return database.Ping(db) },
		})
	}

	if runsUsers {
		hasher := crypto.NewHasher(cfg.Auth.PasswordCost)
		if deps.Users, err = services.NewUserService(stack.DB, jwtSvc, services.WithPasswordHasher(hasher)); err != nil {
			return nil, fmt.Errorf("initialise user service: %w", err)
		}
	}

	if runsPosts {
		if deps.Posts, err = stack.initialisePosts(ctx, cfg); err != nil {
			return nil, err
		}
	}

	if runsNotifications {
		notificationStore, err := stack.initialiseNotificationStore(ctx, cfg, useMongo)
		if err != nil {
			return nil, err
		}
		if stack.Mongo != nil {
			mongoStore := stack.Mongo
			deps.HealthChecks = append(deps.HealthChecks, handlers.HealthCheck{
				Name:  "mongo",
				Check: mongoStore.Ping,
			})
		}

		stack.Hub = notifications.NewHub(cfg.CORS.AllowedOrigins...)
		deps.Stream = stack.Hub

		if deps.Notifications, err = services.NewNotificationService(notificationStore, stack.Hub); err != nil {
			return nil, fmt.Errorf("initialise notification service: %w", err)
		}

		stack.Cleaner = maintenance.NewCleaner(
			[]maintenance.NotificationPurger{deps.Notifications},
			maintenance.WithRetention(cfg.Notifications.Retention),
			maintenance.WithSchedule(cfg.Notifications.CleanupSchedule),
		)
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start notification cleanup: %w", err)
		}
	}

	stack.Router, err = api.NewRouter(deps)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	log.Info("runtime ready",
		zap.Bool("user_service", runsUsers),
		zap.Bool("post_service", runsPosts),
		zap.Bool("notification_service", runsNotifications),
	)

	success = true
	return stack, nil
}

func (s *runtimeStack) initialisePosts(ctx context.Context, cfg *app.Config) (*services.PostService, error) {
	notifier, err := fanout.NewHTTPNotifier(
		httpclient.New(cfg.Services.NotificationURL, cfg.Services.FanoutTimeout),
		fanout.BreakerSettings{},
	)
	if err != nil {
		return nil, fmt.Errorf("initialise notification client: %w", err)
	}
	s.Dispatcher, err = fanout.NewDispatcher(notifier, fanout.WithJobTimeout(cfg.Services.FanoutTimeout))
	if err != nil {
		return nil, fmt.Errorf("initialise fan-out dispatcher: %w", err)
	}

	opts := []services.PostOption{services.WithFanout(s.Dispatcher)}
	if cfg.Storage.Minio.Enabled {
		attachments, err := objectstore.New(ctx, cfg.Storage.Minio.ObjectStoreConfig())
		if err != nil {
			return nil, fmt.Errorf("initialise attachment storage: %w", err)
		}
		opts = append(opts, services.WithAttachmentStore(attachments))
	}

	posts, err := services.NewPostService(s.DB, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialise post service: %w", err)
	}
	return posts, nil
}

func (s *runtimeStack) initialiseNotificationStore(ctx context.Context, cfg *app.Config, useMongo bool) (store.NotificationStore, error) {
	if !useMongo {
		gormStore, err := store.NewGormStore(s.DB)
		if err != nil {
			return nil, fmt.Errorf("initialise notification store: %w", err)
		}
		return gormStore, nil
	}

	mongoStore, err := store.NewMongoStore(ctx, cfg.Notifications.Mongo.StoreConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise notification store: %w", err)
	}
	s.Mongo = mongoStore
	return mongoStore, nil
}

// Shutdown stops background work and releases resources in dependency order.
// Every step runs even when an earlier one fails.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) error {
	if s == nil {
		return nil
	}

	var errs error

	if s.Cleaner != nil {
		select {
		case <-s.Cleaner.Stop().Done():
		case <-ctx.Done():
			errs = multierr.Append(errs, fmt.Errorf("stop cleanup: %w", ctx.Err()))
		}
	}

	if s.Dispatcher != nil {
		if err := s.Dispatcher.Close(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("drain fan-out: %w", err))
		}
	}

	if s.Hub != nil {
		s.Hub.Close()
	}

	if s.Mongo != nil {
		if err := s.Mongo.Disconnect(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("disconnect mongo: %w", err))
		}
	}

	if s.DB != nil {
		if err := database.Close(s.DB); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close database: %w", err))
		}
	}

	if s.shutdownTracing != nil {
		if err := s.shutdownTracing(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("flush traces: %w", err))
		}
	}

	if errs != nil {
		log.Warn("runtime shutdown incomplete", zap.Error(errs))
	}
	return errs
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	logger.WithModule("database").Info("database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}

func serviceName(cfg *app.Config) string {
	name := strings.TrimSpace(cfg.Server.Service)
	if name == "" {
		return app.ServiceAll
	}
	return name
}
