package http

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/JaggerBean/FitCollector/internal/cache"
	"github.com/JaggerBean/FitCollector/internal/clock"
	"github.com/JaggerBean/FitCollector/internal/config"
	"github.com/JaggerBean/FitCollector/internal/database"
	"github.com/JaggerBean/FitCollector/internal/handler"
	"github.com/JaggerBean/FitCollector/internal/logger"
	"github.com/JaggerBean/FitCollector/internal/metrics"
	"github.com/JaggerBean/FitCollector/internal/model"
	"github.com/JaggerBean/FitCollector/internal/push"
	"github.com/JaggerBean/FitCollector/internal/redis"
	"github.com/JaggerBean/FitCollector/internal/repository"
	"github.com/JaggerBean/FitCollector/internal/service"
	"github.com/JaggerBean/FitCollector/internal/storage"
	"github.com/JaggerBean/FitCollector/internal/worker"
)

// Run wires the application and serves until SIGINT or SIGTERM.
func Run() error {
	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger.Setup(cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk, err := clock.Load(cfg.BusinessTimezone)
	if err != nil {
		return err
	}

	// 2. Connect to the database
	db, err := database.Connect(ctx, cfg.DSN())
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if err := database.EnsureSchema(ctx, db); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	// 3. Caches and metrics
	rec := metrics.New(cfg.MetricsEnabled)

	catalogCache := cache.NewCatalogCache(nil, cfg.CatalogCacheTTL)
	if cfg.RedisURL != "" {
		rc, err := redis.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Str("component", "server").Msg("redis unavailable, reward catalog cache disabled")
		} else {
			defer rc.Close()
			catalogCache = cache.NewCatalogCache(rc.Client, cfg.CatalogCacheTTL)
		}
	}
	settingsCache := cache.NewSettingsCache(cfg.SettingsCacheMB, cfg.SettingsCacheTTL)

	// 4. Push providers
	senders, err := buildSenders(ctx, cfg)
	if err != nil {
		return err
	}

	// 5. Repositories and services
	tx := repository.NewTransactor(db)
	steps := repository.NewStepRepository(db)
	claims := repository.NewClaimRepository(db)
	rewards := repository.NewRewardRepository(db)
	identities := repository.NewIdentityRepository(db)
	bans := repository.NewBanRepository(db)
	servers := repository.NewServerRepository(db)
	tokens := repository.NewDeviceTokenRepository(db)
	notifs := repository.NewNotificationRepository(db)
	deliveries := repository.NewDeliveryRepository(db)
	audits := repository.NewAuditRepository(db)

	settingsSvc := service.NewSettingsService(servers, settingsCache)
	rewardSvc := service.NewRewardService(tx, rewards, audits, catalogCache, rec)
	ingestSvc := service.NewIngestService(tx, steps, identities, bans, clk, cfg.DeviceBindingScope, rec)
	claimSvc := service.NewClaimService(tx, steps, claims, identities, rewardSvc, settingsSvc, clk, cfg.ClaimVerifyEligibility, rec)
	registrySvc := service.NewRegistryService(tokens, senders, cfg.APNsUseSandbox, cfg.PushDefaultTitle, rec)
	notificationSvc := service.NewNotificationService(notifs, clk)
	auditSvc := service.NewAuditService(audits)
	dispatcher := service.NewDispatcher(tx, deliveries, tokens, senders, clk, service.DispatcherConfig{
		BatchSize:    cfg.PushSchedulerBatch,
		APNsSandbox:  cfg.APNsUseSandbox,
		DefaultTitle: cfg.PushDefaultTitle,
	}, rec)

	// 6. Background delivery loop
	var scheduler *worker.Scheduler
	if cfg.EnablePushScheduler {
		scheduler = worker.NewScheduler(dispatcher, worker.SchedulerConfig{Interval: cfg.PushSchedulerInterval})
		if err := scheduler.Start(ctx); err != nil {
			return err
		}
	}

	// 7. HTTP
	router := NewRouter(RouterConfig{
		IngestHandler: handler.NewIngestHandler(ingestSvc, identities),
		PlayerHandler: handler.NewPlayerHandler(claimSvc, registrySvc, identities),
		ServerHandler: handler.NewServerHandler(claimSvc, ingestSvc, rewardSvc, notificationSvc, clk),
		OwnerHandler:  handler.NewOwnerHandler(settingsSvc, rewardSvc, notificationSvc, auditSvc),
		OpsHandler:    handler.NewOpsHandler(dispatcher),
		Keys:          identities,
		Metrics:       rec.Handler(),
		JWTSecret:     cfg.JWTSecret,
		AdminKey:      cfg.MasterAdminKey,
	})

	srv := &stdhttp.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("component", "server").Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if scheduler != nil {
			scheduler.Stop()
		}
		return err
	case <-ctx.Done():
	}

	// Stop the ticker and let the in-flight pass finish before draining HTTP.
	log.Info().Str("component", "server").Msg("shutting down")
	if scheduler != nil {
		scheduler.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// buildSenders configures the adapters whose credentials are present. A platform without one is skipped by dispatch.
func buildSenders(ctx context.Context, cfg *config.Config) (push.Senders, error) {
	loader, err := storage.NewCredentialLoader(ctx, storage.R2Config{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		Bucket:          cfg.CredentialsBucket,
	})
	if err != nil {
		return nil, err
	}

	senders := push.Senders{}

	if cfg.APNsKeyPath != "" {
		keyPEM, err := loader.Load(ctx, cfg.APNsKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load apns key: %w", err)
		}
		apns, err := push.NewAPNsClient(push.APNsConfig{
			KeyPEM:  keyPEM,
			KeyID:   cfg.APNsKeyID,
			TeamID:  cfg.APNsTeamID,
			Topic:   cfg.APNsTopic,
			Sandbox: cfg.APNsUseSandbox,
		})
		if err != nil {
			return nil, err
		}
		senders[model.PlatformIOS] = apns
	} else {
		log.Warn().Str("component", "push").Msg("APNS_KEY_PATH not set, iOS delivery disabled")
	}

	if cfg.FCMServiceAccountPath != "" {
		sa, err := loader.Load(ctx, cfg.FCMServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("load fcm service account: %w", err)
		}
		fcm, err := push.NewFCMClient(ctx, sa, cfg.AndroidChannelID)
		if err != nil {
			return nil, err
		}
		senders[model.PlatformAndroid] = fcm
	} else {
		log.Warn().Str("component", "push").Msg("FCM_SERVICE_ACCOUNT_PATH not set, Android delivery disabled")
	}

	return senders, nil
}
