package cmd

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"messenger-api/cache"
	"messenger-api/config"
	"messenger-api/database"
	"messenger-api/repositories"
	"messenger-api/services"
	"messenger-api/storage"
)

// app is the wired set of process wide collaborators.
type app struct {
	cfg *config.Config
	log *zap.Logger

	store    repositories.Seeder
	cache    cache.Cache
	blobs    storage.BlobStore
	media    *storage.MemoryStore
	deps     *services.Dependencies
	presence *services.PresenceService
	tokens   *services.TokenService
	registry *services.SessionRegistry

	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger, migrate bool) (*app, error) {
	a := &app{cfg: cfg, log: log}

	store, closeStore, err := openStore(cfg, log, migrate)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, closeStore)

	if err := a.openCache(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openBlobs(ctx); err != nil {
		a.Close()
		return nil, err
	}

	var mailer services.Mailer = services.NewNoopMailer(log)
	if cfg.MailEnabled() {
		mailer = services.NewEmailService(cfg, log)
	}

	a.presence = services.NewPresenceService(a.cache, a.store, cfg.SessionIdleTTL)
	a.tokens = services.NewTokenService(cfg.JWTSecret, cfg.TokenTTL, a.cache)
	a.deps = &services.Dependencies{
		Store:    a.store,
		Blobs:    a.blobs,
		Presence: a.presence,
		Mailer:   mailer,
		Log:      log,
	}
	a.registry = services.NewSessionRegistry(a.deps)

	if cfg.StoreDriver == "memory" {
		if _, err := database.SeedData(ctx, a.store, log); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// openStore returns the configured store. The mysql store is migrated
// first when migrate is set.
func openStore(cfg *config.Config, log *zap.Logger, migrate bool) (repositories.Seeder, func() error, error) {
	if cfg.StoreDriver == "memory" {
		log.Warn("using in-memory store, data is lost on restart")
		return repositories.NewMemoryStore(), func() error { return nil }, nil
	}

	db, err := database.Initialize(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, errors.Wrap(err, "access connection pool")
	}
	if migrate {
		if err := database.Migrate(db, log); err != nil {
			sqlDB.Close()
			return nil, nil, err
		}
	}
	return repositories.NewGormStore(db), sqlDB.Close, nil
}

func (a *app) openCache(ctx context.Context) error {
	if a.cfg.RedisAddr == "" {
		a.cache = cache.NewMemoryCache()
		return nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	rc, err := cache.NewRedisCache(dialCtx, cache.RedisConfig{
		Addr:     a.cfg.RedisAddr,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	}, "messenger:")
	if err != nil {
		return errors.Wrap(err, "connect to redis")
	}
	a.cache = rc
	a.closers = append(a.closers, rc.Close)
	a.log.Info("redis cache connected", zap.String("addr", a.cfg.RedisAddr))
	return nil
}

func (a *app) openBlobs(ctx context.Context) error {
	if a.cfg.BlobDriver != "minio" {
		base := a.cfg.MediaPublicURL
		if base == "" {
			base = "http://localhost:" + a.cfg.Port
		}
		a.media = storage.NewMemoryStore(base)
		a.blobs = a.media
		return nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	ms, err := storage.NewMinioStore(dialCtx, storage.MinioConfig{
		Endpoint:  a.cfg.MinioEndpoint,
		AccessKey: a.cfg.MinioAccessKey,
		SecretKey: a.cfg.MinioSecretKey,
		Bucket:    a.cfg.MinioBucket,
		UseSSL:    a.cfg.MinioUseSSL,
		PublicURL: a.cfg.MediaPublicURL,
	})
	if err != nil {
		return errors.Wrap(err, "connect to object storage")
	}
	a.blobs = ms
	a.log.Info("object storage ready", zap.String("endpoint", a.cfg.MinioEndpoint), zap.String("bucket", a.cfg.MinioBucket))
	return nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}
