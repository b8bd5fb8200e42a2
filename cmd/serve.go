package cmd

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"messenger-api/jobs"
	"messenger-api/middleware"
	"messenger-api/routes"
)

var (
	skipMigrate     bool
	shutdownTimeout time.Duration

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  `Connects the store, cache and object storage, schedules the idle session sweep and serves the API until SIGINT or SIGTERM.`,
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
)

func init() {
	serveCmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not run schema migrations on startup")
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 15*time.Second, "grace period for in-flight requests")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log, !skipMigrate)
	if err != nil {
		return err
	}
	defer a.Close()

	sweep, err := jobs.NewSessionSweepJob(a.registry, cfg.SweepSchedule, cfg.SessionIdleTTL, log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(a),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("messenger api listening",
			zap.String("addr", srv.Addr),
			zap.String("environment", cfg.Environment),
			zap.String("store", cfg.StoreDriver),
			zap.String("blobs", cfg.BlobDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		sweep.Start()
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		sweep.Stop(shutdownCtx)
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newRouter(a *app) *gin.Engine {
	if a.cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(routes.SetupCORS(a.cfg.CORSOrigins...))
	router.Use(middleware.RequestLogger(a.log))
	router.Use(middleware.Metrics())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.ErrorHandler(a.log))
	router.Use(middleware.RateLimit(a.cfg.RateLimitPerMinute, a.cfg.RateLimitBurst))

	routes.SetupRoutes(router, routes.Deps{
		Config:   a.cfg,
		Store:    a.store,
		Registry: a.registry,
		Tokens:   a.tokens,
		Presence: a.presence,
		Log:      a.log,
		Media:    a.media,
	})
	return router
}
