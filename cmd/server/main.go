package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storefront/config"
	"storefront/internal/api"
	"storefront/internal/auth"
	"storefront/internal/blob"
	"storefront/internal/broker"
	"storefront/internal/feed"
	"storefront/internal/orderid"
	"storefront/internal/pricing"
	"storefront/internal/redisclient"
	"storefront/internal/report"
	"storefront/internal/service"
	"storefront/internal/store"
	"storefront/internal/util"
	"storefront/internal/worker"
)

func main() {
	app := &cli.App{
		Name:  "storefront",
		Usage: "clothing storefront API and back office",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP server and change feed worker",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "migrate", Usage: "apply pending migrations before serving"},
				},
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "apply or roll back schema migrations",
				Subcommands: []*cli.Command{
					{
						Name:   "up",
						Flags:  []cli.Flag{&cli.IntFlag{Name: "steps", Usage: "number of migrations, 0 for all"}},
						Action: func(c *cli.Context) error { return runMigrate(true, c.Int("steps")) },
					},
					{
						Name:   "down",
						Flags:  []cli.Flag{&cli.IntFlag{Name: "steps", Value: 1, Usage: "number of migrations, 0 for all"}},
						Action: func(c *cli.Context) error { return runMigrate(false, c.Int("steps")) },
					},
				},
			},
			{
				Name:      "hash-password",
				Usage:     "print a bcrypt hash for ADMIN_PASSWORDS",
				ArgsUsage: "<password>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.Exit("exactly one password is required", 2)
					}
					h, err := auth.HashPassword(c.Args().First())
					if err != nil {
						return err
					}
					fmt.Println(h)
					return nil
				},
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runMigrate(up bool, steps int) error {
	cfg := config.Load()
	if err := store.Migrate(cfg.Database.URL, up, steps); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	util.GetLogger().Info("Migrations applied", zap.Bool("up", up), zap.Int("steps", steps))
	return nil
}

func serve(c *cli.Context) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront")

	tp, err := util.InitTracer("storefront", cfg.Observ.JaegerEndpoint, cfg.Observ.SampleRatio)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	if tp != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Error("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	if c.Bool("migrate") {
		if err := store.Migrate(cfg.Database.URL, true, 0); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	logger.Info("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicChanges, logger)
	defer producer.Close()
	changes := broker.NewChangePublisher(producer, logger)

	blobs, err := blob.NewLocalStore(cfg.Blob.Root, cfg.Blob.PublicBaseURL, cfg.Blob.MaxUploadBytes)
	if err != nil {
		return fmt.Errorf("failed to open blob store: %w", err)
	}

	rates := pricing.DeliveryRates{Dhaka: cfg.Business.DeliveryDhaka, Outside: cfg.Business.DeliveryOutside}
	stats := service.NewStatsProjector(db)
	carts := service.NewCartService(db, redisClient, cfg.Redis.CartTTL)
	services := api.Services{
		Catalog:      service.NewCatalogService(db, blobs, changes, cfg.Business.PageSize),
		Carts:        carts,
		Checkout:     service.NewCheckoutService(db, db, carts, redisClient, orderid.New(), rates, changes),
		CustomOrders: service.NewCustomOrderService(db, blobs, changes, cfg.Blob.MaxUploadBytes),
		Messages:     service.NewMessageService(db, changes),
		Orders: service.NewOrderAdminService(db, stats, changes, report.Shop{
			Name:    cfg.Shop.Name,
			Address: cfg.Shop.Address,
			Phone:   cfg.Shop.Phone,
			Email:   cfg.Shop.Email,
			SiteURL: cfg.Shop.SiteURL,
		}),
	}

	authenticator := auth.New(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Admins, cfg.Auth.Passwords)
	hub := feed.NewHub(logger, allowOrigins(cfg.Server.AllowedOrigins))
	limiter := api.NewRateLimiter(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst)

	checks := map[string]api.ReadinessCheck{
		"postgres": func(ctx context.Context) error { return db.GetDB().PingContext(ctx) },
		"redis":    func(ctx context.Context) error { return redisClient.GetClient().Ping(ctx).Err() },
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Static("/uploads", blobs.Root())
	handler := api.NewHandler(services, authenticator, hub, limiter, cfg.Blob.MaxUploadBytes, checks)
	handler.SetupRoutes(router)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Cart-ID", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-Cart-ID"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           corsHandler.Handler(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicChanges, cfg.Kafka.ConsumerGroup, logger)
	feedWorker := worker.NewChangeFeedWorker(consumer, stats, hub)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		if err := feedWorker.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("change feed worker: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		worker.Every(gctx, time.Minute, limiter.Sweep)
		return nil
	})
	g.Go(func() error {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server forced to shutdown", zap.Error(err))
		}
		if err := feedWorker.Stop(); err != nil {
			logger.Warn("Error stopping change feed worker", zap.Error(err))
		}
		return nil
	})

	err = g.Wait()
	logger.Info("Server exited")
	return err
}

// allowOrigins accepts websocket handshakes from the configured CORS
// origins, and from clients that send no Origin header.
func allowOrigins(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed["*"]
		if !ok {
			_, ok = allowed[origin]
		}
		return ok
	}
}
