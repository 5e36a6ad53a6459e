package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fjod/pawmart/internal/auth"
	"github.com/fjod/pawmart/internal/cache"
	"github.com/fjod/pawmart/internal/config"
	"github.com/fjod/pawmart/internal/consumer"
	pawgrpc "github.com/fjod/pawmart/internal/grpc"
	apihttp "github.com/fjod/pawmart/internal/http"
	"github.com/fjod/pawmart/internal/live"
	"github.com/fjod/pawmart/internal/metrics"
	"github.com/fjod/pawmart/internal/payment"
	"github.com/fjod/pawmart/internal/publisher"
	"github.com/fjod/pawmart/internal/repository"
	"github.com/fjod/pawmart/internal/service"
)

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var skipMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, gRPC health, outbox poller and order events consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := rootOpts.setup()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, log, !skipMigrations)
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply migrations on startup")
	return cmd
}

func newRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

func runServe(ctx context.Context, cfg *config.Config, log *slog.Logger, migrate bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	repo, err := repository.NewRepository(ctx, &cfg.DB)
	if err != nil {
		return err
	}
	defer repo.Close()
	if migrate {
		if err := repo.RunMigrations(&cfg.DB); err != nil {
			return err
		}
	}
	log.Info("connected to postgres", slog.String("host", cfg.DB.Host))

	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return err
	}
	defer mongoDB.Client().Disconnect(context.Background())
	community := repository.NewCommunityRepository(mongoDB)
	if err := community.CreateIndexes(ctx); err != nil {
		return err
	}
	log.Info("connected to mongodb", slog.String("database", cfg.MongoDB))

	redisClient, err := newRedisClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	views := cache.NewTagCache(redisClient, cfg.CatalogTTL)
	cartCache := cache.NewRedisCartCache(redisClient)

	m := metrics.New()
	gateway := payment.NewClient(payment.ClientConfig{
		BaseURL:    cfg.PaymentGatewayURL,
		APIKey:     cfg.PaymentAPIKey,
		SuccessURL: cfg.PaymentSuccessURL,
		CancelURL:  cfg.PaymentCancelURL,
		Timeout:    cfg.PaymentTimeout,
	}, log)

	catalogSvc := service.NewCatalogService(repo, views, log)
	ratingSvc := service.NewRatingService(repo, views, log)
	cartSvc := service.NewCartService(repo, repo, cartCache, log)
	orderSvc := service.NewOrderService(repo, views, log)
	communitySvc := service.NewCommunityService(community, log)
	checkoutSvc := service.NewCheckoutService(repo, repo, gateway, views, cartCache, m, service.CheckoutConfig{
		Currency:         cfg.Currency,
		AllowBackorder:   cfg.AllowBackorder,
		WebhookSecret:    cfg.PaymentWebhookSecret,
		WebhookTolerance: cfg.WebhookTolerance,
	}, log)

	hub := live.NewHub(log)
	router := apihttp.NewRouter(apihttp.RouterConfig{
		Catalog:        catalogSvc,
		Ratings:        ratingSvc,
		Carts:          cartSvc,
		Checkout:       checkoutSvc,
		Orders:         orderSvc,
		Community:      communitySvc,
		Tokens:         auth.NewTokens(cfg.JWTSecret),
		LiveFeed:       hub.ServeWS,
		Metrics:        m.Handler(),
		MetricsMW:      m.Middleware,
		RequestTimeout: cfg.RequestTimeout,
		Log:            log,
	})
	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	reporter := pawgrpc.NewHealthReporter(cfg.HealthCheckInterval, log,
		pawgrpc.Check{Name: "postgres", Ping: repo.Ping},
		pawgrpc.Check{Name: "redis", Ping: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		pawgrpc.Check{Name: "mongodb", Ping: community.Ping},
	)
	grpcServer := pawgrpc.NewServer(reporter)
	grpcListener, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen on grpc port: %w", err)
	}

	poller := publisher.NewOutboxPoller(repo, publisher.NewKafkaWriter(cfg.KafkaTopic, cfg.KafkaBrokers...),
		cfg.OutboxInterval, cfg.OutboxBatch, m, log)
	defer poller.Close()
	orderEvents := consumer.NewOrderEventsConsumer(community, hub,
		consumer.NewKafkaReader(cfg.KafkaTopic, cfg.KafkaGroupID, cfg.KafkaBrokers...), log)
	defer orderEvents.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server listening", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Info("grpc server listening", slog.String("addr", grpcListener.Addr().String()))
		if err := grpcServer.Serve(grpcListener); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		reporter.Run(gctx)
		return nil
	})
	g.Go(func() error {
		poller.Run(gctx)
		return nil
	})
	g.Go(func() error {
		orderEvents.Run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		reporter.Shutdown()
		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGraceDuration)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("pawmart stopped")
	return nil
}
