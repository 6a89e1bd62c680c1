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

	"live-commerce/config"
	"live-commerce/internal/api"
	"live-commerce/internal/broker"
	"live-commerce/internal/models"
	"live-commerce/internal/notify"
	"live-commerce/internal/payment"
	"live-commerce/internal/realtime"
	"live-commerce/internal/redisclient"
	"live-commerce/internal/service"
	"live-commerce/internal/store"
	"live-commerce/internal/util"
	"live-commerce/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const serviceName = "live-commerce"

func main() {
	app := &cli.App{
		Name:  serviceName,
		Usage: "live-commerce order reservation service",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the HTTP API and background workers",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "migrate",
						Usage:   "apply pending migrations before starting",
						EnvVars: []string{"AUTO_MIGRATE"},
					},
				},
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "manage the database schema",
				Subcommands: []*cli.Command{
					{
						Name:   "up",
						Usage:  "apply all pending migrations",
						Action: migrateUp,
					},
					{
						Name:   "down",
						Usage:  "roll back every migration",
						Action: migrateDown,
					},
				},
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("%s: %v", serviceName, err)
	}
}

func migrateUp(*cli.Context) error {
	cfg := config.Load()
	if err := store.Migrate(cfg.Database.URL); err != nil {
		return err
	}
	log.Println("Migrations applied")
	return nil
}

func migrateDown(*cli.Context) error {
	cfg := config.Load()
	if err := store.MigrateDown(cfg.Database.URL); err != nil {
		return err
	}
	log.Println("Migrations rolled back")
	return nil
}

func serve(c *cli.Context) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting live-commerce service")

	tp, err := util.InitTracer(serviceName, cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Warn("Failed to initialize tracer, continuing without tracing", zap.Error(err))
	}
	if tp != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				logger.Warn("Error shutting down tracer", zap.Error(err))
			}
		}()
	}

	if c.Bool("migrate") {
		if err := store.Migrate(cfg.Database.URL); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	logger.Info("Database connected")

	// Interfaces stay nil, not typed-nil pointers, when Redis is down.
	var (
		lockBackend service.LockBackend
		expiryIndex worker.ExpiryIndex
	)
	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Warn("Redis unavailable, inventory locking disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
		lockBackend = redisClient
		expiryIndex = redisClient
		logger.Info("Redis connected")
	}

	lock := service.NewInventoryLock(lockBackend, cfg.Business.LockTTL, cfg.Business.ReminderLead)

	sender := notify.NewGupshupSender(cfg.WhatsApp)
	if sender.Mock() {
		logger.Warn("No WhatsApp API key configured, messages are mocked")
	}
	notifier := notify.NewNotifier(sender, db, cfg.Business.CODCharge, cfg.Business.LockTTL)

	issuer := payment.NewRazorpayClient(cfg.Payment, cfg.Server.PublicBaseURL)
	if issuer.Mock() {
		logger.Warn("No Razorpay keys configured, payment links are mocked")
	}

	hub := realtime.NewHub()
	defer hub.Close()

	var followUp *service.FollowUpService
	var (
		publisher  service.EventPublisher
		dispatcher *worker.LocalDispatcher
		producer   *broker.Producer
	)
	switch cfg.Business.DispatchMode {
	case config.DispatchKafka:
		producer = broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)
		logger.Info("Follow-ups dispatched through Kafka", zap.String("topic", cfg.Kafka.TopicOrder))
	default:
		dispatcher = worker.NewLocalDispatcher(worker.FollowUpFunc(func(ctx context.Context, event *models.OrderCreatedEvent) error {
			return followUp.HandleOrderCreated(ctx, event)
		}), cfg.Business.DispatchWorkers, 1024)
		publisher = dispatcher
		logger.Info("Follow-ups dispatched in process", zap.Int("workers", cfg.Business.DispatchWorkers))
	}

	orderService := service.NewOrderService(db, db, db, lock, publisher, notifier, cfg.Business.StockPolicy)
	sessionService := service.NewSessionService(db, db, db, hub)
	paymentService := service.NewPaymentService(db, db, db, issuer, notifier, lock, publisher,
		cfg.Payment.RazorpayWebhookSecret, cfg.Business.StockPolicy)
	followUp = service.NewFollowUpService(db, db, paymentService, notifier)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(orderService, sessionService, paymentService, db, hub, cfg.Server.DefaultSellerID)
	handler.AddReadinessCheck("postgres", db.Ping)
	handler.AddReadinessCheck("inventory_lock", api.LockCheck(lock))
	if redisClient != nil {
		handler.AddReadinessCheck("redis", redisClient.Ping)
	}
	handler.SetupRoutes(router, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

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
			logger.Warn("Server forced to shutdown", zap.Error(err))
		}
		if dispatcher != nil {
			dispatcher.Stop()
		}
		return nil
	})

	if dispatcher != nil {
		dispatcher.Start()
	}

	if cfg.Business.DispatchMode == config.DispatchKafka {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
		followUpWorker := worker.NewFollowUpWorker(consumer, followUp)
		g.Go(func() error {
			defer followUpWorker.Stop()
			if err := followUpWorker.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("follow-up worker: %w", err)
			}
			return nil
		})
	}

	if expiryIndex != nil {
		sweeper := worker.NewExpirySweeper(expiryIndex, db, db, notifier, cfg.Business.ExpirySweepInterval)
		g.Go(func() error {
			return sweeper.Run(gctx)
		})
	} else {
		logger.Warn("Expiry sweeper disabled, no lock store available")
	}

	err = g.Wait()
	logger.Info("Server exited")
	return err
}
