package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/cinema-ticketing/internal/config"
	"github.com/iliyamo/cinema-ticketing/internal/database"
	"github.com/iliyamo/cinema-ticketing/internal/handler"
	"github.com/iliyamo/cinema-ticketing/internal/middleware"
	"github.com/iliyamo/cinema-ticketing/internal/queue"
	"github.com/iliyamo/cinema-ticketing/internal/redisx"
	"github.com/iliyamo/cinema-ticketing/internal/repository"
	"github.com/iliyamo/cinema-ticketing/internal/router"
	"github.com/iliyamo/cinema-ticketing/internal/scheduler"
	"github.com/iliyamo/cinema-ticketing/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	if cfg.Booking.Migrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatalf("db migrate: %v", err)
		}
	}

	// Repositories
	catalog := repository.NewCatalogRepo(db)
	showings := repository.NewShowingRepo(db)
	seatMaps := repository.NewSeatMapRepo(db)
	seats := repository.NewSeatRepo(db)
	reservations := repository.NewReservationRepo(db)
	integrity := service.NewIntegrityMaintainer(repository.NewBackrefRepo(db))

	// Events
	publisher, closePublisher := newPublisher(cfg.Events)
	defer closePublisher()
	if cfg.Events.AuditConsumer && cfg.Events.Broker != config.BrokerNone {
		go runAuditConsumer(ctx, cfg.Events)
	}

	// Services
	opts := []service.Option{
		service.WithHoldTTL(cfg.Booking.HoldTTL),
		service.WithCurrency(cfg.Booking.Currency),
	}
	if publisher != nil {
		opts = append(opts, service.WithPublisher(publisher))
	}
	reservationSvc := service.NewReservationService(reservations, showings, seatMaps, catalog, opts...)
	showingSvc := service.NewShowingService(showings, seatMaps, seats, catalog, integrity)
	seatSvc := service.NewSeatService(seats, catalog, integrity)

	// Background jobs
	var sweepInterval time.Duration
	if cfg.Sweep.Enabled {
		sweepInterval = cfg.Sweep.Interval
	}
	sched, err := scheduler.New(scheduler.Config{
		SweepInterval: sweepInterval,
		SweepBatch:    cfg.Sweep.Batch,
		PruneInterval: cfg.Sweep.PruneInterval,
	}, reservationSvc, integrity)
	if err != nil {
		log.Fatalf("scheduler: %v", err)
	}
	sched.Start()

	// HTTP
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.Logger())

	var (
		idem    handler.IdempotencyStore
		limiter []echo.MiddlewareFunc
		booking echo.MiddlewareFunc
		cache   echo.MiddlewareFunc
	)
	// A nil client must not reach the middleware as a non-nil interface.
	if rdb := config.NewRedisClient(); rdb != nil {
		defer rdb.Close()
		idem = redisx.NewIdempotency(rdb)
		limiter = append(limiter, middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
		booking = middleware.NewTokenBucket(config.LoadBookingRateLimitConfig(), rdb)
		cache = middleware.NewRedisCache(config.LoadCacheConfig(), rdb)
	}

	owner := handler.NewOwnerHandler(showingSvc, seatSvc, reservationSvc)
	router.RegisterRoutes(e, db)
	router.RegisterPublic(e, handler.NewPublicHandler(showings, seatMaps), cache)
	router.RegisterCustomer(e, handler.NewCustomerHandler(reservationSvc, idem), cfg.JWTSecret, booking, limiter...)
	router.RegisterOwner(e, owner, cfg.JWTSecret, limiter...)
	router.RegisterOwnerReservations(e, owner, cfg.JWTSecret)

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if err := sched.Shutdown(); err != nil {
		log.Printf("scheduler shutdown: %v", err)
	}
}

// newPublisher picks the lifecycle event transport.  The returned close
// func is always safe to call.
func newPublisher(cfg config.EventsConfig) (service.EventPublisher, func()) {
	switch cfg.Broker {
	case config.BrokerKafka:
		p := queue.NewKafkaPublisher(cfg.KafkaBrokers, queue.EventsTopic)
		return p, func() {
			if err := p.Close(); err != nil {
				log.Printf("kafka: close writer: %v", err)
			}
		}
	case config.BrokerRabbitMQ:
		return queue.NewAMQPPublisher(cfg.AMQPURL), func() {}
	default:
		return nil, func() {}
	}
}

func runAuditConsumer(ctx context.Context, cfg config.EventsConfig) {
	audit := queue.NewAuditLog(cfg.AuditLogDir)
	switch cfg.Broker {
	case config.BrokerKafka:
		if err := audit.ConsumeKafka(ctx, cfg.KafkaBrokers, cfg.KafkaGroup); err != nil {
			log.Printf("kafka: audit consumer stopped: %v", err)
		}
	case config.BrokerRabbitMQ:
		audit.ConsumeAMQP(ctx, cfg.AMQPURL)
	}
}
