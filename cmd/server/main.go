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
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/showtime-booking/internal/config"
	"github.com/iliyamo/showtime-booking/internal/database"
	"github.com/iliyamo/showtime-booking/internal/handler"
	"github.com/iliyamo/showtime-booking/internal/logger"
	"github.com/iliyamo/showtime-booking/internal/middleware"
	"github.com/iliyamo/showtime-booking/internal/queue"
	"github.com/iliyamo/showtime-booking/internal/realtime"
	"github.com/iliyamo/showtime-booking/internal/repository"
	"github.com/iliyamo/showtime-booking/internal/router"
	"github.com/iliyamo/showtime-booking/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()
	cfg := config.Load()

	lg, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()
	zap.ReplaceGlobals(lg)

	if err := run(cfg, lg); err != nil {
		lg.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.Settings{
		User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig())
	var holdStore service.HoldStore
	switch {
	case err == nil:
		defer rdb.Close()
		holdStore = repository.NewRedisHoldStore(rdb)
	case cfg.IsProd():
		return err
	default:
		lg.Warn("redis unavailable, using in-process hold store; rate limiting and caching disabled", zap.Error(err))
		holdStore = repository.NewMemoryHoldStore()
	}

	showtimeRepo := repository.NewShowtimeRepo(db)
	roomRepo := repository.NewRoomRepo(db)
	bookingRepo := repository.NewBookingRepo(db)

	hub := realtime.NewHub(realtime.WithLogger(lg))
	holds := service.NewHoldManager(holdStore, showtimeRepo, hub,
		service.WithHoldTTL(cfg.HoldTTL), service.WithHoldLogger(lg))
	bookings := service.NewBookingService(holds, showtimeRepo, roomRepo, bookingRepo, hub,
		service.WithBookingTTL(cfg.BookingTTL), service.WithMaxSeats(cfg.MaxSeatsPerBooking),
		service.WithBookingLogger(lg))
	showtimes := service.NewShowtimeService(roomRepo, showtimeRepo, showtimeRepo, holds)

	publisher := queue.NewPublisher(cfg.RabbitURL, lg)
	defer publisher.Close()
	reconciler := service.NewPaymentReconciler(bookingRepo, holds, hub, publisher, lg)
	sweeper := service.NewExpirySweeper(bookingRepo, holds, hub, cfg.ExpirySweepInterval, lg)

	auditLog, closeAudit, err := logger.NewFile("logs/booking.log")
	if err != nil {
		return err
	}
	defer func() { _ = closeAudit() }()
	consumer := queue.NewConsumer(cfg.RabbitURL, lg, auditLog)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(lg))

	checks := map[string]handler.Check{"mysql": db.PingContext}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	showtimeHandler := handler.NewShowtimeHandler(showtimes, lg)
	router.RegisterRoutes(e, handler.NewHealthHandler(checks), handler.NewPaymentHandler(reconciler, cfg.WebhookToken, lg))
	router.RegisterPublic(e, showtimeHandler, middleware.NewRedisCache(config.LoadCacheConfig(), rdb, lg))
	router.RegisterOwner(e, showtimeHandler, cfg.JWTSecret)
	router.RegisterCustomer(e, router.CustomerHandlers{
		Holds:    handler.NewHoldHandler(holds, lg),
		Bookings: handler.NewBookingHandler(bookings, lg),
		WS:       handler.NewWSHandler(hub, holds, bookings, cfg.ReleaseOnDisconnect, lg),
	}, cfg.JWTSecret, middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, lg))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { hub.Run(gctx); return nil })
	g.Go(func() error { sweeper.Run(gctx); return nil })
	g.Go(func() error {
		if err := consumer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		addr := ":" + cfg.Port
		lg.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
