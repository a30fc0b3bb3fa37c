package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4" // Echo web framework
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/ticket-booking-core/internal/config"
	"github.com/iliyamo/ticket-booking-core/internal/database"
	"github.com/iliyamo/ticket-booking-core/internal/handler"
	"github.com/iliyamo/ticket-booking-core/internal/logger"
	"github.com/iliyamo/ticket-booking-core/internal/middleware"
	"github.com/iliyamo/ticket-booking-core/internal/queue"
	"github.com/iliyamo/ticket-booking-core/internal/repository"
	"github.com/iliyamo/ticket-booking-core/internal/repository/memstore"
	"github.com/iliyamo/ticket-booking-core/internal/router"
	"github.com/iliyamo/ticket-booking-core/internal/service"
)

// stores groups the backends selected by DB_DRIVER.
type stores struct {
	users     service.UserStore
	tokens    service.TokenStore
	inventory service.InventoryStore
	bookings  service.BookingStore
	lock      service.ReservationLock
	cache     service.AvailabilityCache
	checks    map[string]handler.Pinger
}

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.Env)
	defer func() { _ = log.Sync() }()

	rdb, err := config.NewRedisClient()
	if err != nil {
		if cfg.DBDriver == config.DriverMySQL {
			log.Fatal("redis unavailable; the seat lock requires it", zap.Error(err))
		}
		log.Warn("redis unavailable; using in-process lock, cache and no rate limit", zap.Error(err))
		rdb = nil
	}

	st, closeDB := openStores(cfg, rdb, log)
	defer closeDB()

	pub := newPublisher(cfg, log)
	defer func() { _ = pub.Close() }()

	bcfg := config.LoadBookingConfig()
	avail := service.NewSeatAvailability(st.inventory, st.cache, bcfg, logger.WithComponent(log, "availability"))
	bookings := service.NewBookingService(st.lock, st.inventory, st.bookings, avail, pub, bcfg, logger.WithComponent(log, "booking"))
	auth := service.NewAuthService(st.users, st.tokens, service.AuthConfig{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
		BcryptCost: cfg.BcryptCost,
		MaxDevices: cfg.MaxDevices,
	}, logger.WithComponent(log, "auth"))

	var limit echo.MiddlewareFunc
	if rdb != nil {
		limit = middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestLogger(log), middleware.Recover(log))
	router.RegisterRoutes(e, st.checks)
	router.RegisterAuth(e, handler.NewAuthHandler(auth), auth)
	router.RegisterBookings(e, handler.NewBookingHandler(bookings, avail), auth, limit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RunConsumer && cfg.EventBroker == "rabbitmq" {
		c := &queue.Consumer{URL: cfg.AMQPURL, Log: log}
		go func() {
			if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("booking consumer stopped", zap.Error(err))
			}
		}()
	}

	addr := ":" + cfg.Port
	go func() {
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("db_driver", cfg.DBDriver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}

// openStores connects the durable store chosen by DB_DRIVER.  MySQL runs
// with the Redis lock and cache; the memory driver keeps everything in
// process unless Redis is reachable.
func openStores(cfg config.Config, rdb *redis.Client, log *zap.Logger) (stores, func()) {
	st := stores{checks: map[string]handler.Pinger{}}
	if rdb != nil {
		st.lock = repository.NewRedisSeatLock(rdb)
		st.cache = repository.NewRedisSeatCache(rdb)
		st.checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	if cfg.DBDriver == config.DriverMemory {
		mem := memstore.New()
		seedDemo(mem)
		st.users, st.tokens, st.inventory, st.bookings = mem, mem, mem, mem
		if st.lock == nil {
			st.lock = memstore.NewLock(nil)
			st.cache = memstore.NewCache(nil)
		}
		return st, func() {}
	}

	db, err := database.Open(database.Options{
		User:            cfg.DBUser,
		Pass:            cfg.DBPass,
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		Name:            cfg.DBName,
		MaxOpenConns:    cfg.DBMaxOpen,
		ConnMaxLifetime: cfg.DBMaxLifetime,
	})
	if err != nil {
		log.Fatal("db connection failed", zap.Error(err))
	}
	if cfg.DBAutoMigrate {
		if err := database.Migrate(db, logger.WithComponent(log, "migrate")); err != nil {
			log.Fatal("migration failed", zap.Error(err))
		}
	}
	st.users = repository.NewUserRepo(db)
	st.tokens = repository.NewTokenRepo(db)
	st.inventory = repository.NewSeatRepo(db)
	st.bookings = repository.NewBookingRepo(db)
	st.checks["mysql"] = db.PingContext
	return st, func() { closeDB(db, log) }
}

func closeDB(db *sql.DB, log *zap.Logger) {
	if err := db.Close(); err != nil {
		log.Warn("db close", zap.Error(err))
	}
}

func newPublisher(cfg config.Config, log *zap.Logger) queue.Publisher {
	switch cfg.EventBroker {
	case "rabbitmq":
		return queue.NewRabbitPublisher(cfg.AMQPURL, log)
	case "kafka":
		return queue.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
	default:
		return queue.NopPublisher{}
	}
}

// seedDemo gives the memory driver one bookable event: venue 1 with a
// ten-seat floor row and two VIP seats.
func seedDemo(s *memstore.Store) {
	s.AddEvent(memstore.Event{ID: 1, VenueID: 1, Name: "Demo Night", BasePriceCents: 5000})
	s.AddSection(memstore.Section{ID: 1, VenueID: 1, Name: "Floor", PriceMultiplierPct: 100})
	s.AddSection(memstore.Section{ID: 2, VenueID: 1, Name: "VIP", PriceMultiplierPct: 150})
	for i := 1; i <= 10; i++ {
		s.AddSeat(memstore.Seat{ID: "FLOOR-A-" + strconv.Itoa(i), SectionID: 1, Row: 1, Number: i, SeatType: "Standard"})
	}
	for i := 1; i <= 2; i++ {
		s.AddSeat(memstore.Seat{ID: "VIP-A-" + strconv.Itoa(i), SectionID: 2, Row: 1, Number: i, SeatType: "VIP"})
	}
}
