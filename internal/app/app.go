package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"auction-market/internal/config"
	"auction-market/internal/domain"
	"auction-market/internal/infrastructure/leader"
	"auction-market/internal/infrastructure/memory"
	"auction-market/internal/infrastructure/mysql"
	infraredis "auction-market/internal/infrastructure/redis"
	"auction-market/internal/services"
	"auction-market/pkg/logger"
	"auction-market/pkg/metrics"
	"auction-market/pkg/utils"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
)

// App holds the wired services shared by both binaries.
type App struct {
	Config   *config.Config
	Log      logger.Logger
	Registry *prometheus.Registry

	DB    *sql.DB
	Redis *redis.Client

	Auctions   domain.AuctionRepository
	Publisher  domain.EventPublisher
	Subscriber domain.EventSubscriber
	Leader     domain.LeaderElection

	BidService     *services.BidService
	AuctionManager *services.AuctionManager
	Scheduler      *services.CronAuctionScheduler
}

type stores struct {
	auctions   domain.AuctionRepository
	items      domain.ItemRepository
	ledger     domain.BidLedger
	jobs       domain.SchedulerRepository
	publisher  domain.EventPublisher
	subscriber domain.EventSubscriber
	leader     domain.LeaderElection
}

// New connects the configured backends and wires the services on top of
// them. The memory driver keeps everything in process and needs no Redis
// unless the redis lock driver is selected.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Log:      log,
		Registry: prometheus.NewRegistry(),
	}
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if cfg.Storage.Driver == "mysql" || cfg.Lock.Driver == "redis" {
		if err := a.connectRedis(ctx); err != nil {
			return nil, err
		}
	}

	var st stores
	switch cfg.Storage.Driver {
	case "mysql":
		if err := a.connectMySQL(ctx); err != nil {
			a.Close()
			return nil, err
		}
		st = stores{
			auctions:   mysql.NewMySQLAuctionRepository(a.DB),
			items:      mysql.NewMySQLItemRepository(a.DB),
			ledger:     mysql.NewMySQLBidLedger(a.DB),
			jobs:       mysql.NewMySQLSchedulerRepository(a.DB),
			publisher:  infraredis.NewEventPublisher(a.Redis, cfg.Redis.Channel),
			subscriber: infraredis.NewRedisEventSubscriber(a.Redis, cfg.Redis.Channel, log),
			leader:     leader.NewRedisLeaderElection(a.Redis, cfg.Leader.TTL, log),
		}
	case "memory":
		store := memory.NewStore()
		bus := memory.NewEventBus(log)
		st = stores{
			auctions:   store.Auctions(),
			items:      store.Items(),
			ledger:     store.Ledger(),
			jobs:       memory.NewSchedulerRepository(),
			publisher:  bus,
			subscriber: bus,
			leader:     memory.NewLeaderElection(),
		}
	default:
		return nil, fmt.Errorf("app: unknown storage driver %q", cfg.Storage.Driver)
	}

	var locker domain.ItemLocker
	if cfg.Lock.Driver == "redis" {
		locker = infraredis.NewItemLock(a.Redis, cfg.Lock.TTL, cfg.Lock.RetryInterval, cfg.Lock.WaitTimeout, log)
	} else {
		locker = memory.NewItemLocker()
	}

	a.wire(st, locker)
	log.Info("Application wired", "config", cfg.GetConfigString())
	return a, nil
}

func (a *App) wire(st stores, locker domain.ItemLocker) {
	cfg := a.Config
	m := metrics.NewBiddingMetrics(a.Registry)

	a.Auctions = st.auctions
	a.Publisher = st.publisher
	a.Subscriber = st.subscriber
	a.Leader = st.leader

	validator := services.NewBidValidator(time.Now)
	engine := services.NewProxyEngine(st.items, st.ledger, cfg.Bidding.MaxResolutionRounds, a.Log.With("component", "proxy_engine"))
	a.BidService = services.NewBidService(st.items, st.auctions, st.ledger, locker, st.publisher,
		validator, engine, m, a.Log.With("component", "bid_service"))

	a.Scheduler = services.NewCronAuctionScheduler(st.jobs, cfg.Scheduler.Interval, m, a.Log.With("component", "scheduler"))
	a.AuctionManager = services.NewAuctionManager(
		st.auctions,
		st.items,
		st.ledger,
		locker,
		st.publisher,
		a.Scheduler,
		st.leader,
		cfg.Instance.ID,
		decimal.NewFromFloat(cfg.Bidding.DefaultIncrement),
		a.Log.With("component", "auction_manager"),
	)
	a.Scheduler.SetAuctionManager(a.AuctionManager)
}

func (a *App) connectRedis(ctx context.Context) error {
	a.Redis = redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Address,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.Redis.Ping(pingCtx).Err(); err != nil {
		a.Redis.Close()
		a.Redis = nil
		return fmt.Errorf("connect redis at %s: %w", a.Config.Redis.Address, err)
	}
	a.Log.Info("Connected to Redis", "address", a.Config.Redis.Address)
	return nil
}

func (a *App) connectMySQL(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	db, err := utils.InitializeMysql(pingCtx, a.Config, a.Log)
	if err != nil {
		return err
	}
	a.DB = db

	if a.Config.MySQL.MigrateOnStart {
		if err := mysql.EnsureSchema(ctx, db); err != nil {
			return err
		}
		a.Log.Info("MySQL schema ensured")
	}
	return nil
}

// RunLeaderElection keeps trying to become leader until ctx is done, then
// releases leadership.
func (a *App) RunLeaderElection(ctx context.Context) {
	interval := a.Config.Leader.TTL / 3
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	wasLeader := false
	for {
		became, err := a.Leader.BecomeLeader(ctx, a.Config.Instance.ID)
		switch {
		case err != nil && ctx.Err() == nil:
			a.Log.Error("Failed to attempt leadership", "error", err)
		case became && !wasLeader:
			a.Log.Info("Became auction leader", "instance_id", a.Config.Instance.ID)
		case !became && wasLeader:
			a.Log.Warn("Leadership moved to another instance", "instance_id", a.Config.Instance.ID)
		}
		wasLeader = became

		select {
		case <-ctx.Done():
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := a.Leader.ReleaseLeadership(releaseCtx, a.Config.Instance.ID); err != nil {
				a.Log.Error("Failed to release leadership", "error", err)
			}
			cancel()
			return
		case <-ticker.C:
		}
	}
}

func (a *App) Close() error {
	var errs []error
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close mysql: %w", err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}
