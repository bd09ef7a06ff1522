package main

import (
	"context"
	"errors"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/elys-network/yieldbalancer/internal/alerts"
	"github.com/elys-network/yieldbalancer/internal/catalog"
	"github.com/elys-network/yieldbalancer/internal/config"
	"github.com/elys-network/yieldbalancer/internal/engine"
	"github.com/elys-network/yieldbalancer/internal/executor"
	"github.com/elys-network/yieldbalancer/internal/feeds"
	"github.com/elys-network/yieldbalancer/internal/logger"
	"github.com/elys-network/yieldbalancer/internal/notify"
	"github.com/elys-network/yieldbalancer/internal/performance"
	"github.com/elys-network/yieldbalancer/internal/sentiment"
	"github.com/elys-network/yieldbalancer/internal/state"
	"github.com/elys-network/yieldbalancer/internal/strategy"
	"github.com/elys-network/yieldbalancer/internal/web"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// main is the entry point for the yield balancer service.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(cfg.LogLevel, cfg.LogFormat)
	log.Info().Str("mode", cfg.Mode).Str("riskTier", cfg.RiskTier.String()).Msg("Yield balancer starting...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := alerts.NewBus(cfg.AlertBacklog)
	defer bus.Close()

	// --- 2. Persistence (optional) ---
	var store *state.Store
	if cfg.Database.Host != "" {
		store, err = state.Open(ctx, state.DBConfig{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
			SSLMode:  cfg.Database.SSLMode,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Database unavailable; running without persistence")
			store = nil
		} else {
			defer store.Close()
			if err := store.EnsureSchema(ctx); err != nil {
				log.Fatal().Err(err).Msg("Failed to ensure database schema")
			}
		}
	}

	// --- 3. Executor (with Safety Switch) ---
	var manager executor.Manager
	switch cfg.Mode {
	case "live":
		log.Warn().Str("endpoint", cfg.Endpoints.ExecutorGRPC).Msg("Initializing in LIVE mode. Real instructions will be submitted.")
		live, err := executor.DialGRPC(ctx, cfg.Endpoints.ExecutorGRPC)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to executor")
		}
		manager = live
	case "paper":
		log.Info().Float64("startingValue", cfg.PortfolioValue).Msg("Initializing in PAPER mode. Instructions are simulated.")
		paper, err := executor.NewPaperExecutor(cfg.PortfolioValue, cfg.DenomPrecision)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create paper executor")
		}
		manager = paper
	default:
		log.Fatal().Msg("YB_MODE is not set to 'live' or 'paper'. Halting to prevent accidental execution.")
	}
	defer manager.Close()

	// --- 4. Sentiment ---
	sentimentSvc, err := buildSentiment(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize sentiment service")
	}

	// --- 5. Strategies & Performance ---
	trackerCfg := performance.TrackerConfig{
		Benchmark:    performance.StaticBenchmark(cfg.MarketBenchmarkAPY),
		RiskFreeRate: cfg.RiskFreeRate,
	}
	var persister strategy.Persister
	if store != nil {
		trackerCfg.Saver = store
		persister = store
	}
	if cfg.Endpoints.BenchmarkURL != "" {
		trackerCfg.Benchmark = performance.NewHTTPBenchmark(cfg.Endpoints.BenchmarkURL, time.Hour)
	}
	tracker := performance.NewTracker(trackerCfg)
	registry := strategy.NewRegistry(persister)
	if store != nil {
		if err := registry.Restore(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to restore strategies")
		}
		ids := []string{engine.PortfolioStrategyID}
		for _, s := range registry.List() {
			ids = append(ids, s.ID)
		}
		for _, id := range ids {
			points, err := store.LoadPerformancePoints(ctx, id)
			if err != nil {
				log.Error().Err(err).Str("strategy_id", id).Msg("Failed to load performance history")
				continue
			}
			tracker.Seed(id, points)
		}
	}

	selector, err := strategy.NewSelector(strategy.DefaultSelectorConfig(cfg.DefensiveMix, cfg.EmergencyThreshold))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create strategy selector")
	}

	// --- 6. Engine ---
	pools := catalog.New(bus)
	policy := config.NewPolicy(cfg.RiskTier).WithPreferredAssets(cfg.PreferredAssets)

	engineCfg := engine.Config{
		Sentiment:  sentimentSvc,
		Catalog:    pools,
		Selector:   selector,
		Strategies: registry,
		Manager:    manager,
		Tracker:    tracker,
		Alerts:     bus,
		Policy:     policy,
		Denom:      cfg.PortfolioDenom,
		Precision:  cfg.DenomPrecision,
	}
	if store != nil {
		engineCfg.Store = store
	}
	if u := cfg.Endpoints.PriceHistoryURL; u != "" {
		watcher, err := feeds.NewPriceWatcher(feeds.NewHTTPPriceSource(u, cfg.Endpoints.SourceRPS), 24*time.Hour)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create price watcher")
		}
		engineCfg.Volatility = watcher
		engineCfg.VolatileInterval = cfg.VolatileInterval
		engineCfg.VolatilityThreshold = cfg.PriceVolatilityThreshold
	}
	if cfg.AutoRiskAdjust {
		engineCfg.RiskAdjust = &engine.RiskAdjustConfig{
			RaiseAboveAPY: cfg.RiskRaiseAPY,
			LowerBelowAPY: cfg.RiskLowerAPY,
		}
	}
	eng, err := engine.New(engineCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create engine")
	}

	webCfg := web.Config{
		Port:        cfg.WebPort,
		Catalog:     pools,
		Sentiment:   sentimentSvc,
		Strategies:  registry,
		Performance: tracker,
		Alerts:      bus,
		Cycles:      eng,
	}
	if store != nil {
		webCfg.Store = store
	}
	server, err := web.NewServer(webCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create web server")
	}

	// --- 7. Background loops ---
	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Str("loop", name).Msg("Background loop stopped")
			}
		}()
	}

	if cfg.Endpoints.PoolsURL != "" {
		feed, err := feeds.NewPoolFeed(
			feeds.NewHTTPPoolSource(cfg.Endpoints.PoolsURL, cfg.Endpoints.SourceRPS),
			pools,
			feeds.RetryConfig{Interval: cfg.FeedInterval, RetryDelay: cfg.FeedRetryDelay, MaxRetries: cfg.FeedMaxRetries},
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create pool feed")
		}
		// the first poll runs before the engine so that cycle one sees pools
		if err := feed.Poll(ctx); err != nil {
			log.Warn().Err(err).Msg("Initial pool poll failed")
		}
		run("pool_feed", feed.Run)
	} else {
		log.Warn().Msg("YB_POOLS_URL is empty; the catalog stays empty and no trades are made")
	}

	monitor := sentiment.NewThresholdMonitor(sentiment.MonitorConfig{
		Interval:  cfg.MonitorInterval,
		Threshold: cfg.SentimentThreshold,
		ChangePct: cfg.SignificantChangePct,
	}, sentimentSvc, bus)
	run("sentiment_monitor", monitor.Run)

	if cfg.Endpoints.TelegramBotToken != "" {
		notifier, err := notify.NewTelegramNotifier(cfg.Endpoints.TelegramBotToken, cfg.Endpoints.TelegramChatID)
		if err != nil {
			log.Error().Err(err).Msg("Telegram notifier disabled")
		} else {
			sub := bus.Subscribe()
			run("telegram", func(ctx context.Context) error {
				defer sub.Unsubscribe()
				notifier.Run(ctx, sub.C())
				return nil
			})
		}
	}

	run("web", server.Start)

	// --- 8. Main loop ---
	log.Info().Str("interval", cfg.LoopInterval.String()).Msg("Starting engine main loop")
	eng.RunLoop(ctx, cfg.LoopInterval)

	stop()
	wg.Wait()
	log.Info().Msg("Yield balancer stopped")
}

// buildSentiment wires the configured HTTP sources, the history store and the
// fallback chain into one service. Sources with no URL are left out.
func buildSentiment(ctx context.Context, cfg *config.AppConfig) (*sentiment.Service, error) {
	rps := cfg.Endpoints.SourceRPS
	var social, news sentiment.WeightedSource
	var blend []sentiment.WeightedSource
	if u := cfg.Endpoints.SocialURL; u != "" {
		social = sentiment.WeightedSource{Source: sentiment.NewHTTPSource(sentiment.SourceSocial, u, rps), Weight: config.SocialWeight}
		blend = append(blend, social)
	}
	if u := cfg.Endpoints.NewsURL; u != "" {
		news = sentiment.WeightedSource{Source: sentiment.NewHTTPSource(sentiment.SourceNews, u, rps), Weight: config.NewsWeight}
		blend = append(blend, news)
	}
	if u := cfg.Endpoints.OnchainURL; u != "" {
		blend = append(blend, sentiment.WeightedSource{Source: sentiment.NewHTTPSource(sentiment.SourceOnchain, u, rps), Weight: config.OnchainWeight})
	}
	aggregator, err := sentiment.NewAggregator(blend...)
	if err != nil {
		return nil, err
	}

	var history sentiment.HistoryStore = sentiment.NewMemoryHistory(0)
	if cfg.Endpoints.RedisAddr != "" {
		rdb, err := sentiment.ConnectRedis(ctx, cfg.Endpoints.RedisAddr, cfg.Endpoints.RedisPassword, cfg.Endpoints.RedisDB)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable; keeping sentiment history in memory")
		} else {
			history = sentiment.NewRedisHistory(rdb, 0)
		}
	}

	fallback, err := sentiment.NewFallbackChain(sentiment.FallbackConfig{
		Social:           social,
		News:             news,
		History:          history,
		MinSocialSamples: cfg.MinSocialSamples,
		Window:           cfg.HistoryWindow,
	})
	if err != nil {
		return nil, err
	}

	var probe sentiment.Probe
	if u := cfg.Endpoints.PipelineHealthURL; u != "" {
		probe = sentiment.NewHTTPProbe(u)
	}

	return sentiment.NewService(sentiment.ServiceConfig{
		Aggregator:    aggregator,
		Fallback:      fallback,
		Probe:         probe,
		History:       history,
		MinConfidence: cfg.MinConfidence,
	})
}
