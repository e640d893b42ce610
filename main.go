package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"sjsage522/bidsniper/config"
	"sjsage522/bidsniper/internal/browser"
	"sjsage522/bidsniper/internal/diagnostics"
	"sjsage522/bidsniper/internal/model"
	"sjsage522/bidsniper/internal/monitor"
	"sjsage522/bidsniper/logger"
	"sjsage522/bidsniper/services/cache"
	"sjsage522/bidsniper/services/publisher"
	"sjsage522/bidsniper/services/worker"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	tasks, err := cfg.LoadTasks(cfg.TasksFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.TasksFile).Msg("Failed to load tasks")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Int("tasks", len(tasks)).
		Str("event_sink", cfg.EventSink).
		Msg("Starting application")
	warnLiveBids(log, tasks)

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	// Initialize services
	services, err := initializeServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	launcher := browser.NewLauncher(browser.Options{
		RemoteURL: cfg.ChromeRemoteURL,
		ExecPath:  cfg.ChromeExecPath,
		Headless:  cfg.ChromeHeadless,
		Timeout:   cfg.BrowserTimeout,
	})
	defer launcher.Close()

	opts := monitor.DefaultOptions()
	opts.StaleGrace = cfg.StaleGrace
	opts.SyncFailThreshold = cfg.SyncFailThreshold
	opts.MaxSyncReloads = cfg.MaxSyncReloads

	deps := monitor.Deps{
		Dumper:   diagnostics.NewDumper(cfg.DiagnosticsDir, logger.Default.WithField("component", "diagnostics")),
		ClaimTTL: cfg.BidClaimTTL,
		Owner:    owner(),
		Options:  opts,
	}
	if services.Cache != nil {
		deps.Claims = services.Cache
	}

	runner := worker.NewSessionRunner(func() (browser.Browser, error) {
		return launcher.Open()
	}, deps)

	// Create and start worker
	w := worker.NewWorker(ctx, tasks, runner, services.Publisher, logger.ForWorker())

	workerDone := make(chan []model.Outcome, 1)
	go func() {
		log.Info().Msg("Starting bid worker")
		workerDone <- w.Start()
	}()

	// Wait for shutdown signal or all tasks to finish; SIGHUP reloads task settings
	var outcomes []model.Outcome
wait:
	for {
		select {
		case sig := <-sigChan:
			if sig == syscall.SIGHUP {
				reloadTasks(log, cfg, w)
				continue
			}
			log.Info().
				Str("signal", sig.String()).
				Msg("Received shutdown signal")
			cancel()
			outcomes = <-workerDone
			break wait
		case outcomes = <-workerDone:
			log.Info().Msg("Worker exited normally")
			break wait
		}
	}

	for _, o := range outcomes {
		log.Info().
			Str("task", o.TaskID).
			Str("name", o.Name).
			Str("status", string(o.Status)).
			Str("price", model.FormatPrice(o.Price)).
			Msg("Outcome")
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
}

// Services holds all the initialized services
type Services struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
}

// initializeServices initializes the optional claim cache and event sink
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{}

	if cfg.MemcacheAddr != "" {
		cacheService := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := cacheService.Ping(); err != nil {
			logger.Warn("Memcache at %s not reachable, bids proceed unclaimed until it is: %v", cfg.MemcacheAddr, err)
		} else {
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
		}
		services.Cache = cacheService
	}

	pub, err := publisher.New(ctx, publisher.Settings{
		Sink:                 cfg.EventSink,
		RedisAddr:            cfg.RedisAddr,
		RedisDB:              cfg.RedisDB,
		RedisStream:          cfg.RedisStream,
		RedisStreamCount:     cfg.RedisStreamCount,
		RedisStreamMaxLength: cfg.RedisStreamMaxLength,
		NATSURL:              cfg.NATSURL,
		NATSSubject:          cfg.NATSSubject,
		KafkaBrokers:         cfg.KafkaBrokers,
		KafkaTopic:           cfg.KafkaTopic,
	})
	if err != nil {
		return nil, err
	}
	services.Publisher = pub
	if pub != nil {
		logger.Info("Publishing outcomes to %s", cfg.EventSink)
	}

	return services, nil
}

// warnLiveBids logs every task that will place a real bid
func warnLiveBids(log *logger.Logger, tasks []*model.Task) {
	for _, t := range tasks {
		c := t.Config()
		if c.RealBid {
			log.Warn().
				Str("task", t.ID).
				Str("name", c.Name).
				Str("ceiling", model.FormatPrice(c.MaxPrice)).
				Msg("Live bidding enabled")
		}
	}
}

// reloadTasks rereads the task file and applies it to the running tasks
func reloadTasks(log *logger.Logger, cfg *config.Config, w *worker.Worker) {
	tasks, err := cfg.LoadTasks(cfg.TasksFile)
	if err != nil {
		log.Error().Err(err).Str("file", cfg.TasksFile).Msg("Task reload failed, keeping current settings")
		return
	}
	n := w.Reconfigure(tasks)
	log.Info().Int("updated", n).Int("loaded", len(tasks)).Msg("Task settings reloaded")
	warnLiveBids(log, tasks)
}

// owner identifies this process in bid claims
func owner() string {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}
