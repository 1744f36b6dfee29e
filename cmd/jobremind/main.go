package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/flycast-tech/jobremind/internal/analytics"
	"github.com/flycast-tech/jobremind/internal/api"
	"github.com/flycast-tech/jobremind/internal/config"
	"github.com/flycast-tech/jobremind/internal/cron"
	"github.com/flycast-tech/jobremind/internal/dispatcher"
	"github.com/flycast-tech/jobremind/internal/domain"
	"github.com/flycast-tech/jobremind/internal/engine"
	"github.com/flycast-tech/jobremind/internal/logsink"
	"github.com/flycast-tech/jobremind/internal/metrics"
	"github.com/flycast-tech/jobremind/internal/runlock"
	"github.com/flycast-tech/jobremind/internal/scheduler"
	"github.com/flycast-tech/jobremind/internal/store/postgres"
	"github.com/flycast-tech/jobremind/internal/sweep"

	_ "github.com/lib/pq"
)

// runLockAdapter adapts internal/runlock.Lock to the scheduler.Locker interface.
type runLockAdapter struct {
	lock *runlock.Lock
}

func (a *runLockAdapter) Acquire(ctx context.Context) (scheduler.Lease, bool, error) {
	lease, ok, err := a.lock.Acquire(ctx)
	if err != nil || !ok {
		return nil, ok, err
	}
	return lease, true, nil
}

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`jobremind - production deadline reminder service

Usage:
  jobremind <command>

Commands:
  serve      Start the reminder scheduler and API
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  version    Print version information

Environment Variables:
  DATABASE_URL              PostgreSQL connection string (required)
  REDIS_ADDR                Redis address for reminder counters (optional)
  HTTP_ADDR                 HTTP server address (default: ":8080")
  POLL_SCHEDULE             Reminder poll cadence, five-field cron (default: "*/5 * * * *")

  DB_OP_TIMEOUT             Database operation timeout (default: "5s")
  DB_MAX_OPEN_CONNS         Max open database connections (default: "25")
  DB_MAX_IDLE_CONNS         Max idle database connections (default: "5")
  DB_CONN_MAX_LIFETIME      Max connection lifetime (default: "30m")
  DB_CONN_MAX_IDLE_TIME     Max connection idle time (default: "5m")

  HTTP_SHUTDOWN_TIMEOUT     Graceful HTTP shutdown timeout (default: "10s")

  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")
  METRICS_PORT              Metrics server port (default: "9090")

  SWEEP_ENABLED             Enable the missed-reminder sweep (default: "true")
  SWEEP_INTERVAL            How often the sweep runs (default: "1h")

  DISCORD_WEBHOOK_URL       Discord webhook for run events (optional)

  SMTP_HOST                 SMTP server host (default: "smtp.gmail.com")
  SMTP_PORT                 SMTP server port (default: "587")
  REMINDER_TO_EMAIL         Digest recipient fallback (optional)
  REMINDER_FROM_EMAIL       SMTP sender fallback (optional)
  REMINDER_FROM_PASSWORD    SMTP password fallback (optional)

  OVERDUE_MILESTONES        Overdue day marks (default: "2,5,8")
  REMINDER_WINDOW_HOUR      Morning send window hour, civil time, 1-23 (default: "9")
  RUN_LOCK_KEY              Advisory lock key shared by all instances`)
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		return exitRuntimeError
	}
	defer db.Close()

	// Configure connection pool
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	log.Printf("jobremind: db pool configured (max_open=%d, max_idle=%d, max_lifetime=%s, max_idle_time=%s)",
		cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		return exitRuntimeError
	}

	store := postgres.New(db, cfg.DBOpTimeout)

	eng := engine.New(engine.Config{
		Milestones: cfg.Milestones,
		WindowHour: cfg.ReminderWindowHour,
	})

	// Initialize metrics sink (optional)
	var metricsSink *metrics.PrometheusSink
	var metricsServer *http.Server

	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("jobremind: metrics enabled (port=%s, path=%s)", cfg.MetricsPort, cfg.MetricsPath)

		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.MetricsPath, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    ":" + cfg.MetricsPort,
			Handler: metricsMux,
		}
		go func() {
			log.Printf("jobremind: metrics server listening on :%s", cfg.MetricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("jobremind: metrics server error: %v", err)
			}
		}()
	} else {
		log.Println("jobremind: METRICS_ENABLED not set; metrics disabled")
	}

	// The stored per-user email config wins; env credentials back it up.
	mailSender := dispatcher.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort)
	envEmailConfig := domain.EmailConfig{
		ToEmail:      cfg.ReminderToEmail,
		FromEmail:    cfg.ReminderFromEmail,
		FromPassword: cfg.ReminderFromPassword,
	}
	envEmailConfig.Configured = envEmailConfig.Complete()
	emailSource := dispatcher.FallbackEmailConfig{
		Primary:   store,
		Secondary: dispatcher.StaticEmailConfig{Config: envEmailConfig},
	}

	coord := dispatcher.New(eng, store, mailSender, emailSource)
	if metricsSink != nil {
		coord = coord.WithMetrics(metricsSink)
	}

	// Wire analytics if Redis is configured
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		sink := analytics.NewRedisSink(redisClient, cfg.AnalyticsRetention)
		coord = coord.WithAnalytics(sink)
		log.Printf("jobremind: analytics enabled (redis=%s)", cfg.RedisAddr)
	} else {
		log.Println("jobremind: REDIS_ADDR not set; analytics disabled")
	}

	schedule, err := cron.NewParser().Parse(cfg.PollSchedule)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid poll schedule: %v\n", err)
		return exitInvalidConfig
	}

	sched := scheduler.New(store, coord, schedule).
		WithLocker(&runLockAdapter{lock: runlock.New(db, cfg.RunLockKey)})
	if metricsSink != nil {
		sched = sched.WithMetrics(metricsSink)
	}

	if cfg.DiscordWebhookURL != "" {
		sched = sched.WithLogSink(logsink.NewDiscordSink(cfg.DiscordWebhookURL))
		log.Println("jobremind: discord log sink enabled")
	} else {
		sched = sched.WithLogSink(logsink.NewStdSink())
		log.Println("jobremind: DISCORD_WEBHOOK_URL not set; logging run events locally")
	}

	var sweeper *sweep.Sweeper
	if cfg.SweepEnabled {
		sweeper = sweep.New(sweep.Config{Interval: cfg.SweepInterval}, eng, store, coord)
		if metricsSink != nil {
			sweeper = sweeper.WithMetrics(metricsSink)
		}
	} else {
		log.Println("jobremind: SWEEP_ENABLED=false; missed-reminder sweep disabled")
	}

	apiHandler := api.NewHandler(store, sched, coord).WithHealthChecker(db)
	if sweeper != nil {
		apiHandler = apiHandler.WithSweeper(sweeper)
	}

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: apiHandler,
	}

	go func() {
		log.Printf("jobremind: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("jobremind: http server error: %v", err)
		}
	}()

	// Separate contexts for the scheduler and sweep to enable ordered shutdown.
	schedulerCtx, cancelScheduler := context.WithCancel(context.Background())
	var schedulerWg sync.WaitGroup

	schedulerWg.Add(1)
	go func() {
		defer schedulerWg.Done()
		_ = sched.Run(schedulerCtx)
	}()

	var sweepWg sync.WaitGroup
	var cancelSweep context.CancelFunc
	if sweeper != nil {
		var sweepCtx context.Context
		sweepCtx, cancelSweep = context.WithCancel(context.Background())
		sweepWg.Add(1)
		go func() {
			defer sweepWg.Done()
			sweeper.Run(sweepCtx)
		}()
		log.Printf("jobremind: sweep enabled (interval=%s)", cfg.SweepInterval)
	}

	log.Printf("jobremind: started (schedule=%q, http=%s)", cfg.PollSchedule, cfg.HTTPAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("jobremind: received signal %v, shutting down", received)

	// Phase 1: Stop the scheduler (no new reminder runs)
	log.Println("jobremind: stopping scheduler...")
	cancelScheduler()
	schedulerWg.Wait()
	log.Println("jobremind: scheduler stopped")

	// Phase 2: Stop the sweep
	if cancelSweep != nil {
		log.Println("jobremind: stopping sweep...")
		cancelSweep()
		sweepWg.Wait()
		log.Println("jobremind: sweep stopped")
	}

	// Phase 3: Stop HTTP server with graceful shutdown
	log.Println("jobremind: stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("jobremind: http server shutdown error: %v", err)
	}
	log.Println("jobremind: http server stopped")

	// Phase 4: Stop metrics server if running
	if metricsServer != nil {
		log.Println("jobremind: stopping metrics server...")
		metricsShutdownCtx, metricsShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer metricsShutdownCancel()
		if err := metricsServer.Shutdown(metricsShutdownCtx); err != nil {
			log.Printf("jobremind: metrics server shutdown error: %v", err)
		}
		log.Println("jobremind: metrics server stopped")
	}

	log.Println("jobremind: stopped")
	return exitSuccess
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("jobremind version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
