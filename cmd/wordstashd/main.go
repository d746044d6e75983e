// wordstashd is the local daemon behind the WordStash collection UI.
// It owns the SQLite database, schedules reviews, serves the HTTP API
// on localhost and keeps the remote progress copy in sync.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/joho/godotenv"

	"github.com/wordstash/wordstash/internal/bus"
	"github.com/wordstash/wordstash/internal/clock"
	"github.com/wordstash/wordstash/internal/db"
	"github.com/wordstash/wordstash/internal/dictionary"
	"github.com/wordstash/wordstash/internal/logging"
	"github.com/wordstash/wordstash/internal/services"
	syncpkg "github.com/wordstash/wordstash/internal/sync"
	"github.com/wordstash/wordstash/internal/sync/scheduler"
)

func main() {
	// .env is optional; real deployments use environment variables.
	godotenv.Load()

	cfg := loadConfig()
	log := logging.New(os.Stderr, logging.ParseLevel(cfg.logLevel))

	if err := run(cfg, log); err != nil {
		log.Error("daemon exited", err)
		os.Exit(1)
	}
}

type config struct {
	dataDir       string
	port          int
	logLevel      string
	dictionaryURL string
	remoteSyncURL string
	syncAccount   string
	quizTTL       time.Duration
	sweepInterval time.Duration
	syncDebounce  time.Duration
}

func loadConfig() config {
	return config{
		dataDir:       envOrDefault("WORDSTASH_DATA_DIR", defaultDataDir()),
		port:          envIntOrDefault("WORDSTASH_PORT", 7312),
		logLevel:      envOrDefault("WORDSTASH_LOG_LEVEL", "info"),
		dictionaryURL: envOrDefault("WORDSTASH_DICTIONARY_URL", "https://api.dictionaryapi.dev/api/v2/entries/en"),
		remoteSyncURL: os.Getenv("WORDSTASH_SYNC_URL"),
		syncAccount:   os.Getenv("WORDSTASH_SYNC_ACCOUNT"),
		quizTTL:       envDurationOrDefault("WORDSTASH_QUIZ_TTL", 24*time.Hour),
		sweepInterval: envDurationOrDefault("WORDSTASH_SWEEP_INTERVAL", time.Hour),
		syncDebounce:  envDurationOrDefault("WORDSTASH_SYNC_DEBOUNCE", 2*time.Second),
	}
}

func run(cfg config, log *logging.Logger) error {
	database, err := db.Open(cfg.dataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	migrator := db.NewMigrator(database)
	if err := migrator.Up(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	clk := clock.System
	eventBus := bus.New(clk, log)
	words := db.NewWordStore(database, clk, log)
	reviews := db.NewReviewStore(database, clk, log)
	quizzes := db.NewQuizStore(database, clk, log)
	engine := syncpkg.NewEngine(words, reviews, clk, log)
	dict := dictionary.NewClient(cfg.dictionaryURL, log)

	var (
		remoteSync *services.RemoteSyncService
		debouncer  *scheduler.Debouncer
	)
	if cfg.remoteSyncURL != "" && cfg.syncAccount != "" {
		remote := syncpkg.NewHTTPRemote(cfg.remoteSyncURL, log)
		remoteSync = services.NewRemoteSyncService(remote, reviews, engine, cfg.syncAccount, 0, eventBus, clk, log)
		debouncer = scheduler.NewDebouncer(func(ctx context.Context) error {
			_, err := remoteSync.Run(ctx)
			return err
		}, cfg.syncDebounce, log)
		defer debouncer.Stop()
	} else {
		log.Info("remote sync disabled, set WORDSTASH_SYNC_URL and WORDSTASH_SYNC_ACCOUNT to enable")
	}

	notify := func() {
		if debouncer != nil {
			debouncer.Notify()
		}
	}

	collect := services.NewCollectService(services.CollectConfig{
		Words:   words,
		Reviews: reviews,
		Dict:    dict,
		Bus:     eventBus,
		Changed: notify,
		Clock:   clk,
		Logger:  log,
	})
	backup := services.NewBackupService(words, reviews, engine, eventBus, clk, log)
	quiz := services.NewQuizService(reviews, quizzes, engine, cfg.quizTTL, clk, log)

	hub := newWSHub(log)
	hub.BridgeBus(eventBus)

	// Expired quiz sessions are cleaned up on a fixed interval.
	cron := gocron.NewScheduler(time.UTC)
	cron.Every(cfg.sweepInterval).Do(func() {
		if n, err := quiz.Sweep(); err != nil {
			log.Error("quiz sweep failed", err)
		} else if n > 0 {
			log.Info("quiz sweep removed expired sessions", map[string]interface{}{"count": n})
		}
	})
	cron.StartAsync()
	defer cron.Stop()

	srv := &server{
		collect: collect,
		backup:  backup,
		quiz:    quiz,
		sync:    remoteSync,
		words:   words,
		reviews: reviews,
		hub:     hub,
		notify:  notify,
		clk:     clk,
		log:     log,
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.port),
		Handler:      srv.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", map[string]interface{}{"addr": httpServer.Addr})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info("shutting down", map[string]interface{}{"signal": sig.String()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".wordstash"
	}
	return home + "/.wordstash"
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDurationOrDefault(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
