package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/augustodasneves/supportagent/internal/accounts"
	"github.com/augustodasneves/supportagent/internal/anonymize"
	"github.com/augustodasneves/supportagent/internal/api"
	"github.com/augustodasneves/supportagent/internal/convstore"
	"github.com/augustodasneves/supportagent/internal/flow"
	"github.com/augustodasneves/supportagent/internal/history"
	"github.com/augustodasneves/supportagent/internal/intent"
	"github.com/augustodasneves/supportagent/internal/messaging"
	"github.com/augustodasneves/supportagent/internal/queue"
	"github.com/augustodasneves/supportagent/internal/util"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for support agent state data
	DefaultStateDir = "/var/lib/supportagent"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "supportagent.db"
	// DefaultPurgeInterval is how often expired flow records are purged
	DefaultPurgeInterval = time.Hour
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := run(config, flags); err != nil && err != context.Canceled {
		slog.Error("Support agent failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Support agent exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir       string
	DatabaseDSN    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	OpenAIKey      string
	AccountsURL    string
	APIAddr        string
	VerifyToken    string
	AnonymizeSalt  string
	Workers        int
	StateTTL       time.Duration
	PurgeInterval  time.Duration
	TwilioSID      string
	TwilioToken    string
	TwilioFrom     string
}

// Flags holds command line flag values
type Flags struct {
	stateDir  *string
	dbDSN     *string
	redisAddr *string
	openaiKey *string
	apiAddr   *string
	workers   *int
}

// initializeLogger sets up structured logging
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("SUPPORTAGENT_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:      os.Getenv("SUPPORTAGENT_STATE_DIR"),
		DatabaseDSN:   os.Getenv("DATABASE_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       util.ParseIntEnv("REDIS_DB", 0),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		AccountsURL:   os.Getenv("ACCOUNTS_BASE_URL"),
		APIAddr:       os.Getenv("API_ADDR"),
		VerifyToken:   os.Getenv("WEBHOOK_VERIFY_TOKEN"),
		AnonymizeSalt: os.Getenv("ANONYMIZATION_SALT"),
		Workers:       util.ParseIntEnv("QUEUE_WORKERS", queue.DefaultWorkers),
		StateTTL:      util.ParseDurationEnv("CONVERSATION_TTL", convstore.DefaultTTL),
		PurgeInterval: util.ParseDurationEnv("PURGE_INTERVAL", DefaultPurgeInterval),
		TwilioSID:     os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:    os.Getenv("TWILIO_FROM_NUMBER"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No SUPPORTAGENT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseDSN)
	}
	if config.RedisAddr == "" {
		config.RedisAddr = "localhost:6379"
	}
	if config.APIAddr == "" {
		config.APIAddr = api.DefaultAddr
	}

	slog.Debug("environment variables loaded",
		"SUPPORTAGENT_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseDSN != "",
		"REDIS_ADDR", config.RedisAddr,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"ACCOUNTS_BASE_URL", config.AccountsURL,
		"API_ADDR", config.APIAddr,
		"QUEUE_WORKERS", config.Workers)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:  flag.String("state-dir", config.StateDir, "state directory for support agent data (overrides $SUPPORTAGENT_STATE_DIR)"),
		dbDSN:     flag.String("db-dsn", config.DatabaseDSN, "database DSN for the flow history store (overrides $DATABASE_URL)"),
		redisAddr: flag.String("redis-addr", config.RedisAddr, "Redis address for state, queue, and events (overrides $REDIS_ADDR)"),
		openaiKey: flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key for intent classification (overrides $OPENAI_API_KEY)"),
		apiAddr:   flag.String("api-addr", config.APIAddr, "webhook server address (overrides $API_ADDR)"),
		workers:   flag.Int("workers", config.Workers, "inbound queue worker pool size (overrides $QUEUE_WORKERS)"),
	}
	flag.Parse()
	return flags
}

// resolveDatabaseDSN picks the DSN to open. An explicit DSN (flag or env)
// wins; otherwise the SQLite default follows the state-dir flag when it
// overrides the env state dir.
func resolveDatabaseDSN(config Config, stateDir, dsn string) string {
	if stateDir != config.StateDir && dsn == filepath.Join(config.StateDir, DefaultDBFileName) {
		return filepath.Join(stateDir, DefaultDBFileName)
	}
	return dsn
}

// newHistoryStore opens the durable history store for the configured DSN.
func newHistoryStore(anon *anonymize.Anonymizer, dsn string) (history.Store, error) {
	if history.DetectDSNType(dsn) == "postgres" {
		slog.Info("Using Postgres flow history store")
		return history.NewPostgresStore(anon, history.WithPostgresDSN(dsn))
	}
	slog.Info("Using SQLite flow history store", "path", dsn)
	return history.NewSQLiteStore(anon, history.WithSQLiteDSN(dsn))
}

func run(config Config, flags Flags) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	anon := anonymize.New(config.AnonymizeSalt)

	hist, err := newHistoryStore(anon, resolveDatabaseDSN(config, *flags.stateDir, *flags.dbDSN))
	if err != nil {
		return err
	}
	defer hist.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     *flags.redisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.Error("Redis ping failed", "error", err)
		return err
	}

	states := convstore.New(redisClient, hist, convstore.WithTTL(config.StateTTL))
	profiles := accounts.NewClient(config.AccountsURL)
	classifier := intent.NewClassifier(*flags.openaiKey)
	publisher := queue.NewPublisher(redisClient, os.Getenv("UPDATE_STREAM"))

	messenger, err := messaging.NewTwilioClient(
		messaging.WithAccountSID(config.TwilioSID),
		messaging.WithAuthToken(config.TwilioToken),
		messaging.WithFromNumber(config.TwilioFrom),
	)
	if err != nil {
		return err
	}

	engine := flow.NewEngine(states, hist, messenger, classifier, profiles, publisher)

	inbound := queue.NewInbound(redisClient,
		queue.WithInboundKey(os.Getenv("INBOUND_QUEUE_KEY")),
		queue.WithWorkers(*flags.workers),
	)
	server := api.NewServer(inbound,
		api.WithAddr(*flags.apiAddr),
		api.WithVerifyToken(config.VerifyToken),
	)

	slog.Info("Bootstrapping support agent", "api_addr", *flags.apiAddr, "workers", *flags.workers)

	errCh := make(chan error, 2)
	go func() { errCh <- inbound.Consume(ctx, engine) }()
	go func() { errCh <- server.Run(ctx) }()
	go runPurgeLoop(ctx, hist, config.PurgeInterval, config.StateTTL)

	err = <-errCh
	stop()
	return err
}

// runPurgeLoop periodically marks abandoned flows Expired and deletes flow
// records past their expiry. A flow is abandoned once it has been idle
// longer than the conversation cache TTL: its cached state is gone, so the
// next message starts a new flow.
func runPurgeLoop(ctx context.Context, hist history.Store, interval, staleAfter time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			expired, err := hist.ExpireStale(ctx, now.Add(-staleAfter))
			if err != nil {
				slog.Error("Expiry of stale flows failed", "error", err)
			}
			purged, err := hist.PurgeExpired(ctx, now)
			if err != nil {
				slog.Error("Purge of expired flows failed", "error", err)
				continue
			}
			slog.Debug("Purge of expired flows completed", "expired", expired, "purged", purged)
		}
	}
}
