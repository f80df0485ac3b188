package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/azhar-edu/regbot/internal/api"
	"github.com/azhar-edu/regbot/internal/classifier"
	"github.com/azhar-edu/regbot/internal/engine"
	"github.com/azhar-edu/regbot/internal/form"
	"github.com/azhar-edu/regbot/internal/genai"
	"github.com/azhar-edu/regbot/internal/lockfile"
	"github.com/azhar-edu/regbot/internal/messaging"
	"github.com/azhar-edu/regbot/internal/rating"
	"github.com/azhar-edu/regbot/internal/scheduler"
	"github.com/azhar-edu/regbot/internal/session"
	"github.com/azhar-edu/regbot/internal/store"
	"github.com/azhar-edu/regbot/internal/trigger"
	"github.com/azhar-edu/regbot/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for regbot state data
	DefaultStateDir = "/var/lib/regbot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "regbot.db"
	// DefaultAPIAddr is the default API listen address
	DefaultAPIAddr = ":8080"
	// DefaultSessionTTLHours is the default session lifetime
	DefaultSessionTTLHours = 24
	// DefaultTriggerScanSeconds is the default trigger scan interval
	DefaultTriggerScanSeconds = 60
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := run(flags); err != nil {
		slog.Error("regbot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("regbot exited successfully")
}

// Config holds environment configuration
type Config struct {
	SchemaPath  string
	DatabaseDSN string
	StateDir    string
	OpenAIKey   string
	APIAddr     string
	SessionTTL  int
	ScanSeconds int
}

// Flags holds command line flag values
type Flags struct {
	schemaPath  *string
	dbDSN       *string
	stateDir    *string
	openaiKey   *string
	apiAddr     *string
	sessionTTL  *int
	scanSeconds *int
}

// initializeLogger sets up structured logging
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("REGBOT_DEBUG", false) {
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
		SchemaPath:  os.Getenv("REGBOT_SCHEMA_PATH"),
		DatabaseDSN: os.Getenv("REGBOT_DB_DSN"),
		StateDir:    util.GetEnvDefault("REGBOT_STATE_DIR", DefaultStateDir),
		OpenAIKey:   os.Getenv("OPENAI_API_KEY"),
		APIAddr:     util.GetEnvDefault("REGBOT_API_ADDR", DefaultAPIAddr),
		SessionTTL:  util.ParseIntEnv("REGBOT_SESSION_TTL_HOURS", DefaultSessionTTLHours),
		ScanSeconds: util.ParseIntEnv("REGBOT_TRIGGER_SCAN_SECONDS", DefaultTriggerScanSeconds),
	}

	if config.DatabaseDSN == "" {
		config.DatabaseDSN = os.Getenv("DATABASE_URL")
	}
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseDSN)
	}

	slog.Debug("environment variables loaded",
		"REGBOT_SCHEMA_PATH", config.SchemaPath,
		"REGBOT_DB_DSN_SET", config.DatabaseDSN != "",
		"REGBOT_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"REGBOT_API_ADDR", config.APIAddr,
		"REGBOT_SESSION_TTL_HOURS", config.SessionTTL,
		"REGBOT_TRIGGER_SCAN_SECONDS", config.ScanSeconds)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		schemaPath:  flag.String("schema", config.SchemaPath, "form schema YAML path (overrides $REGBOT_SCHEMA_PATH; empty uses the built-in schema)"),
		dbDSN:       flag.String("db-dsn", config.DatabaseDSN, "database DSN: SQLite path or Postgres URL (overrides $REGBOT_DB_DSN or $DATABASE_URL)"),
		stateDir:    flag.String("state-dir", config.StateDir, "state directory for regbot data (overrides $REGBOT_STATE_DIR)"),
		openaiKey:   flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:     flag.String("api-addr", config.APIAddr, "API server address (overrides $REGBOT_API_ADDR)"),
		sessionTTL:  flag.Int("session-ttl-hours", config.SessionTTL, "session lifetime in hours (overrides $REGBOT_SESSION_TTL_HOURS)"),
		scanSeconds: flag.Int("trigger-scan-seconds", config.ScanSeconds, "trigger scan interval in seconds (overrides $REGBOT_TRIGGER_SCAN_SECONDS)"),
	}

	flag.Parse()

	// A -state-dir override moves the default SQLite path with it.
	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// openStore selects the storage backend from the DSN.
func openStore(dsn string) (store.Store, error) {
	if dsn == "" {
		slog.Warn("No database DSN configured, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Info("Using PostgreSQL store")
		return store.NewPostgresStore(store.WithDSN(dsn))
	}
	if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory for %s: %w", dsn, err)
	}
	slog.Info("Using SQLite store", "path", dsn)
	return store.NewSQLiteStore(store.WithDSN(dsn))
}

// loadSchema loads the form schema from file, falling back to the built-in
// default when no path is configured.
func loadSchema(path string) (*form.Schema, error) {
	if path == "" {
		slog.Info("No schema path configured, using built-in schema")
		return form.DefaultSchema(), nil
	}
	return form.LoadSchema(path)
}

func run(flags Flags) error {
	// File-based storage must not be shared between instances.
	if *flags.dbDSN != "" && store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		lock, err := lockfile.AcquireLock(filepath.Dir(*flags.dbDSN))
		if err != nil {
			return fmt.Errorf("failed to lock state directory: %w", err)
		}
		defer lock.Release()
	}

	st, err := openStore(*flags.dbDSN)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	schema, err := loadSchema(*flags.schemaPath)
	if err != nil {
		return fmt.Errorf("failed to load schema: %w", err)
	}
	forms := form.NewManager(schema)
	sessions := session.NewManager(st, time.Duration(*flags.sessionTTL)*time.Hour)

	// The LLM collaborator is optional: without a key the engine runs on
	// the deterministic fallback extractor and filename-only classification.
	var genaiClient *genai.Client
	if *flags.openaiKey != "" {
		genaiClient, err = genai.NewClient(genai.WithAPIKey(*flags.openaiKey))
		if err != nil {
			return fmt.Errorf("failed to configure genai client: %w", err)
		}
	} else {
		slog.Warn("No OpenAI API key configured, extraction falls back to keyword matching")
	}

	var docs *classifier.Classifier
	if genaiClient != nil {
		docs = classifier.NewClassifier(genaiClient)
	} else {
		docs = classifier.NewClassifier(nil)
	}

	ratingOpts := []rating.Option{}
	if len(schema.RatingPrompts) > 0 {
		ratingOpts = append(ratingOpts, rating.WithPrompts(schema.RatingPrompts))
	}
	ratings := rating.NewManager(st, ratingOpts...)

	engineOpts := []engine.Option{
		engine.WithClassifier(docs),
		engine.WithRatings(ratings),
	}
	if genaiClient != nil {
		engineOpts = append(engineOpts, engine.WithExtractor(genaiClient))
	}
	eng := engine.NewEngine(forms, sessions, st, engineOpts...)

	hooks := messaging.NewHookRegistry()
	hooks.Register("audit", func(msg messaging.OutboundMessage) {
		slog.Debug("outbound message queued", "sessionID", msg.SessionID, "trigger", msg.Metadata["trigger_name"])
	})
	sender := messaging.NewChannelSender(hooks)

	// Drain the outbound queue. The delivery transport is an external
	// collaborator; until one is attached, queued messages are logged.
	go func() {
		for msg := range sender.Outbound() {
			slog.Info("outbound message ready for transport", "sessionID", msg.SessionID, "bodyLength", len(msg.Body))
		}
	}()

	triggerOpts := []trigger.Option{trigger.WithRatingStarter(ratings)}
	if len(schema.Triggers) > 0 {
		triggerOpts = append(triggerOpts, trigger.WithTriggers(schema.Triggers))
	}
	triggers := trigger.NewEngine(sessions, st, sender, triggerOpts...)

	sched := scheduler.NewScheduler()
	if err := sched.AddEvery(time.Duration(*flags.scanSeconds)*time.Second, func() {
		triggers.CheckAll(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to schedule trigger scan: %w", err)
	}
	if err := sched.AddJob("0 * * * *", func() {
		sessions.SweepExpired()
	}); err != nil {
		return fmt.Errorf("failed to schedule session sweep: %w", err)
	}

	srv := api.NewServer(eng, forms, sessions, ratings, st, api.Opts{Addr: *flags.apiAddr})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("API server failed: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), api.DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("API shutdown incomplete", "error", err)
	}
	sched.Stop()
	sender.Stop()
	return nil
}
