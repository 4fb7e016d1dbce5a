// CareVoice is a voice-driven incident/accident reporting service for care
// homes. It wires the dialogue engine to a speech bridge, a language model,
// a conversation store, and a manager notifier, and serves the session API.
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

	"github.com/joho/godotenv"
	"github.com/openai/openai-go"

	"github.com/Majidul17068/carevoice/internal/api"
	"github.com/Majidul17068/carevoice/internal/flow"
	"github.com/Majidul17068/carevoice/internal/genai"
	"github.com/Majidul17068/carevoice/internal/lockfile"
	"github.com/Majidul17068/carevoice/internal/notify"
	"github.com/Majidul17068/carevoice/internal/scheduler"
	"github.com/Majidul17068/carevoice/internal/speech"
	"github.com/Majidul17068/carevoice/internal/store"
	"github.com/Majidul17068/carevoice/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for CareVoice state data
	DefaultStateDir = "/var/lib/carevoice"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "carevoice.db"
	// DefaultAPIAddr is the default API listen address
	DefaultAPIAddr = ":8080"
	// DefaultSweepSchedule runs the registry retention sweep nightly.
	DefaultSweepSchedule = "0 3 * * *"
	// DefaultRetention keeps finished sessions in the registry for the
	// post-session edit window before they are swept.
	DefaultRetention = 24 * time.Hour
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	llm, err := buildGenAIClient(flags)
	if err != nil {
		slog.Error("Failed to initialize GenAI client", "error", err)
		os.Exit(1)
	}

	notifier, err := buildNotifier(flags)
	if err != nil {
		slog.Error("Failed to initialize notifier", "error", err)
		os.Exit(1)
	}

	engine, err := speech.NewBridgeEngine(*flags.stationID, speech.WithBaseURL(*flags.bridgeURL))
	if err != nil {
		slog.Error("Failed to initialize speech bridge engine", "error", err)
		os.Exit(1)
	}

	registry := flow.NewRegistry()
	dialogue := flow.NewDialogue(flow.Dependencies{
		Registry:   registry,
		Engine:     engine,
		LLM:        llm,
		Store:      st,
		Notifier:   notifier,
		Recipients: config.Recipients,
	},
		flow.WithGateDuration(config.GateDuration),
		flow.WithAnswerDuration(config.AnswerDuration),
	)

	sched := scheduler.NewScheduler()
	defer sched.Stop()
	if err := sched.AddJob(config.SweepSchedule, func() {
		registry.SweepTerminal(config.Retention)
	}); err != nil {
		slog.Error("Failed to schedule registry sweep", "error", err, "schedule", config.SweepSchedule)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping CareVoice with configured modules",
		"db_driver", *flags.dbDriver,
		"api_addr", *flags.apiAddr,
		"bridge_url_set", *flags.bridgeURL != "",
		"notify_backend", *flags.notifyBackend,
		"recipients", len(config.Recipients))

	server := api.NewServer(registry, dialogue)
	if err := server.Run(ctx, *flags.apiAddr); err != nil {
		slog.Error("CareVoice failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("CareVoice exited successfully")
}

// initializeLogger sets up structured logging; debug level when CAREVOICE_DEBUG is set.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("CAREVOICE_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// Config holds environment configuration
type Config struct {
	DBDriver       string
	DatabaseDSN    string
	StateDir       string
	OpenAIKey      string
	OpenAIBaseURL  string
	Model          string
	APIAddr        string
	BridgeURL      string
	StationID      string
	NotifyBackend  string
	Recipients     []string
	GateDuration   time.Duration
	AnswerDuration time.Duration
	SweepSchedule  string
	Retention      time.Duration
}

// Flags holds command line flag values
type Flags struct {
	stateDir      *string
	dbDriver      *string
	dbDSN         *string
	openaiKey     *string
	openaiBaseURL *string
	model         *string
	apiAddr       *string
	bridgeURL     *string
	stationID     *string
	notifyBackend *string
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	return Config{
		DBDriver:       util.GetEnv("CAREVOICE_DB_DRIVER", "sqlite3"),
		DatabaseDSN:    os.Getenv("DATABASE_DSN"),
		StateDir:       util.GetEnv("CAREVOICE_STATE_DIR", DefaultStateDir),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:  os.Getenv("OPENAI_BASE_URL"),
		Model:          os.Getenv("CAREVOICE_MODEL"),
		APIAddr:        util.GetEnv("CAREVOICE_API_ADDR", DefaultAPIAddr),
		BridgeURL:      os.Getenv("VOICE_TRANSCRIPT_API_ENDPOINT"),
		StationID:      util.GetEnv("CAREVOICE_STATION_ID", "default"),
		NotifyBackend:  util.GetEnv("CAREVOICE_NOTIFY_BACKEND", "smtp"),
		Recipients:     util.SplitListEnv("MANAGER_RECIPIENTS"),
		GateDuration:   util.ParseDurationEnv("CAREVOICE_GATE_DURATION", flow.DefaultGateDuration),
		AnswerDuration: util.ParseDurationEnv("CAREVOICE_ANSWER_DURATION", flow.DefaultAnswerDuration),
		SweepSchedule:  util.GetEnv("CAREVOICE_SWEEP_SCHEDULE", DefaultSweepSchedule),
		Retention:      util.ParseDurationEnv("CAREVOICE_SESSION_RETENTION", DefaultRetention),
	}
}

// parseCommandLineFlags parses flags with environment values as defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:      flag.String("state-dir", config.StateDir, "Directory for CareVoice state data"),
		dbDriver:      flag.String("db-driver", config.DBDriver, "Database driver (sqlite3 or postgres)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseDSN, "Database DSN (file path for sqlite3, URL for postgres)"),
		openaiKey:     flag.String("openai-key", config.OpenAIKey, "OpenAI-compatible API key"),
		openaiBaseURL: flag.String("openai-base-url", config.OpenAIBaseURL, "OpenAI-compatible API base URL"),
		model:         flag.String("model", config.Model, "Chat model to use"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "API listen address"),
		bridgeURL:     flag.String("bridge-url", config.BridgeURL, "Voice transcript bridge base URL"),
		stationID:     flag.String("station-id", config.StationID, "Reporting station identifier for the speech bridge"),
		notifyBackend: flag.String("notify-backend", config.NotifyBackend, "Notification backend (smtp or twilio)"),
	}
	flag.Parse()
	return flags
}

// buildStore selects and initializes the persistence backend.
func buildStore(flags Flags) (store.Store, error) {
	dsn := *flags.dbDSN
	switch *flags.dbDriver {
	case "postgres":
		return store.NewPostgresStore(store.WithDSN(dsn))
	default:
		if dsn == "" {
			dsn = filepath.Join(*flags.stateDir, DefaultDBFileName)
		}
		return store.NewSQLiteStore(store.WithDSN(dsn))
	}
}

// buildGenAIClient initializes the language model collaborator.
func buildGenAIClient(flags Flags) (genai.ClientInterface, error) {
	opts := []genai.Option{genai.WithAPIKey(*flags.openaiKey)}
	if *flags.openaiBaseURL != "" {
		opts = append(opts, genai.WithBaseURL(*flags.openaiBaseURL))
	}
	if *flags.model != "" {
		opts = append(opts, genai.WithModel(openai.ChatModel(*flags.model)))
	}
	return genai.NewClient(opts...)
}

// buildNotifier selects the manager notification backend.
func buildNotifier(flags Flags) (notify.Notifier, error) {
	switch *flags.notifyBackend {
	case "twilio":
		return notify.NewTwilioNotifier()
	default:
		return notify.NewSMTPNotifier()
	}
}
