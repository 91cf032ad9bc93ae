package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/VeerkrachtLab/veerkracht/internal/api"
	"github.com/VeerkrachtLab/veerkracht/internal/genai"
	"github.com/VeerkrachtLab/veerkracht/internal/hitl"
	"github.com/VeerkrachtLab/veerkracht/internal/orchestrator"
	"github.com/VeerkrachtLab/veerkracht/internal/store"
	"github.com/VeerkrachtLab/veerkracht/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Veerkracht state data
	DefaultStateDir = "/var/lib/veerkracht"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "veerkracht.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// Build module options
	storeOpts := buildStoreOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	notifierOpts := buildNotifierOptions(flags)
	apiOpts := buildAPIOptions(flags)
	apiOpts = append(apiOpts, buildCalibrationOptions()...)

	// Start the service
	slog.Info("Bootstrapping Veerkracht with configured modules")
	slog.Debug("Module options counts", "store", len(storeOpts), "genai", len(genaiOpts), "notifier", len(notifierOpts), "api", len(apiOpts))
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr)
	if err := api.Run(storeOpts, genaiOpts, notifierOpts, apiOpts); err != nil {
		slog.Error("Veerkracht failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Veerkracht exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseDSN  string
	StateDir     string
	OpenAIKey    string
	APIAddr      string
	OnCallNumber string
}

// Flags holds command line flag values
type Flags struct {
	stateDir     *string
	dbDSN        *string
	openaiKey    *string
	apiAddr      *string
	onCallNumber *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
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
		DatabaseDSN:  os.Getenv("DATABASE_DSN"),
		StateDir:     os.Getenv("VEERKRACHT_STATE_DIR"),
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		APIAddr:      os.Getenv("API_ADDR"),
		OnCallNumber: os.Getenv("VEERKRACHT_ONCALL_NUMBER"),
	}

	// Legacy fallback for deployments still configured with DATABASE_URL
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = os.Getenv("DATABASE_URL")
		if config.DatabaseDSN != "" {
			slog.Debug("Using DATABASE_URL as DATABASE_DSN", "dsn_set", true)
		}
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No VEERKRACHT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("VEERKRACHT_STATE_DIR found in environment", "state_dir", config.StateDir)
	}

	// If no database DSN is provided, default to SQLite in the state directory
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseDSN)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_DSN_SET", config.DatabaseDSN != "",
		"VEERKRACHT_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"ONCALL_NUMBER_SET", config.OnCallNumber != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:     flag.String("state-dir", config.StateDir, "state directory for Veerkracht data (overrides $VEERKRACHT_STATE_DIR)"),
		dbDSN:        flag.String("db-dsn", config.DatabaseDSN, "database DSN for the seed and audit store (overrides $DATABASE_DSN or $DATABASE_URL)"),
		openaiKey:    flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:      flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		onCallNumber: flag.String("oncall-number", config.OnCallNumber, "on-call reviewer phone number for escalation pages (overrides $VEERKRACHT_ONCALL_NUMBER)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"onCallSet", *flags.onCallNumber != "")

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseDSN && config.DatabaseDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "dsn_updated", true, "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	// Ensure state directory exists if we're using a file-based DSN
	if store.DetectDSNType(*flags.dbDSN) != "postgres" {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
		slog.Debug("State directory created successfully", "state_dir", stateDir)
	}
	return nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		slog.Debug("Configuring store DSN", "dsn_type", store.DetectDSNType(*flags.dbDSN))
		storeOpts = append(storeOpts, store.WithDSN(*flags.dbDSN))
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	return genaiOpts
}

// buildNotifierOptions constructs escalation pager options. Twilio
// credentials come from the environment inside the hitl module.
func buildNotifierOptions(flags Flags) []hitl.Option {
	var notifierOpts []hitl.Option
	if *flags.onCallNumber != "" {
		notifierOpts = append(notifierOpts, hitl.WithOnCall(*flags.onCallNumber))
	}
	return notifierOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.dbDSN != "" {
		apiOpts = append(apiOpts, api.WithDBDriver(store.DetectDSNType(*flags.dbDSN)))
	}
	return apiOpts
}

// buildCalibrationOptions reads pipeline threshold overrides from the
// environment. Without overrides the shipped calibration stands.
func buildCalibrationOptions() []api.Option {
	def := orchestrator.DefaultConfig()
	cfg := def
	cfg.Policy.Crisis = util.ParseFloatEnv("VEERKRACHT_CRISIS_THRESHOLD", def.Policy.Crisis)
	cfg.Policy.SeedAcceptance = util.ParseFloatEnv("VEERKRACHT_SEED_ACCEPTANCE", def.Policy.SeedAcceptance)
	cfg.ConfidenceFloor = util.ParseFloatEnv("VEERKRACHT_CONFIDENCE_FLOOR", def.ConfidenceFloor)
	if cfg.Policy == def.Policy && cfg.ConfidenceFloor == def.ConfidenceFloor {
		return nil
	}
	slog.Debug("Pipeline calibration overridden",
		"crisis_threshold", cfg.Policy.Crisis,
		"seed_acceptance", cfg.Policy.SeedAcceptance,
		"confidence_floor", cfg.ConfidenceFloor)
	return []api.Option{api.WithOrchestratorConfig(cfg)}
}
