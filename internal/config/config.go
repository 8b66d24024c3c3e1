package config

import (
	"os"
	"strconv"
	"time"

	"gomdp/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database  DatabaseConfig `validate:"required"`
	Server    ServerConfig   `validate:"required"`
	Paths     PathConfig     `validate:"required"`
	Sim       SimConfig      `validate:"required"`
	Profiling ProfilingConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL          string `validate:"required"`
	MaxOpenConns int
	MaxIdleConns int
	SSLMode      string
	Reset        bool // drop and recreate the schema on startup
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string `validate:"required"`
	APIPort string `validate:"required"`
	GinMode string
}

// PathConfig holds file system paths
type PathConfig struct {
	DataDir string
}

// SimConfig holds default experiment parameters. Individual requests may
// override any of them; these only seed unset fields.
type SimConfig struct {
	Seed        int64
	Episodes    int
	Timesteps   int
	Concurrency int
	CodeVersion string
}

// ProfilingConfig holds performance profiling settings
type ProfilingConfig struct {
	Port    string
	Enabled bool
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{}

	// Load database configuration
	dbConfig, err := loadDatabaseConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load database configuration")
	}
	config.Database = *dbConfig

	// Load server configuration
	serverConfig := loadServerConfig()
	config.Server = *serverConfig

	// Load path configuration
	pathConfig := loadPathConfig()
	config.Paths = *pathConfig

	// Load simulation defaults
	simConfig := loadSimConfig()
	config.Sim = *simConfig

	// Load profiling configuration
	profilingConfig := loadProfilingConfig()
	config.Profiling = *profilingConfig

	// Validate required fields
	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadDatabaseConfig() (*DatabaseConfig, error) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return nil, errors.ConfigInvalid("DATABASE_URL is required")
	}

	return &DatabaseConfig{
		URL:          url,
		MaxOpenConns: getEnvIntOrDefault("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns: getEnvIntOrDefault("DB_MAX_IDLE_CONNS", 5),
		SSLMode:      getEnvOrDefault("SSL_MODE", "disable"),
		Reset:        getEnvBoolOrDefault("DB_RESET", false),
	}, nil
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		APIPort: getEnvOrDefault("API_PORT", "8081"),
		GinMode: getEnvOrDefault("GIN_MODE", "debug"),
	}
}

func loadPathConfig() *PathConfig {
	return &PathConfig{
		DataDir: getEnvOrDefault("DATA_DIR", "./data"),
	}
}

func loadSimConfig() *SimConfig {
	return &SimConfig{
		Seed:        getEnvInt64OrDefault("SIM_SEED", 42),
		Episodes:    getEnvIntOrDefault("SIM_EPISODES", 10),
		Timesteps:   getEnvIntOrDefault("SIM_TIMESTEPS", 100),
		Concurrency: getEnvIntOrDefault("SIM_CONCURRENCY", 0),
		CodeVersion: getEnvOrDefault("CODE_VERSION", "dev"),
	}
}

func loadProfilingConfig() *ProfilingConfig {
	return &ProfilingConfig{
		Port:    getEnvOrDefault("PPROF_PORT", "6060"),
		Enabled: getEnvBoolOrDefault("PPROF_ENABLED", false),
	}
}

func validateConfig(config *Config) error {
	if config.Database.URL == "" {
		return errors.ConfigInvalid("database URL is required")
	}
	if config.Server.Port == config.Server.APIPort {
		return errors.ConfigInvalid("PORT and API_PORT must differ")
	}
	if config.Sim.Episodes <= 0 || config.Sim.Timesteps <= 0 {
		return errors.ConfigInvalid("SIM_EPISODES and SIM_TIMESTEPS must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// Duration parsing helper (for future use)
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
