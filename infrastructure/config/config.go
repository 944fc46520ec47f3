package config

import (
	"fmt"
	"os"
	"strconv"

	domainconfig "designgraph/domain/config"
)

// Store backends
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StoreDynamoDB = "dynamodb"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// Graph store
	StoreBackend string
	SQLitePath   string
	LedgerDedup  bool

	// AWS configuration
	AWSRegion     string
	DynamoDBTable string
	EventBusName  string

	// TaskRateLimit caps task requests per session per minute, 0 for none
	TaskRateLimit int

	// Lambda configuration
	IsLambda bool

	// Workflow policy
	WorkflowPhase string
	PolicyFile    string
	WatchPolicy   bool
	// PolicyDebounceMS coalesces bursts of file events into one reload
	PolicyDebounceMS int

	// Logging
	LogLevel string

	// Tracing
	OTELEndpoint string

	// Feature flags
	EnableEvents  bool
	EnableMetrics bool
	EnableTracing bool
	EnableCORS    bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),

		StoreBackend: getEnv("STORE_BACKEND", StoreMemory),
		SQLitePath:   getEnv("SQLITE_PATH", "designgraph.db"),
		LedgerDedup:  getEnvBool("LEDGER_DEDUP", false),

		AWSRegion:     getEnv("AWS_REGION", "us-west-2"),
		DynamoDBTable: getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", "designgraph")),
		EventBusName:  getEnv("EVENT_BUS_NAME", "designgraph-events"),

		TaskRateLimit: getEnvInt("TASK_RATE_LIMIT", 0),

		IsLambda: getEnvBool("IS_LAMBDA", os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""),

		WorkflowPhase: getEnv("WORKFLOW_PHASE", ""),
		PolicyFile:    getEnv("POLICY_FILE", ""),
		WatchPolicy:   getEnvBool("WATCH_POLICY", false),

		PolicyDebounceMS: getEnvInt("POLICY_DEBOUNCE_MS", 100),

		LogLevel:     getEnv("LOG_LEVEL", "info"),
		OTELEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),

		EnableEvents:  getEnvBool("ENABLE_EVENTS", false),
		EnableMetrics: getEnvBool("ENABLE_METRICS", true),
		EnableTracing: getEnvBool("ENABLE_TRACING", false),
		EnableCORS:    getEnvBool("ENABLE_CORS", true),
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory:
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	case StoreDynamoDB:
		if c.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required for the dynamodb store")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if c.EnableEvents && c.EventBusName == "" {
		return fmt.Errorf("EVENT_BUS_NAME is required when events are enabled")
	}
	if c.WatchPolicy && c.PolicyFile == "" {
		return fmt.Errorf("WATCH_POLICY requires POLICY_FILE")
	}
	if c.TaskRateLimit < 0 {
		return fmt.Errorf("TASK_RATE_LIMIT must not be negative")
	}
	if c.IsProduction() && c.StoreBackend == StoreMemory {
		return fmt.Errorf("the memory store is not allowed in production")
	}

	return nil
}

// DomainPolicy builds the domain configuration for this environment,
// overlaid with the policy file and WORKFLOW_PHASE when set
func (c *Config) DomainPolicy() (*Policy, error) {
	base := c.BaseDomainConfig()

	pol := &Policy{Domain: base}
	if c.PolicyFile != "" {
		loaded, err := LoadPolicy(c.PolicyFile, base)
		if err != nil {
			return nil, err
		}
		pol = loaded
	}

	if c.WorkflowPhase != "" {
		pol.Domain.Phase = c.WorkflowPhase
		if err := pol.Domain.Validate(); err != nil {
			return nil, fmt.Errorf("WORKFLOW_PHASE: %w", err)
		}
	}
	return pol, nil
}

// BaseDomainConfig returns the environment defaults a policy file overlays
func (c *Config) BaseDomainConfig() *domainconfig.DomainConfig {
	return domainconfig.LoadDomainConfig(c.Environment)
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
