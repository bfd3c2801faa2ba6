package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"mindcare-chatbot-backend/logger"
)

type Config struct {
	// Server
	Port        string
	Environment string
	LogLevel    string

	Catalog CatalogConfig

	// Document store (vault users, conversation logs)
	Database DatabaseConfig

	// Relational credential store
	Postgres PostgresConfig

	Redis RedisConfig

	Kafka KafkaConfig

	AI AIConfig

	Sessions SessionConfig

	Logs LogStoreConfig

	Vault VaultConfig

	WhatsApp WhatsAppConfig

	Security SecurityConfig
}

type CatalogConfig struct {
	Path string
}

type DatabaseConfig struct {
	URI      string
	Name     string
	Host     string
	Port     string
	Username string
	Password string

	// Connection pool settings
	MaxConnections int
	MinConnections int
	MaxIdleTime    time.Duration
}

type PostgresConfig struct {
	Enabled  bool
	DSN      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type AIConfig struct {
	Provider string // "gemini", "cohere", "openai", "together" or "none"
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

type SessionConfig struct {
	Store string // "redis" or "memory"
	TTL   time.Duration
}

type LogStoreConfig struct {
	Store string // "file" or "mongodb"
	Dir   string
}

type VaultConfig struct {
	Enabled    bool
	Database   string
	Collection string
}

type WhatsAppConfig struct {
	APIURL        string
	AccessToken   string
	PhoneNumberID string
	BusinessID    string
	VerifyToken   string
	AppSecret     string
	APIVersion    string
}

type SecurityConfig struct {
	PBKDF2Iterations int
	BcryptCost       int
	AllowedOrigins   []string
	TrustedProxies   []string
}

var cfg *Config

var aiProviders = map[string]bool{
	"gemini":   true,
	"cohere":   true,
	"openai":   true,
	"together": true,
	"none":     true,
}

// Load initializes the configuration
func Load() error {
	if err := godotenv.Load(); err != nil {
		logger.Log.Info("No .env file found, using environment variables")
	}

	c := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		Catalog: CatalogConfig{
			Path: getEnv("CATALOG_PATH", "data/diseases.yaml"),
		},

		Database: DatabaseConfig{
			URI:      getEnv("DATABASE_URL", ""),
			Name:     getEnv("DB_NAME", "mindcare"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "27017"),
			Username: getEnv("DB_USERNAME", ""),
			Password: getEnv("DB_PASSWORD", ""),

			MaxConnections: getEnvAsInt("DB_MAX_CONNECTIONS", 100),
			MinConnections: getEnvAsInt("DB_MIN_CONNECTIONS", 10),
			MaxIdleTime:    getEnvAsDuration("DB_MAX_IDLE_TIME", "30m"),
		},

		Postgres: PostgresConfig{
			Enabled:  getEnvAsBool("POSTGRES_ENABLED", false),
			DSN:      getEnv("POSTGRES_DSN", ""),
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			Name:     getEnv("POSTGRES_DB", "mindcare"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},

		Kafka: KafkaConfig{
			Brokers: getEnvAsSlice("KAFKA_BROKERS", []string{}),
			Topic:   getEnv("KAFKA_TOPIC", "chat.turns"),
		},

		AI: AIConfig{
			Provider: strings.ToLower(getEnv("AI_PROVIDER", "gemini")),
			APIKey:   getEnv("AI_API_KEY", getEnv("GOOGLE_API_KEY", "")),
			Model:    getEnv("AI_MODEL", ""),
			BaseURL:  getEnv("AI_BASE_URL", ""),
			Timeout:  getEnvAsDuration("AI_TIMEOUT", "30s"),
		},

		Sessions: SessionConfig{
			Store: getEnv("SESSION_STORE", "memory"),
			TTL:   getEnvAsDuration("SESSION_TTL", "24h"),
		},

		Logs: LogStoreConfig{
			Store: getEnv("LOG_STORE", "file"),
			Dir:   getEnv("LOG_DIR", "conversations"),
		},

		Vault: VaultConfig{
			Enabled:    getEnvAsBool("VAULT_ENABLED", false),
			Database:   getEnv("VAULT_DB_NAME", "DocumentVault"),
			Collection: getEnv("VAULT_COLLECTION", "users"),
		},

		WhatsApp: WhatsAppConfig{
			APIURL:        getEnv("WHATSAPP_API_URL", "https://graph.facebook.com"),
			AccessToken:   getEnv("WHATSAPP_ACCESS_TOKEN", ""),
			PhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
			BusinessID:    getEnv("WHATSAPP_BUSINESS_ID", ""),
			VerifyToken:   getEnv("WHATSAPP_VERIFY_TOKEN", ""),
			AppSecret:     getEnv("WHATSAPP_APP_SECRET", ""),
			APIVersion:    getEnv("WHATSAPP_API_VERSION", "v18.0"),
		},

		Security: SecurityConfig{
			PBKDF2Iterations: getEnvAsInt("PBKDF2_ITERATIONS", 150000),
			BcryptCost:       getEnvAsInt("BCRYPT_COST", 10),
			AllowedOrigins:   getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
			TrustedProxies:   getEnvAsSlice("TRUSTED_PROXIES", []string{}),
		},
	}

	if err := c.validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	cfg = c
	return nil
}

// Get returns the loaded configuration
func Get() *Config {
	if cfg == nil {
		logger.Log.Fatal("Configuration not loaded. Call Load() first")
	}
	return cfg
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Catalog.Path) == "" {
		return fmt.Errorf("CATALOG_PATH is required")
	}

	if !aiProviders[c.AI.Provider] {
		return fmt.Errorf("unsupported AI provider: %s", c.AI.Provider)
	}
	if c.AI.Provider != "none" && c.AI.APIKey == "" {
		return fmt.Errorf("AI API key is required for provider %s", c.AI.Provider)
	}

	switch c.Sessions.Store {
	case "redis", "memory":
	default:
		return fmt.Errorf("unsupported session store: %s", c.Sessions.Store)
	}

	switch c.Logs.Store {
	case "file", "mongodb":
	default:
		return fmt.Errorf("unsupported conversation log store: %s", c.Logs.Store)
	}

	if c.NeedsMongo() && c.Database.URI == "" {
		if c.Database.Host == "" || c.Database.Port == "" {
			return fmt.Errorf("database URI or host/port must be provided")
		}
	}

	return nil
}

// NeedsMongo reports whether any enabled component uses the document store.
func (c *Config) NeedsMongo() bool {
	return c.Logs.Store == "mongodb" || c.Vault.Enabled
}

// WhatsAppEnabled reports whether the WhatsApp channel has credentials.
func (c *Config) WhatsAppEnabled() bool {
	return c.WhatsApp.AccessToken != "" && c.WhatsApp.PhoneNumberID != "" && c.WhatsApp.VerifyToken != ""
}

// BuildDatabaseURI constructs the MongoDB URI if not provided
func (c *Config) BuildDatabaseURI() string {
	if c.Database.URI != "" {
		return c.Database.URI
	}

	if c.Database.Username != "" && c.Database.Password != "" {
		return fmt.Sprintf("mongodb://%s:%s@%s:%s/%s",
			c.Database.Username,
			c.Database.Password,
			c.Database.Host,
			c.Database.Port,
			c.Database.Name,
		)
	}
	return fmt.Sprintf("mongodb://%s:%s/%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// BuildPostgresDSN constructs the gorm DSN if not provided
func (c *Config) BuildPostgresDSN() string {
	if c.Postgres.DSN != "" {
		return c.Postgres.DSN
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Postgres.Host,
		c.Postgres.User,
		c.Postgres.Password,
		c.Postgres.Name,
		c.Postgres.Port,
		c.Postgres.SSLMode,
	)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}
