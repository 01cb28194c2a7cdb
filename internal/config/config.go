// ==============================================
// Configuration for the counseling meeting service
// Environment driven, no config files
// ==============================================

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ==============================================
// Main Configuration Structure
// ==============================================

type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Video    VideoConfig
	Meetings MeetingsConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

type AppConfig struct {
	Name        string
	Version     string
	Environment string
	Debug       bool
}

// ==============================================
// Server Configuration
// ==============================================

type ServerConfig struct {
	HTTP      HTTPConfig
	WebSocket WebSocketConfig
	CORS      CORSConfig
}

type HTTPConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxHeaderBytes  int
}

type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     bool
}

type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

// ==============================================
// Database Configuration
// ==============================================

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

type DatabaseConfig struct {
	Driver  string
	MongoDB MongoConfig
}

type MongoConfig struct {
	URI                    string
	Database               string
	MaxPoolSize            uint64
	MinPoolSize            uint64
	MaxConnIdleTime        time.Duration
	ConnectTimeout         time.Duration
	ServerSelectionTimeout time.Duration
	HeartbeatInterval      time.Duration
	OperationTimeout       time.Duration
}

// ==============================================
// Video Provider Configuration
// ==============================================

type VideoConfig struct {
	Provider       string
	DailyAPIURL    string
	DailyAPIKey    string
	DailyDomain    string
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration

	// PseudonymKey keys the hash that hides real user ids from the provider
	PseudonymKey  string
	RoomExpiryPad time.Duration
}

// ==============================================
// Meeting Lifecycle Configuration
// ==============================================

type MeetingsConfig struct {
	SlotInterval       time.Duration
	MinAdvanceNotice   time.Duration
	ResponseWindow     time.Duration
	GracePeriod        time.Duration
	OverdueAfter       time.Duration
	DefaultDuration    int
	JoinLeadTime       time.Duration
	ReconcileInterval  time.Duration
	ReconcileBatchSize int
	NotifyTimeout      time.Duration
}

// ==============================================
// Security Configuration
// ==============================================

type SecurityConfig struct {
	JWT       JWTConfig
	RateLimit RateLimitConfig
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	ExpiryHour int
}

type RateLimitConfig struct {
	Enabled     bool
	Requests    int
	Window      time.Duration
	IPWhitelist []string
}

type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// Load reads the configuration from the environment
func Load() *Config {
	return &Config{
		App:      loadAppConfig(),
		Server:   loadServerConfig(),
		Database: loadDatabaseConfig(),
		Video:    loadVideoConfig(),
		Meetings: loadMeetingsConfig(),
		Security: loadSecurityConfig(),
		Logging:  loadLoggingConfig(),
	}
}

func loadAppConfig() AppConfig {
	return AppConfig{
		Name:        getEnv("APP_NAME", "counselmeet"),
		Version:     getEnv("APP_VERSION", "1.0.0"),
		Environment: getEnv("APP_ENV", "development"),
		Debug:       getEnvAsBool("DEBUG", false),
	}
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		HTTP: HTTPConfig{
			Port:            getEnv("HTTP_PORT", "8080"),
			Host:            getEnv("HTTP_HOST", "0.0.0.0"),
			ReadTimeout:     getEnvAsDuration("HTTP_READ_TIMEOUT", "30s"),
			WriteTimeout:    getEnvAsDuration("HTTP_WRITE_TIMEOUT", "30s"),
			IdleTimeout:     getEnvAsDuration("HTTP_IDLE_TIMEOUT", "60s"),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", "15s"),
			MaxHeaderBytes:  getEnvAsInt("HTTP_MAX_HEADER_BYTES", 1048576),
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  getEnvAsInt("WS_READ_BUFFER", 1024),
			WriteBufferSize: getEnvAsInt("WS_WRITE_BUFFER", 1024),
			CheckOrigin:     getEnvAsBool("WS_CHECK_ORIGIN", true),
		},
		CORS: CORSConfig{
			AllowedOrigins:   getEnvAsSlice("CORS_ORIGINS", "http://localhost:3000"),
			AllowedMethods:   getEnvAsSlice("CORS_METHODS", "GET,POST,PUT,DELETE,OPTIONS"),
			AllowedHeaders:   getEnvAsSlice("CORS_HEADERS", "Origin,Content-Type,Accept,Authorization,X-Request-ID"),
			AllowCredentials: getEnvAsBool("CORS_CREDENTIALS", true),
			MaxAge:           getEnvAsDuration("CORS_MAX_AGE", "12h"),
		},
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver: strings.ToLower(getEnv("STORE_DRIVER", StoreMongo)),
		MongoDB: MongoConfig{
			URI:                    getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:               getEnv("MONGODB_DATABASE", "counselmeet"),
			MaxPoolSize:            getEnvAsUint64("MONGODB_MAX_POOL_SIZE", 100),
			MinPoolSize:            getEnvAsUint64("MONGODB_MIN_POOL_SIZE", 5),
			MaxConnIdleTime:        getEnvAsDuration("MONGODB_MAX_IDLE_TIME", "30m"),
			ConnectTimeout:         getEnvAsDuration("MONGODB_CONNECT_TIMEOUT", "10s"),
			ServerSelectionTimeout: getEnvAsDuration("MONGODB_SERVER_SELECTION_TIMEOUT", "5s"),
			HeartbeatInterval:      getEnvAsDuration("MONGODB_HEARTBEAT_INTERVAL", "10s"),
			OperationTimeout:       getEnvAsDuration("MONGODB_OPERATION_TIMEOUT", "10s"),
		},
	}
}

func loadVideoConfig() VideoConfig {
	return VideoConfig{
		Provider:       getEnv("VIDEO_PROVIDER", "daily"),
		DailyAPIURL:    strings.TrimRight(getEnv("DAILY_API_URL", "https://api.daily.co/v1"), "/"),
		DailyAPIKey:    getEnv("DAILY_API_KEY", ""),
		DailyDomain:    getEnv("DAILY_DOMAIN", ""),
		RequestTimeout: getEnvAsDuration("DAILY_REQUEST_TIMEOUT", "10s"),
		MaxRetries:     getEnvAsInt("DAILY_MAX_RETRIES", 2),
		RetryBackoff:   getEnvAsDuration("DAILY_RETRY_BACKOFF", "500ms"),
		PseudonymKey:   getEnv("VIDEO_PSEUDONYM_KEY", ""),
		RoomExpiryPad:  getEnvAsDuration("DAILY_ROOM_EXPIRY_PAD", "24h"),
	}
}

func loadMeetingsConfig() MeetingsConfig {
	return MeetingsConfig{
		SlotInterval:       getEnvAsDuration("MEETING_SLOT_INTERVAL", "60m"),
		MinAdvanceNotice:   getEnvAsDuration("MEETING_MIN_ADVANCE_NOTICE", "24h"),
		ResponseWindow:     getEnvAsDuration("MEETING_RESPONSE_WINDOW", "15h"),
		GracePeriod:        getEnvAsDuration("MEETING_GRACE_PERIOD", "15m"),
		OverdueAfter:       getEnvAsDuration("MEETING_OVERDUE_AFTER", "60m"),
		DefaultDuration:    getEnvAsInt("MEETING_DEFAULT_DURATION", 45),
		JoinLeadTime:       getEnvAsDuration("MEETING_JOIN_LEAD_TIME", "5m"),
		ReconcileInterval:  getEnvAsDuration("RECONCILE_INTERVAL", "5m"),
		ReconcileBatchSize: getEnvAsInt("RECONCILE_BATCH_SIZE", 200),
		NotifyTimeout:      getEnvAsDuration("NOTIFY_TIMEOUT", "5s"),
	}
}

func loadSecurityConfig() SecurityConfig {
	return SecurityConfig{
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", ""),
			Issuer:     getEnv("JWT_ISSUER", "counselmeet"),
			ExpiryHour: getEnvAsInt("JWT_EXPIRY_HOUR", 24),
		},
		RateLimit: RateLimitConfig{
			Enabled:     getEnvAsBool("RATE_LIMIT_ENABLED", true),
			Requests:    getEnvAsInt("RATE_LIMIT_REQUESTS", 300),
			Window:      getEnvAsDuration("RATE_LIMIT_WINDOW", "1m"),
			IPWhitelist: getEnvAsSlice("RATE_LIMIT_WHITELIST", ""),
		},
	}
}

func loadLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "json"),
		Output: getEnv("LOG_OUTPUT", "stdout"),
	}
}

// ==============================================
// Helper Functions
// ==============================================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsUint64(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseUint(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

func getEnvAsSlice(key string, defaultValue string) []string {
	value := getEnv(key, defaultValue)
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ==============================================
// Configuration Validation
// ==============================================

// Validate checks the settings the service cannot start without
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case StoreMongo:
		if c.Database.MongoDB.URI == "" || c.Database.MongoDB.Database == "" {
			return fmt.Errorf("mongodb uri and database are required")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Database.Driver)
	}
	if c.Security.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Video.Provider == "daily" && c.Video.DailyAPIKey == "" {
		return fmt.Errorf("DAILY_API_KEY is required when VIDEO_PROVIDER=daily")
	}
	m := c.Meetings
	if m.SlotInterval <= 0 || m.ReconcileInterval <= 0 {
		return fmt.Errorf("slot and reconcile intervals must be positive")
	}
	if m.DefaultDuration <= 0 {
		return fmt.Errorf("default meeting duration must be positive")
	}
	if m.GracePeriod < 0 || m.OverdueAfter <= 0 || m.ResponseWindow <= 0 {
		return fmt.Errorf("grace, overdue and response windows are invalid")
	}
	return nil
}

// ==============================================
// Environment-specific Configuration
// ==============================================

func (c *Config) ApplyEnvironmentOverrides() {
	switch c.App.Environment {
	case "development":
		c.App.Debug = true
		if c.Video.PseudonymKey == "" {
			c.Video.PseudonymKey = "development-pseudonym-key"
		}
	case "test":
		c.Database.Driver = StoreMemory
		c.Video.Provider = "noop"
		c.Security.RateLimit.Enabled = false
	case "production":
		c.App.Debug = false
		if c.Logging.Format == "text" {
			c.Logging.Format = "json"
		}
	}
	if c.Video.PseudonymKey == "" {
		c.Video.PseudonymKey = c.Security.JWT.Secret
	}
}
