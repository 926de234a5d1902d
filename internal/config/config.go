package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the digest.
type Config struct {
	App          AppConfig
	Logger       LoggerConfig
	TaskSource   TaskSourceConfig
	TicketSource TicketSourceConfig
	Webhooks     WebhookConfig
	HTTPClient   HTTPClientConfig
	Enrichment   EnrichmentConfig
	Reports      ReportsConfig
	Schedule     ScheduleConfig
	Lock         LockConfig
	Redis        RedisConfig
	Postgres     PostgresConfig
	Auth         AuthConfig
}

// AppConfig controls server level behavior for serve mode.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// TaskSourceConfig points at the project-management API.
type TaskSourceConfig struct {
	BaseURL        string
	APIKey         string
	TaskListID     string
	AssigneeTeamID int
}

// TicketSourceConfig points at the support desk API.
type TicketSourceConfig struct {
	BaseURL string
	APIKey  string
}

// WebhookConfig holds the chat destinations per report.
type WebhookConfig struct {
	StaleReportURL string
	TopReportURL   string
}

// HTTPClientConfig bounds outbound calls. A zero timeout leaves the transport default.
type HTTPClientConfig struct {
	TimeoutSeconds int
}

// EnrichmentConfig is the ticket lookup throttling policy.
type EnrichmentConfig struct {
	BatchSize     int
	BatchPause    time.Duration
	RatePerSecond float64
	RateBurst     int
}

// ReportsConfig tunes the two report variants.
type ReportsConfig struct {
	StaleMinAgeDays int
	TopLimit        int
	TopPageSize     int
	HistorySize     int
}

// ScheduleConfig holds cron specs for serve mode. Empty specs disable a report.
type ScheduleConfig struct {
	Timezone  string
	StaleCron string
	TopCron   string
}

// LockConfig selects how overlapping runs are prevented.
type LockConfig struct {
	Backend    string
	TTLSeconds int
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN           string
	MaxConns      int32
	MinConns      int32
	RunMigrations bool
}

// AuthConfig defines the trigger API token parameters.
type AuthConfig struct {
	JWTSecret       string
	TokenTTLMinutes int
}

// Lock backends.
const (
	LockBackendMemory   = "memory"
	LockBackendRedis    = "redis"
	LockBackendPostgres = "postgres"
)

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// LoadFile loads the given env file before reading the environment.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("load env file %s: %w", path, err)
	}
	return FromEnv()
}

// FromEnv builds the config from the current process environment only.
func FromEnv() (*Config, error) {
	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	rate, err := strconv.ParseFloat(getEnv("ENRICH_RATE_PER_SECOND", "0"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ENRICH_RATE_PER_SECOND: %w", err)
	}

	taskBaseURL := strings.TrimRight(os.Getenv("TASK_SOURCE_BASE_URL"), "/")

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "bug-digest"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		TaskSource: TaskSourceConfig{
			BaseURL:        taskBaseURL,
			APIKey:         os.Getenv("TASK_API_KEY"),
			TaskListID:     os.Getenv("TASK_LIST_ID"),
			AssigneeTeamID: getEnvAsInt("ASSIGNEE_TEAM_ID", 9),
		},
		TicketSource: TicketSourceConfig{
			BaseURL: strings.TrimRight(getEnv("TICKET_SOURCE_BASE_URL", taskBaseURL), "/"),
			APIKey:  os.Getenv("TICKET_API_KEY"),
		},
		Webhooks: WebhookConfig{
			StaleReportURL: os.Getenv("STALE_REPORT_WEBHOOK_URL"),
			TopReportURL:   os.Getenv("TOP_REPORT_WEBHOOK_URL"),
		},
		HTTPClient: HTTPClientConfig{
			TimeoutSeconds: getEnvAsInt("OUTBOUND_TIMEOUT_SECONDS", 30),
		},
		Enrichment: EnrichmentConfig{
			BatchSize:     getEnvAsInt("ENRICH_BATCH_SIZE", 5),
			BatchPause:    getEnvAsDuration("ENRICH_BATCH_PAUSE", 500*time.Millisecond),
			RatePerSecond: rate,
			RateBurst:     getEnvAsInt("ENRICH_RATE_BURST", 5),
		},
		Reports: ReportsConfig{
			StaleMinAgeDays: getEnvAsInt("STALE_MIN_AGE_DAYS", 90),
			TopLimit:        getEnvAsInt("TOP_LIMIT", 10),
			TopPageSize:     getEnvAsInt("TOP_PAGE_SIZE", 100),
			HistorySize:     getEnvAsInt("RUN_HISTORY_SIZE", 50),
		},
		Schedule: ScheduleConfig{
			Timezone:  getEnv("SCHEDULE_TZ", "UTC"),
			StaleCron: os.Getenv("STALE_REPORT_CRON"),
			TopCron:   os.Getenv("TOP_REPORT_CRON"),
		},
		Lock: LockConfig{
			Backend:    strings.ToLower(getEnv("LOCK_BACKEND", LockBackendMemory)),
			TTLSeconds: getEnvAsInt("LOCK_TTL_SECONDS", 600),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Postgres: PostgresConfig{
			DSN:           os.Getenv("POSTGRES_DSN"),
			MaxConns:      int32(getEnvAsInt("POSTGRES_MAX_CONNS", 4)),
			MinConns:      int32(getEnvAsInt("POSTGRES_MIN_CONNS", 1)),
			RunMigrations: getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
		},
		Auth: AuthConfig{
			JWTSecret:       os.Getenv("AUTH_JWT_SECRET"),
			TokenTTLMinutes: getEnvAsInt("AUTH_TOKEN_TTL_MINUTES", 60),
		},
	}

	return cfg, nil
}

// Validate reports every missing value required to fetch, enrich and publish.
func (c *Config) Validate() error {
	var errs []error
	if c.TaskSource.BaseURL == "" {
		errs = append(errs, errors.New("TASK_SOURCE_BASE_URL is required"))
	}
	if c.TaskSource.APIKey == "" {
		errs = append(errs, errors.New("TASK_API_KEY is required"))
	}
	if c.TicketSource.APIKey == "" {
		errs = append(errs, errors.New("TICKET_API_KEY is required"))
	}
	if c.Enrichment.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("ENRICH_BATCH_SIZE must be positive, got %d", c.Enrichment.BatchSize))
	}
	switch c.Lock.Backend {
	case LockBackendMemory:
	case LockBackendRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis lock backend"))
		}
	case LockBackendPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for the postgres lock backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LOCK_BACKEND %q", c.Lock.Backend))
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the outbound call timeout; zero means no client-level bound.
func (h HTTPClientConfig) Timeout() time.Duration {
	if h.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(h.TimeoutSeconds) * time.Second
}

// TTL returns how long a run lock is held at most.
func (l LockConfig) TTL() time.Duration {
	if l.TTLSeconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(l.TTLSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
