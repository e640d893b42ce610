package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	bserrors "sjsage522/bidsniper/pkg/errors"
)

// Config represents the application configuration
type Config struct {
	// Environment
	Environment string

	// Task file, YAML or one auction url per line
	TasksFile string

	// Outcome event sink: redis, nats, kafka or none
	EventSink string

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// NATS configuration
	NATSURL     string
	NATSSubject string

	// Kafka configuration
	KafkaBrokers []string
	KafkaTopic   string

	// Memcache configuration, empty disables bid claims
	MemcacheAddr string
	BidClaimTTL  time.Duration

	// Browser configuration
	ChromeRemoteURL string
	ChromeExecPath  string
	ChromeHeadless  bool
	BrowserTimeout  time.Duration

	// Diagnostics directory, empty disables dumps
	DiagnosticsDir string

	// Task defaults
	DefaultTriggerMs      int
	DefaultSprintStartSec int
	DefaultSprintFreqMs   int
	DefaultRealBid        bool

	// Monitor loop constants
	StaleGrace        time.Duration
	SyncFailThreshold int
	MaxSyncReloads    int
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		Environment:           getEnv("BIDSNIPER_ENVIRONMENT", "development"),
		TasksFile:             getEnv("TASKS_FILE", "tasks.yaml"),
		EventSink:             strings.ToLower(getEnv("EVENT_SINK", "none")),
		RedisAddr:             getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:               getInt("REDIS_DB", 0),
		RedisStream:           getEnv("REDIS_STREAM", "bidsniper:outcomes"),
		RedisStreamCount:      getInt("REDIS_STREAM_COUNT", 1),
		RedisStreamMaxLength:  getInt("REDIS_STREAM_MAX_LENGTH", 1000),
		NATSURL:               getEnv("NATS_URL", "nats://127.0.0.1:4222"),
		NATSSubject:           getEnv("NATS_SUBJECT", "bidsniper.outcomes"),
		KafkaBrokers:          getList("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaTopic:            getEnv("KAFKA_TOPIC", "bidsniper.outcomes"),
		MemcacheAddr:          os.Getenv("MEMCACHE_ADDR"),
		BidClaimTTL:           getDuration("BID_CLAIM_TTL", 10*time.Minute),
		ChromeRemoteURL:       os.Getenv("CHROME_REMOTE_URL"),
		ChromeExecPath:        os.Getenv("CHROME_EXEC_PATH"),
		ChromeHeadless:        getBool("CHROME_HEADLESS", false),
		BrowserTimeout:        getDuration("BROWSER_TIMEOUT", 30*time.Second),
		DiagnosticsDir:        getEnv("DIAGNOSTICS_DIR", "diagnostics"),
		DefaultTriggerMs:      getInt("DEFAULT_TRIGGER_MS", 2000),
		DefaultSprintStartSec: getInt("DEFAULT_SPRINT_START_SEC", 60),
		DefaultSprintFreqMs:   getInt("DEFAULT_SPRINT_FREQ_MS", 1005),
		DefaultRealBid:        getBool("DEFAULT_REAL_BID", false),
		StaleGrace:            getDuration("STALE_GRACE", 5*time.Second),
		SyncFailThreshold:     getInt("SYNC_FAIL_THRESHOLD", 10),
		MaxSyncReloads:        getInt("MAX_SYNC_RELOADS", 20),
	}
}

// Validate checks values that would make the process misbehave
func (c *Config) Validate() error {
	switch c.EventSink {
	case "redis", "nats", "kafka", "none":
	default:
		return bserrors.NewConfiguration(fmt.Sprintf("unknown EVENT_SINK %q", c.EventSink), nil)
	}
	if c.TasksFile == "" {
		return bserrors.NewConfiguration("TASKS_FILE is required", nil)
	}
	if c.EventSink == "kafka" && len(c.KafkaBrokers) == 0 {
		return bserrors.NewConfiguration("KAFKA_BROKERS is required for the kafka sink", nil)
	}
	if c.RedisStreamCount <= 0 {
		return bserrors.NewConfiguration("REDIS_STREAM_COUNT must be positive", nil)
	}
	if c.DefaultTriggerMs < 0 || c.DefaultSprintStartSec < 0 || c.DefaultSprintFreqMs <= 0 {
		return bserrors.NewConfiguration("task defaults out of range", nil)
	}
	if c.StaleGrace < 0 || c.SyncFailThreshold <= 0 || c.MaxSyncReloads < 0 {
		return bserrors.NewConfiguration("monitor settings out of range", nil)
	}
	if c.BrowserTimeout <= 0 {
		return bserrors.NewConfiguration("BROWSER_TIMEOUT must be positive", nil)
	}
	return nil
}

// IsProduction reports whether the process runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

// getDuration accepts Go durations ("1500ms") or whole seconds ("90")
func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getList(key string, defaultValue []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
