package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store and cache backends.
const (
	BackendFirestore = "firestore"
	BackendMemory    = "memory"
	BackendRedis     = "redis"
)

// DefaultClientIDFile is where the client id is kept unless CLIENT_ID_FILE says otherwise.
const DefaultClientIDFile = ".pantrysync/client-id"

// Config holds all configuration for the application.
type Config struct {
	Port      string `mapstructure:"PORT"`
	GinMode   string `mapstructure:"GIN_MODE"`
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	ClientURL string `mapstructure:"CLIENT_URL"`

	StoreBackend                     string `mapstructure:"STORE_BACKEND"`
	FirebaseProjectID                string `mapstructure:"FIREBASE_PROJECT_ID"`
	GoogleApplicationCredentials     string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`
	AuthDisabled                     bool   `mapstructure:"AUTH_DISABLED"`

	CacheBackend  string `mapstructure:"CACHE_BACKEND"`
	RedisAddress  string `mapstructure:"REDIS_ADDRESS"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	RabbitMQURL       string `mapstructure:"RABBITMQ_URL"`
	NotificationQueue string `mapstructure:"NOTIFICATION_QUEUE"`

	SentryDSN         string `mapstructure:"SENTRY_DSN"`
	SentryEnvironment string `mapstructure:"SENTRY_ENVIRONMENT"`

	ClientIDFile string `mapstructure:"CLIENT_ID_FILE"`

	ShoppingDebounce   time.Duration `mapstructure:"SHOPPING_DEBOUNCE"`
	MealPlanDebounce   time.Duration `mapstructure:"MEALPLAN_DEBOUNCE"`
	RecipesDebounce    time.Duration `mapstructure:"RECIPES_DEBOUNCE"`
	EchoWindow         time.Duration `mapstructure:"ECHO_WINDOW"`
	PermissionCooldown time.Duration `mapstructure:"PERMISSION_COOLDOWN"`
	SnapshotCacheTTL   time.Duration `mapstructure:"SNAPSHOT_CACHE_TTL"`
	ResubscribeDelay   time.Duration `mapstructure:"RESUBSCRIBE_DELAY"`
}

// SyncTimings groups the intervals used by the collection synchronizers.
type SyncTimings struct {
	ShoppingDebounce   time.Duration
	MealPlanDebounce   time.Duration
	RecipesDebounce    time.Duration
	EchoWindow         time.Duration
	PermissionCooldown time.Duration
	SnapshotCacheTTL   time.Duration
	ResubscribeDelay   time.Duration
}

// DefaultSyncTimings returns the intervals used when nothing is configured.
func DefaultSyncTimings() SyncTimings {
	return SyncTimings{
		ShoppingDebounce:   1200 * time.Millisecond,
		MealPlanDebounce:   2 * time.Second,
		RecipesDebounce:    1200 * time.Millisecond,
		EchoWindow:         100 * time.Millisecond,
		PermissionCooldown: 30 * time.Second,
		ResubscribeDelay:   5 * time.Second,
	}
}

// SyncTimings returns the synchronizer view of the configuration.
func (c *Config) SyncTimings() SyncTimings {
	return SyncTimings{
		ShoppingDebounce:   c.ShoppingDebounce,
		MealPlanDebounce:   c.MealPlanDebounce,
		RecipesDebounce:    c.RecipesDebounce,
		EchoWindow:         c.EchoWindow,
		PermissionCooldown: c.PermissionCooldown,
		SnapshotCacheTTL:   c.SnapshotCacheTTL,
		ResubscribeDelay:   c.ResubscribeDelay,
	}
}

// IsRelease reports whether gin runs in release mode.
func (c *Config) IsRelease() bool {
	return strings.EqualFold(c.GinMode, "release")
}

var keys = []string{
	"PORT", "GIN_MODE", "LOG_LEVEL", "CLIENT_URL",
	"STORE_BACKEND", "FIREBASE_PROJECT_ID", "GOOGLE_APPLICATION_CREDENTIALS",
	"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64", "AUTH_DISABLED",
	"CACHE_BACKEND", "REDIS_ADDRESS", "REDIS_PASSWORD", "REDIS_DB",
	"RABBITMQ_URL", "NOTIFICATION_QUEUE",
	"SENTRY_DSN", "SENTRY_ENVIRONMENT",
	"CLIENT_ID_FILE",
	"SHOPPING_DEBOUNCE", "MEALPLAN_DEBOUNCE", "RECIPES_DEBOUNCE",
	"ECHO_WINDOW", "PERMISSION_COOLDOWN", "SNAPSHOT_CACHE_TTL",
	"RESUBSCRIBE_DELAY",
}

func setDefaults(v *viper.Viper) {
	t := DefaultSyncTimings()
	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_BACKEND", BackendFirestore)
	v.SetDefault("AUTH_DISABLED", false)
	v.SetDefault("CACHE_BACKEND", BackendMemory)
	v.SetDefault("REDIS_ADDRESS", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("NOTIFICATION_QUEUE", "pantry.notifications")
	v.SetDefault("CLIENT_ID_FILE", DefaultClientIDFile)
	v.SetDefault("SHOPPING_DEBOUNCE", t.ShoppingDebounce)
	v.SetDefault("MEALPLAN_DEBOUNCE", t.MealPlanDebounce)
	v.SetDefault("RECIPES_DEBOUNCE", t.RecipesDebounce)
	v.SetDefault("ECHO_WINDOW", t.EchoWindow)
	v.SetDefault("PERMISSION_COOLDOWN", t.PermissionCooldown)
	v.SetDefault("SNAPSHOT_CACHE_TTL", time.Duration(0))
	v.SetDefault("RESUBSCRIBE_DELAY", t.ResubscribeDelay)
}

// Load reads configuration from the environment, a .env file outside release
// mode, and the YAML file named by PATH_CONFIG when set. Environment values
// win over the file.
func Load() (*Config, error) {
	if !strings.EqualFold(os.Getenv("GIN_MODE"), "release") {
		// A missing .env file is fine.
		_ = godotenv.Load()
	}
	return LoadFrom(viper.New(), os.Getenv("PATH_CONFIG"))
}

// LoadFrom fills v and decodes it. path may be empty.
func LoadFrom(v *viper.Viper, path string) (*Config, error) {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", k, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	cfg.CacheBackend = strings.ToLower(strings.TrimSpace(cfg.CacheBackend))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendFirestore:
		if c.FirebaseProjectID == "" {
			return errors.New("FIREBASE_PROJECT_ID is required")
		}
		if c.GoogleApplicationCredentials == "" && c.FirebaseServiceAccountJSONBase64 == "" {
			return errors.New("either GOOGLE_APPLICATION_CREDENTIALS or FIREBASE_SERVICE_ACCOUNT_JSON_BASE64 is required")
		}
	case BackendMemory:
		if !c.AuthDisabled {
			return errors.New("STORE_BACKEND=memory requires AUTH_DISABLED=true")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendFirestore, BackendMemory, c.StoreBackend)
	}

	switch c.CacheBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisAddress == "" {
			return errors.New("REDIS_ADDRESS is required when CACHE_BACKEND is redis")
		}
	default:
		return fmt.Errorf("CACHE_BACKEND must be %q or %q, got %q", BackendMemory, BackendRedis, c.CacheBackend)
	}

	if c.AuthDisabled && c.IsRelease() {
		return errors.New("AUTH_DISABLED cannot be used in release mode")
	}

	durations := map[string]time.Duration{
		"SHOPPING_DEBOUNCE":   c.ShoppingDebounce,
		"MEALPLAN_DEBOUNCE":   c.MealPlanDebounce,
		"RECIPES_DEBOUNCE":    c.RecipesDebounce,
		"ECHO_WINDOW":         c.EchoWindow,
		"PERMISSION_COOLDOWN": c.PermissionCooldown,
		"SNAPSHOT_CACHE_TTL":  c.SnapshotCacheTTL,
		"RESUBSCRIBE_DELAY":   c.ResubscribeDelay,
	}
	for _, k := range keys {
		if d, ok := durations[k]; ok && d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", k, d)
		}
	}
	return nil
}
