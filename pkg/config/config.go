package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Calendar CalendarConfig `mapstructure:"calendar"`
}

type ServerConfig struct {
	Port          int           `mapstructure:"port"`
	Mode          string        `mapstructure:"mode"`
	Timeout       time.Duration `mapstructure:"timeout"`
	UseHTTPS      bool          `mapstructure:"use_https"`
	HTTPSCertFile string        `mapstructure:"https_cert_file"`
	HTTPSKeyFile  string        `mapstructure:"https_key_file"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	Timezone        string        `mapstructure:"timezone"`
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
}

type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
	// UseCompression gzips stored values such as session state.
	UseCompression bool `mapstructure:"use_compression"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CalendarConfig struct {
	WeekStart       string        `mapstructure:"week_start"`
	HourHeight      float64       `mapstructure:"hour_height"`
	DayStartHour    int           `mapstructure:"day_start_hour"`
	DayEndHour      int           `mapstructure:"day_end_hour"`
	MinEventHeight  float64       `mapstructure:"min_event_height"`
	LayoutGap       float64       `mapstructure:"layout_gap"`
	FallbackAllowed bool          `mapstructure:"fallback_allowed"`
	DemoMode        bool          `mapstructure:"demo_mode"`
	SessionStore    string        `mapstructure:"session_store"`
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
	BlueprintsFile  string        `mapstructure:"blueprints_file"`
	MockSeed        uint64        `mapstructure:"mock_seed"`
	DragTimeout     time.Duration `mapstructure:"drag_timeout"`
	ReaperSchedule  string        `mapstructure:"reaper_schedule"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.timeout", 30*time.Second)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")
	v.SetDefault("database.path", "calendar.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.retry_attempts", 3)
	v.SetDefault("database.retry_delay", 2*time.Second)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.key_prefix", "bizzy:")
	v.SetDefault("redis.use_compression", false)

	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Business-ID"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("calendar.week_start", "sunday")
	v.SetDefault("calendar.hour_height", 48)
	v.SetDefault("calendar.day_start_hour", 0)
	v.SetDefault("calendar.day_end_hour", 24)
	v.SetDefault("calendar.min_event_height", 18)
	v.SetDefault("calendar.layout_gap", 2)
	v.SetDefault("calendar.fallback_allowed", true)
	v.SetDefault("calendar.demo_mode", false)
	v.SetDefault("calendar.session_store", "redis")
	v.SetDefault("calendar.session_ttl", 24*time.Hour)
	v.SetDefault("calendar.mock_seed", 0)
	v.SetDefault("calendar.drag_timeout", 30*time.Second)
	v.SetDefault("calendar.reaper_schedule", "@every 10s")
}

func LoadConfig(configPath string) (*Config, error) {
	var config Config

	// If CONFIG_FILE environment variable is set, use it
	if envConfigFile := os.Getenv("CONFIG_FILE"); envConfigFile != "" {
		configPath = envConfigFile
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if configPath != "" {
		dir := filepath.Dir(configPath)
		file := filepath.Base(configPath)
		ext := filepath.Ext(file)
		name := strings.TrimSuffix(file, ext)

		v.AddConfigPath(dir)
		v.SetConfigName(name)
	} else {
		// Fallback to default locations
		_, filename, _, _ := runtime.Caller(0)
		pkgConfigDir := filepath.Dir(filename)
		projectRoot := filepath.Join(pkgConfigDir, "..", "..")

		v.AddConfigPath(pkgConfigDir)
		v.AddConfigPath(projectRoot)
		v.SetConfigName("config")
	}

	// A missing file is fine: defaults and the environment still apply.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error loading config file: %v", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Override with environment variables if they exist
	envVars := map[string]string{
		"database.driver":           "DB_DRIVER",
		"database.host":             "DB_HOST",
		"database.port":             "DB_PORT",
		"database.user":             "DB_USER",
		"database.password":         "DB_PASSWORD",
		"database.name":             "DB_NAME",
		"database.sslmode":          "DB_SSLMODE",
		"database.path":             "DB_PATH",
		"server.port":               "SERVER_PORT",
		"server.mode":               "SERVER_MODE",
		"server.timeout":            "SERVER_TIMEOUT",
		"redis.host":                "REDIS_HOST",
		"redis.port":                "REDIS_PORT",
		"redis.password":            "REDIS_PASSWORD",
		"redis.db":                  "REDIS_DB",
		"redis.use_compression":     "REDIS_USE_COMPRESSION",
		"logging.level":             "LOG_LEVEL",
		"logging.format":            "LOG_FORMAT",
		"calendar.week_start":       "CALENDAR_WEEK_START",
		"calendar.fallback_allowed": "CALENDAR_FALLBACK_ALLOWED",
		"calendar.demo_mode":        "CALENDAR_DEMO_MODE",
		"calendar.session_store":    "CALENDAR_SESSION_STORE",
		"calendar.session_ttl":      "CALENDAR_SESSION_TTL",
		"calendar.blueprints_file":  "CALENDAR_BLUEPRINTS_FILE",
		"calendar.mock_seed":        "CALENDAR_MOCK_SEED",
		"calendar.drag_timeout":     "CALENDAR_DRAG_TIMEOUT",
	}

	for configKey, envVar := range envVars {
		if value := os.Getenv(envVar); value != "" {
			// Handle special cases for type conversion
			switch envVar {
			case "DB_PORT", "REDIS_PORT", "REDIS_DB", "SERVER_PORT":
				if intVal, err := strconv.Atoi(value); err == nil {
					v.Set(configKey, intVal)
				}
			case "CALENDAR_MOCK_SEED":
				if seed, err := strconv.ParseUint(value, 10, 64); err == nil {
					v.Set(configKey, seed)
				}
			case "SERVER_TIMEOUT", "CALENDAR_SESSION_TTL", "CALENDAR_DRAG_TIMEOUT":
				if d, err := time.ParseDuration(value); err == nil {
					v.Set(configKey, d)
				}
			case "CALENDAR_FALLBACK_ALLOWED", "CALENDAR_DEMO_MODE", "REDIS_USE_COMPRESSION":
				if b, err := strconv.ParseBool(value); err == nil {
					v.Set(configKey, b)
				}
			default:
				v.Set(configKey, value)
			}
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %v", err)
	}

	return &config, nil
}
