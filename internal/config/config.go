package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"smart_parking_lot/internal/domain"
	"smart_parking_lot/internal/logging"
)

const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Storage       StorageConfig       `mapstructure:"storage"`
	DB            DBConfig            `mapstructure:"db"`
	Lot           domain.LotLayout    `mapstructure:"lot"`
	Pricing       PricingConfig       `mapstructure:"pricing"`
	Detection     DetectionConfig     `mapstructure:"detection"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	AWS           AWSConfig           `mapstructure:"aws"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Telemetry     TelemetryConfig     `mapstructure:"otel"`
	Log           LogConfig           `mapstructure:"log"`

	v *viper.Viper
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type StorageConfig struct {
	Backend       string `mapstructure:"backend"`
	Dir           string `mapstructure:"dir"`
	SQLitePath    string `mapstructure:"sqlite_path"`
	SQLiteDriver  string `mapstructure:"sqlite_driver"` // "sqlite" (pure Go) or "sqlite3" (cgo)
	HistoryExport string `mapstructure:"history_export"`
}

type DBConfig struct {
	Driver   string `mapstructure:"driver"` // "pgx" or "postgres" (lib/pq)
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SslMode  string `mapstructure:"sslmode"`
}

type PricingConfig struct {
	HourlyRate    float64 `mapstructure:"hourly_rate"`
	MinimumCharge float64 `mapstructure:"minimum_charge"`
	Currency      string  `mapstructure:"currency"`
}

type DetectionConfig struct {
	Enabled             bool    `mapstructure:"enabled"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
	PlatePattern        string  `mapstructure:"plate_pattern"`
}

type NotificationsConfig struct {
	OccupancyWarning float64 `mapstructure:"occupancy_warning"`
	LongStayHours    float64 `mapstructure:"long_stay_hours"`
}

type AWSConfig struct {
	Region           string `mapstructure:"region"`
	SQSEventQueueURL string `mapstructure:"sqs_event_queue_url"`
	IoTMQTTEndpoint  string `mapstructure:"iot_mqtt_endpoint"`
	IoTTopicPrefix   string `mapstructure:"iot_topic_prefix"`
}

type JWTConfig struct {
	Secret          string `mapstructure:"secret"`
	ExpirationHours int    `mapstructure:"expiration_hours"`
}

func (c JWTConfig) Expiration() time.Duration {
	return time.Duration(c.ExpirationHours) * time.Hour
}

type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const defaultJWTSecret = "change-me-parking-jwt-secret"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")

	v.SetDefault("storage.backend", BackendFile)
	v.SetDefault("storage.dir", "data")
	v.SetDefault("storage.sqlite_path", "data/parking.db")
	v.SetDefault("storage.sqlite_driver", "sqlite")
	v.SetDefault("storage.history_export", "parking_history.csv")

	v.SetDefault("db.driver", "pgx")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "parking")
	v.SetDefault("db.password", "parking")
	v.SetDefault("db.name", "parking_db")
	v.SetDefault("db.sslmode", "disable")

	lot := domain.DefaultLotLayout()
	v.SetDefault("lot.name", lot.Name)
	v.SetDefault("lot.rows", lot.Rows)
	v.SetDefault("lot.spots_per_row", lot.SpotsPerRow)
	rules := make([]map[string]any, 0, len(lot.TypeRules))
	for _, r := range lot.TypeRules {
		rules = append(rules, map[string]any{
			"row": r.Row, "from_position": r.FromPosition, "to_position": r.ToPosition, "type": string(r.Type),
		})
	}
	v.SetDefault("lot.type_rules", rules)

	v.SetDefault("pricing.hourly_rate", 100.0)
	v.SetDefault("pricing.minimum_charge", 100.0)
	v.SetDefault("pricing.currency", "Ksh.")

	v.SetDefault("detection.enabled", false)
	v.SetDefault("detection.confidence_threshold", 0.25)
	v.SetDefault("detection.plate_pattern", "")

	v.SetDefault("notifications.occupancy_warning", 90.0)
	v.SetDefault("notifications.long_stay_hours", 4.0)

	v.SetDefault("aws.region", "ap-southeast-1")
	v.SetDefault("aws.sqs_event_queue_url", "")
	v.SetDefault("aws.iot_mqtt_endpoint", "")
	v.SetDefault("aws.iot_topic_prefix", "smart_parking")

	v.SetDefault("jwt.secret", defaultJWTSecret)
	v.SetDefault("jwt.expiration_hours", 24)

	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.service_name", "smart-parking-lot")
	v.SetDefault("otel.otlp_endpoint", "http://localhost:4318")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads .env, the optional config file and the environment, in that
// order of increasing precedence. Keys map to env vars by replacing dots
// with underscores (server.port -> SERVER_PORT).
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Log().Warnf("config: could not load .env: %v", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Names used by existing deployments.
	_ = v.BindEnv("aws.sqs_event_queue_url", "SQS_EVENT_QUEUE_URL", "AWS_SQS_EVENT_QUEUE_URL")
	_ = v.BindEnv("aws.iot_mqtt_endpoint", "IOT_MQTT_ENDPOINT", "AWS_IOT_MQTT_ENDPOINT")
	_ = v.BindEnv("otel.otlp_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	_ = v.BindEnv("otel.service_name", "OTEL_SERVICE_NAME")

	if configFile == "" {
		configFile = os.Getenv("PARKING_CONFIG")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configFile, err)
		}
		logging.Log().Infof("config: loaded %s", v.ConfigFileUsed())
	}

	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.Storage.Backend = strings.ToLower(cfg.Storage.Backend)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.JWT.Secret == defaultJWTSecret {
		logging.Log().Warn("config: JWT_SECRET is not set, using the built-in development secret")
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFile, BackendSQLite, BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if c.Lot.Rows <= 0 || c.Lot.SpotsPerRow <= 0 {
		return fmt.Errorf("config: lot needs positive rows and spots_per_row, got %dx%d", c.Lot.Rows, c.Lot.SpotsPerRow)
	}
	for i, r := range c.Lot.TypeRules {
		if !r.Type.Valid() {
			return fmt.Errorf("config: lot.type_rules[%d]: unknown spot type %q", i, r.Type)
		}
		if r.Row < 1 || r.Row > c.Lot.Rows || r.FromPosition < 1 || r.ToPosition > c.Lot.SpotsPerRow || r.FromPosition > r.ToPosition {
			return fmt.Errorf("config: lot.type_rules[%d] is outside the %dx%d lot", i, c.Lot.Rows, c.Lot.SpotsPerRow)
		}
	}
	if c.Pricing.HourlyRate < 0 || c.Pricing.MinimumCharge < 0 {
		return errors.New("config: pricing values must not be negative")
	}
	if c.Detection.ConfidenceThreshold < 0 || c.Detection.ConfidenceThreshold > 1 {
		return fmt.Errorf("config: detection.confidence_threshold must be in [0,1], got %v", c.Detection.ConfidenceThreshold)
	}
	return nil
}

// WatchPricing calls fn with the new pricing section whenever the config
// file changes. It does nothing when no config file was loaded.
func (c *Config) WatchPricing(fn func(PricingConfig)) {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		var p PricingConfig
		if err := c.v.UnmarshalKey("pricing", &p); err != nil {
			logging.Log().Errorf("config: reload pricing from %s: %v", e.Name, err)
			return
		}
		if p.HourlyRate < 0 || p.MinimumCharge < 0 {
			logging.Log().Errorf("config: ignoring negative pricing in %s", e.Name)
			return
		}
		logging.Log().Infof("config: pricing reloaded from %s (rate %.2f, minimum %.2f)", e.Name, p.HourlyRate, p.MinimumCharge)
		fn(p)
	})
	c.v.WatchConfig()
}

// DSN builds the Postgres connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SslMode)
}
