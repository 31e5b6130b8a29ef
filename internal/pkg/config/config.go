package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pyrovision/pyrovision/internal/core/domain"
	"github.com/pyrovision/pyrovision/internal/pkg/geospatial"
	"github.com/pyrovision/pyrovision/internal/pkg/raster"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
	Region    RegionConfig    `mapstructure:"region"`
	Alerts    AlertsConfig    `mapstructure:"alerts"`
	Email     EmailConfig     `mapstructure:"email"`
	SMS       SMSConfig       `mapstructure:"sms"`
	Push      PushConfig      `mapstructure:"push"`
	Model     ModelConfig     `mapstructure:"model"`
	Imagery   ImageryConfig   `mapstructure:"imagery"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Session   SessionConfig   `mapstructure:"session"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
	BodyLimitMB  int `mapstructure:"body_limit_mb"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL    string `mapstructure:"url"`
	Stream string `mapstructure:"stream"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RegionConfig is the alerting region of interest. When RadiusM is set the
// region is the box of that radius around the centre, otherwise the bounds
// are used as given.
type RegionConfig struct {
	MinLat    float64 `mapstructure:"min_lat"`
	MaxLat    float64 `mapstructure:"max_lat"`
	MinLon    float64 `mapstructure:"min_lon"`
	MaxLon    float64 `mapstructure:"max_lon"`
	CenterLat float64 `mapstructure:"center_lat"`
	CenterLon float64 `mapstructure:"center_lon"`
	RadiusM   float64 `mapstructure:"radius_m"`
}

// GeoRegion builds the validated region.
func (r RegionConfig) GeoRegion() (domain.GeoRegion, error) {
	if r.RadiusM > 0 {
		center := domain.Coordinate{Lat: r.CenterLat, Lon: r.CenterLon}
		if err := center.Validate(); err != nil {
			return domain.GeoRegion{}, err
		}
		return geospatial.RegionAround(center, r.RadiusM)
	}
	return domain.NewGeoRegion(r.MinLat, r.MaxLat, r.MinLon, r.MaxLon)
}

const (
	DedupNone   = "none"
	DedupLedger = "ledger"
)

type AlertsConfig struct {
	Channels       []string      `mapstructure:"channels"`
	ChannelTimeout time.Duration `mapstructure:"channel_timeout"`
	Deadline       time.Duration `mapstructure:"deadline"`
	Dedup          string        `mapstructure:"dedup"`
	LedgerBackend  string        `mapstructure:"ledger_backend"`
	LedgerTTL      time.Duration `mapstructure:"ledger_ttl"`
	SQLitePath     string        `mapstructure:"sqlite_path"`
}

// ParsedChannels returns the configured channels, deduplicated, in order.
func (a AlertsConfig) ParsedChannels() ([]domain.Channel, error) {
	seen := make(map[domain.Channel]bool, len(a.Channels))
	out := make([]domain.Channel, 0, len(a.Channels))
	for _, name := range a.Channels {
		ch, err := domain.ParseChannel(name)
		if err != nil {
			return nil, err
		}
		if !seen[ch] {
			seen[ch] = true
			out = append(out, ch)
		}
	}
	return out, nil
}

type EmailConfig struct {
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// Configured reports whether the email channel has enough to send.
func (e EmailConfig) Configured() bool {
	return e.SMTPHost != "" && e.From != "" && len(e.To) > 0
}

type SMSConfig struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	From       string `mapstructure:"from"`
	To         string `mapstructure:"to"`
}

func (s SMSConfig) Configured() bool {
	return s.AccountSID != "" && s.AuthToken != "" && s.From != "" && s.To != ""
}

type PushConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
	Topic           string `mapstructure:"topic"`
}

func (p PushConfig) Configured() bool {
	return p.CredentialsFile != "" && p.Topic != ""
}

type ModelConfig struct {
	URL            string        `mapstructure:"url"`
	InputWidth     int           `mapstructure:"input_width"`
	InputHeight    int           `mapstructure:"input_height"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxImagePixels int           `mapstructure:"max_image_pixels"`
}

type ImageryConfig struct {
	MinLat       float64       `mapstructure:"min_lat"`
	MaxLat       float64       `mapstructure:"max_lat"`
	MinLon       float64       `mapstructure:"min_lon"`
	MaxLon       float64       `mapstructure:"max_lon"`
	ResolutionM  float64       `mapstructure:"resolution_m"`
	MaxPixels    int           `mapstructure:"max_pixels"`
	MaxTiles     int           `mapstructure:"max_tiles"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	TokenURL     string        `mapstructure:"token_url"`
	ProcessURL   string        `mapstructure:"process_url"`
	TimeFrom     string        `mapstructure:"time_from"`
	TimeTo       string        `mapstructure:"time_to"`
	OutputDir    string        `mapstructure:"output_dir"`
	Concurrency  int           `mapstructure:"concurrency"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// AOI builds the validated area of interest for acquisition.
func (i ImageryConfig) AOI() (domain.GeoRegion, error) {
	return domain.NewGeoRegion(i.MinLat, i.MaxLat, i.MinLon, i.MaxLon)
}

const (
	FeedFile  = "file"
	FeedFIRMS = "firms"
	FeedNATS  = "nats"
)

type FeedConfig struct {
	Source             string `mapstructure:"source"`
	Path               string `mapstructure:"path"`
	FIRMSURL           string `mapstructure:"firms_url"`
	FIRMSKey           string `mapstructure:"firms_key"`
	FIRMSProduct       string `mapstructure:"firms_product"`
	FIRMSDays          int    `mapstructure:"firms_days"`
	FIRMSMinConfidence string `mapstructure:"firms_min_confidence"`
	Durable            string `mapstructure:"durable"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type SessionConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.body_limit_mb", 16)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "pyrovision")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "pyrovision")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.stream", "WILDFIRE")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("region.min_lat", 18.5)
	v.SetDefault("region.max_lat", 20.0)
	v.SetDefault("region.min_lon", 72.0)
	v.SetDefault("region.max_lon", 73.5)
	v.SetDefault("region.center_lat", 0.0)
	v.SetDefault("region.center_lon", 0.0)
	v.SetDefault("region.radius_m", 0.0)

	v.SetDefault("alerts.channels", []string{"email", "sms", "push"})
	v.SetDefault("alerts.channel_timeout", 15*time.Second)
	v.SetDefault("alerts.deadline", 30*time.Second)
	v.SetDefault("alerts.dedup", DedupNone)
	v.SetDefault("alerts.ledger_backend", "postgres")
	v.SetDefault("alerts.ledger_ttl", 7*24*time.Hour)
	v.SetDefault("alerts.sqlite_path", "pyrovision-ledger.db")

	v.SetDefault("email.smtp_host", "")
	v.SetDefault("email.smtp_port", 465)
	v.SetDefault("email.username", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.from", "")
	v.SetDefault("email.to", []string{})
	v.SetDefault("sms.account_sid", "")
	v.SetDefault("sms.auth_token", "")
	v.SetDefault("sms.from", "")
	v.SetDefault("sms.to", "")
	v.SetDefault("push.credentials_file", "")
	v.SetDefault("push.topic", "wildfire_alerts")

	v.SetDefault("model.url", "http://localhost:8501/v1/models/wildfire:predict")
	v.SetDefault("model.input_width", 150)
	v.SetDefault("model.input_height", 150)
	v.SetDefault("model.timeout", 20*time.Second)
	v.SetDefault("model.max_image_pixels", raster.DefaultMaxPixels)

	// India
	v.SetDefault("imagery.min_lat", 6.0)
	v.SetDefault("imagery.max_lat", 35.5)
	v.SetDefault("imagery.min_lon", 68.0)
	v.SetDefault("imagery.max_lon", 97.5)
	v.SetDefault("imagery.resolution_m", 60.0)
	v.SetDefault("imagery.max_pixels", 2500)
	v.SetDefault("imagery.max_tiles", geospatial.DefaultMaxTiles)
	v.SetDefault("imagery.client_id", "")
	v.SetDefault("imagery.client_secret", "")
	v.SetDefault("imagery.token_url", "https://services.sentinel-hub.com/auth/realms/main/protocol/openid-connect/token")
	v.SetDefault("imagery.process_url", "https://services.sentinel-hub.com/api/v1/process")
	v.SetDefault("imagery.time_from", "2024-01-01T00:00:00Z")
	v.SetDefault("imagery.time_to", "2024-12-31T23:59:59Z")
	v.SetDefault("imagery.output_dir", "sentinel_tiles")
	v.SetDefault("imagery.concurrency", 4)
	v.SetDefault("imagery.timeout", 2*time.Minute)

	v.SetDefault("feed.source", FeedFile)
	v.SetDefault("feed.path", "forest_fire_metadata.json")
	v.SetDefault("feed.firms_url", "https://firms.modaps.eosdis.nasa.gov")
	v.SetDefault("feed.firms_key", "")
	v.SetDefault("feed.firms_product", "VIIRS_SNPP_NRT")
	v.SetDefault("feed.firms_days", 1)
	v.SetDefault("feed.firms_min_confidence", "n")
	v.SetDefault("feed.durable", "pyrovision-streamer")

	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "wildfire-batch")

	v.SetDefault("session.ttl", 30*time.Minute)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: PYROVISION_ALERTS_DEDUP → alerts.dedup
	v.SetEnvPrefix("PYROVISION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal config: %v", domain.ErrConfiguration, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}

	if _, err := c.Region.GeoRegion(); err != nil {
		errs = append(errs, fmt.Sprintf("region: %v", err))
	}

	if _, err := c.Alerts.ParsedChannels(); err != nil {
		errs = append(errs, fmt.Sprintf("alerts.channels: %v", err))
	}
	if c.Alerts.ChannelTimeout <= 0 {
		errs = append(errs, "alerts.channel_timeout must be positive")
	}
	if c.Alerts.Deadline <= 0 {
		errs = append(errs, "alerts.deadline must be positive")
	}
	switch c.Alerts.Dedup {
	case DedupNone:
	case DedupLedger:
		switch c.Alerts.LedgerBackend {
		case "postgres", "valkey", "sqlite":
		default:
			errs = append(errs, fmt.Sprintf("alerts.ledger_backend must be postgres, valkey or sqlite, got %q", c.Alerts.LedgerBackend))
		}
		if c.Alerts.LedgerTTL <= 0 {
			errs = append(errs, "alerts.ledger_ttl must be positive")
		}
	default:
		errs = append(errs, fmt.Sprintf("alerts.dedup must be none or ledger, got %q", c.Alerts.Dedup))
	}

	if c.Model.InputWidth <= 0 || c.Model.InputHeight <= 0 {
		errs = append(errs, "model.input_width and model.input_height must be positive")
	}
	if c.Model.MaxImagePixels <= 0 {
		errs = append(errs, "model.max_image_pixels must be positive")
	}

	if _, err := c.Imagery.AOI(); err != nil {
		errs = append(errs, fmt.Sprintf("imagery: %v", err))
	}
	if c.Imagery.ResolutionM <= 0 {
		errs = append(errs, "imagery.resolution_m must be positive")
	}
	if c.Imagery.MaxPixels <= 0 {
		errs = append(errs, "imagery.max_pixels must be positive")
	}
	if c.Imagery.MaxTiles <= 0 {
		errs = append(errs, "imagery.max_tiles must be positive")
	}
	if c.Imagery.Concurrency <= 0 {
		errs = append(errs, "imagery.concurrency must be positive")
	}

	switch c.Feed.Source {
	case FeedFile, FeedFIRMS, FeedNATS:
	default:
		errs = append(errs, fmt.Sprintf("feed.source must be file, firms or nats, got %q", c.Feed.Source))
	}
	if c.Feed.Source == FeedFIRMS && c.Feed.FIRMSDays <= 0 {
		errs = append(errs, "feed.firms_days must be positive")
	}

	if c.Session.TTL <= 0 {
		errs = append(errs, "session.ttl must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: config validation failed:\n  - %s", domain.ErrConfiguration, strings.Join(errs, "\n  - "))
	}
	return nil
}
