package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP         HTTPConfig         `yaml:"http"`
	GRPC         GRPCConfig         `yaml:"grpc"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	Booking      BookingConfig      `yaml:"booking"`
	Verification VerificationConfig `yaml:"verification"`
	SMTP         SMTPConfig         `yaml:"smtp"`
	Search       SearchConfig       `yaml:"search"`
	Worker       WorkerConfig       `yaml:"worker"`
	Log          LogConfig          `yaml:"log"`
}

type HTTPConfig struct {
	Address            string   `yaml:"address"`
	CORSOrigins        []string `yaml:"cors_origins"`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute"`
}

type GRPCConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	User          string `yaml:"user"`
	Password      string `yaml:"password"`
	Name          string `yaml:"name"`
	SSLMode       string `yaml:"ssl_mode"`
	MigrationsDir string `yaml:"migrations_dir"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// URL is the DSN in URL form, as expected by the migration driver.
func (d DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.Name,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	return u.String()
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingTopic       string   `yaml:"booking_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

type BookingConfig struct {
	Timezone                string `yaml:"timezone"`
	SettingsCacheTTLSeconds int    `yaml:"settings_cache_ttl_seconds"`
	TimeSlotsCacheTTL       int    `yaml:"time_slots_cache_ttl_seconds"`
	// UnverifiedTTLHours of -1 keeps unverified bookings forever.
	UnverifiedTTLHours      int    `yaml:"unverified_ttl_hours"`
}

// UnverifiedTTL is zero when the expiry of unverified bookings is disabled.
func (b BookingConfig) UnverifiedTTL() time.Duration {
	if b.UnverifiedTTLHours < 0 {
		return 0
	}
	return time.Duration(b.UnverifiedTTLHours) * time.Hour
}

// Location falls back to Europe/Berlin when the timezone is unset.
func (b BookingConfig) Location() (*time.Location, error) {
	name := b.Timezone
	if name == "" {
		name = "Europe/Berlin"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", name, err)
	}
	return loc, nil
}

type VerificationConfig struct {
	Secret      string `yaml:"secret"`
	TTLHours    int    `yaml:"ttl_hours"`
	LinkBaseURL string `yaml:"link_base_url"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type SearchConfig struct {
	MeiliURL    string `yaml:"meili_url"`
	MeiliAPIKey string `yaml:"meili_api_key"`
	Index       string `yaml:"index"`
}

type WorkerConfig struct {
	ExpirationSweepMinutes int `yaml:"expiration_sweep_minutes"`
}

func (w WorkerConfig) SweepInterval() time.Duration {
	return time.Duration(w.ExpirationSweepMinutes) * time.Minute
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadConfig reads the yaml file at path. ${VAR} references are expanded from
// the environment before parsing.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Worker.ExpirationSweepMinutes <= 0 {
		return fmt.Errorf("worker.expiration_sweep_minutes must be positive, got %d", c.Worker.ExpirationSweepMinutes)
	}
	if c.Booking.UnverifiedTTLHours < -1 {
		return fmt.Errorf("booking.unverified_ttl_hours must be -1 (disabled) or positive, got %d", c.Booking.UnverifiedTTLHours)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.GRPC.Address == "" {
		c.GRPC.Address = "127.0.0.1:9090"
	}
	if c.Booking.SettingsCacheTTLSeconds == 0 {
		c.Booking.SettingsCacheTTLSeconds = 60
	}
	if c.Booking.TimeSlotsCacheTTL == 0 {
		c.Booking.TimeSlotsCacheTTL = 60
	}
	if c.Booking.UnverifiedTTLHours == 0 {
		c.Booking.UnverifiedTTLHours = 48
	}
	if c.Verification.TTLHours == 0 {
		c.Verification.TTLHours = 72
	}
	if c.Search.Index == "" {
		c.Search.Index = "time_slots"
	}
	if c.Worker.ExpirationSweepMinutes == 0 {
		c.Worker.ExpirationSweepMinutes = 15
	}
	if c.Database.MigrationsDir == "" {
		c.Database.MigrationsDir = "migrations"
	}
}
