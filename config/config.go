package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type DBConfig struct {
	Driver   string `yaml:"driver" env:"DRIVER"` // postgres | sqlite
	Host     string `yaml:"host" env:"HOST"`
	Port     string `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	Name     string `yaml:"name" env:"NAME"`
	SSLMode  string `yaml:"sslmode" env:"SSLMODE"`
	TimeZone string `yaml:"timezone" env:"TIMEZONE"`
	// Path is the sqlite database file.
	Path string `yaml:"path" env:"PATH"`
}

type Config struct {
	Port         string   `yaml:"port" env:"PORT"`
	AllowOrigins []string `yaml:"allow_origins" env:"CORS_ORIGINS" envSeparator:","`
	JWTSecret    string   `yaml:"jwt_secret" env:"JWT_SECRET"`

	DB DBConfig `yaml:"db" envPrefix:"DB_"`

	RedisURL     string `yaml:"redis_url" env:"REDIS_URL"`
	AMQPURL      string `yaml:"amqp_url" env:"AMQP_URL"`
	AMQPExchange string `yaml:"amqp_exchange" env:"AMQP_EXCHANGE"`

	Export struct {
		Dir      string        `yaml:"dir" env:"DIR"`
		Timeout  time.Duration `yaml:"timeout" env:"TIMEOUT"`
		MaxAge   time.Duration `yaml:"max_age" env:"MAX_AGE"`
		SweepInt time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
	} `yaml:"export" envPrefix:"EXPORT_"`

	OTP struct {
		TTL         time.Duration `yaml:"ttl" env:"TTL"`
		MaxAttempts int           `yaml:"max_attempts" env:"MAX_ATTEMPTS"`
		PerMinute   int           `yaml:"per_minute" env:"PER_MINUTE"`
	} `yaml:"otp" envPrefix:"OTP_"`

	Admin struct {
		Name     string `yaml:"name" env:"NAME"`
		Email    string `yaml:"email" env:"EMAIL"`
		Password string `yaml:"password" env:"PASSWORD"`
	} `yaml:"admin" envPrefix:"ADMIN_"`

	Log struct {
		Level string `yaml:"level" env:"LEVEL"`
		File  string `yaml:"file" env:"FILE"`
	} `yaml:"log" envPrefix:"LOG_"`
}

// Default returns the configuration used when nothing overrides a key.
func Default() Config {
	var cfg Config
	cfg.Port = "8080"
	cfg.AllowOrigins = []string{"http://localhost:5173"}
	cfg.DB.Driver = "postgres"
	cfg.DB.Port = "5432"
	cfg.DB.SSLMode = "disable"
	cfg.DB.TimeZone = "Asia/Jakarta"
	cfg.DB.Path = "tracer.db"
	cfg.AMQPExchange = "tracer.events"
	cfg.Export.Dir = "./exports"
	cfg.Export.Timeout = 2 * time.Minute
	cfg.Export.MaxAge = 24 * time.Hour
	cfg.Export.SweepInt = time.Hour
	cfg.OTP.TTL = 15 * time.Minute
	cfg.OTP.MaxAttempts = 5
	cfg.OTP.PerMinute = 5
	cfg.Log.Level = "info"
	return cfg
}

// Load layers configuration: defaults, then the YAML file, then environment
// variables (a .env file is loaded into the environment first). Missing files
// are skipped.
func Load(envPath, yamlPath string) (*Config, error) {
	cfg := Default()

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error load env file: %w", err)
		}
	}

	if yamlPath != "" {
		file, err := os.Open(yamlPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("error open file: %w", err)
		default:
			defer file.Close()
			if err = yaml.NewDecoder(file).Decode(&cfg); err != nil {
				return nil, fmt.Errorf("decode error: %w", err)
			}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	switch c.DB.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver)
	}
	if c.Export.Timeout <= 0 {
		return errors.New("EXPORT_TIMEOUT must be positive")
	}
	if c.OTP.MaxAttempts < 1 || c.OTP.PerMinute < 1 {
		return errors.New("OTP_MAX_ATTEMPTS and OTP_PER_MINUTE must be at least 1")
	}
	return nil
}
