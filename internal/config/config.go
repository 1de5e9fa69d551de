package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	yaml "gopkg.in/yaml.v2"
)

type Config struct {
	Venue    VenueConfig    `yaml:"venue"`
	Router   RouterConfig   `yaml:"router"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Store    StoreConfig    `yaml:"store"`
	Matching MatchingConfig `yaml:"matching"`
}

type VenueConfig struct {
	ListenAddress string          `yaml:"listen_address"`
	ListenPort    int             `yaml:"listen_port"`
	Account       string          `yaml:"account"`
	Accounts      []AccountConfig `yaml:"accounts"`
	Username      string          `yaml:"-"` // from VENUE_USERNAME
	Password      string          `yaml:"-"` // from VENUE_PASSWORD
}

// AccountConfig seeds a credit account at startup.
type AccountConfig struct {
	Name    string `yaml:"name"`
	Balance string `yaml:"balance"`
}

type RouterConfig struct {
	VenueAddress string `yaml:"venue_address"`
}

type KafkaConfig struct {
	Brokers             []string `yaml:"brokers"`
	OrdersTopic         string   `yaml:"orders_topic"`
	ExecutedOrdersTopic string   `yaml:"executed_orders_topic"`
	MarketDataTopic     string   `yaml:"market_data_topic"`
	GroupID             string   `yaml:"group_id"`
}

type StoreConfig struct {
	ArchivePath string `yaml:"archive_path"`
	LedgerPath  string `yaml:"ledger_path"`
}

type MatchingConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	RetryInterval  string        `yaml:"retry_interval"`
	ParsedInterval time.Duration `yaml:"-"`
}

// Load reads the YAML configuration and injects venue credentials from a
// .env file next to it (or the process environment).
func Load(filename string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(filename), ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("unable to open config file: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config file: %w", err)
	}

	cfg.Venue.Username = os.Getenv("VENUE_USERNAME")
	cfg.Venue.Password = os.Getenv("VENUE_PASSWORD")
	if cfg.Venue.Username == "" || cfg.Venue.Password == "" {
		log.Warn().Msg("venue credentials are empty")
	}

	if cfg.Matching.MaxAttempts == 0 {
		cfg.Matching.MaxAttempts = 100
	}
	if cfg.Matching.RetryInterval == "" {
		cfg.Matching.RetryInterval = "500ms"
	}
	cfg.Matching.ParsedInterval, err = time.ParseDuration(cfg.Matching.RetryInterval)
	if err != nil {
		return nil, fmt.Errorf("unable to parse retry interval: %w", err)
	}

	return &cfg, nil
}
