package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// StockPolicy selects when an order's quantities leave product stock.
type StockPolicy string

const (
	// StockPolicyReserve decrements stock when the order is placed.
	StockPolicyReserve StockPolicy = "reserve"
	// StockPolicyDeductOnComplete only checks stock at placement and
	// decrements it when the order is completed.
	StockPolicyDeductOnComplete StockPolicy = "deduct_on_complete"
)

type Config struct {
	Server Server `yaml:"server"`

	Database Database `yaml:"database"`

	JWT JWT `yaml:"jwt"`

	Log Log `yaml:"log"`

	Orders Orders `yaml:"orders"`
}

type Server struct {
	Address         string        `yaml:"address"`
	Mode            string        `yaml:"mode"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// AllowedOrigins restricts websocket upgrades; empty allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type JWT struct {
	Secret    string `yaml:"secret"`
	ExpiresIn int    `yaml:"expires_in"` // In Hours
}

type Database struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	User             string        `yaml:"user"`
	Password         string        `yaml:"password"`
	DBName           string        `yaml:"dbname"`
	SSLMode          string        `yaml:"sslmode"`
	MigrationsPath   string        `yaml:"migrations_path"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
	TxTimeout        time.Duration `yaml:"tx_timeout"`
	TxRetries        uint64        `yaml:"tx_retries"`
	ConnectRetries   uint64        `yaml:"connect_retries"`
}

type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

type Orders struct {
	StockPolicy     StockPolicy `yaml:"stock_policy"`
	RestockOnCancel bool        `yaml:"restock_on_cancel"`
}

// Default returns the configuration used for any field the file leaves out.
func Default() Config {
	return Config{
		Server: Server{
			Address:         ":8080",
			Mode:            "release",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: Database{
			Host:             "localhost",
			Port:             5432,
			SSLMode:          "disable",
			MigrationsPath:   "file://migrations",
			StatementTimeout: 5 * time.Second,
			TxTimeout:        10 * time.Second,
			TxRetries:        3,
			ConnectRetries:   5,
		},
		JWT: JWT{
			ExpiresIn: 2,
		},
		Log: Log{
			Level: "info",
		},
		Orders: Orders{
			StockPolicy:     StockPolicyReserve,
			RestockOnCancel: true,
		},
	}
}

func Load() (*Config, error) {
	configPath := "configs/development.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	return LoadFile(configPath)
}

// LoadFile reads the YAML file at path over the defaults, then applies
// environment overrides for secrets.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := Default()
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWT.Secret = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.JWT.ExpiresIn <= 0 {
		return fmt.Errorf("jwt.expires_in must be positive")
	}
	switch c.Orders.StockPolicy {
	case StockPolicyReserve, StockPolicyDeductOnComplete:
	default:
		return fmt.Errorf("orders.stock_policy %q is not one of %q, %q",
			c.Orders.StockPolicy, StockPolicyReserve, StockPolicyDeductOnComplete)
	}
	if c.Database.TxTimeout <= 0 {
		return fmt.Errorf("database.tx_timeout must be positive")
	}
	return nil
}
