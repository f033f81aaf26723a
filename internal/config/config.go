// Package config provides configuration management using viper.
// It supports loading from YAML files, an optional .env file and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	AMQP      AMQPConfig      `mapstructure:"amqp"`
	Log       LogConfig       `mapstructure:"log"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Whitelist WhitelistConfig `mapstructure:"whitelist"`
	Wager     WagerConfig     `mapstructure:"wager"`
	House     HouseConfig     `mapstructure:"house"`
	Mines     MinesConfig     `mapstructure:"mines"`
	CoinFlip  CoinFlipConfig  `mapstructure:"coinflip"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token string `mapstructure:"token"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	// Driver selects the store: "postgres" or "memory".
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// RedisConfig holds the reservation store connection. An empty Addr keeps
// reservations in process memory.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// AMQPConfig holds the match event publisher settings. An empty URL disables publishing.
type AMQPConfig struct {
	URL        string `mapstructure:"url"`
	Exchange   string `mapstructure:"exchange"`
	RoutingKey string `mapstructure:"routing_key"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// AdminConfig holds admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// WhitelistConfig holds chat whitelist configuration.
type WhitelistConfig struct {
	Chats []int64 `mapstructure:"chats"`
}

// WagerConfig holds the settlement and lifecycle parameters shared by every game.
type WagerConfig struct {
	FeeRate                  float64       `mapstructure:"fee_rate"`
	WithdrawalFeeRate        float64       `mapstructure:"withdrawal_fee_rate"`
	ReferralRewardPercentage float64       `mapstructure:"referral_reward_percentage"`
	MoneyPlaces              int32         `mapstructure:"money_places"`
	HouseAccountID           int64         `mapstructure:"house_account_id"`
	HouseMinStake            float64       `mapstructure:"house_min_stake"`
	HouseMaxStake            float64       `mapstructure:"house_max_stake"`
	PendingTTL               time.Duration `mapstructure:"pending_ttl"`
	SessionTTL               time.Duration `mapstructure:"session_ttl"`
	SweepInterval            time.Duration `mapstructure:"sweep_interval"`
}

// HouseConfig describes the distribution the house actor draws its rolls from.
// Values[i] is drawn with probability Weights[i] / sum(Weights).
type HouseConfig struct {
	Values  []int `mapstructure:"values"`
	Weights []int `mapstructure:"weights"`
}

// MinesConfig holds mine field configuration. An empty Ladder uses the built-in table.
type MinesConfig struct {
	Rows         int         `mapstructure:"rows"`
	Cols         int         `mapstructure:"cols"`
	MinMines     int         `mapstructure:"min_mines"`
	MaxMines     int         `mapstructure:"max_mines"`
	DefaultMines int         `mapstructure:"default_mines"`
	Ladder       [][]float64 `mapstructure:"ladder"`
}

// CoinFlipConfig holds coin flip configuration.
type CoinFlipConfig struct {
	MinStake    float64 `mapstructure:"min_stake"`
	MaxStake    float64 `mapstructure:"max_stake"`
	Nonce       int64   `mapstructure:"nonce"`
	AlwaysHouse bool    `mapstructure:"always_house"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Fee returns the fee rate as a decimal.
func (w *WagerConfig) Fee() decimal.Decimal {
	return decimal.NewFromFloat(w.FeeRate)
}

// WithdrawalFee returns the withdrawal fee rate as a decimal.
func (w *WagerConfig) WithdrawalFee() decimal.Decimal {
	return decimal.NewFromFloat(w.WithdrawalFeeRate)
}

// ReferralShare returns the referral reward as a fraction of the fee.
func (w *WagerConfig) ReferralShare() decimal.Decimal {
	return decimal.NewFromFloat(w.ReferralRewardPercentage).Div(decimal.NewFromInt(100))
}

// HouseBand returns the inclusive stake band for games played against the house.
func (w *WagerConfig) HouseBand() (decimal.Decimal, decimal.Decimal) {
	return decimal.NewFromFloat(w.HouseMinStake), decimal.NewFromFloat(w.HouseMaxStake)
}

// Band returns the inclusive coin flip stake band.
func (c *CoinFlipConfig) Band() (decimal.Decimal, decimal.Decimal) {
	return decimal.NewFromFloat(c.MinStake), decimal.NewFromFloat(c.MaxStake)
}

// LadderTable converts the configured ladder into decimals. It returns nil when no
// ladder is configured.
func (m *MinesConfig) LadderTable() [][]decimal.Decimal {
	if len(m.Ladder) == 0 {
		return nil
	}
	table := make([][]decimal.Decimal, len(m.Ladder))
	for i, row := range m.Ladder {
		table[i] = make([]decimal.Decimal, len(row))
		for j, v := range row {
			table[i][j] = decimal.NewFromFloat(v)
		}
	}
	return table
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	// A missing .env file is fine, the environment may already be populated
	_ = godotenv.Load()

	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase
	// e.g., BOT_TOKEN, DATABASE_HOST, WAGER_FEE_RATE
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "wagerbot")
	v.SetDefault("database.name", "wagerbot")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("redis.key_prefix", "wager")
	v.SetDefault("amqp.exchange", "wager.matches")
	v.SetDefault("amqp.routing_key", "match.settled")
	v.SetDefault("log.level", "info")

	v.SetDefault("wager.fee_rate", 0.05)
	v.SetDefault("wager.withdrawal_fee_rate", 0.02)
	v.SetDefault("wager.referral_reward_percentage", 10)
	v.SetDefault("wager.money_places", 2)
	v.SetDefault("wager.house_account_id", 9999)
	v.SetDefault("wager.house_min_stake", 1)
	v.SetDefault("wager.house_max_stake", 100)
	v.SetDefault("wager.pending_ttl", "10m")
	v.SetDefault("wager.session_ttl", "30m")
	v.SetDefault("wager.sweep_interval", "1m")

	v.SetDefault("house.values", []int{3, 4, 5, 6})
	v.SetDefault("house.weights", []int{1, 2, 2, 1})

	v.SetDefault("mines.rows", 5)
	v.SetDefault("mines.cols", 5)
	v.SetDefault("mines.min_mines", 1)
	v.SetDefault("mines.max_mines", 5)
	v.SetDefault("mines.default_mines", 3)

	v.SetDefault("coinflip.min_stake", 1)
	v.SetDefault("coinflip.max_stake", 100)
	v.SetDefault("coinflip.nonce", 1)
	v.SetDefault("coinflip.always_house", true)
}

// Validate checks the values that would otherwise surface as settlement errors.
func (c *Config) Validate() error {
	if c.Wager.FeeRate < 0 || c.Wager.FeeRate >= 1 {
		return errors.New("wager.fee_rate must be in [0, 1)")
	}
	if c.Wager.ReferralRewardPercentage < 0 || c.Wager.ReferralRewardPercentage > 100 {
		return errors.New("wager.referral_reward_percentage must be in [0, 100]")
	}
	if c.Wager.MoneyPlaces < 0 {
		return errors.New("wager.money_places must not be negative")
	}
	if c.Wager.HouseMinStake <= 0 || c.Wager.HouseMaxStake < c.Wager.HouseMinStake {
		return errors.New("wager house stake band is empty")
	}
	if len(c.House.Values) == 0 || len(c.House.Values) != len(c.House.Weights) {
		return errors.New("house.values and house.weights must be non-empty and of equal length")
	}
	if c.Mines.Rows <= 0 || c.Mines.Cols <= 0 {
		return errors.New("mines field must have positive dimensions")
	}
	if c.Mines.MinMines < 1 || c.Mines.MaxMines < c.Mines.MinMines || c.Mines.MaxMines >= c.Mines.Rows*c.Mines.Cols {
		return errors.New("mines count band does not fit the field")
	}
	if c.Mines.DefaultMines < c.Mines.MinMines || c.Mines.DefaultMines > c.Mines.MaxMines {
		return errors.New("mines.default_mines is outside the mines count band")
	}
	if c.CoinFlip.MaxStake < c.CoinFlip.MinStake {
		return errors.New("coinflip stake band is empty")
	}
	return nil
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admin.IDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsChatAllowed checks if a chat ID is in the whitelist.
func (c *Config) IsChatAllowed(chatID int64) bool {
	// Empty whitelist means all chats are allowed
	if len(c.Whitelist.Chats) == 0 {
		return true
	}
	for _, id := range c.Whitelist.Chats {
		if id == chatID {
			return true
		}
	}
	return false
}
