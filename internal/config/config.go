package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Worker   WorkerConfig   `yaml:"worker"`
	Economy  EconomyConfig  `yaml:"economy"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxConnections  int           `yaml:"max_connections"`
	MinConnections  int           `yaml:"min_connections"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
}

// ConnectionString returns the PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslMode,
	)
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// KafkaConfig holds Kafka connection configuration
type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`
	CommandTopic string   `yaml:"command_topic"`
	EventTopic   string   `yaml:"event_topic"`
	GroupID      string   `yaml:"group_id"`
	Enabled      bool     `yaml:"enabled"`
}

// WorkerConfig holds the scheduler tick configuration
type WorkerConfig struct {
	Interval     time.Duration `yaml:"interval"`
	Enabled      bool          `yaml:"enabled"`
	BonusBatch   int           `yaml:"bonus_batch"`
	RichListSize int           `yaml:"rich_list_size"`
}

// EconomyConfig groups the economy tunables
type EconomyConfig struct {
	Games      GamesConfig     `yaml:"games"`
	Theft      TheftConfig     `yaml:"theft"`
	Arrest     ArrestConfig    `yaml:"arrest"`
	Bonus      BonusConfig     `yaml:"bonus"`
	Transfer   TransferConfig  `yaml:"transfer"`
	Marriage   MarriageConfig  `yaml:"marriage"`
	Privileges []PrivilegeItem `yaml:"privileges"`
}

// GamesConfig holds the payout multiplier table and stake bounds.
// Multipliers are total-return factors: a winning 100-coin straight bet
// at 36 pays 3600 back. They are deployment tuning, not engine rules.
type GamesConfig struct {
	StraightMultiplier    int64 `yaml:"straight_multiplier"`
	ColorMultiplier       int64 `yaml:"color_multiplier"`
	ParityMultiplier      int64 `yaml:"parity_multiplier"`
	DozenMultiplier       int64 `yaml:"dozen_multiplier"`
	DieMultiplier         int64 `yaml:"die_multiplier"`
	PairSumMultiplier     int64 `yaml:"pair_sum_multiplier"`
	PairPartialMultiplier int64 `yaml:"pair_partial_multiplier"`
	MinStake              int64 `yaml:"min_stake"`
}

// TheftConfig holds theft rate and daily quota settings
type TheftConfig struct {
	RatePercent int           `yaml:"rate_percent"`
	DailyLimit  int           `yaml:"daily_limit"`
	QuotaWindow time.Duration `yaml:"quota_window"`
}

// ArrestConfig holds per-officer arrest pacing
type ArrestConfig struct {
	OfficerCooldown time.Duration `yaml:"officer_cooldown"`
}

// BonusConfig holds the periodic bonus grant settings. PrivilegeAmounts
// maps a privilege kind to the additive bonus it earns on top of the
// base amount; held kinds stack.
type BonusConfig struct {
	Period           time.Duration    `yaml:"period"`
	BaseAmount       int64            `yaml:"base_amount"`
	PrivilegeAmounts map[string]int64 `yaml:"privilege_amounts"`
}

// TransferConfig holds the sliding-window transfer quota
type TransferConfig struct {
	Window       time.Duration `yaml:"window"`
	MaxPerWindow int           `yaml:"max_per_window"`
}

// MarriageConfig holds the proposal lifetime. A marriage or divorce
// request not answered within the TTL lapses and must be filed again.
type MarriageConfig struct {
	ProposalTTL time.Duration `yaml:"proposal_ttl"`
}

// PrivilegeItem is one purchasable catalog entry. A zero duration means
// the privilege is permanent.
type PrivilegeItem struct {
	Kind     string        `yaml:"kind"`
	Price    int64         `yaml:"price"`
	Duration time.Duration `yaml:"duration"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply defaults
	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}

	// PostgreSQL defaults
	if c.Postgres.Host == "" {
		c.Postgres.Host = "localhost"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.MaxConnections == 0 {
		c.Postgres.MaxConnections = 50
	}
	if c.Postgres.MinConnections == 0 {
		c.Postgres.MinConnections = 5
	}
	if c.Postgres.MaxConnLifetime == 0 {
		c.Postgres.MaxConnLifetime = 1 * time.Hour
	}
	if c.Postgres.MaxConnIdleTime == 0 {
		c.Postgres.MaxConnIdleTime = 30 * time.Minute
	}

	// Redis defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 100
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 10
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}

	// Kafka defaults
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.CommandTopic == "" {
		c.Kafka.CommandTopic = "economy-commands"
	}
	if c.Kafka.EventTopic == "" {
		c.Kafka.EventTopic = "economy-events"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "economy-core"
	}

	// Worker defaults
	if c.Worker.Interval == 0 {
		c.Worker.Interval = 5 * time.Minute
	}
	if c.Worker.BonusBatch == 0 {
		c.Worker.BonusBatch = 500
	}
	if c.Worker.RichListSize == 0 {
		c.Worker.RichListSize = 100
	}

	// Economy defaults
	g := &c.Economy.Games
	if g.StraightMultiplier == 0 {
		g.StraightMultiplier = 36
	}
	if g.ColorMultiplier == 0 {
		g.ColorMultiplier = 2
	}
	if g.ParityMultiplier == 0 {
		g.ParityMultiplier = 2
	}
	if g.DozenMultiplier == 0 {
		g.DozenMultiplier = 3
	}
	if g.DieMultiplier == 0 {
		g.DieMultiplier = 6
	}
	if g.PairSumMultiplier == 0 {
		g.PairSumMultiplier = 12
	}
	if g.PairPartialMultiplier == 0 {
		g.PairPartialMultiplier = 3
	}
	if g.MinStake == 0 {
		g.MinStake = 1
	}

	if c.Economy.Theft.RatePercent == 0 {
		c.Economy.Theft.RatePercent = 10
	}
	if c.Economy.Theft.DailyLimit == 0 {
		c.Economy.Theft.DailyLimit = 3
	}
	if c.Economy.Theft.QuotaWindow == 0 {
		c.Economy.Theft.QuotaWindow = 24 * time.Hour
	}

	if c.Economy.Arrest.OfficerCooldown == 0 {
		c.Economy.Arrest.OfficerCooldown = 3 * time.Hour
	}

	if c.Economy.Bonus.Period == 0 {
		c.Economy.Bonus.Period = 24 * time.Hour
	}
	if c.Economy.Bonus.BaseAmount == 0 {
		c.Economy.Bonus.BaseAmount = 100
	}
	if c.Economy.Bonus.PrivilegeAmounts == nil {
		c.Economy.Bonus.PrivilegeAmounts = map[string]int64{
			"thief":  50,
			"police": 75,
		}
	}

	if c.Economy.Transfer.Window == 0 {
		c.Economy.Transfer.Window = 6 * time.Hour
	}
	if c.Economy.Transfer.MaxPerWindow == 0 {
		c.Economy.Transfer.MaxPerWindow = 5
	}

	if c.Economy.Marriage.ProposalTTL == 0 {
		c.Economy.Marriage.ProposalTTL = 72 * time.Hour
	}

	if len(c.Economy.Privileges) == 0 {
		c.Economy.Privileges = []PrivilegeItem{
			{Kind: "thief", Price: 5000, Duration: 7 * 24 * time.Hour},
			{Kind: "police", Price: 8000, Duration: 7 * 24 * time.Hour},
			{Kind: "crown", Price: 25000},
		}
	}
}

// PrivilegeItemFor looks up a purchasable catalog entry by kind.
func (c *EconomyConfig) PrivilegeItemFor(kind string) (PrivilegeItem, bool) {
	for _, item := range c.Privileges {
		if item.Kind == kind {
			return item, true
		}
	}
	return PrivilegeItem{}, false
}

// DefaultConfig returns a configuration with all defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Worker.Enabled = true
	return cfg
}
