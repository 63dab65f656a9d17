package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	MySQL     MySQLConfig     `mapstructure:"mysql"`
	Leader    LeaderConfig    `mapstructure:"leader"`
	Instance  InstanceConfig  `mapstructure:"instance"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Lock      LockConfig      `mapstructure:"lock"`
	Bidding   BiddingConfig   `mapstructure:"bidding"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrateOnStart  bool          `mapstructure:"migrate_on_start"`
}

type LeaderConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

// StorageConfig selects the ledger and state stores: "mysql" or "memory".
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

// LockConfig selects the per-item lock: "local" for a single instance,
// "redis" when several instances accept bids for the same items. When unset
// it follows the storage driver: "redis" for mysql, "local" for memory.
type LockConfig struct {
	Driver        string        `mapstructure:"driver"`
	TTL           time.Duration `mapstructure:"ttl"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
	WaitTimeout   time.Duration `mapstructure:"wait_timeout"`
}

type BiddingConfig struct {
	MaxResolutionRounds int     `mapstructure:"max_resolution_rounds"`
	DefaultIncrement    float64 `mapstructure:"default_increment"`
}

type SchedulerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel", "auction_events")
	v.SetDefault("mysql.dsn", "auction_user:auction_pass@tcp(localhost:3306)/auction_db?parseTime=true")
	v.SetDefault("mysql.max_open_conns", 25)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("mysql.migrate_on_start", true)
	v.SetDefault("leader.ttl", 30*time.Second)
	v.SetDefault("instance.id", "auction-service-1")
	v.SetDefault("storage.driver", "mysql")
	v.SetDefault("lock.ttl", 10*time.Second)
	v.SetDefault("lock.retry_interval", 25*time.Millisecond)
	v.SetDefault("lock.wait_timeout", 5*time.Second)
	v.SetDefault("bidding.max_resolution_rounds", 10000)
	v.SetDefault("bidding.default_increment", 1.0)
	v.SetDefault("scheduler.interval", time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
}

func bindEnv(v *viper.Viper) {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Environment variable mappings
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.host", "SERVER_HOST")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")
	v.BindEnv("redis.channel", "REDIS_CHANNEL")
	v.BindEnv("mysql.dsn", "MYSQL_DSN")
	v.BindEnv("mysql.max_open_conns", "MYSQL_MAX_OPEN_CONNS")
	v.BindEnv("mysql.max_idle_conns", "MYSQL_MAX_IDLE_CONNS")
	v.BindEnv("mysql.conn_max_lifetime", "MYSQL_CONN_MAX_LIFETIME")
	v.BindEnv("mysql.migrate_on_start", "MYSQL_MIGRATE_ON_START")
	v.BindEnv("leader.ttl", "LEADER_TTL")
	v.BindEnv("instance.id", "INSTANCE_ID")
	v.BindEnv("storage.driver", "STORAGE_DRIVER")
	v.BindEnv("lock.driver", "LOCK_DRIVER")
	v.BindEnv("lock.ttl", "LOCK_TTL")
	v.BindEnv("lock.retry_interval", "LOCK_RETRY_INTERVAL")
	v.BindEnv("lock.wait_timeout", "LOCK_WAIT_TIMEOUT")
	v.BindEnv("bidding.max_resolution_rounds", "BIDDING_MAX_RESOLUTION_ROUNDS")
	v.BindEnv("bidding.default_increment", "BIDDING_DEFAULT_INCREMENT")
	v.BindEnv("scheduler.interval", "SCHEDULER_INTERVAL")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.encoding", "LOG_ENCODING")
}

func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Configuration file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/auction-market/")

	bindEnv(v)

	// Read configuration file (optional - will use defaults/env vars if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	return unmarshal(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	config.applyDerivedDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyDerivedDefaults() {
	if c.Lock.Driver != "" {
		return
	}
	if c.Storage.Driver == "mysql" {
		c.Lock.Driver = "redis"
	} else {
		c.Lock.Driver = "local"
	}
}

// Validate rejects combinations the services cannot start with. Shared
// mysql storage needs the redis lock, since a process-local lock does not
// serialize bids placed through other instances.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "mysql", "memory":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Lock.Driver {
	case "local", "redis":
	default:
		return fmt.Errorf("config: unknown lock driver %q", c.Lock.Driver)
	}
	if c.Storage.Driver == "mysql" && c.Lock.Driver == "local" {
		return fmt.Errorf("config: storage driver mysql requires lock driver redis")
	}
	if c.Bidding.MaxResolutionRounds <= 0 {
		return fmt.Errorf("config: bidding.max_resolution_rounds must be positive")
	}
	if c.Bidding.DefaultIncrement < 0 {
		return fmt.Errorf("config: bidding.default_increment must not be negative")
	}
	return nil
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Server: %s:%d, Redis: %s, Storage: %s, Lock: %s, Instance: %s",
		c.Server.Host,
		c.Server.Port,
		c.Redis.Address,
		c.Storage.Driver,
		c.Lock.Driver,
		c.Instance.ID,
	)
}
