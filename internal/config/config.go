package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/karaoke-room-system/pkg/database"
)

const appDirName = "karaoke-room"

type Config struct {
	Env            string   `mapstructure:"env"`
	Port           int      `mapstructure:"port"`
	PortSearchSpan int      `mapstructure:"port_search_span"`
	DataDir        string   `mapstructure:"data_dir"`
	CORSOrigins    []string `mapstructure:"cors_origins"`
	HostIdentity   string   `mapstructure:"host_identity"`

	YouTubeAPIKey   string        `mapstructure:"youtube_api_key"`
	YouTubeAPIBase  string        `mapstructure:"youtube_api_base"`
	MetadataTimeout time.Duration `mapstructure:"metadata_timeout"`
	SearchCacheTTL  time.Duration `mapstructure:"search_cache_ttl"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`

	MySQLHost     string `mapstructure:"mysql_host"`
	MySQLPort     string `mapstructure:"mysql_port"`
	MySQLUser     string `mapstructure:"mysql_user"`
	MySQLPassword string `mapstructure:"mysql_password"`
	MySQLDatabase string `mapstructure:"mysql_database"`

	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`

	RoomTTL             time.Duration `mapstructure:"room_ttl"`
	RoomCleanupInterval time.Duration `mapstructure:"room_cleanup_interval"`
}

// Load reads a .env file when one exists, then the environment. Every key
// has a default so the host starts with no configuration at all.
func Load(envFiles ...string) (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("env", "production")
	v.SetDefault("port", 3001)
	v.SetDefault("port_search_span", 100)
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("host_identity", defaultHostIdentity())
	v.SetDefault("youtube_api_key", "")
	v.SetDefault("youtube_api_base", "")
	v.SetDefault("metadata_timeout", "10s")
	v.SetDefault("search_cache_ttl", "30m")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("mysql_host", "")
	v.SetDefault("mysql_port", "3306")
	v.SetDefault("mysql_user", "")
	v.SetDefault("mysql_password", "")
	v.SetDefault("mysql_database", "karaoke")
	v.SetDefault("kafka_brokers", []string{})
	v.SetDefault("kafka_topic", "karaoke-room-events")
	v.SetDefault("room_ttl", "12h")
	v.SetDefault("room_cleanup_interval", "5m")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	return &cfg, nil
}

func (c *Config) Development() bool {
	return c.Env == "development"
}

// UseMySQL reports whether collections live in MySQL instead of DataDir.
func (c *Config) UseMySQL() bool {
	return c.MySQLHost != ""
}

func (c *Config) MySQL() database.Config {
	return database.Config{
		Host:     c.MySQLHost,
		Port:     c.MySQLPort,
		User:     c.MySQLUser,
		Password: c.MySQLPassword,
		Database: c.MySQLDatabase,
	}
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), appDirName)
	}
	return filepath.Join(home, ".local", "share", appDirName)
}

func defaultHostIdentity() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "karaoke-host"
	}
	return name
}
