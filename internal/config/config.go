package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode     string `mapstructure:"mode"`
	Port     int    `mapstructure:"port"`
	Instance string `mapstructure:"instance"`

	ReadLimit        int64         `mapstructure:"read_limit"`
	HeartbeatPeriod  time.Duration `mapstructure:"heartbeat_period"`
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat_timeout"`

	ConnectRateLimit  int           `mapstructure:"connect_rate_limit"`
	ConnectRateWindow time.Duration `mapstructure:"connect_rate_window"`

	DefaultRoomCapacity int  `mapstructure:"default_room_capacity"`
	AutoCreateRooms     bool `mapstructure:"auto_create_rooms"`
	AuthFailOpen        bool `mapstructure:"auth_fail_open"`

	JWTSecret      string `mapstructure:"jwt_secret"`
	MediaEngineURL string `mapstructure:"media_engine_url"`
	AuditDBPath    string `mapstructure:"audit_db_path"`
	WebhookURL     string `mapstructure:"webhook_url"`
	WebhookSecret  string `mapstructure:"webhook_secret"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("instance", "")
	v.SetDefault("read_limit", 65536)
	v.SetDefault("heartbeat_period", "30s")
	v.SetDefault("heartbeat_timeout", "60s")
	v.SetDefault("connect_rate_limit", 5)
	v.SetDefault("connect_rate_window", "10s")
	v.SetDefault("default_room_capacity", 100)
	v.SetDefault("auto_create_rooms", true)
	v.SetDefault("auth_fail_open", false)
	v.SetDefault("media_engine_url", "http://127.0.0.1:3000")
	v.SetDefault("audit_db_path", "")
	v.SetDefault("webhook_url", "")
	v.SetDefault("webhook_secret", "")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
