package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	Secret     string        `mapstructure:"secret"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`

	DBPath             string        `mapstructure:"db_path"`
	RedisAddr          string        `mapstructure:"redis_addr"`
	RedisRetryInterval time.Duration `mapstructure:"redis_retry_interval"`

	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	TypingDelay   time.Duration `mapstructure:"typing_delay"`
	ContextWindow int           `mapstructure:"context_window"`

	AvatarName string `mapstructure:"avatar_name"`
	AvatarID   string `mapstructure:"avatar_id"`

	ABTestID  string `mapstructure:"ab_test_id"`
	ABAvatarA string `mapstructure:"ab_avatar_a"`
	ABAvatarB string `mapstructure:"ab_avatar_b"`
	ABSplit   int    `mapstructure:"ab_split"`
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
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("db_path", "data/avagate.db")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_retry_interval", "60s")
	v.SetDefault("sweep_interval", "30s")
	v.SetDefault("idle_timeout", "120s")
	v.SetDefault("typing_delay", "1500ms")
	v.SetDefault("context_window", 10)
	v.SetDefault("avatar_name", "Aria")
	v.SetDefault("avatar_id", "default")
	v.SetDefault("ab_split", 50)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | DB: %s\n", cfg.Mode, cfg.Port, cfg.DBPath)
	return &cfg, nil
}
