package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   Server
	Database Database
	Auth     Auth
	Messages Messages
	Log      Log
}

type Server struct {
	Addr         string
	Mode         string
	AllowOrigins []string `mapstructure:"allow_origins"`
}

type Database struct {
	Driver string
	DSN    string
}

type Auth struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type Messages struct {
	MaxLength      int `mapstructure:"max_length"`
	DecryptWorkers int `mapstructure:"decrypt_workers"`
	QueueSize      int `mapstructure:"queue_size"`
}

type Log struct {
	Level  string
	Pretty bool
}

const envPrefix = "CHAT"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8082")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.allow_origins", []string{"*"})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "listing-chat.db")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("messages.max_length", 2000)
	v.SetDefault("messages.decrypt_workers", runtime.GOMAXPROCS(0))
	v.SetDefault("messages.queue_size", 256)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Load reads .env (if any), the optional YAML file at path, and CHAT_*
// environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Messages.MaxLength <= 0 {
		return fmt.Errorf("messages.max_length must be positive")
	}
	if c.Messages.DecryptWorkers <= 0 {
		return fmt.Errorf("messages.decrypt_workers must be positive")
	}
	if c.Messages.QueueSize < 0 {
		return fmt.Errorf("messages.queue_size must not be negative")
	}
	return nil
}
