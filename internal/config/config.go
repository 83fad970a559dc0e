package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Engine    EngineConfig    `yaml:"engine"`
	Assistant AssistantConfig `yaml:"assistant"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	MySQL MySQLConfig `yaml:"mysql"`
	Redis RedisConfig `yaml:"redis"`
}

type MySQLConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// EngineConfig points at the local ComfyUI instance.
type EngineConfig struct {
	BaseURL       string        `yaml:"base_url"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	PollAttempts  int           `yaml:"poll_attempts"`
	CheckInterval time.Duration `yaml:"check_interval"`
}

// AssistantConfig points at the local LLM behind its OpenAI-compatible API.
type AssistantConfig struct {
	BaseURL      string `yaml:"base_url"`
	SuggestModel string `yaml:"suggest_model"`
	RefineModel  string `yaml:"refine_model"`
}

// CacheConfig controls the on-disk artifact download cache.
type CacheConfig struct {
	Directory string        `yaml:"directory"`
	TTL       time.Duration `yaml:"ttl"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply environment variable overrides
	if baseURL := os.Getenv("COMFY_BASE_URL"); baseURL != "" {
		cfg.Engine.BaseURL = baseURL
	}
	if baseURL := os.Getenv("ASSISTANT_BASE_URL"); baseURL != "" {
		cfg.Assistant.BaseURL = baseURL
	}
	if password := os.Getenv("MYSQL_PASSWORD"); password != "" {
		cfg.Database.MySQL.Password = password
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Database.Redis.Password = password
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Engine.BaseURL == "" {
		c.Engine.BaseURL = "http://127.0.0.1:8188"
	}
	if c.Engine.PollInterval == 0 {
		c.Engine.PollInterval = 2 * time.Second
	}
	if c.Engine.PollAttempts == 0 {
		c.Engine.PollAttempts = 120
	}
	if c.Engine.CheckInterval == 0 {
		c.Engine.CheckInterval = 15 * time.Second
	}
	if c.Cache.Directory == "" {
		c.Cache.Directory = "cache/artifacts"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 24 * time.Hour
	}
}
