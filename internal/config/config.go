package config

import (
	"os"
	"strconv"
	"time"

	"intraportal/pkg/config"
)

type LogConfig struct {
	Mode  string `yaml:"mode"`  // development / production
	Level string `yaml:"level"` // debug / info / warn / error
}

// ImportConfig XML 导入相关配置
type ImportConfig struct {
	EmailDomain string `yaml:"email_domain"`
	LockTTL     string `yaml:"lock_ttl"`
	MaxUploadMB int64  `yaml:"max_upload_mb"`
}

func (c ImportConfig) LockTTLOrDefault() time.Duration {
	d, err := time.ParseDuration(c.LockTTL)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

func (c ImportConfig) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

type OutboxConfig struct {
	Interval   string `yaml:"interval"`
	BatchSize  int    `yaml:"batch_size"`
	MaxRetries int    `yaml:"max_retries"`
	// 启动时把 failed 事件重新放回队列
	ReplayFailedOnStart bool `yaml:"replay_failed_on_start"`
}

func (c OutboxConfig) IntervalOrDefault() time.Duration {
	d, err := time.ParseDuration(c.Interval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

type DedupConfig struct {
	TTL string `yaml:"ttl"`
}

func (c DedupConfig) TTLOrDefault() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

type Config struct {
	ServiceName string              `yaml:"service_name"`
	Version     string              `yaml:"version"`
	Log         LogConfig           `yaml:"log"`
	DB          config.DBConfig     `yaml:"db"`
	MQ          config.MQConfig     `yaml:"mq"`
	Redis       config.RedisConfig  `yaml:"redis"`
	JWT         config.JWTConfig    `yaml:"jwt"`
	Server      config.ServerConfig `yaml:"server"`
	OTel        config.OTelConfig   `yaml:"otel"`
	Import      ImportConfig        `yaml:"import"`
	Outbox      OutboxConfig        `yaml:"outbox"`
	Dedup       DedupConfig         `yaml:"dedup"`
}

// Load 读取 config/<env>.yaml，再用环境变量覆盖
func Load() (*Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	applyEnv(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideOTelFromEnv(&cfg.OTel)
	if mode := os.Getenv("LOG_MODE"); mode != "" {
		cfg.Log.Mode = mode
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if domain := os.Getenv("IMPORT_EMAIL_DOMAIN"); domain != "" {
		cfg.Import.EmailDomain = domain
	}
	if mb := os.Getenv("IMPORT_MAX_UPLOAD_MB"); mb != "" {
		if n, err := strconv.ParseInt(mb, 10, 64); err == nil {
			cfg.Import.MaxUploadMB = n
		}
	}
}
