package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DBConfig 数据库配置
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
	// 慢查询阈值，例如 "200ms"
	SlowQuery string `yaml:"slow_query"`
}

// DSN 拼接 PostgreSQL 连接串
func (c DBConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.Name + "?sslmode=" + sslMode
}

// SlowQueryThreshold 解析慢查询阈值，解析失败时返回 0（使用默认值）
func (c DBConfig) SlowQueryThreshold() time.Duration {
	d, err := time.ParseDuration(c.SlowQuery)
	if err != nil {
		return 0
	}
	return d
}

// MQConfig 消息队列配置
type MQConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// Validate 签名密钥不能为空，也不能是未替换的占位符
func (c JWTConfig) Validate() error {
	if strings.TrimSpace(c.Secret) == "" {
		return errors.New("jwt.secret is empty")
	}
	if HasPlaceholder(c.Secret) {
		return fmt.Errorf("jwt.secret has an unresolved placeholder %q", c.Secret)
	}
	return nil
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port string `yaml:"port"`
	// 关闭时等待请求完成的最长时间，例如 "30s"
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// ShutdownTimeoutOrDefault 返回优雅退出超时时间
func (c ServerConfig) ShutdownTimeoutOrDefault() time.Duration {
	d, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// OTelConfig 链路追踪配置
type OTelConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// OverrideDBFromEnv 从环境变量覆盖数据库配置
func OverrideDBFromEnv(cfg *DBConfig) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Name = name
	}
	if sslMode := os.Getenv("DB_SSLMODE"); sslMode != "" {
		cfg.SSLMode = sslMode
	}
}

// OverrideMQFromEnv 从环境变量覆盖MQ配置
func OverrideMQFromEnv(cfg *MQConfig) {
	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.URL = url
	}
}

// OverrideRedisFromEnv 从环境变量覆盖Redis配置
func OverrideRedisFromEnv(cfg *RedisConfig) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			cfg.DB = n
		}
	}
}

// OverrideJWTFromEnv 从环境变量覆盖JWT配置
func OverrideJWTFromEnv(cfg *JWTConfig) {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Secret = secret
	}
	if issuer := os.Getenv("JWT_ISSUER"); issuer != "" {
		cfg.Issuer = issuer
	}
}

// OverrideServerFromEnv 从环境变量覆盖服务器配置
func OverrideServerFromEnv(cfg *ServerConfig) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
}

// OverrideOTelFromEnv 从环境变量覆盖链路追踪配置
func OverrideOTelFromEnv(cfg *OTelConfig) {
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("OTEL_ENABLED"))); v != "" {
		cfg.Enabled = v == "1" || v == "true" || v == "yes" || v == "on"
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		cfg.Endpoint = endpoint
	}
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE"))); v != "" {
		cfg.Insecure = v == "1" || v == "true" || v == "yes" || v == "on"
	}
	if ratio := os.Getenv("OTEL_SAMPLER_RATIO"); ratio != "" {
		if f, err := strconv.ParseFloat(ratio, 64); err == nil {
			cfg.SampleRatio = f
		}
	}
}
