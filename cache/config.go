package cache

import (
	"net"
	"strconv"
	"time"

	"github.com/Aiuj/faciliter-lib-go/internal/envutil"
)

const (
	// DefaultPrefix 是键前缀的默认值。
	DefaultPrefix = "faciliter"

	// DefaultTTL 是条目的默认过期时间。
	DefaultTTL = time.Hour

	defaultHost    = "localhost"
	defaultPort    = 6379
	defaultTimeout = 5 * time.Second
)

// Config 是 Redis 缓存门面的配置。
type Config struct {
	Host     string `json:"host" yaml:"host" env:"REDIS_HOST"`
	Port     int    `json:"port" yaml:"port" env:"REDIS_PORT"`
	Password string `json:"password,omitempty" yaml:"password,omitempty" env:"REDIS_PASSWORD"`
	DB       int    `json:"db" yaml:"db" env:"REDIS_DB"`

	// Prefix 是所有键的公共前缀，隔离同一 Redis 上的不同应用。
	Prefix string `json:"prefix" yaml:"prefix" env:"REDIS_PREFIX"`

	// TenantID 非空时作为第二级前缀，隔离同一应用下的不同租户。
	TenantID string `json:"tenant_id,omitempty" yaml:"tenant_id,omitempty" env:"REDIS_TENANT_ID"`

	// DefaultTTL 是 Set 未指定 ttl 时的过期时间。
	DefaultTTL time.Duration `json:"default_ttl" yaml:"default_ttl" env:"REDIS_TTL_SECONDS"`

	// Timeout 约束拨号与单次操作。
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" env:"REDIS_TIMEOUT_SECONDS"`

	// Enabled 为 false 时 New 返回 ErrDisabled；NewOrNil 返回 nil 缓存。
	Enabled bool `json:"enabled" yaml:"enabled" env:"REDIS_ENABLED"`

	// TLS 启用加密连接（托管 Redis 常见要求）。
	TLS bool `json:"tls,omitempty" yaml:"tls,omitempty" env:"REDIS_TLS"`
}

// DefaultConfig 返回本地开发用的默认配置。
func DefaultConfig() Config {
	return Config{
		Host:       defaultHost,
		Port:       defaultPort,
		Prefix:     DefaultPrefix,
		DefaultTTL: DefaultTTL,
		Timeout:    defaultTimeout,
		Enabled:    true,
	}
}

// FromEnv 从环境变量读取缓存配置。
// REDIS_TTL_SECONDS 接受裸秒数或 time.ParseDuration 语法。
func FromEnv() Config {
	return Config{
		Host:       envutil.String(defaultHost, "REDIS_HOST"),
		Port:       envutil.Int(defaultPort, "REDIS_PORT"),
		Password:   envutil.String("", "REDIS_PASSWORD"),
		DB:         envutil.Int(0, "REDIS_DB"),
		Prefix:     envutil.String(DefaultPrefix, "REDIS_PREFIX"),
		TenantID:   envutil.String("", "REDIS_TENANT_ID"),
		DefaultTTL: envutil.Duration(DefaultTTL, "REDIS_TTL_SECONDS"),
		Timeout:    envutil.Duration(defaultTimeout, "REDIS_TIMEOUT_SECONDS"),
		Enabled:    envutil.Bool(true, "REDIS_ENABLED"),
		TLS:        envutil.Bool(false, "REDIS_TLS"),
	}
}

// Addr 返回 host:port 形式的连接地址。
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func applyDefaults(cfg *Config) {
	if cfg.Host == "" {
		cfg.Host = defaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.DefaultTTL == 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
}
