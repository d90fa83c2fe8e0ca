package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Aiuj/faciliter-lib-go/internal/metrics"
	"github.com/Aiuj/faciliter-lib-go/internal/tlsutil"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrDisabled 表示配置禁用了缓存。需要可选缓存的调用方用 NewOrNil。
var ErrDisabled = errors.New("cache: disabled by configuration")

// =============================================================================
// 💾 缓存门面
// =============================================================================

// Cache 是带键作用域的 Redis 门面。所有键自动加上
// prefix:tenant: 前缀（tenant 为空时省略该段），不同前缀或租户的
// 两个实例互不可见。
//
// nil *Cache 是合法的空实现：全部操作安全空转（Get 返回未命中），
// 调用方无需为禁用缓存的部署写分支。
type Cache struct {
	client    *redis.Client
	cfg       Config
	keyPrefix string
	logger    *zap.Logger
	collector *metrics.Collector
}

// New 创建缓存门面并立即拨号验证。Ping 失败视为配置/环境错误返回；
// Enabled 为 false 时返回 ErrDisabled。
func New(cfg Config, logger *zap.Logger) (*Cache, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	applyDefaults(&cfg)

	opts := &redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
	}
	if cfg.TLS {
		opts.TLSConfig = tlsutil.RedisTLSConfig(cfg.Host)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: connect %s: %w", cfg.Addr(), err)
	}

	c := &Cache{
		client:    client,
		cfg:       cfg,
		keyPrefix: buildKeyPrefix(cfg.Prefix, cfg.TenantID),
		logger:    logger.With(zap.String("component", "cache")),
		collector: metrics.Default(),
	}

	c.logger.Info("cache connected",
		zap.String("addr", cfg.Addr()),
		zap.String("prefix", cfg.Prefix),
		zap.String("tenant", cfg.TenantID))
	return c, nil
}

// NewOrNil 同 New，但把"缓存被禁用"当作正常情况：返回 nil 缓存且无错误。
// 连接失败仍然报错。
func NewOrNil(cfg Config, logger *zap.Logger) (*Cache, error) {
	c, err := New(cfg, logger)
	if errors.Is(err, ErrDisabled) {
		if logger != nil {
			logger.Info("cache disabled, operating without cache")
		}
		return nil, nil
	}
	return c, err
}

func buildKeyPrefix(prefix, tenantID string) string {
	if tenantID == "" {
		return prefix + ":"
	}
	return prefix + ":" + tenantID + ":"
}

// Key 返回 key 在 Redis 中的完整作用域形式。
func (c *Cache) Key(key string) string {
	if c == nil {
		return key
	}
	return c.keyPrefix + key
}

// =============================================================================
// 🎯 核心操作
// =============================================================================

// resolveTTL 把调用方的 ttl 变参翻译为 Redis 过期时间：
// 省略或 0 → DefaultTTL；负值 → 永不过期。
func (c *Cache) resolveTTL(ttl []time.Duration) time.Duration {
	d := c.cfg.DefaultTTL
	if len(ttl) > 0 && ttl[0] != 0 {
		d = ttl[0]
	}
	if d < 0 {
		return 0
	}
	return d
}

// Set 将 value 序列化为 JSON 后写入。
func (c *Cache) Set(ctx context.Context, key string, value any, ttl ...time.Duration) error {
	if c == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		c.collector.RecordCacheError(c.cfg.Prefix, "set")
		return fmt.Errorf("cache: marshal value for %q: %w", key, err)
	}
	return c.write(ctx, key, string(data), ttl)
}

// SetString 写入原始字符串，不做 JSON 包装。
func (c *Cache) SetString(ctx context.Context, key, value string, ttl ...time.Duration) error {
	if c == nil {
		return nil
	}
	return c.write(ctx, key, value, ttl)
}

func (c *Cache) write(ctx context.Context, key, value string, ttl []time.Duration) error {
	if err := c.client.Set(ctx, c.Key(key), value, c.resolveTTL(ttl)).Err(); err != nil {
		c.collector.RecordCacheError(c.cfg.Prefix, "set")
		c.logger.Error("cache set failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("cache: set %q: %w", key, err)
	}
	return nil
}

// Get 读取并反序列化到 dest。键不存在返回 (false, nil)，从不视为错误。
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if c == nil {
		return false, nil
	}
	val, err := c.client.Get(ctx, c.Key(key)).Result()
	if errors.Is(err, redis.Nil) {
		c.collector.RecordCacheMiss(c.cfg.Prefix)
		return false, nil
	}
	if err != nil {
		c.collector.RecordCacheError(c.cfg.Prefix, "get")
		c.logger.Error("cache get failed", zap.String("key", key), zap.Error(err))
		return false, fmt.Errorf("cache: get %q: %w", key, err)
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		c.collector.RecordCacheError(c.cfg.Prefix, "get")
		return false, fmt.Errorf("cache: unmarshal %q: %w", key, err)
	}
	c.collector.RecordCacheHit(c.cfg.Prefix)
	return true, nil
}

// GetString 读取原始字符串。键不存在返回 ("", false, nil)。
func (c *Cache) GetString(ctx context.Context, key string) (string, bool, error) {
	if c == nil {
		return "", false, nil
	}
	val, err := c.client.Get(ctx, c.Key(key)).Result()
	if errors.Is(err, redis.Nil) {
		c.collector.RecordCacheMiss(c.cfg.Prefix)
		return "", false, nil
	}
	if err != nil {
		c.collector.RecordCacheError(c.cfg.Prefix, "get")
		c.logger.Error("cache get failed", zap.String("key", key), zap.Error(err))
		return "", false, fmt.Errorf("cache: get %q: %w", key, err)
	}
	c.collector.RecordCacheHit(c.cfg.Prefix)
	return val, true, nil
}

// Delete 删除若干键，返回实际删除数量。
func (c *Cache) Delete(ctx context.Context, keys ...string) (int64, error) {
	if c == nil || len(keys) == 0 {
		return 0, nil
	}
	scoped := make([]string, len(keys))
	for i, k := range keys {
		scoped[i] = c.Key(k)
	}
	n, err := c.client.Del(ctx, scoped...).Result()
	if err != nil {
		c.collector.RecordCacheError(c.cfg.Prefix, "delete")
		c.logger.Error("cache delete failed", zap.Strings("keys", keys), zap.Error(err))
		return 0, fmt.Errorf("cache: delete: %w", err)
	}
	return n, nil
}

// Exists 返回给定键中存在的数量。
func (c *Cache) Exists(ctx context.Context, keys ...string) (int64, error) {
	if c == nil || len(keys) == 0 {
		return 0, nil
	}
	scoped := make([]string, len(keys))
	for i, k := range keys {
		scoped[i] = c.Key(k)
	}
	n, err := c.client.Exists(ctx, scoped...).Result()
	if err != nil {
		c.collector.RecordCacheError(c.cfg.Prefix, "exists")
		return 0, fmt.Errorf("cache: exists: %w", err)
	}
	return n, nil
}

// FlushTenant 删除本实例作用域（prefix:tenant:）下的全部键，
// 通过 SCAN 游标遍历，不阻塞 Redis。返回删除数量。
func (c *Cache) FlushTenant(ctx context.Context) (int64, error) {
	if c == nil {
		return 0, nil
	}
	var deleted int64
	var cursor uint64
	pattern := c.keyPrefix + "*"
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			c.collector.RecordCacheError(c.cfg.Prefix, "flush")
			return deleted, fmt.Errorf("cache: scan %q: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				c.collector.RecordCacheError(c.cfg.Prefix, "flush")
				return deleted, fmt.Errorf("cache: flush delete: %w", err)
			}
			deleted += n
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	c.logger.Info("tenant cache flushed",
		zap.String("pattern", pattern),
		zap.Int64("deleted", deleted))
	return deleted, nil
}

// HealthCheck 检查 Redis 连通性。nil 缓存视为健康（按禁用处理）。
func (c *Cache) HealthCheck(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache: ping: %w", err)
	}
	return nil
}

// Close 关闭底层连接。nil 缓存安全空转。
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
