package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"money-saver/pkg/cache"

	"github.com/redis/rueidis"
)

// Config configures the shared L2 layer.
type Config struct {
	Name string
	// Addrs holds one address for a single node, several for a cluster, or the
	// sentinel addresses when MasterSet is set.
	Addrs     []string
	Username  string
	Password  string
	DB        int
	MasterSet string
	// KeyPrefix namespaces every key so the directory cache can share a Redis
	// with other services.
	KeyPrefix    string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns a single-node configuration on localhost.
func DefaultConfig() Config {
	return Config{
		Name:         "redis",
		Addrs:        []string{"localhost:6379"},
		KeyPrefix:    "money-saver:",
		DialTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// ConfigFromAddr parses a comma separated address list such as
// "node1:6379,node2:6379" into a Config.
func ConfigFromAddr(addr, password string) Config {
	config := DefaultConfig()
	config.Addrs = nil
	for _, a := range strings.Split(addr, ",") {
		if a = strings.TrimSpace(a); a != "" {
			config.Addrs = append(config.Addrs, a)
		}
	}
	config.Password = password
	return config
}

// Cache is a cache.Layer backed by rueidis.
type Cache struct {
	client rueidis.Client
	config Config
}

// New connects and pings the server.
func New(config Config) (*Cache, error) {
	if config.Name == "" {
		config.Name = "redis"
	}
	if len(config.Addrs) == 0 {
		return nil, fmt.Errorf("redis: no addresses configured")
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = 5 * time.Second
	}

	opts := rueidis.ClientOption{
		InitAddress:      config.Addrs,
		Username:         config.Username,
		Password:         config.Password,
		SelectDB:         config.DB,
		ConnWriteTimeout: config.WriteTimeout,
		MaxFlushDelay:    100 * time.Microsecond,
	}
	if config.MasterSet != "" {
		opts.Sentinel = rueidis.SentinelOption{MasterSet: config.MasterSet}
	}

	client, err := rueidis.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("redis: create client: %w", err)
	}

	c := &Cache{client: client, config: config}

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) key(k string) string {
	return c.config.KeyPrefix + k
}

// Get returns the raw bytes stored under key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	if err := cache.ValidateKey(key); err != nil {
		return nil, err
	}

	resp := c.client.Do(ctx, c.client.B().Get().Key(c.key(key)).Build())
	if err := resp.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, cache.ErrMiss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	data, err := resp.AsBytes()
	if err != nil {
		return nil, fmt.Errorf("redis get: read response: %w", err)
	}
	return data, nil
}

// Set stores value with an expiry. A zero ttl stores without expiry.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := cache.ValidateKey(key); err != nil {
		return err
	}

	var cmd rueidis.Completed
	if ttl > 0 {
		cmd = c.client.B().Set().Key(c.key(key)).Value(rueidis.BinaryString(value)).Px(ttl).Build()
	} else {
		cmd = c.client.B().Set().Key(c.key(key)).Value(rueidis.BinaryString(value)).Build()
	}
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := cache.ValidateKey(key); err != nil {
		return err
	}
	if err := c.client.Do(ctx, c.client.B().Del().Key(c.key(key)).Build()).Error(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// TTL returns the remaining lifetime of key, cache.ErrMiss when absent, or -1
// when the key has no expiry.
func (c *Cache) TTL(ctx context.Context, key string) (time.Duration, error) {
	resp := c.client.Do(ctx, c.client.B().Pttl().Key(c.key(key)).Build())
	if err := resp.Error(); err != nil {
		return 0, fmt.Errorf("redis pttl: %w", err)
	}
	ms, err := resp.AsInt64()
	if err != nil {
		return 0, fmt.Errorf("redis pttl: read response: %w", err)
	}
	switch ms {
	case -2:
		return 0, cache.ErrMiss
	case -1:
		return -1, nil
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// Ping checks connectivity. Failures wrap cache.ErrUnavailable.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.client.Do(ctx, c.client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("%w: redis ping: %v", cache.ErrUnavailable, err)
	}
	return nil
}

// Name returns the layer name.
func (c *Cache) Name() string {
	return c.config.Name
}

// Close closes the client.
func (c *Cache) Close() error {
	c.client.Close()
	return nil
}
