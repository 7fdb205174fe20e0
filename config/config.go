// Package config 读取 boatsync 配置
//
// 优先级：命令行参数 > 环境变量（前缀 BOATSYNC_）> 配置文件 boatsync.yaml > 默认值。
package config

import (
	stdErrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"boatsync/errors"
)

// 中继类型；memory 只在同一进程内的多个总线之间转发
const (
	RelayNone   = "none"
	RelayMemory = "memory"
	RelayNATS   = "nats"
	RelayRedis  = "redis"
)

// Config 应用配置
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	DB      DBConfig      `mapstructure:"db"`
	Relay   RelayConfig   `mapstructure:"relay"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Filter  FilterConfig  `mapstructure:"filter"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DBConfig sqlite 设置，Path 为空时使用内存库
type DBConfig struct {
	Path string `mapstructure:"path"`
	Seed bool   `mapstructure:"seed"`
}

// RelayConfig 跨宿主中继
type RelayConfig struct {
	Kind  string           `mapstructure:"kind"`
	NATS  NATSRelayConfig  `mapstructure:"nats"`
	Redis RedisRelayConfig `mapstructure:"redis"`
}

type NATSRelayConfig struct {
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
}

type RedisRelayConfig struct {
	Addr         string `mapstructure:"addr"`
	StreamPrefix string `mapstructure:"stream_prefix"`
}

// CacheConfig 坐标缓存；Size 为 0 时不启用缓存
type CacheConfig struct {
	Size int           `mapstructure:"size"`
	TTL  time.Duration `mapstructure:"ttl"`
}

// MetricsConfig Addr 为空时不启动 /metrics
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// FilterConfig 启动时的默认筛选
type FilterConfig struct {
	Default string `mapstructure:"default"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("db.path", "")
	v.SetDefault("db.seed", true)
	v.SetDefault("relay.kind", RelayNone)
	v.SetDefault("relay.nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("relay.nats.subject_prefix", "boatsync.")
	v.SetDefault("relay.redis.addr", "127.0.0.1:6379")
	v.SetDefault("relay.redis.stream_prefix", "boatsync:")
	v.SetDefault("cache.size", 256)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("filter.default", "")
}

// 命令行参数与配置键的对应关系
var flagKeys = map[string]string{
	"log-level":    "log.level",
	"db":           "db.path",
	"seed":         "db.seed",
	"relay":        "relay.kind",
	"nats-url":     "relay.nats.url",
	"redis-addr":   "relay.redis.addr",
	"cache-size":   "cache.size",
	"cache-ttl":    "cache.ttl",
	"metrics-addr": "metrics.addr",
	"filter":       "filter.default",
}

// NewFlagSet 创建命令行参数集
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "path to boatsync.yaml")
	fs.String("log-level", "", "debug|info|warn|error")
	fs.String("db", "", "sqlite database path (empty for in-memory)")
	fs.Bool("seed", true, "insert demo boats on startup")
	fs.String("relay", "", "none|memory|nats|redis (memory relays within one process only)")
	fs.String("nats-url", "", "NATS server URL")
	fs.String("redis-addr", "", "Redis address")
	fs.Int("cache-size", 0, "location cache entries (0 disables)")
	fs.Duration("cache-ttl", 0, "location cache TTL")
	fs.String("metrics-addr", "", "listen address for /metrics")
	fs.String("filter", "", "initial boat type filter")
	return fs
}

// Load 解析命令行参数并合并环境变量与配置文件
func Load(args []string) (Config, error) {
	fs := NewFlagSet("boatsync")
	if err := fs.Parse(args); err != nil {
		return Config{}, errors.WrapError(err, errors.ErrCodeInvalidInput, "parse flags")
	}
	return LoadFlags(fs)
}

// LoadFlags 使用已解析的参数集加载配置，只有显式设置的参数会覆盖其他来源
func LoadFlags(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	cfgPath, _ := fs.GetString("config")
	if cfgPath == "" {
		cfgPath = os.Getenv("BOATSYNC_CONFIG")
	}
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("boatsync")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "boatsync"))
		}
	}

	v.SetEnvPrefix("BOATSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if f := fs.Lookup(name); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !stdErrors.As(err, &notFound) {
			return Config{}, errors.WrapError(err, errors.ErrCodeInvalidInput, "read config")
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate 检查取值范围
func (c Config) Validate() error {
	switch c.Relay.Kind {
	case RelayNone, RelayMemory, RelayNATS, RelayRedis:
	default:
		return errors.NewError(errors.ErrCodeValidation,
			fmt.Sprintf("relay.kind must be one of none, memory, nats, redis (got %q)", c.Relay.Kind))
	}
	if c.Cache.Size < 0 {
		return errors.NewError(errors.ErrCodeValidation, "cache.size must not be negative")
	}
	if c.Cache.TTL < 0 {
		return errors.NewError(errors.ErrCodeValidation, "cache.ttl must not be negative")
	}
	return nil
}
