// Package config 提供了统一的配置加载与管理能力.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wyfcoding/segtree/logging"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config 全局顶级配置结构.
type Config struct {
	Version     string            `mapstructure:"version"      toml:"version"`
	Log         LogConfig         `mapstructure:"log"          toml:"log"`
	Metrics     MetricsConfig     `mapstructure:"metrics"      toml:"metrics"`
	Tracing     TracingConfig     `mapstructure:"tracing"      toml:"tracing"`
	SegmentTree SegmentTreeConfig `mapstructure:"segment_tree" toml:"segment_tree"`
}

// LogConfig 定义日志输出、级别与切割策略.
type LogConfig struct {
	Level      string `mapstructure:"level"       toml:"level"       validate:"omitempty,oneof=debug info warn error"` // 日志级别。
	File       string `mapstructure:"file"        toml:"file"`                                                     // 日志文件路径。
	MaxSize    int    `mapstructure:"max_size"    toml:"max_size"    validate:"gte=0"`                             // 单个文件最大大小 (MB)。
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups" validate:"gte=0"`                             // 最大备份数。
	MaxAge     int    `mapstructure:"max_age"     toml:"max_age"     validate:"gte=0"`                             // 最大保留天数。
	Compress   bool   `mapstructure:"compress"    toml:"compress"`                                                 // 是否启用压缩。
}

// TracingConfig 链路追踪（OpenTelemetry）配置.
type TracingConfig struct {
	ServiceName  string  `mapstructure:"service_name"  toml:"service_name"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" toml:"otlp_endpoint" validate:"required_if=Enabled true"`
	SamplerRatio float64 `mapstructure:"sampler_ratio" toml:"sampler_ratio" validate:"gte=0,lte=1"`
	Enabled      bool    `mapstructure:"enabled"       toml:"enabled"`
}

// MetricsConfig 普罗米修斯监控指标暴露配置.
type MetricsConfig struct {
	Port    string `mapstructure:"port"    toml:"port"    validate:"required_if=Enabled true"`
	Path    string `mapstructure:"path"    toml:"path"`
	Enabled bool   `mapstructure:"enabled" toml:"enabled"`
}

// SegmentTreeConfig 定义初始数组.
type SegmentTreeConfig struct {
	Name   string  `mapstructure:"name"   toml:"name"   validate:"required"`
	Values []int64 `mapstructure:"values" toml:"values" validate:"required,min=1"`
}

var (
	vInstance = viper.New()
	current   atomic.Pointer[Config]
	hooksMu   sync.Mutex
	onReload  []func(*Config)
)

// Current 返回最近一次加载或热更新成功的配置快照，未加载时返回 nil.
// 快照只读，热更新会替换为新的实例而不是原地修改.
func Current() *Config {
	return current.Load()
}

// RegisterReloadHook 注册配置热更新回调。
func RegisterReloadHook(hook func(*Config)) {
	if hook == nil {
		return
	}
	hooksMu.Lock()
	defer hooksMu.Unlock()
	onReload = append(onReload, hook)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("tracing.sampler_ratio", 1.0)
	v.SetDefault("segment_tree.name", "default")
}

// Load 读取 TOML 配置文件，叠加 APP_ 前缀的环境变量，校验后开启热更新监听.
// conf 只在首次加载时填充；热更新后的配置通过 Current 与 RegisterReloadHook 获取.
func Load(path string, conf *Config) error {
	vInstance.SetConfigFile(path)
	vInstance.SetConfigType("toml")

	vInstance.SetEnvPrefix("APP")
	vInstance.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vInstance.AutomaticEnv()
	setDefaults(vInstance)

	if err := vInstance.ReadInConfig(); err != nil {
		return fmt.Errorf("read config error: %w", err)
	}

	if err := vInstance.Unmarshal(conf); err != nil {
		return fmt.Errorf("unmarshal config error: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(conf); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	snapshot := *conf
	snapshot.SegmentTree.Values = slices.Clone(conf.SegmentTree.Values)
	current.Store(&snapshot)

	vInstance.OnConfigChange(func(event fsnotify.Event) {
		slog.Info("detecting config change", "file", event.Name)
		const debounceTimeout = 500 * time.Millisecond
		time.Sleep(debounceTimeout)

		if err := reload(validate); err != nil {
			slog.Error("config reload rejected", "error", err)
		}
	})
	vInstance.WatchConfig()

	return nil
}

// reload 从 viper 当前内容构建新配置，校验通过后原子替换快照并依次执行回调.
// 校验失败时保留旧快照.
func reload(validate *validator.Validate) error {
	next := new(Config)
	if err := vInstance.Unmarshal(next); err != nil {
		return fmt.Errorf("unmarshal config error: %w", err)
	}
	if err := validate.Struct(next); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	current.Store(next)
	logging.SetLevel(next.Log.Level)
	slog.Info("config hot-reloaded and validated successfully")

	hooksMu.Lock()
	hooks := append([]func(*Config){}, onReload...)
	hooksMu.Unlock()
	for _, hook := range hooks {
		hook(next)
	}

	return nil
}

// PrintWithMask 脱敏打印当前配置.
func PrintWithMask(conf any) {
	data, err := json.Marshal(conf)
	if err != nil {
		slog.Error("failed to marshal config for printing", "error", err)
		return
	}

	var configMap map[string]any
	if err := json.Unmarshal(data, &configMap); err != nil {
		slog.Error("failed to unmarshal config for masking", "error", err)
		return
	}

	mask(configMap)

	maskedJSON, err := json.MarshalIndent(configMap, "  ", "  ")
	if err != nil {
		slog.Error("failed to marshal masked config", "error", err)
		return
	}

	slog.Info("Current effective configuration", "config", string(maskedJSON))
}

func mask(configMap map[string]any) {
	sensitiveKeys := []string{"password", "secret", "dsn", "key", "token"}

	for key, val := range configMap {
		if subMap, ok := val.(map[string]any); ok {
			mask(subMap)
			continue
		}

		for _, sensitiveKey := range sensitiveKeys {
			if strings.Contains(strings.ToLower(key), sensitiveKey) {
				configMap[key] = "******"
				break
			}
		}
	}
}

// GetViper 返回底层的 Viper 实例.
func GetViper() *viper.Viper {
	return vInstance
}
