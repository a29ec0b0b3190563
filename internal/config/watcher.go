package config

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// ReloadFunc 配置重新加载回调,previous 为上一次生效的配置
type ReloadFunc func(previous, updated *Config)

// ConfigWatcher 配置监听器,配置文件变化时重新加载并通知回调
// 校验失败的新配置会被丢弃,继续使用上一次生效的配置
type ConfigWatcher struct {
	configPath string
	viper      *viper.Viper

	mu        sync.RWMutex
	current   *Config
	callbacks []ReloadFunc

	stopped atomic.Bool
}

// NewConfigWatcher 创建配置监听器
func NewConfigWatcher(cfg *Config, configPath string) *ConfigWatcher {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &ConfigWatcher{
		configPath: configPath,
		viper:      v,
		current:    cfg,
	}
}

// OnConfigChange 注册配置变更回调
func (w *ConfigWatcher) OnConfigChange(fn ReloadFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, fn)
}

// Start 启动配置监听
func (w *ConfigWatcher) Start() error {
	if err := w.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	w.viper.OnConfigChange(w.handle)
	w.viper.WatchConfig()
	return nil
}

func (w *ConfigWatcher) handle(e fsnotify.Event) {
	if w.stopped.Load() {
		return
	}
	log := logrus.WithField("file", e.Name)

	var updated Config
	if err := w.viper.Unmarshal(&updated); err != nil {
		log.WithError(err).Warn("failed to unmarshal reloaded config")
		return
	}
	if err := updated.Validate(); err != nil {
		log.WithError(err).Warn("reloaded config rejected")
		return
	}

	w.mu.Lock()
	previous := w.current
	w.current = &updated
	callbacks := make([]ReloadFunc, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	for _, fn := range callbacks {
		fn(previous, &updated)
	}
}

// Stop 停止通知回调
// viper 不支持取消文件监听,停止后的变更会被忽略
func (w *ConfigWatcher) Stop() {
	w.stopped.Store(true)
}

// GetConfig 获取当前生效的配置
func (w *ConfigWatcher) GetConfig() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// ChangedSections 返回两份配置中取值不同的顶层配置段,按 mapstructure 名称
func ChangedSections(previous, updated *Config) []string {
	if previous == nil || updated == nil {
		return nil
	}
	pv := reflect.ValueOf(*previous)
	uv := reflect.ValueOf(*updated)
	t := pv.Type()

	var changed []string
	for i := 0; i < t.NumField(); i++ {
		if !reflect.DeepEqual(pv.Field(i).Interface(), uv.Field(i).Interface()) {
			changed = append(changed, t.Field(i).Tag.Get("mapstructure"))
		}
	}
	return changed
}
