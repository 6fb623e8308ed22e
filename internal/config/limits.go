package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// LimitsConfig holds the abuse/rate-limit knobs for expensive bot actions.
// Counts are per actor+action unless noted.
type LimitsConfig struct {
	CooldownSeconds int `mapstructure:"cooldownSeconds"`
	PerMinute       int `mapstructure:"perMinute"`
	PerHour         int `mapstructure:"perHour"`
	PerDay          int `mapstructure:"perDay"`
	GlobalPerMinute int `mapstructure:"globalPerMinute"`
}

func DefaultLimitsConfig() LimitsConfig {
	return LimitsConfig{
		CooldownSeconds: 30,
		PerMinute:       2,
		PerHour:         10,
		PerDay:          20,
		GlobalPerMinute: 5,
	}
}

// LimitsConfigHolder serves the current limits and hot-reloads them when the
// config file changes, so operators can tighten limits without a restart.
type LimitsConfigHolder struct {
	current atomic.Value // holds LimitsConfig
}

func NewLimitsConfigHolder() (*LimitsConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("limits")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/restoworker/config")
	v.AddConfigPath("/etc/restoworker")
	v.AddConfigPath(".")

	v.SetEnvPrefix("RESTOWORKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultLimitsConfig()
		v.SetDefault("limits.cooldownSeconds", defaults.CooldownSeconds)
		v.SetDefault("limits.perMinute", defaults.PerMinute)
		v.SetDefault("limits.perHour", defaults.PerHour)
		v.SetDefault("limits.perDay", defaults.PerDay)
		v.SetDefault("limits.globalPerMinute", defaults.GlobalPerMinute)
	}

	var cfg LimitsConfig
	if err := v.UnmarshalKey("limits", &cfg); err != nil {
		return nil, err
	}
	if err := validateLimitsConfig(cfg); err != nil {
		return nil, err
	}

	holder := &LimitsConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated LimitsConfig
		if err := v.UnmarshalKey("limits", &updated); err != nil {
			log.Printf("[limits-config] reload failed: %v", err)
			return
		}
		if err := validateLimitsConfig(updated); err != nil {
			log.Printf("[limits-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[limits-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *LimitsConfigHolder) Get() LimitsConfig {
	return h.current.Load().(LimitsConfig)
}

// NewStaticLimitsHolder returns a holder pinned to cfg. Tests use it to avoid
// touching the filesystem.
func NewStaticLimitsHolder(cfg LimitsConfig) *LimitsConfigHolder {
	holder := &LimitsConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func validateLimitsConfig(cfg LimitsConfig) error {
	if cfg.CooldownSeconds < 0 {
		return errors.New("limits.cooldownSeconds cannot be negative")
	}
	if cfg.PerMinute <= 0 || cfg.PerHour <= 0 || cfg.PerDay <= 0 {
		return errors.New("limits per-window caps must be positive")
	}
	if cfg.GlobalPerMinute <= 0 {
		return errors.New("limits.globalPerMinute must be positive")
	}
	return nil
}
