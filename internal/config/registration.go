package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// RegistrationConfig tunes the registration flow and the reconciler. It is
// read from registration.yml and reloaded on change.
type RegistrationConfig struct {
	Poll       PollConfig       `mapstructure:"poll"`
	Flow       FlowConfig       `mapstructure:"flow"`
	Reconciler ReconcilerConfig `mapstructure:"reconciler"`
}

type PollConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	MaxAttempts int           `mapstructure:"maxAttempts"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type FlowConfig struct {
	Timeout                  time.Duration `mapstructure:"timeout"`
	DefaultCommissionPercent int           `mapstructure:"defaultCommissionPercent"`
}

type ReconcilerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	RunInterval  time.Duration `mapstructure:"runInterval"`
	BatchSize    int           `mapstructure:"batchSize"`
	RetryCeiling int           `mapstructure:"retryCeiling"`
	ItemDelay    time.Duration `mapstructure:"itemDelay"`
	RecoverAfter time.Duration `mapstructure:"recoverAfter"`
	JobTimeout   time.Duration `mapstructure:"jobTimeout"`
	LockTTL      time.Duration `mapstructure:"lockTTL"`
}

func DefaultRegistrationConfig() RegistrationConfig {
	return RegistrationConfig{
		Poll: PollConfig{
			Interval:    time.Second,
			MaxAttempts: 15,
			Timeout:     15 * time.Second,
		},
		Flow: FlowConfig{
			Timeout:                  25 * time.Second,
			DefaultCommissionPercent: 10,
		},
		Reconciler: ReconcilerConfig{
			Enabled:      true,
			RunInterval:  5 * time.Minute,
			BatchSize:    50,
			RetryCeiling: 3,
			ItemDelay:    5 * time.Second,
			RecoverAfter: 15 * time.Minute,
			JobTimeout:   10 * time.Minute,
			LockTTL:      15 * time.Minute,
		},
	}
}

type RegistrationConfigHolder struct {
	current atomic.Value // holds RegistrationConfig
}

// NewStaticRegistrationConfigHolder wraps a fixed configuration.
func NewStaticRegistrationConfigHolder(cfg RegistrationConfig) *RegistrationConfigHolder {
	holder := &RegistrationConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewRegistrationConfigHolder(log *zap.Logger) (*RegistrationConfigHolder, error) {
	return LoadRegistrationConfig(log, "/var/lib/comademig/config", "/etc/comademig", ".")
}

// LoadRegistrationConfig reads registration.yml from the first matching path
// and watches it for changes. A missing file yields the defaults.
func LoadRegistrationConfig(log *zap.Logger, paths ...string) (*RegistrationConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.registration")

	v := viper.New()

	v.SetConfigName("registration")
	v.SetConfigType("yml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	v.SetEnvPrefix("COMADEMIG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setRegistrationDefaults(v)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileFound = false
	}

	cfg, err := decodeRegistrationConfig(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticRegistrationConfigHolder(cfg)
	if !fileFound {
		log.Info("registration config file not found, using defaults")
		return holder, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeRegistrationConfig(v)
		if err != nil {
			log.Warn("invalid registration config ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("registration config reloaded", zap.String("file", e.Name))
	})
	v.WatchConfig()

	return holder, nil
}

func (h *RegistrationConfigHolder) Get() RegistrationConfig {
	return h.current.Load().(RegistrationConfig)
}

func setRegistrationDefaults(v *viper.Viper) {
	d := DefaultRegistrationConfig()
	v.SetDefault("registration.poll.interval", d.Poll.Interval)
	v.SetDefault("registration.poll.maxAttempts", d.Poll.MaxAttempts)
	v.SetDefault("registration.poll.timeout", d.Poll.Timeout)
	v.SetDefault("registration.flow.timeout", d.Flow.Timeout)
	v.SetDefault("registration.flow.defaultCommissionPercent", d.Flow.DefaultCommissionPercent)
	v.SetDefault("registration.reconciler.enabled", d.Reconciler.Enabled)
	v.SetDefault("registration.reconciler.runInterval", d.Reconciler.RunInterval)
	v.SetDefault("registration.reconciler.batchSize", d.Reconciler.BatchSize)
	v.SetDefault("registration.reconciler.retryCeiling", d.Reconciler.RetryCeiling)
	v.SetDefault("registration.reconciler.itemDelay", d.Reconciler.ItemDelay)
	v.SetDefault("registration.reconciler.recoverAfter", d.Reconciler.RecoverAfter)
	v.SetDefault("registration.reconciler.jobTimeout", d.Reconciler.JobTimeout)
	v.SetDefault("registration.reconciler.lockTTL", d.Reconciler.LockTTL)
}

func decodeRegistrationConfig(v *viper.Viper) (RegistrationConfig, error) {
	var cfg RegistrationConfig
	if err := v.UnmarshalKey("registration", &cfg); err != nil {
		return RegistrationConfig{}, err
	}
	if err := validateRegistrationConfig(cfg); err != nil {
		return RegistrationConfig{}, err
	}
	return cfg, nil
}

func validateRegistrationConfig(cfg RegistrationConfig) error {
	if cfg.Poll.Interval <= 0 {
		return errors.New("registration.poll.interval must be positive")
	}
	if cfg.Poll.MaxAttempts <= 0 {
		return errors.New("registration.poll.maxAttempts must be positive")
	}
	if cfg.Poll.Timeout <= 0 {
		return errors.New("registration.poll.timeout must be positive")
	}
	if cfg.Flow.Timeout < cfg.Poll.Timeout {
		return errors.New("registration.flow.timeout cannot be shorter than the poll timeout")
	}
	if cfg.Flow.DefaultCommissionPercent < 0 || cfg.Flow.DefaultCommissionPercent > 100 {
		return errors.New("registration.flow.defaultCommissionPercent must be within 0..100")
	}
	if cfg.Reconciler.BatchSize <= 0 {
		return errors.New("registration.reconciler.batchSize must be positive")
	}
	if cfg.Reconciler.RetryCeiling <= 0 {
		return errors.New("registration.reconciler.retryCeiling must be positive")
	}
	if cfg.Reconciler.RunInterval <= 0 {
		return errors.New("registration.reconciler.runInterval must be positive")
	}
	if cfg.Reconciler.ItemDelay < 0 {
		return errors.New("registration.reconciler.itemDelay cannot be negative")
	}
	return nil
}
