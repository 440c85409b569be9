package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

type (
	Config struct {
		TelegramAPIToken string `env:"TOKEN,required"`
		DefaultLanguage  string `env:"LANG,default=ru"`
		LogLevel         int    `env:"LOG_LEVEL,default=4"`
		DotPath          string `env:"DOT_PATH,default=~/.ngguard"`
		DBName           string `env:"DB_NAME,default=ngguard.db"`
		AuditLog         bool   `env:"AUDIT_LOG,default=true"`
		Engine           Engine
		Metrics          Metrics
	}

	Engine struct {
		SettingsTTL       time.Duration `env:"SETTINGS_TTL,default=60s"`
		AdminTTL          time.Duration `env:"ADMIN_TTL,default=120s"`
		SettingsCacheSize int           `env:"SETTINGS_CACHE_SIZE,default=4096"`
		WindowCapacity    int           `env:"WINDOW_CAP,default=256"`
		SweepInterval     time.Duration `env:"CAPTCHA_SWEEP_INTERVAL,default=1m"`
		CaptchaSweep      bool          `env:"CAPTCHA_SWEEP,default=false"`
	}

	Metrics struct {
		Addr string `env:"METRICS_ADDR,default=:2112"`
	}
)

const envPrefix = "NG_"

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

func Load() (Config, error) {
	once.Do(func() {
		cfg, err := loadFrom(context.Background(), envconfig.OsLookuper())
		if err != nil {
			globalErr = err
			return
		}
		log.Traceln("loaded config")
		globalConfig = cfg
	})
	return *globalConfig, globalErr
}

func Get() Config {
	cfg, err := Load()
	if err != nil {
		log.WithField("error", err.Error()).Error("cant load config")
	}
	return cfg
}

func loadFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	envcfg := envconfig.Config{
		Lookuper: envconfig.PrefixLookuper(envPrefix, lookuper),
		Target:   cfg,
	}
	if err := envconfig.ProcessWith(ctx, &envcfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}
	dotPath, err := homedir.Expand(cfg.DotPath)
	if err != nil {
		return nil, fmt.Errorf("expand dot path: %w", err)
	}
	cfg.DotPath = dotPath
	return cfg, nil
}
