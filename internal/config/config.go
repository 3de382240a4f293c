package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-envconfig"
	log "github.com/sirupsen/logrus"
)

type (
	Config struct {
		DefaultLanguage string `env:"LANG,default=en"`
		LogLevel        int    `env:"LOG_LEVEL,default=4"`
		DotPath         string `env:"DOT_PATH,default=~/.groupmate"`
		DBFile          string `env:"DB_FILE,default=groupmate.db"`
		MetricsAddr     string `env:"METRICS_ADDR,default=:2112"`
		Roster          Roster
		Schedule        Schedule
		ECampus         ECampus
	}

	Roster struct {
		MaxGroupNameLength     int           `env:"MAX_GROUP_NAME_LENGTH,default=15"`
		MinGroupmatesForLeader int           `env:"MIN_GROUPMATES_FOR_LEADER,default=1"`
		MaxAdminRatio          float64       `env:"MAX_ADMIN_RATIO,default=1"`
		FeedbackDelay          time.Duration `env:"FEEDBACK_DELAY,default=168h"`
	}

	Schedule struct {
		ReminderHour int `env:"REMINDER_HOUR,default=7"`
		// Graduation threshold: after this date the groups whose graduation
		// year has arrived are purged together with their chats.
		GraduationMonth int `env:"GRADUATION_MONTH,default=6"`
		GraduationDay   int `env:"GRADUATION_DAY,default=30"`
	}

	ECampus struct {
		SyncEnabled  bool          `env:"ECAMPUS_SYNC_ENABLED,default=false"`
		SyncInterval time.Duration `env:"ECAMPUS_SYNC_INTERVAL,default=6h"`
	}
)

var (
	once         sync.Once
	globalConfig = &Config{}
	globalErr    error
)

func Load() (Config, error) {
	once.Do(func() {
		cfg := &Config{}
		envcfg := envconfig.Config{
			Lookuper: envconfig.PrefixLookuper("GM_", envconfig.OsLookuper()),
			Target:   cfg,
		}
		if err := envconfig.ProcessWith(context.Background(), &envcfg); err != nil {
			globalErr = fmt.Errorf("process env config: %w", err)
			return
		}
		home, err := os.UserHomeDir()
		if err != nil {
			globalErr = fmt.Errorf("get user home directory: %w", err)
			return
		}
		cfg.DotPath = strings.Replace(cfg.DotPath, "~", home, 1)
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
