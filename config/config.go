package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"
	"time"

	"namewatch/model"
	"namewatch/utils"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const DefaultGuardConfigPath = "data/guard_config.json"

// keys that may be overridden from the environment as NAMEWATCH_<KEY>
var guardKeys = []string{
	"guild_id",
	"muted_role_id",
	"voice_muted_role_id",
	"audit_channel_id",
	"review_channel_id",
	"moderator_role_ids",
	"privileged_role_ids",
	"standard_words",
	"escalate_words",
	"check_interval",
	"kick_grace",
	"decision_window",
	"join_delay",
	"database.driver",
	"database.dsn",
}

// Load loads the configuration from the environment (.env included) and the guard config file.
// It does not validate; commands that talk to Discord call Validate themselves.
func Load() (*model.Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: .env file not found, relying on environment variables")
	}

	path := os.Getenv("GUARD_CONFIG")
	if path == "" {
		path = DefaultGuardConfigPath
	}
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	cfg.BotToken = os.Getenv("BOT_TOKEN")
	cfg.LogChannelID = os.Getenv("LOG_CHANNEL_ID")
	if cfg.LogChannelID == "" {
		log.Println("Warning: LOG_CHANNEL_ID not set, log channel output will be disabled")
	}
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")
	return cfg, nil
}

// LoadFile reads the guard config at path, applying NAMEWATCH_* overrides and defaults.
// A missing file is not an error: everything can come from the environment.
func LoadFile(path string) (*model.Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("NAMEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range guardKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	v.SetDefault("check_interval", "1s")
	v.SetDefault("kick_grace", "30m")
	v.SetDefault("decision_window", "24h")
	v.SetDefault("join_delay", "100ms")
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "data/namewatch.db")

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading guard config %s: %w", path, err)
		}
		log.Printf("Warning: Config file not found at %s, using environment only.", path)
	}

	cfg := &model.Config{}
	if err := v.Unmarshal(&cfg.Guard); err != nil {
		return nil, fmt.Errorf("decoding guard config: %w", err)
	}
	cfg.Database = model.DatabaseConfig{
		Driver: v.GetString("database.driver"),
		DSN:    v.GetString("database.dsn"),
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"check_interval", &cfg.Guard.CheckInterval},
		{"kick_grace", &cfg.Guard.KickGrace},
		{"decision_window", &cfg.Guard.DecisionWindow},
		{"join_delay", &cfg.Guard.JoinDelay},
	}
	for _, d := range durations {
		parsed, err := utils.ParseDuration(v.GetString(d.key))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return cfg, nil
}
