package model

import (
	"errors"
	"fmt"
	"time"
)

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" json:"driver"` // sqlite3 or postgres
	DSN    string `mapstructure:"dsn" json:"dsn"`
}

// GuardConfig 定义了用户名巡查的服务器配置
type GuardConfig struct {
	GuildID           string   `mapstructure:"guild_id" json:"guild_id"`
	MutedRoleID       string   `mapstructure:"muted_role_id" json:"muted_role_id"`
	VoiceMutedRoleID  string   `mapstructure:"voice_muted_role_id" json:"voice_muted_role_id"`
	AuditChannelID    string   `mapstructure:"audit_channel_id" json:"audit_channel_id"`
	ReviewChannelID   string   `mapstructure:"review_channel_id" json:"review_channel_id"`
	ModeratorRoleIDs  []string `mapstructure:"moderator_role_ids" json:"moderator_role_ids"`
	PrivilegedRoleIDs []string `mapstructure:"privileged_role_ids" json:"privileged_role_ids"`
	StandardWords     []string `mapstructure:"standard_words" json:"standard_words"`
	EscalateWords     []string `mapstructure:"escalate_words" json:"escalate_words"`

	CheckInterval  time.Duration `mapstructure:"-" json:"-"`
	KickGrace      time.Duration `mapstructure:"-" json:"-"`
	DecisionWindow time.Duration `mapstructure:"-" json:"-"`
	JoinDelay      time.Duration `mapstructure:"-" json:"-"`
}

// MuteRoleIDs returns both roles a muted member must carry.
func (g GuardConfig) MuteRoleIDs() []string {
	return []string{g.MutedRoleID, g.VoiceMutedRoleID}
}

// Validate reports configuration that would leave enforcement unable to act.
func (g GuardConfig) Validate() error {
	var errs []error
	if g.GuildID == "" {
		errs = append(errs, errors.New("guild_id is required"))
	}
	if g.MutedRoleID == "" || g.VoiceMutedRoleID == "" {
		errs = append(errs, errors.New("muted_role_id and voice_muted_role_id are required"))
	}
	if g.AuditChannelID == "" {
		errs = append(errs, errors.New("audit_channel_id is required"))
	}
	if g.ReviewChannelID == "" {
		errs = append(errs, errors.New("review_channel_id is required"))
	}
	if len(g.ModeratorRoleIDs) == 0 {
		errs = append(errs, errors.New("at least one moderator_role_ids entry is required"))
	}
	if g.CheckInterval <= 0 || g.CheckInterval >= time.Minute {
		errs = append(errs, fmt.Errorf("check_interval must be between 0 and 1m, got %s", g.CheckInterval))
	}
	if g.KickGrace <= 0 {
		errs = append(errs, errors.New("kick_grace must be positive"))
	}
	if g.DecisionWindow <= 0 {
		errs = append(errs, errors.New("decision_window must be positive"))
	}
	return errors.Join(errs...)
}

// Config 存储应用程序的配置
type Config struct {
	BotToken     string
	LogChannelID string
	MetricsAddr  string
	Database     DatabaseConfig
	Guard        GuardConfig
}

// Validate checks everything needed to start the bot.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return errors.New("BOT_TOKEN environment variable not set")
	}
	return c.Guard.Validate()
}
