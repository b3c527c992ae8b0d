package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MODWATCH"

// envOverrides lists the settings that may come from the environment, e.g.
// MODWATCH_WEBHOOK_URL. Unset variables leave the file value alone.
type envOverrides struct {
	WebhookURL          string `split_words:"true"`
	MessageID           string `split_words:"true"`
	ModeratorURL        string `split_words:"true"`
	PlayerURL           string `split_words:"true"`
	Timezone            string
	LogLevel            string `split_words:"true"`
	PollIntervalSeconds int    `split_words:"true"`
	MetricsListen       string `split_words:"true"`
}

// ApplyEnv overrides cfg with any MODWATCH_* variables that are set.
func ApplyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("reading environment overrides: %w", err)
	}

	setString(&cfg.Webhook.URL, env.WebhookURL)
	setString(&cfg.Webhook.MessageID, env.MessageID)
	setString(&cfg.Sources.ModeratorURL, env.ModeratorURL)
	setString(&cfg.Sources.PlayerURL, env.PlayerURL)
	setString(&cfg.Display.Timezone, env.Timezone)
	setString(&cfg.Log.Level, env.LogLevel)
	setString(&cfg.Metrics.Listen, env.MetricsListen)
	if env.PollIntervalSeconds != 0 {
		cfg.Behavior.PollIntervalSeconds = env.PollIntervalSeconds
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// EnvDocs describes each override for the generated config header.
var EnvDocs = []string{
	EnvPrefix + "_WEBHOOK_URL           webhook.url",
	EnvPrefix + "_MESSAGE_ID            webhook.message_id",
	EnvPrefix + "_MODERATOR_URL         sources.moderator_url",
	EnvPrefix + "_PLAYER_URL            sources.player_url",
	EnvPrefix + "_TIMEZONE              display.timezone",
	EnvPrefix + "_LOG_LEVEL             log.level",
	EnvPrefix + "_POLL_INTERVAL_SECONDS behavior.poll_interval_seconds",
	EnvPrefix + "_METRICS_LISTEN        metrics.listen",
}
