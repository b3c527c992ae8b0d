package config

// ///////////////////////////////////////////////
// Documentation Types
// ///////////////////////////////////////////////

// FieldDoc holds documentation and alternative examples for a single config field.
// The genconfig tool uses [FieldDoc] values to annotate the generated config.default.toml.
type FieldDoc struct {
	// Comment is shown as a header comment above the field in the example config.
	Comment string

	// Alternatives are shown as commented-out lines below the active value.
	Alternatives []string
}

// ///////////////////////////////////////////////
// Field Documentation Map
// ///////////////////////////////////////////////

// ConfigDocs maps TOML field paths (dot-separated, e.g. "display.order")
// to their [FieldDoc] entries. The genconfig tool uses this map to annotate the
// generated config.default.toml with inline comments and alternative examples.
var ConfigDocs = map[string]FieldDoc{
	// ── Root ──────────────────────────────────────────────────────
	"version": {
		Comment: "Config schema version. Do not edit.",
	},

	// ── Webhook ──────────────────────────────────────────────────
	"webhook": {
		Comment: "Where the status message is published.",
	},
	"webhook.url": {
		Comment: "Discord webhook URL (Server Settings > Integrations > Webhooks).\nTreat it like a password.",
	},
	"webhook.message_id": {
		Comment: "Message to keep editing. Leave empty to let the daemon post one and\nremember its id in message-id.txt.",
		Alternatives: []string{
			`message_id = "1234567890123456789"`,
		},
	},
	"webhook.on_missing_message": {
		Comment: "What to do when there is no message to edit, or Discord rejects the edit.\n  create: post a new message and remember its id\n  fail:   log an error and leave the channel untouched",
		Alternatives: []string{
			`on_missing_message = "fail"`,
		},
	},
	"webhook.timeout_seconds": {
		Comment: "Timeout for a single webhook request.",
	},
	"webhook.retries": {
		Comment: "Retries for a webhook request that failed with a network error, 429 or 5xx.",
	},

	// ── Sources ──────────────────────────────────────────────────
	"sources": {
		Comment: "Upstream feeds sampled every cycle.",
	},
	"sources.moderator_url": {
		Comment: "Page listing online moderators, one per line (GitHub file view).",
	},
	"sources.player_url": {
		Comment: "JSON endpoint with the player count under \"online_user\" or \"players\".",
	},
	"sources.user_agent": {
		Comment: "User-Agent sent to both feeds.",
	},
	"sources.timeout_seconds": {
		Comment: "Timeout for a single feed request.",
	},
	"sources.retries": {
		Comment: "Retries for a feed request that failed with a network error, 429 or 5xx.",
	},

	// ── Display ──────────────────────────────────────────────────
	"display": {
		Comment: "How the status message looks.",
	},
	"display.server_name": {
		Comment: "Name the webhook posts under.",
	},
	"display.title": {},
	"display.color": {
		Comment: "Embed color as a decimal RGB value (5763719 = #57F287).",
	},
	"display.timezone": {
		Comment: "IANA time zone. Sessions reset at midnight in this zone and all\nclock times are shown in it.",
		Alternatives: []string{
			`timezone = "UTC"`,
			`timezone = "America/New_York"`,
		},
	},
	"display.order": {
		Comment: "List order. Options: \"session\", \"alphabetical\"\n  session:      online by session start, seen-today by most recent sighting\n  alphabetical: both lists by name",
		Alternatives: []string{
			`order = "alphabetical"`,
		},
	},
	"display.online_count_label": {
		Comment: "Field labels.",
	},
	"display.online_heading": {},
	"display.seen_heading": {
		Comment: "The date is appended in parentheses.",
	},
	"display.footer_prefix": {},
	"display.undercover_label": {
		Comment: "Appended to moderators seen undercover today.",
	},
	"display.online_marker": {
		Comment: "Appended in the seen-today list to moderators still online.",
	},
	"display.empty_online": {
		Comment: "Placeholders for empty lists.",
	},
	"display.empty_seen": {},

	// ── Behavior ─────────────────────────────────────────────────
	"behavior": {
		Comment: "Daemon behavior.",
	},
	"behavior.poll_interval_seconds": {
		Comment: "Seconds between cycles. Discord allows about 5 webhook calls every 2 seconds;\nvalues below 10 gain nothing because the feeds update slower.",
	},
	"behavior.watch_config": {
		Comment: "Reload this file when it changes. Most settings apply from the next cycle.",
	},

	// ── Moderators ───────────────────────────────────────────────
	"moderators": {
		Comment: "Moderator list filtering.",
	},
	"moderators.ignore": {
		Comment: "Glob patterns (case-insensitive) for names that are never tracked.",
		Alternatives: []string{
			`ignore = ["test*", "bot_*"]`,
		},
	},

	// ── Metrics ──────────────────────────────────────────────────
	"metrics": {
		Comment: "Prometheus metrics endpoint.",
	},
	"metrics.listen": {
		Comment: "Address to serve /metrics on. Empty disables it.",
		Alternatives: []string{
			`listen = "127.0.0.1:9464"`,
		},
	},

	// ── Log ──────────────────────────────────────────────────────
	"log": {
		Comment: "Logging configuration",
	},
	"log.level": {
		Comment: "Minimum log level. Options: \"trace\", \"debug\", \"info\", \"warn\", \"error\"",
		Alternatives: []string{
			`level = "debug"`,
			`level = "warn"`,
		},
	},
	"log.max_size_mb": {
		Comment: "Maximum log file size in megabytes before rotation.",
	},
	"log.console": {
		Comment: "Also write log lines to stderr.",
	},
}
