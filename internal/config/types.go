package config

// Config is heraldbot's file configuration. JSON or YAML; both are decoded
// strictly (unknown keys are rejected) so typos surface at load time.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Access   AccessConfig   `json:"access"`
	Storage  StorageConfig  `json:"storage"`
	Notify   NotifyConfig   `json:"notify,omitempty"`
	Digest   DigestConfig   `json:"digest,omitempty"`
	Reports  ReportsConfig  `json:"reports,omitempty"`
	Logging  LoggingConfig  `json:"logging"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	AdminUserIDs []int64 `json:"admin_user_ids"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

// AccessConfig gates subscription: only users who opened the bot through the
// deep link carrying the secret token may subscribe.
type AccessConfig struct {
	SecretStartToken string `json:"secret_start_token"`
}

type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string
}

type NotifyConfig struct {
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// DigestConfig controls the scheduled read-rate digest to admins.
type DigestConfig struct {
	Enabled bool   `json:"enabled"`
	Spec    string `json:"spec,omitempty"`   // cron expression, e.g. "0 9 * * *"
	Window  string `json:"window,omitempty"` // Go duration string, default 24h
}

type ReportsConfig struct {
	Dir string `json:"dir,omitempty"` // default "./reports"
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}
