package types

import "time"

// Config is the application configuration, loaded from JSONC files and
// environment overrides.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Engine   EngineConfig   `json:"engine"`
	Usage    UsageConfig    `json:"usage"`
	Document DocumentConfig `json:"document"`
	Log      LogConfig      `json:"log"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port       int  `json:"port"`
	EnableCORS bool `json:"enableCORS"`
}

// EngineConfig holds permission-engine tunables.
type EngineConfig struct {
	// PermissionCacheTTLMinutes bounds staleness of cached permission
	// records. Updates invalidate synchronously regardless.
	PermissionCacheTTLMinutes int `json:"permissionCacheTTLMinutes"`

	// MinorEditThreshold is the content-length ceiling for auto-approved
	// minor edits at the collaborative level.
	MinorEditThreshold int `json:"minorEditThreshold"`

	// ModerateEditThreshold is the content-length ceiling for unattended
	// writes/edits at the semi-autonomous level.
	ModerateEditThreshold int `json:"moderateEditThreshold"`

	DefaultApprovalTimeoutMinutes int `json:"defaultApprovalTimeoutMinutes"`

	// EscalationRejectionThreshold is the consecutive-rejection count after
	// which an autonomy downgrade is suggested.
	EscalationRejectionThreshold int `json:"escalationRejectionThreshold"`
}

// UsageConfig holds usage-tracker settings.
type UsageConfig struct {
	// DailyResetHourUTC is the UTC hour at which daily counters roll over.
	DailyResetHourUTC int `json:"dailyResetHourUTC"`

	// SessionRetryMinutes is the retry-after hint returned for session-level
	// rate limits, which have no fixed window boundary.
	SessionRetryMinutes int `json:"sessionRetryMinutes"`
}

// DocumentConfig holds document-state and conflict-resolution settings.
type DocumentConfig struct {
	// ConflictWindowSeconds is the trailing window of applied changes an
	// incoming change is checked against.
	ConflictWindowSeconds int `json:"conflictWindowSeconds"`

	// SnapshotCharDelta is the minimum edit distance between old and new
	// content for a change to trigger a version snapshot.
	SnapshotCharDelta int `json:"snapshotCharDelta"`

	StateCacheTTLSeconds int `json:"stateCacheTTLSeconds"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `json:"level"`
	Pretty bool   `json:"pretty"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:       8080,
			EnableCORS: true,
		},
		Engine: EngineConfig{
			PermissionCacheTTLMinutes:     5,
			MinorEditThreshold:            50,
			ModerateEditThreshold:         500,
			DefaultApprovalTimeoutMinutes: 30,
			EscalationRejectionThreshold:  3,
		},
		Usage: UsageConfig{
			DailyResetHourUTC:   0,
			SessionRetryMinutes: 10,
		},
		Document: DocumentConfig{
			ConflictWindowSeconds: 30,
			SnapshotCharDelta:     250,
			StateCacheTTLSeconds:  60,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// PermissionCacheTTL returns the cache TTL as a duration.
func (c EngineConfig) PermissionCacheTTL() time.Duration {
	return time.Duration(c.PermissionCacheTTLMinutes) * time.Minute
}

// DefaultApprovalTimeout returns the default approval timeout as a duration.
func (c EngineConfig) DefaultApprovalTimeout() time.Duration {
	return time.Duration(c.DefaultApprovalTimeoutMinutes) * time.Minute
}

// ConflictWindow returns the conflict lookback window as a duration.
func (c DocumentConfig) ConflictWindow() time.Duration {
	return time.Duration(c.ConflictWindowSeconds) * time.Second
}

// StateCacheTTL returns the document-state cache TTL as a duration.
func (c DocumentConfig) StateCacheTTL() time.Duration {
	return time.Duration(c.StateCacheTTLSeconds) * time.Second
}

// SessionRetry returns the session rate-limit retry hint as a duration.
func (c UsageConfig) SessionRetry() time.Duration {
	return time.Duration(c.SessionRetryMinutes) * time.Minute
}
