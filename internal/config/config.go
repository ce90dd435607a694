package config

// Config is the root configuration for sealbot.
type Config struct {
	Playerok      PlayerokConfig      `json:"playerok"`
	Listener      ListenerConfig      `json:"listener"`
	Cursors       CursorsConfig       `json:"cursors"`
	Notifications NotificationsConfig `json:"notifications"`
}

// PlayerokConfig holds the marketplace account credentials and transport
// settings.
type PlayerokConfig struct {
	Token               string `json:"token"`
	UserAgent           string `json:"userAgent,omitempty"`
	Proxy               string `json:"proxy,omitempty"`
	RequestTimeout      int    `json:"requestTimeout"`      // seconds
	MaxChallengeRetries int    `json:"maxChallengeRetries"` // anti-bot retry budget
}

// ListenerConfig tunes the polling diff engine.
type ListenerConfig struct {
	PollInterval int `json:"pollInterval"` // seconds between ticks
	PageSize     int `json:"pageSize"`     // chats/messages per request
}

// CursorsConfig selects the cursor store. With Persist off (the default)
// cursors live in memory and a restart re-treats every chat as new.
type CursorsConfig struct {
	Persist bool   `json:"persist"`
	Path    string `json:"path,omitempty"` // sqlite file, default ~/.sealbot/cursors.db
}

// NotificationsConfig holds event notification sinks.
type NotificationsConfig struct {
	Discord DiscordConfig `json:"discord"`
}

// DiscordConfig mirrors selected events to a Discord channel.
type DiscordConfig struct {
	Enabled   bool          `json:"enabled"`
	Token     string        `json:"token,omitempty"`
	ChannelID string        `json:"channelId,omitempty"`
	Events    DiscordEvents `json:"events"`
}

// DiscordEvents switches notification kinds on and off.
type DiscordEvents struct {
	NewMessage        bool `json:"newMessage"`
	NewDeal           bool `json:"newDeal"`
	DealStatusChanged bool `json:"dealStatusChanged"`
	DealProblems      bool `json:"dealProblems"`
}

// DefaultConfig returns a Config with sensible defaults. The token is the
// only field without one.
func DefaultConfig() *Config {
	return &Config{
		Playerok: PlayerokConfig{
			RequestTimeout:      15,
			MaxChallengeRetries: 7,
		},
		Listener: ListenerConfig{
			PollInterval: 4,
			PageSize:     24,
		},
		Notifications: NotificationsConfig{
			Discord: DiscordConfig{
				Events: DiscordEvents{
					NewMessage:        true,
					NewDeal:           true,
					DealStatusChanged: true,
					DealProblems:      true,
				},
			},
		},
	}
}
