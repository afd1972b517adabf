package core

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"songseeker/internal/i18n"
)

const (
	// DefaultServerHost is the interface the HTTP server binds to
	DefaultServerHost = "0.0.0.0"
	// DefaultServerPort matches the port the callback URL is registered with
	DefaultServerPort = 8000
	// DefaultDeviceName is the Spotify Connect device the player drives
	DefaultDeviceName = "SongSeeker Player"
	// DefaultVerifierLength is the PKCE code verifier length (RFC 7636 allows 43-128)
	DefaultVerifierLength = 128
	// DefaultPlaybackWindowSecs is how long a randomized snippet plays before pausing
	DefaultPlaybackWindowSecs = 30
	// DefaultSettleDelayMs is the pause between device transfer and the play command
	DefaultSettleDelayMs = 300
	// DefaultDevicePollIntervalSecs is how often the device handle checks device presence
	DefaultDevicePollIntervalSecs = 5
	// DefaultNoticeTTLSecs is how long a user-visible error notice stays visible
	DefaultNoticeTTLSecs = 5
	// DefaultDiagnosticsSize bounds the number of retained unresolved-scan records
	DefaultDiagnosticsSize = 100
	// DefaultScanFloodLimitPerMinute limits scan submissions per client
	DefaultScanFloodLimitPerMinute = 60
	// DefaultStorageDriver keeps credentials in process memory
	DefaultStorageDriver = "memory"
	// DefaultScannerSource reads decoded codes from standard input
	DefaultScannerSource = "stdin"
)

type Config struct {
	Spotify  SpotifyConfig
	Lookup   LookupConfig
	Storage  StorageConfig
	Playback PlaybackConfig
	Scanner  ScannerConfig
	Server   ServerConfig
	Log      LogConfig
	App      AppConfig
}

type SpotifyConfig struct {
	ClientID       string `validate:"required"`
	RedirectURL    string `validate:"required,url"`
	AuthURL        string `validate:"omitempty,url"`
	TokenURL       string `validate:"omitempty,url"`
	APIBaseURL     string `validate:"omitempty,url"`
	DeviceName     string `validate:"required"`
	VerifierLength int    `validate:"min=43,max=128"`
	OpenBrowser    bool
}

type LookupConfig struct {
	BaseURL string `validate:"required,url"`
}

type StorageConfig struct {
	Driver string `validate:"oneof=memory file sqlite"`
	Path   string `validate:"required_unless=Driver memory"`
}

type PlaybackConfig struct {
	WindowSecs             int `validate:"min=1"`
	SettleDelayMs          int `validate:"min=0"`
	DevicePollIntervalSecs int `validate:"min=1"`
	RandomPlayback         bool
	Autoplay               bool
}

type ScannerConfig struct {
	Source              string `validate:"oneof=stdin http"`
	FloodLimitPerMinute int    `validate:"min=1"`
	DiagnosticsSize     int    `validate:"min=1"`
	// Continuous keeps the scanner running after a card resolves.
	Continuous bool
}

type ServerConfig struct {
	Host          string
	Port          int `validate:"min=1,max=65535"`
	StaticDir     string
	NoticeTTLSecs int `validate:"min=1"`
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	// TrustProxy keys flood limiting on X-Forwarded-For instead of the peer address.
	TrustProxy bool
}

type LogConfig struct {
	Level string `validate:"oneof=debug info warn error"`
}

type AppConfig struct {
	Language string `validate:"required"`
}

// Window returns the configured randomized playback window.
func (p PlaybackConfig) Window() time.Duration {
	return time.Duration(p.WindowSecs) * time.Second
}

// SettleDelay returns the delay between device activation and playback.
func (p PlaybackConfig) SettleDelay() time.Duration {
	return time.Duration(p.SettleDelayMs) * time.Millisecond
}

// DefaultPreferences returns the preferences used when a client has not set its own.
func (p PlaybackConfig) DefaultPreferences() Preferences {
	return Preferences{
		RandomPlayback: p.RandomPlayback,
		Autoplay:       p.Autoplay,
		Window:         p.Window(),
	}
}

func DefaultConfig() *Config {
	return &Config{
		Spotify: SpotifyConfig{
			RedirectURL:    fmt.Sprintf("http://localhost:%d/callback", DefaultServerPort),
			DeviceName:     DefaultDeviceName,
			VerifierLength: DefaultVerifierLength,
		},
		Lookup: LookupConfig{
			BaseURL: fmt.Sprintf("http://localhost:%d", DefaultServerPort),
		},
		Storage: StorageConfig{
			Driver: DefaultStorageDriver,
		},
		Playback: PlaybackConfig{
			WindowSecs:             DefaultPlaybackWindowSecs,
			SettleDelayMs:          DefaultSettleDelayMs,
			DevicePollIntervalSecs: DefaultDevicePollIntervalSecs,
		},
		Scanner: ScannerConfig{
			Source:              DefaultScannerSource,
			FloodLimitPerMinute: DefaultScanFloodLimitPerMinute,
			DiagnosticsSize:     DefaultDiagnosticsSize,
		},
		Server: ServerConfig{
			Host:          DefaultServerHost,
			Port:          DefaultServerPort,
			StaticDir:     "./static",
			NoticeTTLSecs: DefaultNoticeTTLSecs,
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
		App: AppConfig{
			Language: i18n.DefaultLanguage,
		},
	}
}

// Validate checks struct constraints and cross-field rules that tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if !i18n.IsSupported(c.App.Language) {
		return fmt.Errorf("unsupported language %q", c.App.Language)
	}

	return nil
}
