package core

import (
	"strings"
	"testing"

	"songseeker/internal/i18n"
)

func validConfig() *Config {
	config := DefaultConfig()
	config.Spotify.ClientID = "client-id"
	return config
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.App.Language != i18n.DefaultLanguage {
		t.Errorf("Expected default language to be %s, got %s", i18n.DefaultLanguage, config.App.Language)
	}

	if config.Playback.WindowSecs != DefaultPlaybackWindowSecs {
		t.Errorf("Expected default window %d, got %d", DefaultPlaybackWindowSecs, config.Playback.WindowSecs)
	}

	if config.Spotify.VerifierLength != DefaultVerifierLength {
		t.Errorf("Expected default verifier length %d, got %d", DefaultVerifierLength, config.Spotify.VerifierLength)
	}

	if config.Spotify.RedirectURL != "http://localhost:8000/callback" {
		t.Errorf("Unexpected default redirect URL %s", config.Spotify.RedirectURL)
	}

	if config.Storage.Driver != "memory" {
		t.Errorf("Expected memory storage by default, got %s", config.Storage.Driver)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing client id", mutate: func(c *Config) { c.Spotify.ClientID = "" }, wantErr: "ClientID"},
		{name: "bad redirect", mutate: func(c *Config) { c.Spotify.RedirectURL = "not a url" }, wantErr: "RedirectURL"},
		{name: "short verifier", mutate: func(c *Config) { c.Spotify.VerifierLength = 42 }, wantErr: "VerifierLength"},
		{name: "long verifier", mutate: func(c *Config) { c.Spotify.VerifierLength = 129 }, wantErr: "VerifierLength"},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "redis" }, wantErr: "Driver"},
		{name: "file without path", mutate: func(c *Config) { c.Storage.Driver = "file" }, wantErr: "Path"},
		{name: "file with path", mutate: func(c *Config) { c.Storage.Driver = "file"; c.Storage.Path = "/tmp/s.json" }},
		{name: "zero window", mutate: func(c *Config) { c.Playback.WindowSecs = 0 }, wantErr: "WindowSecs"},
		{name: "unknown scanner", mutate: func(c *Config) { c.Scanner.Source = "camera" }, wantErr: "Source"},
		{name: "bad port", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: "Port"},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "trace" }, wantErr: "Level"},
		{name: "unsupported language", mutate: func(c *Config) { c.App.Language = "xx" }, wantErr: "unsupported language"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.mutate(config)

			err := config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLanguageConfiguration(t *testing.T) {
	config := DefaultConfig()

	for _, lang := range i18n.GetSupportedLanguages() {
		config.App.Language = lang
		localizer := i18n.NewLocalizer(config.App.Language)
		if localizer == nil {
			t.Errorf("Failed to create localizer for language %s", lang)
		}

		if message := localizer.T("error.generic"); message == "" {
			t.Errorf("Empty message for key 'error.generic' in language %s", lang)
		}
	}
}

func TestPlaybackConfigDurations(t *testing.T) {
	config := DefaultConfig()

	if got := config.Playback.Window().Seconds(); got != DefaultPlaybackWindowSecs {
		t.Errorf("Window() = %vs, want %ds", got, DefaultPlaybackWindowSecs)
	}
	if got := config.Playback.SettleDelay().Milliseconds(); got != DefaultSettleDelayMs {
		t.Errorf("SettleDelay() = %dms, want %dms", got, DefaultSettleDelayMs)
	}

	prefs := config.Playback.DefaultPreferences()
	if prefs.Window != config.Playback.Window() || prefs.RandomPlayback || prefs.Autoplay {
		t.Errorf("DefaultPreferences() = %+v", prefs)
	}
}

func TestSessionState(t *testing.T) {
	tests := []struct {
		state     SessionState
		key       string
		hasDevice bool
	}{
		{StateNoDevice, "status.no_device", false},
		{StateDeviceReady, "status.device_ready", true},
		{StateTrackLoaded, "status.track_loaded", true},
		{StatePlaying, "status.playing", true},
		{StatePaused, "status.paused", true},
		{StateAuthExpired, "status.auth_expired", false},
	}

	localizer := i18n.NewLocalizer(i18n.DefaultLanguage)
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			if got := tt.state.MessageKey(); got != tt.key {
				t.Errorf("MessageKey() = %q, want %q", got, tt.key)
			}
			if got := tt.state.HasDevice(); got != tt.hasDevice {
				t.Errorf("HasDevice() = %v, want %v", got, tt.hasDevice)
			}
			if localizer.T(tt.key) == tt.key {
				t.Errorf("no translation for %q", tt.key)
			}
		})
	}
}
