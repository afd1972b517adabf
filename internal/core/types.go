package core

import (
	"context"
	"time"
)

// TrackReference identifies a Spotify track and where playback should start.
type TrackReference struct {
	TrackID     string
	StartOffset int // seconds, never negative
}

// URI returns the Spotify URI of the referenced track.
func (r TrackReference) URI() string {
	return "spotify:track:" + r.TrackID
}

// Preferences are the per-player playback options.
type Preferences struct {
	RandomPlayback bool
	Autoplay       bool
	Window         time.Duration
}

type SessionState int

const (
	// StateNoDevice indicates no playback device is connected
	StateNoDevice SessionState = iota
	// StateDeviceReady indicates a device is connected but no track is loaded
	StateDeviceReady
	// StateTrackLoaded indicates a scanned track is waiting to be played
	StateTrackLoaded
	// StatePlaying indicates the loaded track is playing
	StatePlaying
	// StatePaused indicates playback was paused by the user or the window timer
	StatePaused
	// StateAuthExpired indicates the device rejected the credential and a new login is required
	StateAuthExpired
)

func (s SessionState) String() string {
	switch s {
	case StateNoDevice:
		return "no_device"
	case StateDeviceReady:
		return "device_ready"
	case StateTrackLoaded:
		return "track_loaded"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateAuthExpired:
		return "auth_expired"
	default:
		return "unknown"
	}
}

// MessageKey returns the i18n key describing the state.
func (s SessionState) MessageKey() string {
	return "status." + s.String()
}

// HasDevice reports whether the state implies a ready device.
func (s SessionState) HasDevice() bool {
	return s >= StateDeviceReady && s <= StatePaused
}

// SessionSnapshot is a read-only copy of the playback session.
type SessionSnapshot struct {
	State      SessionState
	DeviceID   string
	Track      *TrackReference
	TimerArmed bool
	StopAt     time.Time
}

// LinkResolver turns scanned text into a track reference.
type LinkResolver interface {
	Resolve(ctx context.Context, text string) (*TrackReference, error)
	CanResolve(text string) bool
}

// PlaybackController is the part of the playback session the dispatcher drives.
type PlaybackController interface {
	LoadTrack(ref TrackReference)
	Play(ctx context.Context, prefs Preferences) error
	CancelTimer()
}

// Scanner yields decoded code strings. Start may be called again after Stop;
// the returned channel is closed when the scanner stops.
type Scanner interface {
	Start(ctx context.Context) (<-chan string, error)
	Stop()
}

type DeviceEventType int

const (
	// DeviceReady reports the playback device is online with an ID
	DeviceReady DeviceEventType = iota
	// DeviceNotReady reports the playback device went offline
	DeviceNotReady
	// DeviceInitError reports the device could not be brought up
	DeviceInitError
	// DeviceAuthError reports the device rejected the credential
	DeviceAuthError
)

func (t DeviceEventType) String() string {
	switch t {
	case DeviceReady:
		return "ready"
	case DeviceNotReady:
		return "not_ready"
	case DeviceInitError:
		return "initialization_error"
	case DeviceAuthError:
		return "authentication_error"
	default:
		return "unknown"
	}
}

// DeviceEvent is one lifecycle notification from the playback device.
type DeviceEvent struct {
	Type     DeviceEventType
	DeviceID string
	Message  string
}

// DeviceState is the device's view of the current playback.
type DeviceState struct {
	Playing  bool
	Position time.Duration
	Duration time.Duration
}
