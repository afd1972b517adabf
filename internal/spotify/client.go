// Package spotify provides Spotify Web API integration for remote playback control.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"songseeker/internal/core"
)

const (
	// defaultHTTPTimeout bounds every Web API request
	defaultHTTPTimeout = 15 * time.Second
)

// APIError is a non-2xx response from the Web API.
type APIError struct {
	Op      string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
}

// PlaybackState is the part of the player state the session controller needs.
type PlaybackState struct {
	DeviceID string
	Playing  bool
	TrackID  string
	Progress time.Duration
	Duration time.Duration
}

// Device is a Spotify Connect device visible to the account.
type Device struct {
	ID     string
	Name   string
	Type   string
	Active bool
}

type Client struct {
	config *core.SpotifyConfig
	logger *zap.Logger
	client *spotify.Client
}

// NewClient creates a Web API client that asks tokens for a bearer token on
// every request, so a refreshed credential is used as soon as it is stored.
func NewClient(config *core.SpotifyConfig, tokens oauth2.TokenSource, logger *zap.Logger) *Client {
	httpClient := &http.Client{
		Timeout:   defaultHTTPTimeout,
		Transport: &oauth2.Transport{Source: tokens},
	}

	var opts []spotify.ClientOption
	if config.APIBaseURL != "" {
		opts = append(opts, spotify.WithBaseURL(strings.TrimRight(config.APIBaseURL, "/")+"/"))
	}

	return &Client{
		config: config,
		logger: logger,
		client: spotify.New(httpClient, opts...),
	}
}

// TransferPlayback makes deviceID the active device without starting playback unless play is set.
func (c *Client) TransferPlayback(ctx context.Context, deviceID string, play bool) error {
	if err := c.client.TransferPlayback(ctx, spotify.ID(deviceID), play); err != nil {
		return wrapError("transfer playback", err)
	}

	c.logger.Debug("Transferred playback",
		zap.String("deviceID", deviceID),
		zap.Bool("play", play))
	return nil
}

// PlayTrack starts the track URI on deviceID at position.
func (c *Client) PlayTrack(ctx context.Context, deviceID, uri string, position time.Duration) error {
	id := spotify.ID(deviceID)
	err := c.client.PlayOpt(ctx, &spotify.PlayOptions{
		DeviceID:   &id,
		URIs:       []spotify.URI{spotify.URI(uri)},
		PositionMs: int(position.Milliseconds()),
	})
	if err != nil {
		return wrapError("play track", err)
	}

	c.logger.Info("Started track",
		zap.String("uri", uri),
		zap.String("deviceID", deviceID),
		zap.Duration("position", position))
	return nil
}

// Resume continues the current playback on deviceID.
func (c *Client) Resume(ctx context.Context, deviceID string) error {
	id := spotify.ID(deviceID)
	if err := c.client.PlayOpt(ctx, &spotify.PlayOptions{DeviceID: &id}); err != nil {
		return wrapError("resume playback", err)
	}
	return nil
}

// Pause pauses playback on deviceID.
func (c *Client) Pause(ctx context.Context, deviceID string) error {
	var opts *spotify.PlayOptions
	if deviceID != "" {
		id := spotify.ID(deviceID)
		opts = &spotify.PlayOptions{DeviceID: &id}
	}

	if err := c.client.PauseOpt(ctx, opts); err != nil {
		return wrapError("pause playback", err)
	}
	return nil
}

// Seek moves the playhead on deviceID to position.
func (c *Client) Seek(ctx context.Context, deviceID string, position time.Duration) error {
	id := spotify.ID(deviceID)
	if err := c.client.SeekOpt(ctx, int(position.Milliseconds()), &spotify.PlayOptions{DeviceID: &id}); err != nil {
		return wrapError("seek", err)
	}
	return nil
}

// PlaybackState returns the current player state, or an empty state when nothing is playing.
func (c *Client) PlaybackState(ctx context.Context) (*PlaybackState, error) {
	state, err := c.client.PlayerState(ctx)
	if err != nil {
		return nil, wrapError("get player state", err)
	}

	result := &PlaybackState{}
	if state == nil {
		return result, nil
	}

	result.DeviceID = state.Device.ID.String()
	result.Playing = state.Playing
	result.Progress = time.Duration(int(state.Progress)) * time.Millisecond
	if state.Item != nil {
		result.TrackID = state.Item.ID.String()
		result.Duration = time.Duration(int(state.Item.Duration)) * time.Millisecond
	}

	return result, nil
}

// Devices lists the Connect devices available to the account.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	devices, err := c.client.PlayerDevices(ctx)
	if err != nil {
		return nil, wrapError("get player devices", err)
	}

	result := make([]Device, 0, len(devices))
	for _, device := range devices {
		result = append(result, Device{
			ID:     device.ID.String(),
			Name:   device.Name,
			Type:   device.Type,
			Active: device.Active,
		})
	}
	return result, nil
}

// wrapError turns Web API error responses into *APIError and wraps everything else.
func wrapError(op string, err error) error {
	var serr spotify.Error
	if errors.As(err, &serr) {
		return &APIError{Op: op, Status: statusOf(serr.Status, serr.Message), Message: serr.Message}
	}
	var serrPtr *spotify.Error
	if errors.As(err, &serrPtr) && serrPtr != nil {
		return &APIError{Op: op, Status: statusOf(serrPtr.Status, serrPtr.Message), Message: serrPtr.Message}
	}
	// Responses without a body are reported as plain errors naming the status.
	if status := statusOf(0, err.Error()); status != 0 {
		return &APIError{Op: op, Status: status, Message: http.StatusText(status)}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

var httpStatusRegex = regexp.MustCompile(`HTTP (\d{3})`)

func statusOf(status int, message string) int {
	if status != 0 {
		return status
	}
	if m := httpStatusRegex.FindStringSubmatch(message); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	return 0
}

// StatusCode returns the HTTP status carried by err, if any.
func StatusCode(err error) (int, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status, true
	}
	return 0, false
}
