package playback

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"songseeker/internal/core"
	"songseeker/internal/spotify"
)

// randomStartDivisor keeps random start points out of the first and last
// tenth of a track.
const randomStartDivisor = 10

var (
	ErrAuthExpired    = errors.New("playback device rejected the credential, login required")
	ErrDeviceNotReady = errors.New("playback device not ready")
	ErrNoTrackLoaded  = errors.New("no track loaded")
	ErrDeviceInit     = errors.New("playback device failed to initialize")
	ErrNoPlayerState  = errors.New("no playback state available")
)

// PlaybackAPIError is a non-success response from the Web API during a playback command.
type PlaybackAPIError struct {
	Status  int
	Message string
	Err     error
}

func (e *PlaybackAPIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("Spotify API error: status %d", e.Status)
	}
	return fmt.Sprintf("Spotify API error: %s", e.Message)
}

func (e *PlaybackAPIError) Unwrap() error {
	return e.Err
}

// Device is the remote player handle.
type Device interface {
	Connect(ctx context.Context, events chan<- core.DeviceEvent) error
	Disconnect()
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Seek(ctx context.Context, position time.Duration) error
	State(ctx context.Context) (*core.DeviceState, error)
}

// PlayerAPI is the REST side of playback control.
type PlayerAPI interface {
	TransferPlayback(ctx context.Context, deviceID string, play bool) error
	PlayTrack(ctx context.Context, deviceID, uri string, position time.Duration) error
	Pause(ctx context.Context, deviceID string) error
}

type Authenticator interface {
	RefreshIfNeeded(ctx context.Context) error
	EnsureAuthenticated(ctx context.Context) error
}

type CredentialClearer interface {
	Clear() error
}

// Controller owns the single playback session of the process.
type Controller struct {
	device   Device
	api      PlayerAPI
	auth     Authenticator
	clearer  CredentialClearer
	config   *core.PlaybackConfig
	logger   *zap.Logger
	random   func() float64
	sleep    func(ctx context.Context, d time.Duration) error
	events   chan core.DeviceEvent
	done     chan struct{}
	watchers sync.Once
	closed   sync.Once

	mutex           sync.Mutex
	state           core.SessionState
	deviceID        string
	track           *core.TrackReference
	waiters         []chan error
	timer           *time.Timer
	timerGeneration uint64
	stopAt          time.Time
}

func NewController(
	device Device,
	api PlayerAPI,
	auth Authenticator,
	clearer CredentialClearer,
	config *core.PlaybackConfig,
	logger *zap.Logger,
) *Controller {
	return &Controller{
		device:  device,
		api:     api,
		auth:    auth,
		clearer: clearer,
		config:  config,
		logger:  logger,
		random:  rand.Float64,
		sleep:   sleepContext,
		events:  make(chan core.DeviceEvent),
		done:    make(chan struct{}),
		state:   core.StateNoDevice,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Connect brings up the playback device and waits until it is ready.
// It returns immediately when a device is already ready.
func (c *Controller) Connect(ctx context.Context) error {
	c.watchers.Do(func() { go c.watch() })

	c.mutex.Lock()
	if c.state.HasDevice() {
		c.mutex.Unlock()
		return nil
	}
	ready := make(chan error, 1)
	c.waiters = append(c.waiters, ready)
	c.mutex.Unlock()

	// The device outlives the request that connected it.
	if err := c.device.Connect(context.WithoutCancel(ctx), c.events); err != nil {
		c.removeWaiter(ready)
		return fmt.Errorf("failed to connect device: %w", err)
	}

	select {
	case err := <-ready:
		return err
	case <-ctx.Done():
		c.removeWaiter(ready)
		return ctx.Err()
	}
}

func (c *Controller) removeWaiter(ready chan error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for i, w := range c.waiters {
		if w == ready {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}

func (c *Controller) watch() {
	for {
		select {
		case <-c.done:
			return
		case event := <-c.events:
			c.apply(event)
		}
	}
}

func (c *Controller) apply(event core.DeviceEvent) {
	c.logger.Info("Playback device event",
		zap.String("event", event.Type.String()),
		zap.String("device_id", event.DeviceID),
		zap.String("message", event.Message))

	switch event.Type {
	case core.DeviceReady:
		c.mutex.Lock()
		c.deviceID = event.DeviceID
		if !c.state.HasDevice() {
			c.state = core.StateDeviceReady
			if c.track != nil {
				c.state = core.StateTrackLoaded
			}
		}
		c.resolveLocked(nil)
		c.mutex.Unlock()

	case core.DeviceNotReady:
		c.mutex.Lock()
		c.cancelTimerLocked()
		c.deviceID = ""
		c.state = core.StateNoDevice
		c.mutex.Unlock()

	case core.DeviceInitError:
		c.mutex.Lock()
		c.deviceID = ""
		c.state = core.StateNoDevice
		c.resolveLocked(fmt.Errorf("%w: %s", ErrDeviceInit, event.Message))
		c.mutex.Unlock()

	case core.DeviceAuthError:
		if err := c.clearer.Clear(); err != nil {
			c.logger.Error("Failed to clear credentials", zap.Error(err))
		}
		c.device.Disconnect()
		c.mutex.Lock()
		c.cancelTimerLocked()
		c.deviceID = ""
		c.state = core.StateAuthExpired
		c.resolveLocked(ErrAuthExpired)
		c.mutex.Unlock()
	}
}

func (c *Controller) resolveLocked(err error) {
	for _, w := range c.waiters {
		w <- err
	}
	c.waiters = nil
}

// LoadTrack records ref as the track to play next.
func (c *Controller) LoadTrack(ref core.TrackReference) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.cancelTimerLocked()
	c.track = &ref
	if c.state.HasDevice() {
		c.state = core.StateTrackLoaded
	}

	c.logger.Info("Track loaded",
		zap.String("track_id", ref.TrackID),
		zap.Int("start_offset", ref.StartOffset))
}

// Play starts the loaded track on the device.
func (c *Controller) Play(ctx context.Context, prefs core.Preferences) error {
	if err := c.playable(); err != nil {
		return err
	}
	if err := c.auth.RefreshIfNeeded(ctx); err != nil {
		return fmt.Errorf("failed to refresh credential: %w", err)
	}
	return c.play(ctx, prefs)
}

func (c *Controller) playable() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.state.HasDevice() || c.deviceID == "" {
		return ErrDeviceNotReady
	}
	if c.track == nil {
		return ErrNoTrackLoaded
	}
	return nil
}

// play runs the playback commands once the credential has been checked. A
// pause, stop or new track arriving while the commands are in flight wins
// over the late completion.
func (c *Controller) play(ctx context.Context, prefs core.Preferences) error {
	c.mutex.Lock()
	state, deviceID, track := c.state, c.deviceID, c.track
	c.cancelTimerLocked()
	generation := c.timerGeneration
	c.mutex.Unlock()

	if !state.HasDevice() || deviceID == "" {
		return ErrDeviceNotReady
	}
	if track == nil {
		return ErrNoTrackLoaded
	}

	if err := c.api.TransferPlayback(ctx, deviceID, false); err != nil {
		return c.apiFailure(ctx, err)
	}
	if err := c.sleep(ctx, c.config.SettleDelay()); err != nil {
		return err
	}

	offset := time.Duration(track.StartOffset) * time.Second
	if err := c.api.PlayTrack(ctx, deviceID, track.URI(), offset); err != nil {
		return c.apiFailure(ctx, err)
	}

	window := c.window(prefs)
	if prefs.RandomPlayback {
		if err := c.playRandomWindow(ctx, window); err != nil {
			return c.apiFailure(ctx, err)
		}
	} else if err := c.device.Resume(ctx); err != nil {
		return c.apiFailure(ctx, err)
	}

	c.mutex.Lock()
	if generation != c.timerGeneration {
		c.mutex.Unlock()
		c.logger.Debug("Playback superseded before it started",
			zap.String("track_id", track.TrackID))
		return nil
	}
	c.state = core.StatePlaying
	if prefs.RandomPlayback {
		c.armTimerLocked(window)
	}
	c.mutex.Unlock()

	c.logger.Info("Playback started",
		zap.String("track_id", track.TrackID),
		zap.Bool("random", prefs.RandomPlayback))
	return nil
}

func (c *Controller) window(prefs core.Preferences) time.Duration {
	if prefs.Window > 0 {
		return prefs.Window
	}
	return c.config.Window()
}

func (c *Controller) playRandomWindow(ctx context.Context, window time.Duration) error {
	state, err := c.device.State(ctx)
	if err != nil {
		return err
	}
	if state == nil {
		return ErrNoPlayerState
	}

	start := RandomStart(state.Duration, window, c.random())
	c.logger.Debug("Playing at random position",
		zap.Duration("duration", state.Duration),
		zap.Duration("start", start),
		zap.Duration("window", window))

	if err := c.device.Seek(ctx, start); err != nil {
		return err
	}
	return c.device.Resume(ctx)
}

// RandomStart maps r in [0,1) to a whole-millisecond start point in
// [duration/10, duration·9/10 − window]. When the window does not fit,
// playback starts at duration/10.
func RandomStart(duration, window time.Duration, r float64) time.Duration {
	low := ceilMillisecond((duration + randomStartDivisor - 1) / randomStartDivisor)
	high := (duration*(randomStartDivisor-1)/randomStartDivisor - window).Truncate(time.Millisecond)
	if high <= low {
		return low
	}
	return (low + time.Duration(r*float64(high-low))).Truncate(time.Millisecond)
}

func ceilMillisecond(d time.Duration) time.Duration {
	if rem := d % time.Millisecond; rem > 0 {
		return d - rem + time.Millisecond
	}
	return d
}

func (c *Controller) armTimerLocked(window time.Duration) {
	c.cancelTimerLocked()
	generation := c.timerGeneration
	c.stopAt = time.Now().Add(window)
	c.timer = time.AfterFunc(window, func() { c.timerFired(generation) })
}

func (c *Controller) timerFired(generation uint64) {
	c.mutex.Lock()
	if generation != c.timerGeneration {
		c.mutex.Unlock()
		return
	}
	c.timer = nil
	c.stopAt = time.Time{}
	c.mutex.Unlock()

	if err := c.device.Pause(context.Background()); err != nil {
		c.logger.Warn("Failed to pause after playback window", zap.Error(err))
		return
	}

	c.mutex.Lock()
	if generation == c.timerGeneration && c.state == core.StatePlaying {
		c.state = core.StatePaused
	}
	c.mutex.Unlock()
	c.logger.Debug("Playback window elapsed")
}

func (c *Controller) cancelTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.stopAt = time.Time{}
	c.timerGeneration++
}

// CancelTimer disarms the playback window timer, if armed.
func (c *Controller) CancelTimer() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.cancelTimerLocked()
}

// apiFailure converts Web API errors and asks for a new login once on 403.
func (c *Controller) apiFailure(ctx context.Context, err error) error {
	var apiErr *spotify.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	playbackErr := &PlaybackAPIError{Status: apiErr.Status, Message: apiErr.Message, Err: err}
	c.logger.Warn("Playback command failed",
		zap.Int("status", apiErr.Status),
		zap.String("op", apiErr.Op),
		zap.String("message", apiErr.Message))

	if apiErr.Status == http.StatusForbidden {
		if authErr := c.auth.EnsureAuthenticated(ctx); authErr != nil {
			c.logger.Warn("Re-authentication failed", zap.Error(authErr))
		}
	}
	return playbackErr
}

// Toggle pauses when the device is playing and plays the loaded track otherwise.
func (c *Controller) Toggle(ctx context.Context, prefs core.Preferences) error {
	c.mutex.Lock()
	ready := c.state.HasDevice() && c.deviceID != ""
	c.mutex.Unlock()
	if !ready {
		return ErrDeviceNotReady
	}

	if err := c.auth.RefreshIfNeeded(ctx); err != nil {
		return fmt.Errorf("failed to refresh credential: %w", err)
	}

	state, err := c.device.State(ctx)
	if err != nil {
		return c.apiFailure(ctx, err)
	}
	if state != nil && state.Playing {
		return c.Pause(ctx)
	}
	if err := c.playable(); err != nil {
		return err
	}
	return c.play(ctx, prefs)
}

// Pause stops the device locally and asks the Web API to pause as well.
func (c *Controller) Pause(ctx context.Context) error {
	c.mutex.Lock()
	c.cancelTimerLocked()
	deviceID := c.deviceID
	c.mutex.Unlock()

	if err := c.device.Pause(ctx); err != nil {
		return c.apiFailure(ctx, err)
	}
	if err := c.api.Pause(ctx, deviceID); err != nil {
		c.logger.Warn("Error while pausing via API", zap.Error(err))
	}

	c.mutex.Lock()
	if c.state == core.StatePlaying {
		c.state = core.StatePaused
	}
	c.mutex.Unlock()
	return nil
}

// Stop pauses playback and returns the session to the loaded track.
func (c *Controller) Stop(ctx context.Context) error {
	c.mutex.Lock()
	c.cancelTimerLocked()
	deviceID, ready := c.deviceID, c.state.HasDevice()
	c.mutex.Unlock()

	if !ready {
		return ErrDeviceNotReady
	}
	if err := c.api.Pause(ctx, deviceID); err != nil {
		return c.apiFailure(ctx, err)
	}

	c.mutex.Lock()
	if c.state.HasDevice() {
		c.state = core.StateDeviceReady
		if c.track != nil {
			c.state = core.StateTrackLoaded
		}
	}
	c.mutex.Unlock()
	return nil
}

// Snapshot returns a copy of the session for status reporting.
func (c *Controller) Snapshot() core.SessionSnapshot {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	snapshot := core.SessionSnapshot{
		State:      c.state,
		DeviceID:   c.deviceID,
		TimerArmed: c.timer != nil,
		StopAt:     c.stopAt,
	}
	if c.track != nil {
		track := *c.track
		snapshot.Track = &track
	}
	return snapshot
}

// Close stops the device watcher and any armed timer.
func (c *Controller) Close() {
	c.closed.Do(func() {
		close(c.done)
		c.device.Disconnect()
		c.CancelTimer()
	})
}
