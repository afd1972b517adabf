package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"songseeker/internal/core"
)

const (
	// DefaultDiscoveryTimeout is how long Connect waits for the named device to appear
	DefaultDiscoveryTimeout = 30 * time.Second
)

// ErrDeviceNotConnected is returned by device commands issued before the device is ready.
var ErrDeviceNotConnected = errors.New("device not connected")

// ConnectDevice is a handle on the Spotify Connect device with a configured
// name. It polls the device list and reports lifecycle changes as events.
type ConnectDevice struct {
	client           *Client
	name             string
	interval         time.Duration
	discoveryTimeout time.Duration
	logger           *zap.Logger

	mutex      sync.Mutex
	deviceID   string
	cancel     context.CancelFunc
	generation uint64
}

// NewConnectDevice creates a handle for the device called name, polled every interval.
func NewConnectDevice(client *Client, name string, interval time.Duration, logger *zap.Logger) *ConnectDevice {
	return &ConnectDevice{
		client:           client,
		name:             name,
		interval:         interval,
		discoveryTimeout: DefaultDiscoveryTimeout,
		logger:           logger,
	}
}

// Connect starts watching the device. Every lifecycle change is posted on
// events until ctx ends, Disconnect is called, or a fatal error is reported.
func (d *ConnectDevice) Connect(ctx context.Context, events chan<- core.DeviceEvent) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.cancel != nil {
		return nil
	}
	if d.interval <= 0 {
		return fmt.Errorf("invalid device poll interval %v", d.interval)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.generation++

	d.logger.Info("Connecting to playback device", zap.String("name", d.name))
	go d.watch(watchCtx, events, d.generation)
	return nil
}

// Disconnect stops watching the device.
func (d *ConnectDevice) Disconnect() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.deviceID = ""
}

// DeviceID returns the ID of the device once it is ready.
func (d *ConnectDevice) DeviceID() string {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.deviceID
}

func (d *ConnectDevice) watch(ctx context.Context, events chan<- core.DeviceEvent, generation uint64) {
	defer d.stopped(generation)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	deadline := time.Now().Add(d.discoveryTimeout)
	ready := false

	for {
		event, fatal := d.poll(ctx, ready, &deadline)
		if event != nil {
			ready = event.Type == core.DeviceReady
			if !d.post(ctx, events, *event) {
				return
			}
		}
		if fatal {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// poll checks the device list once and returns the event to report, if any,
// and whether watching must stop.
func (d *ConnectDevice) poll(ctx context.Context, ready bool, deadline *time.Time) (*core.DeviceEvent, bool) {
	devices, err := d.client.Devices(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, true
		}
		if status, ok := StatusCode(err); ok && status == http.StatusUnauthorized {
			return &core.DeviceEvent{Type: core.DeviceAuthError, Message: err.Error()}, true
		}
		if !ready {
			return &core.DeviceEvent{Type: core.DeviceInitError, Message: err.Error()}, true
		}
		d.logger.Warn("Failed to poll playback devices", zap.Error(err))
		return nil, false
	}

	id := ""
	for _, device := range devices {
		if device.Name == d.name {
			id = device.ID
			break
		}
	}

	d.mutex.Lock()
	d.deviceID = id
	d.mutex.Unlock()

	switch {
	case id != "" && !ready:
		d.logger.Info("Playback device ready", zap.String("deviceID", id))
		return &core.DeviceEvent{Type: core.DeviceReady, DeviceID: id}, false
	case id == "" && ready:
		d.logger.Warn("Playback device went offline", zap.String("name", d.name))
		*deadline = time.Now().Add(d.discoveryTimeout)
		return &core.DeviceEvent{Type: core.DeviceNotReady}, false
	case id == "" && time.Now().After(*deadline):
		return &core.DeviceEvent{
			Type:    core.DeviceInitError,
			Message: fmt.Sprintf("device %q not found", d.name),
		}, true
	default:
		return nil, false
	}
}

func (d *ConnectDevice) post(ctx context.Context, events chan<- core.DeviceEvent, event core.DeviceEvent) bool {
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

func (d *ConnectDevice) stopped(generation uint64) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.generation == generation && d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

func (d *ConnectDevice) currentID() (string, error) {
	id := d.DeviceID()
	if id == "" {
		return "", ErrDeviceNotConnected
	}
	return id, nil
}

// Pause pauses playback on the device.
func (d *ConnectDevice) Pause(ctx context.Context) error {
	id, err := d.currentID()
	if err != nil {
		return err
	}
	return d.client.Pause(ctx, id)
}

// Resume resumes playback on the device.
func (d *ConnectDevice) Resume(ctx context.Context) error {
	id, err := d.currentID()
	if err != nil {
		return err
	}
	return d.client.Resume(ctx, id)
}

// Seek moves the playhead on the device.
func (d *ConnectDevice) Seek(ctx context.Context, position time.Duration) error {
	id, err := d.currentID()
	if err != nil {
		return err
	}
	return d.client.Seek(ctx, id, position)
}

// State returns the playback state as seen by the device. Playback running
// on another device is reported as not playing.
func (d *ConnectDevice) State(ctx context.Context) (*core.DeviceState, error) {
	id, err := d.currentID()
	if err != nil {
		return nil, err
	}

	state, err := d.client.PlaybackState(ctx)
	if err != nil {
		return nil, err
	}

	return &core.DeviceState{
		Playing:  state.Playing && state.DeviceID == id,
		Position: state.Progress,
		Duration: state.Duration,
	}, nil
}
