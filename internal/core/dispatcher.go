package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"songseeker/pkg/musiclink"
)

// ScanDiagnostic records a distinct scan that did not resolve to a track.
type ScanDiagnostic struct {
	ID    string    `json:"id"`
	Text  string    `json:"text"`
	Kind  string    `json:"kind"`
	Error string    `json:"error"`
	At    time.Time `json:"at"`
}

// ScanResult is the outcome of handling one distinct decoded string.
type ScanResult struct {
	Text       string
	Track      *TrackReference
	Err        error
	Autoplayed bool
	PlayErr    error
	Diagnostic *ScanDiagnostic
}

// Dispatcher feeds decoded codes from a scanner through the link resolver
// into the playback session.
type Dispatcher struct {
	config     *Config
	scanner    Scanner
	resolver   LinkResolver
	controller PlaybackController
	logger     *zap.Logger

	diagnostics *lru.Cache[string, ScanDiagnostic]

	mutex       sync.Mutex
	lastDecoded string
	preferences Preferences
	running     bool
	generation  uint64
	listener    func(ScanResult)
}

// NewDispatcher creates a dispatcher for one scanner and one playback session.
func NewDispatcher(
	config *Config,
	scanner Scanner,
	resolver LinkResolver,
	controller PlaybackController,
	logger *zap.Logger,
) *Dispatcher {
	size := config.Scanner.DiagnosticsSize
	if size <= 0 {
		size = DefaultDiagnosticsSize
	}
	diagnostics, _ := lru.New[string, ScanDiagnostic](size)

	return &Dispatcher{
		config:      config,
		scanner:     scanner,
		resolver:    resolver,
		controller:  controller,
		logger:      logger,
		diagnostics: diagnostics,
		preferences: config.Playback.DefaultPreferences(),
	}
}

// SetListener registers a callback invoked after every distinct scan.
func (d *Dispatcher) SetListener(listener func(ScanResult)) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.listener = listener
}

// SetPreferences replaces the preferences used for autoplay.
func (d *Dispatcher) SetPreferences(prefs Preferences) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.preferences = prefs
}

// Preferences returns the preferences used for autoplay.
func (d *Dispatcher) Preferences() Preferences {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.preferences
}

// Running reports whether the scanner is currently started.
func (d *Dispatcher) Running() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.running
}

// Start starts the scanner and consumes its events until it stops or ctx ends.
// Calling Start while scanning is a no-op.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.running {
		return nil
	}

	events, err := d.scanner.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start scanner: %w", err)
	}

	d.running = true
	d.generation++
	d.logger.Info("Scanner started")

	go d.consume(ctx, events, d.generation)
	return nil
}

// Cancel stops the scanner and any pending window timer.
func (d *Dispatcher) Cancel() {
	d.stopScanner()
	d.controller.CancelTimer()
}

func (d *Dispatcher) consume(ctx context.Context, events <-chan string, generation uint64) {
	defer func() {
		d.mutex.Lock()
		if d.generation == generation {
			d.running = false
		}
		d.mutex.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			d.scanner.Stop()
			return
		case text, ok := <-events:
			if !ok {
				return
			}
			d.handleDecoded(ctx, text, generation)
		}
	}
}

func (d *Dispatcher) stopScanner() {
	d.mutex.Lock()
	wasRunning := d.running
	d.running = false
	d.generation++
	d.mutex.Unlock()

	d.scanner.Stop()
	if wasRunning {
		d.logger.Info("Scanner stopped")
	}
}

// handleDecoded acts on the first of a run of identical decoded strings.
// Codes still buffered from a scan session that has since stopped are dropped.
func (d *Dispatcher) handleDecoded(ctx context.Context, text string, generation uint64) {
	d.mutex.Lock()
	if generation != d.generation || text == d.lastDecoded {
		d.mutex.Unlock()
		return
	}
	d.lastDecoded = text
	prefs := d.preferences
	d.mutex.Unlock()

	d.logger.Debug("Decoded code", zap.String("text", text))

	ref, err := d.resolver.Resolve(ctx, text)
	if err != nil {
		diagnostic := d.recordFailure(text, err)
		d.notify(ScanResult{Text: text, Err: err, Diagnostic: &diagnostic})
		return
	}

	d.controller.LoadTrack(*ref)
	if !d.config.Scanner.Continuous {
		d.stopScanner()

		d.mutex.Lock()
		d.lastDecoded = ""
		d.mutex.Unlock()
	}

	d.logger.Info("Track loaded from scan",
		zap.String("trackID", ref.TrackID),
		zap.Int("startOffset", ref.StartOffset))

	result := ScanResult{Text: text, Track: ref}
	if prefs.Autoplay {
		result.Autoplayed = true
		if err := d.controller.Play(ctx, prefs); err != nil {
			d.logger.Warn("Autoplay failed", zap.Error(err))
			result.PlayErr = err
		}
	}

	d.notify(result)
}

func (d *Dispatcher) recordFailure(text string, err error) ScanDiagnostic {
	diagnostic := ScanDiagnostic{
		ID:    uuid.NewString(),
		Text:  text,
		Kind:  musiclink.Classify(text).String(),
		Error: err.Error(),
		At:    time.Now(),
	}
	d.diagnostics.Add(diagnostic.ID, diagnostic)

	fields := []zap.Field{
		zap.String("diagnosticID", diagnostic.ID),
		zap.String("kind", diagnostic.Kind),
		zap.String("text", text),
		zap.Error(err),
	}
	if errors.Is(err, musiclink.ErrNoTrack) || errors.Is(err, musiclink.ErrUnrecognized) {
		d.logger.Debug("Scanned code is not a track", fields...)
	} else {
		d.logger.Warn("Failed to resolve scanned code", fields...)
	}

	return diagnostic
}

// Diagnostics returns the retained failure records, oldest first.
func (d *Dispatcher) Diagnostics() []ScanDiagnostic {
	return d.diagnostics.Values()
}

func (d *Dispatcher) notify(result ScanResult) {
	d.mutex.Lock()
	listener := d.listener
	d.mutex.Unlock()

	if listener != nil {
		listener(result)
	}
}
