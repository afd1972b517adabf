package scanner

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// DefaultBuffer is the number of decoded codes held for a slow consumer.
const DefaultBuffer = 16

var (
	ErrRunning = errors.New("scanner already running")
	ErrStopped = errors.New("scanner not running")
	ErrBusy    = errors.New("scanner buffer full")
)

// FeedScanner delivers codes decoded elsewhere, for example by a browser
// posting them to the HTTP API.
type FeedScanner struct {
	buffer int
	logger *zap.Logger

	mutex sync.Mutex
	out   chan string
}

func NewFeedScanner(buffer int, logger *zap.Logger) *FeedScanner {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &FeedScanner{buffer: buffer, logger: logger}
}

// Start opens a new scan session. The returned channel is closed by Stop.
func (f *FeedScanner) Start(_ context.Context) (<-chan string, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.out != nil {
		return nil, ErrRunning
	}
	f.out = make(chan string, f.buffer)
	return f.out, nil
}

func (f *FeedScanner) Stop() {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.out != nil {
		close(f.out)
		f.out = nil
	}
}

func (f *FeedScanner) Running() bool {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.out != nil
}

// Submit hands one decoded code to the running session. Blank codes are ignored.
func (f *FeedScanner) Submit(text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.out == nil {
		return ErrStopped
	}
	select {
	case f.out <- text:
		return nil
	default:
		return ErrBusy
	}
}
