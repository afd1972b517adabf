package scanner

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"
)

// LineScanner reads one decoded code per line, as written by a
// keyboard-wedge barcode reader or a piped decoder. Lines read while no
// session is running are dropped.
type LineScanner struct {
	*FeedScanner

	reader io.Reader
	once   sync.Once
	done   chan struct{}
}

func NewLineScanner(reader io.Reader, logger *zap.Logger) *LineScanner {
	return &LineScanner{
		FeedScanner: NewFeedScanner(DefaultBuffer, logger),
		reader:      reader,
		done:        make(chan struct{}),
	}
}

func (l *LineScanner) Start(ctx context.Context) (<-chan string, error) {
	out, err := l.FeedScanner.Start(ctx)
	if err != nil {
		return nil, err
	}
	l.once.Do(func() { go l.read() })
	return out, nil
}

// Done is closed once the underlying reader is exhausted.
func (l *LineScanner) Done() <-chan struct{} {
	return l.done
}

func (l *LineScanner) read() {
	defer close(l.done)

	lines := bufio.NewScanner(l.reader)
	for lines.Scan() {
		line := lines.Text()
		switch err := l.Submit(line); {
		case err == nil:
		case errors.Is(err, ErrStopped):
			l.logger.Debug("Dropping line while scanner is stopped", zap.String("text", line))
		default:
			l.logger.Warn("Dropping scanned line", zap.String("text", line), zap.Error(err))
		}
	}
	if err := lines.Err(); err != nil {
		l.logger.Error("Failed to read scanner input", zap.Error(err))
		return
	}
	l.logger.Info("Scanner input closed")
}
