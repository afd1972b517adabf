package scanner

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"go.uber.org/zap"
)

func receive(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case text, ok := <-ch:
		if !ok {
			t.Fatal("channel closed unexpectedly")
		}
		return text
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for scanned text")
		return ""
	}
}

func TestFeedScanner(t *testing.T) {
	feed := NewFeedScanner(2, zap.NewNop())

	if err := feed.Submit("early"); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped before start, got %v", err)
	}

	ch, err := feed.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if _, err := feed.Start(context.Background()); !errors.Is(err, ErrRunning) {
		t.Errorf("expected ErrRunning on second start, got %v", err)
	}

	if err := feed.Submit("   "); err != nil {
		t.Errorf("blank submission should be ignored, got %v", err)
	}
	for _, text := range []string{"one", "two"} {
		if err := feed.Submit(text); err != nil {
			t.Fatalf("Submit(%q) error: %v", text, err)
		}
	}
	if err := feed.Submit("three"); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy when buffer is full, got %v", err)
	}

	if got := receive(t, ch); got != "one" {
		t.Errorf("received %q, want one", got)
	}

	feed.Stop()
	if feed.Running() {
		t.Error("expected scanner stopped")
	}
	// Buffered codes are still drained before the close is observed.
	if got := receive(t, ch); got != "two" {
		t.Errorf("received %q, want two", got)
	}
	if _, ok := <-ch; ok {
		t.Error("expected closed channel after Stop")
	}

	feed.Stop()

	restarted, err := feed.Start(context.Background())
	if err != nil {
		t.Fatalf("restart error: %v", err)
	}
	if err := feed.Submit("again"); err != nil {
		t.Fatal(err)
	}
	if got := receive(t, restarted); got != "again" {
		t.Errorf("received %q, want again", got)
	}
}

func TestLineScanner(t *testing.T) {
	reader, writer := io.Pipe()
	lines := NewLineScanner(reader, zap.NewNop())

	ch, err := lines.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	if _, err := io.WriteString(writer, "https://open.spotify.com/track/abc\n"); err != nil {
		t.Fatal(err)
	}
	if got := receive(t, ch); got != "https://open.spotify.com/track/abc" {
		t.Errorf("received %q", got)
	}

	lines.Stop()

	ch, err = lines.Start(context.Background())
	if err != nil {
		t.Fatalf("restart error: %v", err)
	}
	if _, err := io.WriteString(writer, "\nkept\n"); err != nil {
		t.Fatal(err)
	}
	if got := receive(t, ch); got != "kept" {
		t.Errorf("received %q, want kept", got)
	}

	_ = writer.Close()
	select {
	case <-lines.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not finish after input closed")
	}
}
