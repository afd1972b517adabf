package auth

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"

	"go.uber.org/zap"
)

// Navigator sends the user agent to the provider's authorize endpoint.
type Navigator interface {
	Navigate(ctx context.Context, authorizeURL string) error
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(ctx context.Context, authorizeURL string) error

func (f NavigatorFunc) Navigate(ctx context.Context, authorizeURL string) error {
	return f(ctx, authorizeURL)
}

var goos = func() string { return runtime.GOOS }

// BrowserNavigator opens the system browser on the authorize URL.
type BrowserNavigator struct {
	logger *zap.Logger
}

func NewBrowserNavigator(logger *zap.Logger) *BrowserNavigator {
	return &BrowserNavigator{logger: logger}
}

func (b *BrowserNavigator) Navigate(_ context.Context, authorizeURL string) error {
	var cmd *exec.Cmd
	switch platform := goos(); platform {
	case "darwin":
		cmd = exec.Command("open", authorizeURL)
	case "linux":
		cmd = exec.Command("xdg-open", authorizeURL)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", authorizeURL)
	default:
		return fmt.Errorf("unsupported platform: %s", platform)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	b.logger.Info("Opened browser for Spotify authorization")
	return nil
}

// MultiNavigator hands the URL to every navigator and fails only when all of them fail.
type MultiNavigator []Navigator

func (m MultiNavigator) Navigate(ctx context.Context, authorizeURL string) error {
	if len(m) == 0 {
		return fmt.Errorf("no navigator configured")
	}

	var lastErr error
	delivered := false
	for _, n := range m {
		if err := n.Navigate(ctx, authorizeURL); err != nil {
			lastErr = err
			continue
		}
		delivered = true
	}
	if !delivered {
		return lastErr
	}
	return nil
}
