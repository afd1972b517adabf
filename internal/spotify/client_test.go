package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"songseeker/internal/core"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   map[string]interface{}
}

type fakeAPI struct {
	mutex    sync.Mutex
	requests []recordedRequest
	handler  func(w http.ResponseWriter, r *http.Request) bool
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Auth:   r.Header.Get("Authorization"),
	}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &rec.Body)
	}

	f.mutex.Lock()
	f.requests = append(f.requests, rec)
	handler := f.handler
	f.mutex.Unlock()

	if handler != nil && handler(w, r) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeAPI) recorded() []recordedRequest {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{"status": status, "message": message},
	})
}

func newTestClient(t *testing.T, api *fakeAPI, token string) *Client {
	t.Helper()

	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	config := &core.SpotifyConfig{APIBaseURL: srv.URL}
	tokens := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	return NewClient(config, tokens, zap.NewNop())
}

func TestClient_PlaybackCommands(t *testing.T) {
	api := &fakeAPI{}
	client := newTestClient(t, api, "tok")
	ctx := context.Background()

	if err := client.TransferPlayback(ctx, "dev1", false); err != nil {
		t.Fatalf("TransferPlayback() error: %v", err)
	}
	if err := client.PlayTrack(ctx, "dev1", "spotify:track:abc", 5*time.Second); err != nil {
		t.Fatalf("PlayTrack() error: %v", err)
	}
	if err := client.Pause(ctx, "dev1"); err != nil {
		t.Fatalf("Pause() error: %v", err)
	}

	requests := api.recorded()
	if len(requests) != 3 {
		t.Fatalf("got %d requests, want 3", len(requests))
	}

	transfer := requests[0]
	if transfer.Method != http.MethodPut || transfer.Path != "/me/player" {
		t.Errorf("transfer request = %s %s", transfer.Method, transfer.Path)
	}
	if transfer.Auth != "Bearer tok" {
		t.Errorf("Authorization = %q, want Bearer tok", transfer.Auth)
	}
	if play, _ := transfer.Body["play"].(bool); play {
		t.Error("transfer must not start playback")
	}

	play := requests[1]
	if play.Method != http.MethodPut || play.Path != "/me/player/play" || play.Query != "device_id=dev1" {
		t.Errorf("play request = %s %s?%s", play.Method, play.Path, play.Query)
	}
	uris, _ := play.Body["uris"].([]interface{})
	if len(uris) != 1 || uris[0] != "spotify:track:abc" {
		t.Errorf("play uris = %v", play.Body["uris"])
	}
	if position, _ := play.Body["position_ms"].(float64); position != 5000 {
		t.Errorf("position_ms = %v, want 5000", play.Body["position_ms"])
	}

	if requests[2].Path != "/me/player/pause" {
		t.Errorf("pause path = %s", requests[2].Path)
	}
}

func TestClient_APIError(t *testing.T) {
	api := &fakeAPI{handler: func(w http.ResponseWriter, _ *http.Request) bool {
		writeAPIError(w, http.StatusForbidden, "Player command failed: Restriction violated")
		return true
	}}
	client := newTestClient(t, api, "tok")

	err := client.PlayTrack(context.Background(), "dev1", "spotify:track:abc", 0)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("PlayTrack() error = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusForbidden {
		t.Errorf("Status = %d, want 403", apiErr.Status)
	}
	if apiErr.Message != "Player command failed: Restriction violated" {
		t.Errorf("Message = %q", apiErr.Message)
	}
	if status, ok := StatusCode(err); !ok || status != http.StatusForbidden {
		t.Errorf("StatusCode() = %d, %v", status, ok)
	}
}

func TestClient_PlaybackState(t *testing.T) {
	api := &fakeAPI{handler: func(w http.ResponseWriter, r *http.Request) bool {
		if r.URL.Path != "/me/player" || r.Method != http.MethodGet {
			return false
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"device": {"id": "dev1", "name": "SongSeeker Player", "is_active": true},
			"is_playing": true,
			"progress_ms": 1500,
			"item": {"id": "abc", "duration_ms": 200000}
		}`))
		return true
	}}
	client := newTestClient(t, api, "tok")

	state, err := client.PlaybackState(context.Background())
	if err != nil {
		t.Fatalf("PlaybackState() error: %v", err)
	}
	if !state.Playing || state.DeviceID != "dev1" || state.TrackID != "abc" {
		t.Errorf("state = %+v", state)
	}
	if state.Progress != 1500*time.Millisecond || state.Duration != 200*time.Second {
		t.Errorf("progress %v duration %v", state.Progress, state.Duration)
	}
}

func TestClient_PlaybackStateNothingPlaying(t *testing.T) {
	api := &fakeAPI{}
	client := newTestClient(t, api, "tok")

	state, err := client.PlaybackState(context.Background())
	if err != nil {
		t.Fatalf("PlaybackState() error: %v", err)
	}
	if state.Playing || state.Duration != 0 {
		t.Errorf("state = %+v, want empty", state)
	}
}
