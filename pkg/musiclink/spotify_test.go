package musiclink

import (
	"context"
	"errors"
	"testing"
)

func TestParseProviderLink(t *testing.T) {
	t.Helper()

	tests := []struct {
		name        string
		link        string
		wantID      string
		wantOffset  int
		expectError bool
	}{
		{name: "Web URL", link: "https://open.spotify.com/track/abc123", wantID: "abc123"},
		{name: "URI", link: "spotify:track:4uLU6hMCjMI75M1A2tKUQC", wantID: "4uLU6hMCjMI75M1A2tKUQC"},
		{name: "Start offset", link: "https://open.spotify.com/track/abc123?start=42", wantID: "abc123", wantOffset: 42},
		{name: "Start among other params", link: "https://open.spotify.com/track/abc?si=xyz&start=7", wantID: "abc", wantOffset: 7},
		{name: "Start zero", link: "https://open.spotify.com/track/abc?start=0", wantID: "abc"},
		{name: "Negative start", link: "https://open.spotify.com/track/abc?start=-5", wantID: "abc"},
		{name: "Invalid start", link: "https://open.spotify.com/track/abc?start=soon", wantID: "abc"},
		{name: "Leading digits of start", link: "https://open.spotify.com/track/abc?start=12s", wantID: "abc", wantOffset: 12},
		{name: "URI with query", link: "spotify:track:abc?start=3", wantID: "abc", wantOffset: 3},
		{name: "Album link", link: "https://open.spotify.com/album/abc", expectError: true},
		{name: "Playlist URI", link: "spotify:playlist:abc", expectError: true},
		{name: "Trailing path", link: "https://open.spotify.com/track/abc/extra", expectError: true},
		{name: "Plain http", link: "http://open.spotify.com/track/abc", expectError: true},
		{name: "Empty", link: "", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := ParseProviderLink(tt.link)
			if tt.expectError {
				if !errors.Is(err, ErrNoTrack) {
					t.Errorf("ParseProviderLink(%q) error = %v, want ErrNoTrack", tt.link, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseProviderLink(%q) unexpected error: %v", tt.link, err)
			}
			if ref.TrackID != tt.wantID {
				t.Errorf("TrackID = %q, want %q", ref.TrackID, tt.wantID)
			}
			if ref.StartOffset != tt.wantOffset {
				t.Errorf("StartOffset = %d, want %d", ref.StartOffset, tt.wantOffset)
			}
		})
	}
}

func TestSpotifyResolver_NormalizesInput(t *testing.T) {
	t.Helper()

	resolver := NewSpotifyResolver()
	// Full-width digits fold to ASCII under NFKC.
	ref, err := resolver.Resolve(context.Background(), "  spotify:track:abc１２３\n")
	if err != nil {
		t.Fatalf("Resolve() unexpected error: %v", err)
	}
	if ref.TrackID != "abc123" {
		t.Errorf("TrackID = %q, want abc123", ref.TrackID)
	}
	if ref.URI() != "spotify:track:abc123" {
		t.Errorf("URI() = %q", ref.URI())
	}
}

func TestClassify(t *testing.T) {
	t.Helper()

	tests := []struct {
		text     string
		expected LinkKind
	}{
		{"https://open.spotify.com/track/abc", ProviderLink},
		{"https://open.spotify.com/album/abc", ProviderLink},
		{"spotify:track:abc", ProviderLink},
		{"https://www.hitstergame.com/en/00007", PartnerLink},
		{"www.hitstergame.com/de/aaaa0007/00012", PartnerLink},
		{"http://app.hitsternordics.com/resources/songs/123", PartnerLink},
		{"https://hitstergame.com/en/1", Unrecognized},
		{"https://example.com", Unrecognized},
		{"", Unrecognized},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			if got := Classify(tt.text); got != tt.expected {
				t.Errorf("Classify(%q) = %v, want %v", tt.text, got, tt.expected)
			}
		})
	}
}
