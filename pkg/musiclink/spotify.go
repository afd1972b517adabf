package musiclink

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var spotifyTrackRegex = regexp.MustCompile(`^(?:https://open\.spotify\.com/track/|spotify:track:)([a-zA-Z0-9]+)(?:\?.*)?$`)

// SpotifyResolver resolves Spotify track URLs and URIs without any I/O.
type SpotifyResolver struct{}

// NewSpotifyResolver creates a new Spotify link resolver.
func NewSpotifyResolver() *SpotifyResolver {
	return &SpotifyResolver{}
}

// CanResolve checks if the text is a Spotify link.
func (r *SpotifyResolver) CanResolve(text string) bool {
	return Classify(text) == ProviderLink
}

// Resolve parses the track ID and start offset from a Spotify link.
func (r *SpotifyResolver) Resolve(_ context.Context, text string) (*TrackReference, error) {
	return ParseProviderLink(Normalize(text))
}

// ParseProviderLink extracts the track ID and the optional start query
// parameter. A start value that is missing, invalid or negative yields 0.
func ParseProviderLink(link string) (*TrackReference, error) {
	matches := spotifyTrackRegex.FindStringSubmatch(link)
	if matches == nil {
		return nil, ErrNoTrack
	}

	return &TrackReference{
		TrackID:     matches[1],
		StartOffset: parseStartOffset(link),
	}, nil
}

func parseStartOffset(link string) int {
	_, rawQuery, found := strings.Cut(link, "?")
	if !found {
		return 0
	}

	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return 0
	}

	start, ok := parseLeadingInt(query.Get("start"))
	if !ok || start < 0 {
		return 0
	}
	return start
}

// parseLeadingInt parses an optional sign followed by the leading run of
// decimal digits, ignoring anything after them.
func parseLeadingInt(value string) (int, bool) {
	value = strings.TrimSpace(value)

	end := 0
	if end < len(value) && (value[end] == '+' || value[end] == '-') {
		end++
	}
	digitsStart := end
	for end < len(value) && value[end] >= '0' && value[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return 0, false
	}

	n, err := strconv.Atoi(value[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
