// Package musiclink resolves scanned card codes into playable Spotify track references.
package musiclink

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// LinkKind is the classification of a scanned string.
type LinkKind int

const (
	// Unrecognized is any text that is neither a provider nor a partner link.
	Unrecognized LinkKind = iota
	// ProviderLink is a Spotify web URL or URI.
	ProviderLink
	// PartnerLink is a Hitster card URL that needs a lookup table.
	PartnerLink
)

func (k LinkKind) String() string {
	switch k {
	case ProviderLink:
		return "provider"
	case PartnerLink:
		return "partner"
	default:
		return "unrecognized"
	}
}

// TrackReference identifies a track and the offset playback should start at.
type TrackReference struct {
	TrackID     string // Spotify track ID.
	StartOffset int    // Requested start offset in seconds, never negative.
}

// URI returns the Spotify URI of the referenced track.
func (r TrackReference) URI() string {
	return "spotify:track:" + r.TrackID
}

// Resolver defines the interface for turning a scanned string into a track reference.
type Resolver interface {
	// Resolve extracts a track reference from scanned text.
	Resolve(ctx context.Context, text string) (*TrackReference, error)

	// CanResolve checks if this resolver can handle the given text.
	CanResolve(text string) bool
}

var (
	// ErrNoTrack is returned when a provider link does not name a track.
	ErrNoTrack = errors.New("no track in link")
	// ErrCardNotFound is returned when a card number is absent from its lookup table.
	ErrCardNotFound = errors.New("card not found")
	// ErrUnrecognized is returned when no resolver accepts the scanned text.
	ErrUnrecognized = errors.New("unrecognized code")
)

// LookupSchemaError reports a lookup table whose header lacks a required column.
type LookupSchemaError struct {
	Language string
	Header   []string
}

func (e *LookupSchemaError) Error() string {
	return fmt.Sprintf("lookup table %q: Card# or URL column not found in header [%s]",
		e.Language, strings.Join(e.Header, ", "))
}

// LookupFetchError reports a lookup table download that did not succeed.
type LookupFetchError struct {
	Language string
	Status   int
	Err      error
}

func (e *LookupFetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch lookup table %q: %v", e.Language, e.Err)
	}
	return fmt.Sprintf("fetch lookup table %q: status %d", e.Language, e.Status)
}

func (e *LookupFetchError) Unwrap() error {
	return e.Err
}
