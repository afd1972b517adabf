package musiclink

import (
	"context"
)

// Manager coordinates the resolvers for every supported kind of scanned link.
type Manager struct {
	resolvers []Resolver
}

// NewManager creates a manager resolving Spotify links directly and Hitster
// links through tables served under lookupBaseURL.
func NewManager(lookupBaseURL string, opts ...HitsterOption) *Manager {
	return NewManagerWithResolvers(
		NewSpotifyResolver(),
		NewHitsterResolver(lookupBaseURL, opts...),
	)
}

// NewManagerWithResolvers creates a manager over an explicit resolver list.
func NewManagerWithResolvers(resolvers ...Resolver) *Manager {
	return &Manager{resolvers: resolvers}
}

// Resolve attempts to resolve scanned text using the first resolver accepting it.
func (m *Manager) Resolve(ctx context.Context, text string) (*TrackReference, error) {
	for _, resolver := range m.resolvers {
		if resolver.CanResolve(text) {
			return resolver.Resolve(ctx, text)
		}
	}

	return nil, ErrUnrecognized
}

// CanResolve checks if any resolver can handle the given text.
func (m *Manager) CanResolve(text string) bool {
	for _, resolver := range m.resolvers {
		if resolver.CanResolve(text) {
			return true
		}
	}
	return false
}
