package core

import (
	"context"

	"songseeker/pkg/musiclink"
)

// musicLinkManagerAdapter adapts pkg/musiclink.Manager to core.LinkResolver.
type musicLinkManagerAdapter struct {
	manager *musiclink.Manager
}

// NewMusicLinkManagerAdapter creates a LinkResolver backed by a music link manager.
func NewMusicLinkManagerAdapter(manager *musiclink.Manager) LinkResolver {
	return &musicLinkManagerAdapter{
		manager: manager,
	}
}

// Resolve resolves scanned text to a track reference.
func (a *musicLinkManagerAdapter) Resolve(ctx context.Context, text string) (*TrackReference, error) {
	ref, err := a.manager.Resolve(ctx, text)
	if err != nil {
		return nil, err
	}

	return &TrackReference{
		TrackID:     ref.TrackID,
		StartOffset: ref.StartOffset,
	}, nil
}

// CanResolve checks if the manager can resolve the given text.
func (a *musicLinkManagerAdapter) CanResolve(text string) bool {
	return a.manager.CanResolve(text)
}
