package http

import (
	"errors"
	"net/http"

	"songseeker/internal/auth"
	"songseeker/internal/playback"
	"songseeker/internal/scanner"
	"songseeker/pkg/musiclink"
)

func scanKind(text string) string {
	return musiclink.Classify(text).String()
}

func scanResultLabel(err error) string {
	switch {
	case errors.Is(err, musiclink.ErrNoTrack), errors.Is(err, musiclink.ErrUnrecognized):
		return "ignored"
	case errors.Is(err, musiclink.ErrCardNotFound):
		return "not_found"
	default:
		return "failed"
	}
}

// noticeFor maps an error to the i18n key and arguments shown to the player.
// Scans that simply are not track links produce no notice.
func noticeFor(err error, text string) (string, []interface{}, bool) {
	var (
		schemaErr   *musiclink.LookupSchemaError
		fetchErr    *musiclink.LookupFetchError
		playbackErr *playback.PlaybackAPIError
		authErr     *auth.AuthError
	)

	switch {
	case errors.Is(err, musiclink.ErrNoTrack):
		return "", nil, false
	case errors.Is(err, musiclink.ErrUnrecognized):
		return "error.link.unrecognized", nil, true
	case errors.Is(err, musiclink.ErrCardNotFound):
		card, parseErr := musiclink.ParsePartnerLink(musiclink.Normalize(text))
		if parseErr != nil {
			return "error.generic", nil, true
		}
		return "error.lookup.not_found", []interface{}{card.CardID, card.Language}, true
	case errors.As(err, &schemaErr):
		return "error.lookup.schema", []interface{}{schemaErr.Language}, true
	case errors.As(err, &fetchErr):
		return "error.lookup.fetch", nil, true
	case errors.As(err, &playbackErr):
		return "error.playback.api", []interface{}{playbackErr.Message}, true
	case errors.Is(err, playback.ErrAuthExpired):
		return "error.auth.expired", nil, true
	case errors.Is(err, playback.ErrDeviceNotReady):
		return "error.playback.no_device", nil, true
	case errors.Is(err, playback.ErrNoTrackLoaded):
		return "error.playback.no_track", nil, true
	case errors.Is(err, playback.ErrDeviceInit):
		return "error.playback.device_failed", nil, true
	case errors.As(err, &authErr):
		if authErr.Reason == "missing verifier" {
			return "error.auth.missing_verifier", nil, true
		}
		return "error.auth.failed", []interface{}{authErr.Reason}, true
	default:
		return "error.generic", nil, true
	}
}

// statusFor picks the response status for an error returned by a command.
func statusFor(err error) int {
	var playbackErr *playback.PlaybackAPIError
	switch {
	case errors.Is(err, playback.ErrAuthExpired):
		return http.StatusUnauthorized
	case errors.Is(err, playback.ErrDeviceNotReady), errors.Is(err, playback.ErrNoTrackLoaded),
		errors.Is(err, scanner.ErrStopped):
		return http.StatusConflict
	case errors.Is(err, scanner.ErrBusy):
		return http.StatusServiceUnavailable
	case errors.As(err, &playbackErr), errors.Is(err, playback.ErrDeviceInit):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
