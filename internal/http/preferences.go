package http

import (
	"net/http"
	"strconv"
	"time"

	"songseeker/internal/core"
)

const (
	randomPlaybackCookie   = "RandomPlaybackChecked"
	autoplayCookie         = "autoplayChecked"
	playbackDurationCookie = "playbackDuration"

	// preferenceCookieMaxAge keeps preferences for 30 days
	preferenceCookieMaxAge = 2592000
)

// preferencesPayload is the JSON shape of the preferences API.
type preferencesPayload struct {
	RandomPlayback  bool `json:"random_playback"`
	Autoplay        bool `json:"autoplay"`
	PlaybackSeconds int  `json:"playback_duration"`
}

func payloadFromPreferences(prefs core.Preferences) preferencesPayload {
	return preferencesPayload{
		RandomPlayback:  prefs.RandomPlayback,
		Autoplay:        prefs.Autoplay,
		PlaybackSeconds: int(prefs.Window / time.Second),
	}
}

// preferencesFromRequest overlays the browser's preference cookies on defaults.
func preferencesFromRequest(r *http.Request, defaults core.Preferences) core.Preferences {
	prefs := defaults

	if c, err := r.Cookie(randomPlaybackCookie); err == nil && c.Value != "" {
		prefs.RandomPlayback = c.Value == "true"
	}
	if c, err := r.Cookie(autoplayCookie); err == nil && c.Value != "" {
		prefs.Autoplay = c.Value == "true"
	}
	if c, err := r.Cookie(playbackDurationCookie); err == nil {
		if secs, err := strconv.Atoi(c.Value); err == nil && secs > 0 {
			prefs.Window = time.Duration(secs) * time.Second
		}
	}

	return prefs
}

func writePreferenceCookies(w http.ResponseWriter, prefs core.Preferences) {
	values := map[string]string{
		randomPlaybackCookie:   strconv.FormatBool(prefs.RandomPlayback),
		autoplayCookie:         strconv.FormatBool(prefs.Autoplay),
		playbackDurationCookie: strconv.Itoa(int(prefs.Window / time.Second)),
	}
	for _, name := range []string{randomPlaybackCookie, autoplayCookie, playbackDurationCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    values[name],
			Path:     "/",
			MaxAge:   preferenceCookieMaxAge,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
