package i18n

// englishMessages contains all English translations.
var englishMessages = map[string]string{
	// Error notices
	"error.generic":                 "Something went wrong. Please try again.",
	"error.auth.failed":             "Spotify login failed: %s",
	"error.auth.missing_verifier":   "Your login attempt expired. Please log in again.",
	"error.auth.expired":            "Your Spotify session expired. Please log in again.",
	"error.link.unrecognized":       "That code is not a song card.",
	"error.lookup.fetch":            "Couldn't load the card list. Please try again.",
	"error.lookup.schema":           "The card list for %s is broken.",
	"error.lookup.not_found":        "Card %s is not in the %s deck.",
	"error.playback.api":            "Spotify playback failed: %s",
	"error.playback.no_device":      "The player is not connected yet.",
	"error.playback.no_track":       "Scan a card first.",
	"error.playback.device_failed":  "The player could not be started.",
	"error.scan.rate_limited":       "Too many scans. Please slow down.",

	// Success notices
	"success.track_loaded": "Card scanned. Ready to play.",
	"success.device_ready": "Player connected.",
	"success.logged_out":   "Logged out.",

	// Session states
	"status.no_device":    "Not connected",
	"status.device_ready": "Connected",
	"status.track_loaded": "Track loaded",
	"status.playing":      "Playing",
	"status.paused":       "Paused",
	"status.auth_expired": "Login required",
}
