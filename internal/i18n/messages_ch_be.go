package i18n

// berneseGermanMessages contains all Bernese Swiss German (Bärndütsch) translations
var berneseGermanMessages = map[string]string{
	// Error notices
	"error.generic":                "Öppis isch schief gloffe. Probier's haut nomau, bitte.",
	"error.auth.failed":            "D Spotify-Aamäldig het nid klappet: %s",
	"error.auth.missing_verifier":  "Dini Aamäldig isch abgloffe. Mäud di bitte nomau aa.",
	"error.auth.expired":           "Dini Spotify-Sitzig isch abgloffe. Mäud di bitte nomau aa.",
	"error.link.unrecognized":      "Dä Code isch kei Lieder-Charte.",
	"error.lookup.fetch":           "Ha d Charte-Lischte nid chönne lade. Probier's nomau.",
	"error.lookup.schema":          "D Charte-Lischte für %s isch kaputt.",
	"error.lookup.not_found":       "D Charte %s isch nid im %s-Stapel.",
	"error.playback.api":           "Spotify het nid chönne abspile: %s",
	"error.playback.no_device":     "Dr Player isch no nid verbunde.",
	"error.playback.no_track":      "Scann zersch e Charte.",
	"error.playback.device_failed": "Dr Player het nid chönne starte.",
	"error.scan.rate_limited":      "Z'vill Scans. Bitz langsamer, bitte.",

	// Success notices
	"success.track_loaded": "Charte gscannt. Parat zum Abspile.",
	"success.device_ready": "Player verbunde.",
	"success.logged_out":   "Abgmäudet.",

	// Session states
	"status.no_device":    "Nid verbunde",
	"status.device_ready": "Verbunde",
	"status.track_loaded": "Lied glade",
	"status.playing":      "Spiut",
	"status.paused":       "Pouse",
	"status.auth_expired": "Aamäldig nötig",
}
