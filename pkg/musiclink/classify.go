package musiclink

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	spotifyWebPrefix = "https://open.spotify.com"
	spotifyURIPrefix = "spotify:"
)

var hitsterLinkRegex = regexp.MustCompile(`^(?:http://|https://)?(www\.hitstergame|app\.hitsternordics)\.com/.+`)

// Normalize trims scanned text and folds it to NFKC so full-width or
// compatibility characters emitted by some scanners compare equal.
func Normalize(text string) string {
	return norm.NFKC.String(strings.TrimSpace(text))
}

// Classify reports which kind of link the normalized text is.
func Classify(text string) LinkKind {
	text = Normalize(text)

	switch {
	case strings.HasPrefix(text, spotifyWebPrefix), strings.HasPrefix(text, spotifyURIPrefix):
		return ProviderLink
	case hitsterLinkRegex.MatchString(text):
		return PartnerLink
	default:
		return Unrecognized
	}
}
