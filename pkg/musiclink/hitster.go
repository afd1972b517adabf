package musiclink

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

const (
	// CardColumn is the lookup table header naming the card number column.
	CardColumn = "Card#"
	// URLColumn is the lookup table header naming the track link column.
	URLColumn = "URL"

	nordicsLanguage = "nordics"
)

var (
	hitsterGameRegex    = regexp.MustCompile(`^(?:http://|https://)?www\.hitstergame\.com/(.+?)/(\d+)$`)
	hitsterNordicsRegex = regexp.MustCompile(`^(?:http://|https://)?app\.hitsternordics\.com/resources/songs/(\d+)$`)
)

// PartnerCard is the language key and card number carried by a Hitster link.
type PartnerCard struct {
	Language string
	CardID   string
}

// ParsePartnerLink extracts the language key and card number from a Hitster
// link. Path separators inside the language segment become '-'.
func ParsePartnerLink(link string) (PartnerCard, error) {
	if m := hitsterGameRegex.FindStringSubmatch(link); m != nil {
		return PartnerCard{Language: strings.ReplaceAll(m[1], "/", "-"), CardID: m[2]}, nil
	}
	if m := hitsterNordicsRegex.FindStringSubmatch(link); m != nil {
		return PartnerCard{Language: nordicsLanguage, CardID: m[1]}, nil
	}
	return PartnerCard{}, ErrNoTrack
}

// LookupTable is a parsed card list for one language.
type LookupTable struct {
	Language string
	Records  [][]string
}

// Lookup returns the trimmed URL of the first row whose card number equals
// cardID when both are read as integers.
func (t *LookupTable) Lookup(cardID string) (string, error) {
	var header []string
	if len(t.Records) > 0 {
		header = t.Records[0]
	}

	cardIndex := indexOf(header, CardColumn)
	urlIndex := indexOf(header, URLColumn)
	if cardIndex < 0 || urlIndex < 0 {
		return "", &LookupSchemaError{Language: t.Language, Header: header}
	}

	target, ok := parseLeadingInt(cardID)
	if !ok {
		return "", ErrCardNotFound
	}

	for _, row := range t.Records[1:] {
		if cardIndex >= len(row) {
			continue
		}
		if n, ok := parseLeadingInt(row[cardIndex]); !ok || n != target {
			continue
		}
		if urlIndex >= len(row) {
			return "", nil
		}
		return strings.TrimSpace(row[urlIndex]), nil
	}

	return "", ErrCardNotFound
}

func indexOf(values []string, want string) int {
	for i, v := range values {
		if v == want {
			return i
		}
	}
	return -1
}

// FetchObserver is notified after every lookup table download attempt.
type FetchObserver func(language string, err error)

// HitsterOption configures a HitsterResolver.
type HitsterOption func(*HitsterResolver)

// WithFetchObserver registers a callback for lookup table downloads.
func WithFetchObserver(observer FetchObserver) HitsterOption {
	return func(r *HitsterResolver) {
		r.observe = observer
	}
}

// HitsterResolver resolves Hitster card links through per-language lookup
// tables served under a base URL. Each table is downloaded once; failed
// downloads are not cached.
type HitsterResolver struct {
	baseURL string
	client  *http.Client
	observe FetchObserver

	mu     sync.RWMutex
	tables map[string]*LookupTable
	group  singleflight.Group
}

// NewHitsterResolver creates a resolver fetching tables from baseURL.
func NewHitsterResolver(baseURL string, opts ...HitsterOption) *HitsterResolver {
	r := &HitsterResolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  newHTTPClient(),
		tables:  make(map[string]*LookupTable),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CanResolve checks if the text is a Hitster card link.
func (r *HitsterResolver) CanResolve(text string) bool {
	return Classify(text) == PartnerLink
}

// Resolve looks the card up in its language table and parses the linked track.
func (r *HitsterResolver) Resolve(ctx context.Context, text string) (*TrackReference, error) {
	card, err := ParsePartnerLink(Normalize(text))
	if err != nil {
		return nil, err
	}

	table, err := r.Table(ctx, card.Language)
	if err != nil {
		return nil, err
	}

	link, err := table.Lookup(card.CardID)
	if err != nil {
		return nil, err
	}

	return ParseProviderLink(link)
}

// Table returns the cached lookup table for a language, downloading it on first use.
func (r *HitsterResolver) Table(ctx context.Context, language string) (*LookupTable, error) {
	if table, ok := r.cached(language); ok {
		return table, nil
	}

	v, err, _ := r.group.Do(language, func() (interface{}, error) {
		if table, ok := r.cached(language); ok {
			return table, nil
		}

		table, err := r.fetchTable(ctx, language)
		if r.observe != nil {
			r.observe(language, err)
		}
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.tables[language] = table
		r.mu.Unlock()
		return table, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*LookupTable), nil
}

func (r *HitsterResolver) cached(language string) (*LookupTable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	table, ok := r.tables[language]
	return table, ok
}

func (r *HitsterResolver) tableURL(language string) string {
	return r.baseURL + "/hitster-" + url.PathEscape(language) + ".csv"
}

func (r *HitsterResolver) fetchTable(ctx context.Context, language string) (*LookupTable, error) {
	body, err := fetchText(ctx, r.client, r.tableURL(language), LookupMaxReadSize)
	if err != nil {
		fetchErr := &LookupFetchError{Language: language}
		var statusErr *statusError
		if errors.As(err, &statusErr) {
			fetchErr.Status = statusErr.status
		} else {
			fetchErr.Err = err
		}
		return nil, fetchErr
	}

	return &LookupTable{Language: language, Records: ParseCSV(body)}, nil
}
