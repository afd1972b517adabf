package musiclink

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

const testTable = "Card#,Title,Artist,URL\n" +
	"1,\"Hello, World\",Someone,https://open.spotify.com/track/first\n" +
	"7,Lucky,Seven, https://open.spotify.com/track/abc123 \n" +
	"12,Dozen,Band,https://open.spotify.com/track/twelve?start=30\n"

func newTableServer(t *testing.T, tables map[string]string) (*httptest.Server, *int32) {
	t.Helper()

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		body, ok := tables[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestParsePartnerLink(t *testing.T) {
	t.Helper()

	tests := []struct {
		name        string
		link        string
		want        PartnerCard
		expectError bool
	}{
		{name: "Game link", link: "https://www.hitstergame.com/en/00007", want: PartnerCard{"en", "00007"}},
		{name: "No scheme", link: "www.hitstergame.com/de/42", want: PartnerCard{"de", "42"}},
		{name: "Nested language", link: "http://www.hitstergame.com/de/aaaa0007/00012", want: PartnerCard{"de-aaaa0007", "00012"}},
		{name: "Nordics", link: "https://app.hitsternordics.com/resources/songs/123", want: PartnerCard{"nordics", "123"}},
		{name: "Missing number", link: "https://www.hitstergame.com/en/", expectError: true},
		{name: "Non numeric id", link: "https://www.hitstergame.com/en/abc", expectError: true},
		{name: "Nordics other resource", link: "https://app.hitsternordics.com/resources/albums/123", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePartnerLink(tt.link)
			if tt.expectError {
				if !errors.Is(err, ErrNoTrack) {
					t.Errorf("ParsePartnerLink(%q) error = %v, want ErrNoTrack", tt.link, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePartnerLink(%q) unexpected error: %v", tt.link, err)
			}
			if got != tt.want {
				t.Errorf("ParsePartnerLink(%q) = %+v, want %+v", tt.link, got, tt.want)
			}
		})
	}
}

func TestLookupTable_Lookup(t *testing.T) {
	t.Helper()

	table := &LookupTable{Language: "en", Records: ParseCSV(testTable)}

	tests := []struct {
		name    string
		cardID  string
		want    string
		wantErr error
	}{
		{name: "Leading zeros", cardID: "0007", want: "https://open.spotify.com/track/abc123"},
		{name: "Quoted neighbour column", cardID: "1", want: "https://open.spotify.com/track/first"},
		{name: "Link with start", cardID: "12", want: "https://open.spotify.com/track/twelve?start=30"},
		{name: "Absent card", cardID: "99", wantErr: ErrCardNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := table.Lookup(tt.cardID)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Lookup(%q) error = %v, want %v", tt.cardID, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Lookup(%q) unexpected error: %v", tt.cardID, err)
			}
			if got != tt.want {
				t.Errorf("Lookup(%q) = %q, want %q", tt.cardID, got, tt.want)
			}
		})
	}
}

func TestLookupTable_SchemaError(t *testing.T) {
	t.Helper()

	tests := []struct {
		name  string
		input string
	}{
		{name: "Missing URL column", input: "Card#,Link\n7,x"},
		{name: "Case differs", input: "card#,url\n7,x"},
		{name: "Empty document", input: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := &LookupTable{Language: "en", Records: ParseCSV(tt.input)}
			_, err := table.Lookup("7")
			var schemaErr *LookupSchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("Lookup() error = %v, want LookupSchemaError", err)
			}
			if schemaErr.Language != "en" {
				t.Errorf("Language = %q, want en", schemaErr.Language)
			}
		})
	}
}

func TestHitsterResolver_Resolve(t *testing.T) {
	t.Helper()

	srv, hits := newTableServer(t, map[string]string{"/hitster-en.csv": testTable})
	resolver := NewHitsterResolver(srv.URL + "/")
	ctx := context.Background()

	ref, err := resolver.Resolve(ctx, "https://www.hitstergame.com/en/0007")
	if err != nil {
		t.Fatalf("Resolve() unexpected error: %v", err)
	}
	if ref.TrackID != "abc123" || ref.StartOffset != 0 {
		t.Errorf("Resolve() = %+v, want abc123 at 0", ref)
	}

	ref, err = resolver.Resolve(ctx, "https://www.hitstergame.com/en/12")
	if err != nil {
		t.Fatalf("Resolve() unexpected error: %v", err)
	}
	if ref.TrackID != "twelve" || ref.StartOffset != 30 {
		t.Errorf("Resolve() = %+v, want twelve at 30", ref)
	}

	if _, err := resolver.Resolve(ctx, "https://www.hitstergame.com/en/404"); !errors.Is(err, ErrCardNotFound) {
		t.Errorf("Resolve() error = %v, want ErrCardNotFound", err)
	}

	if got := atomic.LoadInt32(hits); got != 1 {
		t.Errorf("table fetched %d times, want 1", got)
	}
}

func TestHitsterResolver_FailedFetchIsNotCached(t *testing.T) {
	t.Helper()

	var available atomic.Bool
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if !available.Load() || r.URL.Path != "/hitster-nordics.csv" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(testTable))
	}))
	defer srv.Close()

	var observed []error
	resolver := NewHitsterResolver(srv.URL, WithFetchObserver(func(_ string, err error) {
		observed = append(observed, err)
	}))
	ctx := context.Background()

	_, err := resolver.Resolve(ctx, "https://app.hitsternordics.com/resources/songs/7")
	var fetchErr *LookupFetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Resolve() error = %v, want LookupFetchError", err)
	}
	if fetchErr.Status != http.StatusNotFound || fetchErr.Language != "nordics" {
		t.Errorf("fetch error = %+v", fetchErr)
	}

	available.Store(true)
	if _, err := resolver.Resolve(ctx, "https://app.hitsternordics.com/resources/songs/7"); err != nil {
		t.Fatalf("Resolve() after recovery unexpected error: %v", err)
	}

	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Errorf("table fetched %d times, want 2", got)
	}
	if len(observed) != 2 || observed[0] == nil || observed[1] != nil {
		t.Errorf("observer saw %v, want [error, nil]", observed)
	}
}

func TestHitsterResolver_ConcurrentFirstUse(t *testing.T) {
	t.Helper()

	srv, hits := newTableServer(t, map[string]string{"/hitster-de.csv": testTable})
	resolver := NewHitsterResolver(srv.URL)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := resolver.Resolve(context.Background(), "www.hitstergame.com/de/7"); err != nil {
				t.Errorf("Resolve() unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(hits); got != 1 {
		t.Errorf("table fetched %d times, want 1", got)
	}
}
