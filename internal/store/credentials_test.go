package store

import (
	"errors"
	"strconv"
	"testing"
	"time"
)

func newTestStore(now time.Time) (*CredentialStore, *MemoryKV) {
	kv := NewMemoryKV()
	s := NewCredentialStore(kv)
	s.now = func() time.Time { return now }
	return s, kv
}

func TestCredentialStore_SaveLoad(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)

	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := NewCredentialStore(kv)
			s.now = func() time.Time { return now }

			if credential, err := s.Load(); err != nil || credential != nil {
				t.Fatalf("Load() on empty store = %+v, %v", credential, err)
			}

			if err := s.Save("token-1", time.Hour); err != nil {
				t.Fatalf("Save() error: %v", err)
			}

			raw, _, _ := kv.Get(TokenExpiryKey)
			if want := strconv.FormatInt(now.Add(time.Hour).UnixMilli(), 10); raw != want {
				t.Errorf("stored expiry = %q, want %q", raw, want)
			}

			credential, err := s.Load()
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if credential.AccessToken != "token-1" || !credential.ExpiresAt.Equal(now.Add(time.Hour)) {
				t.Errorf("Load() = %+v", credential)
			}
			if !s.IsValid(credential) {
				t.Error("fresh credential should be valid")
			}

			if err := s.SaveVerifier("verifier"); err != nil {
				t.Fatalf("SaveVerifier() error: %v", err)
			}
			if err := s.Clear(); err != nil {
				t.Fatalf("Clear() error: %v", err)
			}
			for _, key := range []string{AccessTokenKey, TokenExpiryKey, CodeVerifierKey} {
				if _, ok, _ := kv.Get(key); ok {
					t.Errorf("key %q should be cleared", key)
				}
			}
		})
	}
}

type failingSetKV struct {
	*MemoryKV
	failKey string
}

func (f *failingSetKV) Set(key, value string) error {
	if key == f.failKey {
		return errors.New("disk full")
	}
	return f.MemoryKV.Set(key, value)
}

func TestCredentialStore_FailedSaveLeavesNoCredential(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)

	for _, failKey := range []string{AccessTokenKey, TokenExpiryKey} {
		t.Run(failKey, func(t *testing.T) {
			kv := &failingSetKV{MemoryKV: NewMemoryKV()}
			s := NewCredentialStore(kv)
			s.now = func() time.Time { return now }

			if err := s.Save("old-token", time.Hour); err != nil {
				t.Fatalf("Save() error: %v", err)
			}

			kv.failKey = failKey
			if err := s.Save("new-token", 2*time.Hour); err == nil {
				t.Fatal("Save() should fail when a write fails")
			}

			credential, err := s.Load()
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if credential != nil {
				t.Errorf("partial save left credential %+v", credential)
			}
		})
	}
}

func TestCredential_Valid(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name       string
		credential *Credential
		expected   bool
	}{
		{name: "valid", credential: &Credential{AccessToken: "t", ExpiresAt: now.Add(time.Millisecond)}, expected: true},
		{name: "expires now", credential: &Credential{AccessToken: "t", ExpiresAt: now}, expected: false},
		{name: "expired", credential: &Credential{AccessToken: "t", ExpiresAt: now.Add(-time.Second)}, expected: false},
		{name: "empty token", credential: &Credential{ExpiresAt: now.Add(time.Hour)}, expected: false},
		{name: "absent", credential: nil, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.credential.Valid(now); got != tt.expected {
				t.Errorf("Valid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCredential_ExpiresWithin(t *testing.T) {
	now := time.Now()
	credential := &Credential{AccessToken: "t", ExpiresAt: now.Add(30 * time.Second)}

	if !credential.ExpiresWithin(now, time.Minute) {
		t.Error("credential expiring in 30s should be inside a 60s buffer")
	}
	if credential.ExpiresWithin(now, 10*time.Second) {
		t.Error("credential expiring in 30s should be outside a 10s buffer")
	}
}

func TestCredentialStore_UnreadableExpiryLoadsExpired(t *testing.T) {
	s, kv := newTestStore(time.Now())
	_ = kv.Set(AccessTokenKey, "t")
	_ = kv.Set(TokenExpiryKey, "soon")

	credential, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if s.IsValid(credential) {
		t.Error("credential with unreadable expiry should not be valid")
	}
}

func TestCredentialStore_TakeVerifierOnce(t *testing.T) {
	s, _ := newTestStore(time.Now())

	if _, ok, err := s.TakeVerifier(); ok || err != nil {
		t.Fatalf("TakeVerifier() on empty store = %v, %v", ok, err)
	}

	if err := s.SaveVerifier("abc"); err != nil {
		t.Fatalf("SaveVerifier() error: %v", err)
	}

	verifier, ok, err := s.TakeVerifier()
	if err != nil || !ok || verifier != "abc" {
		t.Fatalf("TakeVerifier() = %q, %v, %v", verifier, ok, err)
	}

	if _, ok, _ := s.TakeVerifier(); ok {
		t.Error("verifier must not be readable twice")
	}
}

func TestCredentialStore_TokenSource(t *testing.T) {
	s, _ := newTestStore(time.Now())

	if _, err := s.Token(); !errors.Is(err, ErrNoCredential) {
		t.Errorf("Token() on empty store error = %v, want ErrNoCredential", err)
	}

	_ = s.Save("first", time.Hour)
	token, err := s.Token()
	if err != nil || token.AccessToken != "first" || token.TokenType != "Bearer" {
		t.Fatalf("Token() = %+v, %v", token, err)
	}

	_ = s.Save("second", time.Hour)
	token, _ = s.Token()
	if token.AccessToken != "second" {
		t.Errorf("Token() should return the latest saved token, got %q", token.AccessToken)
	}
}
