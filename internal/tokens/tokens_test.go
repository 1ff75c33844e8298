package tokens

import (
	"errors"
	"testing"

	"github.com/desertthunder/hitster/internal/shared"
	th "github.com/desertthunder/hitster/internal/testing"
)

type stripper struct {
	stripped []string
}

func (s *stripper) StripParam(name string) { s.stripped = append(s.stripped, name) }

func TestStore(t *testing.T) {
	t.Run("Restore prefers the fresh token", func(t *testing.T) {
		prefs := th.NewMemoryPrefs()
		prefs.Set(PersistKey, "old")
		loc := &stripper{}
		s := NewStore(prefs, loc, nil)

		if !s.Restore("fresh") {
			t.Fatal("expected a token to be applied")
		}
		if s.Value() != "fresh" {
			t.Errorf("expected fresh, got %q", s.Value())
		}
		if v, _, _ := prefs.Get(PersistKey); v != "fresh" {
			t.Errorf("expected fresh to be persisted, got %q", v)
		}
		if len(loc.stripped) != 1 || loc.stripped[0] != Param {
			t.Errorf("expected token param stripped once, got %v", loc.stripped)
		}
	})

	t.Run("Restore falls back to the persisted token", func(t *testing.T) {
		prefs := th.NewMemoryPrefs()
		prefs.Set(PersistKey, "saved")
		s := NewStore(prefs, nil, nil)

		if !s.Restore("  ") {
			t.Fatal("expected the persisted token to be applied")
		}
		if s.Value() != "saved" {
			t.Errorf("expected saved, got %q", s.Value())
		}
	})

	t.Run("Restore with nothing stored", func(t *testing.T) {
		s := NewStore(th.NewMemoryPrefs(), nil, nil)
		if s.Restore("") {
			t.Error("expected no token")
		}
		if s.Valid() {
			t.Error("expected store to be invalid")
		}
	})

	t.Run("Restore with unreadable storage", func(t *testing.T) {
		prefs := th.NewMemoryPrefs()
		prefs.Fail(errors.New("storage disabled"))
		s := NewStore(prefs, nil, nil)
		if s.Restore("") {
			t.Error("expected no token")
		}
	})

	t.Run("Apply survives persistence failures", func(t *testing.T) {
		prefs := th.NewMemoryPrefs()
		prefs.Fail(errors.New("quota exceeded"))
		loc := &stripper{}
		s := NewStore(prefs, loc, nil)

		var applied []string
		s.OnApply(func(token string) { applied = append(applied, token) })
		s.Apply("tok1")

		if s.Value() != "tok1" {
			t.Errorf("expected tok1, got %q", s.Value())
		}
		if len(applied) != 1 || applied[0] != "tok1" {
			t.Errorf("expected apply hook with tok1, got %v", applied)
		}
		if len(loc.stripped) != 1 {
			t.Errorf("expected the param to be stripped, got %v", loc.stripped)
		}
	})

	t.Run("Apply ignores blank tokens", func(t *testing.T) {
		s := NewStore(nil, nil, nil)
		called := false
		s.OnApply(func(string) { called = true })
		s.Apply("")
		if called || s.Valid() {
			t.Error("expected blank token to be ignored")
		}
	})

	t.Run("Invalidate clears memory and storage", func(t *testing.T) {
		prefs := th.NewMemoryPrefs()
		s := NewStore(prefs, nil, nil)
		s.Apply("tok1")

		var reasons []string
		s.OnInvalidate(func(reason string) { reasons = append(reasons, reason) })
		s.Invalidate("401")
		s.Invalidate("again")

		if s.Valid() {
			t.Error("expected store to be invalid")
		}
		if _, ok, _ := prefs.Get(PersistKey); ok {
			t.Error("expected persisted token to be removed")
		}
		if len(reasons) != 1 || reasons[0] != "401" {
			t.Errorf("expected one invalidate hook call, got %v", reasons)
		}
	})

	t.Run("Token", func(t *testing.T) {
		s := NewStore(nil, nil, nil)
		if _, err := s.Token(); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}

		s.Apply("tok1")
		tok, err := s.Token()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if tok.AccessToken != "tok1" || tok.TokenType != "Bearer" {
			t.Errorf("unexpected token %+v", tok)
		}
		if !tok.Valid() {
			t.Error("expected token without expiry to be valid")
		}
	})
}
