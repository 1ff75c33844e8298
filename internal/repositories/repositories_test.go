package repositories

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/desertthunder/hitster/internal/models"
	"github.com/desertthunder/hitster/internal/shared"
)

const (
	tokenKey    = "hitster.spotify_token"
	fullModeKey = "hitster.full_track_mode"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	if err := shared.RunMigrations(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func TestPreferenceRepository(t *testing.T) {
	t.Run("Get missing key", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPreferenceRepository(db)
		value, ok, err := repo.Get(tokenKey)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok || value != "" {
			t.Errorf("expected missing key, got %q", value)
		}
	})

	t.Run("Set overwrites", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPreferenceRepository(db)
		if err := repo.Set(tokenKey, "tok1"); err != nil {
			t.Fatalf("failed to set: %v", err)
		}
		if err := repo.Set(tokenKey, "tok2"); err != nil {
			t.Fatalf("failed to overwrite: %v", err)
		}

		value, ok, err := repo.Get(tokenKey)
		if err != nil || !ok {
			t.Fatalf("expected stored value, got ok=%v err=%v", ok, err)
		}
		if value != "tok2" {
			t.Errorf("expected tok2, got %s", value)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPreferenceRepository(db)
		if err := repo.Set(tokenKey, "tok1"); err != nil {
			t.Fatalf("failed to set: %v", err)
		}
		if err := repo.Delete(tokenKey); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if err := repo.Delete(tokenKey); err != nil {
			t.Errorf("deleting a missing key should not fail: %v", err)
		}

		if _, ok, _ := repo.Get(tokenKey); ok {
			t.Error("expected key to be gone")
		}
	})

	t.Run("Bool", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPreferenceRepository(db)
		if got, err := repo.GetBool(fullModeKey); err != nil || got {
			t.Errorf("expected false for missing key, got %v (%v)", got, err)
		}

		if err := repo.SetBool(fullModeKey, true); err != nil {
			t.Fatalf("failed to set bool: %v", err)
		}
		if got, _ := repo.GetBool(fullModeKey); !got {
			t.Error("expected true after SetBool(true)")
		}

		if err := repo.Set(fullModeKey, "garbage"); err != nil {
			t.Fatalf("failed to set: %v", err)
		}
		if got, err := repo.GetBool(fullModeKey); err != nil || got {
			t.Errorf("expected unparsable value to read as false, got %v (%v)", got, err)
		}
	})
}

func TestPlayRepository(t *testing.T) {
	t.Run("Create and Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlayRepository(db)
		play := models.NewPlay("spotify:track:ABC", "dev1", models.ModeFull)
		if err := repo.Create(play); err != nil {
			t.Fatalf("failed to create play: %v", err)
		}
		if play.ID() == "" {
			t.Fatal("play ID should be set after creation")
		}

		got, err := repo.Get(play.ID())
		if err != nil {
			t.Fatalf("failed to get play: %v", err)
		}
		if got.URI() != "spotify:track:ABC" || got.DeviceID() != "dev1" || got.Mode() != models.ModeFull {
			t.Errorf("unexpected play: %s %s %s", got.URI(), got.DeviceID(), got.Mode())
		}
	})

	t.Run("Create validates", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		if err := NewPlayRepository(db).Create(models.NewPlay("bogus", "dev1", models.ModeTimed)); err == nil {
			t.Fatal("expected validation error")
		}
	})

	t.Run("List newest first with limit", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlayRepository(db)
		base := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)
		for i, uri := range []models.TrackRef{"spotify:track:A", "spotify:track:B", "spotify:track:C"} {
			play := models.NewPlay(uri, "dev1", models.ModeTimed)
			play.SetCreatedAt(base.Add(time.Duration(i) * time.Minute))
			if err := repo.Create(play); err != nil {
				t.Fatalf("failed to create play: %v", err)
			}
		}

		plays, err := repo.List(map[string]any{"limit": 2})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(plays) != 2 {
			t.Fatalf("expected 2 plays, got %d", len(plays))
		}
		if plays[0].URI() != "spotify:track:C" {
			t.Errorf("expected newest play first, got %s", plays[0].URI())
		}

		filtered, err := repo.List(map[string]any{"uri": "spotify:track:A"})
		if err != nil {
			t.Fatalf("failed to list by uri: %v", err)
		}
		if len(filtered) != 1 {
			t.Errorf("expected 1 play for uri, got %d", len(filtered))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewPlayRepository(db)
		play := models.NewPlay("spotify:track:A", "dev1", models.ModeTimed)
		if err := repo.Create(play); err != nil {
			t.Fatalf("failed to create play: %v", err)
		}
		if err := repo.Delete(play.ID()); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if err := repo.Delete(play.ID()); err == nil {
			t.Error("expected error deleting a missing play")
		}
		if _, err := repo.Get(play.ID()); err == nil {
			t.Error("expected error getting a deleted play")
		}
	})
}
