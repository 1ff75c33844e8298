package formatter

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/hitster/internal/catalog"
	"github.com/desertthunder/hitster/internal/models"
	"github.com/desertthunder/hitster/internal/shared"
	th "github.com/desertthunder/hitster/internal/testing"
)

const testCatalog = `{
	"spotify:track:ABC": {"title": "Song One", "year": 1984, "code": "A1"},
	"spotify:track:DEF": {"title": "Song, Two", "year": "1999", "shortId": "7"},
	"spotify:track:GHI": null
}`

func testCards(t *testing.T) []Card {
	t.Helper()
	c, err := catalog.Parse(strings.NewReader(testCatalog))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	cards, err := Cards(c.Entries(), "https://hitster.example/")
	if err != nil {
		t.Fatalf("Cards failed: %v", err)
	}
	return cards
}

func TestCards(t *testing.T) {
	cards := testCards(t)

	if len(cards) != 3 {
		t.Fatalf("Expected 3 cards, got %d", len(cards))
	}

	tc := []struct {
		name string
		card Card
		want Card
	}{
		{"with code", cards[0], Card{Number: 1, URI: "spotify:track:ABC", Title: "Song One", Year: "1984", Code: "A1"}},
		{"with short id", cards[1], Card{Number: 2, URI: "spotify:track:DEF", Title: "Song, Two", Year: "1999", Code: "7"}},
		{"without metadata", cards[2], Card{Number: 3, URI: "spotify:track:GHI", Title: models.UnknownTrack}},
	}
	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.card
			got.Link = ""
			if got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}

	t.Run("links carry the track parameter", func(t *testing.T) {
		want := "https://hitster.example/?t=spotify%3Atrack%3AABC"
		if cards[0].Link != want {
			t.Errorf("Expected %s, got %s", want, cards[0].Link)
		}
	})

	t.Run("existing query is kept", func(t *testing.T) {
		link, err := CardLink("https://hitster.example/play?scan=1", "spotify:track:ABC")
		if err != nil {
			t.Fatalf("CardLink failed: %v", err)
		}
		if link != "https://hitster.example/play?scan=1&t=spotify%3Atrack%3AABC" {
			t.Errorf("Unexpected link %s", link)
		}
	})

	t.Run("invalid base", func(t *testing.T) {
		if _, err := CardLink("://nope", "spotify:track:ABC"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("Expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestExporters(t *testing.T) {
	cards := testCards(t)

	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(cards)
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.HasPrefix(output, "Number,URI,Title,Year,Code,Link\n") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "1,spotify:track:ABC,Song One,1984,A1,") {
			t.Errorf("CSV missing first card, got: %s", output)
		}
		if !strings.Contains(output, `"Song, Two"`) {
			t.Errorf("CSV did not quote a title with a comma, got: %s", output)
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown("Party Deck", cards)
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "# Party Deck") {
			t.Errorf("Markdown missing title")
		}
		if !strings.Contains(output, "**Cards**: 3") {
			t.Errorf("Markdown missing card count")
		}
		if !strings.Contains(output, "1. [Song One](https://hitster.example/?t=spotify%3Atrack%3AABC) (1984) `A1`") {
			t.Errorf("Markdown missing first card, got: %s", output)
		}
		if !strings.Contains(output, "3. [Unknown track](") {
			t.Errorf("Markdown missing unknown card, got: %s", output)
		}
	})

	t.Run("ExportToMarkdown default title", func(t *testing.T) {
		data, _ := ExportToMarkdown("", nil)
		if !strings.HasPrefix(string(data), "# Hitster cards") {
			t.Errorf("Expected default title, got: %s", data)
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(cards)
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Cards: 3") {
			t.Errorf("Text missing count")
		}
		if !strings.Contains(output, "   1  1984  Song One  spotify:track:ABC") {
			t.Errorf("Text missing first card, got: %s", output)
		}
		if !strings.Contains(output, "   3  ----  Unknown track  spotify:track:GHI") {
			t.Errorf("Text missing unknown card, got: %s", output)
		}
	})

	t.Run("Export dispatches on format", func(t *testing.T) {
		for _, name := range []string{"csv", "markdown", "md", "txt", "text", ""} {
			format, err := ParseFormat(name)
			if err != nil {
				t.Fatalf("ParseFormat(%q) failed: %v", name, err)
			}
			if _, err := Export(format, "Deck", cards); err != nil {
				t.Errorf("Export(%s) failed: %v", format, err)
			}
		}

		if _, err := ParseFormat("pdf"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("Expected ErrInvalidArgument, got %v", err)
		}
		if _, err := Export("pdf", "Deck", cards); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("Expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestHistoryToText(t *testing.T) {
	plays := []*models.Play{
		models.NewPlay("spotify:track:ABC", "dev1", models.ModeTimed),
		models.NewPlay("spotify:track:ZZZ", "dev2", models.ModeFull),
	}
	lookup := func(ref models.TrackRef) (models.CatalogEntry, bool) {
		if ref == "spotify:track:ABC" {
			return models.CatalogEntry{Title: "Song One", Year: "1984"}, true
		}
		return models.CatalogEntry{}, false
	}

	output := string(HistoryToText(plays, lookup))
	if !strings.Contains(output, "Plays: 2") {
		t.Errorf("History missing count, got: %s", output)
	}
	if !strings.Contains(output, "timed  dev1  Song One (1984)") {
		t.Errorf("History missing titled play, got: %s", output)
	}
	if !strings.Contains(output, "full   dev2  spotify:track:ZZZ") {
		t.Errorf("History missing unknown play, got: %s", output)
	}
}

func TestSlug(t *testing.T) {
	tc := []struct {
		in, want string
	}{
		{"Party Deck", "party-deck"},
		{"  80's & 90's!  ", "80-s-90-s"},
		{"Ärger", "rger"},
		{"!!!", "cards"},
		{"", "cards"},
	}
	for _, tt := range tc {
		if got := Slug(tt.in); got != tt.want {
			t.Errorf("Slug(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestWriteExports(t *testing.T) {
	cards := testCards(t)

	t.Run("WriteCSVExport", func(t *testing.T) {
		t.Run("WithDefaultPath", func(t *testing.T) {
			t.Chdir(t.TempDir())

			path, err := WriteCSVExport(cards, "Party Deck", "")
			if err != nil {
				t.Fatalf("WriteCSVExport failed: %v", err)
			}
			if path != "party-deck.csv" {
				t.Errorf("Expected 'party-deck.csv', got '%s'", path)
			}
			th.AssertFileExists(t, path)
			if !strings.Contains(th.MustReadFile(t, path), "Song One") {
				t.Errorf("CSV missing card data")
			}
		})

		t.Run("WithCustomPath", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "deck.csv")
			got, err := WriteCSVExport(cards, "Party Deck", path)
			if err != nil {
				t.Fatalf("WriteCSVExport failed: %v", err)
			}
			if got != path {
				t.Errorf("Expected '%s', got '%s'", path, got)
			}
			th.AssertFileExists(t, path)
		})
	})

	t.Run("WriteMarkdownExport", func(t *testing.T) {
		t.Chdir(t.TempDir())

		path, err := WriteMarkdownExport(cards, "Party Deck", "")
		if err != nil {
			t.Fatalf("WriteMarkdownExport failed: %v", err)
		}
		if path != filepath.Join("party-deck", "README.md") {
			t.Errorf("Unexpected path %s", path)
		}
		if !strings.Contains(th.MustReadFile(t, path), "# Party Deck") {
			t.Errorf("Markdown missing title")
		}
	})

	t.Run("WriteTextExport", func(t *testing.T) {
		dir := t.TempDir()
		path, err := WriteExport(FormatText, cards, "Deck", filepath.Join(dir, "deck.txt"))
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if !strings.Contains(th.MustReadFile(t, path), "Cards: 3") {
			t.Errorf("Text missing count")
		}
	})

	t.Run("unwritable path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "deck.csv")
		if _, err := WriteCSVExport(cards, "Deck", path); err == nil {
			t.Error("Expected error for a missing directory")
		}
	})
}
