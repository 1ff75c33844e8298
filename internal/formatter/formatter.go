// package formatter exports the catalog as printable card sheets (CSV, Markdown, plain text) and the play history
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/hitster/internal/catalog"
	"github.com/desertthunder/hitster/internal/models"
	"github.com/desertthunder/hitster/internal/shared"
)

// Format selects an export encoding.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
	FormatText     Format = "text"
)

// ParseFormat accepts the format names used on the command line.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "", "text", "txt":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// Card is one printable game card: the front carries the QR link, the back the answer.
type Card struct {
	Number int
	URI    models.TrackRef
	Title  string
	Year   string
	Code   string
	Link   string
}

// CardLink builds the link a card's QR code encodes: base with the track in the "t" parameter.
func CardLink(base string, ref models.TrackRef) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("%w: public url %q: %v", shared.ErrInvalidArgument, base, err)
	}
	q := u.Query()
	q.Set("t", ref.String())
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Cards numbers the catalog entries in file order and links them to base.
// Keys without metadata become "Unknown track" cards.
func Cards(entries []catalog.Entry, base string) ([]Card, error) {
	cards := make([]Card, 0, len(entries))
	for i, e := range entries {
		link, err := CardLink(base, e.URI)
		if err != nil {
			return nil, err
		}

		card := Card{Number: i + 1, URI: e.URI, Title: models.UnknownTrack, Link: link}
		if e.HasMetadata {
			card.Title = e.Metadata.DisplayTitle()
			card.Year = e.Metadata.Year.String()
			card.Code = firstCode(e.Metadata)
		}
		cards = append(cards, card)
	}
	return cards, nil
}

func firstCode(e models.CatalogEntry) string {
	for _, alt := range []models.FlexString{e.Code, e.ShortID, e.ID} {
		if s := strings.TrimSpace(alt.String()); s != "" {
			return s
		}
	}
	return ""
}

// Export encodes cards in format. title heads the Markdown document.
func Export(format Format, title string, cards []Card) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(cards)
	case FormatMarkdown:
		return ExportToMarkdown(title, cards)
	case FormatText:
		return ExportToText(cards)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// ExportToCSV converts cards to CSV with columns: Number, URI, Title, Year, Code, Link
func ExportToCSV(cards []Card) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Number", "URI", "Title", "Year", "Code", "Link"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, card := range cards {
		record := []string{
			strconv.Itoa(card.Number),
			card.URI.String(),
			card.Title,
			card.Year,
			card.Code,
			card.Link,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts cards to a Markdown answer sheet.
func ExportToMarkdown(title string, cards []Card) ([]byte, error) {
	var buf bytes.Buffer

	if title == "" {
		title = "Hitster cards"
	}
	buf.WriteString(fmt.Sprintf("# %s\n\n", title))
	buf.WriteString(fmt.Sprintf("**Cards**: %d\n\n", len(cards)))

	buf.WriteString("## Cards\n\n")
	for _, card := range cards {
		yearPart := ""
		if card.Year != "" {
			yearPart = fmt.Sprintf(" (%s)", card.Year)
		}
		codePart := ""
		if card.Code != "" {
			codePart = fmt.Sprintf(" `%s`", card.Code)
		}
		buf.WriteString(fmt.Sprintf("%d. [%s](%s)%s%s\n", card.Number, card.Title, card.Link, yearPart, codePart))
	}

	return buf.Bytes(), nil
}

// ExportToText converts cards to plain text, one card per line.
func ExportToText(cards []Card) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Cards: %d\n\n", len(cards)))
	for _, card := range cards {
		year := card.Year
		if year == "" {
			year = "----"
		}
		buf.WriteString(fmt.Sprintf("%4d  %s  %s  %s\n", card.Number, year, card.Title, card.URI))
	}

	return buf.Bytes(), nil
}

// Lookup returns catalog metadata for a track.
type Lookup func(ref models.TrackRef) (models.CatalogEntry, bool)

// HistoryToText lists plays, newest first as given, with titles from lookup when it knows them.
func HistoryToText(plays []*models.Play, lookup Lookup) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Plays: %d\n\n", len(plays)))
	for _, p := range plays {
		title := p.URI().String()
		if lookup != nil {
			if e, ok := lookup(p.URI()); ok {
				title = e.DisplayTitle()
				if y := e.Year.String(); y != "" {
					title += " (" + y + ")"
				}
			}
		}
		buf.WriteString(fmt.Sprintf("%s  %-5s  %s  %s\n",
			p.CreatedAt().Local().Format(time.DateTime), p.Mode(), p.DeviceID(), title))
	}

	return buf.Bytes()
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slug turns a title into a file name stem: lowercase, with runs of other characters collapsed to "-".
func Slug(s string) string {
	slug := strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if slug == "" {
		return "cards"
	}
	return slug
}

// WriteCSVExport writes cards to path. An empty path writes {slug}.csv.
func WriteCSVExport(cards []Card, title, path string) (string, error) {
	if path == "" {
		path = Slug(title) + ".csv"
	}

	data, err := ExportToCSV(cards)
	if err != nil {
		return "", fmt.Errorf("failed to generate CSV: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write CSV file: %w", err)
	}
	return path, nil
}

// WriteMarkdownExport writes {dir}/README.md. An empty dir uses the title's slug.
func WriteMarkdownExport(cards []Card, title, dir string) (string, error) {
	if dir == "" {
		dir = Slug(title)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := ExportToMarkdown(title, cards)
	if err != nil {
		return "", fmt.Errorf("failed to generate Markdown: %w", err)
	}

	path := filepath.Join(dir, "README.md")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write Markdown file: %w", err)
	}
	return path, nil
}

// WriteTextExport writes cards to path. An empty path writes {slug}.txt.
func WriteTextExport(cards []Card, title, path string) (string, error) {
	if path == "" {
		path = Slug(title) + ".txt"
	}

	data, err := ExportToText(cards)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}
	return path, nil
}

// WriteExport writes cards in format to path, or to a default name derived from title.
func WriteExport(format Format, cards []Card, title, path string) (string, error) {
	switch format {
	case FormatCSV:
		return WriteCSVExport(cards, title, path)
	case FormatMarkdown:
		return WriteMarkdownExport(cards, title, path)
	case FormatText:
		return WriteTextExport(cards, title, path)
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}
