package ui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/hitster/internal/catalog"
)

var _ list.Item = cardItem{}

// cardItem wraps a [catalog.Entry] to implement [list.Item] without showing its answer.
type cardItem struct {
	number int
	entry  catalog.Entry
}

func (i cardItem) code() string {
	if !i.entry.HasMetadata {
		return ""
	}
	return i.entry.Metadata.Code.String()
}

func (i cardItem) FilterValue() string { return strconv.Itoa(i.number) + " " + i.code() }
func (i cardItem) Title() string       { return fmt.Sprintf("Card %d", i.number) }
func (i cardItem) Description() string {
	if code := i.code(); code != "" {
		return "code " + code
	}
	return i.entry.URI.ID()
}

func cardItems(entries []catalog.Entry) []list.Item {
	items := make([]list.Item, len(entries))
	for i, e := range entries {
		items[i] = cardItem{number: i + 1, entry: e}
	}
	return items
}
