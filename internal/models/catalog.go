package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// FlexString decodes from a JSON string or number. Catalog files write years
// and card codes both ways.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = FlexString(n.String())
	return nil
}

func (s FlexString) String() string { return string(s) }

// CatalogEntry is the metadata printed on a game card.
type CatalogEntry struct {
	Title   string     `json:"title"`
	Year    FlexString `json:"year"`
	ID      FlexString `json:"id,omitempty"`
	Code    FlexString `json:"code,omitempty"`
	ShortID FlexString `json:"shortId,omitempty"`
}

// Matches reports whether needle equals one of the alternate identifiers.
func (e CatalogEntry) Matches(needle string) bool {
	if needle == "" {
		return false
	}
	for _, alt := range []FlexString{e.ID, e.Code, e.ShortID} {
		if alt != "" && strings.TrimSpace(alt.String()) == needle {
			return true
		}
	}
	return false
}

// DisplayTitle returns the title, or "Unknown track" when the catalog has none.
func (e CatalogEntry) DisplayTitle() string {
	if strings.TrimSpace(e.Title) == "" {
		return UnknownTrack
	}
	return e.Title
}

const (
	UnknownTrack    = "Unknown track"
	NoTrackSelected = "No track selected"
)
