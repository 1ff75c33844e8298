package scanner

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/desertthunder/hitster/internal/models"
)

// PayloadKind classifies a decoded payload.
type PayloadKind int

const (
	KindRaw PayloadKind = iota
	KindURI
	KindID
)

func (k PayloadKind) String() string {
	switch k {
	case KindURI:
		return "uri"
	case KindID:
		return "id"
	default:
		return "raw"
	}
}

// Payload is a normalized scan result.
type Payload struct {
	Kind  PayloadKind
	Value string
}

var cardNumberPattern = regexp.MustCompile(`^[0-9]{1,4}$`)

// Normalize classifies text from a QR code.
//
// URLs yield their "t" parameter (as a URI), then their "id" parameter, then a
// track share path. Bare canonical URIs are kept. One to four digits are a card
// id. Anything else is raw.
func Normalize(text string) Payload {
	text = strings.TrimSpace(text)
	if text == "" {
		return Payload{Kind: KindRaw}
	}

	lower := strings.ToLower(text)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		u, err := url.Parse(text)
		if err != nil {
			return Payload{Kind: KindRaw, Value: text}
		}
		q := u.Query()
		if t := strings.TrimSpace(q.Get("t")); t != "" {
			if ref, ok := models.ParseTrackRef(t); ok {
				return Payload{Kind: KindURI, Value: ref.String()}
			}
		}
		if id := strings.TrimSpace(q.Get("id")); id != "" {
			return Payload{Kind: KindID, Value: id}
		}
		if ref, ok := models.ParseTrackRef(text); ok {
			return Payload{Kind: KindURI, Value: ref.String()}
		}
		return Payload{Kind: KindRaw, Value: text}
	}

	if ref := models.TrackRef(text); ref.Valid() {
		return Payload{Kind: KindURI, Value: text}
	}
	if cardNumberPattern.MatchString(text) {
		return Payload{Kind: KindID, Value: text}
	}
	return Payload{Kind: KindRaw, Value: text}
}
