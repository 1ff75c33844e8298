package models

import (
	"net/url"
	"regexp"
	"strings"
)

// TrackURIPrefix starts every canonical track reference.
const TrackURIPrefix = "spotify:track:"

var (
	trackURIPattern = regexp.MustCompile(`^spotify:track:[A-Za-z0-9]+$`)
	trackIDPattern  = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	// open.spotify.com/track/<id> or open.spotify.com/intl-xx/track/<id>
	sharePathPattern = regexp.MustCompile(`^/(?:intl-[A-Za-z-]+/)?track/([A-Za-z0-9]+)/?$`)
)

// TrackRef is a canonical provider track URI, "spotify:track:<id>".
type TrackRef string

// NewTrackRef builds a reference from a bare track id.
func NewTrackRef(id string) TrackRef {
	return TrackRef(TrackURIPrefix + id)
}

// Valid reports whether r matches the canonical URI grammar.
func (r TrackRef) Valid() bool {
	return trackURIPattern.MatchString(string(r))
}

// ID returns the provider id portion of the reference.
func (r TrackRef) ID() string {
	return strings.TrimPrefix(string(r), TrackURIPrefix)
}

func (r TrackRef) String() string { return string(r) }

// ParseTrackRef turns a canonical URI or an open.spotify.com track share URL into a [TrackRef].
func ParseTrackRef(text string) (TrackRef, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}

	if ref := TrackRef(text); ref.Valid() {
		return ref, true
	}

	u, err := url.Parse(text)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return "", false
	}
	if !strings.EqualFold(u.Hostname(), "open.spotify.com") {
		return "", false
	}

	m := sharePathPattern.FindStringSubmatch(u.Path)
	if m == nil || !trackIDPattern.MatchString(m[1]) {
		return "", false
	}
	return NewTrackRef(m[1]), true
}
