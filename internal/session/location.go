package session

import (
	"fmt"
	"net/url"
	"sync"
)

// Location is the session's navigation state: a URL whose query carries the
// track, catalog id, scan flag and OAuth token. It can only be replaced in
// place, never pushed, so history never records a token.
type Location struct {
	mu           sync.Mutex
	url          *url.URL
	replacements int
	onReplace    func(string)
}

// NewLocation parses raw. An empty raw is a bare "/".
func NewLocation(raw string) (*Location, error) {
	if raw == "" {
		raw = "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid location %q: %w", raw, err)
	}
	return &Location{url: u}, nil
}

// OnReplace registers fn to receive the URL after each replacement.
func (l *Location) OnReplace(fn func(string)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onReplace = fn
}

func (l *Location) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.url.String()
}

// Param returns the first value of query parameter name.
func (l *Location) Param(name string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.url.Query().Get(name)
}

// StripParam removes name from the query. Absent parameters leave the location untouched.
func (l *Location) StripParam(name string) {
	l.Replace(func(q url.Values) bool {
		if !q.Has(name) {
			return false
		}
		q.Del(name)
		return true
	})
}

// SetParam sets name to value and removes the parameters in drop.
func (l *Location) SetParam(name, value string, drop ...string) {
	l.Replace(func(q url.Values) bool {
		for _, d := range drop {
			q.Del(d)
		}
		q.Set(name, value)
		return true
	})
}

// Replace applies mutate to the query and replaces the current URL when mutate reports a change.
func (l *Location) Replace(mutate func(q url.Values) bool) {
	l.mu.Lock()
	q := l.url.Query()
	if !mutate(q) {
		l.mu.Unlock()
		return
	}
	next := *l.url
	next.RawQuery = q.Encode()
	l.url = &next
	l.replacements++
	fn, current := l.onReplace, next.String()
	l.mu.Unlock()

	if fn != nil {
		fn(current)
	}
}

// Replacements returns how many times the URL was replaced.
func (l *Location) Replacements() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.replacements
}
