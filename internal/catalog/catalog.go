package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hitster/internal/models"
	"github.com/desertthunder/hitster/internal/shared"
)

var indexPattern = regexp.MustCompile(`^[0-9]+$`)

// Entry pairs a catalog key with its metadata.
type Entry struct {
	URI      models.TrackRef
	Metadata models.CatalogEntry
	// HasMetadata is false when the key maps to null.
	HasMetadata bool
}

// Catalog is an ordered, immutable set of entries.
type Catalog struct {
	entries []Entry
	byKey   map[models.TrackRef]int
}

// Len returns the number of keys.
func (c *Catalog) Len() int { return len(c.entries) }

// Entries returns the entries in file order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Get returns the entry stored under key.
func (c *Catalog) Get(key models.TrackRef) (Entry, bool) {
	i, ok := c.byKey[key]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// At returns the Nth entry, 1-based.
func (c *Catalog) At(n int) (Entry, bool) {
	if n < 1 || n > len(c.entries) {
		return Entry{}, false
	}
	return c.entries[n-1], true
}

// Empty returns a catalog with no entries.
func Empty() *Catalog {
	return &Catalog{byKey: map[models.TrackRef]int{}}
}

// Parse decodes a catalog JSON object, keeping key order.
func Parse(r io.Reader) (*Catalog, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrCatalogInvalid, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: expected a JSON object", shared.ErrCatalogInvalid)
	}

	c := Empty()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrCatalogInvalid, err)
		}
		key, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: entry %q: %v", shared.ErrCatalogInvalid, key, err)
		}

		entry := Entry{URI: models.TrackRef(strings.TrimSpace(key))}
		if !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			if err := json.Unmarshal(raw, &entry.Metadata); err != nil {
				return nil, fmt.Errorf("%w: entry %q: %v", shared.ErrCatalogInvalid, key, err)
			}
			entry.HasMetadata = true
		}

		if i, dup := c.byKey[entry.URI]; dup {
			c.entries[i] = entry
			continue
		}
		c.byKey[entry.URI] = len(c.entries)
		c.entries = append(c.entries, entry)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrCatalogInvalid, err)
	}
	return c, nil
}

// Resolver loads a catalog lazily and resolves input against it.
type Resolver struct {
	source string
	client *http.Client
	logger *log.Logger

	once    sync.Once
	catalog *Catalog
}

// NewResolver creates a [Resolver] reading source, a file path or an http(s) URL.
func NewResolver(source string, client *http.Client, logger *log.Logger) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{source: source, client: client, logger: shared.WithLogger(logger, "component", "catalog")}
}

// NewStaticResolver wraps an already parsed catalog.
func NewStaticResolver(c *Catalog) *Resolver {
	r := &Resolver{catalog: c, logger: log.Default()}
	r.once.Do(func() {})
	return r
}

// Load fetches and parses the catalog on first call and caches it.
//
// A failed load logs and yields an empty catalog. The failure is cached too.
func (r *Resolver) Load(ctx context.Context) *Catalog {
	r.once.Do(func() {
		c, err := r.fetch(ctx)
		if err != nil {
			r.logger.Error("failed to load catalog", "source", r.source, "error", err)
			c = Empty()
		} else {
			r.logger.Debug("catalog loaded", "source", r.source, "entries", c.Len())
		}
		r.catalog = c
	})
	return r.catalog
}

func (r *Resolver) fetch(ctx context.Context) (*Catalog, error) {
	if r.source == "" {
		return nil, fmt.Errorf("%w: no catalog source", shared.ErrMissingConfig)
	}

	if strings.HasPrefix(r.source, "http://") || strings.HasPrefix(r.source, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.source, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Cache-Control", "no-cache")

		resp, err := r.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: catalog status %d", shared.ErrAPIRequest, resp.StatusCode)
		}
		return Parse(resp.Body)
	}

	f, err := os.Open(r.source)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Resolve maps input to a canonical reference. It loads the catalog only when the
// input is not already a URI or share URL.
func (r *Resolver) Resolve(ctx context.Context, input string) (models.TrackRef, bool) {
	needle := strings.TrimSpace(input)
	if needle == "" {
		return "", false
	}

	if ref, ok := models.ParseTrackRef(needle); ok {
		return ref, true
	}

	c := r.Load(ctx)
	ref, ok := resolveIn(c, needle)
	if ok && !ref.Valid() {
		r.logger.Warn("catalog key is not a track URI", "key", ref, "input", needle)
		return "", false
	}
	return ref, ok
}

func resolveIn(c *Catalog, needle string) (models.TrackRef, bool) {
	if e, ok := c.Get(models.TrackRef(needle)); ok {
		return e.URI, true
	}

	for _, e := range c.entries {
		if e.HasMetadata && e.Metadata.Matches(needle) {
			return e.URI, true
		}
	}

	if indexPattern.MatchString(needle) {
		trimmed := strings.TrimLeft(needle, "0")
		if trimmed == "" {
			return "", false
		}
		n, err := strconv.Atoi(trimmed)
		if err != nil {
			return "", false
		}
		if e, ok := c.At(n); ok {
			return e.URI, true
		}
	}
	return "", false
}

// Lookup returns the metadata for ref. Missing or null entries report false.
func (r *Resolver) Lookup(ctx context.Context, ref models.TrackRef) (models.CatalogEntry, bool) {
	e, ok := r.Load(ctx).Get(ref)
	if !ok || !e.HasMetadata {
		return models.CatalogEntry{}, false
	}
	return e.Metadata, true
}

// Entries returns all entries in catalog order.
func (r *Resolver) Entries(ctx context.Context) []Entry {
	return r.Load(ctx).Entries()
}
