package scanner

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/desertthunder/hitster/internal/shared"
)

// DirCamera treats a directory as a camera: the newest image that was not
// already there when the stream opened is the current frame. Each image is
// returned once.
type DirCamera struct {
	dir string
}

// NewDirCamera creates a [DirCamera] watching dir.
func NewDirCamera(dir string) *DirCamera {
	return &DirCamera{dir: dir}
}

// Open fails when the directory is missing. Facing is ignored.
func (c *DirCamera) Open(ctx context.Context, facing Facing) (Stream, error) {
	info, err := os.Stat(c.dir)
	if err != nil {
		return nil, fmt.Errorf("frames directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("frames directory: %s is not a directory", c.dir)
	}
	stream := &dirStream{dir: c.dir, track: &dirTrack{}}
	if path, mod, err := newestImage(c.dir); err == nil {
		stream.last = frameKey{path, mod}
	}
	return stream, nil
}

type frameKey struct {
	path string
	mod  time.Time
}

type dirStream struct {
	dir   string
	track *dirTrack

	mu   sync.Mutex
	last frameKey
}

func (s *dirStream) Tracks() []MediaTrack { return []MediaTrack{s.track} }

func (s *dirStream) Frame(ctx context.Context) (image.Image, error) {
	if s.track.State() == TrackEnded {
		return nil, shared.ErrNoFrame
	}

	path, mod, err := newestImage(s.dir)
	if err != nil {
		return nil, err
	}

	key := frameKey{path, mod}
	s.mu.Lock()
	stale := key.path == s.last.path && key.mod.Equal(s.last.mod)
	s.last = key
	s.mu.Unlock()
	if stale {
		return nil, shared.ErrNoFrame
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

func newestImage(dir string) (string, time.Time, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", time.Time{}, err
	}

	var (
		newest string
		mod    time.Time
	)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
		default:
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(mod) {
			newest, mod = filepath.Join(dir, e.Name()), info.ModTime()
		}
	}

	if newest == "" {
		return "", time.Time{}, shared.ErrNoFrame
	}
	return newest, mod, nil
}

type dirTrack struct {
	mu    sync.Mutex
	ended bool
}

func (t *dirTrack) Stop() {
	t.mu.Lock()
	t.ended = true
	t.mu.Unlock()
}

func (t *dirTrack) State() TrackState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ended {
		return TrackEnded
	}
	return TrackLive
}
