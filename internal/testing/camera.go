package testing

import (
	"context"
	"image"
	"sync"

	"github.com/desertthunder/hitster/internal/scanner"
	"github.com/desertthunder/hitster/internal/shared"
)

// MockTrack records Stop calls.
type MockTrack struct {
	mu    sync.Mutex
	stops int
}

func (t *MockTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stops++
}

func (t *MockTrack) State() scanner.TrackState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stops > 0 {
		return scanner.TrackEnded
	}
	return scanner.TrackLive
}

// Stops returns how many times Stop was called.
func (t *MockTrack) Stops() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stops
}

// MockCamera opens streams with one [MockTrack] each. Frames carry the text
// fed to the stream, which [TextDecoder] reads back.
type MockCamera struct {
	mu      sync.Mutex
	err     error
	block   chan struct{}
	streams []*MockStream
	facings []scanner.Facing
}

func NewMockCamera() *MockCamera { return &MockCamera{} }

// Fail makes Open return err.
func (c *MockCamera) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Block makes Open wait until the returned function is called.
func (c *MockCamera) Block() (release func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan struct{})
	c.block = ch
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

func (c *MockCamera) Open(ctx context.Context, facing scanner.Facing) (scanner.Stream, error) {
	c.mu.Lock()
	block := c.block
	c.mu.Unlock()
	if block != nil {
		<-block
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.facings = append(c.facings, facing)
	if c.err != nil {
		return nil, c.err
	}
	s := &MockStream{track: &MockTrack{}}
	c.streams = append(c.streams, s)
	return s, nil
}

// Streams returns every stream opened so far.
func (c *MockCamera) Streams() []*MockStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*MockStream(nil), c.streams...)
}

func (c *MockCamera) Facings() []scanner.Facing {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]scanner.Facing(nil), c.facings...)
}

// MockStream serves queued frame texts, one per Frame call.
type MockStream struct {
	mu     sync.Mutex
	track  *MockTrack
	frames []string
}

func (s *MockStream) Track() *MockTrack { return s.track }

func (s *MockStream) Tracks() []scanner.MediaTrack { return []scanner.MediaTrack{s.track} }

// Feed queues frame texts. An empty string is a frame without a code.
func (s *MockStream) Feed(texts ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, texts...)
}

func (s *MockStream) Frame(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil, shared.ErrNoFrame
	}
	text := s.frames[0]
	s.frames = s.frames[1:]
	return &TextFrame{Text: text, Gray: image.NewGray(image.Rect(0, 0, 1, 1))}, nil
}

// TextFrame is a frame whose QR content is known up front.
type TextFrame struct {
	*image.Gray
	Text string
}

// TextDecoder decodes [TextFrame] values.
type TextDecoder struct{}

func (TextDecoder) Decode(img image.Image) (string, error) {
	if f, ok := img.(*TextFrame); ok && f.Text != "" {
		return f.Text, nil
	}
	return "", shared.ErrNoFrame
}
