package session

import "github.com/charmbracelet/log"

// Capabilities records which optional platform features are present. It is
// resolved once when the session is built.
type Capabilities struct {
	Camera       bool
	Decoder      bool
	WakeLock     bool
	MediaSession bool
	Haptics      bool
	Broadcast    bool
}

// Scanner reports whether QR scanning is possible.
func (c Capabilities) Scanner() bool { return c.Camera && c.Decoder }

func detectCapabilities(opts Options) Capabilities {
	return Capabilities{
		Camera:       opts.Camera != nil,
		Decoder:      opts.Decoder != nil,
		WakeLock:     opts.WakeLocker != nil,
		MediaSession: opts.MediaSession != nil,
		Haptics:      opts.Haptics != nil,
		Broadcast:    opts.Bus != nil,
	}
}

func (c Capabilities) log(logger *log.Logger) {
	logger.Debug("capabilities",
		"camera", c.Camera,
		"decoder", c.Decoder,
		"wakelock", c.WakeLock,
		"mediasession", c.MediaSession,
		"haptics", c.Haptics,
		"broadcast", c.Broadcast,
	)
}
