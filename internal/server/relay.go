package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hitster/internal/models"
	"github.com/desertthunder/hitster/internal/services"
	"github.com/desertthunder/hitster/internal/shared"
)

// DevicesHandler lists the relay account's devices as the provider returns them.
type DevicesHandler struct {
	player services.PlayerService
	logger *log.Logger
}

// NewDevicesHandler creates a [DevicesHandler].
func NewDevicesHandler(player services.PlayerService, logger *log.Logger) *DevicesHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &DevicesHandler{player: player, logger: logger}
}

func (h *DevicesHandler) Routes() []string {
	return []string{"GET /api/devices"}
}

func (h *DevicesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.player == nil {
		relayError(w, h.logger, shared.ErrNoRefreshToken)
		return
	}

	devices, err := h.player.Devices(r.Context())
	if err != nil {
		relayError(w, h.logger, err)
		return
	}
	if devices == nil {
		devices = []services.Device{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"devices": devices})
}

// PlayHandler plays a track on the active device, or on a fallback device it first transfers to.
type PlayHandler struct {
	player   services.PlayerService
	deviceID string
	logger   *log.Logger
}

// NewPlayHandler creates a [PlayHandler]. deviceID is the fallback when the request names none.
func NewPlayHandler(player services.PlayerService, deviceID string, logger *log.Logger) *PlayHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &PlayHandler{player: player, deviceID: deviceID, logger: logger}
}

func (h *PlayHandler) Routes() []string {
	return []string{"GET /api/play"}
}

// ServeHTTP answers GET /api/play?t=<uri>&device_id=<fallback>.
func (h *PlayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ref := models.TrackRef(q.Get("t"))
	if !ref.Valid() {
		http.Error(w, "Missing or invalid t (expected spotify:track:<ID>)", http.StatusBadRequest)
		return
	}
	if h.player == nil {
		relayError(w, h.logger, shared.ErrNoRefreshToken)
		return
	}

	ctx := r.Context()
	devices, err := h.player.Devices(ctx)
	if err != nil {
		relayError(w, h.logger, err)
		return
	}

	target, ok := services.ActiveDevice(devices)
	targetID := target.ID
	if !ok {
		fallback := q.Get("device_id")
		if fallback == "" {
			fallback = h.deviceID
		}
		if fallback == "" {
			http.Error(w, "No active device. Provide ?device_id=... or set credentials.spotify.device_id.", http.StatusConflict)
			return
		}
		if _, ok := services.FindDevice(devices, fallback); !ok {
			http.Error(w, "Device "+fallback+" not found. GET /api/devices for the list.", http.StatusNotFound)
			return
		}
		if err := h.player.TransferPlayback(ctx, fallback, true); err != nil {
			relayError(w, h.logger, err)
			return
		}
		targetID = fallback
	}

	if err := h.player.StartPlayback(ctx, targetID, ref); err != nil {
		relayError(w, h.logger, err)
		return
	}

	h.logger.Info("relay playing", "uri", ref, "device", targetID)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Playing ✅"))
}

// relayError passes provider statuses through and maps everything else to 500.
func relayError(w http.ResponseWriter, logger *log.Logger, err error) {
	logger.Error("relay request failed", "error", err)

	var apiErr *services.APIError
	if errors.As(err, &apiErr) {
		http.Error(w, services.ErrorDetail(err), apiErr.Status)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
