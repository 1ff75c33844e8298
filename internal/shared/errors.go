package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Provider errors
	ErrAPIRequest     = fmt.Errorf("API request failed")
	ErrNoDevice       = fmt.Errorf("no playback device")
	ErrDeviceNotFound = fmt.Errorf("device not found")

	// Playback errors
	ErrNotReady          = fmt.Errorf("player not ready")
	ErrNoTrack           = fmt.Errorf("no track selected")
	ErrActivationBlocked = fmt.Errorf("audio activation blocked")
	ErrTransferFailed    = fmt.Errorf("playback transfer failed")
	ErrPlayFailed        = fmt.Errorf("playback start failed")

	// Catalog errors
	ErrTrackNotFound  = fmt.Errorf("track not found")
	ErrCatalogInvalid = fmt.Errorf("invalid catalog")
	ErrUnrecognized   = fmt.Errorf("input not recognized")

	// Scanner errors
	ErrCameraUnavailable  = fmt.Errorf("camera unavailable")
	ErrDecoderUnavailable = fmt.Errorf("QR decoder unavailable")
	ErrCameraDenied       = fmt.Errorf("camera permission denied")
	ErrNoFrame            = fmt.Errorf("no frame available")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
