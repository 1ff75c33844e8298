// Spotify Web API implementation of [PlayerService]
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/desertthunder/hitster/internal/models"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
)

// Scopes needed to stream, transfer and control playback.
var spotifyScopes = []string{
	"streaming",
	"user-read-email",
	"user-read-private",
	"user-read-playback-state",
	"user-modify-playback-state",
}

type spotifyErrorBody struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

type spotifyPlayerResponse struct {
	Device     Device `json:"device"`
	IsPlaying  bool   `json:"is_playing"`
	ProgressMS int    `json:"progress_ms"`
	Item       *struct {
		URI        string `json:"uri"`
		DurationMS int    `json:"duration_ms"`
	} `json:"item"`
}

// NewOAuthConfig returns the [oauth2.Config] for Spotify's authorization code flow.
//
// An empty clientSecret selects a public PKCE client, which sends the client id in the body.
func NewOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	endpoint := oauth2.Endpoint{AuthURL: spotifyAuthURL, TokenURL: spotifyTokenURL}
	if clientSecret == "" {
		endpoint.AuthStyle = oauth2.AuthStyleInParams
	}

	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       spotifyScopes,
		Endpoint:     endpoint,
	}
}

// RefreshTokenSource returns a token source that mints access tokens from a long-lived refresh token.
func RefreshTokenSource(ctx context.Context, config *oauth2.Config, refreshToken string) oauth2.TokenSource {
	return config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
}

// SpotifyPlayer implements [PlayerService] against the Spotify Web API.
type SpotifyPlayer struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a [SpotifyPlayer].
type Option func(*spotifyOptions)

type spotifyOptions struct {
	baseURL string
	base    http.RoundTripper
	timeout time.Duration
}

// WithBaseURL points the client at another API root, used by tests.
func WithBaseURL(u string) Option {
	return func(o *spotifyOptions) { o.baseURL = u }
}

// WithTransport sets the round tripper underneath the bearer transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *spotifyOptions) { o.base = rt }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *spotifyOptions) { o.timeout = d }
}

// NewSpotifyPlayer creates a [SpotifyPlayer] authorizing every request with src.
//
// The transport asks src for a token on each request, so the client never holds a stale copy.
func NewSpotifyPlayer(src oauth2.TokenSource, opts ...Option) *SpotifyPlayer {
	o := spotifyOptions{baseURL: spotifyBaseURL, timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	return &SpotifyPlayer{
		baseURL: o.baseURL,
		httpClient: &http.Client{
			Transport: &oauth2.Transport{Source: src, Base: o.base},
			Timeout:   o.timeout,
		},
	}
}

// doRequest performs an authenticated HTTP request to the Spotify API.
func (s *SpotifyPlayer) doRequest(ctx context.Context, method, endpoint string, query url.Values, body any, result any) error {
	apiURL := s.baseURL + endpoint
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload spotifyErrorBody
		if data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); len(data) > 0 {
			if json.Unmarshal(data, &payload) == nil {
				apiErr.Message = payload.Error.Message
			}
		}
		return apiErr
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func deviceQuery(deviceID string) url.Values {
	if deviceID == "" {
		return nil
	}
	return url.Values{"device_id": {deviceID}}
}

// TransferPlayback issues PUT /me/player.
func (s *SpotifyPlayer) TransferPlayback(ctx context.Context, deviceID string, play bool) error {
	body := map[string]any{"device_ids": []string{deviceID}, "play": play}
	return s.doRequest(ctx, http.MethodPut, "/me/player", nil, body, nil)
}

// StartPlayback issues PUT /me/player/play.
func (s *SpotifyPlayer) StartPlayback(ctx context.Context, deviceID string, uris ...models.TrackRef) error {
	list := make([]string, len(uris))
	for i, u := range uris {
		list[i] = u.String()
	}
	return s.doRequest(ctx, http.MethodPut, "/me/player/play", deviceQuery(deviceID), map[string]any{"uris": list}, nil)
}

// Pause issues PUT /me/player/pause.
func (s *SpotifyPlayer) Pause(ctx context.Context, deviceID string) error {
	return s.doRequest(ctx, http.MethodPut, "/me/player/pause", deviceQuery(deviceID), nil, nil)
}

// SetVolume issues PUT /me/player/volume.
func (s *SpotifyPlayer) SetVolume(ctx context.Context, deviceID string, percent int) error {
	percent = max(0, min(100, percent))
	query := url.Values{"volume_percent": {fmt.Sprint(percent)}}
	if deviceID != "" {
		query.Set("device_id", deviceID)
	}
	return s.doRequest(ctx, http.MethodPut, "/me/player/volume", query, nil, nil)
}

// Devices issues GET /me/player/devices.
func (s *SpotifyPlayer) Devices(ctx context.Context) ([]Device, error) {
	var response struct {
		Devices []Device `json:"devices"`
	}
	if err := s.doRequest(ctx, http.MethodGet, "/me/player/devices", nil, nil, &response); err != nil {
		return nil, err
	}
	return response.Devices, nil
}

// PlaybackState issues GET /me/player. A 204 means no active playback and yields nil.
func (s *SpotifyPlayer) PlaybackState(ctx context.Context) (*PlaybackState, error) {
	var response *spotifyPlayerResponse
	if err := s.doRequest(ctx, http.MethodGet, "/me/player", nil, nil, &response); err != nil {
		return nil, err
	}
	if response == nil {
		return nil, nil
	}

	state := &PlaybackState{
		DeviceID:   response.Device.ID,
		IsPlaying:  response.IsPlaying,
		ProgressMS: response.ProgressMS,
	}
	if response.Item != nil {
		state.TrackURI = models.TrackRef(response.Item.URI)
		state.DurationMS = response.Item.DurationMS
	}
	return state, nil
}
