// Package services defines the [PlayerService] interface for driving a remote playback
// device and implements it for the Spotify Web API.
//
// # Spotify Implementation
//
// [SpotifyPlayer] sends every request through an [oauth2.Transport] whose token source is
// supplied by the caller. Interactive sessions pass the token store, so an invalidated
// session fails locally with [shared.ErrNotAuthenticated] before reaching the network.
// The bootstrap server passes a refresh-token source built by [RefreshTokenSource].
//
// # Error Handling
//
// Non-2xx responses become [*APIError] carrying the status code and the provider's
// error message. A 401 unwraps to [shared.ErrTokenExpired], anything else to
// [shared.ErrAPIRequest], so callers match with errors.Is:
//
//	if errors.Is(err, shared.ErrTokenExpired) { tokens.Invalidate("expired") }
//
// # OAuth
//
// [NewOAuthConfig] builds the [oauth2.Config] used by the PKCE bootstrap endpoint,
// requesting the streaming and playback scopes.
package services
