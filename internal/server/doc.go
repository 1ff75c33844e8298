// Package server is the OAuth bootstrap endpoint and the local token receiver.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [Logging] and [Recover] are the two the bootstrap server installs.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns, so a wrong method answers 405.
//
// # Bootstrap
//
// [LoginHandler] starts a PKCE authorization: it stores the S256 verifier in a short-lived HttpOnly
// cookie and redirects to the provider with the caller's return address packed into the state.
// [CallbackHandler] exchanges the code with that verifier and redirects back to the return address
// with the access token in the "token" query parameter. The server keeps no session.
//
// # Relay
//
// [DevicesHandler] and [PlayHandler] drive the account from a server-side refresh token, for
// cards that should play on a fixed speaker without anyone logging in on the phone.
//
// # Receiver
//
// [ReturnHandler] is the CLI's return address. It hands the token to the session once and
// redirects to the same URL without it, so the token never stays in the address bar.
package server
