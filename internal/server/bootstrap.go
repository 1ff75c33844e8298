package server

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
)

const (
	verifierCookie = "cv"
	verifierMaxAge = 600
	callbackPath   = "/api/callback"
)

// LoginHandler starts the PKCE authorization code flow.
type LoginHandler struct {
	config    *oauth2.Config
	publicURL string
}

// NewLoginHandler creates a [LoginHandler]. config may be nil, in which case every login answers 400.
func NewLoginHandler(config *oauth2.Config, publicURL string) *LoginHandler {
	return &LoginHandler{config: config, publicURL: publicURL}
}

func (h *LoginHandler) Routes() []string {
	return []string{"GET /api/login"}
}

// ServeHTTP answers GET /api/login?redirect_uri=<return address>.
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ret := r.URL.Query().Get("redirect_uri")
	if h.config == nil || h.config.ClientID == "" || ret == "" {
		http.Error(w, "Missing CLIENT_ID or redirect_uri", http.StatusBadRequest)
		return
	}
	if !allowedReturn(ret, h.publicURL, r) {
		http.Error(w, "redirect_uri is not an allowed return address", http.StatusBadRequest)
		return
	}

	verifier := oauth2.GenerateVerifier()
	http.SetCookie(w, &http.Cookie{
		Name:     verifierCookie,
		Value:    verifier,
		Path:     "/",
		MaxAge:   verifierMaxAge,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
	})

	config := withRedirect(h.config, callbackURL(h.config, h.publicURL, r))
	state := url.Values{"ret": {ret}}.Encode()
	http.Redirect(w, r, config.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), http.StatusFound)
}

// CallbackHandler exchanges the authorization code and returns the token to the caller.
type CallbackHandler struct {
	config    *oauth2.Config
	publicURL string
	logger    *log.Logger
}

// NewCallbackHandler creates a [CallbackHandler].
func NewCallbackHandler(config *oauth2.Config, publicURL string, logger *log.Logger) *CallbackHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &CallbackHandler{config: config, publicURL: publicURL, logger: logger}
}

func (h *CallbackHandler) Routes() []string {
	return []string{"GET " + callbackPath}
}

// ServeHTTP answers the provider's redirect with code and state.
//
// The return address comes from the state's "ret" value and receives the token as "token".
// Only the public origin, relative paths and loopback addresses are accepted.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")
	cookie, err := r.Cookie(verifierCookie)
	if code == "" || err != nil || cookie.Value == "" || h.config == nil {
		if reason := q.Get("error"); reason != "" {
			h.logger.Warn("authorization denied", "error", reason)
		}
		http.Error(w, "Missing code or verifier.", http.StatusBadRequest)
		return
	}

	ret := "/"
	if state, err := url.ParseQuery(q.Get("state")); err == nil && state.Get("ret") != "" {
		ret = state.Get("ret")
	}
	if !allowedReturn(ret, h.publicURL, r) {
		h.logger.Warn("rejected return address", "ret", ret)
		http.Error(w, fmt.Sprintf("Callback error: return address %q not allowed", ret), http.StatusBadRequest)
		return
	}

	config := withRedirect(h.config, callbackURL(h.config, h.publicURL, r))
	token, err := config.Exchange(r.Context(), code, oauth2.VerifierOption(cookie.Value))
	if err != nil {
		h.logger.Error("token exchange failed", "error", err)
		http.Error(w, "Token error: "+err.Error(), http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     verifierCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
	})

	dest, err := url.Parse(ret)
	if err != nil {
		http.Error(w, fmt.Sprintf("Callback error: invalid return address %q", ret), http.StatusInternalServerError)
		return
	}
	values := dest.Query()
	values.Set("token", token.AccessToken)
	dest.RawQuery = values.Encode()

	http.Redirect(w, r, dest.String(), http.StatusFound)
}

// allowedReturn reports whether ret may receive a token: a relative path, an
// address on the public origin (the request's host without one), or a loopback
// address for the command line login.
func allowedReturn(ret, publicURL string, r *http.Request) bool {
	dest, err := url.Parse(ret)
	if err != nil {
		return false
	}
	if dest.Scheme == "" && dest.Host == "" {
		return !strings.HasPrefix(ret, "//") && !strings.HasPrefix(ret, `/\`)
	}
	if dest.Scheme != "http" && dest.Scheme != "https" {
		return false
	}

	host := dest.Hostname()
	if host == "localhost" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return true
	}

	if publicURL != "" {
		public, err := url.Parse(publicURL)
		return err == nil && public.Scheme == dest.Scheme && strings.EqualFold(public.Host, dest.Host)
	}
	return strings.EqualFold(r.Host, dest.Host)
}

// withRedirect copies config with redirect as its callback.
func withRedirect(config *oauth2.Config, redirect string) *oauth2.Config {
	c := *config
	c.RedirectURL = redirect
	return &c
}

// callbackURL picks the configured redirect, then the public URL, then the request's own origin.
func callbackURL(config *oauth2.Config, publicURL string, r *http.Request) string {
	if config.RedirectURL != "" {
		return config.RedirectURL
	}
	if publicURL != "" {
		return strings.TrimRight(publicURL, "/") + callbackPath
	}
	proto := "http"
	if isSecureRequest(r) {
		proto = "https"
	}
	return proto + "://" + r.Host + callbackPath
}

func isSecureRequest(r *http.Request) bool {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		return strings.TrimSpace(strings.Split(proto, ",")[0]) == "https"
	}
	return r.TLS != nil
}
