package server

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hitster/internal/services"
	"golang.org/x/oauth2"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that knows its own route patterns.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the "METHOD /path" patterns this handler serves
}

// Router defines HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Options configures the bootstrap server.
type Options struct {
	// OAuth is the provider client. An empty RedirectURL derives the callback from PublicURL or the request.
	OAuth     *oauth2.Config
	PublicURL string

	// Relay drives playback from the server's refresh token. The relay routes answer 500 when nil.
	Relay         services.PlayerService
	RelayDeviceID string

	// Receiver is mounted at /return when set.
	Receiver *ReturnHandler
	Logger   *log.Logger
}

// NewRouter builds the bootstrap routes with logging and panic recovery.
func NewRouter(opts Options) *BasicRouter {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	router := NewBasicRouter()
	router.Use(Recover(opts.Logger), Logging(opts.Logger))

	router.Handler(NewLoginHandler(opts.OAuth, opts.PublicURL))
	router.Handler(NewCallbackHandler(opts.OAuth, opts.PublicURL, opts.Logger))
	router.Handler(NewDevicesHandler(opts.Relay, opts.Logger))
	router.Handler(NewPlayHandler(opts.Relay, opts.RelayDeviceID, opts.Logger))
	if opts.Receiver != nil {
		router.Handler(opts.Receiver)
	}
	return router
}
