package server

import (
	"fmt"
	"net/http"
	"sync"
)

// ReturnHandler receives the access token at the end of a login started from the CLI.
type ReturnHandler struct {
	apply  func(token string)
	result chan string
	once   sync.Once
}

// NewReturnHandler creates a [ReturnHandler]. apply may be nil.
func NewReturnHandler(apply func(token string)) *ReturnHandler {
	return &ReturnHandler{apply: apply, result: make(chan string, 1)}
}

func (h *ReturnHandler) Routes() []string {
	return []string{"GET /return"}
}

// ServeHTTP applies a "token" parameter and redirects to the same URL without it.
// Without a token it renders the completion page.
func (h *ReturnHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if token := q.Get("token"); token != "" {
		if h.apply != nil {
			h.apply(token)
		}
		h.send(token)

		q.Del("token")
		dest := *r.URL
		dest.RawQuery = q.Encode()
		http.Redirect(w, r, dest.RequestURI(), http.StatusSeeOther)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `
<!DOCTYPE html>
<html>
<head>
    <title>Logged in</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ Logged in to Spotify</h1>
        <p>You can close this window and return to the game.</p>
    </div>
</body>
</html>
`)
}

func (h *ReturnHandler) send(token string) {
	h.once.Do(func() {
		h.result <- token
		close(h.result)
	})
}

// Result receives the first token and is then closed.
func (h *ReturnHandler) Result() <-chan string {
	return h.result
}
