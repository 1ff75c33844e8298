package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/hitster/internal/services"
	th "github.com/desertthunder/hitster/internal/testing"
	"golang.org/x/oauth2"
)

func testConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID: "client1",
		Scopes:   []string{"streaming"},
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://accounts.example/authorize",
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLoginHandler(t *testing.T) {
	t.Run("redirects with an S256 challenge and stores the verifier", func(t *testing.T) {
		router := NewRouter(Options{OAuth: testConfig("")})
		req := httptest.NewRequest(http.MethodGet, "/api/login?redirect_uri="+url.QueryEscape("http://example.com/?t=spotify:track:ABC"), nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		resp := w.Result()
		if resp.StatusCode != http.StatusFound {
			t.Fatalf("Expected 302, got %d", resp.StatusCode)
		}

		loc, err := url.Parse(resp.Header.Get("Location"))
		if err != nil {
			t.Fatalf("Invalid Location: %v", err)
		}
		if loc.Host != "accounts.example" {
			t.Errorf("Expected provider host, got %s", loc.Host)
		}
		q := loc.Query()
		if q.Get("code_challenge_method") != "S256" || q.Get("code_challenge") == "" {
			t.Errorf("Expected S256 challenge, got %v", q)
		}
		if q.Get("redirect_uri") != "http://example.com/api/callback" {
			t.Errorf("Expected callback derived from the request, got %s", q.Get("redirect_uri"))
		}
		state, _ := url.ParseQuery(q.Get("state"))
		if state.Get("ret") != "http://example.com/?t=spotify:track:ABC" {
			t.Errorf("Expected return address in state, got %q", q.Get("state"))
		}

		cookie := findCookie(resp, verifierCookie)
		if cookie == nil {
			t.Fatal("Expected verifier cookie")
		}
		if !cookie.HttpOnly || cookie.MaxAge != verifierMaxAge || cookie.Secure {
			t.Errorf("Unexpected cookie attributes %+v", cookie)
		}
		if cookie.Value == "" || cookie.Value == q.Get("code_challenge") {
			t.Error("Expected the verifier, not the challenge, in the cookie")
		}
	})

	t.Run("secure behind a TLS proxy", func(t *testing.T) {
		handler := NewLoginHandler(testConfig(""), "https://hitster.example/")
		req := httptest.NewRequest(http.MethodGet, "/api/login?redirect_uri=x", nil)
		req.Header.Set("X-Forwarded-Proto", "https, http")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		resp := w.Result()
		if c := findCookie(resp, verifierCookie); c == nil || !c.Secure {
			t.Errorf("Expected a secure cookie, got %+v", c)
		}
		loc, _ := url.Parse(resp.Header.Get("Location"))
		if got := loc.Query().Get("redirect_uri"); got != "https://hitster.example/api/callback" {
			t.Errorf("Expected callback from the public URL, got %s", got)
		}
	})

	t.Run("missing redirect_uri", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewLoginHandler(testConfig(""), "").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/login", nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})

	t.Run("missing client", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewLoginHandler(nil, "").ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/login?redirect_uri=x", nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", w.Code)
		}
	})

	t.Run("return addresses", func(t *testing.T) {
		handler := NewLoginHandler(testConfig(""), "https://hitster.example/")
		tc := []struct {
			ret  string
			want int
		}{
			{"https://hitster.example/?t=spotify:track:ABC", http.StatusFound},
			{"http://127.0.0.1:8080/return", http.StatusFound},
			{"http://localhost/return", http.StatusFound},
			{"/?id=12", http.StatusFound},
			{"https://evil.example/collect", http.StatusBadRequest},
			{"http://hitster.example/", http.StatusBadRequest},
			{"//evil.example/", http.StatusBadRequest},
			{"/\\evil.example/", http.StatusBadRequest},
			{"javascript:alert(1)", http.StatusBadRequest},
		}
		for _, tt := range tc {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/login?redirect_uri="+url.QueryEscape(tt.ret), nil))
			if w.Code != tt.want {
				t.Errorf("redirect_uri %q: expected %d, got %d", tt.ret, tt.want, w.Code)
			}
		}
	})
}

func TestCallbackHandler(t *testing.T) {
	var gotVerifier, gotRedirect string
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotVerifier = r.PostForm.Get("code_verifier")
		gotRedirect = r.PostForm.Get("redirect_uri")
		if r.PostForm.Get("code") != "good" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok1","token_type":"Bearer","expires_in":3600}`))
	}))
	defer tokenServer.Close()

	handler := NewCallbackHandler(testConfig(tokenServer.URL), "", log.New(&th.FWriter{}))
	callback := func(query string, verifier string) *http.Response {
		req := httptest.NewRequest(http.MethodGet, "/api/callback?"+query, nil)
		if verifier != "" {
			req.AddCookie(&http.Cookie{Name: verifierCookie, Value: verifier})
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Result()
	}

	t.Run("redirects to the return address with the token", func(t *testing.T) {
		state := url.Values{"ret": {"http://example.com/?t=spotify:track:ABC"}}.Encode()
		resp := callback("code=good&state="+url.QueryEscape(state), "verifier1")

		if resp.StatusCode != http.StatusFound {
			t.Fatalf("Expected 302, got %d", resp.StatusCode)
		}
		loc, _ := url.Parse(resp.Header.Get("Location"))
		if loc.Host != "example.com" || loc.Query().Get("token") != "tok1" || loc.Query().Get("t") != "spotify:track:ABC" {
			t.Errorf("Unexpected redirect %s", loc)
		}
		if gotVerifier != "verifier1" {
			t.Errorf("Expected the cookie verifier in the exchange, got %q", gotVerifier)
		}
		if gotRedirect != "http://example.com/api/callback" {
			t.Errorf("Expected the login callback in the exchange, got %q", gotRedirect)
		}
		if c := findCookie(resp, verifierCookie); c == nil || c.MaxAge >= 0 {
			t.Errorf("Expected the verifier cookie cleared, got %+v", c)
		}
	})

	t.Run("defaults to the root", func(t *testing.T) {
		resp := callback("code=good", "verifier1")
		if got := resp.Header.Get("Location"); got != "/?token=tok1" {
			t.Errorf("Expected /?token=tok1, got %s", got)
		}
	})

	t.Run("foreign return address gets no token", func(t *testing.T) {
		gotVerifier = ""
		state := url.Values{"ret": {"https://evil.example/collect"}}.Encode()
		resp := callback("code=good&state="+url.QueryEscape(state), "verifier2")

		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("Expected 400, got %d", resp.StatusCode)
		}
		if loc := resp.Header.Get("Location"); loc != "" {
			t.Errorf("Expected no redirect, got %s", loc)
		}
		if gotVerifier != "" {
			t.Error("Expected no code exchange for a foreign return address")
		}
	})

	t.Run("loopback return address", func(t *testing.T) {
		state := url.Values{"ret": {"http://127.0.0.1:8080/return"}}.Encode()
		resp := callback("code=good&state="+url.QueryEscape(state), "verifier1")
		if got := resp.Header.Get("Location"); got != "http://127.0.0.1:8080/return?token=tok1" {
			t.Errorf("Expected the loopback return with the token, got %s", got)
		}
	})

	t.Run("missing verifier", func(t *testing.T) {
		if resp := callback("code=good", ""); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("missing code", func(t *testing.T) {
		if resp := callback("error=access_denied", "verifier1"); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", resp.StatusCode)
		}
	})

	t.Run("rejected exchange", func(t *testing.T) {
		if resp := callback("code=bad", "verifier1"); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", resp.StatusCode)
		}
	})
}

func TestRelay(t *testing.T) {
	quiet := log.New(&th.FWriter{})
	active := services.Device{ID: "speaker", Name: "Kitchen", IsActive: true}
	idle := services.Device{ID: "tv", Name: "TV"}

	play := func(provider services.PlayerService, fallback, query string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		NewPlayHandler(provider, fallback, quiet).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/play?"+query, nil))
		return w
	}

	t.Run("plays on the active device", func(t *testing.T) {
		provider := th.NewMockPlayerService()
		provider.SetDevices(idle, active)

		w := play(provider, "tv", "t=spotify:track:ABC")
		if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Playing") {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body)
		}
		calls := provider.Calls()
		if got := provider.Methods(); !slices.Equal(got, []string{th.CallPlay}) {
			t.Errorf("Expected only a play, got %v", got)
		}
		if last := calls[len(calls)-1]; last.DeviceID != "speaker" || last.URIs[0] != "spotify:track:ABC" {
			t.Errorf("Unexpected play %+v", last)
		}
	})

	t.Run("transfers to the fallback device", func(t *testing.T) {
		provider := th.NewMockPlayerService()
		provider.SetDevices(idle)

		w := play(provider, "", "t=spotify:track:ABC&device_id=tv")
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body)
		}
		calls := provider.Calls()
		if got := provider.Methods(); !slices.Equal(got, []string{th.CallTransfer, th.CallPlay}) {
			t.Fatalf("Expected transfer then play, got %v", got)
		}
		if calls[1].DeviceID != "tv" || !calls[1].Play {
			t.Errorf("Expected transfer to tv with play, got %+v", calls[1])
		}
	})

	t.Run("configured fallback", func(t *testing.T) {
		provider := th.NewMockPlayerService()
		provider.SetDevices(idle)
		if w := play(provider, "tv", "t=spotify:track:ABC"); w.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d", w.Code)
		}
	})

	t.Run("no active device and no fallback", func(t *testing.T) {
		provider := th.NewMockPlayerService()
		provider.SetDevices(idle)
		if w := play(provider, "", "t=spotify:track:ABC"); w.Code != http.StatusConflict {
			t.Errorf("Expected 409, got %d", w.Code)
		}
	})

	t.Run("unknown fallback", func(t *testing.T) {
		provider := th.NewMockPlayerService()
		provider.SetDevices(idle)
		w := play(provider, "", "t=spotify:track:ABC&device_id=radio")
		if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "radio") {
			t.Errorf("Expected 404 naming the device, got %d: %s", w.Code, w.Body)
		}
		if len(provider.Methods()) != 0 {
			t.Errorf("Expected no playback calls, got %v", provider.Methods())
		}
	})

	t.Run("invalid track", func(t *testing.T) {
		provider := th.NewMockPlayerService()
		for _, q := range []string{"", "t=spotify:album:ABC", "t=ABC"} {
			if w := play(provider, "", q); w.Code != http.StatusBadRequest {
				t.Errorf("%q: expected 400, got %d", q, w.Code)
			}
		}
		if len(provider.Calls()) != 0 {
			t.Error("Expected no provider calls")
		}
	})

	t.Run("provider status passes through", func(t *testing.T) {
		provider := th.NewMockPlayerService()
		provider.SetDevices(active)
		provider.SetError(th.CallPlay, &services.APIError{Status: http.StatusBadGateway, Message: "upstream"})

		w := play(provider, "", "t=spotify:track:ABC")
		if w.Code != http.StatusBadGateway || !strings.Contains(w.Body.String(), "upstream") {
			t.Errorf("Expected 502 upstream, got %d: %s", w.Code, w.Body)
		}
	})

	t.Run("without a refresh token", func(t *testing.T) {
		if w := play(nil, "", "t=spotify:track:ABC"); w.Code != http.StatusInternalServerError {
			t.Errorf("Expected 500, got %d", w.Code)
		}
	})

	t.Run("devices", func(t *testing.T) {
		provider := th.NewMockPlayerService()
		provider.SetDevices(active, idle)

		w := httptest.NewRecorder()
		NewDevicesHandler(provider, quiet).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/devices", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}

		var body struct {
			Devices []services.Device `json:"devices"`
		}
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("Invalid JSON: %v", err)
		}
		if len(body.Devices) != 2 || body.Devices[0].ID != "speaker" || !body.Devices[0].IsActive {
			t.Errorf("Unexpected devices %+v", body.Devices)
		}
	})

	t.Run("devices error", func(t *testing.T) {
		provider := th.NewMockPlayerService()
		provider.SetError(th.CallDevices, &services.APIError{Status: http.StatusUnauthorized, Message: "expired"})

		w := httptest.NewRecorder()
		NewDevicesHandler(provider, quiet).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/devices", nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", w.Code)
		}
	})
}

func TestReturnHandler(t *testing.T) {
	var applied []string
	handler := NewReturnHandler(func(token string) { applied = append(applied, token) })

	t.Run("applies and strips the token", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/return?t=spotify:track:ABC&token=tok1", nil))

		if w.Code != http.StatusSeeOther {
			t.Fatalf("Expected 303, got %d", w.Code)
		}
		if got := w.Header().Get("Location"); got != "/return?t=spotify%3Atrack%3AABC" {
			t.Errorf("Expected redirect without token, got %s", got)
		}
		if !slices.Equal(applied, []string{"tok1"}) {
			t.Errorf("Expected tok1 applied, got %v", applied)
		}
		if got := <-handler.Result(); got != "tok1" {
			t.Errorf("Expected tok1 result, got %q", got)
		}
	})

	t.Run("second token still applies but the result is closed", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/return?token=tok2", nil))
		if len(applied) != 2 {
			t.Errorf("Expected two applications, got %v", applied)
		}
		if _, ok := <-handler.Result(); ok {
			t.Error("Expected result channel closed")
		}
	})

	t.Run("renders the completion page", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/return", nil))
		if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Logged in") {
			t.Errorf("Expected completion page, got %d", w.Code)
		}
	})
}

func TestRouter(t *testing.T) {
	t.Run("wrong method", func(t *testing.T) {
		router := NewRouter(Options{OAuth: testConfig("")})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/login", nil))
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("Expected 405, got %d", w.Code)
		}
	})

	t.Run("receiver is optional", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewRouter(Options{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/return", nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", w.Code)
		}

		w = httptest.NewRecorder()
		NewRouter(Options{Receiver: NewReturnHandler(nil)}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/return", nil))
		if w.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d", w.Code)
		}
	})

	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(mark("first"), mark("second"))
		router.HandleFunc("get", "/ping", func(w http.ResponseWriter, r *http.Request) { order = append(order, "handler") })
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

		if !slices.Equal(order, []string{"first", "second", "handler"}) {
			t.Errorf("Unexpected order %v", order)
		}
	})

	t.Run("logging records the status but not the query", func(t *testing.T) {
		var buf bytes.Buffer
		router := NewBasicRouter()
		router.Use(Logging(log.New(&buf)))
		router.HandleFunc(http.MethodGet, "/teapot", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/teapot?token=secret", nil))

		out := buf.String()
		if !strings.Contains(out, "status=418") || !strings.Contains(out, "path=/teapot") {
			t.Errorf("Unexpected log line %q", out)
		}
		if strings.Contains(out, "secret") {
			t.Error("Expected the query to stay out of the log")
		}
	})

	t.Run("recover answers 500", func(t *testing.T) {
		router := NewBasicRouter()
		router.Use(Recover(log.New(&th.FWriter{})))
		router.HandleFunc(http.MethodGet, "/boom", func(w http.ResponseWriter, r *http.Request) { panic("boom") })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
		if w.Code != http.StatusInternalServerError {
			t.Errorf("Expected 500, got %d", w.Code)
		}
	})
}
