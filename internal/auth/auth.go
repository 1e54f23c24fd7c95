// Package auth gates the API behind an optional shared bearer token.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// Config holds authentication configuration.
type Config struct {
	Enabled bool
	Token   string
}

// public paths are served without a token: probes and the Prometheus scrape.
var public = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// Middleware rejects requests to non-public paths that lack the configured
// token. It is a no-op when auth is disabled.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	want := []byte(cfg.Token)
	return func(next http.Handler) http.Handler {
		if !cfg.Enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if public[r.URL.Path] || authorized(r, want) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="tasogare"`)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
		})
	}
}

func authorized(r *http.Request, want []byte) bool {
	got, ok := credential(r)
	return ok && subtle.ConstantTimeCompare([]byte(got), want) == 1
}

// credential returns the presented token. Browsers cannot set headers on a
// websocket handshake, so upgrade requests may pass it as ?access_token=.
func credential(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		return token, ok && token != ""
	}
	if websocket.IsWebSocketUpgrade(r) {
		token := r.URL.Query().Get("access_token")
		return token, token != ""
	}
	return "", false
}
