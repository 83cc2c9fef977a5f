package common

import (
	"log"
	"net/http"

	"github.com/matst80/slask-discovery/pkg/common/jsoncompat"
)

// JsonHandler wraps fn with CORS preflight handling, the session cookie and a
// json encoder writing to the response. fn sets its own headers.
func JsonHandler(trk SessionTracker, fn func(w http.ResponseWriter, r *http.Request, sessionId int, enc jsoncompat.Encoder) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			RespondToOptions(w, r)
			return
		}
		sessionId := HandleSessionCookie(trk, w, r)
		if err := fn(w, r, sessionId, jsoncompat.NewEncoder(w)); err != nil {
			log.Printf("Error handling request %s: %v", r.URL.Path, err)
		}
	}
}

func RespondToOptions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	origin := r.Header.Get("Origin")
	if origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Max-Age", "86400")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Allow-Credentials", "true")
	}
	w.Header().Set("Age", "0")
	w.WriteHeader(http.StatusAccepted)
}
