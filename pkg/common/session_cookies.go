package common

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// SessionTracker is notified when a visitor without a session cookie arrives.
type SessionTracker interface {
	TrackSession(sessionId int, r *http.Request)
}

const sessionCookie = "sid"

func generateSessionId() int {
	return int(time.Now().UnixNano() & 0x7fffffff)
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, sessionId int) {
	host := r.Host
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    strconv.Itoa(sessionId),
		Domain:   strings.TrimPrefix(host, "."),
		SameSite: http.SameSiteLaxMode,
		HttpOnly: true,
		MaxAge:   60 * 60 * 24 * 30,
		Path:     "/",
	})
}

// HandleSessionCookie returns the session id of the request, starting a new
// session when the cookie is missing or broken.
func HandleSessionCookie(tracker SessionTracker, w http.ResponseWriter, r *http.Request) int {
	c, err := r.Cookie(sessionCookie)
	if err == nil {
		if sessionId, err := strconv.Atoi(c.Value); err == nil {
			return sessionId
		}
	}
	sessionId := generateSessionId()
	if tracker != nil {
		go tracker.TrackSession(sessionId, r)
	}
	setSessionCookie(w, r, sessionId)
	return sessionId
}
