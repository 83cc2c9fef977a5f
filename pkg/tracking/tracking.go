package tracking

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/matst80/slask-discovery/pkg/query"
)

// Tracking receives usage events from the portal handlers.
type Tracking interface {
	TrackSession(sessionId int, r *http.Request)
	TrackSearch(sessionId int, search SearchEvent, r *http.Request)
}

const (
	SessionEvent uint16 = 0
	SearchEvents uint16 = 1
)

type BaseEvent struct {
	Id        string    `json:"id"`
	SessionId int       `json:"session_id"`
	Event     uint16    `json:"event"`
	Context   string    `json:"context,omitempty"`
	Time      time.Time `json:"time"`
}

func newBaseEvent(event uint16, sessionId int, context string) *BaseEvent {
	return &BaseEvent{
		Id:        uuid.NewString(),
		SessionId: sessionId,
		Event:     event,
		Context:   context,
		Time:      time.Now().UTC(),
	}
}

type Session struct {
	*BaseEvent
	UserAgent    string `json:"user_agent,omitempty"`
	Ip           string `json:"ip,omitempty"`
	Language     string `json:"language,omitempty"`
	PragmaHeader string `json:"pragma,omitempty"`
}

// SearchEvent describes one facet search as the user issued it.
type SearchEvent struct {
	Query     string          `json:"query"`
	Filters   string          `json:"filters,omitempty"`
	Selection query.Selection `json:"selection,omitempty"`
	Facets    []string        `json:"facets,omitempty"`
	Failed    bool            `json:"failed,omitempty"`
}

type SearchEventData struct {
	*BaseEvent
	SearchEvent
	Referer string `json:"referer,omitempty"`
}

func clientIp(r *http.Request) string {
	ip := r.Header.Get("X-Real-Ip")
	if ip == "" {
		ip = r.Header.Get("X-Forwarded-For")
	}
	if ip == "" {
		ip = r.RemoteAddr
	}
	return ip
}
