package main

import (
	"log"
	"sync"

	"github.com/matst80/slask-discovery/pkg/query"
	"github.com/matst80/slask-discovery/pkg/tracking"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "discovery_sessions_started_total",
		Help: "The total number of new portal sessions",
	})
	searchesTracked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_searches_total",
		Help: "The total number of tracked facet searches by outcome",
	}, []string{"outcome"})
	filterValues = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_filter_values_total",
		Help: "The total number of selected filter values by facet and kind",
	}, []string{"facet", "kind"})
)

// trackedEvent is the union of the session and search events on the topic.
type trackedEvent struct {
	Id        string          `json:"id"`
	SessionId int             `json:"session_id"`
	Event     uint16          `json:"event"`
	Query     string          `json:"query"`
	Selection query.Selection `json:"selection"`
	Failed    bool            `json:"failed"`
}

const maxSeen = 100_000

type usage struct {
	limit    int
	mu       sync.Mutex
	seen     map[string]struct{}
	sessions map[int]int
	facets   map[string]int
}

func newUsage() *usage {
	return &usage{
		limit:    maxSeen,
		seen:     make(map[string]struct{}),
		sessions: make(map[int]int),
		facets:   make(map[string]int),
	}
}

// HandleEvents counts one batch of events. Redelivered events are counted once.
func (u *usage) HandleEvents(events []trackedEvent) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, evt := range events {
		if evt.Id != "" {
			if _, ok := u.seen[evt.Id]; ok {
				continue
			}
			if len(u.seen) >= u.limit {
				clear(u.seen)
			}
			u.seen[evt.Id] = struct{}{}
		}
		switch evt.Event {
		case tracking.SessionEvent:
			sessionsStarted.Inc()
		case tracking.SearchEvents:
			if _, ok := u.sessions[evt.SessionId]; !ok && len(u.sessions) >= u.limit {
				clear(u.sessions)
			}
			u.sessions[evt.SessionId]++
			if evt.Failed {
				searchesTracked.WithLabelValues("failed").Inc()
				continue
			}
			searchesTracked.WithLabelValues("ok").Inc()
			for facet, values := range evt.Selection {
				for _, v := range values {
					u.facets[facet]++
					filterValues.WithLabelValues(facet, valueKind(v)).Inc()
				}
			}
		default:
			log.Printf("unknown tracking event %d", evt.Event)
		}
	}
	return nil
}

func (u *usage) Searches(sessionId int) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.sessions[sessionId]
}

// Selected returns how many values of facet have been seen in searches.
func (u *usage) Selected(facet string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.facets[facet]
}

func valueKind(v query.Value) string {
	switch v.(type) {
	case query.ExistsFilter:
		return "missing"
	default:
		return "term"
	}
}
