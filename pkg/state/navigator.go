package state

import (
	"context"
	"net/url"
	"sync"
)

// Recorder is a Navigator that keeps the last pushed parameters. It is used
// where the next url is handed back to a client instead of a browser history.
type Recorder struct {
	mu     sync.Mutex
	values url.Values
	pushes int
}

func (r *Recorder) Push(_ context.Context, values url.Values) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = values
	r.pushes++
	return nil
}

// Last returns the last pushed parameters and how many pushes were made.
func (r *Recorder) Last() (url.Values, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.values, r.pushes
}
