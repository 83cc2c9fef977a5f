package state

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"slices"
	"sync"

	"github.com/matst80/slask-discovery/pkg/query"
)

type Status int

const (
	Uninitialized Status = iota
	Synced
	PendingUpdate
)

func (s Status) String() string {
	switch s {
	case Synced:
		return "synced"
	case PendingUpdate:
		return "pending-update"
	default:
		return "uninitialized"
	}
}

// Navigator pushes new query parameters to the page url without reloading it.
type Navigator interface {
	Push(ctx context.Context, values url.Values) error
}

type NavigatorFunc func(ctx context.Context, values url.Values) error

func (f NavigatorFunc) Push(ctx context.Context, values url.Values) error {
	return f(ctx, values)
}

// Container owns the selected filters of a search page and keeps them in sync
// with the url. Views read copies and change the selection only through its
// methods.
type Container struct {
	facets    []string
	nav       Navigator
	push      sync.Mutex
	mu        sync.Mutex
	status    Status
	params    Params
	selection query.Selection
	listeners map[int]func(query.Selection)
	nextId    int
}

// NewContainer creates a container for the known facets; each of them is
// present in the selection with an empty list until a value is selected.
func NewContainer(nav Navigator, facets ...string) *Container {
	return &Container{
		facets:    slices.Clone(facets),
		nav:       nav,
		selection: query.Empty(facets...),
		listeners: make(map[int]func(query.Selection)),
	}
}

// Sync reads the filters from the url. It is called on load and whenever the
// url changes outside of the container.
func (c *Container) Sync(values url.Values) error {
	p, err := ParseParams(values)
	if err != nil {
		log.Printf("invalid search params %v: %v", values, err)
	}
	c.mu.Lock()
	if c.status == Synced && p == c.params {
		c.mu.Unlock()
		return err
	}
	c.params = p
	c.selection = query.Decode(p.Filters).Merge(query.Empty(c.facets...))
	c.status = Synced
	selection, listeners := c.snapshot()
	c.mu.Unlock()
	notify(listeners, selection)
	return err
}

func (c *Container) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Selection returns a copy of the current selection.
func (c *Container) Selection() query.Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection.Clone()
}

func (c *Container) Params() Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params
}

// Filters returns the encoded selection, empty when nothing is selected.
func (c *Container) Filters() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selection.String()
}

// Subscribe registers fn to be called with a copy of every new selection.
// The returned function removes the subscription.
func (c *Container) Subscribe(fn func(query.Selection)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextId
	c.nextId++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Select adds value to the facet unless it is already selected.
func (c *Container) Select(ctx context.Context, facet string, value query.Value) error {
	value = query.NormalizeValue(facet, value)
	return c.update(ctx, func(s query.Selection) query.Selection {
		if !s.Contains(facet, value) {
			s[facet] = append(s[facet], value)
		}
		return s
	})
}

// Deselect removes value from the facet.
func (c *Container) Deselect(ctx context.Context, facet string, value query.Value) error {
	value = query.NormalizeValue(facet, value)
	return c.update(ctx, func(s query.Selection) query.Selection {
		s[facet] = slices.DeleteFunc(s[facet], func(v query.Value) bool {
			return query.SameValue(v, value)
		})
		return s
	})
}

// Toggle selects value or removes it when it is already selected.
func (c *Container) Toggle(ctx context.Context, facet string, value query.Value) error {
	value = query.NormalizeValue(facet, value)
	return c.update(ctx, func(s query.Selection) query.Selection {
		if s.Contains(facet, value) {
			s[facet] = slices.DeleteFunc(s[facet], func(v query.Value) bool {
				return query.SameValue(v, value)
			})
		} else {
			s[facet] = append(s[facet], value)
		}
		return s
	})
}

// Set replaces the values of a facet, e.g. a date range as start and end.
func (c *Container) Set(ctx context.Context, facet string, values ...query.Value) error {
	return c.update(ctx, func(s query.Selection) query.Selection {
		list := make([]query.Value, len(values))
		for i, v := range values {
			list[i] = query.NormalizeValue(facet, v)
		}
		s[facet] = list
		return s
	})
}

// Remove clears the values of one facet.
func (c *Container) Remove(ctx context.Context, facet string) error {
	return c.update(ctx, func(s query.Selection) query.Selection {
		s[facet] = []query.Value{}
		return s
	})
}

// Clear resets every facet to the empty default.
func (c *Container) Clear(ctx context.Context) error {
	return c.update(ctx, func(query.Selection) query.Selection {
		return query.Empty(c.facets...)
	})
}

// update applies fn to a copy of the selection and pushes the result. When the
// push fails the previous state is restored. Updates are applied one at a time
// and listeners are notified after the update is released.
func (c *Container) update(ctx context.Context, fn func(query.Selection) query.Selection) error {
	c.push.Lock()
	c.mu.Lock()
	previous, previousParams, previousStatus := c.selection, c.params, c.status
	next := fn(c.selection.Clone())
	params := c.params
	params.Filters = next.String()
	params.From = defaultFrom
	params.Sanitize()
	c.selection, c.params, c.status = next, params, PendingUpdate
	c.mu.Unlock()

	err := c.nav.Push(ctx, params.Values())

	c.mu.Lock()
	if err != nil {
		c.selection, c.params, c.status = previous, previousParams, previousStatus
		c.mu.Unlock()
		c.push.Unlock()
		return fmt.Errorf("unable to push filters: %w", err)
	}
	c.status = Synced
	selection, listeners := c.snapshot()
	c.mu.Unlock()
	c.push.Unlock()
	// Listeners may update the container again.
	notify(listeners, selection)
	return nil
}

func (c *Container) snapshot() (query.Selection, []func(query.Selection)) {
	listeners := make([]func(query.Selection), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	return c.selection.Clone(), listeners
}

func notify(listeners []func(query.Selection), selection query.Selection) {
	for _, fn := range listeners {
		fn(selection.Clone())
	}
}
