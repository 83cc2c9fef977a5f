package state

import (
	"log"
	"net/url"

	"github.com/gorilla/schema"
)

// Params are the url query parameters of a search page.
type Params struct {
	Query        string `json:"q" schema:"q,omitempty"`
	Filters      string `json:"filters" schema:"filters,omitempty"`
	From         int    `json:"from" schema:"from,omitempty"`
	Size         int    `json:"size" schema:"size,omitempty"`
	Sort         string `json:"sort" schema:"sort,omitempty"`
	ReferrerPath string `json:"referrerPath" schema:"referrerPath,omitempty"`
}

var decoder = schema.NewDecoder()
var encoder = schema.NewEncoder()

func init() {
	decoder.IgnoreUnknownKeys(true)
}

const (
	defaultFrom = 1
	defaultSize = 10
)

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// ParseParams reads the search parameters from a url query. Values that fail
// to parse keep their defaults; the error is returned alongside the result.
func ParseParams(values url.Values) (Params, error) {
	p := Params{}
	err := decoder.Decode(&p, values)
	p.Sanitize()
	return p, err
}

// Sanitize applies defaults and bounds to paging.
func (p *Params) Sanitize() {
	if p.From <= 0 {
		p.From = defaultFrom
	}
	if p.Size <= 0 {
		p.Size = defaultSize
	}
	p.Size = clamp(p.Size, 1, 1000)
}

// Values encodes the parameters for a url. Empty values are left out.
func (p Params) Values() url.Values {
	values := url.Values{}
	if err := encoder.Encode(p, values); err != nil {
		log.Printf("unable to encode search params: %v", err)
	}
	return values
}
