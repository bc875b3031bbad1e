// Package destinations lists the external assistants a rendered prompt can
// be sent to.
package destinations

import (
	"errors"
	"net/url"
	"strings"
)

// ErrUnknown is returned by Lookup for a name outside the fixed set.
var ErrUnknown = errors.New("unknown destination")

// Destination opens a rendered prompt in an external assistant.
type Destination interface {
	Name() string
	// BuildURL returns the link to open for text.
	BuildURL(text string) string
	// Prefills reports whether BuildURL carries text in the link.
	Prefills() bool
}

// queryDestination passes the text as the q query parameter.
type queryDestination struct {
	name string
	base string
}

func (d queryDestination) Name() string   { return d.name }
func (d queryDestination) Prefills() bool { return true }

func (d queryDestination) BuildURL(text string) string {
	return d.base + "?" + url.Values{"q": {text}}.Encode()
}

// landingDestination opens a fixed page and drops the text.
type landingDestination struct {
	name string
	link string
}

func (d landingDestination) Name() string             { return d.name }
func (d landingDestination) Prefills() bool           { return false }
func (d landingDestination) BuildURL(_ string) string { return d.link }

var all = []Destination{
	queryDestination{name: "ChatGPT", base: "https://chatgpt.com/"},
	landingDestination{name: "Gemini", link: "https://gemini.google.com/app"},
	landingDestination{name: "Claude", link: "https://claude.ai/new"},
	queryDestination{name: "Perplexity", base: "https://www.perplexity.ai/"},
}

// All returns the destinations in display order.
func All() []Destination {
	out := make([]Destination, len(all))
	copy(out, all)
	return out
}

// Lookup finds a destination by name, ignoring case.
func Lookup(name string) (Destination, error) {
	name = strings.TrimSpace(name)
	for _, d := range all {
		if strings.EqualFold(d.Name(), name) {
			return d, nil
		}
	}
	return nil, ErrUnknown
}

// Info is the JSON view of a destination.
type Info struct {
	Name     string `json:"name"`
	Prefills bool   `json:"prefills"`
}

// Describe returns the JSON view of ds.
func Describe(ds []Destination) []Info {
	out := make([]Info, 0, len(ds))
	for _, d := range ds {
		out = append(out, Info{Name: d.Name(), Prefills: d.Prefills()})
	}
	return out
}

// Enabled returns the destinations whose names appear in names, in display
// order. An empty names list enables every destination.
func Enabled(names []string) []Destination {
	if len(names) == 0 {
		return All()
	}
	out := make([]Destination, 0, len(names))
	for _, d := range all {
		for _, n := range names {
			if strings.EqualFold(d.Name(), strings.TrimSpace(n)) {
				out = append(out, d)
				break
			}
		}
	}
	return out
}
