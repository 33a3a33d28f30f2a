// Package upcast rewrites older event schema versions into the current
// one at load time (spec §4.5 step 5, §3 glossary "Upcaster"). Router
// registration is by type-URL suffix, matching one version step per
// registered handler; a chain of single-step handlers is composed by
// registering each step and letting the router retry until no handler
// matches, so "V1 -> V2 -> V3" is expressed as two one-step handlers
// rather than one handler that knows the whole history.
package upcast

import "github.com/LerianStudio/midaz-flow/internal/model"

// Handler transforms one older-version payload into its immediate
// successor version. It must not skip versions.
type Handler func(old model.Payload) model.Payload

type entry struct {
	suffix  string
	handler Handler
}

// Router holds the upcast chain for one domain. Registration order does
// not matter: Upcast repeatedly applies the first matching handler to
// each page until none match, so intermediate versions are walked one
// step at a time even when only the oldest and newest pages are present
// in a given EventBook.
type Router struct {
	domain   string
	handlers []entry
}

// NewRouter builds an empty Router for domain.
func NewRouter(domain string) *Router {
	return &Router{domain: domain}
}

// On registers a single-version-step handler for events whose type URL
// ends in suffix (e.g. "OrderPlacedV1").
func (r *Router) On(suffix string, h Handler) *Router {
	r.handlers = append(r.handlers, entry{suffix: suffix, handler: h})
	return r
}

// Domain returns the domain this router upcasts.
func (r *Router) Domain() string { return r.domain }

// Upcast rewrites every page in pages to its current version. Pages
// with no matching handler pass through unchanged. A page matching a
// handler is re-run through the router until it stops matching, so a
// V1->V2 and a V2->V3 handler compose into a V1->V3 rewrite without
// either handler knowing about the other.
func (r *Router) Upcast(pages []model.EventPage) []model.EventPage {
	out := make([]model.EventPage, len(pages))

	for i, page := range pages {
		out[i] = r.upcastPage(page)
	}

	return out
}

func (r *Router) upcastPage(page model.EventPage) model.EventPage {
	const maxSteps = 64 // guards against a misconfigured cyclic chain

	for step := 0; step < maxSteps; step++ {
		h := r.match(page.Event.TypeURL)
		if h == nil {
			return page
		}

		page.Event = h(page.Event)
	}

	return page
}

func (r *Router) match(typeURL string) Handler {
	for _, e := range r.handlers {
		if hasSuffix(typeURL, e.suffix) {
			return e.handler
		}
	}

	return nil
}

func hasSuffix(s, suffix string) bool {
	if len(suffix) == 0 {
		return false
	}

	if len(s) < len(suffix) {
		return false
	}

	return s[len(s)-len(suffix):] == suffix
}

// Chain multiplexes routers by domain so the repository/pipeline layer
// can look one up without knowing which domains have registered
// upcasts.
type Chain struct {
	routers map[string]*Router
}

// NewChain builds an empty Chain.
func NewChain() *Chain {
	return &Chain{routers: make(map[string]*Router)}
}

// Register adds r to the chain, keyed by its domain.
func (c *Chain) Register(r *Router) *Chain {
	c.routers[r.Domain()] = r
	return c
}

// Upcast rewrites pages using the router registered for domain, if any.
// Domains with no registered router pass through unchanged.
func (c *Chain) Upcast(domain string, pages []model.EventPage) []model.EventPage {
	r, ok := c.routers[domain]
	if !ok {
		return pages
	}

	return r.Upcast(pages)
}
