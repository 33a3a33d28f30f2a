// Package projector implements the projector driver (spec §2 L3):
// invokes registered read-model handlers on published events, either
// asynchronously off the bus or synchronously for read-after-write
// requests (spec §4.5 step 11). Infrastructure domains (names starting
// with "_") are excluded from synchronous dispatch. Grounded on
// benjaminabbitt-angzarr's ProjectorHandler (Handle/HandleSpeculative
// split mirrors this package's async/sync split) and the repair hook
// described in spec §4.9, wired via internal/repair.
package projector

import (
	"context"
	"strings"

	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/LerianStudio/midaz-flow/pkg/mlog"
)

// Output is one projector's result for a dispatched EventBook.
type Output struct {
	Name       string
	Projection model.Payload
}

// Handler builds a read-model projection from an EventBook.
type Handler func(ctx context.Context, book model.EventBook) (model.Payload, error)

// Repairer resolves a possibly-partial EventBook to a complete one
// before dispatch (spec §4.9). internal/repair provides the concrete
// implementation; nil means "no repair configured".
type Repairer interface {
	Repair(ctx context.Context, book model.EventBook) (model.EventBook, error)
}

type registration struct {
	name    string
	domains map[string]struct{} // empty means "all domains"
	handler Handler
}

func (r registration) matches(domain string) bool {
	if len(r.domains) == 0 {
		return true
	}

	_, ok := r.domains[domain]
	return ok
}

// Driver dispatches published EventBooks to registered projector
// handlers, synchronously or asynchronously.
type Driver struct {
	handlers []registration
	repairer Repairer
	logger   mlog.Logger
}

// NewDriver builds an empty Driver. repairer may be nil.
func NewDriver(repairer Repairer, logger mlog.Logger) *Driver {
	if logger == nil {
		logger = mlog.NopLogger{}
	}

	return &Driver{repairer: repairer, logger: logger}
}

// Register adds a projector handler scoped to domains (empty means
// every domain).
func (d *Driver) Register(name string, domains []string, h Handler) *Driver {
	set := make(map[string]struct{}, len(domains))
	for _, dom := range domains {
		set[dom] = struct{}{}
	}

	d.handlers = append(d.handlers, registration{name: name, domains: set, handler: h})

	return d
}

// DispatchAsync invokes every handler registered for book's domain,
// repairing the book first if a Repairer is configured. Errors are
// logged per-handler rather than aggregated: async dispatch is
// fire-and-forget from the bus's point of view.
func (d *Driver) DispatchAsync(ctx context.Context, book model.EventBook) {
	book = d.repair(ctx, book)

	for _, reg := range d.handlers {
		if !reg.matches(book.Cover.Domain) {
			continue
		}

		if _, err := reg.handler(ctx, book); err != nil {
			d.logger.Errorf("projector %q failed for %s/%s: %v", reg.name, book.Cover.Domain, book.Cover.Root, err)
		}
	}
}

// DispatchSync invokes every matching handler and collects their
// outputs for the caller, per spec §4.5 step 11. Infrastructure
// domains (a leading "_") are excluded, as synchronous dispatch is a
// read-after-write convenience for business domains only.
func (d *Driver) DispatchSync(ctx context.Context, book model.EventBook) ([]Output, error) {
	if strings.HasPrefix(book.Cover.Domain, "_") {
		return nil, nil
	}

	book = d.repair(ctx, book)

	var outputs []Output

	for _, reg := range d.handlers {
		if !reg.matches(book.Cover.Domain) {
			continue
		}

		projection, err := reg.handler(ctx, book)
		if err != nil {
			return outputs, err
		}

		outputs = append(outputs, Output{Name: reg.name, Projection: projection})
	}

	return outputs, nil
}

func (d *Driver) repair(ctx context.Context, book model.EventBook) model.EventBook {
	if d.repairer == nil {
		if !book.IsComplete() {
			d.logger.Warnf("projector: dispatching partial event book for %s/%s with no repairer configured", book.Cover.Domain, book.Cover.Root)
		}

		return book
	}

	repaired, err := d.repairer.Repair(ctx, book)
	if err != nil {
		d.logger.Errorf("projector: repair failed for %s/%s: %v", book.Cover.Domain, book.Cover.Root, err)
		return book
	}

	return repaired
}
