// Package model defines the runtime's wire-level and in-memory data
// model (spec §3): Cover, EventPage/EventBook, Snapshot, CommandPage/
// CommandBook, Edition, SagaCommandOrigin and Notification.
package model

import (
	"fmt"

	"github.com/google/uuid"
)

// MainEdition is the name of the default, non-diverged timeline.
const MainEdition = "main"

// Edition names a divergent timeline sharing a prefix with the main
// timeline up to a declared DivergencePoint (spec §3, §4.10).
type Edition struct {
	Name         string
	Divergences  []DivergencePoint
	Description  string
}

// DivergencePoint is where an Edition forks off the main timeline.
type DivergencePoint struct {
	Domain   string
	Root     uuid.UUID
	Sequence uint32
}

// IsMain reports whether e is the unnamed default timeline.
func (e Edition) IsMain() bool {
	return e.Name == "" || e.Name == MainEdition
}

// NormalizeEdition normalizes an edition name: empty means main, per spec §4.5 step 1.
func NormalizeEdition(name string) string {
	if name == "" {
		return MainEdition
	}

	return name
}

// Cover is the identity of an aggregate invocation: the head of every
// Book (Command or Event).
type Cover struct {
	Domain        string
	Root          uuid.UUID
	CorrelationID string
	Edition       string
}

// RoutingKey is the bus's addressable address: {edition}.{domain}.{hex(root)}
// (spec §4.4, §6).
func (c Cover) RoutingKey() string {
	return fmt.Sprintf("%s.%s.%s", NormalizeEdition(c.Edition), c.Domain, hex(c.Root))
}

func hex(id uuid.UUID) string {
	return fmt.Sprintf("%x", id[:])
}

// Validate checks the invariants spec §4.5 step 1 requires before a
// Cover can enter the pipeline: non-empty domain, non-nil root.
func (c Cover) Validate() error {
	if c.Domain == "" {
		return fmt.Errorf("cover: domain is required")
	}

	if c.Root == uuid.Nil {
		return fmt.Errorf("cover: root must be a non-nil UUID")
	}

	return nil
}
