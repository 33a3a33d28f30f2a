package model

import "github.com/google/uuid"

// CommandPage is one command in a CommandBook: an expected sequence for
// optimistic concurrency, an auto-resequence flag, and an opaque
// payload (spec §3, §4.5).
type CommandPage struct {
	ExpectedSequence uint32
	AutoResequence   bool
	Command          Payload
	SagaOrigin       *SagaCommandOrigin
}

// CommandBook mirrors EventBook for input: a Cover plus an ordered,
// non-empty list of CommandPages (spec §3, §6).
type CommandBook struct {
	Cover Cover
	Pages []CommandPage
}

// SagaCommandOrigin is attached to every command a saga or process
// manager emits; it is what lets the compensation engine route a
// rejection back to the producer (spec §3, §4.8).
type SagaCommandOrigin struct {
	SagaName               string
	TriggeringCover        Cover
	TriggeringEventSequence uint32
}

// Notification is the control message delivered to a saga/PM when one
// of its commands is rejected (spec §3, §4.8).
type Notification struct {
	Rejection *RejectionNotification
}

// RejectionNotification carries the rejected CommandBook, the reason,
// and the origin pointers needed to route compensation.
type RejectionNotification struct {
	RejectedCommand      CommandBook
	Reason               string
	SourceAggregate      Cover
	SourceEventSequence  uint32
	Origin               SagaCommandOrigin
}

// DeriveCorrelationID computes a deterministic correlation id for a
// CommandBook whose Cover lacks one, via a version-5 UUID over a
// canonical serialization of the command body (spec §4.5 step 2). The
// namespace is fixed so the same command body always yields the same
// id, which is what lets at-least-once redelivery of an identical
// command be recognized as the same causal chain.
var correlationNamespace = uuid.MustParse("6f1e6f2e-8f2a-4a5e-9a8e-6a0c7a6b9d10")

func DeriveCorrelationID(canonical []byte) string {
	return uuid.NewSHA1(correlationNamespace, canonical).String()
}
