package model

// Payload is an opaque command or event body: a type URL plus bytes, the
// same shape protobuf's Any uses, kept here as a plain struct since
// RPC framing and wire-schema compilation are out of this core's scope
// (spec §1).
type Payload struct {
	TypeURL string
	Bytes   []byte
}

// ExternalPayloadRef replaces a Payload's Bytes when the event has been
// offloaded to external storage (spec §3, §4.12 claim-check pattern).
type ExternalPayloadRef struct {
	URI  string
	Size int64
}
