package http

import (
	"encoding/base64"
	"time"

	"github.com/LerianStudio/midaz-flow/internal/model"
	"github.com/LerianStudio/midaz-flow/internal/pipeline"
	"github.com/google/uuid"
)

// commandPageRequest is the wire shape of one model.CommandPage. Command
// payload bytes travel base64-encoded, the usual JSON convention for an
// opaque []byte field.
type commandPageRequest struct {
	ExpectedSequence uint32 `json:"expected_sequence"`
	AutoResequence   bool   `json:"auto_resequence"`
	TypeURL          string `json:"type_url"`
	Bytes            string `json:"bytes"`
}

// dispatchRequest is the command-submission endpoint's request body: a
// Cover identity plus one or more CommandPages, and the Options spec §6
// exposes to a caller (synchronous, dry-run).
type dispatchRequest struct {
	Edition       string               `json:"edition"`
	CorrelationID string               `json:"correlation_id"`
	Pages         []commandPageRequest `json:"pages"`
	Synchronous   bool                 `json:"synchronous"`
	DryRun        bool                 `json:"dry_run"`
}

func (r dispatchRequest) toCommandBook(domain string, root uuid.UUID) (model.CommandBook, error) {
	pages := make([]model.CommandPage, 0, len(r.Pages))

	for _, p := range r.Pages {
		raw, err := base64.StdEncoding.DecodeString(p.Bytes)
		if err != nil {
			return model.CommandBook{}, err
		}

		pages = append(pages, model.CommandPage{
			ExpectedSequence: p.ExpectedSequence,
			AutoResequence:   p.AutoResequence,
			Command:          model.Payload{TypeURL: p.TypeURL, Bytes: raw},
		})
	}

	return model.CommandBook{
		Cover: model.Cover{Domain: domain, Root: root, Edition: r.Edition, CorrelationID: r.CorrelationID},
		Pages: pages,
	}, nil
}

// eventPageResponse is the wire shape of one model.EventPage.
type eventPageResponse struct {
	Sequence  uint32    `json:"sequence"`
	TypeURL   string    `json:"type_url"`
	Bytes     string    `json:"bytes,omitempty"`
	Offloaded bool      `json:"offloaded"`
	CreatedAt time.Time `json:"created_at"`
}

func newEventPageResponse(p model.EventPage) eventPageResponse {
	resp := eventPageResponse{
		Sequence:  p.Sequence,
		TypeURL:   p.Event.TypeURL,
		CreatedAt: p.CreatedAt,
	}

	if p.ExternalPayloadRef != nil {
		resp.Offloaded = true
	} else {
		resp.Bytes = base64.StdEncoding.EncodeToString(p.Event.Bytes)
	}

	return resp
}

// snapshotResponse is the wire shape of a model.Snapshot.
type snapshotResponse struct {
	Sequence uint32 `json:"sequence"`
	TypeURL  string `json:"type_url"`
	Bytes    string `json:"bytes"`
}

// eventBookResponse is the wire shape of a model.EventBook, the query
// endpoint's response body.
type eventBookResponse struct {
	Domain        string              `json:"domain"`
	Root          uuid.UUID           `json:"root"`
	Edition       string              `json:"edition"`
	CorrelationID string              `json:"correlation_id,omitempty"`
	Pages         []eventPageResponse `json:"pages"`
	Snapshot      *snapshotResponse   `json:"snapshot,omitempty"`
}

func newEventBookResponse(b model.EventBook) eventBookResponse {
	pages := make([]eventPageResponse, len(b.Pages))
	for i, p := range b.Pages {
		pages[i] = newEventPageResponse(p)
	}

	resp := eventBookResponse{
		Domain:        b.Cover.Domain,
		Root:          b.Cover.Root,
		Edition:       b.Cover.Edition,
		CorrelationID: b.Cover.CorrelationID,
		Pages:         pages,
	}

	if b.Snapshot != nil {
		resp.Snapshot = &snapshotResponse{
			Sequence: b.Snapshot.Sequence,
			TypeURL:  b.Snapshot.State.TypeURL,
			Bytes:    base64.StdEncoding.EncodeToString(b.Snapshot.State.Bytes),
		}
	}

	return resp
}

// dispatchResponse is the command-submission endpoint's response body.
type dispatchResponse struct {
	Book             eventBookResponse `json:"book"`
	Revoked          bool              `json:"revoked,omitempty"`
	RevocationReason string            `json:"revocation_reason,omitempty"`
}

func newDispatchResponse(r pipeline.Response) dispatchResponse {
	return dispatchResponse{
		Book:             newEventBookResponse(r.Book),
		Revoked:          r.Revoked,
		RevocationReason: r.RevocationReason,
	}
}
