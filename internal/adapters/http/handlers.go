package http

import (
	"strconv"
	"time"

	"github.com/LerianStudio/midaz-flow/internal/pipeline"
	"github.com/LerianStudio/midaz-flow/internal/repository"
	"github.com/LerianStudio/midaz-flow/pkg/merr"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Handler holds the use-case dependencies every route needs: the
// repository for reads, the pipeline for command dispatch. Grounded on
// the teacher's OrganizationHandler{Command, Query} shape, collapsed to
// one handler since this runtime has a single generic command/query
// contract rather than one per entity type.
type Handler struct {
	repo     *repository.Repository
	pipeline *pipeline.Pipeline
}

// NewHandler builds a Handler.
func NewHandler(repo *repository.Repository, p *pipeline.Pipeline) *Handler {
	return &Handler{repo: repo, pipeline: p}
}

func pathRoot(c *fiber.Ctx) (uuid.UUID, error) {
	root, err := uuid.Parse(c.Params("root"))
	if err != nil {
		return uuid.Nil, merr.ValidationError{EntityType: "root", Message: "root must be a valid UUID: " + err.Error()}
	}

	return root, nil
}

// Dispatch handles POST /v1/domains/:domain/aggregates/:root/commands: it
// builds a model.CommandBook from the request body and the path's domain
// and root, and runs it through the pipeline (spec §6, §4.5).
func (h *Handler) Dispatch(c *fiber.Ctx) error {
	domain := c.Params("domain")

	root, err := pathRoot(c)
	if err != nil {
		return WithError(c, err)
	}

	var req dispatchRequest
	if err := c.BodyParser(&req); err != nil {
		return WithError(c, merr.ValidationError{EntityType: domain, Message: "malformed request body: " + err.Error()})
	}

	cmd, err := req.toCommandBook(domain, root)
	if err != nil {
		return WithError(c, merr.ValidationError{EntityType: domain, Message: "malformed command payload: " + err.Error()})
	}

	resp, err := h.pipeline.Dispatch(c.UserContext(), cmd, pipeline.Options{Synchronous: req.Synchronous, DryRun: req.DryRun})
	if err != nil {
		return WithError(c, err)
	}

	if resp.Revoked {
		return UnprocessableEntity(c, "", "Revoked", resp.RevocationReason)
	}

	if req.Synchronous {
		return OK(c, newDispatchResponse(resp))
	}

	return Accepted(c, newDispatchResponse(resp))
}

// Get handles GET /v1/domains/:domain/aggregates/:root: the current
// EventBook (snapshot-optimized if enabled), or a temporal view when
// ?as_of_sequence or ?as_of_time is given (spec §4.3, §6).
func (h *Handler) Get(c *fiber.Ctx) error {
	domain := c.Params("domain")
	edition := c.Query("edition")

	root, err := pathRoot(c)
	if err != nil {
		return WithError(c, err)
	}

	ctx := c.UserContext()

	if seqParam := c.Query("as_of_sequence"); seqParam != "" {
		seq, err := strconv.ParseUint(seqParam, 10, 32)
		if err != nil {
			return WithError(c, merr.ValidationError{EntityType: domain, Message: "as_of_sequence must be an integer"})
		}

		book, err := h.repo.GetTemporalBySequence(ctx, edition, domain, root, uint32(seq))
		if err != nil {
			return WithError(c, err)
		}

		return OK(c, newEventBookResponse(book))
	}

	if tsParam := c.Query("as_of_time"); tsParam != "" {
		ts, err := time.Parse(time.RFC3339, tsParam)
		if err != nil {
			return WithError(c, merr.ValidationError{EntityType: domain, Message: "as_of_time must be RFC3339"})
		}

		book, err := h.repo.GetTemporalByTime(ctx, edition, domain, root, ts)
		if err != nil {
			return WithError(c, err)
		}

		return OK(c, newEventBookResponse(book))
	}

	book, err := h.repo.Get(ctx, edition, domain, root)
	if err != nil {
		return WithError(c, err)
	}

	return OK(c, newEventBookResponse(book))
}

// Health handles GET /health.
func Health(c *fiber.Ctx) error {
	return c.SendString("healthy")
}
