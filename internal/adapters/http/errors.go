package http

import (
	"errors"

	"github.com/LerianStudio/midaz-flow/pkg/merr"
	"github.com/gofiber/fiber/v2"
)

// WithError maps the runtime's error taxonomy (pkg/merr, spec §7) to an
// HTTP status and envelope, the same per-kind switch the teacher's
// common/net/http.WithError runs over its own error package.
func WithError(c *fiber.Ctx, err error) error {
	var (
		validation merr.ValidationError
		conflict   merr.SequenceConflictError
		revocation merr.RevocationError
		aborted    merr.AbortedError
		notFound   merr.NotFoundError
		outputDom  merr.OutputDomainError
		internal   merr.InternalError
	)

	switch {
	case errors.As(err, &validation):
		return BadRequest(c, fiber.Map{"message": validation.Error()})
	case errors.As(err, &notFound):
		return NotFound(c, notFound.Code, "Not Found", notFound.Error())
	case errors.As(err, &conflict):
		return Conflict(c, "", "Sequence Conflict", conflict.Error())
	case errors.As(err, &revocation):
		return UnprocessableEntity(c, "", "Revoked", revocation.Error())
	case errors.As(err, &aborted):
		return Conflict(c, "", "Retry Budget Exhausted", aborted.Error())
	case errors.As(err, &outputDom):
		return InternalServerError(c, "", "Output Domain Violation", outputDom.Error())
	case errors.As(err, &internal):
		return InternalServerError(c, "", "Internal Error", internal.Error())
	default:
		return InternalServerError(c, "", "Internal Error", err.Error())
	}
}
