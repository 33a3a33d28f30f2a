// Package http provides the fiber-backed HTTP ingress for command
// submission and event queries (spec §6), an optional surface alongside
// internal/businessclient's gRPC contract. Grounded on the teacher's
// common/net/http response-helper shape: one small function per status
// code, a {code,title,message} envelope for errors, JSON body verbatim
// for success.
package http

import (
	"github.com/gofiber/fiber/v2"
)

// responseError is the {code,title,message} envelope every non-2xx
// response carries, mirroring the teacher's ResponseError.
type responseError struct {
	Code    string `json:"code,omitempty"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
}

// JSONResponse writes body as JSON with the given status code.
func JSONResponse(c *fiber.Ctx, status int, body any) error {
	return c.Status(status).JSON(body)
}

// OK writes a 200 with body.
func OK(c *fiber.Ctx, body any) error {
	return JSONResponse(c, fiber.StatusOK, body)
}

// Created writes a 201 with body.
func Created(c *fiber.Ctx, body any) error {
	return JSONResponse(c, fiber.StatusCreated, body)
}

// Accepted writes a 202 with body, for a Synchronous: false dispatch
// that has been durably published but not yet processed.
func Accepted(c *fiber.Ctx, body any) error {
	return JSONResponse(c, fiber.StatusAccepted, body)
}

// NoContent writes a 204 with no body.
func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

// BadRequest writes a 400 with an arbitrary body (used for field-level
// validation detail that doesn't fit the {code,title,message} shape).
func BadRequest(c *fiber.Ctx, body any) error {
	return JSONResponse(c, fiber.StatusBadRequest, body)
}

// Unauthorized writes a 401.
func Unauthorized(c *fiber.Ctx, code, title, message string) error {
	return JSONResponse(c, fiber.StatusUnauthorized, responseError{Code: code, Title: title, Message: message})
}

// Forbidden writes a 403.
func Forbidden(c *fiber.Ctx, code, title, message string) error {
	return JSONResponse(c, fiber.StatusForbidden, responseError{Code: code, Title: title, Message: message})
}

// NotFound writes a 404.
func NotFound(c *fiber.Ctx, code, title, message string) error {
	return JSONResponse(c, fiber.StatusNotFound, responseError{Code: code, Title: title, Message: message})
}

// Conflict writes a 409.
func Conflict(c *fiber.Ctx, code, title, message string) error {
	return JSONResponse(c, fiber.StatusConflict, responseError{Code: code, Title: title, Message: message})
}

// UnprocessableEntity writes a 422.
func UnprocessableEntity(c *fiber.Ctx, code, title, message string) error {
	return JSONResponse(c, fiber.StatusUnprocessableEntity, responseError{Code: code, Title: title, Message: message})
}

// NotImplemented writes a 501 with an int status code in the body, the
// one envelope field that isn't a client-supplied code string.
func NotImplemented(c *fiber.Ctx, message string) error {
	return JSONResponse(c, fiber.StatusNotImplemented, fiber.Map{
		"code":    fiber.StatusNotImplemented,
		"title":   "Not Implemented",
		"message": message,
	})
}

// InternalServerError writes a 500.
func InternalServerError(c *fiber.Ctx, code, title, message string) error {
	return JSONResponse(c, fiber.StatusInternalServerError, responseError{Code: code, Title: title, Message: message})
}
