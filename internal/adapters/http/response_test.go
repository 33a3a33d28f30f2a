package http

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOK_WritesStatusAndBody(t *testing.T) {
	app := fiber.New()
	app.Get("/test", func(c *fiber.Ctx) error {
		return OK(c, fiber.Map{"status": "success"})
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/test", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "success", body["status"])
}

func TestNotFound_WritesEnvelope(t *testing.T) {
	app := fiber.New()
	app.Get("/test", func(c *fiber.Ctx) error {
		return NotFound(c, "NF001", "Not Found", "no such aggregate")
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/test", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "NF001", body["code"])
	assert.Equal(t, "no such aggregate", body["message"])
}

func TestAccepted_WritesStatus(t *testing.T) {
	app := fiber.New()
	app.Post("/test", func(c *fiber.Ctx) error {
		return Accepted(c, fiber.Map{"queued": true})
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/test", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)
}
