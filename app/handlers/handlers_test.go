package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/amirphl/Kage-Bunshin/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientMetadataCarriesRequestID(t *testing.T) {
	app := fiber.New()
	app.Get("/meta", func(c fiber.Ctx) error {
		metadata := clientMetadata(c)
		return c.SendString(metadata.RequestID + "|" + metadata.UserAgent)
	})

	req := httptest.NewRequest(http.MethodGet, "/meta", nil)
	req.Header.Set(utils.RequestIDHeader, "req-abc-123")
	req.Header.Set("User-Agent", "test-agent")
	resp, err := app.Test(req)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "req-abc-123|test-agent", string(body))
}

func TestRequestContextCarriesRequestID(t *testing.T) {
	app := fiber.New()
	app.Get("/ctx", func(c fiber.Ctx) error {
		ctx := createRequestContextWithTimeout(c, "meta", time.Second)
		id, _ := ctx.Value(utils.RequestIDKey).(string)
		return c.SendString(id)
	})

	req := httptest.NewRequest(http.MethodGet, "/ctx", nil)
	req.Header.Set(utils.RequestIDHeader, "req-xyz-789")
	resp, err := app.Test(req)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "req-xyz-789", string(body))
}
