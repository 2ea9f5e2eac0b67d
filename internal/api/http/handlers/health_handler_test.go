package handlers

import (
	"context"
	"encoding/json"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readiness(t *testing.T, checks ...DependencyCheck) (int, map[string]any) {
	t.Helper()
	app := fiber.New()
	app.Get("/health/ready", NewHealthHandler("identity-service", "test", checks...).Ready)

	resp, err := app.Test(httptest.NewRequest(nethttp.MethodGet, "/health/ready", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func ok(context.Context) error { return nil }

func TestReady_AllDependenciesUp(t *testing.T) {
	status, body := readiness(t,
		DependencyCheck{Name: "postgres", Ping: ok},
		DependencyCheck{Name: "redis", Ping: nil},
	)

	assert.Equal(t, nethttp.StatusOK, status)
	deps := body["dependencies"].(map[string]any)
	assert.Equal(t, "ok", deps["postgres"])
	assert.Equal(t, "disabled", deps["redis"])
}

func TestReady_FailingDependency(t *testing.T) {
	status, body := readiness(t,
		DependencyCheck{Name: "postgres", Ping: func(context.Context) error { return errors.New("dial tcp: refused") }},
		DependencyCheck{Name: "redis", Ping: ok},
	)

	assert.Equal(t, nethttp.StatusServiceUnavailable, status)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", errObj["code"])
	details := errObj["details"].(map[string]any)
	assert.Equal(t, "unavailable", details["postgres"])
	assert.Equal(t, "ok", details["redis"])
}
