package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetHealthChecker() {
	healthChecker = &HealthChecker{
		components: make(map[string]ComponentHealth),
		startTime:  time.Now(),
	}
}

func TestRegisterComponent(t *testing.T) {
	resetHealthChecker()

	RegisterComponent("test-component", true, "running")

	require.Len(t, healthChecker.components, 1)
	comp := healthChecker.components["test-component"]
	assert.True(t, comp.Healthy)
	assert.Equal(t, "running", comp.Message)
}

func TestUpdateComponentOverwritesHealthAndMessage(t *testing.T) {
	resetHealthChecker()

	RegisterComponent("test", true, "ok")
	UpdateComponent("test", false, "error")

	comp := healthChecker.components["test"]
	assert.False(t, comp.Healthy)
	assert.Equal(t, "error", comp.Message)
}

func TestGetHealthAllHealthy(t *testing.T) {
	resetHealthChecker()
	SetVersion("1.0.0")

	RegisterComponent(ComponentTransport, true, "")
	RegisterComponent(ComponentClusterState, true, "")

	health := GetHealth()
	assert.Equal(t, "healthy", health.Status)
	assert.Len(t, health.Components, 2)
	assert.Equal(t, "1.0.0", health.Version)
}

func TestGetHealthOneUnhealthy(t *testing.T) {
	resetHealthChecker()

	RegisterComponent(ComponentTransport, true, "")
	RegisterComponent(ComponentClusterState, false, "not connected")

	health := GetHealth()
	assert.Equal(t, "unhealthy", health.Status)
	assert.Equal(t, "unhealthy: not connected", health.Components[ComponentClusterState])
}

// registerControlComponents mirrors exactly the sequence cmd/vessel's
// control start command runs at boot: clusterstate and broadcast come up
// first, transport only flips healthy once the listener is bound. A test
// against hardcoded component names here would have missed the mismatch
// between this call site and GetReadiness's critical list; using the
// shared constants from both sides is what catches it.
func registerControlComponents(transportReady bool) {
	RegisterComponent(ComponentClusterState, true, "running")
	RegisterComponent(ComponentBroadcast, true, "running")
	if transportReady {
		RegisterComponent(ComponentTransport, true, "ready")
	} else {
		RegisterComponent(ComponentTransport, false, "starting")
	}
}

func TestGetReadinessMatchesControlStartupSequence(t *testing.T) {
	resetHealthChecker()
	registerControlComponents(true)

	readiness := GetReadiness()
	assert.Equal(t, "ready", readiness.Status)
}

func TestGetReadinessNotReadyBeforeTransportBinds(t *testing.T) {
	resetHealthChecker()
	registerControlComponents(false)

	readiness := GetReadiness()
	assert.Equal(t, "not_ready", readiness.Status)
	assert.Contains(t, readiness.Message, ComponentTransport)
}

func TestGetReadinessMissingCriticalComponent(t *testing.T) {
	resetHealthChecker()

	RegisterComponent(ComponentTransport, true, "")
	// clusterstate and broadcast never registered.

	readiness := GetReadiness()
	assert.Equal(t, "not_ready", readiness.Status)
	assert.NotEmpty(t, readiness.Message)
}

func TestGetReadinessCriticalComponentUnhealthy(t *testing.T) {
	resetHealthChecker()

	RegisterComponent(ComponentClusterState, false, "store not initialized")
	RegisterComponent(ComponentBroadcast, true, "")
	RegisterComponent(ComponentTransport, true, "")

	readiness := GetReadiness()
	assert.Equal(t, "not_ready", readiness.Status)
}

func TestHealthHandlerHealthy(t *testing.T) {
	resetHealthChecker()
	SetVersion("test")
	RegisterComponent("test", true, "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	HealthHandler()(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var health HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "test", health.Version)
}

func TestHealthHandlerUnhealthy(t *testing.T) {
	resetHealthChecker()
	RegisterComponent("test", false, "broken")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	HealthHandler()(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var health HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&health))
	assert.Equal(t, "unhealthy", health.Status)
}

func TestReadyHandlerReady(t *testing.T) {
	resetHealthChecker()
	registerControlComponents(true)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	ReadyHandler()(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var readiness HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&readiness))
	assert.Equal(t, "ready", readiness.Status)
}

func TestReadyHandlerNotReady(t *testing.T) {
	resetHealthChecker()
	RegisterComponent(ComponentTransport, true, "")
	// clusterstate and broadcast not registered.

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	ReadyHandler()(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var readiness HealthStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&readiness))
	assert.Equal(t, "not_ready", readiness.Status)
}

func TestLivenessHandlerAlwaysAlive(t *testing.T) {
	resetHealthChecker()

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	w := httptest.NewRecorder()
	LivenessHandler()(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "alive", response["status"])
	assert.NotEmpty(t, response["uptime"])
}
