package moonraker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/klipperplace/pnpService/internal/config"
	"github.com/klipperplace/pnpService/internal/interfaces"
	"github.com/klipperplace/pnpService/internal/middleware/logging"
	"github.com/klipperplace/pnpService/pkg/errors"
)

func newTestClient(t *testing.T, handler http.Handler) (interfaces.MoonrakerService, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	parsed, err := url.Parse(server.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(parsed.Port())
	require.NoError(t, err)

	cfg := &config.AppConfig{
		Moonraker: config.MoonrakerConfig{
			Host:      parsed.Hostname(),
			Port:      port,
			APIKey:    "test-key",
			TimeoutMs: 2000,
		},
	}
	return NewClient(cfg, logging.NewLogger(&logging.Config{Enabled: false}, "TEST")), server
}

func TestRunScriptSendsAPIKey(t *testing.T) {
	var gotKey, gotScript string

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/printer/gcode/script", r.URL.Path)
		gotKey = r.Header.Get("X-Api-Key")

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotScript, _ = body["script"].(string)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{"result": "ok"})
	}))

	data, err := client.RunScript(context.Background(), "G28")
	require.NoError(t, err)
	require.Equal(t, "ok", data["result"])
	require.Equal(t, "test-key", gotKey)
	require.Equal(t, "G28", gotScript)
}

func TestQueryObjectsExtractsResult(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/printer/query", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		objects, _ := body["objects"].(map[string]interface{})
		require.Contains(t, objects, "toolhead")

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"result": map[string]interface{}{
				"status": map[string]interface{}{"toolhead": map[string]interface{}{}},
			},
		})
	}))

	result, err := client.QueryObjects(context.Background(), []string{"toolhead"})
	require.NoError(t, err)
	require.Contains(t, result, "status")
}

func TestConnectionState(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/server/connection", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"klippy_state": "ready"})
	}))

	state, err := client.Connection(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ready", state)
}

func TestReadGPIOPaths(t *testing.T) {
	var paths []string

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	}))

	_, err := client.ReadGPIO(context.Background(), "p1")
	require.NoError(t, err)
	_, err = client.ReadGPIO(context.Background(), "all")
	require.NoError(t, err)

	require.Equal(t, []string{"/api/gpio_monitor/input/p1", "/api/gpio_monitor/inputs"}, paths)
}

func TestReadSensorPaths(t *testing.T) {
	var paths []string

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	}))

	_, err := client.ReadSensor(context.Background(), "extruder")
	require.NoError(t, err)
	_, err = client.ReadSensor(context.Background(), "type:temperature")
	require.NoError(t, err)
	_, err = client.ReadSensor(context.Background(), "all")
	require.NoError(t, err)

	require.Equal(t, []string{
		"/api/sensor_query/extruder",
		"/api/sensor_query/type/temperature",
		"/api/sensor_query/all",
	}, paths)
}

func TestCategoryEndpointFailure(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   "pin not configured",
		})
	}))

	_, err := client.SetPWM(context.Background(), "p1", 0.5)
	require.Error(t, err)

	var downstream *errors.DownstreamError
	require.ErrorAs(t, err, &downstream)
	require.Contains(t, downstream.Error(), "pin not configured")
}

func TestHTTPErrorStatus(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"error": "klippy down"})
	}))

	_, err := client.RunScript(context.Background(), "G28")
	require.Error(t, err)

	var downstream *errors.DownstreamError
	require.ErrorAs(t, err, &downstream)
	require.Equal(t, http.StatusBadGateway, downstream.StatusCode)
}

func TestSetFanPayload(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/fan_control/set", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "main_fan", body["fan_name"])
		require.Equal(t, 0.75, body["speed"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	}))

	_, err := client.SetFan(context.Background(), "main_fan", 0.75)
	require.NoError(t, err)
}

func TestRampPWMPayload(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/pwm_control/ramp", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, 0.0, body["start_value"])
		require.Equal(t, 1.0, body["end_value"])
		require.Equal(t, 10.0, body["steps"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	}))

	_, err := client.RampPWM(context.Background(), "p1", 0.0, 1.0, 2.0, 10)
	require.NoError(t, err)
}
