package tests

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	klipperplace "github.com/klipperplace/pnpService"
	"github.com/stretchr/testify/require"
)

// fakeMoonraker поднимает HTTP-заглушку с минимальным набором
// эндпоинтов Moonraker.
func fakeMoonraker(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/printer/gcode/script", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"result": "ok", "script": body["script"]})
	})
	mux.HandleFunc("/api/printer/query", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"result": map[string]interface{}{
				"status": map[string]interface{}{
					"toolhead": map[string]interface{}{"position": []float64{10, 20, 5, 0}},
				},
			},
		})
	})
	mux.HandleFunc("/api/server/connection", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"klippy_state": "ready"})
	})
	mux.HandleFunc("/api/sensor_query/all", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"sensors": map[string]interface{}{
				"extruder": map[string]interface{}{"temperature": 24.5, "target": 0.0},
			},
		})
	})
	mux.HandleFunc("/api/gpio_monitor/input/test_pin", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "pin": "test_pin", "value": 1})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func setupTest(t *testing.T) *klipperplace.Client {
	server := fakeMoonraker(t)

	host, portStr, err := net.SplitHostPort(server.Listener.Addr().String())
	require.NoError(t, err, "Не удалось разобрать адрес заглушки")
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	cfg := klipperplace.Load()
	cfg.Host = host
	cfg.Port = port
	cfg.LogLevel = "off"
	log.Printf("Подключение к заглушке Moonraker %s:%d ...", host, port)

	c, err := klipperplace.New(cfg)
	require.NoError(t, err, "Не удалось создать клиент")
	require.NotNil(t, c, "Клиент не должен быть nil")

	t.Cleanup(c.Close)
	return c
}

func logAsJSON(t *testing.T, name string, data interface{}) {
	t.Helper()
	jsonData, err := json.MarshalIndent(data, "", "  ")
	require.NoError(t, err, "Ошибка маршалинга JSON для %s", name)
	log.Printf("--- %s ---\n%s", name, string(jsonData))
}

func TestExecuteMove(t *testing.T) {
	c := setupTest(t)

	resp, err := c.Execute(context.Background(), "move", map[string]interface{}{
		"x": 100.0, "y": 50.0, "feedrate": 3000.0,
	})
	require.NoError(t, err, "Команда move не должна возвращать ошибку разбора")
	require.Equal(t, "success", string(resp.Status), "Команда move должна выполниться успешно")
	require.Contains(t, resp.Data["gcode"], "X100", "G-code должен содержать координату X")

	logAsJSON(t, "MoveResponse", resp)
}

func TestExecuteUnknownCommand(t *testing.T) {
	c := setupTest(t)

	_, err := c.Execute(context.Background(), "teleport", nil)
	require.Error(t, err, "Неизвестная команда должна возвращать ошибку")
}

func TestDeviceStateTracking(t *testing.T) {
	c := setupTest(t)

	_, err := c.Execute(context.Background(), "move", map[string]interface{}{"x": 42.0, "y": 7.0})
	require.NoError(t, err)

	state := c.GetDeviceState()
	require.Equal(t, 42.0, state.Position["x"], "Позиция X должна обновиться после успешного move")
	require.Equal(t, 7.0, state.Position["y"], "Позиция Y должна обновиться после успешного move")

	logAsJSON(t, "DeviceState", state)
}

func TestQueueRoundTrip(t *testing.T) {
	c := setupTest(t)

	id, err := c.Enqueue(context.Background(), "vacuum_on", nil, 5)
	require.NoError(t, err, "Не удалось поставить команду в очередь")
	require.NotEmpty(t, id)

	info := c.GetQueueInfo()
	require.Equal(t, 1, info.Size, "Очередь должна содержать одну команду")

	responses := c.ProcessQueue(context.Background(), true)
	require.Len(t, responses, 1)
	require.Equal(t, "success", string(responses[0].Status))

	logAsJSON(t, "QueueResponses", responses)
}

func TestSafetyRejectsOutOfBoundsMove(t *testing.T) {
	c := setupTest(t)

	resp, err := c.Execute(context.Background(), "move", map[string]interface{}{"x": 9999.0})
	require.NoError(t, err)
	require.Equal(t, "error", string(resp.Status), "Выход за пределы должен отклоняться")
	require.Equal(t, "BOUNDS_VIOLATION", resp.ErrorCode)

	events := c.GetSafetyEvents(10)
	require.NotEmpty(t, events, "Нарушение должно фиксироваться в журнале событий")

	logAsJSON(t, "SafetyEvents", events)
}

func TestEmergencyStopBlocksMotion(t *testing.T) {
	c := setupTest(t)

	event := c.EmergencyStop(context.Background(), "integration test")
	require.Equal(t, "emergency_stop", string(event.Type))

	resp, err := c.Execute(context.Background(), "move", map[string]interface{}{"x": 10.0})
	require.NoError(t, err)
	require.Equal(t, "EMERGENCY_STOP_ACTIVE", resp.ErrorCode, "Движение должно блокироваться при активной остановке")

	c.ClearEmergencyStop()
	resp, err = c.Execute(context.Background(), "move", map[string]interface{}{"x": 10.0})
	require.NoError(t, err)
	require.Equal(t, "success", string(resp.Status), "После снятия остановки движение должно выполняться")
}

func TestGpioReadThroughCache(t *testing.T) {
	c := setupTest(t)

	resp, err := c.Execute(context.Background(), "gpio_read", map[string]interface{}{"pin": "test_pin"})
	require.NoError(t, err)
	require.Equal(t, "success", string(resp.Status))

	// Повторное чтение попадает в кэш.
	resp, err = c.Execute(context.Background(), "gpio_read", map[string]interface{}{"pin": "test_pin"})
	require.NoError(t, err)
	require.Equal(t, "success", string(resp.Status))

	stats := c.GetCacheStatistics()
	require.GreaterOrEqual(t, stats.Hits, 1, "Второе чтение должно быть попаданием в кэш")

	logAsJSON(t, "CacheStatistics", stats)
}

func TestCustomTemplate(t *testing.T) {
	c := setupTest(t)

	require.NoError(t, c.AddTemplate("feeder_advance", "FEEDER_ADVANCE D={distance}"))

	resp, err := c.Execute(context.Background(), "feeder_advance", map[string]interface{}{"distance": 4.0})
	require.NoError(t, err)
	require.Equal(t, "success", string(resp.Status))
	require.Equal(t, "FEEDER_ADVANCE D=4", resp.Data["gcode"], "Пользовательский шаблон должен заменять встроенное правило")
}
