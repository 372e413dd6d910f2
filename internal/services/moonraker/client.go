package moonraker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/klipperplace/pnpService/internal/config"
	"github.com/klipperplace/pnpService/internal/interfaces"
	"github.com/klipperplace/pnpService/internal/middleware/logging"
	"github.com/klipperplace/pnpService/pkg/errors"
)

// Client - REST клиент Moonraker. Все методы выполняют один HTTP запрос
// с таймаутом из конфигурации и заголовком X-Api-Key, если ключ задан.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *logging.Logger
}

// NewClient создает новый экземпляр клиента Moonraker
func NewClient(cfg *config.AppConfig, logger *logging.Logger) interfaces.MoonrakerService {
	return &Client{
		baseURL: cfg.Moonraker.BaseURL(),
		apiKey:  cfg.Moonraker.APIKey,
		http: &http.Client{
			Timeout: time.Duration(cfg.Moonraker.TimeoutMs) * time.Millisecond,
		},
		logger: logger.WithPrefix("MOONRAKER"),
	}
}

func (c *Client) do(ctx context.Context, method, path string, payload interface{}) (map[string]interface{}, error) {
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request payload: %w", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &errors.DownstreamError{Endpoint: path, Err: err}
	}
	defer resp.Body.Close()

	var data map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, &errors.DownstreamError{Endpoint: path, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return data, &errors.DownstreamError{Endpoint: path, StatusCode: resp.StatusCode}
	}

	return data, nil
}

// checkSuccess проверяет поле success в ответах категорийных эндпоинтов.
func checkSuccess(path string, data map[string]interface{}) (map[string]interface{}, error) {
	if ok, _ := data["success"].(bool); !ok {
		return data, &errors.DownstreamError{
			Endpoint: path,
			Err:      fmt.Errorf("%v", data["error"]),
		}
	}
	return data, nil
}

// RunScript выполняет одну или несколько низкоуровневых инструкций,
// разделенных переводом строки.
func (c *Client) RunScript(ctx context.Context, script string) (map[string]interface{}, error) {
	c.logger.Debug("Running script", "script", script)
	return c.do(ctx, http.MethodPost, "/api/printer/gcode/script", map[string]interface{}{
		"script": script,
	})
}

// QueryObjects запрашивает текущие значения именованных групп объектов.
func (c *Client) QueryObjects(ctx context.Context, objects []string) (map[string]interface{}, error) {
	query := make(map[string]interface{}, len(objects))
	for _, obj := range objects {
		query[obj] = nil
	}

	data, err := c.do(ctx, http.MethodPost, "/api/printer/query", map[string]interface{}{
		"objects": query,
	})
	if err != nil {
		return nil, err
	}

	result, _ := data["result"].(map[string]interface{})
	return result, nil
}

// Connection возвращает строку состояния подключения Klippy.
func (c *Client) Connection(ctx context.Context) (string, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/server/connection", nil)
	if err != nil {
		return "", err
	}

	if state, ok := data["klippy_state"].(string); ok {
		return state, nil
	}
	if result, ok := data["result"].(map[string]interface{}); ok {
		if state, ok := result["klippy_state"].(string); ok {
			return state, nil
		}
	}
	return "unknown", nil
}

// ReadGPIO читает состояние GPIO пина через расширение gpio_monitor.
func (c *Client) ReadGPIO(ctx context.Context, pin string) (map[string]interface{}, error) {
	path := "/api/gpio_monitor/inputs"
	if pin != "" && pin != "all" {
		path = "/api/gpio_monitor/input/" + pin
	}

	data, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return checkSuccess(path, data)
}

// ReadSensor читает данные сенсора через расширение sensor_query.
// Ключ: имя сенсора, "type:<тип>" или "all".
func (c *Client) ReadSensor(ctx context.Context, key string) (map[string]interface{}, error) {
	path := "/api/sensor_query/all"
	switch {
	case key == "" || key == "all":
	case len(key) > 5 && key[:5] == "type:":
		path = "/api/sensor_query/type/" + key[5:]
	default:
		path = "/api/sensor_query/" + key
	}

	data, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return checkSuccess(path, data)
}

// SetFan устанавливает скорость вентилятора через расширение fan_control.
func (c *Client) SetFan(ctx context.Context, fan string, speed float64) (map[string]interface{}, error) {
	path := "/api/fan_control/set"
	data, err := c.do(ctx, http.MethodPost, path, map[string]interface{}{
		"fan_name": fan,
		"speed":    speed,
	})
	if err != nil {
		return nil, err
	}
	return checkSuccess(path, data)
}

// SetPWM устанавливает значение PWM пина через расширение pwm_control.
func (c *Client) SetPWM(ctx context.Context, pin string, value float64) (map[string]interface{}, error) {
	path := "/api/pwm_control/set"
	data, err := c.do(ctx, http.MethodPost, path, map[string]interface{}{
		"pin_name": pin,
		"value":    value,
	})
	if err != nil {
		return nil, err
	}
	return checkSuccess(path, data)
}

// RampPWM плавно изменяет значение PWM пина за заданное время.
func (c *Client) RampPWM(ctx context.Context, pin string, start, end, duration float64, steps int) (map[string]interface{}, error) {
	path := "/api/pwm_control/ramp"
	data, err := c.do(ctx, http.MethodPost, path, map[string]interface{}{
		"pin_name":    pin,
		"start_value": start,
		"end_value":   end,
		"duration":    duration,
		"steps":       steps,
	})
	if err != nil {
		return nil, err
	}
	return checkSuccess(path, data)
}
