package safety

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/klipperplace/pnpService/internal/domain/models"
)

// ValidateMove проверяет целевые координаты и скорость перемещения.
// Возвращает false и список нарушений, если команда небезопасна;
// каждое нарушение фиксируется в журнале событий.
func (m *Monitor) ValidateMove(params map[string]interface{}) (bool, []string) {
	m.mu.Lock()
	limits := m.limits
	m.mu.Unlock()

	violations := axisViolations(params, limits)

	if feedrate, ok := numberParam(params, "feedrate"); ok {
		if feedrate < limits.MinFeedrate || feedrate > limits.MaxFeedrate {
			violations = append(violations, fmt.Sprintf(
				"feedrate=%.1f is outside allowed range [%.1f, %.1f]",
				feedrate, limits.MinFeedrate, limits.MaxFeedrate))
		}
	}

	if len(violations) == 0 {
		return true, nil
	}

	m.mu.Lock()
	m.recordEvent(models.SafetyEvent{
		Type:      models.EventBoundsViolation,
		Level:     models.LevelCritical,
		Timestamp: time.Now(),
		Message:   "Move rejected: " + strings.Join(violations, "; "),
		Component: "move_validator",
		Details:   map[string]interface{}{"violations": violations},
	})
	m.mu.Unlock()

	return false, violations
}

// axisViolations сверяет координаты x/y/z с лимитами позиций.
func axisViolations(params map[string]interface{}, limits models.SafetyLimits) []string {
	violations := make([]string, 0)

	checkAxis := func(name string, min, max float64) {
		value, ok := numberParam(params, name)
		if !ok {
			return
		}
		if value < min || value > max {
			violations = append(violations, fmt.Sprintf(
				"%s=%.3f is outside allowed range [%.1f, %.1f]",
				strings.ToUpper(name), value, min, max))
		}
	}

	checkAxis("x", limits.MinXPosition, limits.MaxXPosition)
	checkAxis("y", limits.MinYPosition, limits.MaxYPosition)
	checkAxis("z", limits.MinZPosition, limits.MaxZPosition)

	return violations
}

// CheckPosition сверяет фактическую позицию головы с лимитами.
// Выход за пределы фиксируется как событие position_limit_exceeded,
// отдельное от отклонения команды перемещения.
func (m *Monitor) CheckPosition(position map[string]interface{}) []models.SafetyEvent {
	m.mu.Lock()
	limits := m.limits
	m.mu.Unlock()

	violations := axisViolations(position, limits)
	if len(violations) == 0 {
		return nil
	}

	event := models.SafetyEvent{
		Type:      models.EventPositionLimitExceeded,
		Level:     models.LevelCritical,
		Timestamp: time.Now(),
		Message:   "Reported position is outside limits: " + strings.Join(violations, "; "),
		Component: "position_monitor",
		Details:   map[string]interface{}{"violations": violations},
	}

	m.mu.Lock()
	m.recordEvent(event)
	m.mu.Unlock()

	return []models.SafetyEvent{event}
}

// ValidateFan проверяет запрошенную скорость вентилятора.
func (m *Monitor) ValidateFan(speed float64) (bool, []string) {
	m.mu.Lock()
	limits := m.limits
	m.mu.Unlock()

	if speed >= limits.MinFanSpeed && speed <= limits.MaxFanSpeed {
		return true, nil
	}

	violation := fmt.Sprintf("fan speed=%.3f is outside allowed range [%.2f, %.2f]",
		speed, limits.MinFanSpeed, limits.MaxFanSpeed)

	m.mu.Lock()
	m.recordEvent(models.SafetyEvent{
		Type:      models.EventPWMLimitExceeded,
		Level:     models.LevelWarning,
		Timestamp: time.Now(),
		Message:   "Fan command rejected: " + violation,
		Component: "fan_validator",
	})
	m.mu.Unlock()

	return false, []string{violation}
}

// CheckPWMLimits проверяет одно или несколько значений PWM.
func (m *Monitor) CheckPWMLimits(values ...float64) (bool, []string) {
	m.mu.Lock()
	limits := m.limits
	m.mu.Unlock()

	violations := make([]string, 0)
	for _, value := range values {
		if value < limits.MinPWMValue || value > limits.MaxPWMValue {
			violations = append(violations, fmt.Sprintf(
				"pwm value=%.3f is outside allowed range [%.2f, %.2f]",
				value, limits.MinPWMValue, limits.MaxPWMValue))
		}
	}

	if len(violations) == 0 {
		return true, nil
	}

	m.mu.Lock()
	m.recordEvent(models.SafetyEvent{
		Type:      models.EventPWMLimitExceeded,
		Level:     models.LevelWarning,
		Timestamp: time.Now(),
		Message:   "PWM command rejected: " + strings.Join(violations, "; "),
		Component: "pwm_validator",
		Details:   map[string]interface{}{"violations": violations},
	})
	m.mu.Unlock()

	return false, violations
}

// ValidateFeedrate проверяет скорость подачи питателя.
func (m *Monitor) ValidateFeedrate(feedrate float64) (bool, []string) {
	m.mu.Lock()
	limits := m.limits
	m.mu.Unlock()

	if feedrate >= limits.MinFeedrate && feedrate <= limits.MaxFeedrate {
		return true, nil
	}

	violation := fmt.Sprintf("feedrate=%.1f is outside allowed range [%.1f, %.1f]",
		feedrate, limits.MinFeedrate, limits.MaxFeedrate)

	m.mu.Lock()
	m.recordEvent(models.SafetyEvent{
		Type:      models.EventBoundsViolation,
		Level:     models.LevelWarning,
		Timestamp: time.Now(),
		Message:   "Feeder command rejected: " + violation,
		Component: "feeder_validator",
	})
	m.mu.Unlock()

	return false, []string{violation}
}

// CheckTemperatures сравнивает показания сенсоров с температурными
// лимитами. Имена сенсоров сопоставляются по подстрокам extruder,
// heater и bed; перегрев относительно цели более чем на 50 градусов
// дает предупреждение.
func (m *Monitor) CheckTemperatures(sensors map[string]interface{}) []models.SafetyEvent {
	m.mu.Lock()
	limits := m.limits
	m.mu.Unlock()

	raised := make([]models.SafetyEvent, 0)
	record := func(event models.SafetyEvent) {
		m.mu.Lock()
		m.recordEvent(event)
		m.mu.Unlock()
		raised = append(raised, event)
	}

	for name, raw := range sensors {
		reading, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		temp, hasTemp := numberParam(reading, "temperature")
		if !hasTemp {
			continue
		}

		limit := temperatureLimit(name, limits)

		if temp > limit {
			record(models.SafetyEvent{
				Type:      models.EventTemperatureExceeded,
				Level:     models.LevelCritical,
				Timestamp: time.Now(),
				Message: fmt.Sprintf("Temperature limit exceeded on %s: %.1f > %.1f",
					name, temp, limit),
				Component: "temperature_monitor",
				Details:   map[string]interface{}{"sensor": name, "temperature": temp, "limit": limit},
			})
			continue
		}

		if target, hasTarget := numberParam(reading, "target"); hasTarget && target > 0 && temp-target > 50 {
			record(models.SafetyEvent{
				Type:      models.EventTemperatureExceeded,
				Level:     models.LevelWarning,
				Timestamp: time.Now(),
				Message: fmt.Sprintf("Temperature overshoot on %s: %.1f with target %.1f",
					name, temp, target),
				Component: "temperature_monitor",
				Details:   map[string]interface{}{"sensor": name, "temperature": temp, "target": target},
			})
		}
	}

	return raised
}

// temperatureLimit выбирает температурный лимит по имени нагревателя.
// Имя вида heater_bed относится к столу, а не к экструдеру.
func temperatureLimit(name string, limits models.SafetyLimits) float64 {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "bed"):
		return limits.MaxBedTemp
	case strings.Contains(lower, "extruder") || strings.Contains(lower, "heater"):
		return limits.MaxExtruderTemp
	default:
		return limits.MaxChamberTemp
	}
}

// ValidateTemperature проверяет целевую температуру нагревателя перед
// отправкой команды нагрева.
func (m *Monitor) ValidateTemperature(heater string, target float64) (bool, []string) {
	m.mu.Lock()
	limits := m.limits
	m.mu.Unlock()

	limit := temperatureLimit(heater, limits)
	if target <= limit {
		return true, nil
	}

	violation := fmt.Sprintf("target temperature %.1f for %s exceeds limit %.1f",
		target, heater, limit)

	m.mu.Lock()
	m.recordEvent(models.SafetyEvent{
		Type:      models.EventTemperatureExceeded,
		Level:     models.LevelCritical,
		Timestamp: time.Now(),
		Message:   "Heating command rejected: " + violation,
		Component: "temperature_validator",
		Details:   map[string]interface{}{"heater": heater, "target": target, "limit": limit},
	})
	m.mu.Unlock()

	return false, []string{violation}
}

// CheckHomingRequired сообщает, нужна ли калибровка перед перемещением
// по указанным осям. Пустой список означает все оси.
func (m *Monitor) CheckHomingRequired(axes []string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(axes) == 0 {
		axes = []string{"X", "Y", "Z"}
	}
	for _, axis := range axes {
		if !m.homedAxes[strings.ToUpper(axis)] {
			return true
		}
	}
	return false
}

// StartMonitoring запускает фоновые циклы контроля температуры,
// позиции и состояния принтера. Источники данных передаются как
// функции чтения, чтобы не связывать монитор с конкретным клиентом.
func (m *Monitor) StartMonitoring(
	readSensors func(ctx context.Context) (map[string]interface{}, error),
	readPosition func(ctx context.Context) (map[string]interface{}, error),
	readState func(ctx context.Context) (string, error),
) {
	m.mu.Lock()
	if m.monitoring {
		m.mu.Unlock()
		return
	}
	m.monitoring = true
	m.monitorDone = make(chan struct{})
	done := m.monitorDone
	limits := m.limits
	m.mu.Unlock()

	secs := func(v float64) time.Duration { return time.Duration(v * float64(time.Second)) }

	if readSensors != nil {
		go m.loop(done, secs(limits.TemperatureCheckInterval), func(ctx context.Context) {
			sensors, err := readSensors(ctx)
			if err != nil {
				m.logger.Debug("Temperature check skipped", "error", err)
				return
			}
			m.CheckTemperatures(sensors)
		})
	}

	if readPosition != nil {
		go m.loop(done, secs(limits.PositionCheckInterval), func(ctx context.Context) {
			position, err := readPosition(ctx)
			if err != nil {
				m.logger.Debug("Position check skipped", "error", err)
				return
			}
			if raised := m.CheckPosition(position); len(raised) > 0 {
				m.logger.Warn("Reported position is outside configured bounds")
			}
		})
	}

	if readState != nil {
		go m.loop(done, secs(limits.StateCheckInterval), func(ctx context.Context) {
			state, err := readState(ctx)
			if err != nil {
				m.logger.Debug("State check skipped", "error", err)
				return
			}
			m.LogStateChange(state)
		})
	}

	m.logger.Info("Background safety monitoring started")
}

// StopMonitoring останавливает фоновые циклы контроля.
func (m *Monitor) StopMonitoring() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.monitoring {
		return
	}
	m.monitoring = false
	close(m.monitorDone)
	m.logger.Info("Background safety monitoring stopped")
}

func (m *Monitor) loop(done chan struct{}, interval time.Duration, check func(ctx context.Context)) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			check(ctx)
			cancel()
		}
	}
}

// numberParam извлекает числовой параметр любого числового типа JSON.
func numberParam(params map[string]interface{}, name string) (float64, bool) {
	raw, ok := params[name]
	if !ok || raw == nil {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
