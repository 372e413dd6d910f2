package safety

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/klipperplace/pnpService/internal/domain/models"
	"github.com/klipperplace/pnpService/internal/interfaces"
	"github.com/klipperplace/pnpService/internal/middleware/logging"
	"github.com/klipperplace/pnpService/internal/services/cache"
)

// maxEventHistory ограничивает журнал событий безопасности.
const maxEventHistory = 1000

// EventCallback вызывается для каждого зафиксированного события.
type EventCallback func(event models.SafetyEvent)

// Monitor следит за лимитами безопасности: проверяет команды перед
// выполнением, ведет журнал событий и управляет аварийной остановкой.
type Monitor struct {
	mu     sync.Mutex
	limits models.SafetyLimits

	emergencyStop bool
	homedAxes     map[string]bool
	lastState     string

	events    []models.SafetyEvent
	stats     models.SafetyStatistics
	callbacks []EventCallback

	runner interfaces.ScriptRunner
	cache  *cache.Manager
	logger *logging.Logger

	monitorDone chan struct{}
	monitoring  bool
}

// NewMonitor создает новый монитор безопасности
func NewMonitor(runner interfaces.ScriptRunner, cacheManager *cache.Manager, logger *logging.Logger) *Monitor {
	return &Monitor{
		limits:    models.DefaultSafetyLimits(),
		homedAxes: make(map[string]bool),
		events:    make([]models.SafetyEvent, 0),
		runner:    runner,
		cache:     cacheManager,
		logger:    logger.WithPrefix("SAFETY"),
	}
}

// OnEvent регистрирует обработчик событий безопасности.
func (m *Monitor) OnEvent(cb EventCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// recordEvent добавляет событие в журнал и уведомляет подписчиков.
// Вызывается под мьютексом.
func (m *Monitor) recordEvent(event models.SafetyEvent) {
	m.events = append(m.events, event)
	if len(m.events) > maxEventHistory {
		m.events = m.events[len(m.events)-maxEventHistory:]
	}

	m.stats.TotalEvents++
	now := event.Timestamp
	switch event.Type {
	case models.EventEmergencyStop:
		m.stats.EmergencyStops++
		m.stats.LastEmergencyStop = &now
	case models.EventTemperatureExceeded:
		m.stats.TemperatureViolations++
		m.stats.LastViolation = &now
	case models.EventPositionLimitExceeded:
		m.stats.PositionViolations++
		m.stats.LastViolation = &now
	case models.EventBoundsViolation:
		m.stats.BoundsViolations++
		m.stats.LastViolation = &now
	case models.EventPWMLimitExceeded:
		m.stats.PWMViolations++
		m.stats.LastViolation = &now
	case models.EventStateChange:
		m.stats.StateChangesLogged++
	}

	callbacks := make([]EventCallback, len(m.callbacks))
	copy(callbacks, m.callbacks)

	go func() {
		for _, cb := range callbacks {
			cb(event)
		}
	}()
}

// EmergencyStop отправляет M112 и блокирует дальнейшие команды
// движения. Флаг остановки устанавливается даже при ошибке отправки.
func (m *Monitor) EmergencyStop(ctx context.Context, reason string) models.SafetyEvent {
	if reason == "" {
		reason = "Manual emergency stop"
	}

	message := "EMERGENCY STOP: " + reason
	_, err := m.runner.RunScript(ctx, "M112")
	if err != nil {
		message += fmt.Sprintf(" (Error: %v)", err)
		m.logger.Error("Failed to deliver emergency stop", "error", err)
	}

	event := models.SafetyEvent{
		Type:      models.EventEmergencyStop,
		Level:     models.LevelEmergency,
		Timestamp: time.Now(),
		Message:   message,
		Component: "emergency_stop",
		Details:   map[string]interface{}{"reason": reason},
	}

	m.mu.Lock()
	m.emergencyStop = true
	m.recordEvent(event)
	m.mu.Unlock()

	// Позиция и выходы могли измениться произвольно после остановки.
	if m.cache != nil {
		m.cache.InvalidateCategory(models.CategoryPosition)
		m.cache.InvalidateCategory(models.CategoryGPIO)
		m.cache.InvalidateCategory(models.CategoryPWM)
		m.cache.InvalidateCategory(models.CategoryFan)
	}

	m.logger.Error("Emergency stop activated", "reason", reason)
	return event
}

// ClearEmergencyStop снимает флаг аварийной остановки.
func (m *Monitor) ClearEmergencyStop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.emergencyStop {
		return
	}
	m.emergencyStop = false
	m.recordEvent(models.SafetyEvent{
		Type:      models.EventStateChange,
		Level:     models.LevelNormal,
		Timestamp: time.Now(),
		Message:   "Emergency stop cleared",
		Component: "emergency_stop",
	})
	m.logger.Info("Emergency stop cleared")
}

// IsEmergencyStopped сообщает, активна ли аварийная остановка.
func (m *Monitor) IsEmergencyStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.emergencyStop
}

// MarkHomed отмечает оси как откалиброванные после успешного G28.
func (m *Monitor) MarkHomed(axes []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(axes) == 0 {
		axes = []string{"X", "Y", "Z"}
	}
	for _, axis := range axes {
		m.homedAxes[strings.ToUpper(axis)] = true
	}
}

// ClearHomed сбрасывает признак калибровки всех осей.
func (m *Monitor) ClearHomed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.homedAxes = make(map[string]bool)
}

// HomedAxes возвращает список откалиброванных осей.
func (m *Monitor) HomedAxes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	axes := make([]string, 0, len(m.homedAxes))
	for axis := range m.homedAxes {
		axes = append(axes, axis)
	}
	return axes
}

// LogStateChange фиксирует смену состояния принтера в журнале.
func (m *Monitor) LogStateChange(state string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state == m.lastState {
		return
	}
	previous := m.lastState
	m.lastState = state
	m.recordEvent(models.SafetyEvent{
		Type:      models.EventStateChange,
		Level:     models.LevelNormal,
		Timestamp: time.Now(),
		Message:   fmt.Sprintf("Printer state changed: %s -> %s", previous, state),
		Component: "state_monitor",
		Details:   map[string]interface{}{"previous": previous, "current": state},
	})
}

// EventHistory возвращает события журнала с фильтрами. Нулевые
// значения фильтров отключают их; limit <= 0 возвращает все события.
func (m *Monitor) EventHistory(limit int, eventType models.SafetyEventType, level models.SafetyLevel) []models.SafetyEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	filtered := make([]models.SafetyEvent, 0, len(m.events))
	for _, event := range m.events {
		if eventType != "" && event.Type != eventType {
			continue
		}
		if level != "" && event.Level != level {
			continue
		}
		filtered = append(filtered, event)
	}

	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered
}

// ClearEventHistory очищает журнал событий.
func (m *Monitor) ClearEventHistory() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = m.events[:0]
}

// ResolveEvent помечает событие с заданным индексом как разрешенное.
func (m *Monitor) ResolveEvent(index int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index < 0 || index >= len(m.events) {
		return false
	}
	m.events[index].Resolved = true
	return true
}

// Statistics возвращает сводную статистику монитора.
func (m *Monitor) Statistics() models.SafetyStatistics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// CurrentLimits возвращает действующие лимиты.
func (m *Monitor) CurrentLimits() models.SafetyLimits {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.limits
}

// UpdateLimits изменяет отдельные лимиты по имени поля.
// Неизвестные имена игнорируются.
func (m *Monitor) UpdateLimits(updates map[string]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, value := range updates {
		switch name {
		case "max_extruder_temp":
			m.limits.MaxExtruderTemp = value
		case "max_bed_temp":
			m.limits.MaxBedTemp = value
		case "max_chamber_temp":
			m.limits.MaxChamberTemp = value
		case "min_temp_delta":
			m.limits.MinTempDelta = value
		case "max_x_position":
			m.limits.MaxXPosition = value
		case "max_y_position":
			m.limits.MaxYPosition = value
		case "max_z_position":
			m.limits.MaxZPosition = value
		case "min_x_position":
			m.limits.MinXPosition = value
		case "min_y_position":
			m.limits.MinYPosition = value
		case "min_z_position":
			m.limits.MinZPosition = value
		case "max_velocity":
			m.limits.MaxVelocity = value
		case "max_acceleration":
			m.limits.MaxAcceleration = value
		case "max_pwm_value":
			m.limits.MaxPWMValue = value
		case "min_pwm_value":
			m.limits.MinPWMValue = value
		case "max_fan_speed":
			m.limits.MaxFanSpeed = value
		case "min_fan_speed":
			m.limits.MinFanSpeed = value
		case "max_feedrate":
			m.limits.MaxFeedrate = value
		case "min_feedrate":
			m.limits.MinFeedrate = value
		case "emergency_stop_timeout":
			m.limits.EmergencyStopTimeout = value
		default:
			m.logger.Warn("Ignoring unknown safety limit", "name", name)
		}
	}
	m.logger.Info("Safety limits updated", "fields", len(updates))
}

// CurrentState возвращает снимок состояния монитора.
func (m *Monitor) CurrentState() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	axes := make([]string, 0, len(m.homedAxes))
	for axis := range m.homedAxes {
		axes = append(axes, axis)
	}

	return map[string]interface{}{
		"emergency_stop_active": m.emergencyStop,
		"homed_axes":            axes,
		"printer_state":         m.lastState,
		"events_recorded":       len(m.events),
		"monitoring":            m.monitoring,
	}
}
