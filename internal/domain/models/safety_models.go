package models

import "time"

// SafetyLevel определяет уровень серьезности события безопасности.
type SafetyLevel string

const (
	LevelNormal    SafetyLevel = "normal"
	LevelCaution   SafetyLevel = "caution"
	LevelWarning   SafetyLevel = "warning"
	LevelCritical  SafetyLevel = "critical"
	LevelEmergency SafetyLevel = "emergency"
)

// SafetyEventType определяет тип события безопасности.
type SafetyEventType string

const (
	EventTemperatureExceeded   SafetyEventType = "temperature_exceeded"
	EventPositionLimitExceeded SafetyEventType = "position_limit_exceeded"
	EventPWMLimitExceeded      SafetyEventType = "pwm_limit_exceeded"
	EventEmergencyStop         SafetyEventType = "emergency_stop"
	EventHomingRequired        SafetyEventType = "homing_required"
	EventStateChange           SafetyEventType = "state_change"
	EventBoundsViolation       SafetyEventType = "bounds_violation"
	EventHardwareFault         SafetyEventType = "hardware_fault"
)

// SafetyEvent представляет зафиксированное событие безопасности.
type SafetyEvent struct {
	Type      SafetyEventType        `json:"event_type"`
	Level     SafetyLevel            `json:"level"`
	Timestamp time.Time              `json:"timestamp"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Component string                 `json:"component"`
	Resolved  bool                   `json:"resolved"`
}

// SafetyLimits содержит настраиваемые физические лимиты безопасности.
type SafetyLimits struct {
	// Температурные лимиты (в градусах Цельсия)
	MaxExtruderTemp float64 `json:"max_extruder_temp"`
	MaxBedTemp      float64 `json:"max_bed_temp"`
	MaxChamberTemp  float64 `json:"max_chamber_temp"`
	MinTempDelta    float64 `json:"min_temp_delta"`

	// Позиционные лимиты (в мм)
	MaxXPosition float64 `json:"max_x_position"`
	MaxYPosition float64 `json:"max_y_position"`
	MaxZPosition float64 `json:"max_z_position"`
	MinXPosition float64 `json:"min_x_position"`
	MinYPosition float64 `json:"min_y_position"`
	MinZPosition float64 `json:"min_z_position"`

	// Лимиты скорости (в мм/с)
	MaxVelocity     float64 `json:"max_velocity"`
	MaxAcceleration float64 `json:"max_acceleration"`

	// Лимиты PWM (от 0.0 до 1.0)
	MaxPWMValue float64 `json:"max_pwm_value"`
	MinPWMValue float64 `json:"min_pwm_value"`

	// Лимиты вентилятора (от 0.0 до 1.0)
	MaxFanSpeed float64 `json:"max_fan_speed"`
	MinFanSpeed float64 `json:"min_fan_speed"`

	// Лимиты подачи (в мм/мин)
	MaxFeedrate float64 `json:"max_feedrate"`
	MinFeedrate float64 `json:"min_feedrate"`

	// Таймаут аварийной остановки (в секундах)
	EmergencyStopTimeout float64 `json:"emergency_stop_timeout"`

	// Интервалы фонового мониторинга (в секундах)
	TemperatureCheckInterval float64 `json:"temperature_check_interval"`
	PositionCheckInterval    float64 `json:"position_check_interval"`
	StateCheckInterval       float64 `json:"state_check_interval"`
}

// DefaultSafetyLimits возвращает лимиты по умолчанию.
func DefaultSafetyLimits() SafetyLimits {
	return SafetyLimits{
		MaxExtruderTemp: 250.0,
		MaxBedTemp:      120.0,
		MaxChamberTemp:  60.0,
		MinTempDelta:    5.0,

		MaxXPosition: 300.0,
		MaxYPosition: 300.0,
		MaxZPosition: 400.0,
		MinXPosition: 0.0,
		MinYPosition: 0.0,
		MinZPosition: 0.0,

		MaxVelocity:     500.0,
		MaxAcceleration: 3000.0,

		MaxPWMValue: 1.0,
		MinPWMValue: 0.0,

		MaxFanSpeed: 1.0,
		MinFanSpeed: 0.0,

		MaxFeedrate: 30000.0,
		MinFeedrate: 1.0,

		EmergencyStopTimeout: 5.0,

		TemperatureCheckInterval: 1.0,
		PositionCheckInterval:    0.5,
		StateCheckInterval:       2.0,
	}
}

// SafetyStatistics содержит сводную статистику мониторинга безопасности.
type SafetyStatistics struct {
	TotalEvents           int        `json:"total_events"`
	EmergencyStops        int        `json:"emergency_stops"`
	TemperatureViolations int        `json:"temperature_violations"`
	PositionViolations    int        `json:"position_violations"`
	PWMViolations         int        `json:"pwm_violations"`
	BoundsViolations      int        `json:"bounds_violations"`
	StateChangesLogged    int        `json:"state_changes_logged"`
	LastEmergencyStop     *time.Time `json:"last_emergency_stop,omitempty"`
	LastViolation         *time.Time `json:"last_violation,omitempty"`
}
