package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CommandType определяет тип семантической команды клиента.
type CommandType string

const (
	// Команды перемещения
	CommandMove         CommandType = "move"
	CommandMoveAbsolute CommandType = "move_absolute"
	CommandMoveRelative CommandType = "move_relative"
	CommandHome         CommandType = "home"

	// Команды захвата и установки компонентов
	CommandPick         CommandType = "pick"
	CommandPlace        CommandType = "place"
	CommandPickAndPlace CommandType = "pick_and_place"

	// Команды актуаторов
	CommandActuate    CommandType = "actuate"
	CommandActuateOn  CommandType = "actuate_on"
	CommandActuateOff CommandType = "actuate_off"

	// Команды вакуума
	CommandVacuumOn  CommandType = "vacuum_on"
	CommandVacuumOff CommandType = "vacuum_off"
	CommandVacuumSet CommandType = "vacuum_set"

	// Команды вентилятора
	CommandFanOn  CommandType = "fan_on"
	CommandFanOff CommandType = "fan_off"
	CommandFanSet CommandType = "fan_set"

	// Команды PWM
	CommandPWMSet  CommandType = "pwm_set"
	CommandPWMRamp CommandType = "pwm_ramp"

	// Команды GPIO
	CommandGPIORead  CommandType = "gpio_read"
	CommandGPIOWrite CommandType = "gpio_write"

	// Команды сенсоров
	CommandSensorRead    CommandType = "sensor_read"
	CommandSensorReadAll CommandType = "sensor_read_all"

	// Команды податчика
	CommandFeederAdvance CommandType = "feeder_advance"
	CommandFeederRetract CommandType = "feeder_retract"

	// Команды статуса
	CommandGetStatus       CommandType = "get_status"
	CommandGetPosition     CommandType = "get_position"
	CommandGetPrinterState CommandType = "get_printer_state"

	// Команды очереди
	CommandQueueCommand CommandType = "queue_command"
	CommandQueueBatch   CommandType = "queue_batch"
	CommandQueueStatus  CommandType = "queue_status"
	CommandQueueClear   CommandType = "queue_clear"

	// Системные команды
	CommandCancel CommandType = "cancel"
	CommandPause  CommandType = "pause"
	CommandResume CommandType = "resume"
	CommandReset  CommandType = "reset"
)

var knownCommandTypes = map[CommandType]struct{}{
	CommandMove: {}, CommandMoveAbsolute: {}, CommandMoveRelative: {}, CommandHome: {},
	CommandPick: {}, CommandPlace: {}, CommandPickAndPlace: {},
	CommandActuate: {}, CommandActuateOn: {}, CommandActuateOff: {},
	CommandVacuumOn: {}, CommandVacuumOff: {}, CommandVacuumSet: {},
	CommandFanOn: {}, CommandFanOff: {}, CommandFanSet: {},
	CommandPWMSet: {}, CommandPWMRamp: {},
	CommandGPIORead: {}, CommandGPIOWrite: {},
	CommandSensorRead: {}, CommandSensorReadAll: {},
	CommandFeederAdvance: {}, CommandFeederRetract: {},
	CommandGetStatus: {}, CommandGetPosition: {}, CommandGetPrinterState: {},
	CommandQueueCommand: {}, CommandQueueBatch: {}, CommandQueueStatus: {}, CommandQueueClear: {},
	CommandCancel: {}, CommandPause: {}, CommandResume: {}, CommandReset: {},
}

// ParseCommandType проверяет строку на соответствие известному типу команды.
func ParseCommandType(s string) (CommandType, error) {
	ct := CommandType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := knownCommandTypes[ct]; !ok {
		return "", fmt.Errorf("unknown command type: %s", s)
	}
	return ct, nil
}

// Command представляет семантическую команду клиента.
type Command struct {
	ID         string                 `json:"id"`
	Type       CommandType            `json:"command"`
	Parameters map[string]interface{} `json:"parameters"`
	Metadata   map[string]interface{} `json:"metadata"`
	Priority   int                    `json:"priority"`
}

// NewCommand создает команду с сгенерированным идентификатором.
func NewCommand(ct CommandType, params map[string]interface{}) Command {
	if params == nil {
		params = map[string]interface{}{}
	}
	return Command{
		ID:         uuid.NewString(),
		Type:       ct,
		Parameters: params,
		Metadata:   map[string]interface{}{},
	}
}

// ResponseStatus определяет статус ответа на команду.
type ResponseStatus string

const (
	StatusSuccess   ResponseStatus = "success"
	StatusError     ResponseStatus = "error"
	StatusPartial   ResponseStatus = "partial"
	StatusTimeout   ResponseStatus = "timeout"
	StatusCancelled ResponseStatus = "cancelled"
)

// Response представляет унифицированный ответ на семантическую команду.
type Response struct {
	Status        ResponseStatus         `json:"status"`
	Command       string                 `json:"command"`
	CommandID     string                 `json:"command_id"`
	Data          map[string]interface{} `json:"data,omitempty"`
	ErrorMessage  string                 `json:"error_message,omitempty"`
	ErrorCode     string                 `json:"error_code,omitempty"`
	Warnings      []string               `json:"warnings,omitempty"`
	ExecutionTime float64                `json:"execution_time"`
	Timestamp     time.Time              `json:"timestamp"`
}

// NewResponse создает ответ с проставленным временем.
func NewResponse(status ResponseStatus, cmd Command) Response {
	return Response{
		Status:    status,
		Command:   string(cmd.Type),
		CommandID: cmd.ID,
		Timestamp: time.Now(),
	}
}

// AddWarning добавляет предупреждение к ответу.
func (r *Response) AddWarning(warning string) {
	r.Warnings = append(r.Warnings, warning)
}

// DeviceState представляет отслеживаемый снимок состояния устройства.
// Обновляется только после успешного выполнения команды.
type DeviceState struct {
	Position      map[string]float64     `json:"current_position"`
	VacuumEnabled bool                   `json:"vacuum_enabled"`
	FanSpeed      float64                `json:"fan_speed"`
	Actuators     map[string]interface{} `json:"actuators"`
	HomedAxes     []string               `json:"homed_axes"`
}

// NewDeviceState возвращает начальное состояние устройства.
func NewDeviceState() DeviceState {
	return DeviceState{
		Position:  map[string]float64{"x": 0, "y": 0, "z": 0},
		Actuators: map[string]interface{}{},
		HomedAxes: []string{},
	}
}
