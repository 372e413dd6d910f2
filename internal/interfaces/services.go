package interfaces

import "context"

// ScriptRunner определяет минимальный контракт для выполнения G-code скрипта.
type ScriptRunner interface {
	RunScript(ctx context.Context, script string) (map[string]interface{}, error)
}

// MoonrakerService определяет контракт REST-клиента Moonraker.
type MoonrakerService interface {
	ScriptRunner

	// QueryObjects запрашивает текущие значения именованных групп объектов
	// (toolhead, fan, output_pin, heaters, ...).
	QueryObjects(ctx context.Context, objects []string) (map[string]interface{}, error)

	// Connection возвращает строку состояния подключения Klippy.
	Connection(ctx context.Context) (string, error)

	// ReadGPIO читает состояние GPIO пина ("all" для всех пинов).
	ReadGPIO(ctx context.Context, pin string) (map[string]interface{}, error)

	// ReadSensor читает данные сенсора по ключу: имя, "type:<t>" или "all".
	ReadSensor(ctx context.Context, key string) (map[string]interface{}, error)

	// SetFan устанавливает скорость вентилятора (от 0.0 до 1.0).
	SetFan(ctx context.Context, fan string, speed float64) (map[string]interface{}, error)

	// SetPWM устанавливает значение PWM пина (от 0.0 до 1.0).
	SetPWM(ctx context.Context, pin string, value float64) (map[string]interface{}, error)

	// RampPWM плавно изменяет значение PWM пина за заданное время.
	RampPWM(ctx context.Context, pin string, start, end, duration float64, steps int) (map[string]interface{}, error)
}
