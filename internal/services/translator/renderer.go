package translator

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/klipperplace/pnpService/internal/domain/models"
	"github.com/klipperplace/pnpService/pkg/errors"
)

// Значения по умолчанию для параметров генерации инструкций.
const (
	defaultFeedrate       = 1500.0
	defaultTravelHeight   = 5.0
	defaultSafeHeight     = 10.0
	defaultVacuumPower    = 255.0
	defaultFeederDistance = 10.0
	defaultFeederFeedrate = 100.0
)

// ValidatorFunc проверяет параметры команды перед генерацией.
type ValidatorFunc func(params map[string]interface{}) error

// Renderer превращает семантические команды в текст инструкций
// прошивки. Пользовательские шаблоны с подстановками {param} имеют
// приоритет над встроенными правилами.
type Renderer struct {
	mu         sync.RWMutex
	templates  map[models.CommandType]string
	validators map[models.CommandType]ValidatorFunc
}

// NewRenderer создает новый генератор инструкций
func NewRenderer() *Renderer {
	return &Renderer{
		templates:  make(map[models.CommandType]string),
		validators: make(map[models.CommandType]ValidatorFunc),
	}
}

// AddTemplate регистрирует пользовательский шаблон для типа команды.
// Подстановки вида {name} заменяются значениями параметров.
func (r *Renderer) AddTemplate(ct models.CommandType, template string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[ct] = template
}

// AddValidator регистрирует проверку параметров для типа команды.
func (r *Renderer) AddValidator(ct models.CommandType, validator ValidatorFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators[ct] = validator
}

// Render возвращает текст инструкций для команды. Многострочные
// последовательности разделяются переводом строки.
func (r *Renderer) Render(cmd models.Command) (string, error) {
	r.mu.RLock()
	validator := r.validators[cmd.Type]
	template, hasTemplate := r.templates[cmd.Type]
	r.mu.RUnlock()

	if validator != nil {
		if err := validator(cmd.Parameters); err != nil {
			return "", err
		}
	}

	if hasTemplate {
		return expandTemplate(template, cmd.Parameters)
	}

	return r.renderBuiltin(cmd)
}

func (r *Renderer) renderBuiltin(cmd models.Command) (string, error) {
	p := cmd.Parameters

	switch cmd.Type {
	case models.CommandMove:
		return renderMove(p)

	case models.CommandMoveAbsolute:
		return "G90", nil

	case models.CommandMoveRelative:
		return "G91", nil

	case models.CommandHome:
		if axes := stringParam(p, "axes", ""); axes != "" {
			return "G28 " + strings.ToUpper(axes), nil
		}
		return "G28", nil

	case models.CommandPick:
		return renderPick(p, true), nil

	case models.CommandPlace:
		return renderPick(p, false), nil

	case models.CommandPickAndPlace:
		return renderPickAndPlace(p), nil

	case models.CommandActuate, models.CommandGPIOWrite:
		pin := stringParam(p, "pin", "")
		if pin == "" {
			return "", &errors.ValidationError{Field: "pin", Message: "parameter is required"}
		}
		value := numParam(p, "value", 1)
		return fmt.Sprintf("SET_PIN PIN=%s VALUE=%s", pin, formatNum(value)), nil

	case models.CommandActuateOn:
		pin := stringParam(p, "pin", "")
		if pin == "" {
			return "", &errors.ValidationError{Field: "pin", Message: "parameter is required"}
		}
		return "SET_PIN PIN=" + pin + " VALUE=1", nil

	case models.CommandActuateOff:
		pin := stringParam(p, "pin", "")
		if pin == "" {
			return "", &errors.ValidationError{Field: "pin", Message: "parameter is required"}
		}
		return "SET_PIN PIN=" + pin + " VALUE=0", nil

	case models.CommandVacuumOn:
		return "M106 S" + formatNum(numParam(p, "power", defaultVacuumPower)), nil

	case models.CommandVacuumOff:
		return "M107", nil

	case models.CommandVacuumSet:
		return "M106 S" + formatNum(numParam(p, "power", 0)), nil

	case models.CommandFanOn:
		return "M106 S" + formatNum(numParam(p, "speed", 255)), nil

	case models.CommandFanOff:
		return "M107", nil

	case models.CommandFeederAdvance:
		distance := numParam(p, "distance", defaultFeederDistance)
		feedrate := numParam(p, "feedrate", defaultFeederFeedrate)
		return fmt.Sprintf("G0 E%s F%s", formatNum(distance), formatNum(feedrate)), nil

	case models.CommandFeederRetract:
		distance := numParam(p, "distance", defaultFeederDistance)
		feedrate := numParam(p, "feedrate", defaultFeederFeedrate)
		return fmt.Sprintf("G0 E-%s F%s", formatNum(distance), formatNum(feedrate)), nil

	default:
		return "", &errors.ValidationError{
			Field:   "command",
			Message: fmt.Sprintf("no instruction rule for command type %q", cmd.Type),
		}
	}
}

func renderMove(p map[string]interface{}) (string, error) {
	var parts []string
	for _, axis := range []string{"x", "y", "z"} {
		if value, ok := lookupNum(p, axis); ok {
			parts = append(parts, strings.ToUpper(axis)+formatNum(value))
		}
	}
	if len(parts) == 0 {
		return "", &errors.ValidationError{Field: "x|y|z", Message: "at least one axis is required"}
	}
	parts = append(parts, "F"+formatNum(numParam(p, "feedrate", defaultFeedrate)))
	return "G0 " + strings.Join(parts, " "), nil
}

// renderPick строит последовательность захвата (vacuum=true) или
// установки компонента: опускание, переключение вакуума, подъем.
// Высота берется из z, иначе из pick_height для захвата и place_height
// для установки. Подъем на транспортную высоту идет без слова F.
func renderPick(p map[string]interface{}, vacuum bool) string {
	heightParam := "pick_height"
	vacuumLine := "M106 S" + formatNum(numParam(p, "vacuum_power", defaultVacuumPower))
	if !vacuum {
		heightParam = "place_height"
		vacuumLine = "M107"
	}

	z := numParam(p, "z", numParam(p, heightParam, 0))
	feedrate := numParam(p, "feedrate", defaultFeedrate)
	travel := numParam(p, "travel_height", defaultTravelHeight)

	lines := []string{
		fmt.Sprintf("G0 Z%s F%s", formatNum(z), formatNum(feedrate)),
		vacuumLine,
		"G0 Z" + formatNum(travel),
	}
	return strings.Join(lines, "\n")
}

// renderPickAndPlace строит полный цикл: подъем на безопасную высоту,
// захват в точке забора, перенос, установка в точке назначения.
// Точка забора задается координатами x/y/z; имена pick_x/pick_y/pick_z
// принимаются как запасные.
func renderPickAndPlace(p map[string]interface{}) string {
	feedrate := numParam(p, "feedrate", defaultFeedrate)
	safe := numParam(p, "safe_height", defaultSafeHeight)
	vacuumPower := numParam(p, "vacuum_power", defaultVacuumPower)

	pickX := numParam(p, "x", numParam(p, "pick_x", 0))
	pickY := numParam(p, "y", numParam(p, "pick_y", 0))
	pickZ := numParam(p, "z", numParam(p, "pick_z", 0))
	placeX := numParam(p, "place_x", 0)
	placeY := numParam(p, "place_y", 0)
	placeZ := numParam(p, "place_z", 0)

	f := formatNum(feedrate)
	lines := []string{
		fmt.Sprintf("G0 Z%s F%s", formatNum(safe), f),
		fmt.Sprintf("G0 X%s Y%s F%s", formatNum(pickX), formatNum(pickY), f),
		fmt.Sprintf("G0 Z%s F%s", formatNum(pickZ), f),
		"M106 S" + formatNum(vacuumPower),
		fmt.Sprintf("G0 Z%s F%s", formatNum(safe), f),
		fmt.Sprintf("G0 X%s Y%s F%s", formatNum(placeX), formatNum(placeY), f),
		fmt.Sprintf("G0 Z%s F%s", formatNum(placeZ), f),
		"M107",
		fmt.Sprintf("G0 Z%s F%s", formatNum(safe), f),
	}
	return strings.Join(lines, "\n")
}

// expandTemplate подставляет параметры в плейсхолдеры вида {name}.
func expandTemplate(template string, params map[string]interface{}) (string, error) {
	result := template
	for {
		start := strings.IndexByte(result, '{')
		if start < 0 {
			break
		}
		end := strings.IndexByte(result[start:], '}')
		if end < 0 {
			return "", &errors.ValidationError{Field: "template", Message: "unbalanced placeholder braces"}
		}
		end += start

		name := result[start+1 : end]
		raw, ok := params[name]
		if !ok {
			return "", &errors.ValidationError{Field: name, Message: "template parameter is missing"}
		}

		var value string
		switch v := raw.(type) {
		case float64:
			value = formatNum(v)
		case string:
			value = v
		default:
			value = fmt.Sprint(v)
		}
		result = result[:start] + value + result[end+1:]
	}
	return result, nil
}

// formatNum печатает число без хвостовых нулей: 100.0 -> "100".
func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func lookupNum(params map[string]interface{}, name string) (float64, bool) {
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
	default:
		return 0, false
	}
}

func numParam(params map[string]interface{}, name string, fallback float64) float64 {
	if v, ok := lookupNum(params, name); ok {
		return v
	}
	return fallback
}

func stringParam(params map[string]interface{}, name, fallback string) string {
	if raw, ok := params[name]; ok {
		if s, ok := raw.(string); ok {
			return s
		}
	}
	return fallback
}
