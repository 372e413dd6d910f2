package translator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/klipperplace/pnpService/internal/domain/models"
)

func TestRenderMove(t *testing.T) {
	r := NewRenderer()

	cmd := models.NewCommand(models.CommandMove, map[string]interface{}{
		"x": 100.0, "y": 50.0, "feedrate": 3000.0,
	})
	script, err := r.Render(cmd)
	require.NoError(t, err)
	require.Equal(t, "G0 X100 Y50 F3000", script, "Числа должны печататься без хвостовых нулей")
}

func TestRenderMoveDefaultFeedrate(t *testing.T) {
	r := NewRenderer()

	script, err := r.Render(models.NewCommand(models.CommandMove, map[string]interface{}{"z": 2.5}))
	require.NoError(t, err)
	require.Equal(t, "G0 Z2.5 F1500", script)
}

func TestRenderMoveRequiresAxis(t *testing.T) {
	r := NewRenderer()

	_, err := r.Render(models.NewCommand(models.CommandMove, nil))
	require.Error(t, err, "Перемещение без осей должно отклоняться")
}

func TestRenderModesAndHome(t *testing.T) {
	r := NewRenderer()

	cases := map[models.CommandType]string{
		models.CommandMoveAbsolute: "G90",
		models.CommandMoveRelative: "G91",
		models.CommandHome:         "G28",
		models.CommandVacuumOff:    "M107",
		models.CommandFanOff:       "M107",
	}
	for ct, expected := range cases {
		script, err := r.Render(models.NewCommand(ct, nil))
		require.NoError(t, err)
		require.Equal(t, expected, script, "Команда %s", ct)
	}

	script, err := r.Render(models.NewCommand(models.CommandHome, map[string]interface{}{"axes": "x y"}))
	require.NoError(t, err)
	require.Equal(t, "G28 X Y", script)
}

func TestRenderPickSequence(t *testing.T) {
	r := NewRenderer()

	script, err := r.Render(models.NewCommand(models.CommandPick, map[string]interface{}{
		"z": -2.0, "feedrate": 1000.0,
	}))
	require.NoError(t, err)

	lines := strings.Split(script, "\n")
	require.Len(t, lines, 3, "Захват состоит из опускания, вакуума и подъема")
	require.Equal(t, "G0 Z-2 F1000", lines[0])
	require.Equal(t, "M106 S255", lines[1])
	require.Equal(t, "G0 Z5", lines[2], "Подъем на транспортную высоту идет без слова F")
}

func TestRenderPickUsesPickHeight(t *testing.T) {
	r := NewRenderer()

	script, err := r.Render(models.NewCommand(models.CommandPick, map[string]interface{}{
		"pick_height": -1.5,
	}))
	require.NoError(t, err)
	require.Contains(t, script, "G0 Z-1.5 F1500")
}

func TestRenderPlaceTurnsVacuumOff(t *testing.T) {
	r := NewRenderer()

	script, err := r.Render(models.NewCommand(models.CommandPlace, map[string]interface{}{"z": 1.0}))
	require.NoError(t, err)
	require.Contains(t, script, "M107", "Установка должна отключать вакуум")
	require.NotContains(t, script, "M106")
}

func TestRenderPlaceUsesPlaceHeight(t *testing.T) {
	r := NewRenderer()

	script, err := r.Render(models.NewCommand(models.CommandPlace, map[string]interface{}{
		"place_height": 3.5,
	}))
	require.NoError(t, err)

	lines := strings.Split(script, "\n")
	require.Equal(t, "G0 Z3.5 F1500", lines[0], "Высота установки берется из place_height, а не pick_height")
}

func TestRenderPickAndPlace(t *testing.T) {
	r := NewRenderer()

	script, err := r.Render(models.NewCommand(models.CommandPickAndPlace, map[string]interface{}{
		"pick_x": 10.0, "pick_y": 20.0, "pick_z": -1.0,
		"place_x": 30.0, "place_y": 40.0, "place_z": -0.5,
	}))
	require.NoError(t, err)

	lines := strings.Split(script, "\n")
	require.Len(t, lines, 9)
	require.Equal(t, "G0 Z10 F1500", lines[0], "Цикл начинается с подъема на безопасную высоту")
	require.Equal(t, "G0 X10 Y20 F1500", lines[1])
	require.Equal(t, "M106 S255", lines[3])
	require.Equal(t, "G0 X30 Y40 F1500", lines[5])
	require.Equal(t, "M107", lines[7])
}

func TestRenderPickAndPlaceAcceptsPlainCoordinates(t *testing.T) {
	r := NewRenderer()

	script, err := r.Render(models.NewCommand(models.CommandPickAndPlace, map[string]interface{}{
		"x": 42.0, "y": 17.0, "z": -1.0,
		"place_x": 1.0, "place_y": 2.0,
	}))
	require.NoError(t, err)

	lines := strings.Split(script, "\n")
	require.Equal(t, "G0 X42 Y17 F1500", lines[1], "Точка забора задается координатами x/y")
	require.Equal(t, "G0 Z-1 F1500", lines[2])
	require.Equal(t, "G0 X1 Y2 F1500", lines[5])
}

func TestRenderActuatorsAndGPIO(t *testing.T) {
	r := NewRenderer()

	script, err := r.Render(models.NewCommand(models.CommandActuate, map[string]interface{}{
		"pin": "nozzle_valve", "value": 0.5,
	}))
	require.NoError(t, err)
	require.Equal(t, "SET_PIN PIN=nozzle_valve VALUE=0.5", script)

	script, err = r.Render(models.NewCommand(models.CommandActuate, map[string]interface{}{"pin": "led"}))
	require.NoError(t, err)
	require.Equal(t, "SET_PIN PIN=led VALUE=1", script, "Без значения актуатор включается")

	script, err = r.Render(models.NewCommand(models.CommandActuateOn, map[string]interface{}{"pin": "led"}))
	require.NoError(t, err)
	require.Equal(t, "SET_PIN PIN=led VALUE=1", script)

	script, err = r.Render(models.NewCommand(models.CommandActuateOff, map[string]interface{}{"pin": "led"}))
	require.NoError(t, err)
	require.Equal(t, "SET_PIN PIN=led VALUE=0", script)

	_, err = r.Render(models.NewCommand(models.CommandGPIOWrite, nil))
	require.Error(t, err, "Запись без имени пина должна отклоняться")
}

func TestRenderFeeder(t *testing.T) {
	r := NewRenderer()

	script, err := r.Render(models.NewCommand(models.CommandFeederAdvance, nil))
	require.NoError(t, err)
	require.Equal(t, "G0 E10 F100", script, "Подача использует значения по умолчанию")

	script, err = r.Render(models.NewCommand(models.CommandFeederRetract, map[string]interface{}{
		"distance": 3.0, "feedrate": 200.0,
	}))
	require.NoError(t, err)
	require.Equal(t, "G0 E-3 F200", script)
}

func TestCustomTemplateOverridesBuiltin(t *testing.T) {
	r := NewRenderer()
	r.AddTemplate(models.CommandVacuumOn, "VACUUM_ON POWER={power}")

	script, err := r.Render(models.NewCommand(models.CommandVacuumOn, map[string]interface{}{"power": 128.0}))
	require.NoError(t, err)
	require.Equal(t, "VACUUM_ON POWER=128", script)

	_, err = r.Render(models.NewCommand(models.CommandVacuumOn, nil))
	require.Error(t, err, "Отсутствующий параметр шаблона должен приводить к ошибке")
}

func TestValidatorRejectsCommand(t *testing.T) {
	r := NewRenderer()
	r.AddValidator(models.CommandFanOn, func(params map[string]interface{}) error {
		return &failingValidation{}
	})

	_, err := r.Render(models.NewCommand(models.CommandFanOn, nil))
	require.Error(t, err)
}

type failingValidation struct{}

func (f *failingValidation) Error() string { return "rejected" }
