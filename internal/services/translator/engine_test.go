package translator

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/klipperplace/pnpService/internal/config"
	"github.com/klipperplace/pnpService/internal/domain/models"
	"github.com/klipperplace/pnpService/internal/middleware/logging"
	"github.com/klipperplace/pnpService/internal/services/cache"
	"github.com/klipperplace/pnpService/internal/services/executor"
	"github.com/klipperplace/pnpService/internal/services/safety"
	"github.com/klipperplace/pnpService/pkg/errors"
)

// fakeMoonraker фиксирует вызовы и возвращает настраиваемые ответы.
type fakeMoonraker struct {
	mu          sync.Mutex
	scripts     []string
	scriptErr   error
	gpioCalls   int
	sensorCalls int
}

func (f *fakeMoonraker) RunScript(ctx context.Context, script string) (map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scriptErr != nil {
		return nil, f.scriptErr
	}
	f.scripts = append(f.scripts, script)
	return map[string]interface{}{"result": "ok"}, nil
}

func (f *fakeMoonraker) QueryObjects(ctx context.Context, objects []string) (map[string]interface{}, error) {
	return map[string]interface{}{"status": map[string]interface{}{}}, nil
}

func (f *fakeMoonraker) Connection(ctx context.Context) (string, error) { return "ready", nil }

func (f *fakeMoonraker) ReadGPIO(ctx context.Context, pin string) (map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gpioCalls++
	return map[string]interface{}{"pin": pin, "value": 1}, nil
}

func (f *fakeMoonraker) ReadSensor(ctx context.Context, key string) (map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sensorCalls++
	return map[string]interface{}{"sensor": key, "temperature": 24.0}, nil
}

func (f *fakeMoonraker) SetFan(ctx context.Context, fan string, speed float64) (map[string]interface{}, error) {
	return map[string]interface{}{"success": true, "fan": fan, "speed": speed}, nil
}

func (f *fakeMoonraker) SetPWM(ctx context.Context, pin string, value float64) (map[string]interface{}, error) {
	return map[string]interface{}{"success": true, "pin": pin, "value": value}, nil
}

func (f *fakeMoonraker) RampPWM(ctx context.Context, pin string, start, end, duration float64, steps int) (map[string]interface{}, error) {
	return map[string]interface{}{"success": true, "pin": pin}, nil
}

func (f *fakeMoonraker) sentScripts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	scripts := make([]string, len(f.scripts))
	copy(scripts, f.scripts)
	return scripts
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Engine: config.EngineConfig{
			QueueMaxSize:      100,
			HistoryMaxEntries: 100,
			DefaultTimeoutMs:  1000,
		},
		Cache: config.CacheConfig{
			DefaultTTLMs:      1000,
			MaxSize:           100,
			CleanupIntervalMs: 60000,
		},
	}
}

func testLogger() *logging.Logger {
	return logging.NewLogger(&logging.Config{Enabled: false}, "TEST")
}

func newTestEngine(fake *fakeMoonraker) *Engine {
	cfg := testConfig()
	logger := testLogger()
	cacheManager := cache.NewManager(cfg, logger)
	monitor := safety.NewMonitor(fake, cacheManager, logger)
	handler := executor.NewHandler(fake, cfg, logger)
	return NewEngine(fake, NewRenderer(), cacheManager, monitor, handler, logger)
}

func TestExecuteMoveSuccess(t *testing.T) {
	fake := &fakeMoonraker{}
	e := newTestEngine(fake)

	resp := e.Execute(context.Background(), models.NewCommand(models.CommandMove, map[string]interface{}{
		"x": 100.0, "y": 50.0, "feedrate": 3000.0,
	}))

	require.Equal(t, models.StatusSuccess, resp.Status)
	require.Equal(t, "G0 X100 Y50 F3000", resp.Data["gcode"])
	require.Equal(t, []string{"G0 X100 Y50 F3000"}, fake.sentScripts())

	state := e.State()
	require.Equal(t, 100.0, state.Position["x"], "Позиция должна обновиться после успеха")
	require.Equal(t, 50.0, state.Position["y"])
}

func TestExecuteUnknownCommand(t *testing.T) {
	e := newTestEngine(&fakeMoonraker{})

	resp := e.Execute(context.Background(), models.Command{Type: "teleport"})
	require.Equal(t, models.StatusError, resp.Status)
	require.Equal(t, errors.CodeUnknownCommand, resp.ErrorCode)
}

func TestBoundsViolationSkipsDownstream(t *testing.T) {
	fake := &fakeMoonraker{}
	e := newTestEngine(fake)

	resp := e.Execute(context.Background(), models.NewCommand(models.CommandMove, map[string]interface{}{
		"x": 9999.0,
	}))

	require.Equal(t, models.StatusError, resp.Status)
	require.Equal(t, errors.CodeBoundsViolation, resp.ErrorCode)
	require.Empty(t, fake.sentScripts(), "Отклоненная команда не должна достигать прошивки")

	state := e.State()
	require.Equal(t, 0.0, state.Position["x"], "Состояние не меняется при отклонении")

	events := e.Safety().EventHistory(0, models.EventBoundsViolation, "")
	require.Len(t, events, 1, "Нарушение должно фиксироваться в журнале")
}

func TestPickAndPlaceValidatesBothPoints(t *testing.T) {
	fake := &fakeMoonraker{}
	e := newTestEngine(fake)

	resp := e.Execute(context.Background(), models.NewCommand(models.CommandPickAndPlace, map[string]interface{}{
		"x": 10.0, "y": 10.0, "place_x": 9999.0,
	}))
	require.Equal(t, errors.CodeBoundsViolation, resp.ErrorCode, "Точка установки проверяется по лимитам")
	require.Empty(t, fake.sentScripts())

	resp = e.Execute(context.Background(), models.NewCommand(models.CommandPickAndPlace, map[string]interface{}{
		"pick_x": 9999.0, "place_x": 10.0,
	}))
	require.Equal(t, errors.CodeBoundsViolation, resp.ErrorCode, "Точка забора проверяется и в запасной нотации")
	require.Empty(t, fake.sentScripts())
}

func TestPickAndPlaceUpdatesPositionFromPickPoint(t *testing.T) {
	fake := &fakeMoonraker{}
	e := newTestEngine(fake)

	resp := e.Execute(context.Background(), models.NewCommand(models.CommandPickAndPlace, map[string]interface{}{
		"x": 42.0, "y": 17.0, "z": -1.0,
		"place_x": 30.0, "place_y": 40.0,
	}))
	require.Equal(t, models.StatusSuccess, resp.Status)

	scripts := fake.sentScripts()
	require.Len(t, scripts, 1)
	require.Contains(t, scripts[0], "G0 X42 Y17 F1500", "Забор выполняется в координатах x/y")

	state := e.State()
	require.Equal(t, 42.0, state.Position["x"], "Снимок позиции обновляется из x/y/z")
	require.Equal(t, 17.0, state.Position["y"])
	require.Equal(t, -1.0, state.Position["z"])
}

func TestActuateWithoutValueTurnsOn(t *testing.T) {
	fake := &fakeMoonraker{}
	e := newTestEngine(fake)

	resp := e.Execute(context.Background(), models.NewCommand(models.CommandActuate, map[string]interface{}{
		"pin": "led",
	}))
	require.Equal(t, models.StatusSuccess, resp.Status)
	require.Equal(t, "SET_PIN PIN=led VALUE=1", resp.Data["gcode"], "Без значения актуатор включается")

	state := e.State()
	require.Equal(t, 1.0, state.Actuators["led"])
}

func TestEmergencyStopBlocksInstructionCommands(t *testing.T) {
	fake := &fakeMoonraker{}
	e := newTestEngine(fake)

	e.Safety().EmergencyStop(context.Background(), "test")

	resp := e.Execute(context.Background(), models.NewCommand(models.CommandMove, map[string]interface{}{"x": 1.0}))
	require.Equal(t, errors.CodeEmergencyStopActive, resp.ErrorCode)

	// Прямые чтения остаются доступными.
	resp = e.Execute(context.Background(), models.NewCommand(models.CommandGPIORead, map[string]interface{}{"pin": "p1"}))
	require.Equal(t, models.StatusSuccess, resp.Status)

	e.Safety().ClearEmergencyStop()
	resp = e.Execute(context.Background(), models.NewCommand(models.CommandMove, map[string]interface{}{"x": 1.0}))
	require.Equal(t, models.StatusSuccess, resp.Status)
}

func TestExecuteBatchStopOnError(t *testing.T) {
	fake := &fakeMoonraker{}
	e := newTestEngine(fake)

	cmds := []models.Command{
		models.NewCommand(models.CommandMove, map[string]interface{}{"x": 10.0}),
		models.NewCommand(models.CommandMove, map[string]interface{}{"x": 9999.0}),
		models.NewCommand(models.CommandMove, map[string]interface{}{"x": 20.0}),
	}

	responses := e.ExecuteBatch(context.Background(), cmds, true)
	require.Len(t, responses, 2, "Ответ отклоненной команды включается, остальные не выполняются")
	require.Equal(t, models.StatusSuccess, responses[0].Status)
	require.Equal(t, errors.CodeBoundsViolation, responses[1].ErrorCode)

	responses = e.ExecuteBatch(context.Background(), cmds, false)
	require.Len(t, responses, 3, "Без stop_on_error выполняются все команды")
	require.Equal(t, models.StatusSuccess, responses[2].Status)
}

func TestEnqueueAndProcessQueue(t *testing.T) {
	fake := &fakeMoonraker{}
	e := newTestEngine(fake)

	_, err := e.Enqueue(context.Background(), models.NewCommand(models.CommandVacuumOn, nil), 1)
	require.NoError(t, err)
	_, err = e.Enqueue(context.Background(), models.NewCommand(models.CommandVacuumOff, nil), 5)
	require.NoError(t, err)

	info := e.Executor().QueueStatus()
	require.Equal(t, 2, info.Size)
	require.Equal(t, "M107", info.Snapshot[0].Instruction, "Команда с большим приоритетом выполняется первой")

	responses := e.ProcessQueue(context.Background(), true)
	require.Len(t, responses, 2)
	for _, resp := range responses {
		require.Equal(t, models.StatusSuccess, resp.Status)
	}
	require.Equal(t, []string{"M107", "M106 S255"}, fake.sentScripts())
}

func TestEnqueueRejectsUnsafeCommand(t *testing.T) {
	e := newTestEngine(&fakeMoonraker{})

	_, err := e.Enqueue(context.Background(), models.NewCommand(models.CommandMove, map[string]interface{}{
		"x": -50.0,
	}), 0)
	require.Error(t, err)
	require.True(t, errors.IsSafetyViolation(err))
}

func TestGpioReadUsesCache(t *testing.T) {
	fake := &fakeMoonraker{}
	e := newTestEngine(fake)

	cmd := models.NewCommand(models.CommandGPIORead, map[string]interface{}{"pin": "p7"})
	resp := e.Execute(context.Background(), cmd)
	require.Equal(t, models.StatusSuccess, resp.Status)

	resp = e.Execute(context.Background(), cmd)
	require.Equal(t, models.StatusSuccess, resp.Status)
	require.Equal(t, 1, fake.gpioCalls, "Повторное чтение в пределах TTL обслуживается кэшем")
}

func TestSystemCommandsDriveExecutor(t *testing.T) {
	fake := &fakeMoonraker{}
	e := newTestEngine(fake)

	resp := e.Execute(context.Background(), models.NewCommand(models.CommandCancel, nil))
	require.Equal(t, models.StatusSuccess, resp.Status)
	require.Equal(t, models.StateStopped, e.Executor().State())

	// Флаг отмены действует до reset.
	resp = e.Execute(context.Background(), models.NewCommand(models.CommandVacuumOn, nil))
	require.Equal(t, models.StatusCancelled, resp.Status)

	resp = e.Execute(context.Background(), models.NewCommand(models.CommandReset, nil))
	require.Equal(t, models.StatusSuccess, resp.Status)
	require.Equal(t, models.StateIdle, e.Executor().State())

	resp = e.Execute(context.Background(), models.NewCommand(models.CommandVacuumOn, nil))
	require.Equal(t, models.StatusSuccess, resp.Status)
}

func TestHomeMarksAxes(t *testing.T) {
	fake := &fakeMoonraker{}
	e := newTestEngine(fake)

	resp := e.Execute(context.Background(), models.NewCommand(models.CommandHome, map[string]interface{}{"axes": "x y"}))
	require.Equal(t, models.StatusSuccess, resp.Status)

	state := e.State()
	require.ElementsMatch(t, []string{"X", "Y"}, state.HomedAxes)
	require.ElementsMatch(t, []string{"X", "Y"}, e.Safety().HomedAxes())
}
