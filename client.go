package klipperplace

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/klipperplace/pnpService/internal/config"
	"github.com/klipperplace/pnpService/internal/domain/models"
	"github.com/klipperplace/pnpService/internal/middleware/logging"
	"github.com/klipperplace/pnpService/internal/services/cache"
	"github.com/klipperplace/pnpService/internal/services/executor"
	"github.com/klipperplace/pnpService/internal/services/moonraker"
	"github.com/klipperplace/pnpService/internal/services/safety"
	"github.com/klipperplace/pnpService/internal/services/translator"
)

// Client является основной точкой входа для взаимодействия с библиотекой.
type Client struct {
	engine *translator.Engine
	stream *moonraker.Stream
	config *Config
	logger *logrus.Logger
}

// New создает и возвращает новый экземпляр клиента.
// Клиент владеет полным конвейером: трансляция, безопасность, кэш и
// выполнение. Поток событий Moonraker запускается сразу.
func New(cfg *Config) (*Client, error) {
	logger := logrus.New()

	if cfg.LogLevel == "off" || cfg.LogLevel == "none" {
		logger.SetOutput(io.Discard)
	} else {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			level = logrus.InfoLevel
		}
		logger.SetLevel(level)
		logger.SetOutput(os.Stdout)
	}

	// Настраиваем форматтер с понятным форматом времени
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		ForceColors:     true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	appCfg, err := config.LoadConfiguration()
	if err != nil {
		return nil, err
	}
	appCfg.Moonraker.Host = cfg.Host
	appCfg.Moonraker.Port = cfg.Port
	appCfg.Moonraker.APIKey = cfg.APIKey
	appCfg.Moonraker.TimeoutMs = cfg.TimeoutMs

	internalLogger := logging.NewLogger(&logging.Config{
		Enabled: cfg.LogLevel != "off" && cfg.LogLevel != "none",
		Level:   cfg.LogLevel,
	}, "KlipperPlace")

	client := moonraker.NewClient(appCfg, internalLogger)
	cacheManager := cache.NewManager(appCfg, internalLogger)
	monitor := safety.NewMonitor(client, cacheManager, internalLogger)
	handler := executor.NewHandler(client, appCfg, internalLogger)
	engine := translator.NewEngine(client, translator.NewRenderer(), cacheManager, monitor, handler, internalLogger)

	stream := moonraker.NewStream(appCfg, internalLogger)
	stream.OnStatusUpdate(cacheManager.HandleStatusUpdate)
	stream.Start()
	cacheManager.StartSweeper()

	return &Client{
		engine: engine,
		stream: stream,
		config: cfg,
		logger: logger,
	}, nil
}

// Close останавливает фоновые задачи клиента.
func (c *Client) Close() {
	if c.stream != nil {
		c.stream.Stop()
	}
	c.engine.Cache().StopSweeper()
}

// GetLogger возвращает используемый логгер.
func (c *Client) GetLogger() *logrus.Logger {
	return c.logger
}

// Execute выполняет одну семантическую команду.
func (c *Client) Execute(ctx context.Context, commandType string, params map[string]interface{}) (models.Response, error) {
	ct, err := models.ParseCommandType(commandType)
	if err != nil {
		return models.Response{}, err
	}
	return c.engine.Execute(ctx, models.NewCommand(ct, params)), nil
}

// ExecuteBatch выполняет пакет команд последовательно.
func (c *Client) ExecuteBatch(ctx context.Context, cmds []models.Command, stopOnError bool) []models.Response {
	return c.engine.ExecuteBatch(ctx, cmds, stopOnError)
}

// Enqueue помещает команду в очередь выполнения.
func (c *Client) Enqueue(ctx context.Context, commandType string, params map[string]interface{}, priority int) (string, error) {
	ct, err := models.ParseCommandType(commandType)
	if err != nil {
		return "", err
	}
	return c.engine.Enqueue(ctx, models.NewCommand(ct, params), priority)
}

// ProcessQueue выполняет все команды очереди.
func (c *Client) ProcessQueue(ctx context.Context, stopOnError bool) []models.Response {
	return c.engine.ProcessQueue(ctx, stopOnError)
}

// GetQueueInfo возвращает состояние очереди команд.
func (c *Client) GetQueueInfo() models.QueueInfo {
	return c.engine.Executor().QueueStatus()
}

// GetDeviceState возвращает отслеживаемое состояние устройства.
func (c *Client) GetDeviceState() models.DeviceState {
	return c.engine.State()
}

// GetHistory возвращает журнал выполнения.
func (c *Client) GetHistory(limit int) []models.HistoryEntry {
	return c.engine.Executor().History(limit, "", time.Time{})
}

// GetStatistics возвращает сводную статистику выполнения.
func (c *Client) GetStatistics() map[string]interface{} {
	return c.engine.Executor().Statistics()
}

// GetSafetyLimits возвращает действующие лимиты безопасности.
func (c *Client) GetSafetyLimits() models.SafetyLimits {
	return c.engine.Safety().CurrentLimits()
}

// UpdateSafetyLimits изменяет лимиты безопасности по имени поля.
func (c *Client) UpdateSafetyLimits(limits map[string]float64) {
	c.engine.Safety().UpdateLimits(limits)
}

// GetSafetyEvents возвращает журнал событий безопасности.
func (c *Client) GetSafetyEvents(limit int) []models.SafetyEvent {
	return c.engine.Safety().EventHistory(limit, "", "")
}

// EmergencyStop активирует аварийную остановку.
func (c *Client) EmergencyStop(ctx context.Context, reason string) models.SafetyEvent {
	return c.engine.Safety().EmergencyStop(ctx, reason)
}

// ClearEmergencyStop снимает аварийную остановку.
func (c *Client) ClearEmergencyStop() {
	c.engine.Safety().ClearEmergencyStop()
}

// GetCacheStatistics возвращает статистику кэша состояний.
func (c *Client) GetCacheStatistics() models.CacheStatistics {
	return c.engine.Cache().Statistics()
}

// AddTemplate регистрирует пользовательский шаблон инструкций.
func (c *Client) AddTemplate(commandType string, template string) error {
	ct, err := models.ParseCommandType(commandType)
	if err != nil {
		return err
	}
	c.engine.Renderer().AddTemplate(ct, template)
	return nil
}
