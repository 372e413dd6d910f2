package app

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/klipperplace/pnpService/internal/adapters/handlers"
	"github.com/klipperplace/pnpService/internal/config"
	"github.com/klipperplace/pnpService/internal/domain/models"
	"github.com/klipperplace/pnpService/internal/interfaces"
	"github.com/klipperplace/pnpService/internal/middleware/logging"
	"github.com/klipperplace/pnpService/internal/middleware/swagger"
	"github.com/klipperplace/pnpService/internal/services/cache"
	"github.com/klipperplace/pnpService/internal/services/executor"
	"github.com/klipperplace/pnpService/internal/services/kafka"
	"github.com/klipperplace/pnpService/internal/services/moonraker"
	"github.com/klipperplace/pnpService/internal/services/safety"
	"github.com/klipperplace/pnpService/internal/services/translator"
	"github.com/klipperplace/pnpService/internal/usecases"

	"go.uber.org/fx"
)

// New создает новый экземпляр fx.App
func New() *fx.App {
	return fx.New(
		ConfigModule,
		LoggingModule,
		ProducerModule,
		MoonrakerModule,
		EngineModule,
		UsecaseModule,
		HttpServerModule,
		// Invoke-функции для запуска фоновых задач и хуков жизненного цикла
		fx.Invoke(InvokeCacheSweeper),
		fx.Invoke(InvokeStatusStream),
		fx.Invoke(InvokeSafetyMonitoring),
		fx.Invoke(InvokeEventPublisher),
	)
}

// --- Модули FX ---

var ConfigModule = fx.Module("config_module",
	fx.Provide(config.LoadConfiguration),
)

func ProvideLogger(cfg *config.AppConfig) *logging.Logger {
	loggerCfg := &logging.Config{
		Enabled:    cfg.Logging.Enable,
		Level:      cfg.Logging.Level,
		LogsDir:    cfg.Logging.LogsDir,
		SavingDays: uint(cfg.Logging.SavingDays),
	}
	return logging.NewLogger(loggerCfg, "KlipperPlaceApp")
}

var LoggingModule = fx.Module("logging_module",
	fx.Provide(ProvideLogger),
)

var ProducerModule = fx.Module("producer_module",
	fx.Provide(kafka.NewKafkaProducer),
)

var MoonrakerModule = fx.Module("moonraker_module",
	fx.Provide(
		moonraker.NewClient,
		moonraker.NewStream,
	),
)

func ProvideSafetyMonitor(client interfaces.MoonrakerService, cacheManager *cache.Manager, logger *logging.Logger) *safety.Monitor {
	return safety.NewMonitor(client, cacheManager, logger)
}

func ProvideExecutor(client interfaces.MoonrakerService, cfg *config.AppConfig, logger *logging.Logger) *executor.Handler {
	return executor.NewHandler(client, cfg, logger)
}

var EngineModule = fx.Module("engine_module",
	fx.Provide(
		cache.NewManager,
		translator.NewRenderer,
		ProvideSafetyMonitor,
		ProvideExecutor,
		translator.NewEngine,
	),
)

var UsecaseModule = fx.Module("usecases_module",
	fx.Provide(usecases.NewUsecases),
)

func NewSwaggerConfig() *swagger.Config {
	return &swagger.Config{
		Enabled: true,
		Path:    "/swagger",
	}
}

var HttpServerModule = fx.Module("http_server_module",
	fx.Provide(
		NewSwaggerConfig,
		handlers.NewHandler,
		handlers.ProvideRouter,
	),
	fx.Invoke(InvokeHttpServer),
)

// InvokeCacheSweeper запускает фоновую очистку просроченных записей кэша.
func InvokeCacheSweeper(lc fx.Lifecycle, cacheManager *cache.Manager, logger *logging.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			cacheManager.StartSweeper()
			logger.Info("Cache sweeper started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cacheManager.StopSweeper()
			return nil
		},
	})
}

// InvokeStatusStream подключает поток событий Moonraker к инвалидации кэша.
func InvokeStatusStream(lc fx.Lifecycle, stream *moonraker.Stream, cacheManager *cache.Manager) {
	stream.OnStatusUpdate(cacheManager.HandleStatusUpdate)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			stream.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stream.Stop()
			return nil
		},
	})
}

// InvokeSafetyMonitoring запускает фоновые проверки температуры,
// позиции и состояния принтера.
func InvokeSafetyMonitoring(lc fx.Lifecycle, monitor *safety.Monitor, client interfaces.MoonrakerService) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			monitor.StartMonitoring(
				func(ctx context.Context) (map[string]interface{}, error) {
					return client.ReadSensor(ctx, "all")
				},
				func(ctx context.Context) (map[string]interface{}, error) {
					objects, err := client.QueryObjects(ctx, []string{"toolhead"})
					if err != nil {
						return nil, err
					}
					return toolheadPosition(objects), nil
				},
				func(ctx context.Context) (string, error) {
					return client.Connection(ctx)
				},
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			monitor.StopMonitoring()
			return nil
		},
	})
}

// toolheadPosition извлекает координаты x/y/z из ответа запроса toolhead.
func toolheadPosition(objects map[string]interface{}) map[string]interface{} {
	position := map[string]interface{}{}
	status, ok := objects["status"].(map[string]interface{})
	if !ok {
		status = objects
	}
	toolhead, ok := status["toolhead"].(map[string]interface{})
	if !ok {
		return position
	}
	coords, ok := toolhead["position"].([]interface{})
	if !ok {
		return position
	}
	for i, axis := range []string{"x", "y", "z"} {
		if i < len(coords) {
			position[axis] = coords[i]
		}
	}
	return position
}

// InvokeEventPublisher публикует события безопасности и переходы
// состояния выполнения в Kafka.
func InvokeEventPublisher(monitor *safety.Monitor, execHandler *executor.Handler, producer interfaces.KafkaService, logger *logging.Logger) {
	eventLogger := logger.WithPrefix("EVENTS")

	publish := func(key string, value interface{}) {
		payload, err := json.Marshal(value)
		if err != nil {
			eventLogger.Error("Failed to encode event", "key", key, "error", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := producer.Produce(ctx, []byte(key), payload); err != nil {
			eventLogger.Error("Failed to publish event", "key", key, "error", err)
		}
	}

	monitor.OnEvent(func(event models.SafetyEvent) {
		publish(string(event.Type), event)
	})

	execHandler.OnStateChange(func(from, to models.ExecutionState) {
		publish("execution_state", map[string]interface{}{
			"previous":  from,
			"current":   to,
			"timestamp": time.Now(),
		})
	})
}

// InvokeHttpServer запускает HTTP-сервер.
func InvokeHttpServer(lc fx.Lifecycle, cfg *config.AppConfig, h http.Handler, logger *logging.Logger) {
	serverAddr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      h,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("HTTP Server is starting", "address", serverAddr)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("Failed to start server", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping HTTP server...")
			return server.Shutdown(ctx)
		},
	})
}
