package moonraker

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/klipperplace/pnpService/internal/config"
	"github.com/klipperplace/pnpService/internal/middleware/logging"
)

// StatusUpdateHandler получает дельту состояния из notify_status_update.
// Ключ карты - имя объекта Klipper (toolhead, fan, output_pin <name>, ...).
type StatusUpdateHandler func(status map[string]interface{})

// subscribedObjects - группы объектов, изменения которых транслируются
// подписчикам потока событий.
var subscribedObjects = []string{
	"output_pin",
	"fan",
	"toolhead",
	"temperature_sensor",
	"heaters",
	"print_stats",
}

// Stream поддерживает WebSocket подключение к Moonraker и рассылает
// уведомления notify_status_update зарегистрированным обработчикам.
// При обрыве соединения подключается заново с растущей задержкой.
type Stream struct {
	url    string
	logger *logging.Logger

	mu       sync.Mutex
	handlers []StatusUpdateHandler
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewStream создает новый поток событий Moonraker
func NewStream(cfg *config.AppConfig, logger *logging.Logger) *Stream {
	return &Stream{
		url:    cfg.Moonraker.WebsocketURL(),
		logger: logger.WithPrefix("MOONRAKER-WS"),
	}
}

// OnStatusUpdate регистрирует обработчик дельт состояния.
func (s *Stream) OnStatusUpdate(handler StatusUpdateHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, handler)
}

// Start запускает фоновый цикл чтения событий.
func (s *Stream) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx)
	s.logger.Info("Status stream started", "url", s.url)
}

// Stop останавливает цикл чтения и закрывает соединение.
func (s *Stream) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("Status stream stopped")
}

func (s *Stream) run(ctx context.Context) {
	defer close(s.done)

	backoff := time.Second
	for {
		if err := s.connectAndRead(ctx); err != nil {
			s.logger.Warn("Status stream disconnected", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (s *Stream) connectAndRead(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	objects := make(map[string]interface{}, len(subscribedObjects))
	for _, obj := range subscribedObjects {
		objects[obj] = nil
	}
	subscribe := map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "printer.objects.subscribe",
		"params":  map[string]interface{}{"objects": objects},
		"id":      1,
	}
	if err := conn.WriteJSON(subscribe); err != nil {
		return err
	}
	s.logger.Info("Subscribed to printer objects", "count", len(subscribedObjects))

	for {
		var msg struct {
			Method string        `json:"method"`
			Params []interface{} `json:"params"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if msg.Method != "notify_status_update" || len(msg.Params) == 0 {
			continue
		}
		status, ok := msg.Params[0].(map[string]interface{})
		if !ok {
			continue
		}
		s.dispatch(status)
	}
}

func (s *Stream) dispatch(status map[string]interface{}) {
	s.mu.Lock()
	handlers := make([]StatusUpdateHandler, len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.Unlock()

	for _, handler := range handlers {
		handler(status)
	}
}
