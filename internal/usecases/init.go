package usecases

import (
	"github.com/klipperplace/pnpService/internal/interfaces"
	"github.com/klipperplace/pnpService/internal/middleware/logging"
	"github.com/klipperplace/pnpService/internal/services/translator"
)

// UseCases - агрегатор всех use case интерфейсов
type UseCases struct {
	interfaces.Usecases
}

// NewUsecases - конструктор для UseCases
func NewUsecases(
	engine *translator.Engine,
	moonraker interfaces.MoonrakerService,
	logger *logging.Logger,
) interfaces.Usecases {
	return NewPnpUsecase(engine, moonraker, logger)
}
