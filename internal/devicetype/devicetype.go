// Package devicetype задаёт контракт обработчика типа устройства.
// Каждый плагин (gateway, camera, lab-analyzer, vitals-observation)
// реализует Handler и регистрируется в registry.Registry на старте.
package devicetype

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"teleicu/internal/models"
	"teleicu/internal/relay"
)

// ErrNotImplemented — у типа устройства нет такого действия.
// Обработчики обязаны падать явно, а не тихо отвечать успехом.
var ErrNotImplemented = errors.New("device action not implemented")

// Handler — полиморфный контракт типа устройства.
//
// HandleCreate/HandleUpdate валидируют raw по write-схеме типа и заменяют
// metadata устройства нормализованной формой (сохраняется только поле
// metadata). Retrieve/List валидируют сохранённое по read-схеме; если
// metadata ссылается на шлюз, его summary встраивается под ключом
// "gateway" (недоступный шлюз молча опускается). PerformAction — общий
// вход для действий; типы с выделенными relay-эндпоинтами возвращают
// (nil, nil).
type Handler interface {
	HandleCreate(ctx context.Context, raw json.RawMessage, dev *models.Device) (*models.Device, error)
	HandleUpdate(ctx context.Context, raw json.RawMessage, dev *models.Device) (*models.Device, error)
	List(ctx context.Context, dev *models.Device) (any, error)
	Retrieve(ctx context.Context, dev *models.Device) (any, error)
	PerformAction(ctx context.Context, dev *models.Device, action string, r *http.Request) (*relay.RawResult, error)
}

// DeviceLookup — интерфейс к хостовому хранилищу устройств.
type DeviceLookup interface {
	// ByUUID ищет устройство по внешнему id и care_type.
	// Возвращает (nil, nil), если устройства нет.
	ByUUID(ctx context.Context, uuid, careType string) (*models.Device, error)
	// SaveMetadata сохраняет только поле metadata.
	SaveMetadata(ctx context.Context, dev *models.Device) error
}
