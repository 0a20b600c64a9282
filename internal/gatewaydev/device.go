// Package gatewaydev — тип устройства "gateway": промежуточное сетевое
// устройство, через которое платформа достаёт физическое оборудование
// у койки. Сам по себе исходящих relay-вызовов не делает.
package gatewaydev

import (
	"context"
	"encoding/json"
	"net/http"

	"teleicu/internal/devicetype"
	"teleicu/internal/models"
	"teleicu/internal/relay"
)

const Tag = models.CareTypeGateway

type Handler struct {
	devices devicetype.DeviceLookup
}

func New(devices devicetype.DeviceLookup) *Handler {
	return &Handler{devices: devices}
}

func (h *Handler) HandleCreate(ctx context.Context, raw json.RawMessage, dev *models.Device) (*models.Device, error) {
	md, err := ValidateWrite(raw)
	if err != nil {
		return nil, err
	}
	dev.Metadata = md
	if err := h.devices.SaveMetadata(ctx, dev); err != nil {
		return nil, err
	}
	return dev, nil
}

func (h *Handler) HandleUpdate(ctx context.Context, raw json.RawMessage, dev *models.Device) (*models.Device, error) {
	return h.HandleCreate(ctx, raw, dev)
}

func (h *Handler) List(ctx context.Context, dev *models.Device) (any, error) {
	return h.Retrieve(ctx, dev)
}

func (h *Handler) Retrieve(_ context.Context, dev *models.Device) (any, error) {
	return ReadFromMetadata(dev.Metadata), nil
}

func (h *Handler) PerformAction(context.Context, *models.Device, string, *http.Request) (*relay.RawResult, error) {
	return nil, devicetype.ErrNotImplemented
}
