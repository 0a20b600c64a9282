// Package vitalsobs — тип устройства "vitals-observation": прикроватные
// мониторы и аппараты ИВЛ. Платформа их не опрашивает — показания
// приносит сам шлюз через automation-эндпоинты.
package vitalsobs

import (
	"context"
	"encoding/json"
	"net/http"

	"teleicu/internal/devicetype"
	"teleicu/internal/logs"
	"teleicu/internal/models"
	"teleicu/internal/relay"
)

const Tag = models.CareTypeVitalsObservation

type Handler struct {
	devices devicetype.DeviceLookup
}

func New(devices devicetype.DeviceLookup) *Handler {
	return &Handler{devices: devices}
}

func (h *Handler) HandleCreate(ctx context.Context, raw json.RawMessage, dev *models.Device) (*models.Device, error) {
	md, err := ValidateWrite(ctx, raw, h.devices)
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

func (h *Handler) Retrieve(ctx context.Context, dev *models.Device) (any, error) {
	gw, err := devicetype.ResolveGateway(ctx, h.devices, dev)
	if err != nil {
		logs.Logger.Warnf("vitals-observation %s: gateway lookup failed: %v", dev.UUID, err)
		gw = nil
	}
	return readFromMetadata(dev.Metadata, gw), nil
}

// Исходящих действий у мониторов нет: поток данных направлен к платформе.
func (h *Handler) PerformAction(context.Context, *models.Device, string, *http.Request) (*relay.RawResult, error) {
	return nil, devicetype.ErrNotImplemented
}
