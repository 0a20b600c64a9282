package devicetype

import (
	"context"

	"teleicu/internal/models"
)

// ResolveGateway достаёт устройство-шлюз, на которое ссылается metadata
// (ключ "gateway"). (nil, nil) — ссылки нет или шлюз не найден.
func ResolveGateway(ctx context.Context, devices DeviceLookup, dev *models.Device) (*models.Device, error) {
	id, _ := dev.Metadata["gateway"].(string)
	if id == "" {
		return nil, nil
	}
	return devices.ByUUID(ctx, id, models.CareTypeGateway)
}
