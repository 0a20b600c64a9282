package repo

import (
	"context"
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"teleicu/internal/models"
)

var ErrNotFound = errors.New("not found")

type DeviceStore struct{ db *gorm.DB }

func NewDeviceStore(db *gorm.DB) *DeviceStore { return &DeviceStore{db: db} }

func (s *DeviceStore) Create(ctx context.Context, dev *models.Device) error {
	return s.db.WithContext(ctx).Create(dev).Error
}

// ByUUIDAny ищет устройство по внешнему id без фильтра по care_type.
func (s *DeviceStore) ByUUIDAny(ctx context.Context, uuid string) (*models.Device, error) {
	var d models.Device
	err := s.db.WithContext(ctx).Where("uuid = ?", uuid).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Delete мягко удаляет устройство; осиротевшие пресеты подберёт
// суточная задача очистки.
func (s *DeviceStore) Delete(ctx context.Context, uuid string) error {
	return s.db.WithContext(ctx).Where("uuid = ?", uuid).
		Delete(&models.Device{}).Error
}

// Purge жёстко удаляет строку устройства. Нужен откату create:
// мягкое удаление оставило бы uuid занятым из-за уникального индекса.
func (s *DeviceStore) Purge(ctx context.Context, uuid string) error {
	return s.db.WithContext(ctx).Unscoped().Where("uuid = ?", uuid).
		Delete(&models.Device{}).Error
}

// ByUUID ищет устройство по внешнему id и care_type.
// (nil, nil) — устройства нет; ошибка — только отказ БД.
func (s *DeviceStore) ByUUID(ctx context.Context, uuid, careType string) (*models.Device, error) {
	var d models.Device
	err := s.db.WithContext(ctx).
		Where("uuid = ? AND care_type = ?", uuid, careType).
		First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// SaveMetadata сохраняет только поле metadata — обработчики типов не
// владеют остальными полями устройства.
func (s *DeviceStore) SaveMetadata(ctx context.Context, dev *models.Device) error {
	return s.db.WithContext(ctx).Model(dev).
		Select("metadata").
		Updates(map[string]any{"metadata": dev.Metadata}).Error
}

// ListByGateway — устройства данного care_type, у которых
// metadata.gateway указывает на данный шлюз.
func (s *DeviceStore) ListByGateway(ctx context.Context, gatewayUUID, careType string) ([]models.Device, error) {
	var out []models.Device
	err := s.db.WithContext(ctx).
		Where("care_type = ?", careType).
		Where(datatypes.JSONQuery("metadata").Equals(gatewayUUID, "gateway")).
		Find(&out).Error
	return out, err
}

// ListByType — все устройства данного care_type.
func (s *DeviceStore) ListByType(ctx context.Context, careType string) ([]models.Device, error) {
	var out []models.Device
	err := s.db.WithContext(ctx).Where("care_type = ?", careType).Find(&out).Error
	return out, err
}
