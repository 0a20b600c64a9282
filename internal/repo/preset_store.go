package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"teleicu/internal/models"
)

type PresetStore struct{ db *gorm.DB }

func NewPresetStore(db *gorm.DB) *PresetStore { return &PresetStore{db: db} }

func (s *PresetStore) ByUUID(ctx context.Context, uuid string) (*models.PositionPreset, error) {
	var p models.PositionPreset
	err := s.db.WithContext(ctx).Where("uuid = ?", uuid).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByCamera возвращает пресеты камеры; locationUUID — необязательный
// фильтр. Порядок — по sort_index.
func (s *PresetStore) ListByCamera(ctx context.Context, cameraUUID, locationUUID string) ([]models.PositionPreset, error) {
	q := s.db.WithContext(ctx).Where("camera_uuid = ?", cameraUUID)
	if locationUUID != "" {
		q = q.Where("location_uuid = ?", locationUUID)
	}
	var out []models.PositionPreset
	err := q.Order("sort_index asc, id asc").Find(&out).Error
	return out, err
}

// MaxSortIndex — текущий максимум sort_index для локации (0, если пусто).
func (s *PresetStore) MaxSortIndex(ctx context.Context, locationUUID string) (int, error) {
	var max *int
	err := s.db.WithContext(ctx).Model(&models.PositionPreset{}).
		Where("location_uuid = ?", locationUUID).
		Select("max(sort_index)").Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

func (s *PresetStore) Create(ctx context.Context, p *models.PositionPreset) error {
	return s.db.WithContext(ctx).Create(p).Error
}

func (s *PresetStore) Save(ctx context.Context, p *models.PositionPreset) error {
	return s.db.WithContext(ctx).Save(p).Error
}

func (s *PresetStore) Delete(ctx context.Context, uuid string) error {
	return s.db.WithContext(ctx).Where("uuid = ?", uuid).
		Delete(&models.PositionPreset{}).Error
}

// SetDefaultAtomic одной транзакцией снимает default со всех пресетов
// пары (камера, локация) и ставит его целевому. Порядок «сначала
// снять, потом поставить» исключает окно с двумя default; транзакция
// на уровне БД, потому что процессов-обработчиков может быть несколько.
func (s *PresetStore) SetDefaultAtomic(ctx context.Context, p *models.PositionPreset) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PositionPreset{}).
			Where("camera_uuid = ? AND location_uuid = ? AND uuid <> ?",
				p.CameraUUID, p.LocationUUID, p.UUID).
			Update("is_default", false).Error; err != nil {
			return err
		}
		return tx.Model(&models.PositionPreset{}).
			Where("uuid = ?", p.UUID).
			Update("is_default", true).Error
	})
}

// CleanupOrphaned мягко удаляет пресеты, чья камера или локация уже
// удалена. Запускается планировщиком раз в сутки.
func (s *PresetStore) CleanupOrphaned(ctx context.Context) (int64, error) {
	deadDevices := s.db.Model(&models.Device{}).Unscoped().
		Select("uuid").Where("deleted_at IS NOT NULL")
	deadLocations := s.db.Model(&models.FacilityLocation{}).Unscoped().
		Select("uuid").Where("deleted_at IS NOT NULL")

	res := s.db.WithContext(ctx).
		Where("camera_uuid IN (?) OR location_uuid IN (?)", deadDevices, deadLocations).
		Delete(&models.PositionPreset{})
	return res.RowsAffected, res.Error
}
