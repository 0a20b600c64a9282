package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Границы sort_index у пресетов.
const (
	MinSortIndex = 0
	MaxSortIndex = 10000
)

// PositionPreset — сохранённая PTZ-позиция камеры, привязанная к локации.
// Инвариант: не более одного пресета с IsDefault=true на пару
// (камера, локация); поддерживается транзакцией в PresetStore.SetDefault.
type PositionPreset struct {
	ID        uint           `gorm:"primaryKey" json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UUID         string         `gorm:"uniqueIndex;size:64;not null" json:"id"`
	Name         string         `gorm:"size:255;not null" json:"name"`
	CameraUUID   string         `gorm:"index;size:64;not null" json:"camera"`
	LocationUUID string         `gorm:"index;size:64;not null" json:"location"`
	PTZ          datatypes.JSON `gorm:"type:jsonb" json:"ptz"`
	IsDefault    bool           `json:"is_default"`
	SortIndex    int            `json:"sort_index"`
}
