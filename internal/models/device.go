package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Типы устройств, известные реестру.
const (
	CareTypeGateway           = "gateway"
	CareTypeCamera            = "camera"
	CareTypeLabAnalyzer       = "lab-analyzer"
	CareTypeVitalsObservation = "vitals-observation"
)

// Device — периферийное устройство у койки пациента.
// Metadata — единственное состояние, которым владеют плагины;
// форма metadata зависит от CareType и валидируется его обработчиком.
type Device struct {
	ID        uint           `gorm:"primaryKey" json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UUID     string            `gorm:"uniqueIndex;size:64;not null" json:"id"`
	Name     string            `gorm:"size:255" json:"name"`
	CareType string            `gorm:"index;size:64;not null" json:"care_type"`
	Metadata datatypes.JSONMap `gorm:"type:jsonb" json:"metadata"`

	// Кэш организационной принадлежности и текущее размещение —
	// заполняются хостовой EMR, здесь только читаются.
	FacilityOrg          string `gorm:"size:64" json:"facility_org,omitempty"`
	CurrentLocationUUID  string `gorm:"size:64" json:"current_location,omitempty"`
	CurrentEncounterUUID string `gorm:"size:64" json:"current_encounter,omitempty"`
}

// Summary — read-only представление устройства, встраиваемое в ответы
// других плагинов (ключ "gateway" в retrieve).
type Summary struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	CareType string `json:"care_type"`
}

func (d *Device) Summary() Summary {
	return Summary{ID: d.UUID, Name: d.Name, CareType: d.CareType}
}
