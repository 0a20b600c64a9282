package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Минимальные проекции хостовых EMR-сущностей, которые нужны плагинам.
// Хостовая система владеет полной моделью; здесь — только поля,
// читаемые/записываемые этим сервисом.

type FacilityLocation struct {
	ID        uint           `gorm:"primaryKey" json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UUID        string `gorm:"uniqueIndex;size:64;not null" json:"id"`
	Name        string `gorm:"size:255" json:"name"`
	FacilityOrg string `gorm:"size:64" json:"facility_org,omitempty"`
}

type Encounter struct {
	ID        uint           `gorm:"primaryKey" json:"-"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UUID        string `gorm:"uniqueIndex;size:64;not null" json:"id"`
	PatientUUID string `gorm:"size:64" json:"patient"`
}

type DiagnosticReport struct {
	ID        uint           `gorm:"primaryKey" json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UUID    string         `gorm:"uniqueIndex;size:64;not null" json:"id"`
	Status  string         `gorm:"size:64" json:"status"`
	Payload datatypes.JSON `gorm:"type:jsonb" json:"payload"`
}

// Observation — показание, записанное шлюзом через automated observations.
type Observation struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	CreatedAt time.Time `json:"created_at"`

	UUID          string         `gorm:"uniqueIndex;size:64;not null" json:"id"`
	EncounterUUID string         `gorm:"index;size:64;not null" json:"encounter"`
	PatientUUID   string         `gorm:"size:64" json:"patient"`
	EnteredBy     string         `gorm:"size:255" json:"data_entered_by"`
	Payload       datatypes.JSON `gorm:"type:jsonb" json:"payload"`
}
