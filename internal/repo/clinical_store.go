package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"teleicu/internal/models"
)

// ClinicalStore — минимальный доступ к хостовым EMR-сущностям,
// которые нужны плагинам (локации, encounter'ы, отчёты, показания).
type ClinicalStore struct{ db *gorm.DB }

func NewClinicalStore(db *gorm.DB) *ClinicalStore { return &ClinicalStore{db: db} }

func (s *ClinicalStore) LocationByUUID(ctx context.Context, uuid string) (*models.FacilityLocation, error) {
	var l models.FacilityLocation
	err := s.db.WithContext(ctx).Where("uuid = ?", uuid).First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *ClinicalStore) EncounterByUUID(ctx context.Context, uuid string) (*models.Encounter, error) {
	var e models.Encounter
	err := s.db.WithContext(ctx).Where("uuid = ?", uuid).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *ClinicalStore) DiagnosticReportByUUID(ctx context.Context, uuid string) (*models.DiagnosticReport, error) {
	var r models.DiagnosticReport
	err := s.db.WithContext(ctx).Where("uuid = ?", uuid).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateObservations — bulk-вставка показаний, пришедших от шлюза.
func (s *ClinicalStore) CreateObservations(ctx context.Context, obs []models.Observation) error {
	if len(obs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&obs).Error
}
