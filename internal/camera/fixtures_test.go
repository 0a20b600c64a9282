package camera

import (
	"context"
	"sort"

	"teleicu/internal/models"
)

type fakeDevices struct {
	byUUID map[string]*models.Device
}

func (f *fakeDevices) ByUUID(_ context.Context, uuid, careType string) (*models.Device, error) {
	d := f.byUUID[uuid]
	if d == nil || d.CareType != careType {
		return nil, nil
	}
	return d, nil
}

func (f *fakeDevices) SaveMetadata(context.Context, *models.Device) error { return nil }

type fakeLocations struct {
	byUUID map[string]*models.FacilityLocation
}

func (f *fakeLocations) LocationByUUID(_ context.Context, uuid string) (*models.FacilityLocation, error) {
	return f.byUUID[uuid], nil
}

// memStore — in-memory реализация PresetStore для тестов сервиса.
type memStore struct {
	presets         map[string]*models.PositionPreset
	setDefaultCalls int
}

func newMemStore() *memStore {
	return &memStore{presets: map[string]*models.PositionPreset{}}
}

func (s *memStore) ByUUID(_ context.Context, uuid string) (*models.PositionPreset, error) {
	return s.presets[uuid], nil
}

func (s *memStore) ListByCamera(_ context.Context, cameraUUID, locationUUID string) ([]models.PositionPreset, error) {
	var out []models.PositionPreset
	for _, p := range s.presets {
		if p.CameraUUID != cameraUUID {
			continue
		}
		if locationUUID != "" && p.LocationUUID != locationUUID {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortIndex < out[j].SortIndex })
	return out, nil
}

func (s *memStore) MaxSortIndex(_ context.Context, locationUUID string) (int, error) {
	max := 0
	for _, p := range s.presets {
		if p.LocationUUID == locationUUID && p.SortIndex > max {
			max = p.SortIndex
		}
	}
	return max, nil
}

func (s *memStore) Create(_ context.Context, p *models.PositionPreset) error {
	s.presets[p.UUID] = p
	return nil
}

func (s *memStore) Save(_ context.Context, p *models.PositionPreset) error {
	s.presets[p.UUID] = p
	return nil
}

func (s *memStore) Delete(_ context.Context, uuid string) error {
	delete(s.presets, uuid)
	return nil
}

func (s *memStore) SetDefaultAtomic(_ context.Context, target *models.PositionPreset) error {
	s.setDefaultCalls++
	for _, p := range s.presets {
		if p.CameraUUID == target.CameraUUID && p.LocationUUID == target.LocationUUID {
			p.IsDefault = p.UUID == target.UUID
		}
	}
	return nil
}
