package camera

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"teleicu/internal/devicetype"
	"teleicu/internal/models"
	"teleicu/internal/validation"
)

// PresetStore — хранилище позиционных пресетов. Реализуется
// repo.PresetStore; в тестах подменяется in-memory фейком.
type PresetStore interface {
	ByUUID(ctx context.Context, uuid string) (*models.PositionPreset, error)
	ListByCamera(ctx context.Context, cameraUUID, locationUUID string) ([]models.PositionPreset, error)
	MaxSortIndex(ctx context.Context, locationUUID string) (int, error)
	Create(ctx context.Context, p *models.PositionPreset) error
	Save(ctx context.Context, p *models.PositionPreset) error
	Delete(ctx context.Context, uuid string) error
	SetDefaultAtomic(ctx context.Context, p *models.PositionPreset) error
}

// PresetWrite — write-форма пресета. name, ptz и location обязательны,
// sort_index выдаётся автоматически, если не задан.
type PresetWrite struct {
	Name      *string          `json:"name"`
	PTZ       *json.RawMessage `json:"ptz"`
	SortIndex *int             `json:"sort_index"`
	Location  *string          `json:"location"`
}

// PresetRead — read-форма с развёрнутой локацией.
type PresetRead struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	PTZ       json.RawMessage  `json:"ptz"`
	SortIndex int              `json:"sort_index"`
	IsDefault bool             `json:"is_default"`
	Location  *locationSummary `json:"location"`
}

type locationSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Presets — жизненный цикл позиционных пресетов камеры.
type Presets struct {
	devices   devicetype.DeviceLookup
	locations LocationLookup
	store     PresetStore
}

func NewPresets(devices devicetype.DeviceLookup, locations LocationLookup, store PresetStore) *Presets {
	return &Presets{devices: devices, locations: locations, store: store}
}

func (p *Presets) parseWrite(ctx context.Context, raw json.RawMessage) (*PresetWrite, *models.FacilityLocation, error) {
	var in PresetWrite
	if err := json.Unmarshal(raw, &in); err != nil {
		e := validation.FieldErrors{}
		e.Add("body", "invalid JSON: "+err.Error())
		return nil, nil, e
	}

	errs := validation.FieldErrors{}
	if in.Name == nil || *in.Name == "" {
		errs.Add("name", "This field is required.")
	}
	if in.PTZ == nil {
		errs.Add("ptz", "This field is required.")
	} else if _, err := ParsePTZ(*in.PTZ); err != nil {
		errs.Add("ptz", err.Error())
	}
	if in.SortIndex != nil && (*in.SortIndex < models.MinSortIndex || *in.SortIndex > models.MaxSortIndex) {
		errs.Add("sort_index", "must be between 0 and 10000")
	}
	var loc *models.FacilityLocation
	if in.Location == nil || *in.Location == "" {
		errs.Add("location", "This field is required.")
	} else {
		var err error
		loc, err = p.locations.LocationByUUID(ctx, *in.Location)
		if err != nil {
			return nil, nil, err
		}
		if loc == nil {
			errs.Add("location", "Location does not exist")
		}
	}
	if !errs.Empty() {
		return nil, nil, errs
	}
	return &in, loc, nil
}

// nextSortIndex — max+1 по локации, с зажимом в допустимые границы.
func (p *Presets) nextSortIndex(ctx context.Context, locationUUID string) (int, error) {
	max, err := p.store.MaxSortIndex(ctx, locationUUID)
	if err != nil {
		return 0, err
	}
	next := max + 1
	if next > models.MaxSortIndex {
		next = models.MaxSortIndex
	}
	if next < models.MinSortIndex {
		next = models.MinSortIndex
	}
	return next, nil
}

func (p *Presets) Create(ctx context.Context, cameraUUID string, raw json.RawMessage) (*models.PositionPreset, error) {
	cam, err := p.devices.ByUUID(ctx, cameraUUID, models.CareTypeCamera)
	if err != nil {
		return nil, err
	}
	if cam == nil {
		return nil, nil
	}
	in, loc, err := p.parseWrite(ctx, raw)
	if err != nil {
		return nil, err
	}
	sortIndex := 0
	if in.SortIndex != nil {
		sortIndex = *in.SortIndex
	} else {
		sortIndex, err = p.nextSortIndex(ctx, loc.UUID)
		if err != nil {
			return nil, err
		}
	}
	preset := &models.PositionPreset{
		UUID:         uuid.NewString(),
		Name:         *in.Name,
		CameraUUID:   cam.UUID,
		LocationUUID: loc.UUID,
		PTZ:          []byte(*in.PTZ),
		SortIndex:    sortIndex,
	}
	if err := p.store.Create(ctx, preset); err != nil {
		return nil, err
	}
	return preset, nil
}

func (p *Presets) Update(ctx context.Context, cameraUUID, presetUUID string, raw json.RawMessage) (*models.PositionPreset, error) {
	preset, err := p.get(ctx, cameraUUID, presetUUID)
	if err != nil || preset == nil {
		return nil, err
	}
	in, loc, err := p.parseWrite(ctx, raw)
	if err != nil {
		return nil, err
	}
	preset.Name = *in.Name
	preset.PTZ = []byte(*in.PTZ)
	preset.LocationUUID = loc.UUID
	if in.SortIndex != nil {
		preset.SortIndex = *in.SortIndex
	}
	if err := p.store.Save(ctx, preset); err != nil {
		return nil, err
	}
	return preset, nil
}

func (p *Presets) Delete(ctx context.Context, cameraUUID, presetUUID string) (bool, error) {
	preset, err := p.get(ctx, cameraUUID, presetUUID)
	if err != nil || preset == nil {
		return false, err
	}
	return true, p.store.Delete(ctx, preset.UUID)
}

func (p *Presets) List(ctx context.Context, cameraUUID, locationUUID string) ([]models.PositionPreset, error) {
	return p.store.ListByCamera(ctx, cameraUUID, locationUUID)
}

// SetDefault делает пресет дефолтным для его пары (камера, локация).
// Если он уже дефолтный — no-op, вызывающему сообщается already=true.
func (p *Presets) SetDefault(ctx context.Context, cameraUUID, presetUUID string) (preset *models.PositionPreset, already bool, err error) {
	preset, err = p.get(ctx, cameraUUID, presetUUID)
	if err != nil || preset == nil {
		return nil, false, err
	}
	if preset.IsDefault {
		return preset, true, nil
	}
	if err := p.store.SetDefaultAtomic(ctx, preset); err != nil {
		return nil, false, err
	}
	preset.IsDefault = true
	return preset, false, nil
}

// get — пресет, принадлежащий именно этой камере. (nil, nil) — нет.
func (p *Presets) get(ctx context.Context, cameraUUID, presetUUID string) (*models.PositionPreset, error) {
	preset, err := p.store.ByUUID(ctx, presetUUID)
	if err != nil {
		return nil, err
	}
	if preset == nil || preset.CameraUUID != cameraUUID {
		return nil, nil
	}
	return preset, nil
}

// Read разворачивает пресет в ответную форму с summary локации.
func (p *Presets) Read(ctx context.Context, preset *models.PositionPreset) PresetRead {
	out := PresetRead{
		ID:        preset.UUID,
		Name:      preset.Name,
		PTZ:       json.RawMessage(preset.PTZ),
		SortIndex: preset.SortIndex,
		IsDefault: preset.IsDefault,
	}
	if loc, err := p.locations.LocationByUUID(ctx, preset.LocationUUID); err == nil && loc != nil {
		out.Location = &locationSummary{ID: loc.UUID, Name: loc.Name}
	}
	return out
}
