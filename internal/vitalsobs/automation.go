package vitalsobs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"teleicu/internal/auth"
	"teleicu/internal/logs"
	"teleicu/internal/models"
	"teleicu/internal/validation"
)

// GatewayInventory — устройства данного типа, привязанные к шлюзу.
type GatewayInventory interface {
	ListByGateway(ctx context.Context, gatewayUUID, careType string) ([]models.Device, error)
}

// EncounterLookup — случаи госпитализации хост-платформы.
type EncounterLookup interface {
	EncounterByUUID(ctx context.Context, uuid string) (*models.Encounter, error)
}

// ObservationWriter — bulk-запись показаний.
type ObservationWriter interface {
	CreateObservations(ctx context.Context, obs []models.Observation) error
}

// Automation — эндпоинты для самого шлюза: инвентарь мониторов и
// автоматическая запись показаний. Вызывающий уже аутентифицирован
// auth-middleware, его устройство-шлюз лежит в контексте запроса.
type Automation struct {
	inventory  GatewayInventory
	encounters EncounterLookup
	writer     ObservationWriter
}

func NewAutomation(inventory GatewayInventory, encounters EncounterLookup, writer ObservationWriter) *Automation {
	return &Automation{inventory: inventory, encounters: encounters, writer: writer}
}

type deviceListing struct {
	ID              string `json:"id"`
	EndpointAddress string `json:"endpoint_address,omitempty"`
	Type            string `json:"type,omitempty"`
}

// ListDevices отдаёт шлюзу мониторы, с которых он должен снимать данные.
func (a *Automation) ListDevices(w http.ResponseWriter, r *http.Request) {
	gw := auth.GatewayFrom(r)
	if gw == nil {
		models.WriteProblem(w, http.StatusUnauthorized, "Unauthorized", "", nil)
		return
	}
	devs, err := a.inventory.ListByGateway(r.Context(), gw.UUID, Tag)
	if err != nil {
		logs.Logger.Errorf("vitals-observation: inventory for %s: %v", gw.UUID, err)
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "", nil)
		return
	}
	out := make([]deviceListing, 0, len(devs))
	for _, d := range devs {
		item := deviceListing{ID: d.UUID}
		if v, ok := d.Metadata["endpoint_address"].(string); ok {
			item.EndpointAddress = v
		}
		if v, ok := d.Metadata["type"].(string); ok {
			item.Type = v
		}
		out = append(out, item)
	}
	models.WriteJSON(w, http.StatusOK, map[string]any{
		"count":   len(out),
		"results": out,
	})
}

type observationIn struct {
	Device  string          `json:"device"`
	Payload json.RawMessage `json:"payload"`
}

// RecordObservations принимает пакет показаний. Показание привязывается
// к текущему encounter устройства; монитор без активного encounter —
// ошибка, снятое показание некому приписать.
func (a *Automation) RecordObservations(w http.ResponseWriter, r *http.Request) {
	gw := auth.GatewayFrom(r)
	if gw == nil {
		models.WriteProblem(w, http.StatusUnauthorized, "Unauthorized", "", nil)
		return
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", err.Error(), nil)
		return
	}
	var in []observationIn
	if err := json.Unmarshal(raw, &in); err != nil {
		e := validation.FieldErrors{}
		e.Add("body", "invalid JSON: "+err.Error())
		validation.Write(w, e)
		return
	}
	if len(in) == 0 {
		models.WriteJSON(w, http.StatusOK, map[string]any{"created": 0})
		return
	}

	ctx := r.Context()
	devs, err := a.inventory.ListByGateway(ctx, gw.UUID, Tag)
	if err != nil {
		logs.Logger.Errorf("vitals-observation: inventory for %s: %v", gw.UUID, err)
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "", nil)
		return
	}
	known := make(map[string]*models.Device, len(devs))
	for i := range devs {
		known[devs[i].UUID] = &devs[i]
	}

	errs := validation.FieldErrors{}
	obs := make([]models.Observation, 0, len(in))
	for i, item := range in {
		field := fmt.Sprintf("observations[%d]", i)
		dev := known[item.Device]
		if dev == nil {
			errs.Add(field, "Device does not belong to this gateway")
			continue
		}
		if dev.CurrentEncounterUUID == "" {
			errs.Add(field, "Device has no active encounter")
			continue
		}
		enc, err := a.encounters.EncounterByUUID(ctx, dev.CurrentEncounterUUID)
		if err != nil {
			logs.Logger.Errorf("vitals-observation: encounter %s: %v", dev.CurrentEncounterUUID, err)
			models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "", nil)
			return
		}
		if enc == nil {
			errs.Add(field, "Device has no active encounter")
			continue
		}
		obs = append(obs, models.Observation{
			UUID:          uuid.NewString(),
			EncounterUUID: enc.UUID,
			PatientUUID:   enc.PatientUUID,
			EnteredBy:     auth.PrincipalFrom(r),
			Payload:       datatypes.JSON(item.Payload),
		})
	}
	if !errs.Empty() {
		validation.Write(w, errs)
		return
	}
	if err := a.writer.CreateObservations(ctx, obs); err != nil {
		logs.Logger.Errorf("vitals-observation: bulk create: %v", err)
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "", nil)
		return
	}
	models.WriteJSON(w, http.StatusCreated, map[string]any{"created": len(obs)})
}
