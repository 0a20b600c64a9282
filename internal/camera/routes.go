package camera

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"teleicu/internal/logs"
	"teleicu/internal/models"
)

// RegisterRoutes монтирует действия камеры и CRUD пресетов под
// /camera/{uuid}. Действия защищаются движком прав, пресеты — только
// аутентификацией хост-платформы (маршруты вешаются уже за middleware).
func RegisterRoutes(r *mux.Router, a *Actions, p *Presets) {
	c := r.PathPrefix("/camera/{uuid}").Subrouter()

	c.HandleFunc("/actions/get_status", a.GetStatus).Methods(http.MethodGet)
	c.HandleFunc("/actions/get_presets", a.GetPresets).Methods(http.MethodGet)
	c.HandleFunc("/actions/goto_preset", a.GotoPreset).Methods(http.MethodPost)
	c.HandleFunc("/actions/absolute_move", a.AbsoluteMove).Methods(http.MethodPost)
	c.HandleFunc("/actions/relative_move", a.RelativeMove).Methods(http.MethodPost)
	// чтение токена потока — GET; POST к шлюзу делает сам relay
	c.HandleFunc("/actions/stream_token", a.StreamToken).Methods(http.MethodGet)

	api := &presetAPI{presets: p}
	c.HandleFunc("/position_presets", api.list).Methods(http.MethodGet)
	c.HandleFunc("/position_presets", api.create).Methods(http.MethodPost)
	c.HandleFunc("/position_presets/{preset_uuid}", api.retrieve).Methods(http.MethodGet)
	c.HandleFunc("/position_presets/{preset_uuid}", api.update).Methods(http.MethodPut)
	c.HandleFunc("/position_presets/{preset_uuid}", api.delete).Methods(http.MethodDelete)
	c.HandleFunc("/position_presets/{preset_uuid}/set_default", api.setDefault).Methods(http.MethodPost)
}

type presetAPI struct {
	presets *Presets
}

func (h *presetAPI) list(w http.ResponseWriter, r *http.Request) {
	cameraUUID := mux.Vars(r)["uuid"]
	out, err := h.presets.List(r.Context(), cameraUUID, r.URL.Query().Get("location"))
	if err != nil {
		writeInternal(w, "preset list", err)
		return
	}
	reads := make([]PresetRead, 0, len(out))
	for i := range out {
		reads = append(reads, h.presets.Read(r.Context(), &out[i]))
	}
	models.WriteJSON(w, http.StatusOK, map[string]any{
		"count":   len(reads),
		"results": reads,
	})
}

func (h *presetAPI) create(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", err.Error(), nil)
		return
	}
	preset, err := h.presets.Create(r.Context(), mux.Vars(r)["uuid"], raw)
	if err != nil {
		writeActionError(w, err)
		return
	}
	if preset == nil {
		models.WriteProblem(w, http.StatusNotFound, "Device Not Found", "", nil)
		return
	}
	models.WriteJSON(w, http.StatusCreated, h.presets.Read(r.Context(), preset))
}

func (h *presetAPI) retrieve(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	preset, err := h.presets.get(r.Context(), v["uuid"], v["preset_uuid"])
	if err != nil {
		writeInternal(w, "preset retrieve", err)
		return
	}
	if preset == nil {
		models.WriteProblem(w, http.StatusNotFound, "Preset Not Found", "", nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, h.presets.Read(r.Context(), preset))
}

func (h *presetAPI) update(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", err.Error(), nil)
		return
	}
	v := mux.Vars(r)
	preset, err := h.presets.Update(r.Context(), v["uuid"], v["preset_uuid"], raw)
	if err != nil {
		writeActionError(w, err)
		return
	}
	if preset == nil {
		models.WriteProblem(w, http.StatusNotFound, "Preset Not Found", "", nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, h.presets.Read(r.Context(), preset))
}

func (h *presetAPI) delete(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	found, err := h.presets.Delete(r.Context(), v["uuid"], v["preset_uuid"])
	if err != nil {
		writeInternal(w, "preset delete", err)
		return
	}
	if !found {
		models.WriteProblem(w, http.StatusNotFound, "Preset Not Found", "", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *presetAPI) setDefault(w http.ResponseWriter, r *http.Request) {
	v := mux.Vars(r)
	preset, already, err := h.presets.SetDefault(r.Context(), v["uuid"], v["preset_uuid"])
	if err != nil {
		writeInternal(w, "preset set_default", err)
		return
	}
	if preset == nil {
		models.WriteProblem(w, http.StatusNotFound, "Preset Not Found", "", nil)
		return
	}
	if already {
		models.WriteJSON(w, http.StatusOK, map[string]any{"detail": "Preset is already default"})
		return
	}
	models.WriteJSON(w, http.StatusOK, h.presets.Read(r.Context(), preset))
}

func writeInternal(w http.ResponseWriter, op string, err error) {
	logs.Logger.Errorf("camera: %s: %v", op, err)
	models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "", nil)
}
