// Package deviceapi — generic-вход устройств: CRUD с диспетчеризацией
// metadata в обработчик типа и общий вход действий. Типоспецифичные
// маршруты (камера, анализатор) живут в своих пакетах.
package deviceapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"teleicu/internal/devicetype"
	"teleicu/internal/logs"
	"teleicu/internal/models"
	"teleicu/internal/registry"
	"teleicu/internal/validation"
)

// Store — хранилище устройств целиком, не только metadata.
type Store interface {
	devicetype.DeviceLookup
	Create(ctx context.Context, dev *models.Device) error
	ByUUIDAny(ctx context.Context, uuid string) (*models.Device, error)
	ListByType(ctx context.Context, careType string) ([]models.Device, error)
	Delete(ctx context.Context, uuid string) error
	Purge(ctx context.Context, uuid string) error
}

type API struct {
	reg   *registry.Registry
	store Store
}

func New(reg *registry.Registry, store Store) *API {
	return &API{reg: reg, store: store}
}

// RegisterRoutes монтирует generic-вход под /devices.
func RegisterRoutes(r *mux.Router, a *API) {
	d := r.PathPrefix("/devices").Subrouter()
	d.HandleFunc("", a.create).Methods(http.MethodPost)
	d.HandleFunc("", a.list).Methods(http.MethodGet)
	d.HandleFunc("/{uuid}", a.retrieve).Methods(http.MethodGet)
	d.HandleFunc("/{uuid}", a.update).Methods(http.MethodPut)
	d.HandleFunc("/{uuid}", a.delete).Methods(http.MethodDelete)
	d.HandleFunc("/{uuid}/actions/{action}", a.performAction).Methods(http.MethodPost)
}

type deviceIn struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	CareType string          `json:"care_type"`
	Metadata json.RawMessage `json:"metadata"`
}

type deviceOut struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	CareType string `json:"care_type"`
	Metadata any    `json:"metadata"`
}

func (a *API) create(w http.ResponseWriter, r *http.Request) {
	var in deviceIn
	if !decode(w, r, &in) {
		return
	}
	errs := validation.FieldErrors{}
	if in.CareType == "" {
		errs.Add("care_type", "This field is required.")
		validation.Write(w, errs)
		return
	}
	h, err := a.reg.Handler(in.CareType)
	if err != nil {
		errs.Add("care_type", "Unknown device type")
		validation.Write(w, errs)
		return
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}

	ctx := r.Context()
	if existing, err := a.store.ByUUIDAny(ctx, in.ID); err != nil {
		writeInternal(w, "device create", err)
		return
	} else if existing != nil {
		errs.Add("id", "Device already exists")
		validation.Write(w, errs)
		return
	}

	dev := &models.Device{UUID: in.ID, Name: in.Name, CareType: in.CareType}
	if err := a.store.Create(ctx, dev); err != nil {
		writeInternal(w, "device create", err)
		return
	}
	metadata := in.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}
	dev, err = h.HandleCreate(ctx, metadata, dev)
	if err != nil {
		// отказ обработчика не должен оставлять строку: иначе повтор
		// с тем же id упрётся в "already exists"
		if perr := a.store.Purge(ctx, in.ID); perr != nil {
			logs.Logger.Errorf("deviceapi: create rollback for %s: %v", in.ID, perr)
		}
		writeHandlerError(w, err)
		return
	}
	a.writeDevice(ctx, w, http.StatusCreated, h, dev)
}

func (a *API) list(w http.ResponseWriter, r *http.Request) {
	careType := r.URL.Query().Get("care_type")
	if careType == "" {
		e := validation.FieldErrors{}
		e.Add("care_type", "This query parameter is required.")
		validation.Write(w, e)
		return
	}
	h, err := a.reg.Handler(careType)
	if err != nil {
		e := validation.FieldErrors{}
		e.Add("care_type", "Unknown device type")
		validation.Write(w, e)
		return
	}
	ctx := r.Context()
	devs, err := a.store.ListByType(ctx, careType)
	if err != nil {
		writeInternal(w, "device list", err)
		return
	}
	out := make([]deviceOut, 0, len(devs))
	for i := range devs {
		md, err := h.List(ctx, &devs[i])
		if err != nil {
			writeHandlerError(w, err)
			return
		}
		out = append(out, deviceOut{
			ID:       devs[i].UUID,
			Name:     devs[i].Name,
			CareType: devs[i].CareType,
			Metadata: md,
		})
	}
	models.WriteJSON(w, http.StatusOK, map[string]any{
		"count":   len(out),
		"results": out,
	})
}

func (a *API) retrieve(w http.ResponseWriter, r *http.Request) {
	dev, h, ok := a.load(w, r)
	if !ok {
		return
	}
	a.writeDevice(r.Context(), w, http.StatusOK, h, dev)
}

func (a *API) update(w http.ResponseWriter, r *http.Request) {
	dev, h, ok := a.load(w, r)
	if !ok {
		return
	}
	var in deviceIn
	if !decode(w, r, &in) {
		return
	}
	metadata := in.Metadata
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}
	dev, err := h.HandleUpdate(r.Context(), metadata, dev)
	if err != nil {
		writeHandlerError(w, err)
		return
	}
	a.writeDevice(r.Context(), w, http.StatusOK, h, dev)
}

func (a *API) delete(w http.ResponseWriter, r *http.Request) {
	dev, _, ok := a.load(w, r)
	if !ok {
		return
	}
	if err := a.store.Delete(r.Context(), dev.UUID); err != nil {
		writeInternal(w, "device delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) performAction(w http.ResponseWriter, r *http.Request) {
	dev, h, ok := a.load(w, r)
	if !ok {
		return
	}
	action := mux.Vars(r)["action"]
	res, err := h.PerformAction(r.Context(), dev, action, r)
	if err != nil {
		if errors.Is(err, devicetype.ErrNotImplemented) {
			models.WriteProblem(w, http.StatusMethodNotAllowed, "Action Not Available",
				"device type does not implement this action", nil)
			return
		}
		writeHandlerError(w, err)
		return
	}
	if res == nil {
		// тип обслуживает действия на выделенных маршрутах
		models.WriteProblem(w, http.StatusNotFound, "Action Not Found",
			"use the device type's dedicated action routes", nil)
		return
	}
	res.Proxy(w)
}

func (a *API) load(w http.ResponseWriter, r *http.Request) (*models.Device, devicetype.Handler, bool) {
	dev, err := a.store.ByUUIDAny(r.Context(), mux.Vars(r)["uuid"])
	if err != nil {
		writeInternal(w, "device lookup", err)
		return nil, nil, false
	}
	if dev == nil {
		models.WriteProblem(w, http.StatusNotFound, "Device Not Found", "", nil)
		return nil, nil, false
	}
	h, err := a.reg.Handler(dev.CareType)
	if err != nil {
		// устройство есть, а тип больше не зарегистрирован
		logs.Logger.Errorf("deviceapi: %v", err)
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "", nil)
		return nil, nil, false
	}
	return dev, h, true
}

func (a *API) writeDevice(ctx context.Context, w http.ResponseWriter, status int, h devicetype.Handler, dev *models.Device) {
	md, err := h.Retrieve(ctx, dev)
	if err != nil {
		writeHandlerError(w, err)
		return
	}
	models.WriteJSON(w, status, deviceOut{
		ID:       dev.UUID,
		Name:     dev.Name,
		CareType: dev.CareType,
		Metadata: md,
	})
}

func decode(w http.ResponseWriter, r *http.Request, out any) bool {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", err.Error(), nil)
		return false
	}
	if len(raw) == 0 {
		raw = []byte(`{}`)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		e := validation.FieldErrors{}
		e.Add("body", "invalid JSON: "+err.Error())
		validation.Write(w, e)
		return false
	}
	return true
}

func writeHandlerError(w http.ResponseWriter, err error) {
	var fe validation.FieldErrors
	if errors.As(err, &fe) {
		validation.Write(w, fe)
		return
	}
	logs.Logger.Errorf("deviceapi: handler error: %v", err)
	models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "", nil)
}

func writeInternal(w http.ResponseWriter, op string, err error) {
	logs.Logger.Errorf("deviceapi: %s: %v", op, err)
	models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "", nil)
}
