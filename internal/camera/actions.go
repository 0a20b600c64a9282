package camera

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"teleicu/internal/authz"
	"teleicu/internal/devicetype"
	"teleicu/internal/logs"
	"teleicu/internal/models"
	"teleicu/internal/relay"
	"teleicu/internal/validation"
)

// Порт ONVIF-камер на стороне шлюза фиксирован.
const onvifPort = 80

// LocationLookup — доступ к локациям хост-платформы: существование при
// привязке пресета и организационная область для проверки прав.
type LocationLookup interface {
	LocationByUUID(ctx context.Context, uuid string) (*models.FacilityLocation, error)
}

// Actions — проксирующие действия камеры. Каждое действие: загрузить
// камеру, проверить право, собрать relay-запрос к её шлюзу, пробросить
// ответ verbatim.
type Actions struct {
	devices   devicetype.DeviceLookup
	locations LocationLookup
	perms     authz.Checker
	tokens    relay.TokenSource
	relayOpts relay.Options
}

func NewActions(devices devicetype.DeviceLookup, locations LocationLookup, perms authz.Checker, tokens relay.TokenSource, opts relay.Options) *Actions {
	return &Actions{devices: devices, locations: locations, perms: perms, tokens: tokens, relayOpts: opts}
}

// load — общий пролог действия: камера, право, relay-клиент её шлюза.
func (a *Actions) load(w http.ResponseWriter, r *http.Request, cap authz.Capability) (*models.Device, *relay.Client, bool) {
	ctx := r.Context()
	dev, err := a.devices.ByUUID(ctx, mux.Vars(r)["uuid"], models.CareTypeCamera)
	if err != nil {
		logs.Logger.Errorf("camera action: device lookup: %v", err)
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "", nil)
		return nil, nil, false
	}
	if dev == nil {
		models.WriteProblem(w, http.StatusNotFound, "Device Not Found", "", nil)
		return nil, nil, false
	}

	var loc *models.FacilityLocation
	if dev.CurrentLocationUUID != "" {
		loc, err = a.locations.LocationByUUID(ctx, dev.CurrentLocationUUID)
		if err != nil {
			logs.Logger.Warnf("camera %s: location lookup failed: %v", dev.UUID, err)
			loc = nil
		}
	}
	if !authz.AllowedOnDevice(ctx, a.perms, cap, authz.UserFrom(r), dev, loc) {
		models.WriteProblem(w, http.StatusForbidden, "Permission Denied", "", nil)
		return nil, nil, false
	}

	gw, err := devicetype.ResolveGateway(ctx, a.devices, dev)
	if err != nil {
		logs.Logger.Errorf("camera %s: gateway lookup: %v", dev.UUID, err)
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "", nil)
		return nil, nil, false
	}
	if gw == nil {
		validation.Write(w, validation.NotConfigured("gateway"))
		return nil, nil, false
	}
	client, err := relay.NewClient(gw, a.tokens, a.relayOpts)
	if err != nil {
		writeActionError(w, err)
		return nil, nil, false
	}
	return dev, client, true
}

// cameraRequest собирает учётные данные камеры для шлюза. Отсутствие
// любого ключа — ошибка конфигурации с перечислением полей.
func cameraRequest(dev *models.Device) (map[string]any, error) {
	var missing []string
	host, _ := dev.Metadata["endpoint_address"].(string)
	if host == "" {
		missing = append(missing, "endpoint_address")
	}
	user, _ := dev.Metadata["username"].(string)
	if user == "" {
		missing = append(missing, "username")
	}
	pass, _ := dev.Metadata["password"].(string)
	if pass == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, validation.NotConfigured(missing...)
	}
	return map[string]any{
		"hostname": host,
		"port":     onvifPort,
		"username": user,
		"password": pass,
	}, nil
}

func asQuery(data map[string]any) url.Values {
	q := url.Values{}
	for k, v := range data {
		q.Set(k, fmt.Sprint(v))
	}
	return q
}

func writeActionError(w http.ResponseWriter, err error) {
	var fe validation.FieldErrors
	if errors.As(err, &fe) {
		validation.Write(w, fe)
		return
	}
	relay.WriteError(w, err)
}

func (a *Actions) GetStatus(w http.ResponseWriter, r *http.Request) {
	a.relayGet(w, r, authz.CanViewCameraStream, "/status")
}

func (a *Actions) GetPresets(w http.ResponseWriter, r *http.Request) {
	a.relayGet(w, r, authz.CanViewCameraStream, "/presets")
}

func (a *Actions) relayGet(w http.ResponseWriter, r *http.Request, cap authz.Capability, path string) {
	dev, client, ok := a.load(w, r, cap)
	if !ok {
		return
	}
	data, err := cameraRequest(dev)
	if err != nil {
		writeActionError(w, err)
		return
	}
	res, err := client.GetRaw(r.Context(), path, asQuery(data))
	if err != nil {
		writeActionError(w, err)
		return
	}
	res.Proxy(w)
}

func (a *Actions) GotoPreset(w http.ResponseWriter, r *http.Request) {
	dev, client, ok := a.load(w, r, authz.CanControlCameraPTZ)
	if !ok {
		return
	}
	var in struct {
		Preset *int `json:"preset"`
	}
	if err := decodeBody(r, &in); err != nil {
		writeActionError(w, err)
		return
	}
	if in.Preset == nil {
		e := validation.FieldErrors{}
		e.Add("preset", "This field is required.")
		validation.Write(w, e)
		return
	}
	data, err := cameraRequest(dev)
	if err != nil {
		writeActionError(w, err)
		return
	}
	data["preset"] = *in.Preset
	res, err := client.PostRaw(r.Context(), "/gotoPreset", data)
	if err != nil {
		writeActionError(w, err)
		return
	}
	res.Proxy(w)
}

func (a *Actions) AbsoluteMove(w http.ResponseWriter, r *http.Request) {
	a.move(w, r, "/absoluteMove")
}

func (a *Actions) RelativeMove(w http.ResponseWriter, r *http.Request) {
	a.move(w, r, "/relativeMove")
}

func (a *Actions) move(w http.ResponseWriter, r *http.Request, path string) {
	dev, client, ok := a.load(w, r, authz.CanControlCameraPTZ)
	if !ok {
		return
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", err.Error(), nil)
		return
	}
	ptz, err := ParsePTZ(raw)
	if err != nil {
		writeActionError(w, err)
		return
	}
	data, err := cameraRequest(dev)
	if err != nil {
		writeActionError(w, err)
		return
	}
	data["x"] = ptz.X
	data["y"] = ptz.Y
	data["zoom"] = ptz.Zoom
	res, err := client.PostRaw(r.Context(), path, data)
	if err != nil {
		writeActionError(w, err)
		return
	}
	res.Proxy(w)
}

// StreamToken запрашивает у шлюза одноразовый токен видеопотока камеры.
func (a *Actions) StreamToken(w http.ResponseWriter, r *http.Request) {
	dev, client, ok := a.load(w, r, authz.CanViewCameraStream)
	if !ok {
		return
	}
	var missing []string
	stream, _ := dev.Metadata["stream_id"].(string)
	if stream == "" {
		missing = append(missing, "stream_id")
	}
	host, _ := dev.Metadata["endpoint_address"].(string)
	if host == "" {
		missing = append(missing, "endpoint_address")
	}
	if len(missing) > 0 {
		validation.Write(w, validation.NotConfigured(missing...))
		return
	}
	res, err := client.PostRaw(r.Context(), "/getToken/videoFeed", map[string]any{
		"stream": stream,
		"ip":     host,
	})
	if err != nil {
		writeActionError(w, err)
		return
	}
	res.Proxy(w)
}

func decodeBody(r *http.Request, out any) error {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		e := validation.FieldErrors{}
		e.Add("body", "invalid JSON: "+err.Error())
		return e
	}
	return nil
}
