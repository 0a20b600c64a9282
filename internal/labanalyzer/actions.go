package labanalyzer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"teleicu/internal/devicetype"
	"teleicu/internal/logs"
	"teleicu/internal/models"
	"teleicu/internal/relay"
	"teleicu/internal/validation"
)

// ReportLookup — доступ к диагностическим отчётам хост-платформы.
type ReportLookup interface {
	DiagnosticReportByUUID(ctx context.Context, uuid string) (*models.DiagnosticReport, error)
}

// Actions — проксирующие действия анализатора: статус, заказ теста,
// выдача и сброс результатов. Ответы шлюза пробрасываются verbatim.
type Actions struct {
	devices   devicetype.DeviceLookup
	reports   ReportLookup
	tokens    relay.TokenSource
	relayOpts relay.Options
}

func NewActions(devices devicetype.DeviceLookup, reports ReportLookup, tokens relay.TokenSource, opts relay.Options) *Actions {
	return &Actions{devices: devices, reports: reports, tokens: tokens, relayOpts: opts}
}

func (a *Actions) load(w http.ResponseWriter, r *http.Request) (*models.Device, *relay.Client, bool) {
	ctx := r.Context()
	dev, err := a.devices.ByUUID(ctx, mux.Vars(r)["uuid"], models.CareTypeLabAnalyzer)
	if err != nil {
		logs.Logger.Errorf("lab-analyzer action: device lookup: %v", err)
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "", nil)
		return nil, nil, false
	}
	if dev == nil {
		models.WriteProblem(w, http.StatusNotFound, "Device Not Found", "", nil)
		return nil, nil, false
	}
	gw, err := devicetype.ResolveGateway(ctx, a.devices, dev)
	if err != nil {
		logs.Logger.Errorf("lab-analyzer %s: gateway lookup: %v", dev.UUID, err)
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

// analyzerRequest собирает адрес анализатора для шлюза.
func analyzerRequest(dev *models.Device) (map[string]any, error) {
	var missing []string
	host, _ := dev.Metadata["endpoint_address"].(string)
	if host == "" {
		missing = append(missing, "endpoint_address")
	}
	port, ok := portFromMetadata(dev.Metadata)
	if !ok {
		missing = append(missing, "port")
	}
	typ, _ := dev.Metadata["type"].(string)
	if typ == "" {
		missing = append(missing, "type")
	}
	if len(missing) > 0 {
		return nil, validation.NotConfigured(missing...)
	}
	return map[string]any{
		"hostname": host,
		"port":     port,
		"type":     typ,
	}, nil
}

func (a *Actions) GetStatus(w http.ResponseWriter, r *http.Request) {
	dev, client, ok := a.load(w, r)
	if !ok {
		return
	}
	data, err := analyzerRequest(dev)
	if err != nil {
		writeActionError(w, err)
		return
	}
	q := url.Values{}
	for k, v := range data {
		q.Set(k, fmt.Sprint(v))
	}
	res, err := client.GetRaw(r.Context(), "/lab_analyzer/status", q)
	if err != nil {
		writeActionError(w, err)
		return
	}
	res.Proxy(w)
}

// OrderTest заказывает тест по существующему диагностическому отчёту.
func (a *Actions) OrderTest(w http.ResponseWriter, r *http.Request) {
	dev, client, ok := a.load(w, r)
	if !ok {
		return
	}
	body, err := readObject(r)
	if err != nil {
		writeActionError(w, err)
		return
	}
	reportUUID, _ := body["diagnostic_report"].(string)
	if reportUUID == "" {
		e := validation.FieldErrors{}
		e.Add("diagnostic_report", "This field is required.")
		validation.Write(w, e)
		return
	}
	report, err := a.reports.DiagnosticReportByUUID(r.Context(), reportUUID)
	if err != nil {
		logs.Logger.Errorf("lab-analyzer: diagnostic report lookup: %v", err)
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "", nil)
		return
	}
	if report == nil {
		e := validation.FieldErrors{}
		e.Add("diagnostic_report", "Diagnostic report does not exist")
		validation.Write(w, e)
		return
	}
	a.forward(w, r, dev, client, "/lab_analyzer/order_test", body)
}

// GetResults и ClearResults — generic-passthrough: тело запроса отдаётся
// шлюзу как есть поверх адресных полей, форма ответа не фиксируется.
func (a *Actions) GetResults(w http.ResponseWriter, r *http.Request) {
	a.passthrough(w, r, "/lab_analyzer/get_results")
}

func (a *Actions) ClearResults(w http.ResponseWriter, r *http.Request) {
	a.passthrough(w, r, "/lab_analyzer/clear_results")
}

func (a *Actions) passthrough(w http.ResponseWriter, r *http.Request, path string) {
	dev, client, ok := a.load(w, r)
	if !ok {
		return
	}
	body, err := readObject(r)
	if err != nil {
		writeActionError(w, err)
		return
	}
	a.forward(w, r, dev, client, path, body)
}

func (a *Actions) forward(w http.ResponseWriter, r *http.Request, dev *models.Device, client *relay.Client, path string, body map[string]any) {
	data, err := analyzerRequest(dev)
	if err != nil {
		writeActionError(w, err)
		return
	}
	for k, v := range body {
		data[k] = v
	}
	res, err := client.PostRaw(r.Context(), path, data)
	if err != nil {
		writeActionError(w, err)
		return
	}
	res.Proxy(w)
}

// readObject читает тело как JSON-объект; пустое тело — пустой объект.
func readObject(r *http.Request) (map[string]any, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return map[string]any{}, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		e := validation.FieldErrors{}
		e.Add("body", "invalid JSON: "+err.Error())
		return nil, e
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func writeActionError(w http.ResponseWriter, err error) {
	var fe validation.FieldErrors
	if errors.As(err, &fe) {
		validation.Write(w, fe)
		return
	}
	relay.WriteError(w, err)
}
