package vitalsobs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"teleicu/internal/auth"
	"teleicu/internal/models"
	"teleicu/internal/validation"
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

type fakeHost struct {
	devices    []models.Device
	encounters map[string]*models.Encounter
	created    []models.Observation
}

func (f *fakeHost) ListByGateway(_ context.Context, gatewayUUID, careType string) ([]models.Device, error) {
	var out []models.Device
	for _, d := range f.devices {
		if gw, _ := d.Metadata["gateway"].(string); gw == gatewayUUID && d.CareType == careType {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeHost) EncounterByUUID(_ context.Context, uuid string) (*models.Encounter, error) {
	return f.encounters[uuid], nil
}

func (f *fakeHost) CreateObservations(_ context.Context, obs []models.Observation) error {
	f.created = append(f.created, obs...)
	return nil
}

func automationFixtures() (*mux.Router, *fakeHost, *models.Device) {
	gw := &models.Device{UUID: "gw-1", CareType: models.CareTypeGateway}
	host := &fakeHost{
		devices: []models.Device{
			{
				UUID:                 "mon-1",
				CareType:             Tag,
				CurrentEncounterUUID: "enc-1",
				Metadata: datatypes.JSONMap{
					"gateway":          "gw-1",
					"type":             TypeHL7Monitor,
					"endpoint_address": "10.0.1.20",
				},
			},
			{
				UUID:     "mon-idle",
				CareType: Tag,
				Metadata: datatypes.JSONMap{"gateway": "gw-1", "type": TypeVentilator},
			},
			{
				UUID:     "cam-1",
				CareType: models.CareTypeCamera,
				Metadata: datatypes.JSONMap{"gateway": "gw-1"},
			},
		},
		encounters: map[string]*models.Encounter{
			"enc-1": {UUID: "enc-1", PatientUUID: "pat-1"},
		},
	}

	a := NewAutomation(host, host, host)
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	RegisterRoutes(api, api, a)
	return r, host, gw
}

func doAs(r *mux.Router, gw *models.Device, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if gw != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), gw, "careuser"))
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestListDevicesReturnsOnlyVitalsOfCallingGateway(t *testing.T) {
	router, _, gw := automationFixtures()

	rr := doAs(router, gw, http.MethodGet, "/api/v1/vitals_observation/devices", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var out struct {
		Count   int             `json:"count"`
		Results []deviceListing `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Equal(t, 2, out.Count)
	ids := []string{out.Results[0].ID, out.Results[1].ID}
	assert.ElementsMatch(t, []string{"mon-1", "mon-idle"}, ids)
	for _, item := range out.Results {
		if item.ID == "mon-1" {
			assert.Equal(t, "10.0.1.20", item.EndpointAddress)
			assert.Equal(t, TypeHL7Monitor, item.Type)
		}
	}
}

func TestListDevicesRequiresAuthenticatedGateway(t *testing.T) {
	router, _, _ := automationFixtures()
	rr := doAs(router, nil, http.MethodGet, "/api/v1/vitals_observation/devices", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRecordObservationsCreatesForActiveEncounter(t *testing.T) {
	router, host, gw := automationFixtures()

	rr := doAs(router, gw, http.MethodPost, "/api/v1/vitals_observation/observations",
		`[{"device":"mon-1","payload":{"heart_rate":72,"spo2":98}}]`)
	require.Equal(t, http.StatusCreated, rr.Code)

	require.Len(t, host.created, 1)
	obs := host.created[0]
	assert.Equal(t, "enc-1", obs.EncounterUUID)
	assert.Equal(t, "pat-1", obs.PatientUUID)
	assert.Equal(t, "careuser", obs.EnteredBy)
	assert.NotEmpty(t, obs.UUID)
	assert.JSONEq(t, `{"heart_rate":72,"spo2":98}`, string(obs.Payload))
}

func TestRecordObservationsRejectsDeviceWithoutEncounter(t *testing.T) {
	router, host, gw := automationFixtures()

	rr := doAs(router, gw, http.MethodPost, "/api/v1/vitals_observation/observations",
		`[{"device":"mon-idle","payload":{"fio2":40}}]`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "no active encounter")
	assert.Empty(t, host.created)
}

func TestRecordObservationsRejectsForeignDevice(t *testing.T) {
	router, host, gw := automationFixtures()

	rr := doAs(router, gw, http.MethodPost, "/api/v1/vitals_observation/observations",
		`[{"device":"cam-1","payload":{}},{"device":"unknown","payload":{}}]`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "does not belong to this gateway")
	assert.Empty(t, host.created)
}

func TestRecordObservationsEmptyBatch(t *testing.T) {
	router, host, gw := automationFixtures()
	rr := doAs(router, gw, http.MethodPost, "/api/v1/vitals_observation/observations", `[]`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, host.created)
}

func TestVitalsSpecRejectsUnknownType(t *testing.T) {
	_, err := ValidateWrite(context.Background(), json.RawMessage(`{"type":"Thermometer"}`), &fakeDevices{})
	var fe validation.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe, "type")
}

func TestVitalsSpecAcceptsKnownTypes(t *testing.T) {
	devices := &fakeDevices{byUUID: map[string]*models.Device{
		"gw-1": {UUID: "gw-1", CareType: models.CareTypeGateway},
	}}
	for _, typ := range []string{TypeHL7Monitor, TypeVentilator} {
		raw, _ := json.Marshal(map[string]any{"type": typ, "gateway": "gw-1"})
		md, err := ValidateWrite(context.Background(), raw, devices)
		require.NoError(t, err)
		assert.Equal(t, typ, md["type"])
	}
}
