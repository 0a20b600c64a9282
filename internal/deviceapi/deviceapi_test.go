package deviceapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teleicu/internal/gatewaydev"
	"teleicu/internal/models"
	"teleicu/internal/registry"
)

type memStore struct {
	devices map[string]*models.Device
}

func newMemStore() *memStore {
	return &memStore{devices: map[string]*models.Device{}}
}

func (s *memStore) ByUUID(_ context.Context, uuid, careType string) (*models.Device, error) {
	d := s.devices[uuid]
	if d == nil || d.CareType != careType {
		return nil, nil
	}
	return d, nil
}

func (s *memStore) SaveMetadata(_ context.Context, dev *models.Device) error {
	if existing := s.devices[dev.UUID]; existing != nil {
		existing.Metadata = dev.Metadata
	}
	return nil
}

func (s *memStore) Create(_ context.Context, dev *models.Device) error {
	s.devices[dev.UUID] = dev
	return nil
}

func (s *memStore) ByUUIDAny(_ context.Context, uuid string) (*models.Device, error) {
	return s.devices[uuid], nil
}

func (s *memStore) ListByType(_ context.Context, careType string) ([]models.Device, error) {
	var out []models.Device
	for _, d := range s.devices {
		if d.CareType == careType {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (s *memStore) Delete(_ context.Context, uuid string) error {
	delete(s.devices, uuid)
	return nil
}

func (s *memStore) Purge(_ context.Context, uuid string) error {
	delete(s.devices, uuid)
	return nil
}

func apiFixtures(t *testing.T) (*mux.Router, *memStore) {
	t.Helper()
	store := newMemStore()
	reg := registry.New()
	require.NoError(t, reg.Register(gatewaydev.Tag, gatewaydev.New(store)))
	reg.Seal()

	r := mux.NewRouter()
	RegisterRoutes(r.PathPrefix("/api/v1").Subrouter(), New(reg, store))
	return r, store
}

func do(r *mux.Router, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestCreateDeviceDispatchesMetadataToHandler(t *testing.T) {
	router, store := apiFixtures(t)

	rr := do(router, http.MethodPost, "/api/v1/devices",
		`{"id":"gw-1","name":"ICU Gateway","care_type":"gateway","metadata":{"endpoint_address":"10.0.0.1","insecure":true,"junk":"x"}}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	dev := store.devices["gw-1"]
	require.NotNil(t, dev)
	assert.Equal(t, "10.0.0.1", dev.Metadata["endpoint_address"])
	assert.Equal(t, true, dev.Metadata["insecure"])
	_, junk := dev.Metadata["junk"]
	assert.False(t, junk)
}

func TestCreateRejectsUnknownCareType(t *testing.T) {
	router, _ := apiFixtures(t)
	rr := do(router, http.MethodPost, "/api/v1/devices", `{"care_type":"toaster"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Unknown device type")
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	router, _ := apiFixtures(t)
	first := do(router, http.MethodPost, "/api/v1/devices", `{"id":"gw-1","care_type":"gateway"}`)
	require.Equal(t, http.StatusCreated, first.Code)

	second := do(router, http.MethodPost, "/api/v1/devices", `{"id":"gw-1","care_type":"gateway"}`)
	require.Equal(t, http.StatusBadRequest, second.Code)
	assert.Contains(t, second.Body.String(), "already exists")
}

func TestCreatePropagatesSpecValidation(t *testing.T) {
	router, store := apiFixtures(t)
	rr := do(router, http.MethodPost, "/api/v1/devices",
		`{"id":"gw-bad","care_type":"gateway","metadata":{"endpoint_address":"https://10.0.0.1"}}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "endpoint_address")
	// отклонённый create не оставляет строку
	assert.NotContains(t, store.devices, "gw-bad")
}

func TestCreateRejectionAllowsRetryWithSameID(t *testing.T) {
	router, store := apiFixtures(t)

	rr := do(router, http.MethodPost, "/api/v1/devices",
		`{"id":"gw-1","care_type":"gateway","metadata":{"endpoint_address":"https://10.0.0.1"}}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(router, http.MethodPost, "/api/v1/devices",
		`{"id":"gw-1","care_type":"gateway","metadata":{"endpoint_address":"10.0.0.1"}}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "10.0.0.1", store.devices["gw-1"].Metadata["endpoint_address"])
}

func TestRetrieveUsesReadForm(t *testing.T) {
	router, _ := apiFixtures(t)
	do(router, http.MethodPost, "/api/v1/devices",
		`{"id":"gw-1","care_type":"gateway","metadata":{"endpoint_address":"10.0.0.1","insecure":true}}`)

	rr := do(router, http.MethodGet, "/api/v1/devices/gw-1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	// write-флаг insecure не виден в read-форме: там insecure_connection
	assert.Contains(t, rr.Body.String(), `"endpoint_address":"10.0.0.1"`)
	assert.Contains(t, rr.Body.String(), `"insecure_connection":false`)
}

func TestRetrieveUnknownDeviceNotFound(t *testing.T) {
	router, _ := apiFixtures(t)
	rr := do(router, http.MethodGet, "/api/v1/devices/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUpdateReplacesMetadata(t *testing.T) {
	router, store := apiFixtures(t)
	do(router, http.MethodPost, "/api/v1/devices",
		`{"id":"gw-1","care_type":"gateway","metadata":{"endpoint_address":"10.0.0.1"}}`)

	rr := do(router, http.MethodPut, "/api/v1/devices/gw-1",
		`{"metadata":{"endpoint_address":"10.0.0.2","insecure":true}}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "10.0.0.2", store.devices["gw-1"].Metadata["endpoint_address"])
}

func TestListFiltersByCareType(t *testing.T) {
	router, _ := apiFixtures(t)
	do(router, http.MethodPost, "/api/v1/devices", `{"id":"gw-1","care_type":"gateway"}`)

	rr := do(router, http.MethodGet, "/api/v1/devices?care_type=gateway", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"count":1`)

	rr = do(router, http.MethodGet, "/api/v1/devices", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPerformActionNotImplemented(t *testing.T) {
	router, _ := apiFixtures(t)
	do(router, http.MethodPost, "/api/v1/devices", `{"id":"gw-1","care_type":"gateway"}`)

	rr := do(router, http.MethodPost, "/api/v1/devices/gw-1/actions/reboot", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestDeleteDevice(t *testing.T) {
	router, store := apiFixtures(t)
	do(router, http.MethodPost, "/api/v1/devices", `{"id":"gw-1","care_type":"gateway"}`)

	rr := do(router, http.MethodDelete, "/api/v1/devices/gw-1", "")
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, store.devices)
}
