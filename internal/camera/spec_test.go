package camera

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"teleicu/internal/models"
	"teleicu/internal/validation"
)

func TestValidateWriteAcceptsONVIF(t *testing.T) {
	devices := &fakeDevices{byUUID: map[string]*models.Device{
		"gw-1": {UUID: "gw-1", CareType: models.CareTypeGateway},
	}}
	md, err := ValidateWrite(context.Background(), json.RawMessage(
		`{"type":"ONVIF","gateway":"gw-1","endpoint_address":"10.0.0.5","username":"u","password":"p","stream_id":"s1"}`,
	), devices)
	require.NoError(t, err)
	assert.Equal(t, "ONVIF", md["type"])
	assert.Equal(t, "gw-1", md["gateway"])
	assert.Equal(t, "10.0.0.5", md["endpoint_address"])
	assert.Equal(t, "s1", md["stream_id"])
}

func TestValidateWriteRejectsUnknownType(t *testing.T) {
	_, err := ValidateWrite(context.Background(), json.RawMessage(`{"type":"RTSP"}`), &fakeDevices{})
	var fe validation.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe, "type")
}

func TestValidateWriteRejectsMissingGateway(t *testing.T) {
	_, err := ValidateWrite(context.Background(), json.RawMessage(`{"gateway":"nope"}`), &fakeDevices{})
	var fe validation.FieldErrors
	require.ErrorAs(t, err, &fe)
	require.Contains(t, fe, "gateway")
	assert.Equal(t, []string{"Gateway device does not exist"}, fe["gateway"])
}

func TestValidateWriteDropsUnknownKeys(t *testing.T) {
	md, err := ValidateWrite(context.Background(), json.RawMessage(`{"username":"u","extra":"x"}`), &fakeDevices{})
	require.NoError(t, err)
	_, ok := md["extra"]
	assert.False(t, ok)
	assert.Equal(t, datatypes.JSONMap{"username": "u"}, md)
}

func TestParsePTZRequiresAllAxes(t *testing.T) {
	_, err := ParsePTZ(json.RawMessage(`{"x":0.5,"y":0.5}`))
	var fe validation.FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Contains(t, fe, "zoom")

	ptz, err := ParsePTZ(json.RawMessage(`{"x":0.5,"y":-0.25,"zoom":1}`))
	require.NoError(t, err)
	assert.Equal(t, PTZ{X: 0.5, Y: -0.25, Zoom: 1}, ptz)
}

func TestRetrieveEmbedsGatewaySummary(t *testing.T) {
	devices := &fakeDevices{byUUID: map[string]*models.Device{
		"gw-1": {UUID: "gw-1", Name: "ICU Gateway", CareType: models.CareTypeGateway},
	}}
	h := New(devices)
	out, err := h.Retrieve(context.Background(), &models.Device{
		UUID:     "cam-1",
		CareType: models.CareTypeCamera,
		Metadata: datatypes.JSONMap{"type": "ONVIF", "gateway": "gw-1"},
	})
	require.NoError(t, err)
	read := out.(MetadataRead)
	require.NotNil(t, read.Gateway)
	assert.Equal(t, "gw-1", read.Gateway.ID)
	assert.Equal(t, "ICU Gateway", read.Gateway.Name)
}

func TestRetrieveToleratesDanglingGateway(t *testing.T) {
	h := New(&fakeDevices{})
	out, err := h.Retrieve(context.Background(), &models.Device{
		UUID:     "cam-1",
		CareType: models.CareTypeCamera,
		Metadata: datatypes.JSONMap{"gateway": "gone"},
	})
	require.NoError(t, err)
	assert.Nil(t, out.(MetadataRead).Gateway)
}
