package camera

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"teleicu/internal/devicetype"
	"teleicu/internal/endpoint"
	"teleicu/internal/models"
	"teleicu/internal/validation"
)

// Поддерживаемые типы камер.
const TypeONVIF = "ONVIF"

type MetadataWrite struct {
	Type            *string `json:"type"`
	Gateway         *string `json:"gateway"`
	EndpointAddress *string `json:"endpoint_address"`
	Username        *string `json:"username"`
	Password        *string `json:"password"`
	StreamID        *string `json:"stream_id"`
}

type MetadataRead struct {
	Type            *string         `json:"type"`
	Gateway         *models.Summary `json:"gateway"`
	EndpointAddress *string         `json:"endpoint_address"`
	Username        *string         `json:"username"`
	Password        *string         `json:"password"`
	StreamID        *string         `json:"stream_id"`
}

// PTZ — абсолютная либо относительная позиция pan/tilt/zoom.
type PTZ struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// ParsePTZ требует все три координаты.
func ParsePTZ(raw json.RawMessage) (PTZ, error) {
	var in struct {
		X    *float64 `json:"x"`
		Y    *float64 `json:"y"`
		Zoom *float64 `json:"zoom"`
	}
	errs := validation.FieldErrors{}
	if err := json.Unmarshal(raw, &in); err != nil {
		errs.Add("body", "invalid JSON: "+err.Error())
		return PTZ{}, errs
	}
	if in.X == nil {
		errs.Add("x", "This field is required.")
	}
	if in.Y == nil {
		errs.Add("y", "This field is required.")
	}
	if in.Zoom == nil {
		errs.Add("zoom", "This field is required.")
	}
	if !errs.Empty() {
		return PTZ{}, errs
	}
	return PTZ{X: *in.X, Y: *in.Y, Zoom: *in.Zoom}, nil
}

// ValidateWrite — write-схема metadata камеры. Ссылка на шлюз
// проверяется по хранилищу устройств; неизвестные ключи отбрасываются.
func ValidateWrite(ctx context.Context, raw json.RawMessage, devices devicetype.DeviceLookup) (datatypes.JSONMap, error) {
	var in MetadataWrite
	if err := json.Unmarshal(raw, &in); err != nil {
		e := validation.FieldErrors{}
		e.Add("metadata", "invalid JSON: "+err.Error())
		return nil, e
	}

	errs := validation.FieldErrors{}
	if in.Type != nil && *in.Type != TypeONVIF {
		errs.Add("type", fmt.Sprintf("must be one of [%s]", TypeONVIF))
	}
	if in.Gateway != nil {
		gw, err := devices.ByUUID(ctx, *in.Gateway, models.CareTypeGateway)
		if err != nil {
			return nil, err
		}
		if gw == nil {
			errs.Add("gateway", "Gateway device does not exist")
		}
	}
	if in.EndpointAddress != nil {
		canon, err := endpoint.ValidateAddress(*in.EndpointAddress)
		if err != nil {
			errs.Add("endpoint_address", err.Error())
		} else {
			in.EndpointAddress = &canon
		}
	}
	if !errs.Empty() {
		return nil, errs
	}

	md := datatypes.JSONMap{}
	putString(md, "type", in.Type)
	putString(md, "gateway", in.Gateway)
	putString(md, "endpoint_address", in.EndpointAddress)
	putString(md, "username", in.Username)
	putString(md, "password", in.Password)
	putString(md, "stream_id", in.StreamID)
	return md, nil
}

func putString(md datatypes.JSONMap, key string, v *string) {
	if v != nil {
		md[key] = *v
	}
}

func readFromMetadata(md datatypes.JSONMap, gw *models.Device) MetadataRead {
	out := MetadataRead{}
	out.Type = optString(md, "type")
	out.EndpointAddress = optString(md, "endpoint_address")
	out.Username = optString(md, "username")
	out.Password = optString(md, "password")
	out.StreamID = optString(md, "stream_id")
	if gw != nil {
		s := gw.Summary()
		out.Gateway = &s
	}
	return out
}

func optString(md datatypes.JSONMap, key string) *string {
	if v, ok := md[key].(string); ok {
		return &v
	}
	return nil
}
