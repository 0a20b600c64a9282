package vitalsobs

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

// Поддерживаемые источники показаний.
const (
	TypeHL7Monitor = "HL7-Monitor"
	TypeVentilator = "Ventilator"
)

type MetadataWrite struct {
	Type            *string `json:"type"`
	Gateway         *string `json:"gateway"`
	EndpointAddress *string `json:"endpoint_address"`
}

type MetadataRead struct {
	Type            *string         `json:"type"`
	Gateway         *models.Summary `json:"gateway"`
	EndpointAddress *string         `json:"endpoint_address"`
}

func ValidateWrite(ctx context.Context, raw json.RawMessage, devices devicetype.DeviceLookup) (datatypes.JSONMap, error) {
	var in MetadataWrite
	if err := json.Unmarshal(raw, &in); err != nil {
		e := validation.FieldErrors{}
		e.Add("metadata", "invalid JSON: "+err.Error())
		return nil, e
	}

	errs := validation.FieldErrors{}
	if in.Type != nil && *in.Type != TypeHL7Monitor && *in.Type != TypeVentilator {
		errs.Add("type", fmt.Sprintf("must be one of [%s %s]", TypeHL7Monitor, TypeVentilator))
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
	if in.Type != nil {
		md["type"] = *in.Type
	}
	if in.Gateway != nil {
		md["gateway"] = *in.Gateway
	}
	if in.EndpointAddress != nil {
		md["endpoint_address"] = *in.EndpointAddress
	}
	return md, nil
}

func readFromMetadata(md datatypes.JSONMap, gw *models.Device) MetadataRead {
	out := MetadataRead{}
	if v, ok := md["type"].(string); ok {
		out.Type = &v
	}
	if v, ok := md["endpoint_address"].(string); ok {
		out.EndpointAddress = &v
	}
	if gw != nil {
		s := gw.Summary()
		out.Gateway = &s
	}
	return out
}
