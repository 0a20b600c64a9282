package labanalyzer

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

// Поддерживаемые протоколы анализаторов.
const TypeHL7v2OverIP = "hl7_2_over_ip"

const (
	minPort = 1
	maxPort = 65535
)

type MetadataWrite struct {
	Type            *string `json:"type"`
	Gateway         *string `json:"gateway"`
	EndpointAddress *string `json:"endpoint_address"`
	Port            *int    `json:"port"`
}

type MetadataRead struct {
	Type            *string         `json:"type"`
	Gateway         *models.Summary `json:"gateway"`
	EndpointAddress *string         `json:"endpoint_address"`
	Port            *int            `json:"port"`
}

// ValidateWrite — write-схема metadata анализатора. endpoint_address и
// port подключаются только парой: адрес без порта (и наоборот) — это
// наполовину настроенное устройство, так сохранять нельзя.
func ValidateWrite(ctx context.Context, raw json.RawMessage, devices devicetype.DeviceLookup) (datatypes.JSONMap, error) {
	var in MetadataWrite
	if err := json.Unmarshal(raw, &in); err != nil {
		e := validation.FieldErrors{}
		e.Add("metadata", "invalid JSON: "+err.Error())
		return nil, e
	}

	errs := validation.FieldErrors{}
	if in.Type != nil && *in.Type != TypeHL7v2OverIP {
		errs.Add("type", fmt.Sprintf("must be one of [%s]", TypeHL7v2OverIP))
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
	if in.Port != nil && (*in.Port < minPort || *in.Port > maxPort) {
		errs.Add("port", fmt.Sprintf("must be between %d and %d", minPort, maxPort))
	}
	if (in.EndpointAddress == nil) != (in.Port == nil) {
		errs.Add("endpoint_address", "endpoint_address and port must be provided together")
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
		md["port"] = *in.Port
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
	if p, ok := portFromMetadata(md); ok {
		out.Port = &p
	}
	if gw != nil {
		s := gw.Summary()
		out.Gateway = &s
	}
	return out
}

// portFromMetadata терпит оба представления числа в JSONMap:
// float64 после чтения из БД и int сразу после валидации.
func portFromMetadata(md datatypes.JSONMap) (int, bool) {
	switch v := md["port"].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}
