package gatewaydev

import (
	"encoding/json"

	"gorm.io/datatypes"

	"teleicu/internal/endpoint"
	"teleicu/internal/validation"
)

// Write- и read-формы metadata намеренно асимметричны по имени флага
// (insecure при записи, insecure_connection при чтении) — так лежат
// данные в проде, форму сохраняем как есть.

type MetadataWrite struct {
	EndpointAddress *string `json:"endpoint_address"`
	Insecure        bool    `json:"insecure"`
}

type MetadataRead struct {
	EndpointAddress    *string `json:"endpoint_address"`
	InsecureConnection bool    `json:"insecure_connection"`
}

// ValidateWrite разбирает сырой ввод по write-схеме и возвращает
// нормализованную metadata. Неизвестные ключи отбрасываются.
func ValidateWrite(raw json.RawMessage) (datatypes.JSONMap, error) {
	var in MetadataWrite
	if err := json.Unmarshal(raw, &in); err != nil {
		e := validation.FieldErrors{}
		e.Add("metadata", "invalid JSON: "+err.Error())
		return nil, e
	}

	errs := validation.FieldErrors{}
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

	md := datatypes.JSONMap{"insecure": in.Insecure}
	if in.EndpointAddress != nil {
		md["endpoint_address"] = *in.EndpointAddress
	}
	return md, nil
}

// ReadFromMetadata поднимает сохранённую metadata в read-форму.
func ReadFromMetadata(md datatypes.JSONMap) MetadataRead {
	out := MetadataRead{}
	if v, ok := md["endpoint_address"].(string); ok {
		out.EndpointAddress = &v
	}
	if v, ok := md["insecure_connection"].(bool); ok {
		out.InsecureConnection = v
	}
	return out
}
