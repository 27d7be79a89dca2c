package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Parámetros que nunca entran en la clave: la credencial no cambia la
// identidad lógica del request.
var secretParams = map[string]bool{
	"apiKey":  true,
	"api_key": true,
}

// ComputeKey deriva la clave content-addressed de un request lógico.
// Requests idénticos (mismo path + params, cualquier credencial, cualquier
// orden de inserción) producen siempre la misma clave.
func ComputeKey(method, path string, params map[string]string) string {
	filtered := make(map[string]string, len(params))
	for k, v := range params {
		if secretParams[k] {
			continue
		}
		filtered[k] = v
	}
	payload := struct {
		Method string            `json:"method"`
		Path   string            `json:"path"`
		Params map[string]string `json:"params"`
	}{Method: method, Path: path, Params: filtered}

	// json.Marshal serializa los maps con claves ordenadas, así que la
	// representación es canónica.
	data, err := json.Marshal(payload)
	if err != nil {
		// Solo alcanzable con tipos no serializables; el payload es fijo.
		panic(fmt.Sprintf("cache.ComputeKey: marshal: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
