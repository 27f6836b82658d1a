package application

import (
	"encoding/json"
	"fmt"
)

// DefaultSignatureField é o campo de topo onde a assinatura é injetada.
const DefaultSignatureField = "signature"

// injectField grava value no campo de topo `field` do objeto JSON em body,
// sobrescrevendo o que existir.
func injectField(body []byte, field, value string) ([]byte, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("serialized document is not a JSON object: %w", err)
	}
	if obj == nil {
		return nil, fmt.Errorf("serialized document is not a JSON object: null")
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	obj[field] = raw
	return json.Marshal(obj)
}
