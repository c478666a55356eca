package entity

import (
	"encoding/json"
	"fmt"
)

// marshalEnumJSON and unmarshalEnumJSON back every fixed enum's JSON
// encoding: persisted records spell out "running" rather than a bare
// integer, so on-disk data stays readable and stable across reorderings
// of the Go const block.
func marshalEnumJSON(name string) ([]byte, error) {
	return json.Marshal(name)
}

func unmarshalEnumJSON(data []byte, typeName string, parse func(string) (int, bool)) (int, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return 0, err
	}
	v, ok := parse(s)
	if !ok {
		return 0, fmt.Errorf("%s: unknown value %q", typeName, s)
	}
	return v, nil
}
