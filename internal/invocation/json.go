package invocation

import (
	"encoding/json"
	"fmt"
)

type argJSON struct {
	Name     string `json:"name"`
	Value    string `json:"value,omitempty"`
	HasValue bool   `json:"has_value"`
}

// MarshalArgs encodes an ordered argument list for database storage. JSON
// arrays keep order, so the stored form carries the same identity as the
// script form.
func MarshalArgs(args []Arg) ([]byte, error) {
	out := make([]argJSON, len(args))
	for i, arg := range args {
		out[i] = argJSON{Name: arg.Name, Value: arg.Value, HasValue: arg.HasValue}
	}
	return json.Marshal(out)
}

func UnmarshalArgs(data []byte) ([]Arg, error) {
	var raw []argJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode args: %w", err)
	}
	args := make([]Arg, len(raw))
	for i, item := range raw {
		args[i] = Arg{Name: item.Name, Value: item.Value, HasValue: item.HasValue}
	}
	return args, nil
}
