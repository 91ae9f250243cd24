package store

import (
	"fmt"

	"github.com/roach88/projmerge/internal/ir"
)

// MarshalPlan converts a canonical plan encoding to JSON TEXT for storage.
// Uses RFC 8785 canonical JSON for deterministic serialization.
func MarshalPlan(encoded ir.Object) (string, error) {
	data, err := ir.MarshalCanonical(encoded)
	if err != nil {
		return "", fmt.Errorf("marshal plan: %w", err)
	}
	return string(data), nil
}

// unmarshalPlan parses canonical JSON TEXT back to the plan encoding.
// Integers are decoded via json.Number to avoid float64 precision loss.
func unmarshalPlan(data string) (ir.Object, error) {
	if data == "" {
		return ir.Object{}, nil
	}
	obj, err := ir.UnmarshalObject([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal plan: %w", err)
	}
	return obj, nil
}
