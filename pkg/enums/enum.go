// Package enums holds the string enums shared by the API, the database
// enum types and the event payloads. Parsing is case sensitive; callers
// normalise user input first.
package enums

import (
	"fmt"
	"slices"
)

func parse[T ~string](kind, raw string, set []T) (T, error) {
	v := T(raw)
	if !slices.Contains(set, v) {
		var zero T
		return zero, fmt.Errorf("invalid %s %q", kind, raw)
	}
	return v, nil
}
