package enums

import (
	"fmt"
	"slices"
	"strings"
)

func known[T ~string](v T, set []T) bool {
	return slices.Contains(set, v)
}

// parse trims raw and matches it exactly against set.
func parse[T ~string](kind, raw string, set []T) (T, error) {
	v := T(strings.TrimSpace(raw))
	if !known(v, set) {
		return "", fmt.Errorf("invalid %s %q", kind, raw)
	}
	return v, nil
}
