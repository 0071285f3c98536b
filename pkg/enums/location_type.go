package enums

import "strings"

// LocationType describes where an event takes place.
type LocationType string

const (
	LocationTypePhysical LocationType = "physical"
	LocationTypeOnline   LocationType = "online"
	LocationTypeHybrid   LocationType = "hybrid"
)

var validLocationTypes = []LocationType{
	LocationTypePhysical,
	LocationTypeOnline,
	LocationTypeHybrid,
}

// IsValid reports whether the value is a known LocationType.
func (l LocationType) IsValid() bool {
	return known(l, validLocationTypes)
}

// ParseLocationType converts raw input into a LocationType; blank input means physical.
func ParseLocationType(value string) (LocationType, error) {
	if strings.TrimSpace(value) == "" {
		return LocationTypePhysical, nil
	}
	return parse("location type", strings.ToLower(value), validLocationTypes)
}
