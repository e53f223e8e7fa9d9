package intensity

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownRegion marks a region name outside the fixed set the national
// grid API recognises.
var ErrUnknownRegion = errors.New("unknown carbon intensity region")

// UKAverageName is the sentinel region name meaning no regional lookups are
// made and the fixed UK average intensity is used for every job.
const UKAverageName = "UK_average"

// DNO region IDs used by the carbonintensity.org.uk regional API.
// Ref: https://carbon-intensity.github.io/api-definitions/#region-list
var regionIDs = map[string]int{
	"North Scotland":     1,
	"South Scotland":     2,
	"North West England": 3,
	"North East England": 4,
	"Yorkshire":          5,
	"North Wales":        6,
	"South Wales":        7,
	"West Midlands":      8,
	"East Midlands":      9,
	"East England":       10,
	"South West England": 11,
	"South England":      12,
	"London":             13,
	"South East England": 14,
}

// Region identifies one of the UK grid regions, or the UK average sentinel.
type Region struct {
	name string
	id   int
}

// UKAverage is the region meaning "use the fixed average, no remote calls".
var UKAverage = Region{name: UKAverageName}

// ParseRegion validates a region name given at the boundary.
func ParseRegion(name string) (Region, error) {
	if name == "" || name == UKAverageName {
		return UKAverage, nil
	}

	id, ok := regionIDs[name]
	if !ok {
		return Region{}, fmt.Errorf("%w: %q (valid: %s or one of %v)",
			ErrUnknownRegion, name, UKAverageName, RegionNames())
	}

	return Region{name: name, id: id}, nil
}

// IsAverage returns true for the UK average sentinel region.
func (r Region) IsAverage() bool {
	return r.id == 0
}

func (r Region) String() string {
	return r.name
}

// RegionNames returns the valid region names in stable order.
func RegionNames() []string {
	names := make([]string, 0, len(regionIDs))
	for name := range regionIDs {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
