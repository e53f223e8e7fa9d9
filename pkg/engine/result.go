package engine

import (
	"github.com/gracehpc/gracehpc/pkg/config"
	"github.com/gracehpc/gracehpc/pkg/sacct"
)

// JobResult is one fully accounted job: the normalized accounting record plus
// the hardware profile, energy, emissions and equivalents derived from it.
type JobResult struct {
	Record      sacct.JobRecord
	Profile     config.HardwareProfile
	Energy      EnergyResult
	Emissions   EmissionsResult
	Equivalents Equivalents
}
