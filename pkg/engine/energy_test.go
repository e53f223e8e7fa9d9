package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gracehpc/gracehpc/pkg/config"
	"github.com/gracehpc/gracehpc/pkg/intensity"
	"github.com/gracehpc/gracehpc/pkg/sacct"
)

const gb = 1024 * 1024 * 1024

// Hand-derivable scenario: one core at 10 W for 2 hours is 0.02 kWh, 10 GB
// at 5 W/GB for 2 hours is 0.1 kWh, so 0.12 kWh at the IT load and 0.144 kWh
// at the meter with a PUE of 1.2.
func referenceJob() (sacct.JobRecord, config.HardwareProfile) {
	rec := sacct.JobRecord{
		JobID:       "1001",
		Succeeded:   true,
		Elapsed:     2 * time.Hour,
		Nodes:       1,
		CPUs:        1,
		CPUTime:     2 * time.Hour,
		CPUWalltime: 2 * time.Hour,
		ReqMemBytes: 10 * gb,
	}
	prof := config.HardwareProfile{
		Partition:       "compute",
		Class:           config.ClassCPU,
		CPUTDP:          10,
		MemoryPower:     5,
		PUE:             1.2,
		ElectricityCost: 0.25,
	}

	return rec, prof
}

func TestEstimate(t *testing.T) {
	rec, prof := referenceJob()

	energy := Estimate(rec, prof)

	assert.InEpsilon(t, 0.02, energy.CPUKWh, 1e-9)
	assert.Zero(t, energy.GPUKWh)
	assert.InEpsilon(t, 0.1, energy.MemoryKWh, 1e-9)
	assert.InEpsilon(t, 0.12, energy.TotalNoPUEKWh, 1e-9)
	assert.InEpsilon(t, 0.144, energy.TotalKWh, 1e-9)
	assert.False(t, energy.HasCounter)
	assert.Equal(t, SourceUsage, energy.Source)
	assert.InEpsilon(t, 0.144, energy.PreferredKWh(), 1e-9)
}

func TestEstimateGPUPartition(t *testing.T) {
	rec, _ := referenceJob()
	rec.GPUs = 4

	prof := config.HardwareProfile{
		Partition:   "workq",
		Class:       config.ClassGPU,
		GPUTDP:      700,
		CPUTDP:      10,
		MemoryPower: 5,
		PUE:         1.0,
	}

	energy := Estimate(rec, prof)

	// 4 GPUs x 2 hours x 700 W
	assert.InEpsilon(t, 5.6, energy.GPUKWh, 1e-9)
	assert.InEpsilon(t, 0.02, energy.CPUKWh, 1e-9)
}

func TestEstimateGPUsIgnoredOnCPUPartition(t *testing.T) {
	rec, prof := referenceJob()
	rec.GPUs = 4

	energy := Estimate(rec, prof)
	assert.Zero(t, energy.GPUKWh)
}

func TestEstimateCounterEnergy(t *testing.T) {
	rec, prof := referenceJob()
	rec.EnergyKWh = 0.2
	rec.EnergyReported = true

	energy := Estimate(rec, prof)

	assert.True(t, energy.HasCounter)
	assert.Equal(t, SourceCounters, energy.Source)
	assert.InEpsilon(t, 0.2, energy.CounterKWh, 1e-9)
	// Counters measure IT energy only, PUE still applies
	assert.InEpsilon(t, 0.24, energy.CounterTotalKWh, 1e-9)
	assert.InEpsilon(t, 0.24, energy.PreferredKWh(), 1e-9)
	// The modelled figures are still computed alongside
	assert.InEpsilon(t, 0.144, energy.TotalKWh, 1e-9)
}

func TestEstimateZeroElapsed(t *testing.T) {
	rec, prof := referenceJob()
	rec.Elapsed = 0
	rec.CPUTime = 0
	rec.CPUWalltime = 0

	energy := Estimate(rec, prof)

	assert.Zero(t, energy.TotalKWh)
	assert.Zero(t, energy.TotalNoPUEKWh)
}

func TestComputeEmissions(t *testing.T) {
	rec, prof := referenceJob()
	energy := Estimate(rec, prof)

	value := intensity.Value{GmsPerKWh: 124, Fixed: true}
	scope, err := ParseScopeFactors(NoScope3)
	assert.NoError(t, err)

	emissions := ComputeEmissions(rec, prof, energy, value, scope)

	// 0.144 kWh x 124 gCO2e/kWh
	assert.InEpsilon(t, 17.856, emissions.Scope2Gms, 1e-9)
	assert.Zero(t, emissions.Scope2CounterGms)
	assert.Zero(t, emissions.Scope3Gms)
	assert.InEpsilon(t, 17.856, emissions.TotalGms, 1e-9)
	// Succeeded job carries no failed emissions
	assert.Zero(t, emissions.Scope2FailedGms)
	// 0.144 kWh x 0.25 GBP/kWh
	assert.InEpsilon(t, 0.036, emissions.CostGBP, 1e-9)
}

func TestComputeEmissionsScope3(t *testing.T) {
	rec, prof := referenceJob()
	energy := Estimate(rec, prof)

	value := intensity.Value{GmsPerKWh: 124, Fixed: true}

	scope, err := ParseScopeFactors("IsambardAI")
	assert.NoError(t, err)

	emissions := ComputeEmissions(rec, prof, energy, value, scope)

	// 1 node x 2 hours x 114 gCO2e/node-hour
	assert.InEpsilon(t, 228.0, emissions.Scope3Gms, 1e-9)
	assert.InEpsilon(t, 17.856+228.0, emissions.TotalGms, 1e-9)
}

func TestComputeEmissionsFailedJob(t *testing.T) {
	rec, prof := referenceJob()
	rec.Succeeded = false

	energy := Estimate(rec, prof)
	value := intensity.Value{GmsPerKWh: 124, Fixed: true}

	emissions := ComputeEmissions(rec, prof, energy, value, ScopeFactors{})

	assert.InEpsilon(t, 17.856, emissions.Scope2FailedGms, 1e-9)
}

func TestComputeEmissionsFailedJobWithCounters(t *testing.T) {
	rec, prof := referenceJob()
	rec.Succeeded = false
	rec.EnergyKWh = 0.2
	rec.EnergyReported = true

	energy := Estimate(rec, prof)
	value := intensity.Value{GmsPerKWh: 100}

	emissions := ComputeEmissions(rec, prof, energy, value, ScopeFactors{})

	// The headline figure still prefers the counters
	assert.InEpsilon(t, 24.0, emissions.TotalGms, 1e-9)
	// Wasted emissions stay on the usage model, 0.144 kWh x 100 gCO2e/kWh
	assert.InEpsilon(t, 14.4, emissions.Scope2FailedGms, 1e-9)
}

func TestComputeEmissionsCounterPreferred(t *testing.T) {
	rec, prof := referenceJob()
	rec.EnergyKWh = 0.2
	rec.EnergyReported = true

	energy := Estimate(rec, prof)
	value := intensity.Value{GmsPerKWh: 100}

	emissions := ComputeEmissions(rec, prof, energy, value, ScopeFactors{})

	// 0.2 kWh x 1.2 PUE x 100 gCO2e/kWh
	assert.InEpsilon(t, 24.0, emissions.Scope2CounterGms, 1e-9)
	// The headline figure prefers the counter-based value
	assert.InEpsilon(t, 24.0, emissions.TotalGms, 1e-9)
	// So does the cost
	assert.InEpsilon(t, 0.06, emissions.CostGBP, 1e-9)
}

func TestEquivalentsFor(t *testing.T) {
	eq := EquivalentsFor(211.2)
	assert.InEpsilon(t, 1.0, eq.DrivingMiles, 1e-9)

	eq = EquivalentsFor(833.0)
	assert.InEpsilon(t, 1.0, eq.TreeMonths, 1e-9)

	eq = EquivalentsFor(141700.0)
	assert.InEpsilon(t, 1.0, eq.BristolParisFlts, 1e-9)

	eq = EquivalentsFor(7.397 * 124.0)
	assert.InEpsilon(t, 1.0, eq.UKHouseholdDays, 1e-9)

	// Linear in emissions
	assert.Zero(t, EquivalentsFor(0).DrivingMiles)
}
