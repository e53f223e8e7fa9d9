package engine

import (
	"github.com/gracehpc/gracehpc/pkg/config"
	"github.com/gracehpc/gracehpc/pkg/sacct"
)

// EnergySource tells which path produced the headline energy of a job.
type EnergySource string

const (
	// SourceCounters means hardware energy counters reported by the
	// accounting plugin.
	SourceCounters EnergySource = "counters"
	// SourceUsage means the TDP based usage model.
	SourceUsage EnergySource = "usage"
)

// EnergyResult is the per-job energy breakdown in kWh. Component fields are
// IT load only, the Total fields include the facility PUE.
type EnergyResult struct {
	CPUKWh    float64
	GPUKWh    float64
	MemoryKWh float64

	// Modelled energy at the facility meter and at the IT load
	TotalKWh      float64
	TotalNoPUEKWh float64

	// Counterfactual using only the memory the job actually needed
	RequiredMemKWh      float64
	TotalRequiredMemKWh float64

	// Counter energy when the accounting plugin reported it. CounterKWh is
	// the raw IT reading, CounterTotalKWh includes PUE.
	CounterKWh      float64
	CounterTotalKWh float64
	HasCounter      bool

	Source EnergySource
}

// PreferredKWh returns the headline facility energy of the job: counter based
// when counters were reported, modelled otherwise.
func (e EnergyResult) PreferredKWh() float64 {
	if e.HasCounter {
		return e.CounterTotalKWh
	}

	return e.TotalKWh
}

// Estimate models the energy of one job on the hardware profile of its
// partition. CPU energy scales with consumed CPU time, GPU energy with GPU
// allocation over the job's elapsed time, memory energy with requested
// memory over elapsed time.
func Estimate(rec sacct.JobRecord, prof config.HardwareProfile) EnergyResult {
	res := EnergyResult{Source: SourceUsage}

	res.CPUKWh = rec.CPUUsageTime().Hours() * prof.CPUTDP / 1000
	res.GPUKWh = rec.GPUUsageTime(prof.Class).Hours() * prof.GPUTDP / 1000
	res.MemoryKWh = rec.Elapsed.Hours() * rec.ReqMemGB() * prof.MemoryPower / 1000

	res.TotalNoPUEKWh = res.CPUKWh + res.GPUKWh + res.MemoryKWh
	res.TotalKWh = res.TotalNoPUEKWh * prof.PUE

	res.RequiredMemKWh = rec.Elapsed.Hours() * rec.RequiredMemGB() * prof.MemoryPower / 1000
	res.TotalRequiredMemKWh = (res.CPUKWh + res.GPUKWh + res.RequiredMemKWh) * prof.PUE

	if rec.EnergyReported {
		res.CounterKWh = rec.EnergyKWh
		res.CounterTotalKWh = rec.EnergyKWh * prof.PUE
		res.HasCounter = true
		res.Source = SourceCounters
	}

	return res
}
