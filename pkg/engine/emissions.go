package engine

import (
	"github.com/gracehpc/gracehpc/pkg/config"
	"github.com/gracehpc/gracehpc/pkg/intensity"
	"github.com/gracehpc/gracehpc/pkg/sacct"
)

// EmissionsResult is the per-job emissions and cost breakdown. Emissions are
// in gCO2e, cost in GBP.
type EmissionsResult struct {
	// Intensity in effect at submission time
	Intensity intensity.Value

	// Scope 2 from the modelled energy and from counters when present
	Scope2Gms        float64
	Scope2CounterGms float64

	// Counterfactual scope 2 with only the memory the job needed
	Scope2RequiredMemGms float64

	// Scope 2 attributable to jobs that did not succeed
	Scope2FailedGms float64

	// Embodied emissions from node-hours, zero when scope 3 is disabled
	Scope3Gms float64

	// Headline figure: preferred scope 2 plus scope 3
	TotalGms float64

	CostGBP float64
}

// ComputeEmissions converts the energy of one job into emissions and cost
// using the intensity in effect at its submission.
func ComputeEmissions(
	rec sacct.JobRecord, prof config.HardwareProfile, energy EnergyResult,
	value intensity.Value, scope ScopeFactors,
) EmissionsResult {
	res := EmissionsResult{Intensity: value}

	res.Scope2Gms = energy.TotalKWh * value.GmsPerKWh
	res.Scope2RequiredMemGms = energy.TotalRequiredMemKWh * value.GmsPerKWh

	if energy.HasCounter {
		res.Scope2CounterGms = energy.CounterTotalKWh * value.GmsPerKWh
	}

	preferred := res.Scope2Gms
	if energy.HasCounter {
		preferred = res.Scope2CounterGms
	}

	// Wasted emissions are always attributed on the usage model so failed
	// jobs on counter-reporting and estimate-only nodes compare like for
	// like.
	if !rec.Succeeded {
		res.Scope2FailedGms = res.Scope2Gms
	}

	if scope.Enabled() {
		res.Scope3Gms = rec.NodeHours() * scope.GmsPerNodeHour()
	}

	res.TotalGms = preferred + res.Scope3Gms
	res.CostGBP = energy.PreferredKWh() * prof.ElectricityCost

	return res
}
