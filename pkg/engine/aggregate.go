package engine

import (
	"math"
	"sort"
	"time"

	"github.com/gracehpc/gracehpc/internal/common"
	"github.com/gracehpc/gracehpc/pkg/intensity"
)

// Aggregate sums the accounted figures of a group of jobs, either one
// calendar day or the whole range.
type Aggregate struct {
	// Date is the grid-local midnight of the day, zero for the whole range
	Date time.Time

	JobCount      int64
	SucceededJobs int64
	FailedJobs    int64

	FirstJobAt time.Time
	LastJobAt  time.Time

	Elapsed      time.Duration
	CPUUsageTime time.Duration
	GPUUsageTime time.Duration

	NodeHours float64
	CPUHours  float64
	GPUHours  float64

	ReqMemGB      float64
	RequiredMemGB float64

	CPUKWh        float64
	GPUKWh        float64
	MemoryKWh     float64
	TotalKWh      float64
	TotalNoPUEKWh float64
	// CounterTotalKWh sums per-job counter energy with the PUE applied,
	// matching TotalKWh at the meter.
	CounterTotalKWh float64

	Scope2Gms            float64
	Scope2CounterGms     float64
	Scope2RequiredMemGms float64
	Scope2FailedGms      float64
	Scope3Gms            float64
	TotalGms             float64

	CostGBP float64

	// MeanIntensityGms is the arithmetic mean of the per-job intensities
	MeanIntensityGms float64
	// MeanWastedMemRatio is the arithmetic mean over-request factor
	MeanWastedMemRatio float64

	Equivalents Equivalents
}

// Total is the whole-range aggregate with its distribution statistics.
type Total struct {
	Aggregate

	// Quartiles of the per-job intensity distribution
	IntensityQ1Gms     float64
	IntensityMedianGms float64
	IntensityQ3Gms     float64

	SuccessPercent float64
	FailedPercent  float64
}

// AggregateDaily groups jobs by the grid-local calendar day of their
// submission and sums each day. Days are returned in ascending date order.
func AggregateDaily(jobs []JobResult) []Aggregate {
	byDay := make(map[time.Time][]JobResult)

	for _, job := range jobs {
		day := intensity.LocalDate(job.Record.SubmittedAt)
		byDay[day] = append(byDay[day], job)
	}

	days := make([]time.Time, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	daily := make([]Aggregate, 0, len(days))
	for _, day := range days {
		agg := reduce(byDay[day])
		agg.Date = day
		daily = append(daily, agg)
	}

	return daily
}

// AggregateTotal sums the whole range and derives its distribution
// statistics. An empty range yields an all-zero total.
func AggregateTotal(jobs []JobResult) Total {
	total := Total{Aggregate: reduce(jobs)}

	if len(jobs) == 0 {
		return total
	}

	intensities := make([]float64, 0, len(jobs))
	for _, job := range jobs {
		intensities = append(intensities, job.Emissions.Intensity.GmsPerKWh)
	}

	sort.Float64s(intensities)

	total.IntensityQ1Gms = quantile(intensities, 0.25)
	total.IntensityMedianGms = quantile(intensities, 0.5)
	total.IntensityQ3Gms = quantile(intensities, 0.75)

	count := float64(total.JobCount)
	total.SuccessPercent = common.SanitizeFloat(100 * float64(total.SucceededJobs) / count)
	total.FailedPercent = common.SanitizeFloat(100 * float64(total.FailedJobs) / count)

	return total
}

// reduce sums one group of jobs into an aggregate.
func reduce(jobs []JobResult) Aggregate {
	var agg Aggregate

	var intensitySum, wastedSum float64

	for _, job := range jobs {
		rec := job.Record

		agg.JobCount++

		if rec.Succeeded {
			agg.SucceededJobs++
		} else {
			agg.FailedJobs++
		}

		if agg.FirstJobAt.IsZero() || rec.SubmittedAt.Before(agg.FirstJobAt) {
			agg.FirstJobAt = rec.SubmittedAt
		}

		if rec.SubmittedAt.After(agg.LastJobAt) {
			agg.LastJobAt = rec.SubmittedAt
		}

		agg.Elapsed += rec.Elapsed
		agg.CPUUsageTime += rec.CPUUsageTime()
		agg.GPUUsageTime += rec.GPUUsageTime(job.Profile.Class)

		agg.NodeHours += rec.NodeHours()
		agg.CPUHours += rec.CPUHours(job.Profile.Class)
		agg.GPUHours += rec.GPUHours(job.Profile.Class)

		agg.ReqMemGB += rec.ReqMemGB()
		agg.RequiredMemGB += rec.RequiredMemGB()

		agg.CPUKWh += job.Energy.CPUKWh
		agg.GPUKWh += job.Energy.GPUKWh
		agg.MemoryKWh += job.Energy.MemoryKWh
		agg.TotalKWh += job.Energy.TotalKWh
		agg.TotalNoPUEKWh += job.Energy.TotalNoPUEKWh
		agg.CounterTotalKWh += job.Energy.CounterTotalKWh

		agg.Scope2Gms += job.Emissions.Scope2Gms
		agg.Scope2CounterGms += job.Emissions.Scope2CounterGms
		agg.Scope2RequiredMemGms += job.Emissions.Scope2RequiredMemGms
		agg.Scope2FailedGms += job.Emissions.Scope2FailedGms
		agg.Scope3Gms += job.Emissions.Scope3Gms
		agg.TotalGms += job.Emissions.TotalGms

		agg.CostGBP += job.Emissions.CostGBP

		intensitySum += job.Emissions.Intensity.GmsPerKWh
		wastedSum += rec.WastedMemRatio()
	}

	count := float64(agg.JobCount)
	agg.MeanIntensityGms = common.SanitizeFloat(intensitySum / count)
	agg.MeanWastedMemRatio = common.SanitizeFloat(wastedSum / count)

	// Equivalents are linear in emissions, so the equivalents of the sum equal
	// the sum of the per-job equivalents
	agg.Equivalents = EquivalentsFor(agg.TotalGms)

	return agg
}

// quantile returns the q-th quantile of sorted values using linear
// interpolation between closest ranks.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}

	if len(sorted) == 1 {
		return sorted[0]
	}

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))

	if lo == hi {
		return sorted[lo]
	}

	frac := pos - float64(lo)

	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
