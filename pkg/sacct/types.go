package sacct

import (
	"math"
	"time"

	"github.com/gracehpc/gracehpc/pkg/config"
)

const bytesPerGB = 1024 * 1024 * 1024

// RawJob is one accounting entry as reported by sacct, with job step rows
// already merged into their parent job. All fields are still the raw strings
// from the accounting output.
type RawJob struct {
	JobID             string
	UID               string
	User              string
	Partition         string
	Name              string
	Submit            string
	State             string
	Elapsed           string
	AllocTRES         string
	NNodes            string
	NCPUS             string
	TotalCPU          string
	CPUTime           string
	ReqMem            string
	MaxRSS            string
	WorkDir           string
	ConsumedEnergyRaw string
}

// JobRecord is one validated accounting entry with typed fields.
type JobRecord struct {
	JobID       string // full ID as reported, array task suffix intact
	ParentID    string // main job ID without the array task suffix
	UserID      string
	UserName    string
	Partition   string
	Name        string
	SubmittedAt time.Time
	Succeeded   bool
	Elapsed     time.Duration
	Nodes       int64
	CPUs        int64
	GPUs        int64
	// CPUTime is the measured CPU time consumed by the job summed across all
	// cores. CPUWalltime is the theoretical maximum (cores x elapsed) and is
	// retained as a comparison statistic only.
	CPUTime     time.Duration
	CPUWalltime time.Duration
	ReqMemBytes int64
	// UsedMemBytes is the peak resident set size. Accounting does not always
	// report it, in which case UsedMemReported is false and full requested
	// memory is assumed used.
	UsedMemBytes    int64
	UsedMemReported bool
	WorkDir         string
	// EnergyKWh is the energy measured by hardware counters, when the
	// accounting plugin reported one.
	EnergyKWh      float64
	EnergyReported bool
}

// CPUUsageTime returns the effective CPU usage time of the job. When no CPU
// time was recorded, full usage of all allocated cores is assumed.
func (j JobRecord) CPUUsageTime() time.Duration {
	if j.CPUTime == 0 {
		return j.CPUWalltime
	}

	return j.CPUTime
}

// GPUUsageTime returns the GPU usage time of the job. Accounting exposes no
// GPU utilisation, so 100% utilisation of all allocated GPUs is assumed.
// Jobs on CPU partitions use no GPU time at all.
func (j JobRecord) GPUUsageTime(class config.ProcessorClass) time.Duration {
	if class != config.ClassGPU {
		return 0
	}

	return time.Duration(j.GPUs) * j.Elapsed
}

// NodeHours returns the total node-hours charged for the job. These are the
// units embodied emission factors are expressed in.
func (j JobRecord) NodeHours() float64 {
	return float64(j.Nodes) * j.Elapsed.Hours()
}

// CPUHours returns the CPU core-hours charged for the job. Zero on GPU
// partitions where charging is per GPU-hour.
func (j JobRecord) CPUHours(class config.ProcessorClass) float64 {
	if class != config.ClassCPU {
		return 0
	}

	return j.CPUWalltime.Hours()
}

// GPUHours returns the GPU-hours charged for the job.
func (j JobRecord) GPUHours(class config.ProcessorClass) float64 {
	return j.GPUUsageTime(class).Hours()
}

// ReqMemGB returns the requested memory in GB.
func (j JobRecord) ReqMemGB() float64 {
	return float64(j.ReqMemBytes) / bytesPerGB
}

// UsedMemGB returns the memory actually used in GB. When accounting did not
// report a peak usage, full requested memory is assumed used.
func (j JobRecord) UsedMemGB() float64 {
	if !j.UsedMemReported {
		return j.ReqMemGB()
	}

	return float64(j.UsedMemBytes) / bytesPerGB
}

// RequiredMemGB returns the minimum memory in GB that would have been enough
// to run the job, rounded up to the next GB.
func (j JobRecord) RequiredMemGB() float64 {
	used := j.UsedMemGB()
	rounded := math.Floor(used) + 1

	// If requested memory was not even enough, the requirement is what was
	// actually used
	if j.ReqMemGB() < used {
		return rounded
	}

	return math.Min(j.ReqMemGB(), rounded)
}

// WastedMemRatio returns the ratio of requested to required memory, i.e. how
// much extra memory was requested beyond what the job needed.
func (j JobRecord) WastedMemRatio() float64 {
	required := j.RequiredMemGB()
	if j.ReqMemGB() < required || required == 0 {
		return 1
	}

	return j.ReqMemGB() / required
}
