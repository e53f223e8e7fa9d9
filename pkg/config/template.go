package config

import (
	"fmt"
	"os"
)

const configTemplate = `---
# Cluster configuration for gracehpc.
#
# Fill in the hardware details of your HPC system before running the tool.
# Only the partitions you submit jobs to need to be listed, but every
# partition referenced by a job in the selected date range must be present.

# Display name of the HPC system, e.g. "Isambard 3".
hpc_system: ""

partitions:
  # Example CPU partition. tdp_watts is the per-core TDP of the processor.
  # For NVIDIA Grace that is about 3.472 W/core (250 W over 72 cores).
  # grace:
  #   processor: CPU
  #   processor_name: "NVIDIA Grace CPU"
  #   tdp_watts: 3.472

  # Example GPU partition. tdp_watts is the TDP of one whole GPU and
  # cpu_tdp_watts the per-core TDP of the supporting CPUs.
  # workq:
  #   processor: GPU
  #   processor_name: "NVIDIA H100 Tensor Core GPU"
  #   tdp_watts: 700
  #   cpu_name: "NVIDIA Grace CPU"
  #   cpu_tdp_watts: 3.472

# Power Usage Effectiveness of the facility, i.e. the data centre overhead
# multiplier on top of IT equipment energy.
pue: 1.1

# Average electricity cost in GBP per kWh.
electricity_cost_gbp_kwh: 0.2573

# Average memory power draw in Watts per GB.
memory_power_watts_gb: 0.3725
`

// WriteTemplate writes a commented configuration template to path. An
// existing file is never overwritten.
func WriteTemplate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s already exists", ErrConfiguration, path)
	}

	return os.WriteFile(path, []byte(configTemplate), 0o644)
}
