// Package config implements the cluster hardware configuration used to
// estimate energy consumption of SLURM jobs.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default power and cost figures. Memory power is an estimated average
// from the literature and electricity cost is the UK price cap average
// as of July 2025.
const (
	DefaultMemoryPowerWatts    = 0.3725
	DefaultElectricityCostGBP  = 0.2573
	defaultPowerUsageEffective = 1.0
)

// Custom errors.
var (
	ErrConfiguration    = errors.New("invalid cluster configuration")
	ErrUnknownPartition = errors.New("partition not found in cluster configuration")
)

// ProcessorClass is the processor type a partition is built on.
type ProcessorClass string

const (
	ClassCPU ProcessorClass = "CPU"
	ClassGPU ProcessorClass = "GPU"
)

// Partition contains the hardware details of one SLURM partition.
//
// For CPU partitions TDP is the per-core TDP in Watts. For GPU partitions
// TDP is the TDP of a whole GPU and CPUTDP is the per-core TDP of the
// supporting CPUs.
type Partition struct {
	Processor     ProcessorClass `yaml:"processor"`
	ProcessorName string         `yaml:"processor_name"`
	TDP           float64        `yaml:"tdp_watts"`
	CPUName       string         `yaml:"cpu_name"`
	CPUTDP        float64        `yaml:"cpu_tdp_watts"`
}

// Config contains the cluster configuration settings.
type Config struct {
	SystemName      string               `yaml:"hpc_system"`
	Partitions      map[string]Partition `yaml:"partitions"`
	PUE             float64              `yaml:"pue"`
	ElectricityCost float64              `yaml:"electricity_cost_gbp_kwh"`
	MemoryPower     float64              `yaml:"memory_power_watts_gb"`
}

// UnmarshalYAML implements the yaml.Unmarshaler interface.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	// Set a default config
	*c = Config{}
	c.PUE = defaultPowerUsageEffective
	c.ElectricityCost = DefaultElectricityCostGBP
	c.MemoryPower = DefaultMemoryPowerWatts

	type plain Config

	if err := unmarshal((*plain)(c)); err != nil {
		return err
	}

	return nil
}

// Validate checks the configuration for values that would silently corrupt
// every downstream estimate.
func (c *Config) Validate() error {
	if len(c.Partitions) == 0 {
		return fmt.Errorf("%w: no partitions configured", ErrConfiguration)
	}

	for name, p := range c.Partitions {
		switch p.Processor {
		case ClassCPU, ClassGPU:
		default:
			return fmt.Errorf(
				"%w: partition %s has unknown processor class %q", ErrConfiguration, name, p.Processor,
			)
		}

		if p.TDP < 0 || p.CPUTDP < 0 {
			return fmt.Errorf("%w: partition %s has negative TDP", ErrConfiguration, name)
		}
	}

	if c.PUE < 1 {
		return fmt.Errorf("%w: PUE %f must be >= 1", ErrConfiguration, c.PUE)
	}

	if c.ElectricityCost < 0 {
		return fmt.Errorf("%w: electricity cost %f must be >= 0", ErrConfiguration, c.ElectricityCost)
	}

	if c.MemoryPower < 0 {
		return fmt.Errorf("%w: memory power %f must be >= 0", ErrConfiguration, c.MemoryPower)
	}

	return nil
}

// Load reads and validates the cluster configuration from a YAML file.
func Load(path string) (*Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file %s: %s", ErrConfiguration, path, err)
	}

	var config Config
	if err := yaml.Unmarshal(contents, &config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config file %s: %s", ErrConfiguration, path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// HardwareProfile contains the power figures that apply to one job, resolved
// from its partition and the facility-wide settings.
type HardwareProfile struct {
	Partition       string
	Class           ProcessorClass
	CPUTDP          float64 // per core, Watts
	GPUTDP          float64 // per device, Watts
	MemoryPower     float64 // per GB, Watts
	PUE             float64
	ElectricityCost float64 // GBP per kWh
}

// Profile resolves the hardware profile of a partition. A partition absent
// from the mapping is a configuration error, never a silent default, since a
// wrong TDP corrupts every downstream number.
func (c *Config) Profile(partition string) (HardwareProfile, error) {
	p, ok := c.Partitions[partition]
	if !ok {
		return HardwareProfile{}, fmt.Errorf("%w: %s", ErrUnknownPartition, partition)
	}

	profile := HardwareProfile{
		Partition:       partition,
		Class:           p.Processor,
		MemoryPower:     c.MemoryPower,
		PUE:             c.PUE,
		ElectricityCost: c.ElectricityCost,
	}

	// CPU partitions have no GPU power draw at all. GPU partitions carry the
	// per-core TDP of their supporting CPUs separately.
	if p.Processor == ClassCPU {
		profile.CPUTDP = p.TDP
	} else {
		profile.GPUTDP = p.TDP
		profile.CPUTDP = p.CPUTDP
	}

	return profile, nil
}
