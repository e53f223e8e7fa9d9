package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "hpc_config.yml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `---
hpc_system: "Isambard-AI"
partitions:
  grace:
    processor: CPU
    processor_name: "NVIDIA Grace CPU"
    tdp_watts: 3.472
  workq:
    processor: GPU
    processor_name: "NVIDIA H100"
    tdp_watts: 700
    cpu_name: "NVIDIA Grace CPU"
    cpu_tdp_watts: 3.472
pue: 1.2
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Isambard-AI", cfg.SystemName)
	assert.Equal(t, 1.2, cfg.PUE)
	// Unset fields get defaults
	assert.Equal(t, DefaultElectricityCostGBP, cfg.ElectricityCost)
	assert.Equal(t, DefaultMemoryPowerWatts, cfg.MemoryPower)
	assert.Len(t, cfg.Partitions, 2)
	assert.Equal(t, ClassGPU, cfg.Partitions["workq"].Processor)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{
			name:     "no partitions",
			contents: "hpc_system: test\npue: 1.1\n",
		},
		{
			name: "unknown processor class",
			contents: `partitions:
  compute:
    processor: TPU
    tdp_watts: 10
`,
		},
		{
			name: "pue below one",
			contents: `partitions:
  compute:
    processor: CPU
    tdp_watts: 10
pue: 0.9
`,
		},
		{
			name: "negative tdp",
			contents: `partitions:
  compute:
    processor: CPU
    tdp_watts: -10
`,
		},
		{
			name: "negative electricity cost",
			contents: `partitions:
  compute:
    processor: CPU
    tdp_watts: 10
electricity_cost_gbp_kwh: -0.1
`,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, test.contents))
			require.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yml"))
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestProfile(t *testing.T) {
	cfg := &Config{
		Partitions: map[string]Partition{
			"grace": {Processor: ClassCPU, TDP: 3.472},
			"workq": {Processor: ClassGPU, TDP: 700, CPUTDP: 3.472},
		},
		PUE:             1.1,
		ElectricityCost: 0.25,
		MemoryPower:     0.3725,
	}

	cpu, err := cfg.Profile("grace")
	require.NoError(t, err)
	assert.Equal(t, ClassCPU, cpu.Class)
	assert.Equal(t, 3.472, cpu.CPUTDP)
	// CPU partitions carry no GPU power draw
	assert.Zero(t, cpu.GPUTDP)
	assert.Equal(t, 1.1, cpu.PUE)

	gpu, err := cfg.Profile("workq")
	require.NoError(t, err)
	assert.Equal(t, ClassGPU, gpu.Class)
	assert.Equal(t, 700.0, gpu.GPUTDP)
	assert.Equal(t, 3.472, gpu.CPUTDP)

	_, err = cfg.Profile("debug")
	require.ErrorIs(t, err, ErrUnknownPartition)
}

func TestWriteTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hpc_config.yml")

	require.NoError(t, WriteTemplate(path))

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(contents), "hpc_system:")
	assert.Contains(t, string(contents), "pue:")

	// Never overwrite an existing file
	require.ErrorIs(t, WriteTemplate(path), ErrConfiguration)
}
