package output

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gracehpc/gracehpc/pkg/config"
	"github.com/gracehpc/gracehpc/pkg/engine"
	"github.com/gracehpc/gracehpc/pkg/intensity"
	"github.com/gracehpc/gracehpc/pkg/sacct"
)

var noOpLogger = slog.New(slog.DiscardHandler)

const gb = 1024 * 1024 * 1024

func testDatasets(t *testing.T, scope3 string) *engine.Datasets {
	t.Helper()

	scope, err := engine.ParseScopeFactors(scope3)
	require.NoError(t, err)

	prof := config.HardwareProfile{
		Partition:       "compute",
		Class:           config.ClassCPU,
		CPUTDP:          10,
		MemoryPower:     5,
		PUE:             1.2,
		ElectricityCost: 0.25,
	}

	jobs := make([]engine.JobResult, 0, 2)

	for i, id := range []string{"1001", "1002"} {
		rec := sacct.JobRecord{
			JobID:       id,
			UserName:    "alice",
			Partition:   "compute",
			Name:        "job-" + id,
			SubmittedAt: time.Date(2025, 6, 1+i, 9, 0, 0, 0, time.UTC),
			Succeeded:   i == 0,
			Elapsed:     2 * time.Hour,
			Nodes:       1,
			CPUs:        1,
			CPUTime:     2 * time.Hour,
			CPUWalltime: 2 * time.Hour,
			ReqMemBytes: 10 * gb,
		}

		energy := engine.Estimate(rec, prof)
		value := intensity.Value{GmsPerKWh: 124, Fixed: true}
		emissions := engine.ComputeEmissions(rec, prof, energy, value, scope)

		jobs = append(jobs, engine.JobResult{
			Record:      rec,
			Profile:     prof,
			Energy:      energy,
			Emissions:   emissions,
			Equivalents: engine.EquivalentsFor(emissions.TotalGms),
		})
	}

	return &engine.Datasets{
		System: "Test HPC",
		Scope3: scope.Enabled(),
		Jobs:   jobs,
		Daily:  engine.AggregateDaily(jobs),
		Total:  engine.AggregateTotal(jobs),
	}
}

func testMeta(scope engine.ScopeFactors) Meta {
	return Meta{
		Start:  time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		Region: intensity.UKAverageName,
		Scope:  scope,
	}
}

func TestParseMode(t *testing.T) {
	for _, name := range Modes() {
		mode, err := ParseMode(name)
		require.NoError(t, err)
		assert.Equal(t, Mode(name), mode)
	}

	mode, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeTable, mode)

	_, err = ParseMode("yaml")
	require.ErrorIs(t, err, engine.ErrValidation)
}

func TestParseSaveOption(t *testing.T) {
	for _, name := range SaveOptions() {
		opt, err := ParseSaveOption(name)
		require.NoError(t, err)
		assert.Equal(t, name, opt)
	}

	opt, err := ParseSaveOption("")
	require.NoError(t, err)
	assert.Equal(t, SaveNone, opt)

	_, err = ParseSaveOption("everything")
	require.ErrorIs(t, err, engine.ErrValidation)
}

func TestRenderTableMode(t *testing.T) {
	datasets := testDatasets(t, engine.NoScope3)

	var buf bytes.Buffer

	Render(&buf, datasets, testMeta(engine.ScopeFactors{}), ModeTable)

	out := buf.String()
	assert.Contains(t, out, "Test HPC")
	assert.Contains(t, out, "ENERGY CONSUMPTION")
	assert.Contains(t, out, "CARBON FOOTPRINT")
	assert.Contains(t, out, "USAGE STATISTICS")
	assert.Contains(t, out, "JOBS")
	assert.Contains(t, out, "DAILY")
	assert.Contains(t, out, "TOTAL")
	assert.Contains(t, out, "1001")
	assert.Contains(t, out, "1002")
	// Scope 3 columns only appear when enabled
	assert.NotContains(t, out, "SCOPE3")
}

func TestRenderScope3Columns(t *testing.T) {
	datasets := testDatasets(t, "IsambardAI")

	scope, err := engine.ParseScopeFactors("IsambardAI")
	require.NoError(t, err)

	var buf bytes.Buffer

	Render(&buf, datasets, testMeta(scope), ModeTable)

	out := buf.String()
	assert.Contains(t, out, "SCOPE3 GCO2E")
	assert.Contains(t, out, "Scope 3 (embodied)")
}

func TestRenderCSVMode(t *testing.T) {
	datasets := testDatasets(t, engine.NoScope3)

	var buf bytes.Buffer

	Render(&buf, datasets, testMeta(engine.ScopeFactors{}), ModeCSV)

	out := buf.String()
	// CSV mode carries no prose summary
	assert.NotContains(t, out, "ENERGY CONSUMPTION")
	assert.Contains(t, strings.ToUpper(out), "JOBID,NAME,")
	assert.Contains(t, out, "1001,job-1001,")
}

func TestRenderMarkdownMode(t *testing.T) {
	datasets := testDatasets(t, engine.NoScope3)

	var buf bytes.Buffer

	Render(&buf, datasets, testMeta(engine.ScopeFactors{}), ModeMarkdown)

	assert.Contains(t, strings.ToUpper(buf.String()), "| JOBID |")
}

func TestRenderEmptyDatasets(t *testing.T) {
	datasets := &engine.Datasets{System: "Test HPC"}

	var buf bytes.Buffer

	Render(&buf, datasets, testMeta(engine.ScopeFactors{}), ModeTable)

	assert.Contains(t, buf.String(), "No finished jobs found")
}

func TestSaveCSV(t *testing.T) {
	logger := noOpLogger
	datasets := testDatasets(t, engine.NoScope3)
	dir := t.TempDir()

	require.NoError(t, SaveCSV(logger, datasets, SaveAll, dir))

	for _, name := range []string{
		"full_job_data.csv", "daily_data.csv", "total_data.csv",
		"full_job_data_summary.csv", "daily_data_summary.csv", "total_data_summary.csv",
	} {
		contents, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err, name)
		// Header plus at least one data row
		assert.GreaterOrEqual(t, len(strings.Split(strings.TrimSpace(string(contents)), "\n")), 2, name)
	}
}

func TestSaveCSVSelection(t *testing.T) {
	logger := noOpLogger
	datasets := testDatasets(t, engine.NoScope3)
	dir := t.TempDir()

	require.NoError(t, SaveCSV(logger, datasets, SaveDaily, dir))

	_, err := os.Stat(filepath.Join(dir, "daily_data.csv"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "full_job_data.csv"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestSaveCSVNone(t *testing.T) {
	logger := noOpLogger
	dir := t.TempDir()

	require.NoError(t, SaveCSV(logger, testDatasets(t, engine.NoScope3), SaveNone, dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
