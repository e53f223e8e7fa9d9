package output

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/gracehpc/gracehpc/pkg/engine"
)

// Mode selects the rendering format of the console report.
type Mode string

const (
	ModeTable    Mode = "table"
	ModeCSV      Mode = "csv"
	ModeMarkdown Mode = "markdown"
	ModeHTML     Mode = "html"
)

// Modes returns the valid render mode names.
func Modes() []string {
	return []string{string(ModeTable), string(ModeCSV), string(ModeMarkdown), string(ModeHTML)}
}

// ParseMode validates a render mode name given at the boundary.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeTable, ModeCSV, ModeMarkdown, ModeHTML:
		return Mode(s), nil
	case "":
		return ModeTable, nil
	}

	return "", fmt.Errorf("%w: render mode %q must be one of %v", engine.ErrValidation, s, Modes())
}

// Meta carries the run arguments the report echoes back to the user.
type Meta struct {
	Start  time.Time
	End    time.Time
	JobIDs []string
	Region string
	Scope  engine.ScopeFactors
}

// Render writes the full report to w: a run summary followed by the per-job,
// daily and whole-range tables in the requested mode.
func Render(w io.Writer, datasets *engine.Datasets, meta Meta, mode Mode) {
	if len(datasets.Jobs) == 0 {
		fmt.Fprintf(
			w, "No finished jobs found between %s and %s.\n",
			meta.Start.Format(time.DateOnly), meta.End.Format(time.DateOnly),
		)

		return
	}

	// Tabular modes are meant for machine consumption, skip the prose
	if mode == ModeTable {
		renderSummary(w, datasets, meta)
	}

	sections := []struct {
		title string
		table table.Writer
	}{
		{"JOBS", JobsTable(w, datasets, false)},
		{"DAILY", DailyTable(w, datasets, false)},
		{"TOTAL", TotalTable(w, datasets, false)},
	}

	for _, section := range sections {
		if mode == ModeTable {
			fmt.Fprintf(w, "\n%s\n", section.title)
		}

		switch mode {
		case ModeHTML:
			section.table.RenderHTML()
		case ModeCSV:
			section.table.RenderCSV()
		case ModeMarkdown:
			section.table.RenderMarkdown()
		default:
			section.table.Render()
		}
	}
}

// renderSummary writes the human-oriented run summary: energy breakdown,
// carbon footprint, everyday equivalents and usage statistics.
func renderSummary(w io.Writer, datasets *engine.Datasets, meta Meta) {
	total := datasets.Total

	jobsLine := "all jobs in the period"
	if len(meta.JobIDs) > 0 {
		jobsLine = fmt.Sprintf("job IDs %v only", meta.JobIDs)
	}

	counterLine := "not available, usage-based estimates used"
	if total.CounterTotalKWh > 0 {
		counterLine = "available and used"
	}

	fmt.Fprintf(w, "Carbon footprint of SLURM jobs on %s\n\n", datasets.System)
	fmt.Fprintf(w, "Period:           %s to %s (%s)\n",
		meta.Start.Format(time.DateOnly), meta.End.Format(time.DateOnly), jobsLine)
	fmt.Fprintf(w, "Region:           %s\n", meta.Region)
	fmt.Fprintf(w, "Scope 3:          %s\n", meta.Scope.String())
	fmt.Fprintf(w, "Energy counters:  %s\n", counterLine)

	fmt.Fprintf(w, "\nENERGY CONSUMPTION\n")
	fmt.Fprintf(w, "Total energy (estimated):  %.4f kWh\n", total.TotalKWh)
	fmt.Fprintf(w, "  CPUs:                    %.4f kWh\n", total.CPUKWh)
	fmt.Fprintf(w, "  GPUs:                    %.4f kWh\n", total.GPUKWh)
	fmt.Fprintf(w, "  Memory:                  %.4f kWh\n", total.MemoryKWh)
	fmt.Fprintf(w, "  Facility overhead (PUE): %.4f kWh\n", total.TotalKWh-total.TotalNoPUEKWh)

	if total.CounterTotalKWh > 0 {
		fmt.Fprintf(w, "Total energy (counters):   %.4f kWh\n", total.CounterTotalKWh)
	}

	fmt.Fprintf(w, "\nCARBON FOOTPRINT\n")
	fmt.Fprintf(w, "Scope 2 (usage-based):     %s\n", formatGms(total.Scope2Gms))

	if total.CounterTotalKWh > 0 {
		fmt.Fprintf(w, "Scope 2 (counter-based):   %s\n", formatGms(total.Scope2CounterGms))
	}

	if datasets.Scope3 {
		fmt.Fprintf(w, "Scope 3 (embodied):        %s (%.1f gCO2e/node-hour)\n",
			formatGms(total.Scope3Gms), meta.Scope.GmsPerNodeHour())
	}

	fmt.Fprintf(w, "Total emissions:           %s\n", formatGms(total.TotalGms))
	fmt.Fprintf(w, "Mean carbon intensity:     %.1f gCO2e/kWh (Q1 %.1f, median %.1f, Q3 %.1f)\n",
		total.MeanIntensityGms, total.IntensityQ1Gms, total.IntensityMedianGms, total.IntensityQ3Gms)

	eq := total.Equivalents
	fmt.Fprintf(w, "\nTHIS IS EQUIVALENT TO\n")
	fmt.Fprintf(w, "Driving:                   %.2f miles\n", eq.DrivingMiles)
	fmt.Fprintf(w, "Tree absorption:           %.2f tree-months\n", eq.TreeMonths)
	fmt.Fprintf(w, "Flying:                    %.3f Bristol to Paris flights\n", eq.BristolParisFlts)
	fmt.Fprintf(w, "UK households:             %.1f days of electricity use\n", eq.UKHouseholdDays)
	fmt.Fprintf(w, "Electricity cost:          %.2f GBP\n", total.CostGBP)

	fmt.Fprintf(w, "\nUSAGE STATISTICS\n")
	fmt.Fprintf(w, "Jobs:                      %d (%d succeeded, %.1f%%)\n",
		total.JobCount, total.SucceededJobs, total.SuccessPercent)
	fmt.Fprintf(w, "First to last submission:  %s to %s\n",
		total.FirstJobAt.Format(time.DateOnly), total.LastJobAt.Format(time.DateOnly))
	fmt.Fprintf(w, "Total runtime:             %s\n", elapsedLabel(total.Elapsed))
	fmt.Fprintf(w, "CPU usage time:            %s (%.0f hours)\n",
		elapsedLabel(total.CPUUsageTime), total.CPUUsageTime.Hours())
	fmt.Fprintf(w, "GPU usage time:            %s (%.0f hours)\n",
		elapsedLabel(total.GPUUsageTime), total.GPUUsageTime.Hours())
	fmt.Fprintf(w, "Node hours:                %.1f\n", total.NodeHours)
	fmt.Fprintf(w, "CPU hours:                 %.1f\n", total.CPUHours)
	fmt.Fprintf(w, "GPU hours:                 %.1f\n", total.GPUHours)
	fmt.Fprintf(w, "Memory requested:          %.1f GB\n", total.ReqMemGB)

	fmt.Fprintf(w, "\nFAILED JOBS AND WASTED MEMORY\n")
	fmt.Fprintf(w, "Failed jobs:               %d (%.1f%%)\n", total.FailedJobs, total.FailedPercent)
	fmt.Fprintf(w, "Wasted scope 2 emissions:  %s (usage-based)\n", formatGms(total.Scope2FailedGms))
	fmt.Fprintf(w, "Avoidable with right-sized memory requests: %s (usage-based)\n",
		formatGms(total.Scope2Gms-total.Scope2RequiredMemGms))
}

// formatGms formats an emissions figure in the most readable unit.
func formatGms(gms float64) string {
	switch {
	case gms >= 1e6:
		return fmt.Sprintf("%.3f tCO2e", gms/1e6)
	case gms >= 1e3:
		return fmt.Sprintf("%.3f kgCO2e", gms/1e3)
	default:
		return fmt.Sprintf("%.2f gCO2e", gms)
	}
}
