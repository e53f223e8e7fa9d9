// Package output renders the accounting datasets as console tables and
// writes them to CSV files.
package output

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/gracehpc/gracehpc/internal/common"
	"github.com/gracehpc/gracehpc/pkg/engine"
)

// newWriter returns a table writer with the house style applied.
func newWriter(w io.Writer) table.Writer {
	t := table.NewWriter()

	style := table.Style{
		Name:    "CustomStyleLight",
		Box:     table.StyleBoxLight,
		Color:   table.ColorOptionsDefault,
		HTML:    table.DefaultHTMLOptions,
		Options: table.OptionsDefault,
		Size:    table.SizeOptionsDefault,
		Title:   table.TitleOptionsDefault,
		Format: table.FormatOptions{
			Footer: text.FormatDefault,
			Header: text.FormatUpper,
			Row:    text.FormatDefault,
		},
	}

	t.SuppressTrailingSpaces()
	t.SetStyle(style)
	t.SetOutputMirror(w)

	return t
}

func stateLabel(succeeded bool) string {
	if succeeded {
		return "COMPLETED"
	}

	return "FAILED"
}

func elapsedLabel(d time.Duration) string {
	return common.Timespan(d).Format("15:04:05")
}

// JobsTable builds the per-job dataset, one row per job. When summary is
// true only the headline columns are included.
func JobsTable(w io.Writer, datasets *engine.Datasets, summary bool) table.Writer {
	t := newWriter(w)

	header := table.Row{
		"JobID", "Name", "Submitted", "Elapsed",
		"Counter kWh", "Energy kWh (no PUE)", "Energy kWh",
		"Scope2 Counter gCO2e", "Scope2 gCO2e",
	}
	if datasets.Scope3 {
		header = append(header, "Scope3 gCO2e")
	}

	header = append(header, "Total gCO2e", "Intensity gCO2e/kWh", "Cost GBP")

	if !summary {
		header = append(
			header, "User", "Partition", "State", "Nodes", "CPUs", "GPUs",
			"ReqMem GB", "Energy Source",
			"Driving Miles", "Tree Months", "Flights", "Household Days",
		)
	}

	t.AppendHeader(header)

	for _, job := range datasets.Jobs {
		rec := job.Record

		row := table.Row{
			rec.JobID, rec.Name, rec.SubmittedAt.Format(time.DateTime), elapsedLabel(rec.Elapsed),
			fmt.Sprintf("%.4f", job.Energy.CounterTotalKWh),
			fmt.Sprintf("%.4f", job.Energy.TotalNoPUEKWh),
			fmt.Sprintf("%.4f", job.Energy.TotalKWh),
			fmt.Sprintf("%.2f", job.Emissions.Scope2CounterGms),
			fmt.Sprintf("%.2f", job.Emissions.Scope2Gms),
		}
		if datasets.Scope3 {
			row = append(row, fmt.Sprintf("%.2f", job.Emissions.Scope3Gms))
		}

		row = append(
			row, fmt.Sprintf("%.2f", job.Emissions.TotalGms),
			fmt.Sprintf("%.1f", job.Emissions.Intensity.GmsPerKWh),
			fmt.Sprintf("%.4f", job.Emissions.CostGBP),
		)

		if !summary {
			row = append(
				row, rec.UserName, rec.Partition, stateLabel(rec.Succeeded),
				rec.Nodes, rec.CPUs, rec.GPUs,
				fmt.Sprintf("%.1f", rec.ReqMemGB()), string(job.Energy.Source),
				fmt.Sprintf("%.2f", job.Equivalents.DrivingMiles),
				fmt.Sprintf("%.2f", job.Equivalents.TreeMonths),
				fmt.Sprintf("%.3f", job.Equivalents.BristolParisFlts),
				fmt.Sprintf("%.1f", job.Equivalents.UKHouseholdDays),
			)
		}

		t.AppendRow(row)
	}

	return t
}

// DailyTable builds the daily aggregated dataset, one row per calendar day.
func DailyTable(w io.Writer, datasets *engine.Datasets, summary bool) table.Writer {
	t := newWriter(w)

	header := table.Row{
		"Date", "Jobs",
		"Counter kWh", "Energy kWh (no PUE)", "Energy kWh",
		"Scope2 Counter gCO2e", "Scope2 gCO2e",
	}
	if datasets.Scope3 {
		header = append(header, "Scope3 gCO2e")
	}

	header = append(header, "Total gCO2e", "Mean Intensity gCO2e/kWh", "Cost GBP")

	if !summary {
		header = append(header, "Node Hours", "CPU Hours", "GPU Hours", "Failed Jobs")
	}

	t.AppendHeader(header)

	for _, day := range datasets.Daily {
		row := table.Row{
			day.Date.Format(time.DateOnly), day.JobCount,
			fmt.Sprintf("%.4f", day.CounterTotalKWh),
			fmt.Sprintf("%.4f", day.TotalNoPUEKWh),
			fmt.Sprintf("%.4f", day.TotalKWh),
			fmt.Sprintf("%.2f", day.Scope2CounterGms),
			fmt.Sprintf("%.2f", day.Scope2Gms),
		}
		if datasets.Scope3 {
			row = append(row, fmt.Sprintf("%.2f", day.Scope3Gms))
		}

		row = append(
			row, fmt.Sprintf("%.2f", day.TotalGms),
			fmt.Sprintf("%.1f", day.MeanIntensityGms),
			fmt.Sprintf("%.4f", day.CostGBP),
		)

		if !summary {
			row = append(
				row, fmt.Sprintf("%.1f", day.NodeHours), fmt.Sprintf("%.1f", day.CPUHours),
				fmt.Sprintf("%.1f", day.GPUHours), day.FailedJobs,
			)
		}

		t.AppendRow(row)
	}

	return t
}

// TotalTable builds the whole-range dataset as a single row.
func TotalTable(w io.Writer, datasets *engine.Datasets, summary bool) table.Writer {
	t := newWriter(w)

	total := datasets.Total

	header := table.Row{
		"Jobs",
		"Counter kWh", "Energy kWh (no PUE)", "Energy kWh",
		"Scope2 Counter gCO2e", "Scope2 gCO2e",
	}
	if datasets.Scope3 {
		header = append(header, "Scope3 gCO2e")
	}

	header = append(header, "Total gCO2e", "Mean Intensity gCO2e/kWh", "Cost GBP")

	if !summary {
		header = append(
			header, "Succeeded %", "Failed %",
			"Intensity Q1", "Intensity Median", "Intensity Q3",
			"Node Hours", "CPU Hours", "GPU Hours",
			"Scope2 Failed gCO2e", "Scope2 Required Mem gCO2e",
		)
	}

	t.AppendHeader(header)

	row := table.Row{
		total.JobCount,
		fmt.Sprintf("%.4f", total.CounterTotalKWh),
		fmt.Sprintf("%.4f", total.TotalNoPUEKWh),
		fmt.Sprintf("%.4f", total.TotalKWh),
		fmt.Sprintf("%.2f", total.Scope2CounterGms),
		fmt.Sprintf("%.2f", total.Scope2Gms),
	}
	if datasets.Scope3 {
		row = append(row, fmt.Sprintf("%.2f", total.Scope3Gms))
	}

	row = append(
		row, fmt.Sprintf("%.2f", total.TotalGms),
		fmt.Sprintf("%.1f", total.MeanIntensityGms),
		fmt.Sprintf("%.4f", total.CostGBP),
	)

	if !summary {
		row = append(
			row, fmt.Sprintf("%.1f", total.SuccessPercent), fmt.Sprintf("%.1f", total.FailedPercent),
			fmt.Sprintf("%.1f", total.IntensityQ1Gms),
			fmt.Sprintf("%.1f", total.IntensityMedianGms),
			fmt.Sprintf("%.1f", total.IntensityQ3Gms),
			fmt.Sprintf("%.1f", total.NodeHours), fmt.Sprintf("%.1f", total.CPUHours),
			fmt.Sprintf("%.1f", total.GPUHours),
			fmt.Sprintf("%.2f", total.Scope2FailedGms),
			fmt.Sprintf("%.2f", total.Scope2RequiredMemGms),
		)
	}

	t.AppendRow(row)

	return t
}
