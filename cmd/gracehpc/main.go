// gracehpc estimates the energy consumption and carbon footprint of SLURM
// jobs from accounting data and cluster hardware characteristics.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/prometheus/common/promslog"
	"github.com/prometheus/common/promslog/flag"
	"github.com/prometheus/common/version"

	"github.com/gracehpc/gracehpc/pkg/config"
	"github.com/gracehpc/gracehpc/pkg/engine"
	"github.com/gracehpc/gracehpc/pkg/intensity"
	"github.com/gracehpc/gracehpc/pkg/output"
	"github.com/gracehpc/gracehpc/pkg/sacct"
)

const appName = "gracehpc"

// DefaultConfigFile is the cluster configuration file looked up in the
// working directory.
const DefaultConfigFile = "hpc_config.yml"

var (
	app = kingpin.New(
		appName,
		"Estimate the energy consumption and carbon footprint of SLURM jobs.",
	)

	runCmd    = app.Command("run", "Estimate energy and emissions of jobs in a period.")
	startTime = runCmd.Flag(
		"starttime",
		"Start of the accounting period as YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS.",
	).Default(fmt.Sprintf("%d-01-01", time.Now().Year())).String()
	endTime = runCmd.Flag(
		"endtime",
		"End of the accounting period as YYYY-MM-DD (inclusive) or YYYY-MM-DDTHH:MM:SS.",
	).Default(time.Now().Format(time.DateOnly)).String()
	jobsFlag = runCmd.Flag(
		"job",
		"Comma separated list of job IDs to restrict the run to. All jobs in the period when unset.",
	).Default("").String()
	regionFlag = runCmd.Flag(
		"region",
		"UK grid region for carbon intensity lookups, or "+intensity.UKAverageName+" for the fixed average.",
	).Default(intensity.UKAverageName).String()
	scope3Flag = runCmd.Flag(
		"scope3",
		"Scope 3 selector: "+engine.NoScope3+", a known system name or a gCO2e/node-hour factor.",
	).Default(engine.NoScope3).String()
	csvFlag = runCmd.Flag(
		"csv",
		"Datasets to save as CSV files: "+strings.Join(output.SaveOptions(), ", ")+".",
	).Default(output.SaveNone).String()
	formatFlag = runCmd.Flag(
		"format",
		"Report render format: "+strings.Join(output.Modes(), ", ")+".",
	).Default(string(output.ModeTable)).String()
	configFileFlag = runCmd.Flag(
		"config.file",
		"Path to the cluster configuration file.",
	).Envar("GRACEHPC_CONFIG_FILE").Default(DefaultConfigFile).String()
	sacctPathFlag = runCmd.Flag(
		"slurm.sacct.path",
		"Directory containing the sacct executable. Looked up on PATH when unset.",
	).Default("").String()

	configureCmd = app.Command(
		"configure",
		"Write a cluster configuration template to fill in before first use.",
	)
	configureOutput = configureCmd.Flag(
		"output", "Path the template is written to.",
	).Default(DefaultConfigFile).String()
)

func main() {
	promslogConfig := &promslog.Config{}
	flag.AddFlags(app, promslogConfig)
	app.Version(version.Print(appName))
	app.UsageWriter(os.Stdout)
	app.HelpFlag.Short('h')

	subcommand := kingpin.MustParse(app.Parse(os.Args[1:]))
	logger := promslog.New(promslogConfig)

	switch subcommand {
	case configureCmd.FullCommand():
		if err := config.WriteTemplate(*configureOutput); err != nil {
			logger.Error("Failed to write configuration template", "err", err)

			os.Exit(1)
		}

		fmt.Printf(
			"%s written. Fill in the partition hardware details before running %s run.\n",
			*configureOutput, appName,
		)

	case runCmd.FullCommand():
		if err := run(logger); err != nil {
			logger.Error("Run failed", "err", err)

			os.Exit(1)
		}
	}
}

func run(logger *slog.Logger) error {
	start, err := parseTime(*startTime, false)
	if err != nil {
		return fmt.Errorf("%w: failed to parse --starttime %q", engine.ErrValidation, *startTime)
	}

	end, err := parseTime(*endTime, true)
	if err != nil {
		return fmt.Errorf("%w: failed to parse --endtime %q", engine.ErrValidation, *endTime)
	}

	region, err := intensity.ParseRegion(*regionFlag)
	if err != nil {
		return err
	}

	scope, err := engine.ParseScopeFactors(*scope3Flag)
	if err != nil {
		return err
	}

	saveOption, err := output.ParseSaveOption(*csvFlag)
	if err != nil {
		return err
	}

	mode, err := output.ParseMode(*formatFlag)
	if err != nil {
		return err
	}

	cfg, err := config.Load(*configFileFlag)
	if err != nil {
		return err
	}

	client, err := sacct.NewClient(logger, *sacctPathFlag)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobIDs := splitString(*jobsFlag, ",")

	eng := engine.New(logger, cfg, client, intensity.NewResolver(logger, region))

	datasets, err := eng.Run(ctx, engine.Options{
		Start:  start,
		End:    end,
		JobIDs: jobIDs,
		Scope:  scope,
	})
	if err != nil {
		return err
	}

	meta := output.Meta{
		Start:  start,
		End:    end,
		JobIDs: jobIDs,
		Region: region.String(),
		Scope:  scope,
	}

	output.Render(os.Stdout, datasets, meta, mode)

	return output.SaveCSV(logger, datasets, saveOption, ".")
}

// parseTime parses a period boundary. Bare dates mean midnight for the start
// boundary and end of day for the end boundary, so date-only periods are
// inclusive.
func parseTime(s string, endOfDay bool) (time.Time, error) {
	if t, err := time.ParseInLocation(sacct.DatetimeLayout, s, time.Local); err == nil {
		return t, nil
	}

	t, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		return time.Time{}, err
	}

	if endOfDay {
		t = t.Add(24*time.Hour - time.Second)
	}

	return t, nil
}

// splitString splits a comma separated flag into its non-empty elements.
func splitString(s, sep string) []string {
	var parts []string

	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}

	return parts
}
