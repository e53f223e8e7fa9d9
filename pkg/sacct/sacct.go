// Package sacct fetches job accounting records from the SLURM sacct command
// and normalizes them into typed, validated job records.
package sacct

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gracehpc/gracehpc/internal/osexec"
)

// DatetimeLayout is the layout sacct timestamps are requested and parsed in.
const DatetimeLayout = "2006-01-02T15:04:05"

const joulesPerKWh = 3600000

// Accounting fields requested from sacct. The parser depends on this order.
var sacctFields = []string{
	"jobid", "uid", "user", "partition", "jobname", "submit", "state",
	"elapsed", "alloctres", "nnodes", "ncpus", "totalcpu", "cputime",
	"reqmem", "maxrss", "workdir", "consumedenergyraw",
}

var sacctFieldMap = make(map[string]int, len(sacctFields))

func init() {
	// Convert slice to map with index as value
	for idx, field := range sacctFields {
		sacctFieldMap[field] = idx
	}
}

// Client executes the sacct command and parses its output.
type Client struct {
	logger *slog.Logger
	path   string

	// Overridable for tests
	execute func(ctx context.Context, cmd string, args []string, env []string) ([]byte, error)
}

// NewClient returns a new Client. When binDir is empty, sacct is looked up
// on PATH.
func NewClient(logger *slog.Logger, binDir string) (*Client, error) {
	if binDir == "" {
		path, err := exec.LookPath("sacct")
		if err != nil {
			logger.Error("Failed to find sacct executable on PATH", "err", err)

			return nil, err
		}

		binDir = filepath.Dir(path)
	} else {
		if _, err := os.Stat(filepath.Join(binDir, "sacct")); err != nil {
			logger.Error("Failed to find sacct executable", "path", binDir, "err", err)

			return nil, err
		}
	}

	return &Client{logger: logger, path: binDir, execute: osexec.ExecuteContext}, nil
}

// FetchJobs runs sacct for the given period and returns the parsed raw jobs,
// with job step rows merged into their parent jobs.
func (c *Client) FetchJobs(ctx context.Context, start, end time.Time) ([]RawJob, error) {
	sacctPath := filepath.Join(c.path, "sacct")

	// Pin the time format so that parsing does not depend on site config
	env := []string{"SLURM_TIME_FORMAT=%Y-%m-%dT%H:%M:%S"}

	args := []string{
		"--noheader", "--parsable2",
		"--format", strings.Join(sacctFields, ","),
		"--starttime", start.Format(DatetimeLayout),
		"--endtime", end.Format(DatetimeLayout),
	}

	out, err := c.execute(ctx, sacctPath, args, env)
	if err != nil {
		c.logger.Error("Failed to execute sacct command", "err", err)

		return nil, fmt.Errorf("failed to execute sacct: %w", err)
	}

	jobs := ParseOutput(string(out))
	c.logger.Info(
		"SLURM jobs fetched", "start", start.Format(DatetimeLayout),
		"end", end.Format(DatetimeLayout), "njobs", len(jobs),
	)

	return jobs, nil
}

// ParseOutput parses pipe separated sacct output into raw jobs. Job step
// rows (job IDs containing a dot) are merged into their parent job: peak RSS,
// consumed CPU time and counter energy are only reported on step rows, so
// the parent takes the maximum across its steps.
func ParseOutput(out string) []RawJob {
	var jobs []RawJob

	jobIdx := make(map[string]int)

	for _, line := range strings.Split(out, "\n") {
		components := strings.Split(line, "|")

		// Ignore lines where we cannot get all components
		if len(components) < len(sacctFields) {
			continue
		}

		jobid := components[sacctFieldMap["jobid"]]

		parent, _, isStep := strings.Cut(jobid, ".")
		if !isStep {
			jobs = append(jobs, RawJob{
				JobID:             jobid,
				UID:               components[sacctFieldMap["uid"]],
				User:              components[sacctFieldMap["user"]],
				Partition:         components[sacctFieldMap["partition"]],
				Name:              components[sacctFieldMap["jobname"]],
				Submit:            components[sacctFieldMap["submit"]],
				State:             components[sacctFieldMap["state"]],
				Elapsed:           components[sacctFieldMap["elapsed"]],
				AllocTRES:         components[sacctFieldMap["alloctres"]],
				NNodes:            components[sacctFieldMap["nnodes"]],
				NCPUS:             components[sacctFieldMap["ncpus"]],
				TotalCPU:          components[sacctFieldMap["totalcpu"]],
				CPUTime:           components[sacctFieldMap["cputime"]],
				ReqMem:            components[sacctFieldMap["reqmem"]],
				MaxRSS:            components[sacctFieldMap["maxrss"]],
				WorkDir:           components[sacctFieldMap["workdir"]],
				ConsumedEnergyRaw: components[sacctFieldMap["consumedenergyraw"]],
			})
			jobIdx[jobid] = len(jobs) - 1

			continue
		}

		// Step row. Merge into the parent job when we have seen it.
		idx, ok := jobIdx[parent]
		if !ok {
			continue
		}

		job := &jobs[idx]
		job.MaxRSS = maxMemField(job.MaxRSS, components[sacctFieldMap["maxrss"]])
		job.TotalCPU = maxDurationField(job.TotalCPU, components[sacctFieldMap["totalcpu"]])
		job.ConsumedEnergyRaw = maxNumericField(
			job.ConsumedEnergyRaw, components[sacctFieldMap["consumedenergyraw"]],
		)
	}

	return jobs
}

// maxMemField returns whichever of two memory strings is the larger amount.
func maxMemField(a, b string) string {
	aBytes, aOK, err := parseMaxRSS(a)
	if err != nil {
		aOK = false
	}

	bBytes, bOK, err := parseMaxRSS(b)
	if err != nil {
		bOK = false
	}

	switch {
	case !aOK:
		return b
	case !bOK:
		return a
	case bBytes > aBytes:
		return b
	default:
		return a
	}
}

// maxDurationField returns whichever of two duration strings is longer.
func maxDurationField(a, b string) string {
	aDur, aErr := parseDuration(a)

	bDur, bErr := parseDuration(b)
	if aErr != nil || (bErr == nil && bDur > aDur) {
		return b
	}

	return a
}

// maxNumericField returns whichever of two numeric strings is larger.
func maxNumericField(a, b string) string {
	aVal, aErr := strconv.ParseFloat(a, 64)

	bVal, bErr := strconv.ParseFloat(b, 64)
	if aErr != nil || (bErr == nil && bVal > aVal) {
		return b
	}

	return a
}
