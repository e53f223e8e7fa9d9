package sacct

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrDataIntegrity marks accounting data that would silently corrupt
// downstream sums, like duplicated job IDs within one range.
var ErrDataIntegrity = errors.New("accounting data integrity error")

// NormalizeOptions controls filtering at the normalizer boundary.
type NormalizeOptions struct {
	// JobIDs restricts the output to the given main job IDs. Empty means all
	// jobs in the range.
	JobIDs []string
	// Location is the timezone submission timestamps are interpreted in.
	// Defaults to the local timezone.
	Location *time.Location
}

// Normalize converts raw accounting entries into validated job records.
// Jobs still pending or running are dropped since no final accounting exists
// for them yet. Unknown terminal states classify as failed. Duplicate job
// IDs within the range are a data integrity error.
func Normalize(logger *slog.Logger, raw []RawJob, opts NormalizeOptions) ([]JobRecord, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	keep := make(map[string]bool, len(opts.JobIDs))
	for _, id := range opts.JobIDs {
		keep[id] = true
	}

	seen := make(map[string]bool, len(raw))

	var records []JobRecord

	for _, r := range raw {
		state := classifyState(r.State)
		if state == stateActive {
			continue
		}

		rec, err := normalizeJob(logger, r, loc)
		if err != nil {
			return nil, err
		}

		rec.Succeeded = state == stateSucceeded

		if len(keep) > 0 && !keep[rec.ParentID] {
			continue
		}

		if seen[rec.JobID] {
			return nil, fmt.Errorf("%w: duplicate job ID %s in range", ErrDataIntegrity, rec.JobID)
		}

		seen[rec.JobID] = true

		records = append(records, rec)
	}

	// Deterministic output regardless of accounting order
	sort.Slice(records, func(i, j int) bool {
		if records[i].SubmittedAt.Equal(records[j].SubmittedAt) {
			return records[i].JobID < records[j].JobID
		}

		return records[i].SubmittedAt.Before(records[j].SubmittedAt)
	})

	return records, nil
}

func normalizeJob(logger *slog.Logger, r RawJob, loc *time.Location) (JobRecord, error) {
	rec := JobRecord{
		JobID:     r.JobID,
		UserID:    r.UID,
		UserName:  r.User,
		Name:      r.Name,
		Partition: firstPartition(r.Partition),
		WorkDir:   r.WorkDir,
	}

	// Array tasks report IDs as <parent>_<index>
	rec.ParentID, _, _ = strings.Cut(r.JobID, "_")

	var err error

	if rec.SubmittedAt, err = time.ParseInLocation(DatetimeLayout, r.Submit, loc); err != nil {
		return rec, fmt.Errorf("%w: job %s submit time %q", ErrDataIntegrity, r.JobID, r.Submit)
	}

	if rec.Elapsed, err = parseDuration(r.Elapsed); err != nil {
		return rec, fmt.Errorf("%w: job %s: %s", ErrDataIntegrity, r.JobID, err)
	}

	if rec.Elapsed < 0 {
		return rec, fmt.Errorf("%w: job %s has negative elapsed time", ErrDataIntegrity, r.JobID)
	}

	if rec.Nodes, err = strconv.ParseInt(r.NNodes, 10, 64); err != nil {
		return rec, fmt.Errorf("%w: job %s node count %q", ErrDataIntegrity, r.JobID, r.NNodes)
	}

	if rec.CPUs, err = strconv.ParseInt(r.NCPUS, 10, 64); err != nil {
		return rec, fmt.Errorf("%w: job %s CPU count %q", ErrDataIntegrity, r.JobID, r.NCPUS)
	}

	if rec.Nodes < 0 || rec.CPUs < 0 {
		return rec, fmt.Errorf("%w: job %s has negative allocation", ErrDataIntegrity, r.JobID)
	}

	rec.GPUs = parseAllocTRES(r.AllocTRES)

	if rec.CPUTime, err = parseDuration(r.TotalCPU); err != nil {
		return rec, fmt.Errorf("%w: job %s: %s", ErrDataIntegrity, r.JobID, err)
	}

	// Older SLURM versions do not report CPUTime, fall back to cores x elapsed
	if r.CPUTime != "" {
		if rec.CPUWalltime, err = parseDuration(r.CPUTime); err != nil {
			return rec, fmt.Errorf("%w: job %s: %s", ErrDataIntegrity, r.JobID, err)
		}
	} else {
		rec.CPUWalltime = time.Duration(rec.CPUs) * rec.Elapsed
	}

	if rec.ReqMemBytes, err = parseReqMem(r.ReqMem, rec.Nodes, rec.CPUs); err != nil {
		return rec, fmt.Errorf("%w: job %s: %s", ErrDataIntegrity, r.JobID, err)
	}

	if rec.UsedMemBytes, rec.UsedMemReported, err = parseMaxRSS(r.MaxRSS); err != nil {
		// Peak RSS is informational only, do not fail the run over it
		logger.Warn("Unparseable MaxRSS field", "jobid", r.JobID, "maxrss", r.MaxRSS)
	}

	// Counter energy is reported in Joules when the accounting energy plugin
	// is active
	if r.ConsumedEnergyRaw != "" {
		if joules, err := strconv.ParseFloat(r.ConsumedEnergyRaw, 64); err == nil && joules > 0 {
			rec.EnergyKWh = joules / joulesPerKWh
			rec.EnergyReported = true
		}
	}

	return rec, nil
}
