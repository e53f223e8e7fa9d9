package sacct

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SLURM reports memory as 200M, 250.5G and we dont know if it gives without
// units. The suffixes are binary multiples.
var toBytes = map[string]int64{
	"K": 1024,
	"M": 1024 * 1024,
	"G": 1024 * 1024 * 1024,
	"T": 1024 * 1024 * 1024 * 1024,
}

// Terminal and active SLURM job states. Any state not recognised as
// successful or active is treated as failed.
var (
	successStates = []string{"CD", "COMPLETED"}
	activeStates  = []string{"PD", "PENDING", "R", "RUNNING", "RQ", "REQUEUED"}
)

var errMalformedField = errors.New("malformed accounting field")

// parseDuration converts a sacct duration of the form [DD-]HH:MM:SS[.ms]
// into a time.Duration. Shorter forms MM:SS and SS are padded with zeros.
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	var days int64

	rest := s
	if before, after, found := strings.Cut(s, "-"); found {
		d, err := strconv.ParseInt(before, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: duration %q", errMalformedField, s)
		}

		days = d
		rest = after
	}

	// Millisecond part is separated by a dot
	var msecs int64

	if before, after, found := strings.Cut(rest, "."); found {
		m, err := strconv.ParseInt(after, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: duration %q", errMalformedField, s)
		}

		msecs = m
		rest = before
	}

	// Pad missing leading components with zeros so that 30:05 parses as
	// minutes and seconds and a bare 42 as seconds
	parts := strings.Split(rest, ":")
	switch len(parts) {
	case 3:
	case 2:
		parts = append([]string{"0"}, parts...)
	case 1:
		parts = append([]string{"0", "0"}, parts...)
	default:
		return 0, fmt.Errorf("%w: duration %q", errMalformedField, s)
	}

	var hms [3]int64

	for i, p := range parts {
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: duration %q", errMalformedField, s)
		}

		hms[i] = v
	}

	return time.Duration(days)*24*time.Hour +
		time.Duration(hms[0])*time.Hour +
		time.Duration(hms[1])*time.Minute +
		time.Duration(hms[2])*time.Second +
		time.Duration(msecs)*time.Millisecond, nil
}

// parseReqMem converts the ReqMem accounting field to total bytes for the
// job. A trailing n means memory was requested per node and a trailing c per
// CPU core, in which case the base value is multiplied by the allocated node
// or core count.
func parseReqMem(s string, nodes, cpus int64) (int64, error) {
	if s == "" {
		return 0, nil
	}

	multiplier := int64(1)

	switch s[len(s)-1] {
	case 'n':
		multiplier = nodes
		s = s[:len(s)-1]
	case 'c':
		multiplier = cpus
		s = s[:len(s)-1]
	}

	if s == "" {
		return 0, fmt.Errorf("%w: requested memory", errMalformedField)
	}

	unit := int64(1)
	if conv, ok := toBytes[s[len(s)-1:]]; ok {
		unit = conv
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: requested memory %q", errMalformedField, s)
	}

	return int64(value * float64(unit) * float64(multiplier)), nil
}

// parseMaxRSS converts the MaxRSS accounting field to bytes. The second
// return is false when accounting did not report a peak usage at all. A bare
// number without unit is in KB, which is what sacct defaults to.
func parseMaxRSS(s string) (int64, bool, error) {
	if s == "" {
		return 0, false, nil
	}

	unit := int64(1024)
	if conv, ok := toBytes[s[len(s)-1:]]; ok {
		unit = conv
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: max RSS %q", errMalformedField, s)
	}

	return int64(value * float64(unit)), true, nil
}

// parseAllocTRES extracts the allocated GPU count from the AllocTRES field.
// GPUs appear as gres/gpu=N or, for typed gres, gres/gpu:<type>=N.
func parseAllocTRES(s string) int64 {
	var ngpus int64

	for _, elem := range strings.Split(s, ",") {
		key, value, found := strings.Cut(elem, "=")
		if !found {
			continue
		}

		if strings.HasPrefix(key, "gres/gpu") {
			n, _ := strconv.ParseInt(value, 10, 64)
			ngpus += n
		}
	}

	return ngpus
}

// jobState classifies a raw SLURM state string. States like "CANCELLED by
// 1234" carry extra detail after the first word which is stripped before
// classification.
type jobState int

const (
	stateFailed jobState = iota
	stateSucceeded
	stateActive
)

func classifyState(s string) jobState {
	state, _, _ := strings.Cut(strings.TrimSpace(s), " ")

	for _, a := range activeStates {
		if state == a {
			return stateActive
		}
	}

	for _, c := range successStates {
		if state == c {
			return stateSucceeded
		}
	}

	return stateFailed
}

// firstPartition returns a single partition name from the accounting field,
// which can list several comma separated partitions for jobs that never ran.
func firstPartition(s string) string {
	partition, _, _ := strings.Cut(s, ",")

	return partition
}
