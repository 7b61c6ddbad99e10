package analytics

import (
	"fmt"
	"sort"
)

// TaskTally is one task definition's performed-vs-possible counts joined with
// the task's frequency classification.
type TaskTally struct {
	TaskDefID int64  `json:"task_def_id"`
	Frequency string `json:"frequency"`
	Performed int    `json:"performed"`
	Possible  int    `json:"possible"`
}

// TaskCountError rejects a sheet whose tallies are negative or claim more
// performed than possible. It names every offending task definition so the
// caller can point at the exact rows.
type TaskCountError struct {
	TaskDefIDs []int64
}

func (e *TaskCountError) Error() string {
	return fmt.Sprintf("invalid task counts for task definitions %v: counts must be non-negative and performed must not exceed possible", e.TaskDefIDs)
}

// ValidateTaskCounts checks every tally before a sheet close. Any violation
// blocks the whole close; there is no partial acceptance.
func ValidateTaskCounts(tallies []TaskTally) error {
	var bad []int64
	for _, t := range tallies {
		if t.Performed < 0 || t.Possible < 0 || t.Performed > t.Possible {
			bad = append(bad, t.TaskDefID)
		}
	}
	if len(bad) > 0 {
		sort.Slice(bad, func(i, j int) bool { return bad[i] < bad[j] })
		return &TaskCountError{TaskDefIDs: bad}
	}
	return nil
}

// ComplianceReport carries unrounded percentages; presentation rounds at the
// boundary so downstream consumers can re-aggregate without compounding error.
type ComplianceReport struct {
	GlobalPercent float64            `json:"global_percent"`
	ByFrequency   map[string]float64 `json:"by_frequency"`
}

// Compliance aggregates performed-vs-possible ratios globally and per
// frequency group. An all-zero plan reports 0, which is distinct from "no
// data": a schedule that planned nothing and did nothing is 0% compliant.
func Compliance(tallies []TaskTally) ComplianceReport {
	var performed, possible int
	type bucket struct{ performed, possible int }
	byFreq := map[string]*bucket{}

	for _, t := range tallies {
		performed += t.Performed
		possible += t.Possible
		b, ok := byFreq[t.Frequency]
		if !ok {
			b = &bucket{}
			byFreq[t.Frequency] = b
		}
		b.performed += t.Performed
		b.possible += t.Possible
	}

	report := ComplianceReport{ByFrequency: make(map[string]float64, len(byFreq))}
	if possible > 0 {
		report.GlobalPercent = float64(performed) / float64(possible) * 100
	}
	for freq, b := range byFreq {
		var pct float64
		if b.possible > 0 {
			pct = float64(b.performed) / float64(b.possible) * 100
		}
		report.ByFrequency[freq] = pct
	}
	return report
}
