package jobs

import "taskpilot/internal/domain"

// ResultFilter selects a subset of a job's result records.
type ResultFilter struct {
	SuccessOnly bool
	ErrorsOnly  bool
	Latest      bool
	Limit       int // keep the last N records; 0 means all
}

// Filter applies the filter to chronologically ordered records.
// Success/errors filtering happens before Latest and Limit, matching the
// results CLI contract.
func (f ResultFilter) Filter(results []domain.ExecutionResult) []domain.ExecutionResult {
	out := results
	if f.SuccessOnly {
		out = selectResults(out, func(r domain.ExecutionResult) bool { return r.Success })
	} else if f.ErrorsOnly {
		out = selectResults(out, func(r domain.ExecutionResult) bool { return !r.Success })
	}
	if f.Latest && len(out) > 1 {
		out = out[len(out)-1:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}

func selectResults(in []domain.ExecutionResult, keep func(domain.ExecutionResult) bool) []domain.ExecutionResult {
	var out []domain.ExecutionResult
	for _, r := range in {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// ResultSummary aggregates a job's full result history.
type ResultSummary struct {
	Total      int    `json:"total"`
	Successful int    `json:"successful"`
	Failed     int    `json:"failed"`
	FirstRun   string `json:"first_run,omitempty"`
	LastRun    string `json:"last_run,omitempty"`
}

// Summarize computes counts and first/last run timestamps over the full
// (unfiltered) history.
func Summarize(results []domain.ExecutionResult) ResultSummary {
	sum := ResultSummary{Total: len(results)}
	for _, r := range results {
		if r.Success {
			sum.Successful++
		} else {
			sum.Failed++
		}
	}
	if len(results) > 0 {
		sum.FirstRun = results[0].Timestamp
		sum.LastRun = results[len(results)-1].Timestamp
	}
	return sum
}
