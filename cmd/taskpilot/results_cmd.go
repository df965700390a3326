package main

import (
	"fmt"
	"strconv"

	"taskpilot/internal/usecase/jobs"
)

// resultsView is the payload of the results command: filtered records plus a
// summary over the full history.
type resultsView struct {
	JobID   string             `json:"job_id"`
	Records []map[string]any   `json:"records"`
	Summary jobs.ResultSummary `json:"summary"`
}

func runResults(journal *jobs.Journal, args []string) error {
	positional, flags := parseFlags(args, map[string]bool{
		"success": true,
		"errors":  true,
		"latest":  true,
	})
	if len(positional) < 1 {
		return fail("usage: taskpilot results JOB_ID [--success|--errors|--latest|--limit N]")
	}
	jobID := positional[0]

	filter := jobs.ResultFilter{
		SuccessOnly: flags["success"] == "true",
		ErrorsOnly:  flags["errors"] == "true",
		Latest:      flags["latest"] == "true",
	}
	if filter.SuccessOnly && filter.ErrorsOnly {
		return fail("--success and --errors are mutually exclusive")
	}
	if raw, ok := flags["limit"]; ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return fail("invalid --limit %q: must be a positive integer", raw)
		}
		filter.Limit = n
	}

	history, err := journal.ReadResults(jobID)
	if err != nil {
		return fail("results: %v", err)
	}

	filtered := filter.Filter(history)
	records := make([]map[string]any, 0, len(filtered))
	for _, r := range filtered {
		rec := map[string]any{
			"run_id":    r.RunID,
			"timestamp": r.Timestamp,
			"success":   r.Success,
		}
		if r.Output != "" {
			rec["output"] = r.Output
		}
		if r.Error != "" {
			rec["error"] = r.Error
		}
		records = append(records, rec)
	}

	printResult(cmdResult{
		Success: true,
		Result: resultsView{
			JobID:   jobID,
			Records: records,
			Summary: jobs.Summarize(history),
		},
		Message: fmt.Sprintf("%d of %d record(s)", len(filtered), len(history)),
	})
	return nil
}
