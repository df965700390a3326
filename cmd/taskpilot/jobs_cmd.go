package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"taskpilot/internal/domain"
	"taskpilot/internal/infra/config"
	"taskpilot/internal/usecase/jobs"
)

// cmdResult is the JSON envelope every management command prints.
type cmdResult struct {
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Message string `json:"message,omitempty"`
}

func printResult(res cmdResult) {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode result: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func fail(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	printResult(cmdResult{Success: false, Message: err.Error()})
	return err
}

// parseFlags splits args into positional arguments and --flag values.
// Boolean flags map to "true"; both "--flag value" and "--flag=value" work.
func parseFlags(args []string, boolFlags map[string]bool) (positional []string, flags map[string]string) {
	flags = make(map[string]string)
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			positional = append(positional, arg)
			continue
		}
		name := strings.TrimPrefix(arg, "--")
		if eq := strings.Index(name, "="); eq >= 0 {
			flags[name[:eq]] = name[eq+1:]
			continue
		}
		if boolFlags[name] {
			flags[name] = "true"
			continue
		}
		if i+1 < len(args) {
			flags[name] = args[i+1]
			i++
		} else {
			flags[name] = ""
		}
	}
	return positional, flags
}

// runManagement executes a non-daemon command and prints its JSON result.
func runManagement(cmd Command, args []string) error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fail("config: %v", err)
	}

	// Management commands log to stderr only on warnings; the JSON envelope
	// on stdout is the contract.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	store, journal, err := buildCore(cfg, log)
	if err != nil {
		return fail("storage: %v", err)
	}

	switch cmd {
	case CmdSchedule:
		return runSchedule(store, args)
	case CmdList:
		return runList(store)
	case CmdPause:
		return runToggle(store, args, "pause")
	case CmdResume:
		return runToggle(store, args, "resume")
	case CmdDelete:
		return runDelete(store, args)
	case CmdLogs:
		return runLogs(store, args)
	case CmdResults:
		return runResults(journal, args)
	}
	return fail("unknown command")
}

func runSchedule(store *jobs.Store, args []string) error {
	positional, flags := parseFlags(args, map[string]bool{
		"notify": true,
		"once":   true,
	})
	if len(positional) < 5 {
		return fail("usage: taskpilot schedule NAME SCHEDULE AGENT RUNTIME TASK...")
	}

	mode := domain.ModeAI
	switch flags["mode"] {
	case "", "ai":
	case "command":
		mode = domain.ModeCommand
	default:
		return fail("invalid --mode %q: must be \"ai\" or \"command\"", flags["mode"])
	}

	job, err := store.Create(jobs.CreateParams{
		Name:      positional[0],
		Schedule:  positional[1],
		Agent:     positional[2],
		Runtime:   positional[3],
		Model:     flags["model"],
		Task:      strings.Join(positional[4:], " "),
		Mode:      mode,
		Notify:    flags["notify"] == "true",
		Recurring: flags["once"] != "true",
		CreatedBy: domain.Creator{
			Identity: flags["identity"],
			Channel:  flags["channel"],
			Username: flags["username"],
		},
		WorkingDir: flags["working-dir"],
	})
	if err != nil {
		return fail("schedule: %v", err)
	}

	printResult(cmdResult{
		Success: true,
		Result:  job,
		Message: fmt.Sprintf("Scheduled %q (%s), next run %s", job.Name, job.ID, formatNextRun(job)),
	})
	return nil
}

func formatNextRun(job *domain.Job) string {
	if job.NextRun == nil {
		return "never"
	}
	return job.NextRun.UTC().Format(domain.TimestampLayout)
}

func runList(store *jobs.Store) error {
	list, err := store.List()
	if err != nil {
		return fail("list: %v", err)
	}
	printResult(cmdResult{
		Success: true,
		Result:  list,
		Message: fmt.Sprintf("%d job(s)", len(list)),
	})
	return nil
}

func runToggle(store *jobs.Store, args []string, verb string) error {
	positional, _ := parseFlags(args, nil)
	if len(positional) < 1 {
		return fail("usage: taskpilot %s JOB_ID", verb)
	}
	id := positional[0]

	var err error
	if verb == "pause" {
		err = store.Pause(id)
	} else {
		err = store.Resume(id)
	}
	if err != nil {
		return fail("%s: %v", verb, err)
	}

	printResult(cmdResult{Success: true, Message: fmt.Sprintf("Job %s %sd", id, verb)})
	return nil
}

func runDelete(store *jobs.Store, args []string) error {
	positional, _ := parseFlags(args, nil)
	if len(positional) < 1 {
		return fail("usage: taskpilot delete JOB_ID")
	}
	if err := store.Delete(positional[0]); err != nil {
		return fail("delete: %v", err)
	}
	printResult(cmdResult{Success: true, Message: fmt.Sprintf("Job %s deleted", positional[0])})
	return nil
}

func runLogs(store *jobs.Store, args []string) error {
	positional, _ := parseFlags(args, nil)
	if len(positional) < 1 {
		return fail("usage: taskpilot logs JOB_ID")
	}
	content, err := store.Logs(positional[0])
	if err != nil {
		return fail("logs: %v", err)
	}
	printResult(cmdResult{Success: true, Result: content})
	return nil
}
