package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"taskpilot/cmd/taskpilot/daemon"
	"taskpilot/internal/adapter/notify"
	"taskpilot/internal/infra/config"
	"taskpilot/internal/infra/logger"
	"taskpilot/internal/infra/tracer"
	"taskpilot/internal/usecase/executor"
	"taskpilot/internal/usecase/jobs"
	"taskpilot/internal/usecase/loop"
)

// Command is the validated first CLI argument. Parsing to a typed value up
// front means dispatch below cannot silently fall through on a typo.
type Command int

const (
	CmdRun Command = iota
	CmdSchedule
	CmdList
	CmdPause
	CmdResume
	CmdDelete
	CmdLogs
	CmdResults
	CmdDoctor
	CmdInstall
	CmdUninstall
	CmdStatus
	CmdHelp
)

var commandNames = map[string]Command{
	"run":       CmdRun,
	"schedule":  CmdSchedule,
	"list":      CmdList,
	"pause":     CmdPause,
	"resume":    CmdResume,
	"delete":    CmdDelete,
	"logs":      CmdLogs,
	"results":   CmdResults,
	"doctor":    CmdDoctor,
	"install":   CmdInstall,
	"uninstall": CmdUninstall,
	"status":    CmdStatus,
	"help":      CmdHelp,
	"--help":    CmdHelp,
	"-h":        CmdHelp,
}

// parseCommand validates os.Args[1]. An unknown command is a defined error,
// not a fallthrough.
func parseCommand(args []string) (Command, []string, error) {
	if len(args) < 2 {
		return CmdHelp, nil, nil
	}
	cmd, ok := commandNames[args[1]]
	if !ok {
		return 0, nil, fmt.Errorf("unknown command: %s", args[1])
	}
	return cmd, args[2:], nil
}

func main() {
	cmd, rest, err := parseCommand(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n\nRun 'taskpilot help' for usage information.\n", err)
		os.Exit(1)
	}

	switch cmd {
	case CmdHelp:
		showUsage()
	case CmdRun:
		if err := runDaemon(); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	case CmdDoctor:
		if err := runDoctor(); err != nil {
			fmt.Fprintf(os.Stderr, "doctor: %v\n", err)
			os.Exit(1)
		}
	case CmdInstall, CmdUninstall, CmdStatus:
		if err := runService(cmd); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	default:
		if err := runManagement(cmd, rest); err != nil {
			os.Exit(1)
		}
	}
}

func showUsage() {
	fmt.Println(`taskpilot - natural-language task scheduler

USAGE:
    taskpilot COMMAND [ARGS] [FLAGS]

COMMANDS:
    run         Run the scheduler loop (foreground daemon)
    schedule    Schedule a job:
                taskpilot schedule NAME SCHEDULE AGENT RUNTIME TASK...
    list        List all jobs
    pause       Pause a job:      taskpilot pause JOB_ID
    resume      Resume a job:     taskpilot resume JOB_ID
    delete      Delete a job:     taskpilot delete JOB_ID
    logs        Show a job's log: taskpilot logs JOB_ID
    results     Show execution results:
                taskpilot results JOB_ID [--success|--errors|--latest|--limit N]
    doctor      Run health checks on the scheduler setup
    install     Install the scheduler as a system service (systemd/launchd)
    uninstall   Remove the installed system service
    status      Show whether the installed service is running
    help        Show this help message

SCHEDULE FLAGS:
    --mode MODE          "ai" (default) or "command"
    --model NAME         Model override for AI mode
    --notify             Notify the creator after each run
    --once               One-time job (default is recurring)
    --channel NAME       Creator channel (telegram, webex, discord, slack)
    --identity ID        Creator identity (chat id, email, or user id)
    --username NAME      Creator display name
    --working-dir PATH   Working directory for command mode

SCHEDULE PHRASES:
    "in 30 minutes", "in 2 hours", "every 5 minutes", "every day at 09:00",
    "every day at 6 pm", or a five-field cron expression.

CONFIGURATION:
    Config file: --config PATH (default: ./config.yaml, may be absent)
    Environment: TASKPILOT_* variables override config

EXAMPLES:
    taskpilot schedule "Daily Report" "every day at 09:00" general claude \
        summarize yesterday --notify --channel telegram --identity 12345
    taskpilot schedule "Disk Check" "every 30 minutes" - - "df -h /" --mode command
    taskpilot run
    taskpilot results daily-report --latest`)
}

// runService manages the scheduler's system service registration.
func runService(cmd Command) error {
	svc := daemon.DefaultConfig()
	svc.ConfigPath = configPath()

	switch cmd {
	case CmdInstall:
		if err := svc.Validate(); err != nil {
			return fmt.Errorf("install: %w", err)
		}
		if err := daemon.Install(svc); err != nil {
			return fmt.Errorf("install: %w", err)
		}
		fmt.Printf("Installed %s service (config: %s)\n", svc.Name, svc.ConfigPath)
	case CmdUninstall:
		if err := daemon.Uninstall(svc.Name); err != nil {
			return fmt.Errorf("uninstall: %w", err)
		}
		fmt.Printf("Uninstalled %s service\n", svc.Name)
	case CmdStatus:
		status, err := daemon.Status(svc.Name)
		if err != nil {
			return fmt.Errorf("status: %w", err)
		}
		if status.Running {
			fmt.Printf("%s is running (pid %d)\n", svc.Name, status.PID)
		} else {
			fmt.Printf("%s is not running\n", svc.Name)
		}
	}
	return nil
}

// configPath resolves the config file location from --config or env.
func configPath() string {
	for i, arg := range os.Args {
		if arg == "--config" && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	if p := os.Getenv("TASKPILOT_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

// buildCore wires the storage layer shared by the daemon and the management
// commands.
func buildCore(cfg *config.Config, log *slog.Logger) (*jobs.Store, *jobs.Journal, error) {
	journal, err := jobs.NewJournal(cfg.Data.LogsDir, cfg.Data.ResultsDir, log)
	if err != nil {
		return nil, nil, err
	}
	store, err := jobs.NewStore(cfg.Data.JobsFile, journal, log)
	if err != nil {
		return nil, nil, err
	}
	return store, journal, nil
}

// runDaemon runs the scheduler loop until SIGINT/SIGTERM.
func runDaemon() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	ctx := context.Background()
	tracerShutdown, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("tracer: %w", err)
	}
	defer tracerShutdown(ctx)

	store, journal, err := buildCore(cfg, log)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	dispatcher := notify.NewDispatcher(cfg.Notify, journal, log)

	exec := executor.New(executor.Config{
		Timeout:           cfg.Executor.Timeout,
		WorkingDir:        cfg.Executor.WorkingDir,
		RunnerPath:        cfg.Executor.RunnerPath,
		AgentsConfigPath:  cfg.Executor.AgentsConfigPath,
		DefaultAgent:      cfg.Executor.DefaultAgent,
		DefaultRuntime:    cfg.Executor.DefaultRuntime,
		DefaultModel:      cfg.Executor.DefaultModel,
		RuntimeModels:     cfg.Executor.RuntimeModels,
		BypassPermissions: cfg.Executor.BypassPermissions,
	}, executor.NewExecRunner(), journal, dispatcher, log)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("taskpilot starting",
		"jobs_file", cfg.Data.JobsFile,
		"interval", cfg.Scheduler.PollInterval,
		"runner", cfg.Executor.RunnerPath,
		"channels", dispatcher.Channels(),
	)

	loop.New(store, journal, exec, cfg.Scheduler.PollInterval, log).Run(ctx)
	return nil
}
