package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"seadog/internal/events"
	"seadog/internal/logging"
	"seadog/internal/model"
	"seadog/internal/orchestrator"
	"seadog/internal/registry"
	"seadog/internal/report"
	"seadog/internal/suite"
	"seadog/internal/unit"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runSuite(os.Args[2:])
	case "mission":
		runMission(os.Args[2:])
	case "watch":
		runWatch(os.Args[2:])
	case "version":
		fmt.Printf("seadog %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runSuite(args []string) {
	var configPath, suiteType, outputDir, format, dashboardURL, logLevel string
	var targets []string
	parallel := false
	format = string(report.FormatJSON)
	logLevel = "info"

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				os.Exit(1)
			}
			i++
			configPath = args[i]
		case "--suite-type":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--suite-type requires a value")
				os.Exit(1)
			}
			i++
			suiteType = args[i]
		case "--target":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--target requires a value")
				os.Exit(1)
			}
			i++
			targets = append(targets, args[i])
		case "--output":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--output requires a value")
				os.Exit(1)
			}
			i++
			outputDir = args[i]
		case "--format":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--format requires a value")
				os.Exit(1)
			}
			i++
			format = args[i]
		case "--dashboard":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--dashboard requires a value")
				os.Exit(1)
			}
			i++
			dashboardURL = args[i]
		case "--log-level":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--log-level requires a value")
				os.Exit(1)
			}
			i++
			logLevel = args[i]
		case "--parallel":
			parallel = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\n", args[i])
			fmt.Fprintln(os.Stderr, "usage: seadog run [--config <path>] [--suite-type <type>] [--target <url>]... [--parallel] [--output <dir>] [--format json|yaml] [--dashboard <ws-url>] [--log-level <level>]")
			os.Exit(1)
		}
	}

	logger := logging.New(os.Stderr, logging.ParseLevel(logLevel))

	cfg, err := resolveConfig(configPath, suiteType, targets)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if parallel {
		cfg.Parallel = true
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "reports"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewBus(256)
	defer bus.Close()

	sitrepLog, err := events.NewSitrepLog(filepath.Join(cfg.OutputDir, "sitrep.jsonl"), events.DefaultMaxLogSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open sitrep log: %v\n", err)
		os.Exit(1)
	}
	defer sitrepLog.Close()
	detach := sitrepLog.Attach(bus, events.EventSitrep, events.EventUnitPhase, events.EventMissionCompleted, events.EventScenarioCompleted, events.EventSuiteCompleted)
	defer detach()

	reg := registry.New()
	var units []*unit.Operator
	for _, d := range buildRoster() {
		op := unit.NewOperator(d, bus, logger)
		reg.Register(op)
		units = append(units, op)
	}
	logger.Infof("ROSTER: %d units across squads %v", reg.Len(), reg.Groups())

	scenarios, err := suite.BuildScenarios(cfg, units, bus, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build scenarios: %v\n", err)
		os.Exit(1)
	}

	fileSink, err := report.NewFileSink(cfg.OutputDir, report.Format(format))
	if err != nil {
		fmt.Fprintf(os.Stderr, "report sink: %v\n", err)
		os.Exit(1)
	}
	sinks := report.MultiSink{fileSink}
	if dashboardURL != "" {
		dash := report.NewDashboardSink(dashboardURL, logger)
		defer dash.Close()
		sinks = append(sinks, dash)
	}

	runner := suite.NewRunner(bus, logger)
	suiteReport := runner.Run(ctx, cfg, scenarios)

	for _, sc := range suiteReport.Scenarios {
		if err := sinks.PersistScenario(sc); err != nil {
			logger.Warnf("persist scenario %s: %v", sc.ScenarioID, err)
		}
	}
	if err := sinks.PersistSuite(suiteReport); err != nil {
		fmt.Fprintf(os.Stderr, "persist report: %v\n", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(suiteReport.Summary, "", "  ")
	fmt.Println(string(out))

	if suiteReport.Summary.Verdict != model.VerdictPassed {
		os.Exit(2)
	}
}

// runMission dispatches a single mission through the orchestrator, outside
// any suite. Units default to auto-selection by mission type.
func runMission(args []string) {
	missionType := string(model.MissionSpecialRecon)
	logLevel := "info"
	timeLimitSec := 0
	var targets, unitIDs []string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--type":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--type requires a value")
				os.Exit(1)
			}
			i++
			missionType = args[i]
		case "--target":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--target requires a value")
				os.Exit(1)
			}
			i++
			targets = append(targets, args[i])
		case "--unit":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--unit requires a value")
				os.Exit(1)
			}
			i++
			unitIDs = append(unitIDs, args[i])
		case "--time-limit":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--time-limit requires a value")
				os.Exit(1)
			}
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil || n <= 0 {
				fmt.Fprintf(os.Stderr, "--time-limit: invalid seconds %q\n", args[i])
				os.Exit(1)
			}
			timeLimitSec = n
		case "--log-level":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--log-level requires a value")
				os.Exit(1)
			}
			i++
			logLevel = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\n", args[i])
			fmt.Fprintln(os.Stderr, "usage: seadog mission [--type DA|SR|UW|FID] [--target <url>]... [--unit <id>]... [--time-limit <sec>] [--log-level <level>]")
			os.Exit(1)
		}
	}

	switch model.MissionType(missionType) {
	case model.MissionDirectAction, model.MissionSpecialRecon,
		model.MissionUnconventionalWarfare, model.MissionInternalDefense:
	default:
		fmt.Fprintf(os.Stderr, "unknown mission type %q (want DA, SR, UW or FID)\n", missionType)
		os.Exit(1)
	}
	if len(targets) == 0 {
		fmt.Fprintln(os.Stderr, "at least one --target is required")
		os.Exit(1)
	}

	logger := logging.New(os.Stderr, logging.ParseLevel(logLevel))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := events.NewBus(256)
	defer bus.Close()

	reg := registry.New()
	for _, d := range buildRoster() {
		reg.Register(unit.NewOperator(d, bus, logger))
	}
	logger.Infof("ROSTER: %d units across squads %v", reg.Len(), reg.Groups())

	orch, err := orchestrator.New(reg, bus, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "orchestrator: %v\n", err)
		os.Exit(1)
	}

	params := model.MissionParameters{
		Type:    model.MissionType(missionType),
		Targets: targets,
	}
	if timeLimitSec > 0 {
		params.TimeLimit = time.Duration(timeLimitSec) * time.Second
	}

	result := orch.Execute(ctx, params, unitIDs)

	out, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(out))

	if !result.OverallSuccess {
		os.Exit(2)
	}
}

// resolveConfig takes the YAML file when given, otherwise builds a config
// from the suite type and targets on the command line.
func resolveConfig(configPath, suiteType string, targets []string) (model.SuiteConfig, error) {
	if configPath != "" {
		return suite.LoadConfig(configPath)
	}
	if len(targets) == 0 {
		return model.SuiteConfig{}, fmt.Errorf("no --config and no --target given")
	}

	switch model.SuiteType(strings.ToUpper(suiteType)) {
	case model.SuiteStressTesting:
		return suite.NewStressConfig(targets), nil
	case model.SuiteFullSpectrum:
		return suite.NewFullSpectrumConfig(targets), nil
	case model.SuiteReconnaissance, "":
		return suite.NewReconnaissanceConfig(targets), nil
	default:
		return model.SuiteConfig{}, fmt.Errorf("unknown suite type %q", suiteType)
	}
}

func runWatch(args []string) {
	dir := "reports"
	var dashboardURL string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--dir":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--dir requires a value")
				os.Exit(1)
			}
			i++
			dir = args[i]
		case "--dashboard":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--dashboard requires a value")
				os.Exit(1)
			}
			i++
			dashboardURL = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: seadog watch [--dir <path>] [--dashboard <ws-url>]\n", args[i])
			os.Exit(1)
		}
	}

	logger := logging.New(os.Stderr, logging.LevelInfo)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := report.NewWatcher(dir, logger)

	if dashboardURL != "" {
		dash := report.NewDashboardSink(dashboardURL, logger)
		defer dash.Close()
		if err := w.Forward(ctx, dash); err != nil {
			fmt.Fprintf(os.Stderr, "watch %s: %v\n", dir, err)
			os.Exit(1)
		}
		return
	}

	paths, err := w.Watch(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "watch %s: %v\n", dir, err)
		os.Exit(1)
	}
	for path := range paths {
		fmt.Println(path)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `seadog %s — mission-based test orchestration

Usage: seadog <command> [options]

Commands:
  run [flags]       Execute a test suite against the configured targets
      --config <path>       Suite config YAML (overrides other flags)
      --suite-type <type>   RECONNAISSANCE | STRESS_TESTING | FULL_SPECTRUM
      --target <url>        Target endpoint (repeatable)
      --parallel            Run scenarios concurrently
      --output <dir>        Report directory (default: reports)
      --format <fmt>        Report encoding: json or yaml (default: json)
      --dashboard <ws-url>  Push live results to a dashboard websocket
      --log-level <level>   debug | info | warn | error (default: info)
  mission [flags]   Dispatch a single mission through the orchestrator
      --type <type>         DA | SR | UW | FID (default: SR)
      --target <url>        Target endpoint (repeatable)
      --unit <id>           Explicit unit selection (repeatable, default: auto)
      --time-limit <sec>    Mission time limit in seconds (default: 300)
      --log-level <level>   debug | info | warn | error (default: info)
  watch [flags]     Follow the report directory
      --dir <path>          Directory to watch (default: reports)
      --dashboard <ws-url>  Forward landed reports to a dashboard websocket
  version           Show version
  help              Show this help

`, version)
}
