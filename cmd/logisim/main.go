// Command logisim runs field-logistics scenarios: it validates scenario
// files, executes deterministic simulation runs, and exports event logs,
// KPI reports, and archived results.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/fieldops/logistics-simulator/analysis"
	"github.com/fieldops/logistics-simulator/core"
	"github.com/fieldops/logistics-simulator/internal/export"
	"github.com/fieldops/logistics-simulator/internal/logging"
	"github.com/fieldops/logistics-simulator/internal/observability"
	"github.com/fieldops/logistics-simulator/model"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	log := logging.NewFromEnv()

	var err error
	switch os.Args[1] {
	case "run":
		err = runCmd(os.Args[2:], log)
	case "validate":
		err = validateCmd(os.Args[2:], log)
	case "schema":
		err = schemaCmd()
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: logisim <command> [flags]

commands:
  run [scenario]       execute a scenario and report KPIs
  validate [scenario]  check a scenario file and print its summary
  schema               print the scenario JSON schema

run 'logisim <command> -h' for command flags
`)
}

// splitScenarioArg peels a leading positional scenario path off args, so
// "logisim run scenario.yaml -output out" works alongside -scenario. The
// flag package stops parsing at the first non-flag argument, so the path
// has to come off before Parse sees it.
func splitScenarioArg(args []string) (string, []string) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return args[0], args[1:]
	}
	return "", args
}

func runCmd(args []string, log logging.Logger) error {
	positional, args := splitScenarioArg(args)
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	scenarioPath := fs.String("scenario", "", "path to a scenario file (JSON or YAML)")
	seed := fs.Int64("seed", 0, "override the scenario's random seed (0 keeps the scenario value)")
	outputDir := fs.String("output", "", "directory for CSV and KPI exports (omit to skip)")
	sqlitePath := fs.String("sqlite", "", "SQLite archive to append this run to (omit to skip)")
	metricsAddr := fs.String("metrics-addr", "", "HTTP address for Prometheus /metrics during the run (omit to disable)")
	quiet := fs.Bool("quiet", false, "suppress the KPI summary on stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *scenarioPath == "" {
		*scenarioPath = positional
	}
	if *scenarioPath == "" {
		return fmt.Errorf("run: scenario file is required (positional or -scenario)")
	}

	ctx, log := logging.WithRunLogger(context.Background(), log)
	runID := logging.RunIDFromContext(ctx)

	shutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	tracer := otel.Tracer("logisim")

	ctx, loadSpan := tracer.Start(ctx, "scenario.load")
	scenario, err := model.LoadScenario(*scenarioPath)
	loadSpan.End()
	if err != nil {
		return err
	}
	if *seed != 0 {
		scenario.Config.RandomSeed = *seed
	}

	log.Info(ctx, "scenario loaded",
		logging.String("path", *scenarioPath),
		logging.Int("nodes", len(scenario.Nodes)),
		logging.Int("vehicles", len(scenario.Vehicles)),
		logging.Any("seed", scenario.Config.RandomSeed),
	)

	engine, err := core.NewEngine(scenario, log)
	if err != nil {
		return err
	}

	var collector *observability.RunCollector
	var metricsSrv *http.Server
	if *metricsAddr != "" {
		collector, err = observability.NewRunCollector(nil)
		if err != nil {
			return fmt.Errorf("init metrics collector: %w", err)
		}
		engine.Log().SetObserver(collector.WatchEngine(engine))
		metricsSrv = serveMetrics(*metricsAddr, collector, log)
	}

	ctx, runSpan := tracer.Start(ctx, "simulation.run")
	eventLog, err := engine.Run(ctx)
	runSpan.End()
	if err != nil {
		return err
	}

	_, kpiSpan := tracer.Start(ctx, "analysis.kpis")
	kpis := analysis.ComputeAllKPIs(eventLog)
	kpiSpan.End()

	if *outputDir != "" {
		_, exportSpan := tracer.Start(ctx, "export.files")
		err := writeOutputs(*outputDir, eventLog, kpis)
		exportSpan.End()
		if err != nil {
			return err
		}
		log.Info(ctx, "exports written", logging.String("dir", *outputDir))
	}

	if *sqlitePath != "" {
		_, archiveSpan := tracer.Start(ctx, "export.archive")
		err := archiveRun(*sqlitePath, runID, *scenarioPath, engine, eventLog, kpis)
		archiveSpan.End()
		if err != nil {
			return err
		}
		log.Info(ctx, "run archived", logging.String("path", *sqlitePath))
	}

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}

	if !*quiet {
		fmt.Println(kpis.Summary())
	}

	log.Info(ctx, "run complete",
		logging.String("state", string(engine.State())),
		logging.Int("events", len(eventLog.Events())),
	)
	return nil
}

func validateCmd(args []string, log logging.Logger) error {
	positional, args := splitScenarioArg(args)
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	scenarioPath := fs.String("scenario", "", "path to a scenario file (JSON or YAML)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *scenarioPath == "" {
		*scenarioPath = positional
	}
	if *scenarioPath == "" {
		return fmt.Errorf("validate: scenario file is required (positional or -scenario)")
	}

	scenario, err := model.LoadScenario(*scenarioPath)
	if err != nil {
		return err
	}
	fmt.Println(scenario.Summary())
	log.Info(context.Background(), "scenario valid", logging.String("path", *scenarioPath))
	return nil
}

func schemaCmd() error {
	data, err := json.MarshalIndent(model.Schema(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func writeOutputs(dir string, eventLog *core.EventLog, kpis analysis.AllKPIs) error {
	if err := export.WriteCSVs(dir, eventLog); err != nil {
		return err
	}
	return export.WriteKPIs(dir, kpis)
}

func archiveRun(path, runID, scenarioPath string, engine *core.Engine, eventLog *core.EventLog, kpis analysis.AllKPIs) error {
	archive, err := export.OpenArchive(path)
	if err != nil {
		return err
	}
	defer archive.Close()
	return archive.SaveRun(runID, scenarioPath, string(engine.State()), engine.ClockMins(), eventLog, kpis)
}

func serveMetrics(addr string, collector *observability.RunCollector, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
