// Command protorun executes measurement protocols against audio files and
// renders positioning reports from the stored results.
//
// Usage:
//
//	protorun run -protocol protocol.yaml -audio input.wav -out results/ [flags]
//	protorun report -results results/results.json -contexts contexts/ [flags]
//
// Examples:
//
//	protorun run -protocol p.yaml -audio take1.wav -out runs/take1
//	protorun run -protocol p.yaml -audio take1.wav -out runs/take1 -metrics runs/take1/metrics.prom
//	protorun report -results runs/take1/results.json -contexts contexts -xlsx
//	protorun report -results runs/take1/results.json -user-context mine.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cwbudde/algo-protocol/analysis"
	"github.com/cwbudde/algo-protocol/analysis/methods"
	"github.com/cwbudde/algo-protocol/channel"
	"github.com/cwbudde/algo-protocol/config"
	"github.com/cwbudde/algo-protocol/engine"
	"github.com/cwbudde/algo-protocol/internal/logging"
	"github.com/cwbudde/algo-protocol/internal/wavio"
	"github.com/cwbudde/algo-protocol/preprocess"
	"github.com/cwbudde/algo-protocol/protocol"
	"github.com/cwbudde/algo-protocol/reference"
	"github.com/cwbudde/algo-protocol/report"
)

// Report file names written by the report subcommand.
const (
	contextReportFile = "report_context.md"
	summaryReportFile = "report_summary.md"
	userReportFile    = "report_user.md"
	contextSheetFile  = "report_context.xlsx"
	userSheetFile     = "report_user.xlsx"
)

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)

	stop()

	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		if err != errUsage { //nolint:errorlint
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}

		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		usage(stderr)
		return errUsage
	}

	switch args[0] {
	case "run":
		return runProtocol(ctx, args[1:], stdout, stderr)
	case "report":
		return runReport(args[1:], stdout, stderr)
	case "help", "-h", "-help", "--help":
		usage(stdout)
		return nil
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)

		return errUsage
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: protorun <command> [flags]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	fmt.Fprintf(w, "  run     execute a protocol against an audio file\n")
	fmt.Fprintf(w, "  report  position stored results against context files\n\n")
	fmt.Fprintf(w, "Run 'protorun <command> -h' for command flags.\n")
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if errors.Is(err, flag.ErrHelp) {
		return errUsage
	}

	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	return nil
}

func settings(path string, stderr io.Writer) (config.Settings, *slog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Settings{}, nil, err
	}

	return cfg, logging.New(cfg.Logging, stderr), nil
}

func runProtocol(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("run", stderr)
	protocolPath := fs.String("protocol", "", "protocol YAML file (required)")
	audioPath := fs.String("audio", "", "WAV file to analyze (required)")
	outDir := fs.String("out", "", "output directory (required)")
	configPath := fs.String("config", "", "engine settings YAML file")
	metricsPath := fs.String("metrics", "", "write Prometheus text metrics to this file")

	err := parseFlags(fs, args)
	if err != nil {
		return err
	}

	if *protocolPath == "" || *audioPath == "" || *outDir == "" {
		fs.Usage()
		return fmt.Errorf("%w: -protocol, -audio and -out are required", errUsage)
	}

	cfg, logger, err := settings(*configPath, stderr)
	if err != nil {
		return err
	}

	reg := methods.DefaultRegistry()

	plan, err := protocol.NewLoader(reg, protocol.WithLogger(logger)).LoadFile(*protocolPath)
	if err != nil {
		return err
	}

	wav, err := wavio.ReadFile(*audioPath)
	if err != nil {
		return err
	}

	logger.Info("audio loaded",
		"path", *audioPath, "format", wav.Format, "sample_rate", wav.SampleRate,
		"channels", len(wav.Channels), "frames", wav.Frames)

	ec, err := executionContext(plan, wav)
	if err != nil {
		return err
	}

	promReg := prometheus.NewRegistry()

	metrics, err := engine.NewMetrics(promReg)
	if err != nil {
		return err
	}

	runner := engine.NewRunner(reg,
		engine.WithSettings(cfg.Engine),
		engine.WithLogger(logger),
		engine.WithMetrics(metrics),
	)

	doc, vis, err := runner.Run(ctx, plan, ec)
	if err != nil {
		return err
	}

	doc.Meta.File = &engine.FileInfo{
		Path:            *audioPath,
		Format:          wav.Format,
		SampleRate:      wav.SampleRate,
		Channels:        len(wav.Channels),
		Frames:          wav.Frames,
		DurationSeconds: wav.Duration(),
	}

	written, err := engine.Persist(*outDir, plan, doc, vis)
	if err != nil {
		return err
	}

	if *metricsPath != "" {
		err := prometheus.WriteToTextfile(*metricsPath, promReg)
		if err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}

		written = append(written, *metricsPath)
	}

	s := doc.Meta.Summary
	logger.Info("run finished",
		"run_id", doc.Meta.RunID, "total", s.Total, "executed", s.Executed,
		"contract_violations", s.ContractViolations, "not_executed", s.NotExecuted)

	for _, path := range written {
		fmt.Fprintln(stdout, path)
	}

	return nil
}

func executionContext(plan *protocol.Plan, wav *wavio.File) (*analysis.ExecutionContext, error) {
	buffers, err := channel.Derive(channel.Audio{
		Channels:   wav.Channels,
		SampleRate: wav.SampleRate,
		Frames:     wav.Frames,
	}, plan.Channels)
	if err != nil {
		return nil, err
	}

	buffers, pre, err := preprocess.Apply(plan.Preprocessing, buffers, plan.Channels, wav.SampleRate)
	if err != nil {
		return nil, err
	}

	return analysis.NewExecutionContext(buffers, plan.Channels, wav.SampleRate, pre)
}

func runReport(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("report", stderr)
	resultsPath := fs.String("results", "", "results.json written by run (required)")
	contextsDir := fs.String("contexts", "", "directory holding context_<family>.yaml files")
	userPath := fs.String("user-context", "", "user context YAML file")
	outDir := fs.String("out", "", "report directory (default: directory of -results)")
	xlsx := fs.Bool("xlsx", false, "also write spreadsheet reports")
	configPath := fs.String("config", "", "settings YAML file")

	err := parseFlags(fs, args)
	if err != nil {
		return err
	}

	if *resultsPath == "" {
		fs.Usage()
		return fmt.Errorf("%w: -results is required", errUsage)
	}

	if *outDir == "" {
		*outDir = filepath.Dir(*resultsPath)
	}

	_, logger, err := settings(*configPath, stderr)
	if err != nil {
		return err
	}

	doc, err := engine.ReadFile(*resultsPath)
	if err != nil {
		return err
	}

	loader := reference.NewLoader(reference.WithLogger(logger))
	matcher := reference.NewMatcher(reference.WithLogger(logger))

	set := reference.NewSet()
	if *contextsDir != "" {
		set = loader.LoadSet(*contextsDir, analysis.Families())
	}

	rep, err := report.Build(matcher.Match(doc, set))
	if err != nil {
		return err
	}

	rep.Meta = &doc.Meta
	rep.Contexts = contexts(set)

	var written []string

	write := func(name string, fn func(io.Writer) error) error {
		path := filepath.Join(*outDir, name)

		err := writeReport(path, fn)
		if err != nil {
			return err
		}

		written = append(written, path)

		return nil
	}

	err = os.MkdirAll(*outDir, 0o755)
	if err != nil {
		return err
	}

	err = write(contextReportFile, rep.WriteMarkdown)
	if err != nil {
		return err
	}

	err = write(summaryReportFile, func(w io.Writer) error { return report.WriteSummary(doc, w) })
	if err != nil {
		return err
	}

	if *xlsx {
		path := filepath.Join(*outDir, contextSheetFile)

		err := report.WriteXLSX(rep, path)
		if err != nil {
			return err
		}

		written = append(written, path)
	}

	if *userPath != "" {
		user, err := loader.LoadUser(*userPath)
		if err != nil {
			return err
		}

		userRep, err := report.BuildUser(matcher.MatchUser(doc, user))
		if err != nil {
			return err
		}

		userRep.Meta = &doc.Meta
		userRep.Contexts = map[analysis.Family]*reference.Context{analysis.Family(user.Family): user}

		err = write(userReportFile, userRep.WriteMarkdown)
		if err != nil {
			return err
		}

		if *xlsx {
			path := filepath.Join(*outDir, userSheetFile)

			err := report.WriteXLSX(userRep, path)
			if err != nil {
				return err
			}

			written = append(written, path)
		}
	}

	logger.Info("reports written", "run_id", doc.Meta.RunID, "records", rep.Count())

	for _, path := range written {
		fmt.Fprintln(stdout, path)
	}

	return nil
}

func contexts(set *reference.Set) map[analysis.Family]*reference.Context {
	out := make(map[analysis.Family]*reference.Context)

	for _, f := range set.Families() {
		c, err := set.Context(f)
		if err == nil {
			out[f] = c
		}
	}

	return out
}

func writeReport(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	err = fn(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}

	return f.Close()
}
