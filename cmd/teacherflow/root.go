package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/shroroh/teacherflow/internal/report"
	"github.com/shroroh/teacherflow/internal/settings"
	"github.com/shroroh/teacherflow/internal/students"
	"github.com/shroroh/teacherflow/internal/teacher"
	"github.com/shroroh/teacherflow/pkg/flowgraph"
	"github.com/shroroh/teacherflow/pkg/flowgraph/checkpoint"
	"github.com/shroroh/teacherflow/pkg/flowgraph/config"
	"github.com/shroroh/teacherflow/pkg/flowgraph/llm"
)

// deps are the process boundaries, replaced in tests.
type deps struct {
	newClient func(llm.ProviderConfig) (llm.Client, error)
	env       settings.Env
	stdout    io.Writer
	stderr    io.Writer
}

func defaultDeps() deps {
	return deps{
		newClient: llm.NewClient,
		env:       settings.OSEnv(),
		stdout:    os.Stdout,
		stderr:    os.Stderr,
	}
}

type options struct {
	studentIDs   []string
	noCache      bool
	maxSubjects  int
	maxTopics    int
	format       string
	outputDir    string
	configPath   string
	studentsPath string
	pretty       bool
	trace        bool
	concurrency  int
	logLevel     string
	logFormat    string
	checkpointDB string
	metrics      bool
}

func newRootCmd(d deps) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "teacherflow",
		Short: "Generate personalized teacher feedback for students",
		Long: `teacherflow assesses a student's marks, ranks the subjects that need
attention, plans topics to study and writes a teacher's conclusion as a
PDF or Markdown document.

The LLM provider is chosen with LLM_PROVIDER; <PROVIDER>_MODEL,
<PROVIDER>_BASE_URL and <PROVIDER>_API_KEY configure it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), d, cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringArrayVar(&opts.studentIDs, "student-id", nil, "student login in the database (repeatable)")
	f.BoolVar(&opts.noCache, "no-cache", false, "disable LLM response caching")
	f.IntVar(&opts.maxSubjects, "max-subjects", teacher.DefaultMaxSubjects, "maximum number of subjects to assess")
	f.IntVar(&opts.maxTopics, "max-topics", teacher.DefaultMaxTopics, "maximum number of learning topics to generate")
	f.StringVar(&opts.format, "format", "", "output format: pdf or markdown (default from config, else pdf)")
	f.StringVarP(&opts.outputDir, "output-dir", "o", "", "directory for generated documents (default from config, else output)")
	f.StringVarP(&opts.configPath, "config", "c", "teacherflow.yaml", "optional YAML or JSON config file")
	f.StringVar(&opts.studentsPath, "students", "", "YAML file replacing the built-in student database")
	f.BoolVar(&opts.pretty, "pretty", false, "render the conclusion for the terminal")
	f.BoolVar(&opts.trace, "trace", false, "print OpenTelemetry spans to stderr")
	f.BoolVar(&opts.metrics, "metrics", false, "print stage and cache metrics to stderr after the run")
	f.IntVar(&opts.concurrency, "concurrency", 2, "students processed at once")
	f.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn or error")
	f.StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")
	f.StringVar(&opts.checkpointDB, "checkpoint-db", "", "SQLite file recording each stage's outputs (default from config, else off)")
	_ = cmd.MarkFlagRequired("student-id")

	cmd.AddCommand(newCheckpointsCmd(d))

	return cmd
}

func (o options) validate() error {
	switch {
	case o.maxSubjects < 1:
		return fmt.Errorf("--max-subjects must be positive, got %d", o.maxSubjects)
	case o.maxTopics < 1:
		return fmt.Errorf("--max-topics must be positive, got %d", o.maxTopics)
	case o.concurrency < 1:
		return fmt.Errorf("--concurrency must be positive, got %d", o.concurrency)
	}
	for _, id := range o.studentIDs {
		if strings.TrimSpace(id) == "" {
			return errors.New("--student-id cannot be empty")
		}
	}
	return nil
}

func run(ctx context.Context, d deps, cmd *cobra.Command, opts options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := opts.validate(); err != nil {
		return err
	}

	logger, err := newLogger(d.stderr, opts.logLevel, opts.logFormat)
	if err != nil {
		return err
	}

	cfg, err := config.FromOptionalFile(opts.configPath)
	if err != nil {
		return err
	}
	s, err := settings.Load(cfg, d.env)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("format") {
		s.Output.Format = opts.format
	}
	if opts.outputDir != "" {
		s.Output.Dir = opts.outputDir
	}
	if opts.studentsPath != "" {
		s.StudentsPath = opts.studentsPath
	}
	if opts.checkpointDB != "" {
		s.CheckpointPath = opts.checkpointDB
	}

	repo, err := students.Open(s.StudentsPath)
	if err != nil {
		return err
	}
	records := make([]students.Record, len(opts.studentIDs))
	for i, id := range opts.studentIDs {
		if records[i], err = repo.Lookup(id); err != nil {
			return err
		}
	}

	emitter, err := report.NewEmitter(s.Output.Format,
		report.WithFont(s.Output.Font),
		report.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	var metrics *runMetrics
	if opts.metrics {
		if metrics, err = newRunMetrics(); err != nil {
			return err
		}
		defer metrics.Close()
	}

	client, err := d.newClient(s.LLM)
	if err != nil {
		return err
	}
	gen, closeGen, err := newGenerator(client, s, metrics.Recorder(), logger)
	if err != nil {
		return err
	}
	defer closeGen()

	runner, err := teacher.NewFlow(s.Retry.Policy(), emitter)
	if err != nil {
		return err
	}

	runOpts := []flowgraph.RunOption{
		flowgraph.WithObservabilityLogger(logger),
		flowgraph.WithMetrics(metrics.Recorder()),
	}
	if s.CheckpointPath != "" {
		store, err := checkpoint.NewSQLiteStore(s.CheckpointPath)
		if err != nil {
			return err
		}
		defer store.Close()
		runOpts = append(runOpts, flowgraph.WithCheckpoints(store))
	}
	if opts.trace {
		shutdown, err := installTracing(d.stderr)
		if err != nil {
			return err
		}
		defer shutdown()
		runOpts = append(runOpts, flowgraph.WithTracing(true))
	}

	conclusions := make([]teacher.Conclusion, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency)
	for i, rec := range records {
		g.Go(func() error {
			logger.Info("generating teacher feedback",
				slog.String("student", rec.FullName),
				slog.Bool("cache", !opts.noCache),
			)
			fctx := flowgraph.NewContext(gctx, flowgraph.WithLLM(gen), flowgraph.WithLogger(logger))
			c, res, err := teacher.Run(fctx, runner, teacher.Request{
				Student:     rec,
				NoCache:     opts.noCache,
				MaxSubjects: opts.maxSubjects,
				MaxTopics:   opts.maxTopics,
				OutputDir:   s.Output.Dir,
			}, runOpts...)
			if err != nil {
				return fmt.Errorf("student %s: %w", opts.studentIDs[i], err)
			}
			logger.Info("teacher feedback ready",
				slog.String("student", rec.FullName),
				slog.String("run_id", res.RunID),
			)
			conclusions[i] = c
			return nil
		})
	}
	runErr := g.Wait()
	if err := metrics.Report(ctx, d.stderr); err != nil {
		logger.Warn("metrics report failed", slog.String("error", err.Error()))
	}
	if runErr != nil {
		return runErr
	}

	return printConclusions(d.stdout, conclusions, opts.pretty)
}

func printConclusions(w io.Writer, conclusions []teacher.Conclusion, pretty bool) error {
	var renderer *glamour.TermRenderer
	if pretty {
		var err error
		renderer, err = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(80),
		)
		if err != nil {
			return fmt.Errorf("terminal renderer: %w", err)
		}
	}

	rule := strings.Repeat("=", 60)
	for _, c := range conclusions {
		text := c.Text
		if renderer != nil {
			out, err := renderer.Render(text)
			if err != nil {
				return fmt.Errorf("render conclusion: %w", err)
			}
			text = out
		}
		if _, err := fmt.Fprintf(w, "\n%s\n%s\n%s\n", rule, strings.TrimRight(text, "\n"), rule); err != nil {
			return err
		}
		for _, f := range c.Files {
			if _, err := fmt.Fprintf(w, "saved: %s\n", f); err != nil {
				return err
			}
		}
	}
	return nil
}
