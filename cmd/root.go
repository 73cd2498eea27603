package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/etas-sim/etas-sim/sim/ensemble"
	"github.com/etas-sim/etas-sim/sim/store"
)

var (
	// CLI flags for the run command
	configPath string // Forecast file (.yaml or .toml)
	seedValue  uint64 // Simulation key seed; overrides run.seed
	catalogs   int    // Number of catalogs; overrides run.catalogs
	workers    int    // Worker goroutines; overrides run.workers
	maxRetries int    // Rebuilds per catalog after a simulation failure; overrides run.max_retries
	layout     string // Catalog layout; overrides run.layout
	logLevel   string // Log verbosity level
	otelStdout bool   // Pretty-print trace spans to stderr

	// CLI flags for forecast storage
	storeKind string // Store backend: memory or sqlite; empty disables saving
	dbPath    string // SQLite database file
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "etas-sim",
	Short: "ETAS aftershock catalog ensemble simulator",
}

// runOptions carries CLI overrides into runForecast. Nil pointers keep the
// configured value.
type runOptions struct {
	Seed       *uint64
	Catalogs   *int
	Workers    *int
	MaxRetries *int
	Layout     *string
	Store      store.Store
}

// runForecast loads, runs and optionally stores a forecast, then prints its report.
func runForecast(ctx context.Context, path string, opts runOptions, out io.Writer) (store.Forecast, error) {
	cfg, err := loadForecastConfig(path)
	if err != nil {
		return store.Forecast{}, err
	}
	if opts.Seed != nil {
		cfg.Run.Seed = *opts.Seed
	}
	if opts.Catalogs != nil {
		cfg.Run.Catalogs = *opts.Catalogs
	}
	if opts.Workers != nil {
		cfg.Run.Workers = *opts.Workers
	}
	if opts.MaxRetries != nil {
		cfg.Run.MaxRetries = *opts.MaxRetries
	}
	if opts.Layout != nil {
		cfg.Run.Layout = *opts.Layout
	}

	comp, err := cfg.components()
	if err != nil {
		return store.Forecast{}, err
	}
	logrus.Infof("Starting forecast %q: %d catalogs on %d workers, seed=%d, layout=%s",
		cfg.Name, cfg.Run.Catalogs, cfg.Run.Workers, cfg.Run.Seed, comp.layout)

	runner := &ensemble.Runner{
		Initializer: comp.initializer,
		Generator:   comp.generator,
		Consumers:   comp.consumers,
		Workers:     cfg.Run.Workers,
		MaxRetries:  cfg.Run.MaxRetries,
		Key:         comp.key,
		Layout:      comp.layout,
	}
	sum, err := runner.Run(ctx, cfg.Run.Catalogs)
	if err != nil {
		return store.Forecast{}, err
	}

	f := buildForecast(cfg, comp, sum)
	if opts.Store != nil {
		if err := opts.Store.SaveForecast(ctx, f); err != nil {
			return store.Forecast{}, fmt.Errorf("saving forecast: %w", err)
		}
		logrus.Infof("Saved forecast %s", f.ID)
	}
	printReport(out, &f, cfg.Readouts.ProbCount)
	return f, nil
}

// openStore returns an initialized store, or nil when kind is empty.
func openStore(ctx context.Context, kind, path string) (store.Store, error) {
	if kind == "" {
		return nil, nil
	}
	s, err := store.NewStore(kind, path)
	if err != nil {
		return nil, err
	}
	if err := s.Init(ctx); err != nil {
		return nil, fmt.Errorf("initializing %s store: %w", kind, err)
	}
	return s, nil
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// runCmd runs an ensemble using the forecast file and CLI overrides
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a forecast ensemble",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		if err := executeRun(cmd); err != nil {
			logrus.Fatalf("Forecast failed: %v", err)
		}
		logrus.Info("Forecast complete.")
	},
}

// executeRun wires tracing, the optional store and the flag overrides around
// runForecast. Cleanup runs before the caller decides the exit status.
func executeRun(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var traceOut io.Writer
	if otelStdout {
		traceOut = os.Stderr
	}
	shutdown, err := initTracing(ctx, tracingConfig{Writer: traceOut})
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logrus.Warnf("Tracing shutdown: %v", err)
		}
	}()

	s, err := openStore(ctx, storeKind, dbPath)
	if err != nil {
		return err
	}
	if s != nil {
		defer s.Close()
	}

	opts := runOptions{Store: s}
	flags := cmd.Flags()
	if flags.Changed("seed") {
		opts.Seed = &seedValue
	}
	if flags.Changed("catalogs") {
		opts.Catalogs = &catalogs
	}
	if flags.Changed("workers") {
		opts.Workers = &workers
	}
	if flags.Changed("max-retries") {
		opts.MaxRetries = &maxRetries
	}
	if flags.Changed("layout") {
		opts.Layout = &layout
	}
	_, err = runForecast(ctx, configPath, opts, os.Stdout)
	return err
}

// listCmd lists the forecasts of a SQLite store
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored forecasts",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		ctx := context.Background()
		s, err := openStore(ctx, "sqlite", dbPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		defer s.Close()
		infos, err := s.ListForecasts(ctx)
		if err != nil {
			logrus.Fatalf("Listing forecasts: %v", err)
		}
		printForecastList(os.Stdout, infos)
	},
}

// showCmd prints the report of a stored forecast
var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a stored forecast",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		ctx := context.Background()
		s, err := openStore(ctx, "sqlite", dbPath)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		defer s.Close()
		f, ok, err := s.GetForecast(ctx, args[0])
		if err != nil {
			logrus.Fatalf("Reading forecast: %v", err)
		}
		if !ok {
			logrus.Fatalf("No forecast with id %s in %s", args[0], dbPath)
		}
		printReport(os.Stdout, &f, 0)
	},
}

func printForecastList(w io.Writer, infos []store.ForecastInfo) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCREATED\tCATALOGS")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", info.ID, info.Name, info.CreatedAt.Format("2006-01-02 15:04:05"), info.Catalogs)
	}
	_ = tw.Flush()
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().StringVar(&configPath, "config", "", "Forecast file (.yaml or .toml)")
	_ = runCmd.MarkFlagRequired("config")
	runCmd.Flags().Uint64Var(&seedValue, "seed", 0, "Seed of the simulation key (overrides run.seed)")
	runCmd.Flags().IntVar(&catalogs, "catalogs", 1000, "Number of catalogs (overrides run.catalogs)")
	runCmd.Flags().IntVar(&workers, "workers", 1, "Worker goroutines (overrides run.workers)")
	runCmd.Flags().IntVar(&maxRetries, "max-retries", 0, "Rebuilds per catalog after a simulation failure (overrides run.max_retries)")
	runCmd.Flags().StringVar(&layout, "layout", "compact", "Catalog layout: compact or records (overrides run.layout)")
	runCmd.Flags().BoolVar(&otelStdout, "otel-stdout", false, "Pretty-print trace spans to stderr")
	runCmd.Flags().StringVar(&storeKind, "store", "", "Save the forecast to a store: memory or sqlite")

	for _, c := range []*cobra.Command{runCmd, listCmd, showCmd} {
		c.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	}
	runCmd.Flags().StringVar(&dbPath, "db", "forecasts.db", "SQLite database file")
	listCmd.Flags().StringVar(&dbPath, "db", "forecasts.db", "SQLite database file")
	showCmd.Flags().StringVar(&dbPath, "db", "forecasts.db", "SQLite database file")

	rootCmd.AddCommand(runCmd, listCmd, showCmd)
}
