// logq loads a log file into a local SQLite store and prints one window of
// rows, optionally filtered.
//
//	logq [options] <file.log>
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"logq/internal/config"
	"logq/internal/filter"
	"logq/internal/format"
	"logq/internal/ingest"
	"logq/internal/logging"
	"logq/internal/metrics"
	"logq/internal/query"
	"logq/internal/store"
	"logq/internal/tracing"
)

// filterFlags collects repeated -filter values.
type filterFlags []string

func (f *filterFlags) String() string { return strings.Join(*f, "; ") }

func (f *filterFlags) Set(v string) error {
	*f = append(*f, v)
	return nil
}

var (
	configPath  = flag.String("config", "", "path to config file")
	formatPath  = flag.String("format", "", "path to a format file (TOML, YAML or JSON)")
	dbPath      = flag.String("db", "", "path of the SQLite store (recreated on every run)")
	offset      = flag.Int("offset", 0, "first row of the window")
	limit       = flag.Int("limit", 0, "rows in the window (default: query.window from config)")
	showMetrics = flag.String("metrics", "", "print metrics after the rows: prometheus or json")
	verbose     = flag.Bool("v", false, "debug logging")
	tracePath   = flag.String("trace", "", "append JSON-lines spans to this file (- for stderr)")
	dumpFormat  = flag.String("dump-format", "", "write the active format as TOML to this file")
	initConfig  = flag.Bool("init-config", false, "write a default config file if none exists, then exit")
	filters     filterFlags
)

func main() {
	flag.Var(&filters, "filter", `filter rule, e.g. 'message = "timeout" & !"retry"' (repeatable)`)
	flag.Usage = usage
	flag.Parse()

	if *initConfig {
		if err := writeDefaultConfig(os.Stdout, *configPath); err != nil {
			fmt.Fprintf(os.Stderr, "logq: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// With -dump-format the input file is optional.
	if flag.NArg() > 1 || (flag.NArg() == 0 && *dumpFormat == "") {
		usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "logq: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `logq - load a log file into SQLite and query it

Usage: logq [options] <file.log>
       logq -dump-format <out.toml> [-format <path>]
       logq -init-config [-config <path>]

Options:
  -config <path>   Path to config file (default: platform config dir)
  -format <path>   Format file; the built-in log4net layout is used otherwise
  -db <path>       SQLite store path
  -offset <n>      First row of the window
  -limit <n>       Rows in the window
  -filter <rule>   Filter rule, repeatable; rules are AND-ed
  -metrics <kind>  Print metrics after the rows (prometheus, json)
  -trace <path>    Write load and query spans as JSON lines (- for stderr)
  -v               Debug logging
  -dump-format <p> Write the active format as TOML; the log file is optional
  -init-config     Write a default config file if none exists, then exit

Filter rules have the form:  column = "text" & !("a" | "b")`)
}

func run(input string) error {
	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	defer loader.Close()

	if *formatPath != "" {
		cfg.Format.Path = *formatPath
	}
	if *dbPath != "" {
		cfg.Storage.Path = *dbPath
	}
	if *verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()
	logging.SetDefault(logger)
	if files, err := logger.LogFiles(); err == nil && len(files) > 0 {
		logger.Debug("writing log files", "files", files)
	}

	watchConfig(loader, logger)

	if *tracePath != "" {
		var exp tracing.Exporter
		if *tracePath == "-" {
			exp = tracing.NewJSONExporter(os.Stderr)
		} else if exp, err = tracing.NewFileExporter(*tracePath); err != nil {
			return err
		}
		tracing.InitTracer(exp)
		defer tracing.Shutdown()
	}

	spec := format.Builtin()
	if cfg.Format.Path != "" {
		if spec, err = format.Load(cfg.Format.Path); err != nil {
			return err
		}
	}

	if *dumpFormat != "" {
		if err := format.Save(spec, *dumpFormat); err != nil {
			return err
		}
		logger.Info("format written", "path", *dumpFormat, "title", spec.Title)
		if input == "" {
			return nil
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	progress := metrics.NewProgress(nil)

	stopReport := reportProgress(ctx, progress, logger.Logger)
	st, err := ingest.Load(ctx, ingest.Options{
		Input:           input,
		StorePath:       cfg.Storage.Path,
		Format:          spec,
		BatchSize:       cfg.Ingest.BatchSize,
		ChannelCapacity: cfg.Ingest.ChannelCapacity,
		CacheSizeKiB:    cfg.Storage.CacheSizeKiB,
		Progress:        progress,
		Logger:          logger.Logger,
	})
	stopReport()
	if err != nil {
		return err
	}

	svc, err := query.New(ctx, st, query.Options{Progress: progress, Logger: logger.Logger})
	if err != nil {
		st.Close()
		return err
	}
	defer svc.Close()

	n := *limit
	if n <= 0 {
		n = cfg.Query.Window
	}

	if err := svc.Submit(query.Request{
		ID:      1,
		Offset:  *offset,
		Limit:   n,
		Filters: filter.ParseRules(filters, logger.Logger),
	}); err != nil {
		return err
	}

	resp, err := svc.Next(ctx)
	if err != nil {
		return err
	}
	if resp.Err != nil {
		return fmt.Errorf("query: %w", resp.Err)
	}

	printRows(os.Stdout, svc.Schema(), resp)

	switch *showMetrics {
	case "":
	case "json":
		return progress.Registry().WriteJSON(os.Stdout)
	case "prometheus", "prom":
		return progress.Registry().WritePrometheus(os.Stdout)
	default:
		return fmt.Errorf("unknown metrics format %q", *showMetrics)
	}
	return nil
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logFormat, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	return logging.New(&logging.Config{
		Level:      level,
		Format:     logFormat,
		Output:     cfg.Logging.Output,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  int64(cfg.Logging.MaxSizeMB),
		MaxBackups: cfg.Logging.MaxBackups,
		AddSource:  cfg.Logging.AddSource,
		NoColor:    cfg.Logging.NoColor,
		Component:  "logq",
	})
}

// writeDefaultConfig creates the config file at path (the platform default
// when empty) unless it already exists.
func writeDefaultConfig(w io.Writer, path string) error {
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, created, err := config.LoadOrCreate(path)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(w, "wrote default config to %s\n", path)
		return nil
	}
	fmt.Fprintf(w, "config %s already exists (store: %s)\n", path, cfg.Storage.Path)
	return nil
}

// watchConfig follows log level changes in the config file while logq runs.
func watchConfig(loader *config.Loader, logger *logging.Logger) {
	if _, err := os.Stat(loader.Path()); err != nil {
		return
	}

	loader.OnChange(func(c *config.Config) {
		level, err := logging.ParseLevel(c.Logging.Level)
		if err != nil {
			return
		}
		if level != logger.Level() {
			logger.SetLevel(level)
			logger.Info("log level changed", "level", logging.LevelString(level))
		}
	})

	if err := loader.Watch(); err != nil {
		logger.Warn("config watch disabled", "error", err)
		return
	}

	go func() {
		for err := range loader.Errors() {
			logger.Warn("config reload failed", "error", err)
		}
	}()
}

// reportProgress logs load progress every second until the returned func is
// called.
func reportProgress(ctx context.Context, p *metrics.Progress, logger *slog.Logger) func() {
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				logger.Info("loading",
					"percent", fmt.Sprintf("%.1f", p.Fraction()*100),
					"rows", p.RowsInserted.Value(),
				)
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
	}
}

func printRows(w io.Writer, schema store.Schema, resp query.Response) {
	cols := schema.Columns

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Name
	}
	writeRow(w, schema, header)

	for _, rec := range resp.Rows {
		writeRow(w, schema, schema.Render(rec))
	}

	if len(resp.Rows) == 0 {
		fmt.Fprintf(w, "-- no rows (%d total)\n", resp.Total)
		return
	}
	fmt.Fprintf(w, "-- rows %d-%d of %d\n", resp.Offset+1, resp.Offset+len(resp.Rows), resp.Total)
}

func writeRow(w io.Writer, schema store.Schema, fields []string) {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(' ')
		}
		width := schema.Columns[i].Width
		if width <= 0 {
			b.WriteString(f)
			continue
		}
		if utf8.RuneCountInString(f) > width {
			f = string([]rune(f)[:width])
		}
		fmt.Fprintf(&b, "%-*s", width, f)
	}
	fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
}
