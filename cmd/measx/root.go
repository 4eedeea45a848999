package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/measx"
	"github.com/hupe1980/measx/codec"
	"github.com/hupe1980/measx/internal/config"
	"github.com/hupe1980/measx/resource"
)

// app is the state shared by all subcommands.
type app struct {
	cfg     *config.Config
	logger  *measx.Logger
	metrics *measx.BasicMetricsCollector
	rc      *resource.Controller
	out     io.Writer
	errOut  io.Writer
	style   *style
	codec   codec.Codec
}

// readerOptions returns the options every opened file gets.
func (a *app) readerOptions() []measx.Option {
	return []measx.Option{
		measx.WithLogger(a.logger),
		measx.WithMetrics(a.metrics),
		measx.WithResourceController(a.rc),
		measx.WithCacheDir(a.cfg.CacheDir),
	}
}

type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	color      string
	cacheDir   string
}

func newRootCmd(a *app) *cobra.Command {
	var gf globalFlags

	cmd := &cobra.Command{
		Use:   "measx",
		Short: "measx - power-quality recording toolkit",
		Long: `measx reads frame-series recordings and their session headers,
extracts channels by layout and exports them as CSV or JSON Lines.

Files may be local paths, s3://bucket/key or minio://host:port/bucket/key.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd, gf)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&gf.configPath, "config", "", "configuration file (default: user config dir, if present)")
	pf.StringVar(&gf.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&gf.logFormat, "log-format", "", "log format: text or json")
	pf.StringVar(&gf.color, "color", "", "colored output: auto, always or never")
	pf.StringVar(&gf.cacheDir, "cache-dir", "", "directory remote files are downloaded into")

	cmd.AddCommand(
		newInfoCmd(a),
		newSessionCmd(a),
		newFetchCmd(a),
		newLayoutsCmd(a),
		newHistoryCmd(a),
	)
	return cmd
}

// setup loads the configuration, applies flag overrides and builds the
// logger and resource controller.
func (a *app) setup(cmd *cobra.Command, gf globalFlags) error {
	cfg := config.DefaultConfig()
	path := gf.configPath
	if path == "" {
		if p := config.DefaultPath(); p != "" {
			if _, err := os.Stat(p); err == nil {
				path = p
			}
		}
	}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = gf.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = gf.logFormat
	}
	if flags.Changed("color") {
		cfg.Log.Color = gf.color
	}
	if flags.Changed("cache-dir") {
		cfg.CacheDir = gf.cacheDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	hopts := &slog.HandlerOptions{Level: level}
	if cfg.Log.Format == "json" {
		a.logger = measx.NewLogger(slog.NewJSONHandler(a.errOut, hopts))
	} else {
		a.logger = measx.NewLogger(slog.NewTextHandler(a.errOut, hopts))
	}

	if a.codec, err = codec.ByName(cfg.Export.JSONCodec); err != nil {
		return err
	}
	a.cfg = cfg
	a.metrics = &measx.BasicMetricsCollector{}
	a.rc = resource.NewController(resource.Config{
		MemoryLimitBytes:   cfg.Resources.MemoryLimitBytes,
		MaxWorkers:         cfg.Resources.MaxWorkers,
		IOLimitBytesPerSec: cfg.Resources.IOLimitBytesPerSec,
	})
	a.style = newStyle(a.out, cfg.Log.Color)
	return nil
}

// logStats reports the collected metrics at debug level.
func (a *app) logStats(ctx context.Context) {
	s := a.metrics.GetStats()
	a.logger.DebugContext(ctx, "stats",
		"opens", s.OpenCount,
		"open_errors", s.OpenErrors,
		"fetches", s.FetchCount,
		"values", s.FetchValues,
		"fetch_avg_ns", s.FetchAvgNanos,
		"downloads", s.DownloadCount,
		"download_bytes", s.DownloadBytes,
	)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{out: stdout, errOut: stderr}
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if errors.Is(err, context.Canceled) {
			return 130
		}
		return 1
	}
	return 0
}
