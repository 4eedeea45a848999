package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/measx"
	"github.com/hupe1980/measx/derive"
	"github.com/hupe1980/measx/export"
	"github.com/hupe1980/measx/layout"
)

type fetchFlags struct {
	layout   string
	channels []string

	offset int
	items  int
	format string
	scale  float64
	name   string

	start  int
	count  int
	frames string

	exprs       []string
	session     string
	timeChannel string

	outputFormat string
	compress     string
	out          string
	catalog      string
}

func newFetchCmd(a *app) *cobra.Command {
	var ff fetchFlags

	cmd := &cobra.Command{
		Use:   "fetch <series>",
		Short: "Extract channels and export them",
		Long: `Extract channels from a frame-series file.

Channels come from a layout (--layout, a preset name or a YAML/JSON file) and
are selected with --channel. Without --channel a raw channel is described by
--offset, --items, --format and --scale.

Derived channels are added with --expr NAME=EXPR, e.g.
  --expr 'UL1N=UL12/sqrt(3)'

With --session the rows get absolute timestamps computed from the time
channel (--time-channel) and the recording start.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.runFetch(cmd.Context(), args[0], ff, cmd.Flags().Changed("offset"))
			a.logStats(cmd.Context())
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&ff.layout, "layout", "", "layout preset or file (default from config)")
	f.StringSliceVarP(&ff.channels, "channel", "c", nil, "channel to export (repeatable)")
	f.IntVar(&ff.offset, "offset", 0, "raw channel: byte offset within the frame")
	f.IntVar(&ff.items, "items", 1, "raw channel: items per frame")
	f.StringVar(&ff.format, "format", "H", "raw channel: element format H, h, I or i")
	f.Float64Var(&ff.scale, "scale", 1, "raw channel: scale factor")
	f.StringVar(&ff.name, "name", "value", "raw channel: column name")
	f.IntVar(&ff.start, "start", 0, "first frame")
	f.IntVar(&ff.count, "count", -1, "number of frames (-1 for all)")
	f.StringVar(&ff.frames, "frames", "", "explicit frame set, e.g. 0-99,200 (overrides --start/--count)")
	f.StringArrayVarP(&ff.exprs, "expr", "e", nil, "derived channel NAME=EXPR (repeatable)")
	f.StringVar(&ff.session, "session", "", "session file for absolute timestamps")
	f.StringVar(&ff.timeChannel, "time-channel", "time", "channel holding the frame time in ms")
	f.StringVarP(&ff.outputFormat, "output-format", "f", "", "csv or jsonl (default from config)")
	f.StringVar(&ff.compress, "compress", "", "none, gzip, zstd or lz4 (default from config)")
	f.StringVarP(&ff.out, "out", "o", "", "output file, s3://bucket/key or minio://host/bucket/key (default stdout)")
	f.StringVar(&ff.catalog, "catalog", "", "DynamoDB table to record written exports in (default from config)")
	return cmd
}

func (ff fetchFlags) window() (measx.Window, error) {
	if ff.frames != "" {
		sel, err := measx.ParseFrameSet(ff.frames)
		if err != nil {
			return measx.Window{}, err
		}
		return measx.Window{Frames: sel}, nil
	}
	w := measx.Window{Start: ff.start, Count: ff.count}
	if ff.count < 0 {
		w.Count = measx.All().Count
	}
	return w, nil
}

func (ff fetchFlags) exportOptions(a *app) (export.Options, error) {
	format, compress := ff.outputFormat, ff.compress
	if format == "" {
		format = a.cfg.Export.Format
	}
	if compress == "" {
		compress = a.cfg.Export.Compression
	}
	opts := export.Options{Codec: a.codec}
	var err error
	if opts.Format, err = export.ParseFormat(format); err != nil {
		return opts, err
	}
	if opts.Compression, err = export.ParseCompression(compress); err != nil {
		return opts, err
	}
	return opts, nil
}

func (a *app) runFetch(ctx context.Context, arg string, ff fetchFlags, raw bool) error {
	w, err := ff.window()
	if err != nil {
		return err
	}
	opts, err := ff.exportOptions(a)
	if err != nil {
		return err
	}
	exprs := make([]*derive.Expr, len(ff.exprs))
	for i, def := range ff.exprs {
		if exprs[i], err = derive.Parse(def); err != nil {
			return err
		}
	}

	cfg, err := a.fetchLayout(ff, raw)
	if err != nil {
		return err
	}

	// Exported channels first, then those only needed by expressions or
	// for timestamps.
	exported := ff.channels
	if raw {
		exported = []string{ff.name}
	}
	needed := slices.Clone(exported)
	known := func(name string) bool {
		_, err := cfg.Channel(name)
		return err == nil
	}
	for _, e := range exprs {
		needed = appendMissing(needed, e.Channels(known)...)
	}
	if ff.session != "" {
		needed = appendMissing(needed, ff.timeChannel)
	}
	if len(needed) == 0 && len(exprs) == 0 {
		return errors.New("nothing to fetch: pass --channel, --offset or --expr")
	}

	src, err := source(ctx, arg)
	if err != nil {
		return err
	}
	sf, err := measx.OpenSeriesFrom(ctx, src, a.readerOptions()...)
	if err != nil {
		return err
	}
	defer sf.Close()

	batch, err := measx.FetchChannels(ctx, sf, cfg, needed, w)
	if err != nil {
		return err
	}
	defer batch.Release()

	cols := make([]export.Column, 0, len(exported)+len(exprs))
	for _, name := range exported {
		cols = append(cols, export.Column{Name: name, Block: batch.Block(name)})
	}
	for _, e := range exprs {
		m, err := e.Eval(batch.Blocks)
		if err != nil {
			return err
		}
		cols = append(cols, export.Column{Name: e.Name, Block: m})
	}

	if ff.session != "" {
		if opts.Timestamps, err = a.timestamps(ctx, ff.session, batch.Block(ff.timeChannel)); err != nil {
			return err
		}
	}

	object, rows, err := a.writeExport(ctx, ff.out, cols, opts)
	if err != nil || object == "" {
		return err
	}

	table := ff.catalog
	if table == "" {
		table = a.cfg.Export.CatalogTable
	}
	if table == "" {
		return nil
	}
	catalog, err := newCatalog(ctx, table)
	if err != nil {
		return err
	}
	entry, err := catalog.Record(ctx, arg, object, rows)
	if err != nil {
		return err
	}
	a.logger.InfoContext(ctx, "export recorded", "table", table, "source", arg, "version", entry.Version)
	return nil
}

// fetchLayout returns the layout to fetch from. A raw channel becomes a
// single-channel layout without frame size checks.
func (a *app) fetchLayout(ff fetchFlags, raw bool) (*layout.Config, error) {
	name := ff.layout
	if name == "" {
		name = a.cfg.Layout
	}
	if !raw {
		return layout.Resolve(name)
	}

	format, err := layout.ParseFormat(ff.format)
	if err != nil {
		return nil, err
	}
	ch := layout.Channel{Name: ff.name, Offset: ff.offset, Format: format, Count: ff.items, Scale: ff.scale}
	cfg := &layout.Config{Name: "raw", Channels: []layout.Channel{ch}}
	if ff.session != "" || len(ff.exprs) > 0 {
		// Keep the named layout's channels reachable for timestamps and
		// expressions.
		base, err := layout.Resolve(name)
		if err != nil {
			return nil, err
		}
		cfg.FrameSize = base.FrameSize
		for _, c := range base.Channels {
			if c.Name != ch.Name {
				cfg.Channels = append(cfg.Channels, c)
			}
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (a *app) timestamps(ctx context.Context, arg string, ticks measx.Block) ([]time.Time, error) {
	src, err := source(ctx, arg)
	if err != nil {
		return nil, err
	}
	ss, err := measx.OpenSessionFrom(ctx, src, a.readerOptions()...)
	if err != nil {
		return nil, err
	}
	defer ss.Close()

	start, err := ss.StartTimestamp()
	if err != nil {
		return nil, err
	}
	ts := measx.Timeline(start, ticks)
	if ts == nil {
		// Timeline returns nil for an empty block; export expects one entry
		// per row.
		ts = []time.Time{}
	}
	return ts, nil
}

// writeExport writes the columns to out and returns the written object's
// location and row count. The location is empty for stdout.
func (a *app) writeExport(ctx context.Context, out string, cols []export.Column, opts export.Options) (string, int, error) {
	if out == "" || out == "-" {
		n, err := export.Write(a.out, cols, opts)
		return "", n, err
	}

	l, err := parseLocation(out)
	if err != nil {
		return "", 0, err
	}
	if l.remote() {
		store, err := openStore(ctx, l)
		if err != nil {
			return "", 0, err
		}
		name := objectName(l.Key, export.Extension(opts))
		n, err := export.WriteBlob(ctx, store, name, cols, opts)
		if err != nil {
			return "", 0, err
		}
		object := l.withKey(name).String()
		a.logger.InfoContext(ctx, "export uploaded", "object", object, "rows", n)
		return object, n, nil
	}

	f, err := os.Create(l.Path)
	if err != nil {
		return "", 0, err
	}
	n, err := export.Write(f, cols, opts)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", 0, errors.Join(err, os.Remove(l.Path))
	}
	object, err := filepath.Abs(l.Path)
	if err != nil {
		return "", 0, err
	}
	a.logger.InfoContext(ctx, "export written", "path", object, "rows", n)
	return object, n, nil
}

func appendMissing(list []string, names ...string) []string {
	for _, n := range names {
		if !slices.Contains(list, n) {
			list = append(list, n)
		}
	}
	return list
}
