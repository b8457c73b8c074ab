// Command glider-merge consolidates a directory of per-dive JSON logs into
// one mission dataset, locally or through a glider-server.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/glider-logs/internal/api"
	"github.com/banshee-data/glider-logs/internal/config"
	"github.com/banshee-data/glider-logs/internal/dive"
	"github.com/banshee-data/glider-logs/internal/divelog"
	"github.com/banshee-data/glider-logs/internal/fsutil"
	"github.com/banshee-data/glider-logs/internal/merge"
	"github.com/banshee-data/glider-logs/internal/monitoring"
	"github.com/banshee-data/glider-logs/internal/report"
	"github.com/banshee-data/glider-logs/internal/store"
	"github.com/banshee-data/glider-logs/internal/version"
)

type options struct {
	in         string
	out        string
	configPath string
	format     string
	params     string
	start      string
	end        string
	ordering   string
	dbPath     string
	label      string
	plotBlock  string
	plotOut    string
	chartField string
	chartOut   string
	server     string
	save       bool
	verbose    bool
	version    bool
}

func parseFlags(args []string) (*options, error) {
	var o options
	fs := flag.NewFlagSet("glider-merge", flag.ContinueOnError)
	fs.StringVar(&o.in, "in", "", "Directory of per-dive JSON logs (required)")
	fs.StringVar(&o.out, "out", "-", "Output file for the merged JSON, - for stdout")
	fs.StringVar(&o.configPath, "config", "", "Merge config JSON (defaults to "+config.DefaultConfigPath+" when present)")
	fs.StringVar(&o.format, "format", "", "Output format: array, merged or struct")
	fs.StringVar(&o.params, "params", "", "Comma separated field or field_member names, or all")
	fs.StringVar(&o.start, "start", "", "Period start, epoch seconds or RFC3339")
	fs.StringVar(&o.end, "end", "", "Period end, epoch seconds or RFC3339")
	fs.StringVar(&o.ordering, "ordering", "", "Dive ordering: lexicographic or rank")
	fs.StringVar(&o.dbPath, "db", "", "Save the merged dataset to this SQLite database")
	fs.StringVar(&o.label, "label", "", "Label for the saved run (defaults to the input directory name)")
	fs.StringVar(&o.plotBlock, "plot", "", "Plot this event block against elapsed time")
	fs.StringVar(&o.plotOut, "plot-out", "", "Plot output file (.png or .svg, defaults to <block>.png)")
	fs.StringVar(&o.chartField, "chart", "", "Render an HTML chart of this scalar across dives")
	fs.StringVar(&o.chartOut, "chart-out", "", "Chart output file (defaults to <field>.html)")
	fs.StringVar(&o.server, "server", "", "Merge on a remote glider-server at this base URL")
	fs.BoolVar(&o.save, "save", false, "With -server, ask the server to store the run")
	fs.BoolVar(&o.verbose, "verbose", false, "Enable debug logging")
	fs.BoolVar(&o.version, "version", false, "Print version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.version {
		return &o, nil
	}
	if o.in == "" {
		return nil, errors.New("-in is required")
	}
	if (o.start == "") != (o.end == "") {
		return nil, errors.New("-start and -end must be given together")
	}
	if o.server != "" && (o.dbPath != "" || o.plotBlock != "" || o.chartField != "") {
		return nil, errors.New("-db, -plot and -chart are not available with -server")
	}
	return &o, nil
}

// overrides returns the merge settings given on the command line.
func (o *options) overrides() *config.MergeConfig {
	cfg := config.EmptyMergeConfig()
	if o.format != "" {
		cfg.Format = &o.format
	}
	if o.params != "" {
		for _, p := range strings.Split(o.params, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.Params = append(cfg.Params, p)
			}
		}
	}
	if o.start != "" {
		cfg.Period = &config.PeriodConfig{Start: o.start, End: o.end}
	}
	if o.ordering != "" {
		cfg.Ordering = &o.ordering
	}
	if o.verbose {
		v := true
		cfg.Verbose = &v
	}
	return cfg
}

func loadConfig(path string) (*config.MergeConfig, error) {
	if path != "" {
		return config.LoadMergeConfig(path)
	}
	if _, err := os.Stat(config.DefaultConfigPath); err == nil {
		return config.LoadMergeConfig(config.DefaultConfigPath)
	}
	return config.DefaultMergeConfig(), nil
}

func run(args []string, stdout io.Writer) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}
	if o.version {
		fmt.Fprintln(stdout, version.String())
		return nil
	}

	base, err := loadConfig(o.configPath)
	if err != nil {
		return err
	}
	overrides := o.overrides()
	cfg := base.Overlay(overrides)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	monitoring.SetVerbose(cfg.GetVerbose())

	fsys := fsutil.OSFileSystem{}
	records, err := divelog.LoadDir(fsys, o.in)
	if err != nil {
		return err
	}
	label := o.label
	if label == "" {
		label = filepath.Base(filepath.Clean(o.in))
	}

	var data []byte
	if o.server != "" {
		data, err = mergeRemote(o, records, overrides, label)
	} else {
		data, err = mergeLocal(o, records, cfg, label)
	}
	if err != nil {
		return err
	}

	if o.out == "-" {
		_, err = stdout.Write(append(data, '\n'))
		return err
	}
	if err := fsys.WriteFile(o.out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	monitoring.Logf("wrote %s", o.out)
	return nil
}

func mergeRemote(o *options, records []dive.Record, overrides *config.MergeConfig, label string) ([]byte, error) {
	req, err := api.NewMergeRequest(records)
	if err != nil {
		return nil, err
	}
	req.Options = overrides
	req.Label = label
	c := api.NewClient(o.server, nil)
	data, err := c.Merge(req, o.save)
	if err != nil {
		return nil, fmt.Errorf("remote merge failed: %w", err)
	}
	return data, nil
}

func mergeLocal(o *options, records []dive.Record, cfg *config.MergeConfig, label string) ([]byte, error) {
	opts, err := merge.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	ds, err := merge.Build(records, nil, opts)
	if err != nil {
		return nil, err
	}
	out, err := merge.FormatDataset(ds, opts.Format)
	if err != nil {
		return nil, err
	}

	if o.dbPath != "" {
		st, err := store.Open(o.dbPath)
		if err != nil {
			return nil, err
		}
		defer st.Close()
		runID, err := st.SaveDataset(ds, label)
		if err != nil {
			return nil, err
		}
		monitoring.Logf("saved run %s to %s", runID, o.dbPath)
	}

	if o.plotBlock != "" {
		path := o.plotOut
		if path == "" {
			path = o.plotBlock + ".png"
		}
		if err := report.PlotBlockTime(ds, o.plotBlock, path); err != nil {
			return nil, fmt.Errorf("failed to plot %s: %w", o.plotBlock, err)
		}
		monitoring.Logf("wrote plot %s", path)
	}

	if o.chartField != "" {
		path := o.chartOut
		if path == "" {
			path = o.chartField + ".html"
		}
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create chart file: %w", err)
		}
		err = report.DatasetScalarChart(f, ds, o.chartField)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, fmt.Errorf("failed to chart %s: %w", o.chartField, err)
		}
		monitoring.Logf("wrote chart %s", path)
	}

	return json.MarshalIndent(out, "", "  ")
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		log.Fatalf("glider-merge: %v", err)
	}
}
