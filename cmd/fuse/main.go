// Command fuse builds one land-surface-temperature composite over an area of
// interest from every scene the catalog holds for a time window.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/aoi"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/catalog"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/config"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/db"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/fsutil"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/normalize"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/observability"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/pipeline"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/quality"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/raster"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// flagValues holds the raw command-line values. Only flags the user set are
// copied into the config overlay.
type flagValues struct {
	config          string
	aoi             string
	start           string
	end             string
	out             string
	catalog         string
	targetRes       float64
	targetCRS       string
	resample        string
	ecostressSample string
	maxCloud        float64
	cloudMask       bool
	srModel         string
	pansharpen      bool
	policy          string
	toleranceDays   int
	sensors         string
	workers         int
	units           string
	preview         string
	dbPath          string
	metricsTextfile string
	verbose         bool
	trace           bool
	version         bool
}

func newFlagSet(v *flagValues, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("fuse", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&v.config, "config", "", "Fusion config file (.json, .yaml or .yml); flags override it")
	fs.StringVar(&v.aoi, "aoi", "", "Area of interest: WKT, GeoJSON, or a file holding either (required)")
	fs.StringVar(&v.start, "start", "", "Window start, YYYY-MM-DD (required)")
	fs.StringVar(&v.end, "end", "", "Window end, YYYY-MM-DD, inclusive (required)")
	fs.StringVar(&v.out, "out", "", "Output raster path (required)")
	fs.StringVar(&v.catalog, "catalog", "", "Scene manifest (.geojson) or scene index (.db)")
	fs.Float64Var(&v.targetRes, "target-resolution", 30, "Target pixel size in metres")
	fs.StringVar(&v.targetCRS, "target-crs", "EPSG:32612", "Target CRS, or 'auto' for the UTM zone of the AOI centre")
	fs.StringVar(&v.resample, "resample", "", "Resampling kernel: nearest, bilinear, cubic or average")
	fs.StringVar(&v.ecostressSample, "ecostress-resample", "area", "Legacy ECOSTRESS resampling switch: area or cubic")
	fs.Float64Var(&v.maxCloud, "max-cloud", 20, "Drop scenes with more than this percent of flagged pixels")
	fs.BoolVar(&v.cloudMask, "cloud-mask", true, "Apply quality-band cloud masking")
	fs.StringVar(&v.srModel, "sr-model", "", "Enhancement model id for coarse sensors")
	fs.BoolVar(&v.pansharpen, "pansharpen", false, "Sharpen reference scenes with a panchromatic band")
	fs.StringVar(&v.policy, "policy", "mean", "Fusion policy: mean, weighted-mean or recency-gap-fill")
	fs.IntVar(&v.toleranceDays, "tolerance-days", 3, "Maximum age in days accepted by recency-gap-fill")
	fs.StringVar(&v.sensors, "sensors", "", "Comma-separated sensor classes to search (default all)")
	fs.IntVar(&v.workers, "workers", 0, "Concurrent scenes per stage (0 = GOMAXPROCS)")
	fs.StringVar(&v.units, "units", "kelvin", "Output units: kelvin or celsius")
	fs.StringVar(&v.preview, "preview", "", "Write a PNG preview of the composite to this path")
	fs.StringVar(&v.dbPath, "db", "", "Record run provenance in this SQLite database")
	fs.StringVar(&v.metricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file after the run")
	fs.BoolVar(&v.verbose, "v", false, "Log per-run diagnostics")
	fs.BoolVar(&v.trace, "trace", false, "Log per-scene detail (implies -v)")
	fs.BoolVar(&v.version, "version", false, "Print version and exit")
	return fs
}

// overlay converts the flags the user explicitly set into a config layer.
func overlay(fs *flag.FlagSet, v *flagValues) *config.FusionConfig {
	c := config.EmptyFusionConfig()
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "aoi":
			c.AOI = config.PtrString(v.aoi)
		case "start":
			c.Start = config.PtrString(v.start)
		case "end":
			c.End = config.PtrString(v.end)
		case "out":
			c.Out = config.PtrString(v.out)
		case "catalog":
			c.Catalog = config.PtrString(v.catalog)
		case "target-resolution":
			c.TargetResolution = config.PtrFloat64(v.targetRes)
		case "target-crs":
			c.TargetCRS = config.PtrString(v.targetCRS)
		case "resample":
			c.ResampleKernel = config.PtrString(v.resample)
		case "ecostress-resample":
			c.EcostressResample = config.PtrString(v.ecostressSample)
		case "max-cloud":
			c.MaxCloudPercent = config.PtrFloat64(v.maxCloud)
		case "cloud-mask":
			c.CloudMaskEnabled = config.PtrBool(v.cloudMask)
		case "sr-model":
			c.EnhancementModelID = config.PtrString(v.srModel)
		case "pansharpen":
			c.SharpenEnabled = config.PtrBool(v.pansharpen)
		case "policy":
			c.FusionPolicy = config.PtrString(v.policy)
		case "tolerance-days":
			c.FusionToleranceDays = config.PtrInt(v.toleranceDays)
		case "sensors":
			c.Sensors = splitList(v.sensors)
		case "workers":
			c.Workers = config.PtrInt(v.workers)
		case "units":
			c.OutputUnits = config.PtrString(v.units)
		case "preview":
			c.Preview = config.PtrString(v.preview)
		}
	})
	return c
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// setupLogging routes ops to stderr always, diag with -v and trace with
// -trace.
func setupLogging(stderr io.Writer, verbose, trace bool) {
	var diag, tr io.Writer
	if verbose || trace {
		diag = stderr
	}
	if trace {
		tr = stderr
	}
	catalog.SetLogWriters(stderr, diag, tr)
	quality.SetLogWriters(stderr, diag, tr)
	normalize.SetLogWriters(stderr, diag, tr)
	pipeline.SetLogWriters(stderr, diag, tr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var v flagValues
	fs := newFlagSet(&v, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if v.version {
		fmt.Fprintf(stdout, "fuse %s\n", version.String())
		return 0
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		return 2
	}
	setupLogging(stderr, v.verbose, v.trace)

	if err := fuse(ctx, fs, &v, stdout, stderr); err != nil {
		fmt.Fprintf(stderr, "✗ fusion failed: %v\n", err)
		return 1
	}
	return 0
}

func fuse(ctx context.Context, fs *flag.FlagSet, v *flagValues, stdout, stderr io.Writer) error {
	base := config.EmptyFusionConfig()
	if v.config != "" {
		loaded, err := config.LoadFusionConfig(v.config)
		if err != nil {
			return err
		}
		base = loaded
	}
	settings, err := base.Merge(overlay(fs, v)).Settings()
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	if settings.Catalog == "" {
		return errors.New("configuration: catalog is required")
	}

	osfs := fsutil.OSFileSystem{}
	area, err := aoi.Load(osfs, settings.AOI)
	if err != nil {
		return err
	}

	cat, closer, err := catalog.Open(osfs, settings.Catalog)
	if err != nil {
		return err
	}
	defer closer.Close()

	orch := &pipeline.Orchestrator{
		Settings: settings,
		Catalog:  cat,
		IO:       &raster.LocalIO{FS: osfs},
		FS:       osfs,
	}

	if v.dbPath != "" {
		database, err := db.OpenAndMigrate(v.dbPath)
		if err != nil {
			return fmt.Errorf("open run database: %w", err)
		}
		defer database.Close()
		orch.Runs = database
	}

	if v.metricsTextfile != "" {
		collector, err := observability.NewFusionCollector(prometheus.NewRegistry())
		if err != nil {
			return err
		}
		orch.Metrics = collector
		defer func() {
			if err := collector.WriteTextfile(v.metricsTextfile); err != nil {
				fmt.Fprintf(stderr, "warning: %v\n", err)
			}
		}()
	}

	rep, err := orch.Run(ctx, area)
	fmt.Fprintln(stdout, rep.Summary())
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "✓ Fusion complete → %s\n", rep.OutputPath)
	return nil
}
