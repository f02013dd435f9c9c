// Command scene-index maintains the SQLite scene index that fuse can use as
// its catalog: schema migrations, manifest ingest and listings.
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
	"text/tabwriter"
	"time"

	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/catalog"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/db"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/fsutil"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/scene"
	"github.com/ryanerb4/Satellite-Thermal-Fusion-Pipeline/internal/version"
)

const defaultDB = "scenes.db"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func printUsage(out io.Writer) {
	fmt.Fprint(out, `scene-index - scene catalog maintenance

Usage: scene-index [-db path] <command> [options]

Commands:
  migrate <action>   Manage the schema (up, down, status, version, force)
  ingest <manifest>  Upsert every scene of a GeoJSON manifest
  list               List indexed scenes (-sensor, -start, -end, -limit)
  runs               List recorded fusion runs (-limit)
  version            Print version
  help               Show this help

Flags:
  -db <path>         SQLite database (default scenes.db)
`)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("scene-index", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(stderr) }
	dbPath := fs.String("db", defaultDB, "SQLite database path")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() < 1 {
		printUsage(stderr)
		return 2
	}

	command, rest := fs.Arg(0), fs.Args()[1:]
	var err error
	switch command {
	case "migrate":
		err = handleMigrate(*dbPath, rest, stdin, stdout)
	case "ingest":
		err = handleIngest(ctx, *dbPath, rest, stdout, stderr)
	case "list":
		err = handleList(ctx, *dbPath, rest, stdout, stderr)
	case "runs":
		err = handleRuns(ctx, *dbPath, rest, stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "scene-index %s\n", version.String())
	case "help":
		printUsage(stdout)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		printUsage(stderr)
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func handleMigrate(dbPath string, args []string, stdin io.Reader, stdout io.Writer) error {
	database, err := db.Open(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()
	return db.RunMigrateCommand(args, database, stdout, stdin)
}

func handleIngest(ctx context.Context, dbPath string, args []string, stdout, stderr io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: scene-index ingest <manifest.geojson>")
	}
	catalog.SetLogWriters(stderr, nil, nil)

	m, err := catalog.LoadManifest(fsutil.OSFileSystem{}, args[0])
	if err != nil {
		return err
	}
	database, err := db.OpenAndMigrate(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	n, err := catalog.Ingest(ctx, database, m)
	if err != nil {
		return err
	}
	counts, err := database.CountScenes(ctx)
	if err != nil {
		return err
	}
	total := 0
	for _, c := range counts {
		total += c
	}
	fmt.Fprintf(stdout, "✓ Ingested %d scene(s); index holds %d\n", n, total)
	return nil
}

// openExisting opens an index that must already exist with a current schema.
func openExisting(dbPath string) (*db.DB, error) {
	if !(fsutil.OSFileSystem{}).Exists(dbPath) {
		return nil, fmt.Errorf("scene index %s does not exist; run 'scene-index ingest' first", dbPath)
	}
	database, err := db.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := database.CheckMigrations(db.Migrations()); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

func handleList(ctx context.Context, dbPath string, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(stderr)
	sensors := fs.String("sensor", "", "Comma-separated sensor classes")
	start := fs.String("start", "", "Earliest acquisition date, YYYY-MM-DD")
	end := fs.String("end", "", "Latest acquisition date, YYYY-MM-DD, inclusive")
	limit := fs.Int("limit", 0, "Maximum rows (0 = all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	q := db.SceneQuery{Limit: *limit}
	for _, s := range strings.Split(*sensors, ",") {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		sc, err := scene.ParseSensorClass(s)
		if err != nil {
			return err
		}
		q.Sensors = append(q.Sensors, sc)
	}
	if *start != "" || *end != "" {
		w, err := scene.ParseWindow(*start, *end)
		if err != nil {
			return err
		}
		q.Start, q.End = w.Start, w.End
	}

	database, err := openExisting(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	scenes, err := database.SearchScenes(ctx, q)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSENSOR\tACQUIRED\tRES(m)\tDATA")
	for _, d := range scenes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%g\t%s\n", d.ID, d.Sensor, d.Acquired.Format(time.RFC3339), d.NativeResolution, d.DataLocator)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d scene(s)\n", len(scenes))
	return nil
}

func handleRuns(ctx context.Context, dbPath string, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	fs.SetOutput(stderr)
	limit := fs.Int("limit", 20, "Maximum rows")
	if err := fs.Parse(args); err != nil {
		return err
	}

	database, err := openExisting(dbPath)
	if err != nil {
		return err
	}
	defer database.Close()

	runs, err := database.ListRuns(ctx, *limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSTATE\tPOLICY\tDISCOVERED\tFUSED\tOUTPUT")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n", r.ID, r.StartedAt.Format(time.RFC3339), r.FinalState,
			r.Policy, r.Discovered, r.Fused, r.OutputPath)
	}
	return tw.Flush()
}
