package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/plantops/maintwatch/internal/api"
	"github.com/plantops/maintwatch/internal/config"
	"github.com/plantops/maintwatch/internal/report"
	"github.com/plantops/maintwatch/internal/schedule"
	"github.com/plantops/maintwatch/internal/store"
	"github.com/plantops/maintwatch/internal/timeutil"
	"github.com/plantops/maintwatch/internal/tools"
)

const version = "0.2.0"

const defaultDBFile = "maintwatch.db"

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	switch command {
	case "serve":
		handleServe(args)
	case "migrate":
		handleMigrate(args)
	case "analyze":
		handleTool(tools.ToolAnalyzePerformance, args)
	case "schedule":
		handleTool(tools.ToolRunScheduledMaintenance, args)
	case "watchlist":
		handleTool(tools.ToolRunWatchlistChecks, args)
	case "import-clusters":
		handleImportClusters(args)
	case "version":
		fmt.Printf("maintwatch version %s\n", version)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`maintwatch - maintenance performance monitoring and scheduling

Usage: maintwatch <command> [options]

Commands:
  serve            Run the HTTP API and report server
  migrate          Apply database migrations (up, down, version, force)
  analyze          Analyze mechanic performance and open watch items
  schedule         Schedule preventive maintenance for high-risk machines
  watchlist        Run the daily watch-list measurement and evaluation pass
  import-clusters  Import a machine risk-clustering result file (JSON)
  version          Show maintwatch version
  help             Show this help message

Common Flags:
  --db <file>       Database file (default: maintwatch.db)
  --config <file>   Thresholds config file (JSON)

Examples:
  # Serve the API on port 8080
  maintwatch serve --listen :8080

  # Monthly performance analysis over an explicit window
  maintwatch analyze --start 2026-02-01 --end 2026-03-01

  # Force a scheduling run past the frequency throttle
  maintwatch schedule --force

  # Apply pending migrations
  maintwatch migrate --dir migrations up`)
}

// openStore opens the database and loads the optional thresholds config.
func openStore(dbPath, configPath string) (*store.DB, *config.Thresholds) {
	db, err := store.NewDB(dbPath)
	if err != nil {
		log.Fatalf("failed to open database %s: %v", dbPath, err)
	}

	var cfg *config.Thresholds
	if configPath != "" {
		cfg, err = config.Load(configPath)
		if err != nil {
			log.Fatalf("failed to load config %s: %v", configPath, err)
		}
	}
	return db, cfg
}

func handleServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBFile, "Database file")
	configPath := fs.String("config", "", "Thresholds config file (JSON)")
	listen := fs.String("listen", ":8080", "Listen address")
	migrationsDir := fs.String("migrations", "migrations", "Migrations directory")
	fs.Parse(args)

	db, cfg := openStore(*dbPath, *configPath)
	defer db.Close()

	if err := db.MigrateUp(*migrationsDir); err != nil {
		log.Printf("migrations not applied: %v", err)
	}

	srv := api.NewServer(db, tools.NewDeps(db, cfg))
	mux := srv.Routes()
	report.NewReporter(db, cfg).AttachRoutes(mux)

	log.Printf("maintwatch %s listening on %s (db=%s)", version, *listen, *dbPath)
	if err := http.ListenAndServe(*listen, mux); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func handleMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBFile, "Database file")
	dir := fs.String("dir", "migrations", "Migrations directory")
	fs.Parse(args)

	if fs.NArg() < 1 {
		log.Fatal("migrate requires a subcommand: up, down, version, force <n>")
	}

	db, _ := openStore(*dbPath, "")
	defer db.Close()

	var err error
	switch fs.Arg(0) {
	case "up":
		err = db.MigrateUp(*dir)
	case "down":
		err = db.MigrateDown(*dir)
	case "version":
		var v uint
		var dirty bool
		v, dirty, err = db.MigrateVersion(*dir)
		if err == nil {
			fmt.Printf("version=%d dirty=%v\n", v, dirty)
		}
	case "force":
		if fs.NArg() < 2 {
			log.Fatal("migrate force requires a version number")
		}
		var v int
		v, err = strconv.Atoi(fs.Arg(1))
		if err == nil {
			err = db.MigrateForce(*dir, v)
		}
	default:
		log.Fatalf("unknown migrate subcommand %q", fs.Arg(0))
	}
	if err != nil {
		log.Fatalf("migrate %s failed: %v", fs.Arg(0), err)
	}
}

// handleTool runs one registered tool from the command line and prints its
// JSON result.
func handleTool(toolName string, args []string) {
	fs := flag.NewFlagSet(toolName, flag.ExitOnError)
	dbPath := fs.String("db", defaultDBFile, "Database file")
	configPath := fs.String("config", "", "Thresholds config file (JSON)")
	force := fs.Bool("force", false, "Bypass the run-frequency throttle")
	start := fs.String("start", "", "Analysis period start (YYYY-MM-DD)")
	end := fs.String("end", "", "Analysis period end (YYYY-MM-DD)")
	maxTasks := fs.Int("max-tasks", 0, "Cap on tasks created this run")
	fs.Parse(args)

	db, cfg := openStore(*dbPath, *configPath)
	defer db.Close()

	params := map[string]any{"force": *force}
	if *start != "" {
		params["start_date"] = *start
	}
	if *end != "" {
		params["end_date"] = *end
	}
	if *maxTasks > 0 {
		params["max_tasks"] = *maxTasks
	}

	fn := tools.Registry(tools.NewDeps(db, cfg))[toolName]
	result, err := fn(context.Background(), params)
	if err != nil {
		log.Fatalf("%s failed: %v", toolName, err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("failed to encode result: %v", err)
	}
	fmt.Println(string(out))
}

// handleImportClusters reads a clustering result file (JSON array) and
// upserts the machine records.
func handleImportClusters(args []string) {
	fs := flag.NewFlagSet("import-clusters", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBFile, "Database file")
	file := fs.String("file", "", "Clustering result JSON file (required)")
	fs.Parse(args)

	if *file == "" {
		log.Fatal("import-clusters requires --file")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("failed to read %s: %v", *file, err)
	}
	var results []schedule.ClusterResult
	if err := json.Unmarshal(data, &results); err != nil {
		log.Fatalf("failed to parse %s: %v", *file, err)
	}

	db, _ := openStore(*dbPath, "")
	defer db.Close()

	if err := schedule.ImportClusters(context.Background(), db, timeutil.RealClock{}, results); err != nil {
		log.Fatalf("import failed: %v", err)
	}
	log.Printf("imported %d machine cluster record(s)", len(results))
}
