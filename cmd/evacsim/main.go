package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/evacsim/internal/analytics"
	"github.com/banshee-data/evacsim/internal/api"
	"github.com/banshee-data/evacsim/internal/config"
	"github.com/banshee-data/evacsim/internal/db"
	"github.com/banshee-data/evacsim/internal/floorplan"
	"github.com/banshee-data/evacsim/internal/monitoring"
	"github.com/banshee-data/evacsim/internal/pathfind"
	"github.com/banshee-data/evacsim/internal/people"
	"github.com/banshee-data/evacsim/internal/security"
	"github.com/banshee-data/evacsim/internal/sim"
	"github.com/banshee-data/evacsim/internal/timeutil"
	"github.com/banshee-data/evacsim/internal/version"
)

var (
	projectPath   = flag.String("project", "", "Project JSON file with floors and people")
	templateName  = flag.String("template", "", "Built-in building template (see -list-templates)")
	configPath    = flag.String("config", "", "Tuning config JSON (defaults apply when empty)")
	dbPath        = flag.String("db", "", "SQLite history database (empty disables history)")
	speed         = flag.Float64("speed", 0, "Speed multiplier override, 0.5-5 (0 keeps the config value)")
	seed          = flag.Uint64("seed", 0, "Random seed override (0 keeps the config value)")
	generate      = flag.Int("people", 50, "People to generate when the scenario has none")
	realtime      = flag.Bool("realtime", false, "Drive the run at frame rate and log progress")
	label         = flag.String("label", "", "Label stored with the result")
	exportPath    = flag.String("export", "", "Write the resolved project (floors and people) to this JSON file")
	serve         = flag.Bool("serve", false, "Serve the HTTP API instead of running once")
	listen        = flag.String("listen", ":8080", "Listen address for -serve")
	listTemplates = flag.Bool("list-templates", false, "List built-in templates and exit")
	debugLogs     = flag.Bool("debug", false, "Log diagnostic output from the simulation and pathfinder")
	traceLogs     = flag.Bool("trace", false, "Log per-tick trace output (very verbose)")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: %s [flags]\n", os.Args[0])
	fmt.Fprintf(out, "       %s migrate <command> -db path\n\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	configureLogs(*debugLogs, *traceLogs)

	if flag.Arg(0) == "migrate" {
		if err := db.RunMigrateCommand(flag.Args()[1:], *dbPath, os.Stdout); err != nil {
			if errors.Is(err, db.ErrUsage) {
				db.PrintMigrateHelp(os.Stderr)
				os.Exit(2)
			}
			log.Fatalf("migrate: %v", err)
		}
		return
	}
	if flag.NArg() > 0 {
		flag.Usage()
		os.Exit(2)
	}

	if *listTemplates {
		printTemplates(os.Stdout)
		return
	}

	cfg, err := loadConfig(*configPath, *speed, *seed)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var store *db.DB
	if *dbPath != "" {
		store, err = db.NewDB(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open history database: %v", err)
		}
		defer store.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *serve {
		if *listen == "" {
			log.Fatal("Listen address is required")
		}
		if err := serveHTTP(ctx, *listen, store, cfg); err != nil {
			log.Fatalf("HTTP server: %v", err)
		}
		return
	}

	proj, err := loadScenario(*projectPath, *templateName, *generate, cfg.Seed)
	if err != nil {
		log.Fatalf("Failed to load scenario: %v", err)
	}
	if *exportPath != "" {
		if err := exportProject(*exportPath, proj); err != nil {
			log.Fatalf("Failed to export project: %v", err)
		}
		log.Printf("wrote project to %s", *exportPath)
	}

	rep, err := simulate(ctx, cfg, proj, *realtime)
	if err != nil {
		log.Fatalf("Simulation failed: %v", err)
	}
	if store != nil {
		if err := store.InsertResult(rep.result, *label); err != nil {
			log.Fatalf("Failed to store result: %v", err)
		}
		rep.Stored = true
	}
	rep.Label = *label
	if err := writeReport(os.Stdout, rep); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}
}

// configureLogs routes the simulation and pathfinder log streams to stderr.
// Ops messages are always on.
func configureLogs(debug, trace bool) {
	var diag, tr io.Writer
	if debug || trace {
		diag = os.Stderr
	}
	if trace {
		tr = os.Stderr
	}
	sim.SetLogWriters(os.Stderr, diag, tr)
	pathfind.SetLogWriters(os.Stderr, diag, tr)
}

func printTemplates(w io.Writer) {
	for _, t := range floorplan.Templates() {
		fmt.Fprintf(w, "%-10s %d floor(s)  %s\n", t.Name, len(t.Floors), t.Title)
	}
}

// loadConfig reads tuning values from path, or the built-in defaults when
// path is empty, and applies the command-line overrides.
func loadConfig(path string, speed float64, seed uint64) (sim.Config, error) {
	tuning := config.EmptyTuningConfig()
	if path != "" {
		var err error
		if tuning, err = config.LoadTuningConfig(path); err != nil {
			return sim.Config{}, err
		}
	}
	cfg := sim.ConfigFromTuning(tuning)
	if speed != 0 {
		cfg.SimSpeed = sim.ClampSpeed(speed)
	}
	if seed != 0 {
		cfg.Seed = seed
	}
	return cfg, cfg.Validate()
}

// loadScenario resolves floors and people from a project file or a template.
// When the roster is empty, n people are generated from seed.
func loadScenario(projectPath, template string, n int, seed uint64) (*floorplan.Project, error) {
	var proj *floorplan.Project
	switch {
	case projectPath != "" && template != "":
		return nil, errors.New("use either -project or -template, not both")
	case projectPath != "":
		p, err := floorplan.LoadProject(projectPath)
		if err != nil {
			return nil, err
		}
		proj = p
	case template != "":
		t, err := floorplan.LoadTemplate(template)
		if err != nil {
			return nil, err
		}
		proj = &floorplan.Project{Floors: t.Floors}
	default:
		return nil, errors.New("a -project file or -template name is required")
	}
	if len(proj.People) == 0 {
		if n <= 0 {
			return nil, errors.New("scenario has no people and -people is not positive")
		}
		proj.People = people.Generate(n, seed)
	}
	return proj, nil
}

// exportProject writes proj to path, which must be under the working
// directory or the temp directory.
func exportProject(path string, proj *floorplan.Project) error {
	if err := security.ValidateOutputPath(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := floorplan.WriteProject(f, proj, time.Now()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// report is the JSON summary printed after a run.
type report struct {
	ID             string               `json:"id"`
	Label          string               `json:"label,omitempty"`
	Stored         bool                 `json:"stored"`
	EvacuationTime float64              `json:"evacuationTime"`
	Ticks          int                  `json:"ticks"`
	TimedOut       bool                 `json:"timedOut"`
	Summary        analytics.Summary    `json:"summary"`
	Population     analytics.Population `json:"population"`
	Bottlenecks    []sim.Bottleneck     `json:"bottlenecks"`
	ExitStats      []sim.ExitStat       `json:"exitStats"`
	DoorStats      []sim.DoorStat       `json:"doorStats"`

	result *sim.Result
}

// progressEvery is the number of realtime frames between progress lines.
const progressEvery = 60

// simulate runs one scenario. In realtime mode the run is paced by a Runner
// at the configured frame interval; otherwise it steps as fast as possible.
func simulate(ctx context.Context, cfg sim.Config, proj *floorplan.Project, realtime bool) (*report, error) {
	return simulateWithClock(ctx, cfg, proj, realtime, timeutil.RealClock{})
}

func simulateWithClock(ctx context.Context, cfg sim.Config, proj *floorplan.Project, realtime bool, clock timeutil.Clock) (*report, error) {
	ctrl := sim.NewController(cfg, clock)
	if err := ctrl.Start(proj.Floors, proj.People); err != nil {
		return nil, err
	}
	runID := ctrl.RunID().String()
	monitoring.RunLogf(runID, "started: %d floor(s), %d people, speed %.1fx",
		len(proj.Floors), len(proj.People), ctrl.Speed())

	var (
		res *sim.Result
		err error
	)
	if realtime {
		r := sim.NewRunner(ctrl, clock, cfg.FrameInterval, func(s sim.Snapshot) {
			if s.Tick%progressEvery == 0 {
				monitoring.RunLogf(runID, "t=%.1fs evacuated %d/%d assembled %d",
					s.Elapsed, s.Evacuated, s.Total, s.Assembled)
			}
		})
		res, err = r.Run(ctx)
	} else {
		res, err = sim.RunToCompletion(ctx, ctrl, 0)
	}
	if err != nil {
		return nil, err
	}
	monitoring.RunLogf(runID, "finished in %.1fs sim time, %d/%d evacuated",
		res.EvacuationTime, res.EvacuatedCount, res.PeopleCount)

	return &report{
		ID:             res.ID.String(),
		EvacuationTime: res.EvacuationTime,
		Ticks:          res.Ticks,
		TimedOut:       res.TimedOut,
		Summary:        analytics.Summarize(res),
		Population:     analytics.DescribePopulation(proj.People),
		Bottlenecks:    res.Bottlenecks,
		ExitStats:      res.ExitStats,
		DoorStats:      res.DoorStats,
		result:         res,
	}, nil
}

func writeReport(w io.Writer, rep *report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

// newHandler builds the HTTP handler: the API routes plus, when history is
// enabled, the database admin routes.
func newHandler(store *db.DB, cfg sim.Config) (http.Handler, error) {
	var rs api.ResultStore
	if store != nil {
		rs = store
	}
	mux := api.NewServer(rs, cfg).ServeMux()
	if store != nil {
		if err := store.AttachAdminRoutes(mux); err != nil {
			return nil, fmt.Errorf("failed to attach admin routes: %w", err)
		}
	}
	return api.LoggingMiddleware(mux), nil
}

func serveHTTP(ctx context.Context, addr string, store *db.DB, cfg sim.Config) error {
	h, err := newHandler(store, cfg)
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("%s listening on %s", version.String(), addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	log.Printf("Graceful shutdown complete")
	return nil
}
