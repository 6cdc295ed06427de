package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/friendsincode/volund_planner/internal/db"
	"github.com/friendsincode/volund_planner/internal/eventbus"
	"github.com/friendsincode/volund_planner/internal/importer"
	"github.com/friendsincode/volund_planner/internal/models"
	"github.com/friendsincode/volund_planner/internal/planner"
	"github.com/friendsincode/volund_planner/internal/store"
	"github.com/friendsincode/volund_planner/internal/timeline"
)

var exportOutput string

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a YAML schedule document into the plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the current plan as a YAML schedule document",
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to file instead of stdout")
}

func runImport(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read schedule file: %w", err)
	}
	jobs, err := importer.Parse(data)
	if err != nil {
		return err
	}

	svc, cleanup, err := newPlannerService()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := svc.Load(ctx); err != nil {
		return fmt.Errorf("load plan: %w", err)
	}

	accepted, errs := svc.Import(ctx, jobs)
	fmt.Printf("imported %d job(s), %d rejected\n", accepted, len(errs))
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "rejected: %v\n", e)
	}
	if accepted == 0 && len(errs) > 0 {
		return fmt.Errorf("no jobs imported")
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = db.Close(database) }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	st := store.New(database, logger)
	jobs, err := st.LoadAllJobs(ctx)
	if err != nil {
		return err
	}
	data, err := importer.Export(jobs)
	if err != nil {
		return err
	}

	if exportOutput == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(exportOutput, data, 0o644)
}

// newPlannerService builds the offline planner stack the CLI commands share.
// The Redis bus keeps running server instances notified of CLI rewrites.
func newPlannerService() (*planner.Service, func(), error) {
	database, err := db.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.Migrate(database); err != nil {
		_ = db.Close(database)
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}

	st := store.New(database, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	lanes, err := st.ListLanes(ctx)
	if err != nil {
		_ = db.Close(database)
		return nil, nil, err
	}

	nodeID := "cli-" + uuid.NewString()
	busCfg := eventbus.DefaultRedisConfig()
	busCfg.Addr = cfg.RedisAddr
	busCfg.Password = cfg.RedisPassword
	busCfg.DB = cfg.RedisDB
	bus, err := eventbus.NewRedisBus(busCfg, nodeID, logger)
	if err != nil {
		_ = db.Close(database)
		return nil, nil, fmt.Errorf("event bus: %w", err)
	}

	opts := []timeline.Option{timeline.WithFallbackRate(cfg.FallbackOutputRate)}
	if restriction := matchLanes(lanes, cfg.CleaningLanes); len(restriction) > 0 {
		opts = append(opts, timeline.WithKindRestriction(models.KindCleaning, restriction...))
	}
	if restriction := matchLanes(lanes, cfg.MaintenanceLanes); len(restriction) > 0 {
		opts = append(opts, timeline.WithKindRestriction(models.KindMaintenance, restriction...))
	}

	engine := timeline.NewEngine(lanes, logger, opts...)
	svc := planner.New(engine, st, bus, nodeID, logger, opts...)

	cleanup := func() {
		_ = bus.Close()
		_ = db.Close(database)
	}
	return svc, cleanup, nil
}

func matchLanes(lanes []models.Lane, configured []string) []string {
	var out []string
	for _, want := range configured {
		for _, lane := range lanes {
			if lane.ID == want || lane.Name == want {
				out = append(out, lane.ID)
				break
			}
		}
	}
	return out
}
