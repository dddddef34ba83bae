package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"

	"osupp/batch"
	"osupp/bridge"
	"osupp/config"
	"osupp/engine"
	"osupp/fetch"
	"osupp/logger"
	"osupp/store"
)

func main() {
	if len(os.Args) < 2 || len(os.Args) > 3 {
		fmt.Fprintln(os.Stderr, "usage: osupp <jobs.toml> [config.toml]")
		os.Exit(2)
	}
	cfgPath := config.DefaultPath()
	if len(os.Args) == 3 {
		cfgPath = os.Args[2]
	}
	if err := run(os.Args[1], cfgPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(jobsPath, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	cfg.Apply()

	log, closer, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close()

	jobs, err := batch.LoadJobs(jobsPath)
	if err != nil {
		return err
	}

	rt, err := bridge.Init(cfg.Bridge, log)
	if err != nil {
		return err
	}
	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	fetcher, err := fetch.New(cfg.Fetch, log)
	if err != nil {
		return err
	}
	defer fetcher.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := &batch.Runner{
		Engines: func(ctx context.Context) (engine.Engine, error) { return rt.Spawn(ctx) },
		Store:   db,
		Fetcher: fetcher,
		Workers: cfg.Batch.Workers,
		Log:     log,
	}
	outcomes, err := runner.Run(ctx, jobs)
	if err != nil {
		return err
	}
	return writeOutcomes(cfg.Batch.OutputDir, jobs, outcomes, log)
}

// writeOutcomes writes one <job>.json per job.
func writeOutcomes(dir string, jobs []batch.Job, outcomes []batch.Outcome, log zerolog.Logger) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	byJob := make(map[string][]batch.Outcome, len(jobs))
	for _, o := range outcomes {
		byJob[o.Job] = append(byJob[o.Job], o)
	}
	for _, j := range jobs {
		data, err := json.MarshalIndent(byJob[j.Name], "", "\t")
		if err != nil {
			return fmt.Errorf("job %s: %w", j.Name, err)
		}
		path := filepath.Join(dir, j.Name+".json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
		log.Info().Str("job", j.Name).Str("path", path).Int("beatmaps", len(byJob[j.Name])).Msg("wrote results")
	}
	return nil
}
