// Command farmsim runs the farm economy simulation.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/mini-farm/internal/api"
	"github.com/talgya/mini-farm/internal/catalog"
	"github.com/talgya/mini-farm/internal/config"
	"github.com/talgya/mini-farm/internal/engine"
	"github.com/talgya/mini-farm/internal/entropy"
	"github.com/talgya/mini-farm/internal/llm"
	"github.com/talgya/mini-farm/internal/persistence"
)

func main() {
	level := slog.LevelInfo
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if err := level.UnmarshalText([]byte(v)); err != nil {
			level = slog.LevelInfo
		}
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("farmsim failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// ── Configuration ─────────────────────────────────────────────────
	cfg := config.FromEnv()
	if path := os.Getenv("FARM_CONFIG"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	cat := catalog.Default()
	if path := os.Getenv("FARM_CATALOG"); path != "" {
		loaded, err := catalog.LoadFile(path)
		if err != nil {
			return err
		}
		cat = loaded
	}

	dbPath := os.Getenv("FARM_DB")
	if dbPath == "" {
		dbPath = "data/farm.db"
	}

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	db, err := persistence.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database opened", "path", dbPath)

	// ── Load or start a new farm ──────────────────────────────────────
	slot := db.LastSlot()
	if v := os.Getenv("FARM_SLOT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FARM_SLOT: %w", err)
		}
		slot = n
	}

	var sim *engine.Simulation
	snap, err := db.Load(slot)
	switch {
	case errors.Is(err, persistence.ErrEmptySlot):
		seed := newSeed()
		sim = engine.New(engine.Options{Catalog: cat, Balance: cfg, Seed: seed})
		slog.Info("new farm", "seed", seed, "cash", humanize.CommafWithDigits(sim.Wallet.Balance(), 2))
	case err != nil:
		return err
	default:
		sim = engine.New(engine.Options{Catalog: cat, Balance: cfg, Seed: snap.Seed})
		if err := sim.Restore(snap); err != nil {
			return fmt.Errorf("restore slot %d: %w", slot, err)
		}
		slog.Info("farm restored",
			"slot", slot,
			"sim_time", engine.SimTime(sim.Now()),
			"cash", humanize.CommafWithDigits(sim.Wallet.Balance(), 2),
		)
	}

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine(sim)
	if v := os.Getenv("FARM_SPEED"); v != "" {
		speed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("FARM_SPEED: %w", err)
		}
		eng.SetSpeed(speed)
	}
	eng.AutosaveEvery = cfg.Finance.Day
	eng.OnAutosave = func(sim *engine.Simulation) { autosave(db, sim) }

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(ctx) })

	// ── HTTP API ──────────────────────────────────────────────────────
	if addr := os.Getenv("FARM_API_ADDR"); addr != "" {
		adminKey := os.Getenv("FARM_ADMIN_KEY")
		if adminKey == "" {
			slog.Warn("FARM_ADMIN_KEY not set, admin POST endpoints will be disabled")
		}
		llmClient := llm.NewClient(os.Getenv("ANTHROPIC_API_KEY"))
		if llmClient == nil {
			slog.Info("ANTHROPIC_API_KEY not set, almanac will use the plain digest")
		}
		srv := &api.Server{Eng: eng, DB: db, Addr: addr, AdminKey: adminKey, LLM: llmClient}
		g.Go(func() error { return srv.ListenAndServe(ctx) })
	}

	fmt.Println("Starting simulation... (Ctrl+C to stop)")
	err = g.Wait()

	// Final save on shutdown.
	slog.Info("final save...")
	eng.Do(func(sim *engine.Simulation) { autosave(db, sim) })
	fmt.Println("Simulation stopped. Farm saved.")
	return err
}

func newSeed() uint64 {
	if v := os.Getenv("FARM_SEED"); v != "" {
		if seed, err := strconv.ParseUint(v, 10, 64); err == nil {
			return seed
		}
		slog.Warn("ignoring invalid FARM_SEED", "value", v)
	}
	return entropy.NewSeed(entropy.NewClient(os.Getenv("RANDOM_ORG_API_KEY")))
}

func autosave(db *persistence.DB, sim *engine.Simulation) {
	start := time.Now()
	snap, err := sim.Snapshot()
	if err != nil {
		slog.Error("snapshot failed", "error", err)
		return
	}
	if _, err := db.Save(persistence.AutosaveSlot, "autosave", snap); err != nil {
		slog.Error("autosave failed", "error", err)
		return
	}
	if err := db.ArchiveEvents(sim.Events()); err != nil {
		slog.Error("archive events failed", "error", err)
	}
	slog.Debug("autosave complete", "took", time.Since(start))
}
