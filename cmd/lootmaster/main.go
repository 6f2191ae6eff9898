// Package main provides the lootmaster CLI: it ranks an encounter's drops for a
// group, prints the rankings, and optionally awards them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cory-johannsen/lootmaster/internal/config"
	"github.com/cory-johannsen/lootmaster/internal/distribution"
	"github.com/cory-johannsen/lootmaster/internal/game/encounter"
	"github.com/cory-johannsen/lootmaster/internal/game/item"
	"github.com/cory-johannsen/lootmaster/internal/game/job"
	"github.com/cory-johannsen/lootmaster/internal/game/roster"
	"github.com/cory-johannsen/lootmaster/internal/loot"
	"github.com/cory-johannsen/lootmaster/internal/observability"
	"github.com/cory-johannsen/lootmaster/internal/scoring"
	"github.com/cory-johannsen/lootmaster/internal/server"
	"github.com/cory-johannsen/lootmaster/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	envFile := flag.String("env", ".env", "optional dotenv file loaded before the configuration")
	encounterID := flag.String("encounter", "", "encounter to distribute")
	groupID := flag.String("group", "", "group id; defaults to content.group_id")
	drops := flag.String("loot", "", "dropped items as id:qty pairs, e.g. 100:1,301:2")
	awardTop := flag.Bool("award-top", false, "award every contested unit to its top candidate")
	awardGuaranteed := flag.Bool("award-guaranteed", false, "credit the encounter's guaranteed loot to every member")
	importRoster := flag.Bool("import-roster", false, "copy content.roster_file into the database and exit")
	serve := flag.Bool("serve-metrics", false, "serve /metrics on metrics.addr after distributing until interrupted")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("loading %s: %v", *envFile, err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, jobs, encounters, err := loadContent(cfg.Content)
	if err != nil {
		logger.Fatal("loading content", zap.Error(err))
	}
	logger.Info("content loaded",
		zap.Int("items", catalog.Len()),
		zap.Int("encounters", len(encounters)),
		zap.Duration("elapsed", time.Since(start)),
	)

	opts := distribution.Options{
		Catalog:    catalog,
		Jobs:       jobs,
		Encounters: encounters,
		Rosters:    distribution.FileRoster{Path: cfg.Content.RosterFile},
		Logger:     logger,
	}

	if cfg.Content.RosterSource == config.RosterFromPostgres || *importRoster {
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		defer pool.Close()
		repo := postgres.NewRosterRepository(pool.DB())

		if *importRoster {
			g, err := roster.LoadGroup(cfg.Content.RosterFile, jobs)
			if err != nil {
				logger.Fatal("reading roster file", zap.Error(err))
			}
			if err := repo.SaveGroup(ctx, g); err != nil {
				logger.Fatal("importing roster", zap.Error(err))
			}
			logger.Info("roster imported", zap.String("group", g.ID), zap.Int("members", len(g.Members)))
			return
		}

		opts.Rosters = repo
		opts.Writer = repo
		opts.Awards = postgres.NewAwardRepository(pool.DB())
		if *groupID == "" {
			*groupID = cfg.Content.GroupID
		}
	}

	rules, err := cfg.Rules.RuleSet()
	if err != nil {
		logger.Fatal("building rule set", zap.Error(err))
	}
	opts.Rules = rules

	engine, err := scoring.Open(cfg.Scoring, catalog, logger)
	if err != nil {
		logger.Fatal("opening scoring engine", zap.Error(err))
	}
	if engine != nil {
		defer func() { _ = engine.Close() }()
		opts.Scorer = engine
	}

	svc, err := distribution.New(opts)
	if err != nil {
		logger.Fatal("creating distribution service", zap.Error(err))
	}
	if *encounterID == "" {
		logger.Fatal("no encounter selected; pass -encounter")
	}
	if err := run(ctx, svc, *encounterID, *groupID, *drops, *awardTop, *awardGuaranteed); err != nil {
		logger.Fatal("distributing loot", zap.Error(err))
	}

	if *serve && cfg.Metrics.Addr != "" {
		lc := server.NewLifecycle(logger)
		lc.Add("metrics", server.ComponentFunc(func(ctx context.Context) error {
			return observability.ServeMetrics(ctx, cfg.Metrics.Addr, logger)
		}))
		if err := lc.Run(ctx); err != nil {
			logger.Fatal("serving metrics", zap.Error(err))
		}
	}
}

func loadContent(cfg config.ContentConfig) (*item.Registry, *job.Registry, []*encounter.Encounter, error) {
	defs, err := item.LoadItems(cfg.ItemsDir)
	if err != nil {
		return nil, nil, nil, err
	}
	catalog, err := item.NewRegistryFrom(defs)
	if err != nil {
		return nil, nil, nil, err
	}
	js, err := job.LoadJobs(cfg.JobsDir)
	if err != nil {
		return nil, nil, nil, err
	}
	encounters, err := encounter.LoadEncounters(cfg.EncountersDir, catalog)
	if err != nil {
		return nil, nil, nil, err
	}
	return catalog, job.NewRegistryFrom(js), encounters, nil
}

func run(ctx context.Context, svc *distribution.Service, encounterID, groupID, drops string, awardTop, awardGuaranteed bool) error {
	sess, err := svc.Start(ctx, encounterID, groupID)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close(sess.ID()) }()

	manifest, err := parseDrops(drops)
	if err != nil {
		return err
	}
	for _, d := range manifest {
		if err := svc.SetLoot(sess.ID(), d.id, d.qty); err != nil {
			return fmt.Errorf("item %d: %w", d.id, err)
		}
	}
	if err := svc.Evaluate(sess.ID()); err != nil {
		return err
	}

	// An unresolved ranking's top candidate always needs at least one item.
	if awardTop {
		for _, r := range sess.Rankings() {
			if r.Resolved() {
				continue
			}
			top, _ := r.Top()
			chosen := top.Needed()[0].ID
			if err := svc.Award(ctx, sess.ID(), r.Key(), chosen, 0, false); err != nil {
				return fmt.Errorf("awarding %s: %w", r.Key(), err)
			}
		}
	}
	if awardGuaranteed {
		for _, g := range sess.Guaranteed() {
			if g.Awarded {
				continue
			}
			if err := svc.AwardGuaranteed(ctx, sess.ID(), g.Item.ID); err != nil {
				return fmt.Errorf("awarding guaranteed %s: %w", g.Item, err)
			}
		}
	}

	return svc.With(sess.ID(), func(s *loot.Session) error {
		_, err := fmt.Fprint(os.Stdout, distribution.Summarize(s))
		return err
	})
}

type drop struct {
	id  item.ID
	qty int
}

// parseDrops reads "id:qty" pairs separated by commas; a bare id means one unit.
func parseDrops(raw string) ([]drop, error) {
	var out []drop
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		idPart, qtyPart, hasQty := strings.Cut(field, ":")
		id, err := strconv.ParseUint(idPart, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parsing loot %q: %w", field, err)
		}
		qty := 1
		if hasQty {
			if qty, err = strconv.Atoi(qtyPart); err != nil || qty < 0 {
				return nil, fmt.Errorf("parsing loot %q: quantity must be a non-negative integer", field)
			}
		}
		out = append(out, drop{id: item.ID(id), qty: qty})
	}
	return out, nil
}
