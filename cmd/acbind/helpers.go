package main

import (
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/hierarchy"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/logging"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/pipeline"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/storage"
)

// openStore opens the configured graph store
func openStore() (*storage.SQLStore, error) {
	return storage.NewStore(storage.Config{
		Type:        cfg.Storage.Type,
		SQLitePath:  cfg.Storage.SQLitePath,
		PostgresDSN: cfg.Storage.PostgresDSN,
	}, logger)
}

// newPipeline builds a pipeline from the loaded config. workers overrides
// the configured worker count when positive.
func newPipeline(workers int) (*pipeline.Pipeline, error) {
	pc := pipeline.Config{
		Workers:     cfg.Generation.Workers,
		PointerSize: cfg.Layout.PointerSize,
		MaxPack:     cfg.Layout.MaxPack,
	}
	if workers > 0 {
		pc.Workers = workers
	}
	if cfg.Generation.RulesFile != "" {
		rules, err := hierarchy.LoadRules(cfg.Generation.RulesFile)
		if err != nil {
			return nil, err
		}
		pc.Rules = rules
		logger.WithField("rules", len(rules.Rules)).Debug("Loaded grouping rules")
	}
	return pipeline.New(pc, logging.L()), nil
}
