package main

import (
	"context"
	"database/sql"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dea-madrid/address-validation/internal/batch"
	"github.com/dea-madrid/address-validation/internal/db"
	"github.com/dea-madrid/address-validation/internal/engine"
	"github.com/dea-madrid/address-validation/internal/match"
	"github.com/dea-madrid/address-validation/internal/registry"
	"github.com/dea-madrid/address-validation/internal/store"
)

// services bundles everything the commands share. Close releases the
// database handle.
type services struct {
	db       *sql.DB
	registry *registry.Registry
	source   *registry.PostgresSource
	installs *store.InstallationSource
	engine   *engine.Engine
	store    store.Store
	runner   *batch.Runner
}

func (s *services) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("database close failed", zap.Error(err))
	}
}

// buildServices opens the database, loads the street registry and
// wires the engine, store and batch runner.
func buildServices(ctx context.Context) (*services, error) {
	conn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	log := zap.L()
	src := registry.NewPostgresSource(conn)
	reg := registry.New(log.Named("registry"))
	if err := reg.Rebuild(ctx, src); err != nil {
		conn.Close()
		return nil, eris.Wrap(err, "load street registry")
	}
	streets, addresses := reg.Size()
	log.Info("street registry loaded",
		zap.Int("streets", streets),
		zap.Int("addresses", addresses))

	sc := cfg.Engine.Scoring
	weights := &match.Weights{
		FuzzyTextThreshold:   sc.FuzzyTextThreshold,
		TextWeight:           sc.TextWeight,
		PostalBoost:          sc.PostalBoost,
		DistrictBoost:        sc.DistrictBoost,
		DistanceBoostMax:     sc.DistanceBoostMax,
		SanityRadiusM:        sc.SanityRadiusM,
		ExactDistancePenalty: sc.ExactDistancePenalty,
		MaxRadiusM:           sc.MaxRadiusM,
		GeographicCap:        sc.GeographicCap,
		LooseTextCap:         sc.LooseTextCap,
	}

	eng := engine.New(reg, weights, nil, engine.Config{
		MaxSuggestions:           cfg.Engine.MaxSuggestions,
		FuzzySearchMinSimilarity: cfg.Engine.FuzzySearchMinSimilarity,
		FuzzyStreetLimit:         cfg.Engine.FuzzyStreetLimit,
		ValidThreshold:           cfg.Engine.ValidThreshold,
		ReviewThreshold:          cfg.Engine.ReviewThreshold,
		SpellingSimilarity:       cfg.Engine.SpellingSimilarity,
	}, log.Named("engine"))

	st := store.NewPostgres(conn)
	installs := store.NewInstallationSource(conn)
	runner := batch.NewRunner(eng, installs, st,
		clockwork.NewRealClock(), log.Named("batch"))

	return &services{
		db:       conn,
		registry: reg,
		source:   src,
		installs: installs,
		engine:   eng,
		store:    st,
		runner:   runner,
	}, nil
}
