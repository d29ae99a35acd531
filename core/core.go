// Package core has core logic for scoring, peer ratings and ranking.
package core

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/huangsam/ers/internal/contract"
	"github.com/huangsam/ers/internal/outwriter"
	"github.com/huangsam/ers/schema"
)

// GetScoreResults scores the given subjects concurrently with the configured
// number of workers and returns them ranked by score, together with the engine used.
// Subjects without an id get a random one.
func GetScoreResults(ctx context.Context, cfg *contract.Config, subjects []schema.ScoringSubject, logger *zap.Logger) ([]schema.ScoreResult, *Engine, error) {
	engine, err := BuildEngine(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	for i := range subjects {
		assignID(&subjects[i])
		if err := subjects[i].Validate(); err != nil {
			return nil, nil, fmt.Errorf("subject %d: %w", i+1, err)
		}
	}

	results := make([]schema.ScoreResult, len(subjects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for i, s := range subjects {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = engine.ComputeScore(s)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return rankScores(results, cfg.ResultLimit), engine, nil
}

// ExecuteScoreFile scores the subjects of a YAML or JSON file without touching
// the store, then prints them ranked by score.
// It serves as the main entry point for the 'score' command.
func ExecuteScoreFile(ctx context.Context, cfg *contract.Config, path string) error {
	start := time.Now()
	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	subjects, err := contract.LoadSubjectFile(path)
	if err != nil {
		return err
	}
	ranked, engine, err := GetScoreResults(ctx, cfg, subjects, logger)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return outwriter.NewOutWriter().WriteScores(ranked, definitionMap(engine.Catalog()), cfg, time.Since(start))
}

// DefinitionMap indexes the engine's catalog by metric key.
func DefinitionMap(engine *Engine) map[string]schema.MetricDefinition {
	return definitionMap(engine.Catalog())
}

// GetMetricsModel returns the catalog and effective weights of an engine for display.
func GetMetricsModel(engine *Engine) outwriter.MetricsRenderModel {
	return outwriter.BuildMetricsRenderModel(engine.Catalog().Definitions(), engine.Weights().CategoryWeights(), engine.Weights().SizeWeights())
}

// ExecuteSubjectPut stores every subject of a file, assigning an id to subjects
// that have none, and prints the recomputed scores.
func ExecuteSubjectPut(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager, path string) error {
	start := time.Now()
	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	svc, err := BuildService(cfg, mgr, logger)
	if err != nil {
		return err
	}
	subjects, err := contract.LoadSubjectFile(path)
	if err != nil {
		return err
	}

	results := make([]schema.ScoreResult, 0, len(subjects))
	for _, s := range subjects {
		assignID(&s)
		result, err := svc.SaveSubject(ctx, s)
		if err != nil {
			return err
		}
		results = append(results, result)
	}

	ranked := rankScores(results, cfg.ResultLimit)
	return outwriter.NewOutWriter().WriteScores(ranked, definitionMap(svc.Engine().Catalog()), cfg, time.Since(start))
}

// assignID gives a subject without an id a random one.
func assignID(s *schema.ScoringSubject) {
	if strings.TrimSpace(s.ID) != "" {
		return
	}
	s.ID = uuid.NewString()
	_, _ = fmt.Fprintf(os.Stderr, "Assigned id %s to subject owned by %s\n", s.ID, s.OwnerID)
}

// ExecuteSubjectSet updates one owner-reported metric of a stored subject and
// prints the new explanation. The value is parsed with contract.ParseRawValue.
func ExecuteSubjectSet(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager, subjectID, metricKey, value string) error {
	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	svc, err := BuildService(cfg, mgr, logger)
	if err != nil {
		return err
	}
	result, err := svc.UpdateMetric(ctx, subjectID, metricKey, contract.ParseRawValue(value))
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WriteExplanation(result, definitionMap(svc.Engine().Catalog()), cfg)
}

// ExecuteRate submits a peer rating and prints the subject's refreshed explanation.
func ExecuteRate(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager, subjectID, metricKey, raterID string, rating int) error {
	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	svc, err := BuildService(cfg, mgr, logger)
	if err != nil {
		return err
	}
	if err := svc.SubmitPeerRating(ctx, subjectID, metricKey, raterID, rating); err != nil {
		return err
	}
	result, err := svc.GetExplanation(ctx, subjectID)
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WriteExplanation(result, definitionMap(svc.Engine().Catalog()), cfg)
}

// ExecuteExplain prints the cached explanation of a stored subject,
// recomputing it when the cache has no usable entry.
func ExecuteExplain(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager, subjectID string) error {
	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	svc, err := BuildService(cfg, mgr, logger)
	if err != nil {
		return err
	}
	result, err := svc.GetExplanation(ctx, subjectID)
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WriteExplanation(result, definitionMap(svc.Engine().Catalog()), cfg)
}

// ExecuteRescore recomputes every stored subject and prints the ranking.
func ExecuteRescore(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager) error {
	start := time.Now()
	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	svc, err := BuildService(cfg, mgr, logger)
	if err != nil {
		return err
	}
	count, err := svc.RescoreAll(ctx, cfg.Workers)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(os.Stderr, "Rescored %d subjects\n", count)

	ids, err := mgr.GetStore().ListSubjectIDs(ctx)
	if err != nil {
		return err
	}
	results := make([]schema.ScoreResult, 0, len(ids))
	for _, id := range ids {
		result, err := svc.GetExplanation(ctx, id)
		if err != nil {
			return err
		}
		results = append(results, result)
	}

	ranked := rankScores(results, cfg.ResultLimit)
	return outwriter.NewOutWriter().WriteScores(ranked, definitionMap(svc.Engine().Catalog()), cfg, time.Since(start))
}

// ExecuteMetrics prints the metric catalog and the effective relevance weights.
func ExecuteMetrics(_ context.Context, cfg *contract.Config) error {
	engine, err := BuildEngine(cfg, nil)
	if err != nil {
		return err
	}
	return outwriter.NewOutWriter().WriteMetrics(GetMetricsModel(engine), cfg)
}
