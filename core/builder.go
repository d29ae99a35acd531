package core

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/huangsam/ers/internal/contract"
	"github.com/huangsam/ers/schema"
)

var (
	errNoStore = errors.New("store is not initialized")
	errNoCache = errors.New("score cache is not initialized")
)

// BuildEngine assembles an engine from the validated config: the default
// catalog plus any extra metrics, and the default weight table merged with
// the configured overrides.
func BuildEngine(cfg *contract.Config, logger *zap.Logger) (*Engine, error) {
	catalog := DefaultCatalog()
	if len(cfg.ExtraMetrics) > 0 {
		defs := append(catalog.Definitions(), cfg.ExtraMetrics...)
		c, err := NewCatalog(defs...)
		if err != nil {
			return nil, fmt.Errorf("invalid metric catalog: %w", err)
		}
		catalog = c
	}

	weights, err := DefaultWeightTable().Merge(cfg.CategoryWeights, cfg.SizeWeights, WithCatalog(catalog))
	if err != nil {
		return nil, fmt.Errorf("invalid weight overrides: %w", err)
	}
	return NewEngine(catalog, weights, WithLogger(logger)), nil
}

// BuildService wires a rating service to the engine and the managed backends.
func BuildService(cfg *contract.Config, mgr contract.StoreManager, logger *zap.Logger) (*RatingService, error) {
	engine, err := BuildEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	store := mgr.GetStore()
	if store == nil {
		return nil, errNoStore
	}
	cache := mgr.GetScoreCache()
	if cache == nil {
		return nil, errNoCache
	}
	return NewRatingService(engine, store, store, cache, WithServiceLogger(logger)), nil
}

// definitionMap indexes the catalog by key for output.
func definitionMap(c *Catalog) map[string]schema.MetricDefinition {
	defs := c.Definitions()
	out := make(map[string]schema.MetricDefinition, len(defs))
	for _, d := range defs {
		out[d.Key] = d
	}
	return out
}

// newLogger builds the diagnostic logger, falling back to a no-op logger.
func newLogger(cfg *contract.Config) *zap.Logger {
	logger, err := contract.NewLogger(cfg.Verbose)
	if err != nil {
		contract.LogWarn("failed to build logger", err)
		return zap.NewNop()
	}
	return logger
}
