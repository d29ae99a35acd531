package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/huangsam/ers/core"
	"github.com/huangsam/ers/internal/contract"
	"github.com/huangsam/ers/schema"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	mgr     contract.StoreManager
	logger  *zap.Logger

	// One service per server so rating locks and recompute de-duplication span all calls
	svcOnce sync.Once
	svc     *core.RatingService
	svcErr  error
}

func (h *toolHandler) service() (*core.RatingService, error) {
	h.svcOnce.Do(func() {
		if h.mgr == nil {
			h.svcErr = fmt.Errorf("store is not initialized")
			return
		}
		h.svc, h.svcErr = core.BuildService(h.baseCfg, h.mgr, h.logger)
	})
	return h.svc, h.svcErr
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

// explanationView is what explanation-returning tools send back.
type explanationView struct {
	schema.EnrichedScoreResult
	Rows []schema.ExplanationRow `json:"rows"`
}

func explain(svc *core.RatingService, result schema.ScoreResult) explanationView {
	return explanationView{
		EnrichedScoreResult: schema.EnrichScore(result),
		Rows:                schema.EnrichExplanation(result, core.DefinitionMap(svc.Engine())),
	}
}

func (h *toolHandler) handleComputeScore(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()
	if l := request.GetInt("limit", 0); l > 0 {
		cfg.ResultLimit = l
	}

	subjects, err := contract.ParseSubjects([]byte(request.GetString("subjects", "")))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid subjects: %v", err)), nil
	}
	ranked, engine, err := core.GetScoreResults(ctx, cfg, subjects, h.logger)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("scoring failed: %v", err)), nil
	}

	defs := core.DefinitionMap(engine)
	output := make([]explanationView, len(ranked))
	for i, r := range ranked {
		output[i] = explanationView{EnrichedScoreResult: schema.EnrichScore(r), Rows: schema.EnrichExplanation(r, defs)}
	}
	return jsonResult(output)
}

func (h *toolHandler) handleSubmitPeerRating(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	subjectID := request.GetString("subject_id", "")
	metricKey := request.GetString("metric_key", "")
	raterID := request.GetString("rater_id", "")
	rating := request.GetFloat("rating", 0)
	if rating != float64(int(rating)) {
		return mcp.NewToolResultError(fmt.Sprintf("rating must be a whole number (received %v)", rating)), nil
	}

	svc, err := h.service()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := svc.SubmitPeerRating(ctx, subjectID, metricKey, raterID, int(rating)); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("rating rejected: %v", err)), nil
	}
	agg, err := svc.Aggregate(ctx, subjectID, metricKey)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read aggregate: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"subject_id": subjectID,
		"metric_key": metricKey,
		"aggregate":  agg,
	})
}

func (h *toolHandler) handleGetExplanation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	svc, err := h.service()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := svc.GetExplanation(ctx, request.GetString("subject_id", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("explanation failed: %v", err)), nil
	}
	return jsonResult(explain(svc, result))
}

func (h *toolHandler) handleUpdateMetric(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	value := request.GetString("value", "")
	if strings.TrimSpace(value) == "" {
		return mcp.NewToolResultError("value is required"), nil
	}

	svc, err := h.service()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := svc.UpdateMetric(ctx, request.GetString("subject_id", ""), request.GetString("metric_key", ""), contract.ParseRawValue(value))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("update failed: %v", err)), nil
	}
	return jsonResult(explain(svc, result))
}

func (h *toolHandler) handleListMetrics(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	engine, err := core.BuildEngine(h.baseCfg, h.logger)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(core.GetMetricsModel(engine))
}
