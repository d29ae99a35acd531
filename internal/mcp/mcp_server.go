// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/huangsam/ers/internal/contract"
)

// NewMCPServer initializes and configures the ERS MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, mgr contract.StoreManager, logger *zap.Logger) *server.MCPServer {
	s := server.NewMCPServer(
		"ERS Scoring Server",
		"1.0.0",
		server.WithLogging(),
	)

	if logger == nil {
		logger = zap.NewNop()
	}
	h := &toolHandler{
		baseCfg: baseCfg,
		mgr:     mgr,
		logger:  logger,
	}

	// --- 1. Tool: compute_score ---
	s.AddTool(mcp.NewTool("compute_score",
		mcp.WithDescription("Score one or more subjects without storing them. Returns ranked results with per-metric explanations."),
		mcp.WithString("subjects", mcp.Description("A subject, a list of subjects, or a mapping with a 'subjects' list, as YAML or JSON."), mcp.Required()),
		mcp.WithNumber("limit", mcp.Description("Limit the number of results returned.")),
	), h.handleComputeScore)

	// --- 2. Tool: submit_peer_rating ---
	s.AddTool(mcp.NewTool("submit_peer_rating",
		mcp.WithDescription("Submit or replace a rater's 1-10 rating on a peer-rated metric of a stored subject."),
		mcp.WithString("subject_id", mcp.Description("The stored subject being rated."), mcp.Required()),
		mcp.WithString("metric_key", mcp.Description("A peer-rated metric key, e.g. community_trust."), mcp.Required()),
		mcp.WithString("rater_id", mcp.Description("The id of the rating user. Owners cannot rate their own subjects."), mcp.Required()),
		mcp.WithNumber("rating", mcp.Description("Integer rating between 1 and 10."), mcp.Required()),
	), h.handleSubmitPeerRating)

	// --- 3. Tool: get_explanation ---
	s.AddTool(mcp.NewTool("get_explanation",
		mcp.WithDescription("Get the current score of a stored subject with its ranked per-metric explanation."),
		mcp.WithString("subject_id", mcp.Description("The stored subject."), mcp.Required()),
	), h.handleGetExplanation)

	// --- 4. Tool: update_metric ---
	s.AddTool(mcp.NewTool("update_metric",
		mcp.WithDescription("Set one owner-reported metric of a stored subject and return the new score. Use 'null' to un-report."),
		mcp.WithString("subject_id", mcp.Description("The stored subject."), mcp.Required()),
		mcp.WithString("metric_key", mcp.Description("A metric key that is not peer rated."), mcp.Required()),
		mcp.WithString("value", mcp.Description("The raw value: true/false, a number, a JSON list or null."), mcp.Required()),
	), h.handleUpdateMetric)

	// --- 5. Tool: list_metrics ---
	s.AddTool(mcp.NewTool("list_metrics",
		mcp.WithDescription("List the metric catalog with normalization rules and the relevance weight table."),
	), h.handleListMetrics)

	return s
}

// StartMCPServer starts the ERS MCP server on stdio.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, mgr contract.StoreManager, logger *zap.Logger) error {
	s := NewMCPServer(baseCfg, mgr, logger)
	return server.ServeStdio(s)
}
