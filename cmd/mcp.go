package cmd

import (
	"github.com/spf13/cobra"

	"github.com/huangsam/ers/internal/contract"
	"github.com/huangsam/ers/internal/mcp"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the ERS MCP server",
	Long: `Launch an MCP server on stdio that lets AI agents score subjects, submit
peer ratings and read explanations via standard tools.`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		// Diagnostics go to stderr so stdio stays reserved for the protocol
		logger, err := contract.NewLogger(cfg.Verbose)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		return mcp.StartMCPServer(rootCtx, cfg, storeManager, logger)
	},
}
