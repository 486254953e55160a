package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand(cfg Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mcp-http",
		Short:         "mcp-http serves an MCP demo server over HTTP, HTTP+SSE or stdio",
		SilenceErrors: true,
		SilenceUsage:  true,
		Example: `
  # Single-request and streaming transports on :8787
  mcp-http serve

  # Relay deliveries between replicas through Redis
  REDIS_ADDR=localhost:6379 mcp-http serve --port 9000

  # Run as a subprocess speaking newline-delimited JSON-RPC
  mcp-http stdio --log-level debug
`,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error); env LOG_LEVEL")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (json or text); env LOG_FORMAT")
	flags.StringVar(&cfg.MaxBodySize, "max-body-size", cfg.MaxBodySize, "largest accepted message, e.g. 4MiB; env MCP_MAX_BODY_SIZE")

	// Subcommands read cfg after flag parsing, so they share the pointer.
	cmd.AddCommand(newServeCommand(&cfg))
	cmd.AddCommand(newStdioCommand(&cfg))
	return cmd
}
