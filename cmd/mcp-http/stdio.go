package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ggoodman/mcp-http-go/examples/echo"
	"github.com/ggoodman/mcp-http-go/internal/jsonrpc"
	"github.com/ggoodman/mcp-http-go/stdio"
)

func newStdioCommand(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Serve newline-delimited JSON-RPC on stdin and stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			// stdout carries protocol traffic; logs go to stderr.
			return runStdio(cmd.Context(), *cfg, newLogger(os.Stderr, *cfg))
		},
	}
}

func runStdio(ctx context.Context, cfg Config, log *slog.Logger) error {
	maxBody, err := cfg.MaxBodyBytes()
	if err != nil {
		return err
	}
	t := stdio.New(
		stdio.WithLogger(log),
		stdio.WithCodec(jsonrpc.Codec{MaxBytes: maxBody}),
	)
	if err := echo.New(echo.WithLogger(log)).Attach(ctx, t); err != nil {
		return err
	}
	select {
	case <-t.Done():
	case <-ctx.Done():
		_ = t.Close()
	}
	return nil
}
