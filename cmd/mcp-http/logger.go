package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/ggoodman/mcp-http-go/internal/logctx"
)

func newLogger(w io.Writer, cfg Config) *slog.Logger {
	level, _ := cfg.Level()
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if strings.EqualFold(cfg.LogFormat, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(logctx.Handler{Handler: h}).With(slog.String("app", "mcp-http"))
}
