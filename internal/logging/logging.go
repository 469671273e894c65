// Package logging configures the proxy's structured logger and attaches
// per-session correlation fields (connection ID, remote address, bound DN)
// the way request-scoped loggers are derived throughout the codebase.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls the process-wide logger built by Configure.
type Config struct {
	Level            string
	Structured       bool
	StructuredFormat string
	IncludePID       bool
	ExtraFields      map[string]string
}

// Configure builds and installs the default slog.Logger for the process.
func Configure(cfg Config) *slog.Logger {
	level := parseLevel(cfg.Level)
	var handler slog.Handler
	out := io.Writer(os.Stderr)

	attrs := make([]slog.Attr, 0, len(cfg.ExtraFields)+1)
	for k, v := range cfg.ExtraFields {
		attrs = append(attrs, slog.String(k, v))
	}
	if cfg.IncludePID {
		attrs = append(attrs, slog.Int("pid", os.Getpid()))
	}

	if cfg.Structured {
		if strings.ToLower(cfg.StructuredFormat) == "json" {
			handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
		} else {
			// key=value-ish output
			handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
		}
	} else {
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	}

	if len(attrs) > 0 {
		handler = handler.WithAttrs(attrs)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// SessionLogger derives a request-scoped logger carrying connection
// correlation fields. boundDN is omitted until the session has a bound
// identity.
func SessionLogger(base *slog.Logger, connID, remoteAddr, boundDN string) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	l := base.With(slog.String("conn_id", connID), slog.String("remote_addr", remoteAddr))
	if boundDN != "" {
		l = l.With(slog.String("bound_dn", boundDN))
	}
	return l
}

func parseLevel(s string) slog.Level {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
