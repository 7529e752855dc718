// Package corelog configures the process-wide slog logger, grounded on the
// teacher's cmd/server/main.go setupHandler: tint for readable local
// development output, JSON for prod/stage log aggregation.
package corelog

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Env selects the handler newHandler returns.
type Env string

const (
	EnvDev   Env = "dev"
	EnvProd  Env = "prod"
	EnvStage Env = "stage"
)

// EnvFromString normalizes an environment variable value to an Env,
// defaulting to EnvDev for anything unrecognized.
func EnvFromString(s string) Env {
	switch Env(s) {
	case EnvProd, EnvStage:
		return Env(s)
	default:
		return EnvDev
	}
}

// Setup installs a process-wide default slog logger for env and returns it.
func Setup(env Env) *slog.Logger {
	logger := slog.New(newHandler(env))
	slog.SetDefault(logger)
	return logger
}

func newHandler(env Env) slog.Handler {
	switch env {
	case EnvProd, EnvStage:
		return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	default:
		return tint.NewHandler(os.Stdout, &tint.Options{
			Level:      slog.LevelDebug,
			AddSource:  true,
			TimeFormat: time.DateTime,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key != "msg" && a.Value.Kind() == slog.KindString {
					a.Value = slog.StringValue(fmt.Sprintf("'%s'", a.Value.String()))
				}
				return a
			},
		})
	}
}
