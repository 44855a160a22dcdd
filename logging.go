package fibers

import (
	"log/slog"
	"os"
	"sync"

	"github.com/joeycumines/logiface"
	islog "github.com/joeycumines/logiface-slog"
)

// defaultLogger builds the shared fallback logger: JSON to stderr, warning
// level. Hubs attach their id as a field; see [WithLogger] to substitute a
// different logger per hub.
var defaultLogger = sync.OnceValue(func() *logiface.Logger[logiface.Event] {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})
	return islog.L.New(
		islog.L.WithSlogHandler(handler),
		logiface.WithLevel[*islog.Event](logiface.LevelWarning),
	).Logger()
})
