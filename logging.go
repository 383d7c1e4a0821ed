package headlessterm

import (
	"log/slog"
	"os"
)

// logger is the package-wide diagnostic sink. No ecosystem structured-logging
// library appears anywhere in the retrieved pack's import graphs, so this
// uses the standard library's own structured logger rather than inventing a
// dependency the corpus gives no signal toward.
var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

// SetLogger replaces the package-wide diagnostic logger. Passing nil
// restores a discard logger.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	logger = l
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }
