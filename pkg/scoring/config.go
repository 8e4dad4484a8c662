package scoring

import (
	"log/slog"

	"golang.org/x/text/language"
)

// Option configures an Engine.
type Option func(*Engine)

// WithLocale sets the collation locale used for alphabetical ordering.
func WithLocale(tag language.Tag) Option {
	return func(e *Engine) { e.locale = tag }
}

// WithLogger sets the logger for evaluation traces. A nil logger is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}
