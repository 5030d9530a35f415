package persistence

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LoggingDeadLetter logs exhausted batches at error level so they remain
// visible in the recovery log even though they were never committed (spec
// §4.6: "logged to a dead-letter sink but never lost from the recovery
// log"). A production deployment would pair this with a durable sink
// (object storage, a separate dead-letter table); logging is the
// dependency-free floor every deployment gets for free.
type LoggingDeadLetter struct {
	log zerolog.Logger
}

// NewLoggingDeadLetter builds a LoggingDeadLetter.
func NewLoggingDeadLetter() *LoggingDeadLetter {
	return &LoggingDeadLetter{log: log.With().Str("component", "persistence-dead-letter").Logger()}
}

// DeadLetter implements DeadLetterSink.
func (d *LoggingDeadLetter) DeadLetter(b Batch, err error) {
	d.log.Error().
		Err(err).
		Int("executions", len(b.Executions)).
		Int("orders", len(b.Orders)).
		Int("balances", len(b.Balances)).
		Msg("batch dead-lettered after exhausting retries")
}
