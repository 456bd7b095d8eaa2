// Package events delivers loan engine events to a log, a Redis channel or a
// Kafka topic.
package events

import (
	"context"

	"github.com/rs/zerolog"

	"collateral-loans/internal/domain/event"
)

var _ event.Publisher = (*LogPublisher)(nil)

// LogPublisher writes each event as one structured log line.
type LogPublisher struct{ logger zerolog.Logger }

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With().Str("module", "events").Logger()}
}

func (p *LogPublisher) Publish(_ context.Context, evs ...event.Event) error {
	for _, e := range evs {
		p.logger.Info().
			Str("event_id", e.ID).
			Str("type", string(e.Type)).
			Uint64("loan_id", e.LoanID).
			Str("borrower", e.Borrower.Hex()).
			Str("account", e.Account.Hex()).
			Str("amount", e.Amount.String()).
			Time("occurred_at", e.OccurredAt).
			Msg("loan event")
	}
	return nil
}
