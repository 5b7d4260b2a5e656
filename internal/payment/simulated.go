package payment

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Simulated stands in for a card processor. It approves any positive amount up to Limit
// (zero means no limit) and remembers what it captured.
type Simulated struct {
	Limit decimal.Decimal

	mu       sync.Mutex
	captured map[uuid.UUID]decimal.Decimal
	logger   zerolog.Logger
}

func NewSimulated(limit decimal.Decimal, logger zerolog.Logger) *Simulated {
	return &Simulated{
		Limit:    limit,
		captured: make(map[uuid.UUID]decimal.Decimal),
		logger:   logger.With().Str("component", "payment").Logger(),
	}
}

func (s *Simulated) Capture(ctx context.Context, appointmentID uuid.UUID, amount decimal.Decimal) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	approved := amount.IsPositive() && (s.Limit.IsZero() || amount.LessThanOrEqual(s.Limit))

	s.mu.Lock()
	if approved {
		s.captured[appointmentID] = amount
	}
	s.mu.Unlock()

	s.logger.Info().
		Str("appointment_id", appointmentID.String()).
		Str("amount", amount.StringFixed(2)).
		Bool("approved", approved).
		Msg("payment capture simulated")
	return approved, nil
}
