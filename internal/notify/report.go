package notify

import (
	"context"
	"fmt"

	"heraldbot/internal/store"
)

// Report returns the delivery/read reconciliation for a message: one row per
// recipient the orchestrator ever attempted, ordered by user id, ReadAt nil
// where no acknowledgment exists yet.
//
// A valid message with zero deliveries (empty group at send time) yields an
// empty report. ErrUnknownMessage is returned only when the id was never
// issued by the ledger.
func (s *Service) Report(ctx context.Context, mid int64) ([]store.ReportRow, error) {
	rows, err := s.store.DeliveryReport(ctx, mid)
	if err != nil {
		return nil, fmt.Errorf("delivery report (mid=%d): %w", mid, err)
	}
	if len(rows) == 0 {
		exists, err := s.store.MessageExists(ctx, mid)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w: %d", ErrUnknownMessage, mid)
		}
	}
	return rows, nil
}
