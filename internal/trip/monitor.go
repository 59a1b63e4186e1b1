package trip

import (
	"context"
	"errors"
	"time"
)

// RunOfferTimeoutMonitor auto-rejects offers that sat unanswered past
// OfferTimeout and reassigns the trip, so a dead driver app cannot strand
// a booking. Runs until ctx is done.
func (s *Service) RunOfferTimeoutMonitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.expireOffers(ctx)
		}
	}
}

func (s *Service) expireOffers(ctx context.Context) {
	if s.OfferTimeout <= 0 {
		return
	}
	cutoff := time.Now().Add(-s.OfferTimeout)
	stale, err := s.Store.ListOfferedBefore(ctx, cutoff)
	if err != nil {
		s.Logger.Error("offer timeout scan failed", "error", err)
		return
	}
	for _, t := range stale {
		err := s.rejectAndReassign(ctx, t, t.DriverID, true)
		switch {
		case err == nil:
			s.Logger.Info("offer timed out, trip reassigned", "trip_id", t.ID, "driver_id", t.DriverID)
		case errors.Is(err, ErrNoDriverAvailable):
			s.Logger.Warn("offer timed out, no replacement driver", "trip_id", t.ID)
		case errors.Is(err, ErrConflict):
			// the driver answered between the scan and the reassign; fine
		default:
			s.Logger.Error("offer timeout reassign failed", "trip_id", t.ID, "error", err)
		}
	}
}
