// Package trip owns the booking lifecycle: request, offer accept/reject
// with reassignment, en-route tracking, completion and cancellation
// settlement. All other components mutate trips only through this service.
package trip

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/trip-dispatch/internal/fare"
	"github.com/example/trip-dispatch/internal/geo"
	"github.com/example/trip-dispatch/internal/matcher"
	"github.com/example/trip-dispatch/internal/models"
	"github.com/example/trip-dispatch/internal/observability"
	"github.com/example/trip-dispatch/internal/payments"
	"github.com/example/trip-dispatch/internal/registry"
	"github.com/example/trip-dispatch/internal/route"
	"github.com/example/trip-dispatch/internal/storage"
)

// Matcher is the dispatch query: nearest available driver not excluded.
type Matcher interface {
	FindNearest(ctx context.Context, pickup models.Coord, exclude map[string]bool) (string, error)
}

// Relay is the outbound notification contract. Fire-and-forget: this
// service never waits on delivery.
type Relay interface {
	Notify(ctx context.Context, role models.Role, recipientID, tripID, message string, status models.NotificationStatus, amount float64) (string, error)
	MarkResolved(ctx context.Context, id string, outcome models.NotificationStatus) error
	PendingOfferFor(ctx context.Context, tripID, driverID string) (string, bool)
}

type Service struct {
	Store    storage.TripStore
	Registry registry.Registry
	Matcher  Matcher
	Relay    Relay
	Fare     *fare.Calculator
	Routes   *route.Estimator  // optional server-side distance fallback
	Payments payments.Provider // optional
	Logger   *slog.Logger

	// OfferTimeout bounds how long a driver may sit on an offer before the
	// monitor auto-rejects it.
	OfferTimeout time.Duration
}

// RequestTrip matches the pickup to the nearest available driver, creates
// the trip in pending and offers it to that driver. The trip is not
// created when no driver is eligible.
func (s *Service) RequestTrip(ctx context.Context, req models.TripRequest) (*models.Trip, error) {
	observability.TripsRequested.Inc()
	start := time.Now()

	distance := req.DistanceKm
	if distance <= 0 {
		if s.Routes != nil {
			distance = s.Routes.DistanceKm(ctx, req.Pickup.Coord, req.Destination.Coord)
		} else {
			distance = geo.HaversineKm(req.Pickup.Coord, req.Destination.Coord)
		}
	}
	amount := s.Fare.Quote(distance)

	driverID, err := s.matchAndReserve(ctx, req.Pickup.Coord, nil)
	if err != nil {
		observability.NoDriverTotal.Inc()
		return nil, err
	}

	now := time.Now()
	t := &models.Trip{
		ID:          newID(),
		ClientID:    req.ClientID,
		DriverID:    driverID,
		Pickup:      req.Pickup,
		Destination: req.Destination,
		DistanceKm:  distance,
		Amount:      amount,
		Status:      models.StatusPending,
		OfferedAt:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Store.CreateTrip(ctx, t); err != nil {
		_ = s.Registry.Release(ctx, driverID)
		return nil, err
	}

	s.offerTo(ctx, t, driverID)
	observability.TripsCreated.Inc()
	observability.MatchLatency.Observe(time.Since(start).Seconds())
	s.Logger.Info("trip requested", "trip_id", t.ID, "client_id", t.ClientID, "driver_id", driverID, "amount", amount)
	return t, nil
}

// matchAndReserve runs the matcher and atomically reserves the winner,
// retrying past drivers a concurrent request grabbed first. Exclusions
// accumulate so the loop always terminates.
func (s *Service) matchAndReserve(ctx context.Context, pickup models.Coord, exclude map[string]bool) (string, error) {
	tried := make(map[string]bool, len(exclude))
	for id := range exclude {
		tried[id] = true
	}
	for {
		driverID, err := s.Matcher.FindNearest(ctx, pickup, tried)
		if err != nil {
			if errors.Is(err, matcher.ErrNoDriverAvailable) {
				return "", ErrNoDriverAvailable
			}
			return "", err
		}
		ok, err := s.Registry.Reserve(ctx, driverID)
		if err != nil {
			if errors.Is(err, registry.ErrNotFound) {
				tried[driverID] = true
				continue
			}
			return "", err
		}
		if !ok {
			// lost the race for this driver, move to the next
			tried[driverID] = true
			continue
		}
		return driverID, nil
	}
}

// RespondToOffer records a driver's answer to an outstanding offer. The
// driver and pending status must still match the trip, otherwise the
// response is stale (a retry after reassignment) and reports ErrConflict
// without mutating anything.
func (s *Service) RespondToOffer(ctx context.Context, tripID, driverID string, accept bool) error {
	t, err := s.getTrip(ctx, tripID)
	if err != nil {
		return err
	}
	if t.Status != models.StatusPending || t.DriverID != driverID {
		observability.ConflictsTotal.Inc()
		return ErrConflict
	}

	if accept {
		ok, err := s.Store.TransitionStatus(ctx, tripID, models.StatusPending, models.StatusAccepted, driverID)
		if err != nil {
			return s.storeErr(err)
		}
		if !ok {
			observability.ConflictsTotal.Inc()
			return ErrConflict
		}
		s.resolveOffer(ctx, tripID, driverID, models.NotifAccepted)
		s.notify(ctx, models.RoleClient, t.ClientID, tripID,
			"Your trip request was accepted. The driver is on the way.", models.NotifAccepted, 0)
		observability.OffersAccepted.Inc()
		s.Logger.Info("offer accepted", "trip_id", tripID, "driver_id", driverID)
		return nil
	}
	return s.rejectAndReassign(ctx, t, driverID, false)
}

// rejectAndReassign runs the reassignment loop after an explicit reject or
// an offer timeout: exclude the rejecting driver, re-match, and either
// re-offer or leave the trip pending with no driver ("searching").
func (s *Service) rejectAndReassign(ctx context.Context, t *models.Trip, rejecting string, timedOut bool) error {
	rejected := append(append([]string(nil), t.RejectedBy...), rejecting)
	exclude := make(map[string]bool, len(rejected))
	for _, id := range rejected {
		exclude[id] = true
	}

	s.resolveOffer(ctx, t.ID, rejecting, models.NotifRejected)
	if timedOut {
		observability.OffersTimedOut.Inc()
	} else {
		observability.OffersRejected.Inc()
	}

	next, err := s.matchAndReserve(ctx, t.Pickup.Coord, exclude)
	if err != nil && !errors.Is(err, ErrNoDriverAvailable) {
		return err
	}

	ok, serr := s.Store.Reassign(ctx, t.ID, rejecting, next, rejected)
	if serr != nil {
		if next != "" {
			_ = s.Registry.Release(ctx, next)
		}
		return s.storeErr(serr)
	}
	if !ok {
		// someone else moved the trip first; undo our reservation
		if next != "" {
			_ = s.Registry.Release(ctx, next)
		}
		observability.ConflictsTotal.Inc()
		return ErrConflict
	}
	_ = s.Registry.Release(ctx, rejecting)
	s.notify(ctx, models.RoleDriver, rejecting, t.ID,
		"Trip was reassigned to another driver.", models.NotifInfo, t.Amount)

	if next == "" {
		s.notify(ctx, models.RoleClient, t.ClientID, t.ID,
			"Searching for a driver for your trip.", models.NotifInfo, 0)
		s.Logger.Warn("no driver available after reject", "trip_id", t.ID)
		return ErrNoDriverAvailable
	}

	t.DriverID = next
	s.offerTo(ctx, t, next)
	s.notify(ctx, models.RoleClient, t.ClientID, t.ID,
		"Your trip is now assigned to another driver.", models.NotifInfo, 0)
	s.Logger.Info("trip reassigned", "trip_id", t.ID, "rejected_by", rejecting, "driver_id", next)
	return nil
}

// Advance moves a trip along the driver's forward path:
// accepted -> heading_to_pickup -> picked_up -> completed.
func (s *Service) Advance(ctx context.Context, tripID, driverID string, next models.TripStatus) error {
	t, err := s.getTrip(ctx, tripID)
	if err != nil {
		return err
	}
	if t.DriverID != driverID {
		observability.ConflictsTotal.Inc()
		return ErrConflict
	}
	if !CanAdvance(t.Status, next) {
		return ErrInvalidTransition
	}

	if next == models.StatusCompleted {
		// amount is already the quoted fare; Settle rewrites it through the
		// same conditional update that flips the status
		ok, err := s.Store.Settle(ctx, tripID, t.Status, models.StatusCompleted, t.Amount)
		if err != nil {
			return s.storeErr(err)
		}
		if !ok {
			observability.ConflictsTotal.Inc()
			return ErrConflict
		}
		_ = s.Registry.Release(ctx, driverID)
		s.notify(ctx, models.RoleClient, t.ClientID, tripID,
			fmt.Sprintf("Trip completed. Please pay RWF %.0f.", t.Amount), models.NotifSuccess, t.Amount)
		observability.TripsCompleted.Inc()
		s.Logger.Info("trip completed", "trip_id", tripID, "driver_id", driverID, "amount", t.Amount)
		return nil
	}

	ok, err := s.Store.TransitionStatus(ctx, tripID, t.Status, next, driverID)
	if err != nil {
		return s.storeErr(err)
	}
	if !ok {
		observability.ConflictsTotal.Inc()
		return ErrConflict
	}
	switch next {
	case models.StatusHeadingToPickup:
		s.notify(ctx, models.RoleClient, t.ClientID, tripID,
			"Your driver is on the way to the pickup point.", models.NotifInfo, 0)
	case models.StatusPickedUp:
		s.notify(ctx, models.RoleClient, t.ClientID, tripID,
			"You have been picked up. Enjoy the ride.", models.NotifInfo, 0)
	}
	s.Logger.Info("trip advanced", "trip_id", tripID, "status", next)
	return nil
}

// UpdateDriverLocation stores the latest tracked driver position. Only
// meaningful while en route; last write wins.
func (s *Service) UpdateDriverLocation(ctx context.Context, tripID string, loc models.Coord) error {
	ok, err := s.Store.SetDriverLocation(ctx, tripID, loc)
	if err != nil {
		return s.storeErr(err)
	}
	if !ok {
		return ErrInvalidTransition
	}
	return nil
}

// Cancel ends a trip from any non-terminal state. Once a driver has
// accepted, the client owes the cancellation settlement: base fare plus a
// per-km rate on the distance already traveled plus a pickup-loss share of
// the original quote. A cancel while still pending settles at zero.
func (s *Service) Cancel(ctx context.Context, tripID, initiator string, distanceTraveledKm float64) error {
	t, err := s.getTrip(ctx, tripID)
	if err != nil {
		return err
	}
	if t.Status.Terminal() {
		return ErrInvalidTransition
	}

	var amount float64
	if t.Status != models.StatusPending {
		amount = s.Fare.SettleCancellation(distanceTraveledKm, t.Amount)
	}

	ok, err := s.Store.Settle(ctx, tripID, t.Status, models.StatusCancelled, amount)
	if err != nil {
		return s.storeErr(err)
	}
	if !ok {
		observability.ConflictsTotal.Inc()
		return ErrConflict
	}
	if t.DriverID != "" {
		_ = s.Registry.Release(ctx, t.DriverID)
		if id, found := s.Relay.PendingOfferFor(ctx, tripID, t.DriverID); found {
			_ = s.Relay.MarkResolved(ctx, id, models.NotifRejected)
		}
	}

	if amount > 0 {
		s.notify(ctx, models.RoleClient, t.ClientID, tripID,
			fmt.Sprintf("Trip cancelled. Distance traveled: %.2f km. You are charged RWF %.0f including 15%% pickup compensation.",
				distanceTraveledKm, amount), models.NotifInfo, amount)
	} else {
		s.notify(ctx, models.RoleClient, t.ClientID, tripID, "Trip cancelled.", models.NotifInfo, 0)
	}
	if t.DriverID != "" {
		s.notify(ctx, models.RoleDriver, t.DriverID, tripID,
			fmt.Sprintf("Trip was cancelled by the %s.", initiator), models.NotifInfo, amount)
	}
	observability.TripsCancelled.Inc()
	s.Logger.Info("trip cancelled", "trip_id", tripID, "initiator", initiator, "amount", amount)
	return nil
}

// Pay forwards the fare to the payment collaborator. The trip must be
// completed; a provider failure is surfaced but never reopens the trip —
// payment retries are the caller's concern.
func (s *Service) Pay(ctx context.Context, req models.PaymentRequest) (models.PaymentResult, error) {
	t, err := s.getTrip(ctx, req.TripID)
	if err != nil {
		return models.PaymentResult{}, err
	}
	if t.Status != models.StatusCompleted && t.Status != models.StatusCancelled {
		return models.PaymentResult{}, ErrInvalidTransition
	}
	if s.Payments == nil {
		return models.PaymentResult{}, payments.ErrUpstream
	}
	req.Amount = t.Amount
	res, err := s.Payments.Collect(ctx, req)
	if err != nil {
		s.notify(ctx, models.RoleClient, t.ClientID, t.ID,
			"Payment failed. Please try again.", models.NotifError, t.Amount)
		return models.PaymentResult{}, err
	}
	if res.Success {
		s.notify(ctx, models.RoleClient, t.ClientID, t.ID,
			fmt.Sprintf("Payment of RWF %.0f received. Thank you.", t.Amount), models.NotifSuccess, t.Amount)
	}
	return res, nil
}

func (s *Service) GetTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	return s.getTrip(ctx, tripID)
}

func (s *Service) offerTo(ctx context.Context, t *models.Trip, driverID string) {
	s.notify(ctx, models.RoleDriver, driverID, t.ID,
		fmt.Sprintf("New trip request from %s to %s", t.Pickup.Address, t.Destination.Address),
		models.NotifPending, t.Amount)
}

func (s *Service) resolveOffer(ctx context.Context, tripID, driverID string, outcome models.NotificationStatus) {
	if id, ok := s.Relay.PendingOfferFor(ctx, tripID, driverID); ok {
		if err := s.Relay.MarkResolved(ctx, id, outcome); err != nil {
			s.Logger.Warn("resolve offer notification", "trip_id", tripID, "error", err)
		}
	}
}

func (s *Service) notify(ctx context.Context, role models.Role, recipientID, tripID, message string, status models.NotificationStatus, amount float64) {
	if _, err := s.Relay.Notify(ctx, role, recipientID, tripID, message, status, amount); err != nil {
		s.Logger.Warn("notify failed", "trip_id", tripID, "recipient", recipientID, "error", err)
	}
}

func (s *Service) getTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	t, err := s.Store.GetTrip(ctx, tripID)
	if err != nil {
		return nil, s.storeErr(err)
	}
	return t, nil
}

func (s *Service) storeErr(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
