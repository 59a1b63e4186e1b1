// Package notify owns notification records and delivers state-change
// events to client and driver apps. Delivery is fire-and-forget and
// at-least-once: the record is stored first, then pushed on a best-effort
// basis over whatever channels are connected.
package notify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/example/trip-dispatch/internal/models"
)

var (
	ErrNotFound        = errors.New("notification not found")
	ErrAlreadyResolved = errors.New("notification already resolved")
)

// Pusher delivers a stored notification to a connected recipient.
type Pusher interface {
	Push(role models.Role, recipientID string, n models.Notification) error
}

type Service struct {
	mu        sync.RWMutex
	byID      map[string]*models.Notification
	pushers   []Pusher
	logger    *slog.Logger
	retention time.Duration

	now func() time.Time
}

func NewService(logger *slog.Logger, retention time.Duration, pushers ...Pusher) *Service {
	return &Service{
		byID:      make(map[string]*models.Notification),
		pushers:   pushers,
		logger:    logger,
		retention: retention,
		now:       time.Now,
	}
}

// Notify records the event and pushes it to the recipient. Push failures
// are logged and swallowed; real-time delivery is the collaborator's
// concern, the stored record is ours.
func (s *Service) Notify(ctx context.Context, role models.Role, recipientID, tripID, message string, status models.NotificationStatus, amount float64) (string, error) {
	n := models.Notification{
		ID:            newID(),
		RecipientRole: role,
		RecipientID:   recipientID,
		TripID:        tripID,
		Message:       message,
		Status:        status,
		Amount:        amount,
		CreatedAt:     s.now(),
	}
	s.mu.Lock()
	s.byID[n.ID] = &n
	s.mu.Unlock()

	for _, p := range s.pushers {
		if err := p.Push(role, recipientID, n); err != nil {
			s.logger.Warn("notification push failed",
				"notification_id", n.ID, "recipient", recipientID, "error", err)
		}
	}
	return n.ID, nil
}

// MarkResolved settles an outstanding offer notification. Resolving is
// idempotent in the conflict sense: the first call wins, a second attempt
// reports ErrAlreadyResolved and changes nothing.
func (s *Service) MarkResolved(ctx context.Context, id string, outcome models.NotificationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	if n.Status != models.NotifPending {
		return ErrAlreadyResolved
	}
	n.Status = outcome
	n.Read = true
	return nil
}

func (s *Service) MarkRead(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	n.Read = true
	return nil
}

// PendingOfferFor returns the outstanding offer notification for a trip and
// driver, if any. The trip service resolves it on accept/reject.
func (s *Service) PendingOfferFor(ctx context.Context, tripID, driverID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.byID {
		if n.TripID == tripID && n.RecipientID == driverID &&
			n.RecipientRole == models.RoleDriver && n.Status == models.NotifPending {
			return n.ID, true
		}
	}
	return "", false
}

func (s *Service) ListFor(ctx context.Context, role models.Role, recipientID string) []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Notification
	for _, n := range s.byID {
		if n.RecipientRole == role && n.RecipientID == recipientID {
			out = append(out, *n)
		}
	}
	return out
}

// Sweep drops notifications older than the retention window and returns
// how many were removed.
func (s *Service) Sweep(ctx context.Context) int {
	cutoff := s.now().Add(-s.retention)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, n := range s.byID {
		if n.CreatedAt.Before(cutoff) {
			delete(s.byID, id)
			removed++
		}
	}
	return removed
}

// RunSweeper garbage-collects expired notifications until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(ctx); n > 0 {
				s.logger.Debug("notification sweep", "removed", n)
			}
		}
	}
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
