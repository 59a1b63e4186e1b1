package notify

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/example/trip-dispatch/internal/models"
)

type recordingPusher struct{ pushed []models.Notification }

func (r *recordingPusher) Push(role models.Role, id string, n models.Notification) error {
	r.pushed = append(r.pushed, n)
	return nil
}

type failingPusher struct{}

func (f *failingPusher) Push(role models.Role, id string, n models.Notification) error {
	return errors.New("offline")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNotifyStoresAndPushes(t *testing.T) {
	p := &recordingPusher{}
	s := NewService(testLogger(), 24*time.Hour, p)
	id, err := s.Notify(context.Background(), models.RoleDriver, "d1", "t1", "New trip request", models.NotifPending, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.pushed) != 1 || p.pushed[0].ID != id {
		t.Fatalf("expected one pushed notification, got %+v", p.pushed)
	}
	list := s.ListFor(context.Background(), models.RoleDriver, "d1")
	if len(list) != 1 || list[0].Status != models.NotifPending {
		t.Fatalf("expected stored pending notification, got %+v", list)
	}
}

func TestNotifySurvivesPushFailure(t *testing.T) {
	s := NewService(testLogger(), 24*time.Hour, &failingPusher{})
	id, err := s.Notify(context.Background(), models.RoleClient, "c1", "t1", "driver on the way", models.NotifInfo, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.ListFor(context.Background(), models.RoleClient, "c1")) != 1 {
		t.Fatalf("record for %s must be stored even when push fails", id)
	}
}

func TestMarkResolvedIdempotence(t *testing.T) {
	s := NewService(testLogger(), 24*time.Hour)
	id, _ := s.Notify(context.Background(), models.RoleDriver, "d1", "t1", "offer", models.NotifPending, 0)

	if err := s.MarkResolved(context.Background(), id, models.NotifAccepted); err != nil {
		t.Fatal(err)
	}
	err := s.MarkResolved(context.Background(), id, models.NotifRejected)
	if !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}
	// first outcome sticks
	list := s.ListFor(context.Background(), models.RoleDriver, "d1")
	if list[0].Status != models.NotifAccepted {
		t.Fatalf("expected accepted, got %s", list[0].Status)
	}
}

func TestMarkResolvedUnknown(t *testing.T) {
	s := NewService(testLogger(), 24*time.Hour)
	if err := s.MarkResolved(context.Background(), "nope", models.NotifAccepted); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPendingOfferFor(t *testing.T) {
	s := NewService(testLogger(), 24*time.Hour)
	id, _ := s.Notify(context.Background(), models.RoleDriver, "d1", "t1", "offer", models.NotifPending, 0)
	_, _ = s.Notify(context.Background(), models.RoleDriver, "d1", "t1", "info", models.NotifInfo, 0)

	got, ok := s.PendingOfferFor(context.Background(), "t1", "d1")
	if !ok || got != id {
		t.Fatalf("expected pending offer %s, got %s ok=%v", id, got, ok)
	}
	_ = s.MarkResolved(context.Background(), id, models.NotifRejected)
	if _, ok := s.PendingOfferFor(context.Background(), "t1", "d1"); ok {
		t.Fatal("resolved offer must no longer be pending")
	}
}

func TestSweepRetention(t *testing.T) {
	s := NewService(testLogger(), 24*time.Hour)
	base := time.Now()

	s.now = func() time.Time { return base.Add(-25 * time.Hour) }
	_, _ = s.Notify(context.Background(), models.RoleClient, "c1", "t1", "old", models.NotifInfo, 0)
	s.now = func() time.Time { return base }
	_, _ = s.Notify(context.Background(), models.RoleClient, "c1", "t2", "new", models.NotifInfo, 0)

	if removed := s.Sweep(context.Background()); removed != 1 {
		t.Fatalf("expected 1 swept, got %d", removed)
	}
	list := s.ListFor(context.Background(), models.RoleClient, "c1")
	if len(list) != 1 || list[0].Message != "new" {
		t.Fatalf("expected only the fresh notification, got %+v", list)
	}
}
