package trip

import (
	"testing"

	"github.com/example/trip-dispatch/internal/models"
)

func TestCanAdvance(t *testing.T) {
	valid := [][2]models.TripStatus{
		{models.StatusAccepted, models.StatusHeadingToPickup},
		{models.StatusHeadingToPickup, models.StatusPickedUp},
		{models.StatusPickedUp, models.StatusCompleted},
	}
	for _, v := range valid {
		if !CanAdvance(v[0], v[1]) {
			t.Errorf("expected %s -> %s allowed", v[0], v[1])
		}
	}

	invalid := [][2]models.TripStatus{
		{models.StatusPending, models.StatusAccepted}, // accept goes through RespondToOffer
		{models.StatusAccepted, models.StatusPickedUp},
		{models.StatusAccepted, models.StatusCompleted},
		{models.StatusHeadingToPickup, models.StatusAccepted},
		{models.StatusCompleted, models.StatusPickedUp},
		{models.StatusCancelled, models.StatusAccepted},
	}
	for _, v := range invalid {
		if CanAdvance(v[0], v[1]) {
			t.Errorf("expected %s -> %s rejected", v[0], v[1])
		}
	}
}

func TestTerminalStatuses(t *testing.T) {
	if !models.StatusCompleted.Terminal() || !models.StatusCancelled.Terminal() {
		t.Fatal("completed and cancelled are terminal")
	}
	for _, s := range []models.TripStatus{models.StatusPending, models.StatusAccepted, models.StatusHeadingToPickup, models.StatusPickedUp} {
		if s.Terminal() {
			t.Errorf("%s must not be terminal", s)
		}
	}
}
