package trip

import "github.com/example/trip-dispatch/internal/models"

// driverAdvances is the linear forward path a driver walks a trip along.
// Rejection loops back to pending via Reassign, and cancellation is
// reachable from any non-terminal state; both are handled separately.
var driverAdvances = map[models.TripStatus]models.TripStatus{
	models.StatusAccepted:        models.StatusHeadingToPickup,
	models.StatusHeadingToPickup: models.StatusPickedUp,
	models.StatusPickedUp:        models.StatusCompleted,
}

// CanAdvance reports whether from -> to is a valid driver-initiated
// forward transition.
func CanAdvance(from, to models.TripStatus) bool {
	next, ok := driverAdvances[from]
	return ok && next == to
}
