package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/trip-dispatch/internal/fare"
	"github.com/example/trip-dispatch/internal/geo"
	"github.com/example/trip-dispatch/internal/matcher"
	"github.com/example/trip-dispatch/internal/models"
	"github.com/example/trip-dispatch/internal/notify"
	"github.com/example/trip-dispatch/internal/registry"
	"github.com/example/trip-dispatch/internal/storage"
	"github.com/example/trip-dispatch/internal/trip"
)

func newTestServer(t *testing.T) (*Server, registry.Registry) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := registry.NewMemory(0)
	notifs := notify.NewService(logger, 24*time.Hour)
	trips := &trip.Service{
		Store:        storage.NewMemoryStore(),
		Registry:     reg,
		Matcher:      matcher.New(reg, geo.MetricHaversine),
		Relay:        notifs,
		Fare:         fare.New(fare.DefaultRates()),
		Logger:       logger,
		OfferTimeout: 90 * time.Second,
	}
	return NewServer(logger, reg, trips, notifs, notify.NewWSRegistry(), nil), reg
}

func addDriver(t *testing.T, reg registry.Registry, id string, lat, lon float64) {
	t.Helper()
	ctx := context.Background()
	if err := reg.Register(ctx, id); err != nil {
		t.Fatal(err)
	}
	if err := reg.SetAvailability(ctx, id, true); err != nil {
		t.Fatal(err)
	}
	if err := reg.ReportLocation(ctx, id, models.Coord{Lat: lat, Lon: lon}); err != nil {
		t.Fatal(err)
	}
}

func doJSON(t *testing.T, srv http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func tripRequestBody() map[string]any {
	return map[string]any{
		"client_id": "c1",
		"pickup": map[string]any{
			"coord":   map[string]float64{"lat": -1.9441, "lon": 30.0619},
			"address": "Kigali Heights",
		},
		"destination": map[string]any{
			"coord":   map[string]float64{"lat": -1.9706, "lon": 30.1044},
			"address": "Kigali Airport",
		},
		"distance_km": 5.0,
	}
}

func TestRequestTripEndToEnd(t *testing.T) {
	srv, reg := newTestServer(t)
	addDriver(t, reg, "d1", -1.95, 30.06)

	rec := doJSON(t, srv, "POST", "/api/v1/trips", tripRequestBody())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created models.Trip
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.DriverID != "d1" || created.Status != models.StatusPending {
		t.Fatalf("unexpected trip: %+v", created)
	}
	if created.Amount != 2500 {
		t.Fatalf("expected quote 2500, got %v", created.Amount)
	}

	get := doJSON(t, srv, "GET", "/api/v1/trips/"+created.ID, nil)
	if get.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", get.Code)
	}
}

func TestRequestTripNoDriversIs503(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, "POST", "/api/v1/trips", tripRequestBody())
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestGetTripUnknownIs404(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv, "GET", "/api/v1/trips/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRespondWrongDriverIs409(t *testing.T) {
	srv, reg := newTestServer(t)
	addDriver(t, reg, "d1", -1.95, 30.06)

	rec := doJSON(t, srv, "POST", "/api/v1/trips", tripRequestBody())
	var created models.Trip
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}

	resp := doJSON(t, srv, "POST", fmt.Sprintf("/api/v1/trips/%s/respond", created.ID),
		map[string]any{"driver_id": "imposter", "accept": true})
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
}

func TestAdvanceOutOfOrderIs422(t *testing.T) {
	srv, reg := newTestServer(t)
	addDriver(t, reg, "d1", -1.95, 30.06)

	rec := doJSON(t, srv, "POST", "/api/v1/trips", tripRequestBody())
	var created models.Trip
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if resp := doJSON(t, srv, "POST", fmt.Sprintf("/api/v1/trips/%s/respond", created.ID),
		map[string]any{"driver_id": "d1", "accept": true}); resp.Code != http.StatusNoContent {
		t.Fatalf("accept failed: %d", resp.Code)
	}

	// accepted -> picked_up skips heading_to_pickup
	adv := doJSON(t, srv, "POST", fmt.Sprintf("/api/v1/trips/%s/advance", created.ID),
		map[string]any{"driver_id": "d1", "status": "picked_up"})
	if adv.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", adv.Code)
	}
}

func TestNotificationFeed(t *testing.T) {
	srv, reg := newTestServer(t)
	addDriver(t, reg, "d1", -1.95, 30.06)
	doJSON(t, srv, "POST", "/api/v1/trips", tripRequestBody())

	rec := doJSON(t, srv, "GET", "/api/v1/notifications?role=driver&recipient_id=d1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list []models.Notification
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Status != models.NotifPending {
		t.Fatalf("expected one pending offer, got %+v", list)
	}

	if bad := doJSON(t, srv, "GET", "/api/v1/notifications?role=ghost&recipient_id=d1", nil); bad.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown role, got %d", bad.Code)
	}
}

func TestDriverRegistrationAndLocationFlow(t *testing.T) {
	srv, reg := newTestServer(t)

	if rec := doJSON(t, srv, "POST", "/api/v1/drivers/register", map[string]any{"driver_id": "d9"}); rec.Code != http.StatusNoContent {
		t.Fatalf("register: expected 204, got %d", rec.Code)
	}
	if rec := doJSON(t, srv, "POST", "/api/v1/drivers/d9/availability", map[string]any{"available": true}); rec.Code != http.StatusNoContent {
		t.Fatalf("availability: expected 204, got %d", rec.Code)
	}
	if rec := doJSON(t, srv, "POST", "/api/v1/drivers/d9/location", map[string]float64{"lat": -1.95, "lon": 30.06}); rec.Code != http.StatusNoContent {
		t.Fatalf("location: expected 204, got %d", rec.Code)
	}

	snaps, err := reg.ListAvailable(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 || snaps[0].ID != "d9" {
		t.Fatalf("expected d9 listed, got %+v", snaps)
	}
}
