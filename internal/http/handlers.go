package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/trip-dispatch/internal/ingest"
	"github.com/example/trip-dispatch/internal/models"
	"github.com/example/trip-dispatch/internal/notify"
	"github.com/example/trip-dispatch/internal/observability"
	"github.com/example/trip-dispatch/internal/payments"
	"github.com/example/trip-dispatch/internal/registry"
	"github.com/example/trip-dispatch/internal/trip"
)

type Server struct {
	Registry registry.Registry
	Trips    *trip.Service
	Notifs   *notify.Service
	WSReg    *notify.WSRegistry
	Kafka    *ingest.KafkaProducer

	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(logger *slog.Logger, reg registry.Registry, trips *trip.Service, notifs *notify.Service, wsreg *notify.WSRegistry, kafka *ingest.KafkaProducer) *Server {
	s := &Server{
		Registry: reg,
		Trips:    trips,
		Notifs:   notifs,
		WSReg:    wsreg,
		Kafka:    kafka,
		logger:   logger,
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	// driver app
	s.mux.HandleFunc("/api/v1/drivers/register", s.handleDriverRegister).Methods("POST")
	s.mux.HandleFunc("/api/v1/drivers/{driver_id}/availability", s.handleAvailability).Methods("POST")
	s.mux.HandleFunc("/api/v1/drivers/{driver_id}/location", s.handleDriverLocation).Methods("POST")
	s.mux.HandleFunc("/internal/driver/locations", s.handleLocationIngest).Methods("POST")

	// trips
	s.mux.HandleFunc("/api/v1/trips", s.handleRequestTrip).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips/{trip_id}", s.handleGetTrip).Methods("GET")
	s.mux.HandleFunc("/api/v1/trips/{trip_id}/respond", s.handleRespond).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips/{trip_id}/advance", s.handleAdvance).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips/{trip_id}/location", s.handleTripLocation).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips/{trip_id}/cancel", s.handleCancel).Methods("POST")
	s.mux.HandleFunc("/api/v1/trips/{trip_id}/pay", s.handlePay).Methods("POST")

	// notifications
	s.mux.HandleFunc("/api/v1/notifications", s.handleListNotifications).Methods("GET")
	s.mux.HandleFunc("/api/v1/notifications/{id}/read", s.handleMarkRead).Methods("POST")

	s.mux.HandleFunc("/ws/{role}/{id}", s.handleWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleDriverRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DriverID string `json:"driver_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.DriverID == "" {
		http.Error(w, "driver_id required", http.StatusBadRequest)
		return
	}
	if err := s.Registry.Register(r.Context(), body.DriverID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	driverID := mux.Vars(r)["driver_id"]
	var body struct {
		Available bool `json:"available"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.Registry.SetAvailability(r.Context(), driverID, body.Available); err != nil {
		s.writeError(w, err)
		return
	}
	if body.Available {
		observability.DriversOnline.Inc()
	} else {
		observability.DriversOnline.Dec()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDriverLocation(w http.ResponseWriter, r *http.Request) {
	driverID := mux.Vars(r)["driver_id"]
	var loc models.Coord
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.ingestLocation(w, r, driverID, loc)
}

// handleLocationIngest is the fleet-side batch entry point; same semantics
// as the per-driver endpoint but the id travels in the body.
func (s *Server) handleLocationIngest(w http.ResponseWriter, r *http.Request) {
	var ev ingest.LocationEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil || ev.DriverID == "" {
		http.Error(w, "driver_id required", http.StatusBadRequest)
		return
	}
	s.ingestLocation(w, r, ev.DriverID, models.Coord{Lat: ev.Lat, Lon: ev.Lon})
}

func (s *Server) ingestLocation(w http.ResponseWriter, r *http.Request, driverID string, loc models.Coord) {
	// publish to kafka if configured so the consumer fleet keeps the shared
	// registry fresh; always apply locally as well
	if s.Kafka != nil {
		if err := s.Kafka.PublishLocation(ingest.LocationEvent{DriverID: driverID, Lat: loc.Lat, Lon: loc.Lon}); err != nil {
			s.logger.Warn("kafka publish failed", "driver_id", driverID, "error", err)
		}
	}
	if err := s.Registry.ReportLocation(r.Context(), driverID, loc); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRequestTrip(w http.ResponseWriter, r *http.Request) {
	var req models.TripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.ClientID == "" {
		http.Error(w, "client_id required", http.StatusBadRequest)
		return
	}
	t, err := s.Trips.RequestTrip(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleGetTrip(w http.ResponseWriter, r *http.Request) {
	t, err := s.Trips.GetTrip(r.Context(), mux.Vars(r)["trip_id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	tripID := mux.Vars(r)["trip_id"]
	var body struct {
		DriverID string `json:"driver_id"`
		Accept   bool   `json:"accept"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.DriverID == "" {
		http.Error(w, "driver_id required", http.StatusBadRequest)
		return
	}
	if err := s.Trips.RespondToOffer(r.Context(), tripID, body.DriverID, body.Accept); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	tripID := mux.Vars(r)["trip_id"]
	var body struct {
		DriverID string            `json:"driver_id"`
		Status   models.TripStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.DriverID == "" {
		http.Error(w, "driver_id required", http.StatusBadRequest)
		return
	}
	if err := s.Trips.Advance(r.Context(), tripID, body.DriverID, body.Status); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTripLocation(w http.ResponseWriter, r *http.Request) {
	tripID := mux.Vars(r)["trip_id"]
	var loc models.Coord
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.Trips.UpdateDriverLocation(r.Context(), tripID, loc); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	tripID := mux.Vars(r)["trip_id"]
	var body struct {
		Initiator          string  `json:"initiator"`
		DistanceTraveledKm float64 `json:"distance_traveled_km"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.Initiator == "" {
		body.Initiator = "client"
	}
	if err := s.Trips.Cancel(r.Context(), tripID, body.Initiator, body.DistanceTraveledKm); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePay(w http.ResponseWriter, r *http.Request) {
	tripID := mux.Vars(r)["trip_id"]
	var body struct {
		PhoneNumber   string `json:"phone_number"`
		PaymentMethod string `json:"payment_method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := s.Trips.Pay(r.Context(), models.PaymentRequest{
		TripID:        tripID,
		PhoneNumber:   body.PhoneNumber,
		PaymentMethod: body.PaymentMethod,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	role := models.Role(r.URL.Query().Get("role"))
	recipient := r.URL.Query().Get("recipient_id")
	if (role != models.RoleClient && role != models.RoleDriver) || recipient == "" {
		http.Error(w, "role and recipient_id required", http.StatusBadRequest)
		return
	}
	list := s.Notifs.ListFor(r.Context(), role, recipient)
	if list == nil {
		list = []models.Notification{}
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	if err := s.Notifs.MarkRead(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	role := models.Role(vars["role"])
	id := vars["id"]
	if role != models.RoleClient && role != models.RoleDriver {
		http.Error(w, "unknown role", http.StatusBadRequest)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	s.WSReg.Add(role, id, conn)

	// reap the session when the peer goes away; inbound frames are ignored
	go func() {
		defer s.WSReg.Remove(role, id)
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, trip.ErrNotFound), errors.Is(err, registry.ErrNotFound), errors.Is(err, notify.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, trip.ErrNoDriverAvailable):
		http.Error(w, "no drivers nearby, try again", http.StatusServiceUnavailable)
	case errors.Is(err, trip.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, trip.ErrConflict), errors.Is(err, notify.ErrAlreadyResolved):
		http.Error(w, "trip no longer available", http.StatusConflict)
	case errors.Is(err, payments.ErrUpstream):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		s.logger.Error("internal error", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
