package models

import "time"

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Place is a geocoded point plus the human-readable address shown in
// notifications ("New trip request from X to Y").
type Place struct {
	Coord   Coord  `json:"coord"`
	Address string `json:"address"`
}

type Driver struct {
	ID        string    `json:"id"`
	Loc       *Coord    `json:"loc,omitempty"` // nil until first report
	Available bool      `json:"available"`
	Busy      bool      `json:"busy"` // has an active trip
	Active    bool      `json:"active"`
	Updated   time.Time `json:"updated"`
}

// DriverSnapshot is what the matcher scans: an available, non-busy driver
// with a fresh known location.
type DriverSnapshot struct {
	ID  string `json:"id"`
	Loc Coord  `json:"loc"`
}

type TripStatus string

const (
	StatusPending         TripStatus = "pending"
	StatusAccepted        TripStatus = "accepted"
	StatusHeadingToPickup TripStatus = "heading_to_pickup"
	StatusPickedUp        TripStatus = "picked_up"
	StatusCompleted       TripStatus = "completed"
	StatusCancelled       TripStatus = "cancelled"
)

// Terminal reports whether a trip in this status can still change.
func (s TripStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type Trip struct {
	ID             string     `json:"id"`
	ClientID       string     `json:"client_id"`
	DriverID       string     `json:"driver_id"` // empty while unassigned
	Pickup         Place      `json:"pickup"`
	Destination    Place      `json:"destination"`
	DistanceKm     float64    `json:"distance_km"`
	Amount         float64    `json:"amount"` // RWF, written only by the fare calculator
	Status         TripStatus `json:"status"`
	DriverLocation *Coord     `json:"driver_location,omitempty"`
	RejectedBy     []string   `json:"rejected_by,omitempty"` // drivers excluded from reassignment
	OfferedAt      time.Time  `json:"offered_at"`            // last offer time, drives the offer timeout
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type Role string

const (
	RoleClient Role = "client"
	RoleDriver Role = "driver"
)

type NotificationStatus string

const (
	NotifPending  NotificationStatus = "pending" // outstanding dispatch offer
	NotifInfo     NotificationStatus = "info"
	NotifAccepted NotificationStatus = "accepted"
	NotifRejected NotificationStatus = "rejected"
	NotifSuccess  NotificationStatus = "success"
	NotifError    NotificationStatus = "error"
)

type Notification struct {
	ID            string             `json:"id"`
	RecipientRole Role               `json:"recipient_role"`
	RecipientID   string             `json:"recipient_id"`
	TripID        string             `json:"trip_id"`
	Message       string             `json:"message"`
	Status        NotificationStatus `json:"status"`
	Read          bool               `json:"read"`
	Amount        float64            `json:"amount,omitempty"` // payment-related events only
	CreatedAt     time.Time          `json:"created_at"`
}

// TripRequest is the inbound payload for creating a trip.
type TripRequest struct {
	ClientID    string  `json:"client_id"`
	Pickup      Place   `json:"pickup"`
	Destination Place   `json:"destination"`
	DistanceKm  float64 `json:"distance_km"`
}

// PaymentRequest mirrors the payment collaborator contract.
type PaymentRequest struct {
	TripID        string  `json:"trip_id"`
	Amount        float64 `json:"amount"`
	PhoneNumber   string  `json:"phone_number"`
	PaymentMethod string  `json:"payment_method"` // mtn, airtel, card
}

type PaymentResult struct {
	Success     bool   `json:"success"`
	Status      string `json:"status"`
	ReferenceID string `json:"reference_id,omitempty"`
}
