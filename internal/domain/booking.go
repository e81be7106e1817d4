package domain

import (
	"math"
	"time"
)

// Tour is the purchasable resource. Only the fields checkout needs are loaded.
type Tour struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Slug       string  `json:"slug"`
	Summary    string  `json:"summary"`
	Price      float64 `json:"price"`
	ImageCover string  `json:"imageCover"`
}

// MinorUnits converts a price in major currency units to the integer amount
// payment gateways expect (cents for eur/usd).
func MinorUnits(price float64) int64 {
	return int64(math.Round(price * 100))
}

func MajorUnits(amount int64) float64 {
	return float64(amount) / 100
}

type Booking struct {
	ID              int64     `json:"id"`
	TourID          int64     `json:"tour"`
	UserID          int64     `json:"user"`
	Price           float64   `json:"price"`
	Paid            bool      `json:"paid"`
	StripeSessionID *string   `json:"stripeSessionId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// BookingDetails is a booking joined with the tour and user summaries the
// read endpoints return.
type BookingDetails struct {
	Booking
	TourName  string `json:"tourName"`
	TourSlug  string `json:"tourSlug"`
	UserName  string `json:"userName"`
	UserEmail string `json:"userEmail"`
}

type CreateBookingParams struct {
	TourID          int64
	UserID          int64
	Price           float64
	Paid            bool
	StripeSessionID string
}

// IsStaff reports whether a role may read other users' bookings.
func IsStaff(r Role) bool {
	return r == RoleAdmin || r == RoleLeadGuide || r == RoleGuide
}
