package models

import (
	"strconv"
	"strings"
	"time"
)

type ServiceKind string

const (
	ServiceRide    ServiceKind = "ride"
	ServiceCourier ServiceKind = "courier"
)

type RideIcon string

const (
	IconCar    RideIcon = "car"
	IconBike   RideIcon = "bike"
	IconLuxury RideIcon = "luxury"
)

// BookingRequest is immutable once options have been requested for it.
type BookingRequest struct {
	Service       ServiceKind `json:"service"`
	Pickup        string      `json:"pickup"`
	Dropoff       string      `json:"dropoff"`
	PackageNote   string      `json:"package_note,omitempty"`
	Scheduled     bool        `json:"scheduled,omitempty"`
	ScheduledDate string      `json:"scheduled_date,omitempty"` // YYYY-MM-DD
	ScheduledTime string      `json:"scheduled_time,omitempty"` // HH:MM
}

type RideOption struct {
	Icon        RideIcon `json:"icon"`
	Type        string   `json:"type"`
	Fare        string   `json:"fare"` // e.g. "₦2500 - ₦3000"
	ETA         string   `json:"eta"`  // e.g. "5 mins"
	Description string   `json:"description"`
}

type CourierQuote struct {
	Fare        string `json:"fare"`
	ETA         string `json:"eta"`
	Description string `json:"description"`
	TrackingID  string `json:"tracking_id"`
}

// SearchResults holds exactly one of the two provider result shapes.
type SearchResults struct {
	RideOptions  []RideOption  `json:"ride_options,omitempty"`
	CourierQuote *CourierQuote `json:"courier_quote,omitempty"`
}

type SelectionKind string

const (
	SelectionRide    SelectionKind = "ride"
	SelectionCourier SelectionKind = "courier"
)

// Selection is a tagged union; Kind is set at construction and decides
// which of the two pointers is populated.
type Selection struct {
	Kind    SelectionKind `json:"kind"`
	Ride    *RideOption   `json:"ride,omitempty"`
	Courier *CourierQuote `json:"courier,omitempty"`
}

type DriverProfile struct {
	Name         string `json:"name"`
	Vehicle      string `json:"vehicle"`
	LicensePlate string `json:"license_plate"`
	PhotoURL     string `json:"photo_url"`
}

type ActiveRide struct {
	Option         RideOption     `json:"option"`
	Driver         *DriverProfile `json:"driver,omitempty"`
	FetchingDriver bool           `json:"fetching_driver"`
	ETAMinutes     int            `json:"eta_minutes"`
}

type CourierStage int

const (
	StageConfirmed CourierStage = iota
	StagePickedUp
	StageInTransit
	StageOutForDelivery
	StageDelivered
)

var stageNames = [...]string{"Confirmed", "Picked Up", "In Transit", "Out for Delivery", "Delivered"}

func (s CourierStage) String() string {
	if s < StageConfirmed || s > StageDelivered {
		return "Unknown"
	}
	return stageNames[s]
}

// Next returns the following stage, capped at Delivered.
func (s CourierStage) Next() CourierStage {
	if s >= StageDelivered {
		return StageDelivered
	}
	return s + 1
}

func (s CourierStage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type ActiveCourier struct {
	Quote CourierQuote `json:"quote"`
	Stage CourierStage `json:"stage"`
}

type ScheduledRide struct {
	Option  RideOption     `json:"option"`
	Request BookingRequest `json:"request"`
}

// HistoryEntry is an immutable snapshot taken when a service completes.
type HistoryEntry struct {
	ID         string      `json:"id"`
	Date       string      `json:"date"`
	Service    ServiceKind `json:"service"`
	Pickup     string      `json:"pickup"`
	Dropoff    string      `json:"dropoff"`
	Fare       string      `json:"fare"`
	RideType   string      `json:"ride_type,omitempty"`
	DriverName string      `json:"driver_name,omitempty"`
	TrackingID string      `json:"tracking_id,omitempty"`
}

type DriverRequest struct {
	ID        string    `json:"id"`
	Pickup    string    `json:"pickup"`
	Dropoff   string    `json:"dropoff"`
	Fare      string    `json:"fare"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Role string

const (
	RoleRider  Role = "rider"
	RoleDriver Role = "driver"
)

type PayoutDetails struct {
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

type DriverDetails struct {
	VehicleMake  string         `json:"vehicle_make"`
	VehicleModel string         `json:"vehicle_model"`
	VehicleYear  string         `json:"vehicle_year"`
	LicensePlate string         `json:"license_plate"`
	Payout       *PayoutDetails `json:"payout,omitempty"`
}

type User struct {
	Name          string         `json:"name"`
	Email         string         `json:"email"`
	Phone         string         `json:"phone,omitempty"`
	Role          Role           `json:"role"`
	DriverDetails *DriverDetails `json:"driver_details,omitempty"`
}

// FareAmount extracts the leading naira amount from a fare string such as
// "₦2500" or "₦2,500 - ₦3,000". Returns 0 if no digits are present.
func FareAmount(fare string) int {
	cleaned := strings.NewReplacer("₦", "", ",", "", " ", "").Replace(fare)
	end := 0
	for end < len(cleaned) && cleaned[end] >= '0' && cleaned[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(cleaned[:end])
	if err != nil {
		return 0
	}
	return n
}

// ETAMinutes extracts the first run of digits from an ETA string such as
// "5 mins". Returns 0 if none is found.
func ETAMinutes(eta string) int {
	start := -1
	for i := 0; i < len(eta); i++ {
		if eta[i] >= '0' && eta[i] <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			n, _ := strconv.Atoi(eta[start:i])
			return n
		}
	}
	if start >= 0 {
		n, _ := strconv.Atoi(eta[start:])
		return n
	}
	return 0
}
