package provider

import (
	"context"
	"errors"

	"github.com/example/naijago/internal/models"
)

// ErrUnavailable is the single error surfaced to callers for any provider,
// network, or parse problem. The booking flow recovers from it locally.
var ErrUnavailable = errors.New("could not fetch options, please try again")

// Client is the contract the booking state machine consumes. GenerateOptions
// returns ride options for ride requests and a courier quote for courier
// requests; GenerateDriverProfile produces driver details for a confirmed
// ride.
type Client interface {
	GenerateOptions(ctx context.Context, req models.BookingRequest) (models.SearchResults, error)
	GenerateDriverProfile(ctx context.Context) (models.DriverProfile, error)
}
