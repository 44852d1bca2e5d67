package provider

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/example/naijago/internal/models"
)

// Stub generates plausible options locally so the binary works without a
// provider API key. Randomness is seedable for deterministic runs.
type Stub struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewStub(seed int64) *Stub {
	return &Stub{rnd: rand.New(rand.NewSource(seed))}
}

var stubDrivers = []models.DriverProfile{
	{Name: "Emeka Okafor", Vehicle: "Toyota Corolla, Silver", LicensePlate: "LSD 482 KJ"},
	{Name: "Tunde Adeyemi", Vehicle: "Honda Accord, Black", LicensePlate: "KJA 119 XA"},
	{Name: "Chiamaka Obi", Vehicle: "Kia Rio, Red", LicensePlate: "ABC 764 EP"},
	{Name: "Ibrahim Musa", Vehicle: "Hyundai Elantra, Blue", LicensePlate: "GGE 231 ZY"},
}

func (s *Stub) GenerateOptions(_ context.Context, req models.BookingRequest) (models.SearchResults, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.Service == models.ServiceCourier {
		quote := &models.CourierQuote{
			Fare:        fmt.Sprintf("₦%d", 1200+s.rnd.Intn(20)*100),
			ETA:         "2-3 hours",
			Description: fmt.Sprintf("Door-to-door delivery of %s from %s to %s.", req.PackageNote, req.Pickup, req.Dropoff),
			TrackingID:  fmt.Sprintf("NG-GO-%08d", s.rnd.Intn(100000000)),
		}
		return models.SearchResults{CourierQuote: quote}, nil
	}

	base := 1800 + s.rnd.Intn(12)*100
	options := []models.RideOption{
		{
			Icon:        models.IconBike,
			Type:        "Keke",
			Fare:        fmt.Sprintf("₦%d", base/2),
			ETA:         fmt.Sprintf("%d mins", 2+s.rnd.Intn(4)),
			Description: "Quick and affordable tricycle for short city hops.",
		},
		{
			Icon:        models.IconCar,
			Type:        "Economy",
			Fare:        fmt.Sprintf("₦%d - ₦%d", base, base+500),
			ETA:         fmt.Sprintf("%d mins", 4+s.rnd.Intn(5)),
			Description: "Comfortable everyday ride at a fair price.",
		},
		{
			Icon:        models.IconLuxury,
			Type:        "Premium",
			Fare:        fmt.Sprintf("₦%d", base*3),
			ETA:         fmt.Sprintf("%d mins", 6+s.rnd.Intn(6)),
			Description: "Top-rated drivers in executive vehicles.",
		},
	}
	return models.SearchResults{RideOptions: options}, nil
}

func (s *Stub) GenerateDriverProfile(_ context.Context) (models.DriverProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := stubDrivers[s.rnd.Intn(len(stubDrivers))]
	p.PhotoURL = "https://i.pravatar.cc/150?u=" + strings.ReplaceAll(p.Name, " ", "")
	return p, nil
}
