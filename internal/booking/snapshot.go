package booking

import "github.com/example/naijago/internal/models"

// Snapshot is a deep copy of the session's current state for rendering.
type Snapshot struct {
	State        string                 `json:"state"`
	Request      *models.BookingRequest `json:"request,omitempty"`
	RideOptions  []models.RideOption    `json:"ride_options,omitempty"`
	CourierQuote *models.CourierQuote   `json:"courier_quote,omitempty"`
	SearchError  string                 `json:"search_error,omitempty"`
	Selection    *models.Selection      `json:"selection,omitempty"`
	Ride         *models.ActiveRide     `json:"ride,omitempty"`
	Courier      *models.ActiveCourier  `json:"courier,omitempty"`
	Scheduled    *models.ScheduledRide  `json:"scheduled,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{State: s.state.String(), SearchError: s.searchErr}
	if s.request != nil {
		r := *s.request
		snap.Request = &r
	}
	if s.results != nil {
		if len(s.results.RideOptions) > 0 {
			snap.RideOptions = make([]models.RideOption, len(s.results.RideOptions))
			copy(snap.RideOptions, s.results.RideOptions)
		}
		if s.results.CourierQuote != nil {
			q := *s.results.CourierQuote
			snap.CourierQuote = &q
		}
	}
	if s.selection != nil {
		sel := *s.selection
		if sel.Ride != nil {
			o := *sel.Ride
			sel.Ride = &o
		}
		if sel.Courier != nil {
			q := *sel.Courier
			sel.Courier = &q
		}
		snap.Selection = &sel
	}
	if s.ride != nil {
		r := *s.ride
		if r.Driver != nil {
			d := *r.Driver
			r.Driver = &d
		}
		snap.Ride = &r
	}
	if s.courier != nil {
		c := *s.courier
		snap.Courier = &c
	}
	if s.scheduled != nil {
		sc := *s.scheduled
		snap.Scheduled = &sc
	}
	return snap
}
