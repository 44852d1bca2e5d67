package models

import "testing"

func TestFareAmount(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"₦2500", 2500},
		{"₦2,500 - ₦3,000", 2500},
		{"1500", 1500},
		{"free", 0},
		{"", 0},
	}
	for _, c := range cases {
		if got := FareAmount(c.in); got != c.want {
			t.Errorf("FareAmount(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestETAMinutes(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"5 mins", 5},
		{"12 mins away", 12},
		{"arriving", 0},
		{"7", 7},
	}
	for _, c := range cases {
		if got := ETAMinutes(c.in); got != c.want {
			t.Errorf("ETAMinutes(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestCourierStageOrder(t *testing.T) {
	order := []CourierStage{StageConfirmed, StagePickedUp, StageInTransit, StageOutForDelivery, StageDelivered}
	s := StageConfirmed
	for i := 1; i < len(order); i++ {
		s = s.Next()
		if s != order[i] {
			t.Fatalf("step %d: got %v, want %v", i, s, order[i])
		}
	}
	if s.Next() != StageDelivered {
		t.Fatalf("Delivered must be terminal, got %v", s.Next())
	}
}
