package prescription

import (
	"reflect"
	"testing"
)

func TestCanTransition(t *testing.T) {
	for _, from := range Statuses {
		for _, to := range Statuses {
			want := from == to || from != StatusDiscontinued
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
	if CanTransition(StatusActive, "paused") {
		t.Error("unknown target status accepted")
	}
}

func TestUpdateRequest_Fields(t *testing.T) {
	notes := "n"
	u := UpdateRequest{Notes: &notes, Items: []ItemInput{}}
	if got, want := u.Fields(), []string{"notes", "items"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestStats_Add(t *testing.T) {
	var s Stats
	s.add(map[string]int{StatusActive: 2, StatusDraft: 1})
	s.add(map[string]int{StatusDraft: 3, StatusDiscontinued: 1})
	want := Stats{TotalPrescriptions: 7, Draft: 4, Active: 2, Discontinued: 1}
	if s != want {
		t.Errorf("got %+v, want %+v", s, want)
	}
}
