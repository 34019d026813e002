package appointment

import (
	"github.com/jwalitptl/rx-scheduler/internal/model"
)

// Daily booking grid. Closing is exclusive.
var (
	Opening = model.NewTimeOfDay(8, 30)
	Closing = model.NewTimeOfDay(15, 30)
)

// SlotStep is the distance between two consecutive slots.
const SlotStep = model.AppointmentDuration

// Grid returns every slot start of a day in ascending order.
func Grid() []model.TimeOfDay {
	var slots []model.TimeOfDay
	for t := Opening; t.Before(Closing); t = t.Add(SlotStep) {
		slots = append(slots, t)
	}
	return slots
}

// OnGrid reports whether t is a slot start within opening hours.
func OnGrid(t model.TimeOfDay) bool {
	if t.Before(Opening) || !t.Before(Closing) {
		return false
	}
	step := int(SlotStep.Minutes())
	return (t.Minutes()-Opening.Minutes())%step == 0
}

// freeSlots removes the start times of booked from the grid.
func freeSlots(booked []*model.Appointment) []model.TimeOfDay {
	taken := make(map[model.TimeOfDay]struct{}, len(booked))
	for _, a := range booked {
		taken[a.StartTime] = struct{}{}
	}

	var free []model.TimeOfDay
	for _, slot := range Grid() {
		if _, ok := taken[slot]; !ok {
			free = append(free, slot)
		}
	}
	return free
}
