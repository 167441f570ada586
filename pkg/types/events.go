package types

// EventSnapshot summarizes special events near a venue on a market date.
type EventSnapshot struct {
	IsSpecialEvent     bool     `json:"is_special_event"`
	ExpectedAttendance int      `json:"expected_attendance"`
	Names              []string `json:"names,omitempty"`
}

// Merge combines two snapshots, summing attendance and keeping names unique.
func (e EventSnapshot) Merge(other EventSnapshot) EventSnapshot {
	out := EventSnapshot{
		IsSpecialEvent:     e.IsSpecialEvent || other.IsSpecialEvent,
		ExpectedAttendance: e.ExpectedAttendance + other.ExpectedAttendance,
	}
	seen := make(map[string]struct{}, len(e.Names)+len(other.Names))
	for _, name := range append(append([]string{}, e.Names...), other.Names...) {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out.Names = append(out.Names, name)
	}
	return out
}
