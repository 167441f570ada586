package types

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWeatherSnapshotIsRain(t *testing.T) {
	if !(WeatherSnapshot{Conditions: "rain"}).IsRain() {
		t.Fatal("rain conditions should be rain")
	}
	if !(WeatherSnapshot{Conditions: "clouds", PrecipitationProbability: 0.5}).IsRain() {
		t.Fatal("pop at 0.5 should be rain")
	}
	if (WeatherSnapshot{Conditions: "clear", PrecipitationProbability: 0.49}).IsRain() {
		t.Fatal("clear with low pop should not be rain")
	}
}

func TestEventSnapshotMerge(t *testing.T) {
	a := EventSnapshot{IsSpecialEvent: true, ExpectedAttendance: 1200, Names: []string{"Harvest Fest"}}
	b := EventSnapshot{ExpectedAttendance: 300, Names: []string{"Harvest Fest", "5K Run"}}

	got := a.Merge(b)
	want := EventSnapshot{IsSpecialEvent: true, ExpectedAttendance: 1500, Names: []string{"Harvest Fest", "5K Run"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("merge mismatch (-want +got):\n%s", diff)
	}
}
