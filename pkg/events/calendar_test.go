package events

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketprep-backend/pkg/types"
)

const calendarYAML = `
events:
  - name: Harvest Festival
    date: "2026-10-03"
    latitude: 40.7128
    longitude: -74.0060
    radius_miles: 3
    expected_attendance: 4000
  - name: Independence Day
    recurring: "07-04"
    expected_attendance: 0
`

func TestCalendarLookup(t *testing.T) {
	cal, err := ParseCalendar([]byte(calendarYAML))
	require.NoError(t, err)

	near := cal.Lookup(time.Date(2026, 10, 3, 0, 0, 0, 0, time.UTC), 40.72, -74.01)
	assert.Empty(t, cmp.Diff(types.EventSnapshot{
		IsSpecialEvent:     true,
		ExpectedAttendance: 4000,
		Names:              []string{"Harvest Festival"},
	}, near))

	far := cal.Lookup(time.Date(2026, 10, 3, 0, 0, 0, 0, time.UTC), 41.5, -74.01)
	assert.False(t, far.IsSpecialEvent)

	july := cal.Lookup(time.Date(2031, 7, 4, 0, 0, 0, 0, time.UTC), 0, 0)
	assert.True(t, july.IsSpecialEvent)
	assert.Equal(t, []string{"Independence Day"}, july.Names)
}

func TestParseCalendarRejectsBadEntries(t *testing.T) {
	cases := map[string]string{
		"missing name": "events:\n  - date: \"2026-01-01\"\n",
		"bad date":     "events:\n  - name: x\n    date: \"01/02/2026\"\n",
		"no date":      "events:\n  - name: x\n",
		"half coords":  "events:\n  - name: x\n    date: \"2026-01-01\"\n    latitude: 1\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCalendar([]byte(raw))
			require.Error(t, err)
		})
	}
}

func TestLoadCalendar(t *testing.T) {
	empty, err := LoadCalendar("")
	require.NoError(t, err)
	assert.Empty(t, empty.Events)

	path := filepath.Join(t.TempDir(), "events.yaml")
	require.NoError(t, os.WriteFile(path, []byte(calendarYAML), 0o600))
	cal, err := LoadCalendar(path)
	require.NoError(t, err)
	assert.Len(t, cal.Events, 2)

	_, err = LoadCalendar(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
